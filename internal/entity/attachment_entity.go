package entity

import "fmt"

// Attachment is an image attached to an outgoing message, held client-side as
// base64 until the backend persists it.
type Attachment struct {
	Type     string
	MimeType string
	Base64   string
}

// AttachmentPreview is the reduced form used for local rendering before the
// backend has stored the attachment.
type AttachmentPreview struct {
	Type string
	URL  string
}

// Preview reduces the attachment to a data URL the UI can render directly.
func (a Attachment) Preview() AttachmentPreview {
	return AttachmentPreview{
		Type: a.Type,
		URL:  fmt.Sprintf("data:%s;base64,%s", a.MimeType, a.Base64),
	}
}
