package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
)

// Prefixes for client-generated optimistic message ids. A message carrying one
// of these ids has not been confirmed by the backend yet.
const (
	TempUserIdPrefix      = "temp-user-"
	TempAssistantIdPrefix = "temp-assistant-"
)

const AttachmentTypeImage = "image"
