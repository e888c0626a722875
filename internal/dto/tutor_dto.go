package dto

import "time"

// DTOs for the tutor backend REST/stream contract. Field names follow the
// backend's JSON casing, not Go conventions.

type CreateSessionRequest struct {
	Subject string `json:"subject,omitempty"`
}

type ChatSessionResponse struct {
	Id        string    `json:"id"`
	UserId    string    `json:"userId"`
	Subject   string    `json:"subject,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type AttachmentDTO struct {
	Type     string `json:"type"`
	MimeType string `json:"mimeType"`
	Base64   string `json:"base64"`
}

type MessageResponse struct {
	Id            string          `json:"id"`
	Content       string          `json:"content"`
	IsUserMessage bool            `json:"isUserMessage"`
	CreatedAt     time.Time       `json:"createdAt"`
	Attachments   []AttachmentDTO `json:"attachments,omitempty"`
}

type SendMessageRequest struct {
	Content     string          `json:"content" validate:"required"`
	Attachments []AttachmentDTO `json:"attachments,omitempty" validate:"max=1"`
}

// SendMessageResponse is returned by the non-streaming send and carried by the
// stream's "done" event.
type SendMessageResponse struct {
	UserMessage      MessageResponse `json:"userMessage"`
	AssistantMessage MessageResponse `json:"assistantMessage"`
}

// PrepareMessageResponse acknowledges the out-of-band persistence of the user
// message before the stream is opened.
type PrepareMessageResponse struct {
	UserMessage MessageResponse `json:"userMessage"`
}

type UpdateDurationRequest struct {
	DurationSeconds int `json:"durationSeconds" validate:"gte=0"`
}

type UpdateDurationResponse struct {
	Success bool `json:"success"`
}

type SubjectResponse struct {
	Id         string   `json:"id"`
	Name       string   `json:"name"`
	Difficulty string   `json:"difficulty"`
	Concepts   []string `json:"concepts"`
}

// ErrorResponse is the backend's error body for non-2xx JSON responses.
type ErrorResponse struct {
	Message string `json:"message,omitempty"`
}

// --- Stream event payloads (see internal/stream) ---

type StreamChunkData struct {
	Content string `json:"content"`
}

type StreamErrorData struct {
	Message string `json:"message"`
}
