package entity

import (
	"strings"
	"time"

	"tutor-chat-client/internal/constant"
)

type ChatMessage struct {
	Id          string
	Content     string
	Role        string
	Timestamp   time.Time
	Attachments []Attachment
}

// IsOptimistic reports whether the message still carries a client-generated
// temporary id, i.e. it has not been reconciled with a backend record.
func (m ChatMessage) IsOptimistic() bool {
	return strings.HasPrefix(m.Id, constant.TempUserIdPrefix) ||
		strings.HasPrefix(m.Id, constant.TempAssistantIdPrefix)
}
