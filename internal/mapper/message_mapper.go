package mapper

import (
	"tutor-chat-client/internal/constant"
	"tutor-chat-client/internal/dto"
	"tutor-chat-client/internal/entity"
)

type MessageMapper struct{}

func NewMessageMapper() *MessageMapper {
	return &MessageMapper{}
}

func (m *MessageMapper) MessageToEntity(msg *dto.MessageResponse) entity.ChatMessage {
	role := constant.ChatMessageRoleAssistant
	if msg.IsUserMessage {
		role = constant.ChatMessageRoleUser
	}

	var attachments []entity.Attachment
	for _, a := range msg.Attachments {
		attachments = append(attachments, entity.Attachment{
			Type:     a.Type,
			MimeType: a.MimeType,
			Base64:   a.Base64,
		})
	}

	return entity.ChatMessage{
		Id:          msg.Id,
		Content:     msg.Content,
		Role:        role,
		Timestamp:   msg.CreatedAt,
		Attachments: attachments,
	}
}

func (m *MessageMapper) MessagesToEntities(msgs []dto.MessageResponse) []entity.ChatMessage {
	out := make([]entity.ChatMessage, 0, len(msgs))
	for i := range msgs {
		out = append(out, m.MessageToEntity(&msgs[i]))
	}
	return out
}

func (m *MessageMapper) AttachmentToDTO(a entity.Attachment) dto.AttachmentDTO {
	return dto.AttachmentDTO{
		Type:     a.Type,
		MimeType: a.MimeType,
		Base64:   a.Base64,
	}
}
