package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tutor-chat-client/internal/constant"
	"tutor-chat-client/internal/dto"
	"tutor-chat-client/internal/entity"
	"tutor-chat-client/internal/stream"
	"tutor-chat-client/internal/transport"
)

// SendMessage runs the full send protocol for one user message:
//
//  1. snapshot and clear the pending attachment,
//  2. append an optimistic user message and an empty assistant placeholder,
//  3. stream the reply, accumulating chunks into the placeholder,
//  4. on any streaming failure, fall back to the non-streaming send,
//  5. reconcile the two optimistic entries with the backend's final records.
//
// Only the fallback failing is terminal: the placeholder then carries a
// visible error message, the optimistic user message stays so typed text is
// never lost from view, and the error is returned for the caller to surface.
// The caller guarantees at most one in-flight send per session.
func (s *tutorService) SendMessage(ctx context.Context, subjectId, content string) error {
	session, found := s.store.Get(subjectId)
	if !found || session.SessionId == "" {
		return fmt.Errorf("send message: no active session for subject %q", subjectId)
	}
	if session.IsLoading {
		return fmt.Errorf("send message: a send is already in flight for subject %q", subjectId)
	}

	request := &dto.SendMessageRequest{Content: content}
	if err := s.validate.Struct(request); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	// Only consume the staged attachment once the request is known to be
	// valid, so a rejected call leaves it staged for the next attempt.
	pending := s.store.TakePendingAttachment()
	var attachments []entity.Attachment
	if pending != nil {
		attachments = []entity.Attachment{*pending}
		request.Attachments = []dto.AttachmentDTO{s.mapper.AttachmentToDTO(*pending)}
	}

	userTempId := constant.TempUserIdPrefix + uuid.NewString()
	assistantTempId := constant.TempAssistantIdPrefix + uuid.NewString()
	now := s.nowFn()

	s.store.Update(subjectId, func(sess *entity.Session) {
		sess.Messages = append(sess.Messages,
			entity.ChatMessage{
				Id:          userTempId,
				Content:     content,
				Role:        constant.ChatMessageRoleUser,
				Timestamp:   now,
				Attachments: attachments,
			},
			entity.ChatMessage{
				Id:        assistantTempId,
				Role:      constant.ChatMessageRoleAssistant,
				Timestamp: now,
			},
		)
		sess.IsLoading = true
	})

	streamErr := s.streamReply(ctx, subjectId, session.SessionId, request, userTempId, assistantTempId)
	if streamErr == nil {
		return nil
	}
	s.logger.Warn("TutorService", "streaming failed, falling back to single-shot send", map[string]interface{}{
		"subject_id": subjectId,
		"session_id": session.SessionId,
		"error":      streamErr.Error(),
	})

	// Fallback supersedes the optimistic tail entirely; partially streamed
	// content is not authoritative and is discarded.
	final, err := s.api.SendMessage(ctx, session.SessionId, request)
	if err != nil {
		s.store.Update(subjectId, func(sess *entity.Session) {
			replaceById(sess, assistantTempId, entity.ChatMessage{
				Id:        assistantTempId,
				Content:   userFacingMessage(err),
				Role:      constant.ChatMessageRoleAssistant,
				Timestamp: s.nowFn(),
			})
			sess.IsLoading = false
		})
		s.logger.Error("TutorService", "fallback send failed", map[string]interface{}{
			"subject_id": subjectId,
			"session_id": session.SessionId,
			"error":      err.Error(),
		})
		return fmt.Errorf("send message: %w", err)
	}

	s.reconcile(subjectId, userTempId, assistantTempId, final)
	return nil
}

// streamReply drives the two-phase streaming path: persist the user message
// via prepare, then open the stream keyed by the persisted message id and
// consume it. Any error return triggers the caller's fallback.
func (s *tutorService) streamReply(
	ctx context.Context,
	subjectId, sessionId string,
	request *dto.SendMessageRequest,
	userTempId, assistantTempId string,
) error {
	prepared, err := s.api.PrepareMessage(ctx, sessionId, request)
	if err != nil {
		return err
	}

	st, err := s.api.StreamMessage(ctx, sessionId, prepared.UserMessage.Id)
	if err != nil {
		return err
	}
	// Release the body even when this returns mid-stream.
	defer st.Close()

	var accumulator strings.Builder

	for chunk := range st.Events() {
		switch chunk.Type {
		case stream.EventChunk:
			var data dto.StreamChunkData
			if err := json.Unmarshal(chunk.Data, &data); err != nil {
				return fmt.Errorf("malformed chunk payload: %w", err)
			}
			accumulator.WriteString(data.Content)
			partial := accumulator.String()
			s.store.Update(subjectId, func(sess *entity.Session) {
				updateContentById(sess, assistantTempId, partial)
			})

		case stream.EventDone:
			var final dto.SendMessageResponse
			if err := json.Unmarshal(chunk.Data, &final); err != nil {
				return fmt.Errorf("malformed done payload: %w", err)
			}
			// The reconciled records are authoritative; whatever the
			// stream does after this point must not trigger the
			// fallback, so the attempt succeeds here.
			s.reconcile(subjectId, userTempId, assistantTempId, &final)
			return nil

		case stream.EventError:
			var data dto.StreamErrorData
			_ = json.Unmarshal(chunk.Data, &data)
			if data.Message == "" {
				data.Message = "stream reported an error"
			}
			return fmt.Errorf("stream error event: %s", data.Message)

		case stream.EventUserMessage:
			// Acknowledgement of the persisted user record; the done
			// event carries the authoritative copy, so nothing to do.
		}
	}

	if err := st.Err(); err != nil {
		return fmt.Errorf("stream read: %w", err)
	}
	return fmt.Errorf("stream ended without a done event")
}

// reconcile swaps the backend's final user and assistant records in for the
// two optimistic entries and clears the loading flag. The message list grows
// by exactly two per send, no matter how many chunks streamed.
func (s *tutorService) reconcile(subjectId, userTempId, assistantTempId string, final *dto.SendMessageResponse) {
	userMsg := s.mapper.MessageToEntity(&final.UserMessage)
	assistantMsg := s.mapper.MessageToEntity(&final.AssistantMessage)

	s.store.Update(subjectId, func(sess *entity.Session) {
		userOK := replaceById(sess, userTempId, userMsg)
		assistantOK := replaceById(sess, assistantTempId, assistantMsg)
		if (!userOK || !assistantOK) && len(sess.Messages) >= 2 {
			// Temp ids gone (e.g. the session was reloaded mid-send);
			// fall back to superseding the tail.
			sess.Messages[len(sess.Messages)-2] = userMsg
			sess.Messages[len(sess.Messages)-1] = assistantMsg
		}
		sess.IsLoading = false
	})
}

// replaceById swaps the message carrying id in place, preserving its list
// position.
func replaceById(sess *entity.Session, id string, replacement entity.ChatMessage) bool {
	for i := range sess.Messages {
		if sess.Messages[i].Id == id {
			sess.Messages[i] = replacement
			return true
		}
	}
	return false
}

func updateContentById(sess *entity.Session, id, content string) bool {
	for i := range sess.Messages {
		if sess.Messages[i].Id == id {
			sess.Messages[i].Content = content
			return true
		}
	}
	return false
}

// userFacingMessage maps a terminal send failure to the text shown inside the
// conversation.
func userFacingMessage(err error) string {
	switch {
	case errors.Is(err, transport.ErrRateLimited):
		return "You're sending messages too quickly. Please wait a moment and try again."
	case errors.Is(err, transport.ErrUnauthorized):
		return "Your session has expired. Please log in again."
	}

	var apiErr *transport.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Sorry, something went wrong while sending your message. Please try again."
}
