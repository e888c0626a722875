package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutor-chat-client/internal/dto"
	"tutor-chat-client/internal/entity"
	"tutor-chat-client/internal/transport"
)

func doneEvent(t *testing.T, userId, userContent, assistantId, assistantContent string) string {
	t.Helper()
	payload, err := json.Marshal(dto.SendMessageResponse{
		UserMessage:      dto.MessageResponse{Id: userId, Content: userContent, IsUserMessage: true},
		AssistantMessage: dto.MessageResponse{Id: assistantId, Content: assistantContent},
	})
	require.NoError(t, err)
	return fmt.Sprintf("event: done\ndata: %s\n\n", payload)
}

func selectMathematics(t *testing.T, svc *tutorService) {
	t.Helper()
	require.NoError(t, svc.SelectSubject(context.Background(), "mathematics"))
}

func TestSendMessageStreamingSuccess(t *testing.T) {
	fake := newFakeTutorAPI()
	fake.streamBody = "event: chunk\ndata: {\"content\":\"Four\"}\n\n" +
		"event: chunk\ndata: {\"content\":\"!\"}\n\n" +
		doneEvent(t, "u-srv", "2+2?", "a-srv", "Four!")
	svc, _, sessionStore := newTestService(fake)
	selectMathematics(t, svc)

	err := svc.SendMessage(context.Background(), "mathematics", "2+2?")
	require.NoError(t, err)

	session, _ := sessionStore.Get("mathematics")
	// Exactly two messages regardless of how many chunks streamed.
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "u-srv", session.Messages[0].Id)
	assert.Equal(t, "2+2?", session.Messages[0].Content)
	assert.Equal(t, "a-srv", session.Messages[1].Id)
	assert.Equal(t, "Four!", session.Messages[1].Content)
	assert.False(t, session.IsLoading)

	assert.Len(t, fake.prepareCalls, 1)
	assert.Equal(t, []string{"prepared-user"}, fake.streamCalls)
	assert.Empty(t, fake.sendCalls, "streaming success must not hit the fallback path")
}

func TestSendMessageDoneThenConnectionDropDoesNotFallBack(t *testing.T) {
	fake := newFakeTutorAPI()
	// The connection drops abruptly after the final records arrived.
	fake.streamBody = "event: chunk\ndata: {\"content\":\"Four!\"}\n\n" +
		doneEvent(t, "u-srv", "2+2?", "a-srv", "Four!")
	fake.streamReadErr = io.ErrUnexpectedEOF
	fake.sendResp = &dto.SendMessageResponse{
		UserMessage:      dto.MessageResponse{Id: "u-dup", Content: "2+2?", IsUserMessage: true},
		AssistantMessage: dto.MessageResponse{Id: "a-dup", Content: "Four!"},
	}
	svc, _, sessionStore := newTestService(fake)
	selectMathematics(t, svc)

	err := svc.SendMessage(context.Background(), "mathematics", "2+2?")
	require.NoError(t, err)

	assert.Empty(t, fake.sendCalls, "reconciled done must not trigger the fallback")

	session, _ := sessionStore.Get("mathematics")
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "u-srv", session.Messages[0].Id)
	assert.Equal(t, "a-srv", session.Messages[1].Id)
	assert.False(t, session.IsLoading)
}

func TestSendMessageFallbackOnErrorEvent(t *testing.T) {
	fake := newFakeTutorAPI()
	// Partial chunks arrive before the stream reports failure.
	fake.streamBody = "event: chunk\ndata: {\"content\":\"Let me th\"}\n\n" +
		"event: error\ndata: {\"message\":\"model overloaded\"}\n\n"
	fake.sendResp = &dto.SendMessageResponse{
		UserMessage:      dto.MessageResponse{Id: "u-fb", Content: "2+2?", IsUserMessage: true},
		AssistantMessage: dto.MessageResponse{Id: "a-fb", Content: "The answer is four."},
	}
	svc, _, sessionStore := newTestService(fake)
	selectMathematics(t, svc)

	err := svc.SendMessage(context.Background(), "mathematics", "2+2?")
	require.NoError(t, err)

	require.Len(t, fake.sendCalls, 1, "fallback send must run exactly once")
	assert.Equal(t, "2+2?", fake.sendCalls[0].Content)

	session, _ := sessionStore.Get("mathematics")
	require.Len(t, session.Messages, 2)
	// The fallback supersedes the partially streamed content entirely.
	assert.Equal(t, "a-fb", session.Messages[1].Id)
	assert.Equal(t, "The answer is four.", session.Messages[1].Content)
	assert.False(t, session.IsLoading)
}

func TestSendMessageFallbackOnStreamOpenFailure(t *testing.T) {
	fake := newFakeTutorAPI()
	fake.prepareErr = errors.New("connection reset")
	fake.sendResp = &dto.SendMessageResponse{
		UserMessage:      dto.MessageResponse{Id: "u-fb", Content: "2+2?", IsUserMessage: true},
		AssistantMessage: dto.MessageResponse{Id: "a-fb", Content: "Four."},
	}
	svc, _, sessionStore := newTestService(fake)
	selectMathematics(t, svc)

	require.NoError(t, svc.AttachImage("image/png", "aGVsbG8="))

	err := svc.SendMessage(context.Background(), "mathematics", "2+2?")
	require.NoError(t, err)

	// Fallback carries the identical content and attachments.
	require.Len(t, fake.sendCalls, 1)
	assert.Equal(t, "2+2?", fake.sendCalls[0].Content)
	require.Len(t, fake.sendCalls[0].Attachments, 1)
	assert.Equal(t, "image/png", fake.sendCalls[0].Attachments[0].MimeType)
	assert.Equal(t, "aGVsbG8=", fake.sendCalls[0].Attachments[0].Base64)
	require.Len(t, fake.prepareCalls, 1)
	assert.Equal(t, fake.prepareCalls[0], fake.sendCalls[0])

	assert.Nil(t, sessionStore.PendingAttachment(), "attachment must clear on send")

	session, _ := sessionStore.Get("mathematics")
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "u-fb", session.Messages[0].Id)
}

func TestSendMessageTerminalFailureKeepsUserMessage(t *testing.T) {
	fake := newFakeTutorAPI()
	fake.prepareErr = errors.New("connection reset")
	fake.sendErr = &transport.APIError{Status: http.StatusInternalServerError, Message: "tutor backend exploded"}
	svc, _, sessionStore := newTestService(fake)
	selectMathematics(t, svc)

	err := svc.SendMessage(context.Background(), "mathematics", "2+2?")
	require.Error(t, err)

	session, _ := sessionStore.Get("mathematics")
	require.Len(t, session.Messages, 2)
	// Typed text stays visible; the placeholder carries the error.
	assert.Equal(t, "2+2?", session.Messages[0].Content)
	assert.True(t, session.Messages[0].IsOptimistic())
	assert.Equal(t, "tutor backend exploded", session.Messages[1].Content)
	assert.False(t, session.IsLoading)
}

func TestSendMessageRateLimitedMessage(t *testing.T) {
	fake := newFakeTutorAPI()
	fake.prepareErr = &transport.APIError{Status: http.StatusTooManyRequests}
	fake.sendErr = &transport.APIError{Status: http.StatusTooManyRequests}
	svc, _, sessionStore := newTestService(fake)
	selectMathematics(t, svc)

	err := svc.SendMessage(context.Background(), "mathematics", "2+2?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, transport.ErrRateLimited))

	session, _ := sessionStore.Get("mathematics")
	assert.Contains(t, session.Messages[1].Content, "wait a moment")
}

func TestSendMessageRequiresResolvedSession(t *testing.T) {
	fake := newFakeTutorAPI()
	svc, _, _ := newTestService(fake)

	err := svc.SendMessage(context.Background(), "mathematics", "hello")
	require.Error(t, err)
	assert.Empty(t, fake.prepareCalls)
	assert.Empty(t, fake.sendCalls)
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	fake := newFakeTutorAPI()
	svc, _, sessionStore := newTestService(fake)
	selectMathematics(t, svc)

	err := svc.SendMessage(context.Background(), "mathematics", "")
	require.Error(t, err)

	session, _ := sessionStore.Get("mathematics")
	assert.Empty(t, session.Messages)
}

func TestSendMessageValidationFailureKeepsAttachmentStaged(t *testing.T) {
	fake := newFakeTutorAPI()
	svc, _, sessionStore := newTestService(fake)
	selectMathematics(t, svc)

	require.NoError(t, svc.AttachImage("image/png", "aGVsbG8="))

	err := svc.SendMessage(context.Background(), "mathematics", "")
	require.Error(t, err)

	// A rejected send must not consume the staged attachment.
	pending := sessionStore.PendingAttachment()
	require.NotNil(t, pending)
	assert.Equal(t, "aGVsbG8=", pending.Base64)
}

func TestSendMessageRejectsConcurrentSend(t *testing.T) {
	fake := newFakeTutorAPI()
	svc, _, sessionStore := newTestService(fake)
	selectMathematics(t, svc)

	sessionStore.Update("mathematics", func(s *entity.Session) { s.IsLoading = true })

	err := svc.SendMessage(context.Background(), "mathematics", "hello")
	require.Error(t, err)
	assert.Empty(t, fake.prepareCalls)
}

func TestSendMessageStreamWithoutDoneFallsBack(t *testing.T) {
	fake := newFakeTutorAPI()
	fake.streamBody = "event: chunk\ndata: {\"content\":\"half\"}\n\n"
	fake.sendResp = &dto.SendMessageResponse{
		UserMessage:      dto.MessageResponse{Id: "u-fb", Content: "hello", IsUserMessage: true},
		AssistantMessage: dto.MessageResponse{Id: "a-fb", Content: "full reply"},
	}
	svc, _, sessionStore := newTestService(fake)
	selectMathematics(t, svc)

	err := svc.SendMessage(context.Background(), "mathematics", "hello")
	require.NoError(t, err)

	session, _ := sessionStore.Get("mathematics")
	assert.Equal(t, "full reply", session.Messages[len(session.Messages)-1].Content)
	require.Len(t, fake.sendCalls, 1)
}
