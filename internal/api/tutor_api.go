package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"tutor-chat-client/internal/dto"
	"tutor-chat-client/internal/stream"
	"tutor-chat-client/internal/transport"
)

// ITutorAPI binds the tutor backend's REST/stream endpoints.
type ITutorAPI interface {
	CreateSession(ctx context.Context, subject string) (*dto.ChatSessionResponse, error)
	ListSessions(ctx context.Context, subject, search string) ([]dto.ChatSessionResponse, error)
	GetMessages(ctx context.Context, sessionId string) ([]dto.MessageResponse, error)
	SendMessage(ctx context.Context, sessionId string, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	PrepareMessage(ctx context.Context, sessionId string, request *dto.SendMessageRequest) (*dto.PrepareMessageResponse, error)
	StreamMessage(ctx context.Context, sessionId, messageId string) (*stream.Stream, error)
	UpdateDuration(ctx context.Context, sessionId string, durationSeconds int) error
	ListSubjects(ctx context.Context) ([]dto.SubjectResponse, error)
}

type tutorAPI struct {
	client *transport.Client
}

func NewTutorAPI(client *transport.Client) ITutorAPI {
	return &tutorAPI{client: client}
}

func (a *tutorAPI) CreateSession(ctx context.Context, subject string) (*dto.ChatSessionResponse, error) {
	var out dto.ChatSessionResponse
	req := dto.CreateSessionRequest{Subject: subject}
	if err := a.client.DoJSON(ctx, http.MethodPost, "/tutor/sessions", &req, &out); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &out, nil
}

func (a *tutorAPI) ListSessions(ctx context.Context, subject, search string) ([]dto.ChatSessionResponse, error) {
	query := url.Values{}
	if subject != "" {
		query.Set("subject", subject)
	}
	if search != "" {
		query.Set("search", search)
	}
	path := "/tutor/sessions"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var out []dto.ChatSessionResponse
	if err := a.client.DoJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

func (a *tutorAPI) GetMessages(ctx context.Context, sessionId string) ([]dto.MessageResponse, error) {
	var out []dto.MessageResponse
	path := fmt.Sprintf("/tutor/sessions/%s/messages", sessionId)
	if err := a.client.DoJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return out, nil
}

func (a *tutorAPI) SendMessage(ctx context.Context, sessionId string, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	var out dto.SendMessageResponse
	path := fmt.Sprintf("/tutor/sessions/%s/messages", sessionId)
	if err := a.client.DoJSON(ctx, http.MethodPost, path, request, &out); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &out, nil
}

// PrepareMessage persists the user message ahead of streaming. The stream
// itself is a GET and cannot carry the message body, so persistence happens
// out-of-band first.
func (a *tutorAPI) PrepareMessage(ctx context.Context, sessionId string, request *dto.SendMessageRequest) (*dto.PrepareMessageResponse, error) {
	var out dto.PrepareMessageResponse
	path := fmt.Sprintf("/tutor/sessions/%s/messages/prepare", sessionId)
	if err := a.client.DoJSON(ctx, http.MethodPost, path, request, &out); err != nil {
		return nil, fmt.Errorf("prepare message: %w", err)
	}
	return &out, nil
}

func (a *tutorAPI) StreamMessage(ctx context.Context, sessionId, messageId string) (*stream.Stream, error) {
	path := fmt.Sprintf("/tutor/sessions/%s/messages/stream", sessionId)
	query := url.Values{}
	query.Set("messageId", messageId)

	body, err := a.client.OpenStream(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return stream.Decode(ctx, body), nil
}

func (a *tutorAPI) UpdateDuration(ctx context.Context, sessionId string, durationSeconds int) error {
	path := fmt.Sprintf("/tutor/sessions/%s/duration", sessionId)
	req := dto.UpdateDurationRequest{DurationSeconds: durationSeconds}

	var out dto.UpdateDurationResponse
	if err := a.client.DoJSON(ctx, http.MethodPost, path, &req, &out); err != nil {
		return fmt.Errorf("update duration: %w", err)
	}
	return nil
}

func (a *tutorAPI) ListSubjects(ctx context.Context) ([]dto.SubjectResponse, error) {
	var out []dto.SubjectResponse
	if err := a.client.DoJSON(ctx, http.MethodGet, "/tutor/subjects", nil, &out); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return out, nil
}
