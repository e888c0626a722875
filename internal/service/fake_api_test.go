package service

import (
	"context"
	"io"
	"strings"
	"sync"

	"tutor-chat-client/internal/api"
	"tutor-chat-client/internal/dto"
	"tutor-chat-client/internal/stream"
)

// fakeTutorAPI is a programmable in-memory stand-in for the backend bindings.
type fakeTutorAPI struct {
	mu sync.Mutex

	sessions   []dto.ChatSessionResponse
	history    []dto.MessageResponse
	sendResp   *dto.SendMessageResponse
	streamBody string

	// When set, reads past streamBody fail with this instead of EOF.
	streamReadErr error

	listErr     error
	messagesErr error
	createErr   error
	prepareErr  error
	streamErr   error
	sendErr     error

	listCalls    int
	createCalls  int
	prepareCalls []dto.SendMessageRequest
	sendCalls    []dto.SendMessageRequest
	streamCalls  []string
	durations    map[string]int
}

var _ api.ITutorAPI = (*fakeTutorAPI)(nil)

func newFakeTutorAPI() *fakeTutorAPI {
	return &fakeTutorAPI{durations: make(map[string]int)}
}

func (f *fakeTutorAPI) CreateSession(ctx context.Context, subject string) (*dto.ChatSessionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	created := dto.ChatSessionResponse{Id: "created-" + subject, Subject: subject}
	f.sessions = append([]dto.ChatSessionResponse{created}, f.sessions...)
	return &created, nil
}

func (f *fakeTutorAPI) ListSessions(ctx context.Context, subject, search string) ([]dto.ChatSessionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []dto.ChatSessionResponse
	for _, s := range f.sessions {
		if subject == "" || s.Subject == subject {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeTutorAPI) GetMessages(ctx context.Context, sessionId string) ([]dto.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	return f.history, nil
}

func (f *fakeTutorAPI) SendMessage(ctx context.Context, sessionId string, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls = append(f.sendCalls, *request)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.sendResp, nil
}

func (f *fakeTutorAPI) PrepareMessage(ctx context.Context, sessionId string, request *dto.SendMessageRequest) (*dto.PrepareMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepareCalls = append(f.prepareCalls, *request)
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	return &dto.PrepareMessageResponse{
		UserMessage: dto.MessageResponse{Id: "prepared-user", Content: request.Content, IsUserMessage: true},
	}, nil
}

func (f *fakeTutorAPI) StreamMessage(ctx context.Context, sessionId, messageId string) (*stream.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamCalls = append(f.streamCalls, messageId)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	var r io.Reader = strings.NewReader(f.streamBody)
	if f.streamReadErr != nil {
		r = io.MultiReader(r, errorReader{err: f.streamReadErr})
	}
	return stream.Decode(ctx, io.NopCloser(r)), nil
}

type errorReader struct{ err error }

func (r errorReader) Read([]byte) (int, error) { return 0, r.err }

func (f *fakeTutorAPI) UpdateDuration(ctx context.Context, sessionId string, durationSeconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations[sessionId] = durationSeconds
	return nil
}

func (f *fakeTutorAPI) ListSubjects(ctx context.Context) ([]dto.SubjectResponse, error) {
	return []dto.SubjectResponse{
		{Id: "mathematics", Name: "Mathematics"},
		{Id: "physics", Name: "Physics"},
	}, nil
}

func (f *fakeTutorAPI) durationFor(sessionId string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.durations[sessionId]
	return d, ok
}

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }
