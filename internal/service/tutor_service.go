package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"tutor-chat-client/internal/api"
	"tutor-chat-client/internal/constant"
	"tutor-chat-client/internal/entity"
	"tutor-chat-client/internal/mapper"
	"tutor-chat-client/internal/pkg/logger"
	"tutor-chat-client/internal/store"
)

// ITutorService is the session orchestration core: subject selection with
// get-or-create session resolution, the send-message protocol with streaming
// and fallback, and study-time tracking.
type ITutorService interface {
	SelectSubject(ctx context.Context, subjectId string) error
	SendMessage(ctx context.Context, subjectId, content string) error
	ListSubjects(ctx context.Context) ([]entity.Subject, error)
	AttachImage(mimeType, base64Data string) error
	StopActiveTimer()
	Reset()
	Shutdown()
}

type tutorService struct {
	api      api.ITutorAPI
	store    *store.SessionStore
	timer    *SessionTimer
	mapper   *mapper.MessageMapper
	logger   logger.ILogger
	validate *validator.Validate

	nowFn func() time.Time
}

func NewTutorService(
	tutorAPI api.ITutorAPI,
	sessionStore *store.SessionStore,
	timer *SessionTimer,
	log logger.ILogger,
) ITutorService {
	return &tutorService{
		api:      tutorAPI,
		store:    sessionStore,
		timer:    timer,
		mapper:   mapper.NewMessageMapper(),
		logger:   log,
		validate: validator.New(),
		nowFn:    time.Now,
	}
}

// SelectSubject makes subjectId the active subject. The previous subject's
// timer is stopped first so study time is never double-counted. When the
// subject has no resolved backend session yet, resolution runs; on resolution
// failure the current subject stays set and the session stays unresolved, so
// re-selecting the subject retries.
func (s *tutorService) SelectSubject(ctx context.Context, subjectId string) error {
	if subjectId == "" {
		return fmt.Errorf("select subject: subject id is required")
	}

	previous := s.store.CurrentSubject()
	if previous != "" && previous != subjectId {
		s.timer.Stop(previous)
	}
	s.store.SetCurrentSubject(subjectId)

	session := s.store.Ensure(subjectId)
	if session.SessionId == "" {
		s.store.Update(subjectId, func(sess *entity.Session) {
			sess.IsLoading = true
		})

		resolved, err := s.resolveSession(ctx, subjectId)
		if err != nil {
			s.store.Update(subjectId, func(sess *entity.Session) {
				sess.IsLoading = false
			})
			s.logger.Warn("TutorService", "session resolution failed", map[string]interface{}{
				"subject_id": subjectId,
				"error":      err.Error(),
			})
			return fmt.Errorf("select subject: %w", err)
		}

		s.store.Update(subjectId, func(sess *entity.Session) {
			sess.SessionId = resolved.sessionId
			sess.Messages = resolved.messages
			sess.IsLoading = false
		})
	}

	s.timer.Start(subjectId)
	return nil
}

type resolvedSession struct {
	sessionId string
	messages  []entity.ChatMessage
}

// resolveSession reuses the most recent persisted session for the subject, or
// creates one. The backend lists sessions most-recent-first, so reusing the
// head keeps conversation continuity across visits without piling up
// duplicate sessions.
func (s *tutorService) resolveSession(ctx context.Context, subjectId string) (*resolvedSession, error) {
	sessions, err := s.api.ListSessions(ctx, subjectId, "")
	if err != nil {
		return nil, err
	}

	if len(sessions) > 0 {
		existing := sessions[0]
		history, err := s.api.GetMessages(ctx, existing.Id)
		if err != nil {
			return nil, err
		}
		return &resolvedSession{
			sessionId: existing.Id,
			messages:  s.mapper.MessagesToEntities(history),
		}, nil
	}

	created, err := s.api.CreateSession(ctx, subjectId)
	if err != nil {
		return nil, err
	}
	return &resolvedSession{
		sessionId: created.Id,
		messages:  []entity.ChatMessage{},
	}, nil
}

func (s *tutorService) ListSubjects(ctx context.Context) ([]entity.Subject, error) {
	subjects, err := s.api.ListSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	out := make([]entity.Subject, 0, len(subjects))
	for _, sub := range subjects {
		out = append(out, entity.Subject{
			Id:         sub.Id,
			Name:       sub.Name,
			Difficulty: sub.Difficulty,
			Concepts:   sub.Concepts,
		})
	}
	return out, nil
}

// AttachImage stages one image for the next send. A second attach before the
// send replaces the staged one (single-file selection).
func (s *tutorService) AttachImage(mimeType, base64Data string) error {
	if mimeType == "" || base64Data == "" {
		return fmt.Errorf("attach image: mime type and data are required")
	}
	s.store.SetPendingAttachment(&entity.Attachment{
		Type:     constant.AttachmentTypeImage,
		MimeType: mimeType,
		Base64:   base64Data,
	})
	return nil
}

// StopActiveTimer flushes the currently timed subject, the page-unload
// analogue for the terminal client.
func (s *tutorService) StopActiveTimer() {
	if current := s.store.CurrentSubject(); current != "" {
		s.timer.Stop(current)
	}
}

func (s *tutorService) Reset() {
	s.store.Reset()
}

// Shutdown stops the active timer and waits for in-flight duration flushes.
func (s *tutorService) Shutdown() {
	s.StopActiveTimer()
	s.timer.Wait()
}
