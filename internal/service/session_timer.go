package service

import (
	"context"
	"sync"
	"time"

	"tutor-chat-client/internal/api"
	"tutor-chat-client/internal/entity"
	"tutor-chat-client/internal/pkg/logger"
	"tutor-chat-client/internal/store"
)

// SessionTimer measures active study time per subject. At most one subject is
// being timed at any moment; the service stops the previous subject's timer
// before starting the next one's.
type SessionTimer struct {
	api    api.ITutorAPI
	store  *store.SessionStore
	logger logger.ILogger

	nowFn func() time.Time
	wg    sync.WaitGroup
}

func NewSessionTimer(tutorAPI api.ITutorAPI, sessionStore *store.SessionStore, log logger.ILogger) *SessionTimer {
	return &SessionTimer{
		api:    tutorAPI,
		store:  sessionStore,
		logger: log,
		nowFn:  time.Now,
	}
}

// Start marks the beginning of a measurement interval for subjectId. Calling
// it while already running overwrites the start, which begins a new interval
// rather than extending the old one.
func (t *SessionTimer) Start(subjectId string) {
	now := t.nowFn()
	t.store.Update(subjectId, func(s *entity.Session) {
		s.StartTime = &now
	})
}

// Stop accumulates the elapsed interval into the session's total and flushes
// the new total to the backend. The flush is fire-and-forget: duration
// tracking is best-effort telemetry, so a failed flush is logged and never
// surfaced. StartTime is cleared even when there is nothing to flush, which
// keeps the one-running-timer invariant across subject switches.
func (t *SessionTimer) Stop(subjectId string) {
	session, found := t.store.Get(subjectId)
	if !found {
		return
	}

	flushTotal := -1
	if session.SessionId != "" && session.StartTime != nil {
		elapsed := int(t.nowFn().Sub(*session.StartTime).Seconds())
		flushTotal = session.TotalDurationSeconds + elapsed
	}

	t.store.Update(subjectId, func(s *entity.Session) {
		if flushTotal >= 0 {
			s.TotalDurationSeconds = flushTotal
		}
		s.StartTime = nil
	})

	if flushTotal < 0 {
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := t.api.UpdateDuration(ctx, session.SessionId, flushTotal); err != nil {
			t.logger.Warn("SessionTimer", "duration flush failed", map[string]interface{}{
				"subject_id": subjectId,
				"session_id": session.SessionId,
				"error":      err.Error(),
			})
		}
	}()
}

// Wait blocks until in-flight duration flushes finish. The client calls it on
// shutdown so the final flush gets a chance to reach the backend.
func (t *SessionTimer) Wait() {
	t.wg.Wait()
}
