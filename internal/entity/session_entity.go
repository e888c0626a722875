package entity

import "time"

// Session is the client-side conversation state for one subject. The backend
// session id stays empty until resolution succeeds, so a failed resolution can
// be retried by re-selecting the subject.
type Session struct {
	SessionId string
	Messages  []ChatMessage
	IsLoading bool

	// Timer state. StartTime is non-nil only while this subject is the
	// active one; TotalDurationSeconds accumulates across intervals.
	StartTime            *time.Time
	TotalDurationSeconds int
}

// Clone returns a deep copy so store readers never share the message slice
// with a writer.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	dup := *s
	dup.Messages = make([]ChatMessage, len(s.Messages))
	copy(dup.Messages, s.Messages)
	if s.StartTime != nil {
		t := *s.StartTime
		dup.StartTime = &t
	}
	return &dup
}
