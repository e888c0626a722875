package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tutor-chat-client/internal/entity"
)

func TestEnsureCreatesOnce(t *testing.T) {
	s := NewSessionStore()

	first := s.Ensure("mathematics")
	assert.NotNil(t, first)
	assert.Empty(t, first.SessionId)
	assert.Empty(t, first.Messages)

	s.Update("mathematics", func(sess *entity.Session) {
		sess.SessionId = "abc"
	})

	second := s.Ensure("mathematics")
	assert.Equal(t, "abc", second.SessionId, "Ensure must not recreate an existing session")
}

func TestUpdateIsAtomicReplace(t *testing.T) {
	s := NewSessionStore()
	s.Ensure("physics")

	s.Update("physics", func(sess *entity.Session) {
		sess.SessionId = "sess-1"
		sess.Messages = append(sess.Messages, entity.ChatMessage{Id: "m1", Content: "hello"})
		sess.IsLoading = true
	})

	got, found := s.Get("physics")
	assert.True(t, found)
	assert.Equal(t, "sess-1", got.SessionId)
	assert.Len(t, got.Messages, 1)
	assert.True(t, got.IsLoading)
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	s := NewSessionStore()
	s.Ensure("physics")
	s.Update("physics", func(sess *entity.Session) {
		sess.Messages = []entity.ChatMessage{{Id: "m1", Content: "original"}}
	})

	copy1, _ := s.Get("physics")
	copy1.Messages[0].Content = "mutated"
	copy1.SessionId = "hijacked"

	copy2, _ := s.Get("physics")
	assert.Equal(t, "original", copy2.Messages[0].Content)
	assert.Empty(t, copy2.SessionId)
}

func TestUpdateCreatesMissingRecord(t *testing.T) {
	s := NewSessionStore()

	s.Update("chemistry", func(sess *entity.Session) {
		sess.IsLoading = true
	})

	got, found := s.Get("chemistry")
	assert.True(t, found)
	assert.True(t, got.IsLoading)
}

func TestTakePendingAttachmentClears(t *testing.T) {
	s := NewSessionStore()
	s.SetPendingAttachment(&entity.Attachment{Type: "image", MimeType: "image/png", Base64: "aGk="})

	first := s.TakePendingAttachment()
	assert.NotNil(t, first)
	assert.Equal(t, "image/png", first.MimeType)

	second := s.TakePendingAttachment()
	assert.Nil(t, second, "attachment must not be attachable twice")
}

func TestReset(t *testing.T) {
	s := NewSessionStore()
	now := time.Now()
	s.Ensure("mathematics")
	s.Update("mathematics", func(sess *entity.Session) {
		sess.SessionId = "sess-1"
		sess.StartTime = &now
	})
	s.SetCurrentSubject("mathematics")
	s.SetPendingAttachment(&entity.Attachment{Type: "image"})

	s.Reset()

	_, found := s.Get("mathematics")
	assert.False(t, found)
	assert.Empty(t, s.CurrentSubject())
	assert.Nil(t, s.PendingAttachment())
}
