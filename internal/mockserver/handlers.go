package mockserver

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"tutor-chat-client/internal/dto"
)

func (s *Server) createSession(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}

	record := &sessionRecord{
		Id:        uuid.NewString(),
		UserId:    userIdFrom(ctx),
		Subject:   req.Subject,
		CreatedAt: time.Now(),
		Messages:  []dto.MessageResponse{},
	}

	s.mu.Lock()
	s.sessions[record.Id] = record
	s.mu.Unlock()

	return ctx.Status(fiber.StatusCreated).JSON(dto.ChatSessionResponse{
		Id:        record.Id,
		UserId:    record.UserId,
		Subject:   record.Subject,
		CreatedAt: record.CreatedAt,
	})
}

func (s *Server) listSessions(ctx *fiber.Ctx) error {
	subject := ctx.Query("subject")
	search := strings.ToLower(ctx.Query("search"))
	userId := userIdFrom(ctx)

	s.mu.Lock()
	var out []dto.ChatSessionResponse
	for _, record := range s.sessions {
		if record.UserId != userId {
			continue
		}
		if subject != "" && record.Subject != subject {
			continue
		}
		if search != "" && !s.matchesSearch(record, search) {
			continue
		}
		out = append(out, dto.ChatSessionResponse{
			Id:        record.Id,
			UserId:    record.UserId,
			Subject:   record.Subject,
			CreatedAt: record.CreatedAt,
		})
	}
	s.mu.Unlock()

	// Most-recent-first, the ordering the client's get-or-create relies on.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if out == nil {
		out = []dto.ChatSessionResponse{}
	}
	return ctx.JSON(out)
}

func (s *Server) matchesSearch(record *sessionRecord, search string) bool {
	for _, msg := range record.Messages {
		if strings.Contains(strings.ToLower(msg.Content), search) {
			return true
		}
	}
	return false
}

func (s *Server) getMessages(ctx *fiber.Ctx) error {
	s.mu.Lock()
	record, ok := s.sessions[ctx.Params("id")]
	if !ok {
		s.mu.Unlock()
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Session not found"})
	}
	messages := make([]dto.MessageResponse, len(record.Messages))
	copy(messages, record.Messages)
	s.mu.Unlock()

	return ctx.JSON(messages)
}

// sendMessage is the non-streaming path: persist the user message, compose the
// full reply, return both records.
func (s *Server) sendMessage(ctx *fiber.Ctx) error {
	if s.shouldRateLimit() {
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"message": "Rate limit exceeded. Please wait a moment."})
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil || req.Content == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Message content is required"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sessions[ctx.Params("id")]
	if !ok {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Session not found"})
	}

	userMsg := s.appendUserMessage(record, &req)
	assistantMsg := s.appendAssistantMessage(record, req.Content)

	return ctx.JSON(dto.SendMessageResponse{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	})
}

// prepareMessage persists the user message ahead of the read-only stream GET.
func (s *Server) prepareMessage(ctx *fiber.Ctx) error {
	if s.shouldRateLimit() {
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"message": "Rate limit exceeded. Please wait a moment."})
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil || req.Content == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Message content is required"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sessions[ctx.Params("id")]
	if !ok {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Session not found"})
	}

	userMsg := s.appendUserMessage(record, &req)
	return ctx.JSON(dto.PrepareMessageResponse{UserMessage: userMsg})
}

func (s *Server) streamMessage(ctx *fiber.Ctx) error {
	sessionId := ctx.Params("id")
	messageId := ctx.Query("messageId")

	s.mu.Lock()
	record, ok := s.sessions[sessionId]
	if !ok {
		s.mu.Unlock()
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Session not found"})
	}
	var userMsg *dto.MessageResponse
	for i := range record.Messages {
		if record.Messages[i].Id == messageId {
			userMsg = &record.Messages[i]
			break
		}
	}
	if userMsg == nil {
		s.mu.Unlock()
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Prepared message not found"})
	}
	content := userMsg.Content
	userRecord := *userMsg
	s.mu.Unlock()

	reply := composeReply(content)
	chunkDelay := time.Duration(s.cfg.ChunkDelayMs) * time.Millisecond

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		writeEvent(w, "user_message", userRecord)

		for _, piece := range splitReply(reply) {
			writeEvent(w, "chunk", dto.StreamChunkData{Content: piece})
			if err := w.Flush(); err != nil {
				return
			}
			time.Sleep(chunkDelay)
		}

		s.mu.Lock()
		assistantMsg := s.appendAssistantMessage(record, content)
		s.mu.Unlock()

		writeEvent(w, "done", dto.SendMessageResponse{
			UserMessage:      userRecord,
			AssistantMessage: assistantMsg,
		})
		_ = w.Flush()
	})

	return nil
}

func (s *Server) updateDuration(ctx *fiber.Ctx) error {
	var req dto.UpdateDurationRequest
	if err := ctx.BodyParser(&req); err != nil || req.DurationSeconds < 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid duration"})
	}

	sessionId := ctx.Params("id")
	s.mu.Lock()
	_, ok := s.sessions[sessionId]
	if ok {
		s.durations[sessionId] = req.DurationSeconds
	}
	s.mu.Unlock()

	if !ok {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Session not found"})
	}
	return ctx.JSON(dto.UpdateDurationResponse{Success: true})
}

func (s *Server) listSubjects(ctx *fiber.Ctx) error {
	return ctx.JSON([]dto.SubjectResponse{
		{Id: "mathematics", Name: "Mathematics", Difficulty: "intermediate", Concepts: []string{"algebra", "geometry", "calculus"}},
		{Id: "physics", Name: "Physics", Difficulty: "advanced", Concepts: []string{"mechanics", "waves", "thermodynamics"}},
		{Id: "chemistry", Name: "Chemistry", Difficulty: "intermediate", Concepts: []string{"stoichiometry", "bonding", "kinetics"}},
		{Id: "history", Name: "History", Difficulty: "beginner", Concepts: []string{"ancient", "medieval", "modern"}},
	})
}

// DurationFor reports the last flushed duration for a session; tests use it.
func (s *Server) DurationFor(sessionId string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.durations[sessionId]
	return d, ok
}

func (s *Server) shouldRateLimit() bool {
	if s.cfg.RateLimitEvery <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendCount++
	return s.sendCount%s.cfg.RateLimitEvery == 0
}

func (s *Server) appendUserMessage(record *sessionRecord, req *dto.SendMessageRequest) dto.MessageResponse {
	msg := dto.MessageResponse{
		Id:            uuid.NewString(),
		Content:       req.Content,
		IsUserMessage: true,
		CreatedAt:     time.Now(),
		Attachments:   req.Attachments,
	}
	record.Messages = append(record.Messages, msg)
	return msg
}

func (s *Server) appendAssistantMessage(record *sessionRecord, userContent string) dto.MessageResponse {
	msg := dto.MessageResponse{
		Id:            uuid.NewString(),
		Content:       composeReply(userContent),
		IsUserMessage: false,
		CreatedAt:     time.Now(),
	}
	record.Messages = append(record.Messages, msg)
	return msg
}

func composeReply(userContent string) string {
	return fmt.Sprintf(
		"Good question! Let's work through %q together. Start by breaking the problem into smaller steps, then check each step before moving on.",
		userContent,
	)
}

// splitReply cuts the reply into word-sized chunks so the stream exercises
// incremental delivery.
func splitReply(reply string) []string {
	words := strings.Split(reply, " ")
	pieces := make([]string, 0, len(words))
	for i, word := range words {
		if i == 0 {
			pieces = append(pieces, word)
		} else {
			pieces = append(pieces, " "+word)
		}
	}
	return pieces
}

func writeEvent(w *bufio.Writer, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
