package bootstrap

import (
	"time"

	"tutor-chat-client/internal/api"
	"tutor-chat-client/internal/config"
	"tutor-chat-client/internal/pkg/logger"
	"tutor-chat-client/internal/service"
	"tutor-chat-client/internal/store"
	"tutor-chat-client/internal/transport"
)

// Container wires the client core. One container per user session; the store
// is injected into the orchestrator and timer rather than living as ambient
// package state.
type Container struct {
	TutorAPI     api.ITutorAPI
	SessionStore *store.SessionStore
	Timer        *service.SessionTimer
	TutorService service.ITutorService
	Logger       logger.ILogger
}

func NewContainer(cfg *config.Config, log logger.ILogger) *Container {
	client := transport.NewClient(
		cfg.API.BaseURL,
		cfg.API.Token,
		time.Duration(cfg.API.TimeoutSeconds)*time.Second,
	)

	tutorAPI := api.NewTutorAPI(client)
	sessionStore := store.NewSessionStore()
	timer := service.NewSessionTimer(tutorAPI, sessionStore, log)
	tutorService := service.NewTutorService(tutorAPI, sessionStore, timer, log)

	return &Container{
		TutorAPI:     tutorAPI,
		SessionStore: sessionStore,
		Timer:        timer,
		TutorService: tutorService,
		Logger:       log,
	}
}
