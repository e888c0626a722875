package mockserver

import (
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/golang-jwt/jwt/v5"

	"tutor-chat-client/internal/config"
	"tutor-chat-client/internal/dto"
)

// Server is a self-contained tutor backend for local development and
// integration tests. It implements the whole REST/stream contract the client
// core depends on, with canned assistant replies and per-user in-memory state.
type Server struct {
	app *fiber.App
	cfg config.MockServerConfig

	mu        sync.Mutex
	sessions  map[string]*sessionRecord
	durations map[string]int
	sendCount int
}

type sessionRecord struct {
	Id        string
	UserId    string
	Subject   string
	CreatedAt time.Time
	Messages  []dto.MessageResponse
}

func New(cfg config.MockServerConfig) *Server {
	s := &Server{
		cfg:       cfg,
		sessions:  make(map[string]*sessionRecord),
		durations: make(map[string]int),
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB, room for base64 image attachments
	})

	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	api := app.Group("/api")
	tutor := api.Group("/tutor", s.jwtMiddleware)

	tutor.Post("/sessions", s.createSession)
	tutor.Get("/sessions", s.listSessions)
	tutor.Get("/sessions/:id/messages", s.getMessages)
	tutor.Post("/sessions/:id/messages", s.sendMessage)
	tutor.Post("/sessions/:id/messages/prepare", s.prepareMessage)
	tutor.Get("/sessions/:id/messages/stream", s.streamMessage)
	tutor.Post("/sessions/:id/duration", s.updateDuration)
	tutor.Get("/subjects", s.listSubjects)

	s.app = app
	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen() error {
	return s.app.Listen(":" + s.cfg.Port)
}

// Listener serves on a caller-provided listener; integration tests use it to
// bind a random port.
func (s *Server) Listener(ln net.Listener) error {
	return s.app.Listener(ln)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) jwtMiddleware(ctx *fiber.Ctx) error {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Missing token"})
	}
	tokenStr := authHeader[7:]

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid claims"})
	}

	ctx.Locals("user_id", claims["user_id"])
	return ctx.Next()
}

// MintToken issues a dev bearer token accepted by the middleware above.
func MintToken(secret, userId string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userId,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func userIdFrom(ctx *fiber.Ctx) string {
	if v, ok := ctx.Locals("user_id").(string); ok {
		return v
	}
	return "dev-user"
}
