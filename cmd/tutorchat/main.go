package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"tutor-chat-client/internal/bootstrap"
	"tutor-chat-client/internal/config"
	"tutor-chat-client/internal/constant"
	"tutor-chat-client/internal/entity"
	"tutor-chat-client/internal/mockserver"
	"tutor-chat-client/internal/pkg/logger"
	"tutor-chat-client/internal/service"
	"tutor-chat-client/internal/store"
)

var (
	subjectColor   = color.New(color.FgCyan, color.Bold)
	assistantColor = color.New(color.FgGreen)
	errorColor     = color.New(color.FgRed)
	promptColor    = color.New(color.FgYellow)
)

func main() {
	cfg := config.Load()

	// File-only logging keeps the streamed reply clean on the terminal.
	sysLogger := logger.NewFileOnlyLogger(cfg.App.LogFilePath)
	defer sysLogger.Sync()

	if cfg.API.Token == "" {
		// Dev convenience: mint a token the local mock backend accepts.
		token, err := mockserver.MintToken(cfg.Mock.JWTSecret, "dev-user")
		if err != nil {
			log.Fatalf("No TUTOR_API_TOKEN set and dev token minting failed: %v", err)
		}
		cfg.API.Token = token
	}

	container := bootstrap.NewContainer(cfg, sysLogger)
	svc := container.TutorService
	sessionStore := container.SessionStore

	// The terminal analogue of a page-unload listener: flush the active
	// subject's study time before exiting.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		svc.Shutdown()
		os.Exit(0)
	}()

	ctx := context.Background()
	reader := bufio.NewScanner(os.Stdin)
	reader.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	subjects, err := svc.ListSubjects(ctx)
	if err != nil {
		errorColor.Printf("Could not load subjects: %v\n", err)
		os.Exit(1)
	}
	if err := pickSubject(ctx, svc, sessionStore, reader, subjects); err != nil {
		errorColor.Printf("%v\n", err)
		os.Exit(1)
	}

	fmt.Println("Commands: /subject to switch, /attach <image file>, /reset, /quit")

	for {
		promptColor.Print("you> ")
		if !reader.Scan() {
			break
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			svc.Shutdown()
			return
		case line == "/reset":
			svc.Reset()
			fmt.Println("Cleared all local sessions.")
			if err := pickSubject(ctx, svc, sessionStore, reader, subjects); err != nil {
				errorColor.Printf("%v\n", err)
			}
		case line == "/subject":
			if err := pickSubject(ctx, svc, sessionStore, reader, subjects); err != nil {
				errorColor.Printf("%v\n", err)
			}
		case strings.HasPrefix(line, "/attach "):
			attach(svc, strings.TrimSpace(strings.TrimPrefix(line, "/attach ")))
		default:
			send(ctx, svc, sessionStore, line)
		}
	}
	svc.Shutdown()
}

func pickSubject(
	ctx context.Context,
	svc service.ITutorService,
	sessionStore *store.SessionStore,
	reader *bufio.Scanner,
	subjects []entity.Subject,
) error {
	fmt.Println("Subjects:")
	for i, sub := range subjects {
		subjectColor.Printf("  %d. %s", i+1, sub.Name)
		fmt.Printf(" (%s: %s)\n", sub.Difficulty, strings.Join(sub.Concepts, ", "))
	}
	promptColor.Print("pick> ")
	if !reader.Scan() {
		return fmt.Errorf("no subject selected")
	}
	choice := strings.TrimSpace(reader.Text())

	subjectId := choice
	if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(subjects) {
		subjectId = subjects[n-1].Id
	}

	if err := svc.SelectSubject(ctx, subjectId); err != nil {
		return fmt.Errorf("could not open %q (try selecting it again): %w", subjectId, err)
	}

	if session, found := sessionStore.Get(subjectId); found {
		for _, msg := range session.Messages {
			printMessage(msg)
		}
	}
	return nil
}

func send(ctx context.Context, svc service.ITutorService, sessionStore *store.SessionStore, content string) {
	subjectId := sessionStore.CurrentSubject()

	// Render the assistant placeholder as it fills with streamed chunks.
	done := make(chan struct{})
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		printed := 0
		ticker := time.NewTicker(60 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				printed += printTail(sessionStore, subjectId, printed)
			case <-done:
				printed += printTail(sessionStore, subjectId, printed)
				fmt.Println()
				return
			}
		}
	}()

	assistantColor.Print("tutor> ")
	err := svc.SendMessage(ctx, subjectId, content)
	close(done)
	<-rendered

	if err != nil {
		errorColor.Printf("! %v\n", err)
	}
}

// printTail prints whatever portion of the latest assistant message has not
// been printed yet and returns how many bytes it wrote.
func printTail(sessionStore *store.SessionStore, subjectId string, printed int) int {
	session, found := sessionStore.Get(subjectId)
	if !found || len(session.Messages) == 0 {
		return 0
	}
	last := session.Messages[len(session.Messages)-1]
	if last.Role != constant.ChatMessageRoleAssistant || len(last.Content) <= printed {
		return 0
	}
	assistantColor.Print(last.Content[printed:])
	return len(last.Content) - printed
}

func attach(svc service.ITutorService, path string) {
	var mimeType string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mimeType = "image/png"
	case ".jpg", ".jpeg":
		mimeType = "image/jpeg"
	default:
		errorColor.Println("Only .png and .jpg attachments are supported.")
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		errorColor.Printf("Could not read %s: %v\n", path, err)
		return
	}
	if err := svc.AttachImage(mimeType, base64.StdEncoding.EncodeToString(data)); err != nil {
		errorColor.Printf("%v\n", err)
		return
	}
	fmt.Printf("Attached %s; it will be sent with your next message.\n", filepath.Base(path))
}

func printMessage(msg entity.ChatMessage) {
	if msg.Role == constant.ChatMessageRoleUser {
		promptColor.Print("you> ")
	} else {
		assistantColor.Print("tutor> ")
	}
	fmt.Println(msg.Content)
	for _, a := range msg.Attachments {
		preview := a.Preview()
		fmt.Printf("  [attachment: %s, %d bytes]\n", preview.Type, len(preview.URL))
	}
}
