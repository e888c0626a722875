package main

import (
	"log"

	"tutor-chat-client/internal/config"
	"tutor-chat-client/internal/mockserver"
)

func main() {
	cfg := config.Load()

	token, err := mockserver.MintToken(cfg.Mock.JWTSecret, "dev-user")
	if err != nil {
		log.Fatalf("Unable to mint dev token: %v", err)
	}
	log.Printf("Mock tutor backend listening on :%s", cfg.Mock.Port)
	log.Printf("Dev token (export as TUTOR_API_TOKEN): %s", token)

	srv := mockserver.New(cfg.Mock)
	log.Fatal(srv.Listen())
}
