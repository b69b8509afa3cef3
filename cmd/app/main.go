package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/demonstrikkk/HoneyCatcher/internal/config"
	"github.com/demonstrikkk/HoneyCatcher/pkg/callback"
	"github.com/demonstrikkk/HoneyCatcher/pkg/elevenlabs"
	"github.com/demonstrikkk/HoneyCatcher/pkg/log"
	"github.com/demonstrikkk/HoneyCatcher/pkg/redis"
	"github.com/demonstrikkk/HoneyCatcher/pkg/safebrowse"
	"github.com/demonstrikkk/HoneyCatcher/pkg/transcriber"
	websocketPkg "github.com/demonstrikkk/HoneyCatcher/pkg/websocket"
	"github.com/joho/godotenv"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Fatalf("Error loading .env file: %v", err)
	}

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	redisServer := redis.New()
	registry := websocketPkg.NewRegistry()
	sttClient := transcriber.New()
	synthesizer := elevenlabs.New()
	urlScanner := safebrowse.New()
	notifier := callback.New()

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithDatabase(),
		config.WithRedisServer(redisServer),
		config.WithRegistry(registry),
		config.WithTranscriber(sttClient),
		config.WithReasoner(),
		config.WithSynthesizer(synthesizer),
		config.WithURLScanner(urlScanner),
		config.WithNotifier(notifier),
		config.WithMiddleware(),
		config.WithS3Client(),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")
	sttClient.Close()
}
