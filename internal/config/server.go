package config

import (
	"fmt"
	"os"

	"github.com/demonstrikkk/HoneyCatcher/database/postgres"
	engagementHandler "github.com/demonstrikkk/HoneyCatcher/internal/api/engagement/handler"
	engagementRepository "github.com/demonstrikkk/HoneyCatcher/internal/api/engagement/repository"
	engagementService "github.com/demonstrikkk/HoneyCatcher/internal/api/engagement/service"
	"github.com/demonstrikkk/HoneyCatcher/internal/middleware"
	"github.com/demonstrikkk/HoneyCatcher/pkg/callback"
	"github.com/demonstrikkk/HoneyCatcher/pkg/elevenlabs"
	"github.com/demonstrikkk/HoneyCatcher/pkg/gemini"
	"github.com/demonstrikkk/HoneyCatcher/pkg/redis"
	"github.com/demonstrikkk/HoneyCatcher/pkg/s3"
	"github.com/demonstrikkk/HoneyCatcher/pkg/safebrowse"
	"github.com/demonstrikkk/HoneyCatcher/pkg/transcriber"
	"github.com/demonstrikkk/HoneyCatcher/pkg/utils"
	websocketPkg "github.com/demonstrikkk/HoneyCatcher/pkg/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	db          *sqlx.DB
	log         *logrus.Logger
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	handlers    []handler
	redisServer redis.IRedis
	s3Client    s3.ItfS3
	registry    websocketPkg.IRegistry
	transcriber transcriber.ITranscriber
	reasoner    gemini.IReasoner
	synthesizer elevenlabs.ISynthesizer
	urlScanner  safebrowse.IScanner
	notifier    callback.INotifier
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithRegistry(registry websocketPkg.IRegistry) ServerOption {
	return func(s *Server) error {
		s.registry = registry
		return nil
	}
}

func WithTranscriber(tr transcriber.ITranscriber) ServerOption {
	return func(s *Server) error {
		s.transcriber = tr
		return nil
	}
}

func WithReasoner() ServerOption {
	return func(s *Server) error {
		client, err := gemini.NewGeminiClient()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to create Gemini client: %v", err)
			}
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}
		s.reasoner = client
		return nil
	}
}

func WithSynthesizer(synthesizer elevenlabs.ISynthesizer) ServerOption {
	return func(s *Server) error {
		s.synthesizer = synthesizer
		return nil
	}
}

func WithURLScanner(scanner safebrowse.IScanner) ServerOption {
	return func(s *Server) error {
		s.urlScanner = scanner
		return nil
	}
}

func WithNotifier(notifier callback.INotifier) ServerOption {
	return func(s *Server) error {
		s.notifier = notifier
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Engagement Domain
	engagementRepo := engagementRepository.New(s.db, s.log)
	engagementServices := engagementService.New(
		s.log,
		engagementRepo,
		s.registry,
		s.transcriber,
		s.reasoner,
		s.synthesizer,
		s.urlScanner,
		s.redisServer,
		s.s3Client,
		s.notifier,
	)
	engagementHandlers := engagementHandler.New(s.log, s.validator, s.middleware, engagementServices, s.registry, s.utils)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, engagementHandlers)
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	if err := s.engine.Listen(fmt.Sprintf(":%s", port)); err != nil {
		if s.transcriber != nil {
			s.transcriber.Close()
		}
		return err
	}

	return nil
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
