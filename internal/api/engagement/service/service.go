package engagementService

import (
	"context"
	"sync"

	"github.com/demonstrikkk/HoneyCatcher/internal/api/engagement"
	engagementRepository "github.com/demonstrikkk/HoneyCatcher/internal/api/engagement/repository"
	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
	"github.com/demonstrikkk/HoneyCatcher/pkg/audio"
	"github.com/demonstrikkk/HoneyCatcher/pkg/callback"
	"github.com/demonstrikkk/HoneyCatcher/pkg/elevenlabs"
	"github.com/demonstrikkk/HoneyCatcher/pkg/gemini"
	"github.com/demonstrikkk/HoneyCatcher/pkg/redis"
	"github.com/demonstrikkk/HoneyCatcher/pkg/s3"
	"github.com/demonstrikkk/HoneyCatcher/pkg/safebrowse"
	"github.com/demonstrikkk/HoneyCatcher/pkg/transcriber"
	websocketPkg "github.com/demonstrikkk/HoneyCatcher/pkg/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Sessions terminate on their own after this many conversational turns.
	DefaultMaxTurns = 50
)

type IEngagementService interface {
	CreateSession(ctx context.Context, sessionID string, mode entity.EngagementMode, voiceCloneID string) (*entity.EngagementSession, error)
	BindConnection(sessionID string, role string, conn websocketPkg.Conn) (*entity.EngagementSession, error)
	UnbindConnection(sessionID string, role string, conn websocketPkg.Conn)
	SwitchMode(ctx context.Context, sessionID string, mode entity.EngagementMode) (bool, error)
	EndSession(ctx context.Context, sessionID string, reason string) error
	SessionStatus(sessionID string) (*engagement.SessionStatusResponse, error)
	SessionReport(ctx context.Context, sessionID string) (*engagement.SessionReportResponse, error)

	HandleAudioChunk(sessionID string, role string, payload []byte, format string) error
	HandleTextInput(sessionID string, role string, text string) error
	HandleCoachingRequest(sessionID string, role string) error
}

// sessionRuntime is the in-memory authoritative state for one live session.
// All mutation goes through the holder of mu; background tasks register on
// tasks and watch ctx for cancellation.
type sessionRuntime struct {
	mu      sync.Mutex
	state   entity.EngagementSession
	buffers map[entity.Speaker]*audio.StreamBuffer
	seen    map[string]bool
	scanned map[string]bool
	urgency int

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
}

type engagementService struct {
	log         *logrus.Logger
	repo        engagementRepository.Repository
	registry    websocketPkg.IRegistry
	transcriber transcriber.ITranscriber
	reasoner    gemini.IReasoner
	synthesizer elevenlabs.ISynthesizer
	scanner     safebrowse.IScanner
	audioCache  redis.IRedis
	s3Client    s3.ItfS3
	notifier    callback.INotifier
	normalizer  *audio.Normalizer

	mu       sync.Mutex
	sessions map[string]*sessionRuntime

	maxTurns int
}

func New(
	log *logrus.Logger,
	repo engagementRepository.Repository,
	registry websocketPkg.IRegistry,
	tr transcriber.ITranscriber,
	reasoner gemini.IReasoner,
	synthesizer elevenlabs.ISynthesizer,
	scanner safebrowse.IScanner,
	audioCache redis.IRedis,
	s3Client s3.ItfS3,
	notifier callback.INotifier,
) IEngagementService {
	return &engagementService{
		log:         log,
		repo:        repo,
		registry:    registry,
		transcriber: tr,
		reasoner:    reasoner,
		synthesizer: synthesizer,
		scanner:     scanner,
		audioCache:  audioCache,
		s3Client:    s3Client,
		notifier:    notifier,
		normalizer:  audio.NewNormalizer(),
		sessions:    make(map[string]*sessionRuntime),
		maxTurns:    DefaultMaxTurns,
	}
}

func (s *engagementService) runtime(sessionID string) *sessionRuntime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID]
}
