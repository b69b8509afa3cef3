package engagementService

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/demonstrikkk/HoneyCatcher/internal/api/engagement"
	engagementRepository "github.com/demonstrikkk/HoneyCatcher/internal/api/engagement/repository"
	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
	"github.com/demonstrikkk/HoneyCatcher/pkg/callback"
	"github.com/demonstrikkk/HoneyCatcher/pkg/gemini"
	"github.com/demonstrikkk/HoneyCatcher/pkg/safebrowse"
	"github.com/demonstrikkk/HoneyCatcher/pkg/transcriber"
	websocketPkg "github.com/demonstrikkk/HoneyCatcher/pkg/websocket"
	"github.com/sirupsen/logrus"
)

// In-memory stand-ins for every collaborator, so the session engine can be
// exercised without network or a database.

type fakeSessionStore struct{}

func (f *fakeSessionStore) CreateSession(ctx context.Context, session entity.EngagementSession) error {
	return nil
}
func (f *fakeSessionStore) GetSessionByID(ctx context.Context, sessionID string) (entity.EngagementSession, error) {
	return entity.EngagementSession{}, engagement.ErrSessionNotFound
}
func (f *fakeSessionStore) UpdateSessionState(ctx context.Context, session entity.EngagementSession) error {
	return nil
}
func (f *fakeSessionStore) MarkSessionEnded(ctx context.Context, sessionID string, session entity.EngagementSession) error {
	return nil
}

type fakeTranscriptStore struct{}

func (f *fakeTranscriptStore) AppendUtterance(ctx context.Context, sessionID string, utterance entity.Utterance) error {
	return nil
}
func (f *fakeTranscriptStore) GetUtterances(ctx context.Context, sessionID string) ([]entity.Utterance, error) {
	return nil, nil
}
func (f *fakeTranscriptStore) AppendEntity(ctx context.Context, sessionID string, item entity.IntelligenceEntity) error {
	return nil
}
func (f *fakeTranscriptStore) GetEntities(ctx context.Context, sessionID string) ([]entity.IntelligenceEntity, error) {
	return nil, nil
}
func (f *fakeTranscriptStore) AppendURLScan(ctx context.Context, sessionID string, scan entity.URLScanResult) error {
	return nil
}

type fakeRepo struct{}

func (f *fakeRepo) NewClient(tx bool) (engagementRepository.Client, error) {
	return engagementRepository.Client{
		Sessions:   &fakeSessionStore{},
		Transcript: &fakeTranscriptStore{},
		Commit:     func() error { return nil },
		Rollback:   func() error { return nil },
	}, nil
}

// stubConn carries a padding byte so each instance gets a distinct heap
// address; pointers to zero-size values may compare equal, which would break
// the registry's connection-identity checks.
type stubConn struct{ _ byte }

func (*stubConn) WriteJSON(v interface{}) error                   { return nil }
func (*stubConn) WriteMessage(messageType int, data []byte) error { return nil }
func (*stubConn) SetWriteDeadline(t time.Time) error              { return nil }
func (*stubConn) Close() error                                    { return nil }

type fakeRegistry struct {
	mu        sync.Mutex
	bound     map[string]websocketPkg.Conn
	sent      []interface{}
	broadcast []interface{}
	closed    []string
}

func (f *fakeRegistry) Bind(sessionID string, role string, conn websocketPkg.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bound == nil {
		f.bound = make(map[string]websocketPkg.Conn)
	}
	f.bound[sessionID+"/"+role] = conn
}

func (f *fakeRegistry) Unbind(sessionID string, role string, conn websocketPkg.Conn) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := sessionID + "/" + role
	if current, ok := f.bound[key]; !ok || current != conn {
		return false
	}
	delete(f.bound, key)
	return true
}
func (f *fakeRegistry) Send(sessionID string, role string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message)
	return nil
}
func (f *fakeRegistry) SendBinary(sessionID string, role string, data []byte) error { return nil }
func (f *fakeRegistry) Broadcast(sessionID string, message interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast = append(f.broadcast, message)
}
func (f *fakeRegistry) Roles(sessionID string) []string { return nil }
func (f *fakeRegistry) CloseSession(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, sessionID)
}

func (f *fakeRegistry) closedSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

func (f *fakeRegistry) sentMessages() []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interface{}(nil), f.sent...)
}

func (f *fakeRegistry) broadcastMessages() []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interface{}(nil), f.broadcast...)
}

type fakeTranscriber struct {
	result *transcriber.Transcription
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, pcm []byte) (*transcriber.Transcription, error) {
	return f.result, nil
}
func (f *fakeTranscriber) Close() {}

type fakeReasoner struct {
	extracted map[string][]string
	result    *gemini.EngagementResult
	fail      bool
}

func (f *fakeReasoner) GenerateEngagement(ctx context.Context, req gemini.EngagementRequest) (*gemini.EngagementResult, error) {
	if f.fail || f.result == nil {
		return nil, errors.New("reasoner unavailable")
	}
	return f.result, nil
}

func (f *fakeReasoner) ExtractIntelligence(ctx context.Context, text string) (map[string][]string, error) {
	if f.extracted == nil {
		return nil, errors.New("extraction unavailable")
	}
	return f.extracted, nil
}

type fakeSynthesizer struct {
	cloneAudio   []byte
	cloneErr     error
	defaultAudio []byte
	defaultErr   error

	cloneCalls   int
	defaultCalls int
}

func (f *fakeSynthesizer) SynthesizeClone(ctx context.Context, text string, voiceID string) ([]byte, error) {
	f.cloneCalls++
	return f.cloneAudio, f.cloneErr
}

func (f *fakeSynthesizer) SynthesizeDefault(ctx context.Context, text string) ([]byte, error) {
	f.defaultCalls++
	return f.defaultAudio, f.defaultErr
}

type fakeScanner struct{}

func (f *fakeScanner) ScanURLs(ctx context.Context, urls []string) ([]safebrowse.ScanResult, error) {
	results := make([]safebrowse.ScanResult, 0, len(urls))
	for _, url := range urls {
		results = append(results, safebrowse.ScanResult{URL: url, IsSafe: true})
	}
	return results, nil
}

type fakeCache struct {
	store map[string][]byte
}

func (f *fakeCache) SetAudio(ctx context.Context, text string, voiceID string, audio []byte, expiration time.Duration) error {
	if f.store == nil {
		f.store = make(map[string][]byte)
	}
	f.store[text+"|"+voiceID] = audio
	return nil
}

func (f *fakeCache) GetAudio(ctx context.Context, text string, voiceID string) ([]byte, error) {
	if audio, ok := f.store[text+"|"+voiceID]; ok {
		return audio, nil
	}
	return nil, errors.New("cache miss")
}

type fakeS3 struct {
	mu        sync.Mutex
	reports   map[string][]byte
	presigned []string
}

func (f *fakeS3) UploadAudio(sessionID string, label string, audio []byte) (string, error) {
	return "", nil
}

func (f *fakeS3) UploadReport(sessionID string, report []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reports == nil {
		f.reports = make(map[string][]byte)
	}
	key := "sessions/" + sessionID + "/report.json"
	f.reports[key] = report
	return key, nil
}

func (f *fakeS3) PresignUrl(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presigned = append(f.presigned, key)
	return "https://archive.invalid/" + key + "?expires=900", nil
}

func (f *fakeS3) presignedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.presigned...)
}

type fakeNotifier struct {
	mu      sync.Mutex
	reports []callback.Report
}

func (f *fakeNotifier) SendReport(ctx context.Context, report callback.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeNotifier) delivered() []callback.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]callback.Report(nil), f.reports...)
}

type testHarness struct {
	svc         *engagementService
	registry    *fakeRegistry
	reasoner    *fakeReasoner
	synthesizer *fakeSynthesizer
	notifier    *fakeNotifier
}

func newHarness() *testHarness {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	registry := &fakeRegistry{}
	reasoner := &fakeReasoner{}
	synthesizer := &fakeSynthesizer{}
	notifier := &fakeNotifier{}

	svc := New(
		logger,
		&fakeRepo{},
		registry,
		&fakeTranscriber{},
		reasoner,
		synthesizer,
		&fakeScanner{},
		&fakeCache{},
		nil,
		notifier,
	).(*engagementService)

	return &testHarness{
		svc:         svc,
		registry:    registry,
		reasoner:    reasoner,
		synthesizer: synthesizer,
		notifier:    notifier,
	}
}

func (h *testHarness) activeSession(sessionID string, mode entity.EngagementMode) *sessionRuntime {
	_, err := h.svc.CreateSession(context.Background(), sessionID, mode, "")
	if err != nil {
		panic(err)
	}
	rt := h.svc.runtime(sessionID)
	rt.mu.Lock()
	rt.state.Status = entity.StatusActive
	rt.mu.Unlock()
	return rt
}
