package engagementRepository

import (
	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type SQLExecutor interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var sqlExecutor SQLExecutor
	var commitFunc, rollbackFunc func() error

	sqlExecutor = r.DB

	if tx {
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		sqlExecutor = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		Sessions:   &sessionRepository{q: sqlExecutor, log: r.log},
		Transcript: &transcriptRepository{q: sqlExecutor, log: r.log},
		Commit:     commitFunc,
		Rollback:   rollbackFunc,
	}, nil
}

type Client struct {
	Sessions interface {
		CreateSession(ctx context.Context, session entity.EngagementSession) error
		GetSessionByID(ctx context.Context, sessionID string) (entity.EngagementSession, error)
		UpdateSessionState(ctx context.Context, session entity.EngagementSession) error
		MarkSessionEnded(ctx context.Context, sessionID string, session entity.EngagementSession) error
	}

	Transcript interface {
		AppendUtterance(ctx context.Context, sessionID string, utterance entity.Utterance) error
		GetUtterances(ctx context.Context, sessionID string) ([]entity.Utterance, error)
		AppendEntity(ctx context.Context, sessionID string, item entity.IntelligenceEntity) error
		GetEntities(ctx context.Context, sessionID string) ([]entity.IntelligenceEntity, error)
		AppendURLScan(ctx context.Context, sessionID string, scan entity.URLScanResult) error
	}

	Commit   func() error
	Rollback func() error
}

type sessionRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}

type transcriptRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
