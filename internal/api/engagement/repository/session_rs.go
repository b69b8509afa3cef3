package engagementRepository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/demonstrikkk/HoneyCatcher/internal/api/engagement"
	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
	contextPkg "github.com/demonstrikkk/HoneyCatcher/pkg/context"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type SessionDB struct {
	SessionID        sql.NullString  `db:"session_id"`
	Mode             sql.NullString  `db:"mode"`
	Status           sql.NullString  `db:"status"`
	TurnCount        sql.NullInt64   `db:"turn_count"`
	ThreatLevel      sql.NullFloat64 `db:"threat_level"`
	Tactics          sql.NullString  `db:"tactics"`
	DetectedLanguage sql.NullString  `db:"detected_language"`
	VoiceCloneID     sql.NullString  `db:"voice_clone_id"`
	StartedAt        time.Time       `db:"started_at"`
	EndedAt          sql.NullTime    `db:"ended_at"`
}

func (r *sessionRepository) CreateSession(ctx context.Context, session entity.EngagementSession) error {
	requestID := contextPkg.GetRequestID(ctx)

	tacticsJSON, err := json.Marshal(session.Tactics)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to marshal session tactics")
		return err
	}

	argsKV := map[string]interface{}{
		"session_id":        session.SessionID,
		"mode":              string(session.Mode),
		"status":            string(session.Status),
		"turn_count":        session.TurnCount,
		"threat_level":      session.ThreatLevel,
		"tactics":           string(tacticsJSON),
		"detected_language": session.DetectedLanguage,
		"voice_clone_id":    session.VoiceCloneID,
		"started_at":        session.StartedAt,
		"ended_at":          session.EndedAt,
	}

	query, args, err := sqlx.Named(queryCreateSession, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("CreateSession named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	_, err = r.q.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating session")
		return err
	}

	return nil
}

func (r *sessionRepository) GetSessionByID(ctx context.Context, sessionID string) (entity.EngagementSession, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var sessionDB SessionDB

	argsKV := map[string]interface{}{
		"session_id": sessionID,
	}

	query, args, err := sqlx.Named(queryGetSessionByID, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSessionByID named query preparation err")
		return entity.EngagementSession{}, err
	}

	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&sessionDB); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": sessionID,
			}).Debug("GetSessionByID no session found")
			return entity.EngagementSession{}, engagement.ErrSessionNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSessionByID execution err")
		return entity.EngagementSession{}, err
	}

	return r.makeSession(sessionDB), nil
}

func (r *sessionRepository) UpdateSessionState(ctx context.Context, session entity.EngagementSession) error {
	requestID := contextPkg.GetRequestID(ctx)

	tacticsJSON, err := json.Marshal(session.Tactics)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to marshal session tactics")
		return err
	}

	argsKV := map[string]interface{}{
		"session_id":        session.SessionID,
		"mode":              string(session.Mode),
		"status":            string(session.Status),
		"turn_count":        session.TurnCount,
		"threat_level":      session.ThreatLevel,
		"tactics":           string(tacticsJSON),
		"detected_language": session.DetectedLanguage,
	}

	query, args, err := sqlx.Named(queryUpdateSessionState, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpdateSessionState named query preparation err")
		return err
	}

	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpdateSessionState execution err")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": session.SessionID,
		}).Warn("UpdateSessionState no rows affected")
		return engagement.ErrSessionNotFound
	}

	return nil
}

func (r *sessionRepository) MarkSessionEnded(ctx context.Context, sessionID string, session entity.EngagementSession) error {
	requestID := contextPkg.GetRequestID(ctx)

	tacticsJSON, err := json.Marshal(session.Tactics)
	if err != nil {
		return err
	}

	endedAt := time.Now()
	if session.EndedAt != nil {
		endedAt = *session.EndedAt
	}

	argsKV := map[string]interface{}{
		"session_id":   sessionID,
		"status":       string(entity.StatusEnded),
		"turn_count":   session.TurnCount,
		"threat_level": session.ThreatLevel,
		"tactics":      string(tacticsJSON),
		"ended_at":     endedAt,
	}

	query, args, err := sqlx.Named(queryMarkSessionEnded, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("MarkSessionEnded named query preparation err")
		return err
	}

	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("MarkSessionEnded execution err")
		return err
	}

	return nil
}

func (r *sessionRepository) makeSession(sessionDB SessionDB) entity.EngagementSession {
	var tactics []string
	if sessionDB.Tactics.Valid && sessionDB.Tactics.String != "" {
		json.Unmarshal([]byte(sessionDB.Tactics.String), &tactics)
	}

	session := entity.EngagementSession{
		SessionID:        sessionDB.SessionID.String,
		Mode:             entity.EngagementMode(sessionDB.Mode.String),
		Status:           entity.SessionStatus(sessionDB.Status.String),
		TurnCount:        int(sessionDB.TurnCount.Int64),
		ThreatLevel:      sessionDB.ThreatLevel.Float64,
		Tactics:          tactics,
		DetectedLanguage: sessionDB.DetectedLanguage.String,
		VoiceCloneID:     sessionDB.VoiceCloneID.String,
		StartedAt:        sessionDB.StartedAt,
	}

	if sessionDB.EndedAt.Valid {
		endedAt := sessionDB.EndedAt.Time
		session.EndedAt = &endedAt
	}

	return session
}
