package engagementRepository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
	contextPkg "github.com/demonstrikkk/HoneyCatcher/pkg/context"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type UtteranceDB struct {
	Speaker    sql.NullString  `db:"speaker"`
	Text       sql.NullString  `db:"text"`
	Language   sql.NullString  `db:"language"`
	Confidence sql.NullFloat64 `db:"confidence"`
	Source     sql.NullString  `db:"source"`
	CreatedAt  time.Time       `db:"created_at"`
}

type EntityDB struct {
	Kind        sql.NullString `db:"kind"`
	Value       sql.NullString `db:"value"`
	FirstSeenAt time.Time      `db:"first_seen_at"`
}

func (r *transcriptRepository) AppendUtterance(ctx context.Context, sessionID string, utterance entity.Utterance) error {
	requestID := contextPkg.GetRequestID(ctx)

	argsKV := map[string]interface{}{
		"session_id": sessionID,
		"speaker":    string(utterance.Speaker),
		"text":       utterance.Text,
		"language":   utterance.Language,
		"confidence": utterance.Confidence,
		"source":     utterance.Source,
		"created_at": utterance.Timestamp,
	}

	query, args, err := sqlx.Named(queryAppendUtterance, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("AppendUtterance named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when appending utterance")
		return err
	}

	return nil
}

func (r *transcriptRepository) GetUtterances(ctx context.Context, sessionID string) ([]entity.Utterance, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var rows []UtteranceDB

	argsKV := map[string]interface{}{
		"session_id": sessionID,
	}

	query, args, err := sqlx.Named(queryGetUtterances, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetUtterances named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetUtterances execution err")
		return nil, err
	}

	utterances := make([]entity.Utterance, 0, len(rows))
	for _, row := range rows {
		utterances = append(utterances, entity.Utterance{
			Speaker:    entity.Speaker(row.Speaker.String),
			Text:       row.Text.String,
			Language:   row.Language.String,
			Confidence: row.Confidence.Float64,
			Source:     row.Source.String,
			Timestamp:  row.CreatedAt,
		})
	}

	return utterances, nil
}

func (r *transcriptRepository) AppendEntity(ctx context.Context, sessionID string, item entity.IntelligenceEntity) error {
	requestID := contextPkg.GetRequestID(ctx)

	argsKV := map[string]interface{}{
		"session_id":    sessionID,
		"kind":          string(item.Kind),
		"value":         item.Value,
		"first_seen_at": item.FirstSeenAt,
	}

	query, args, err := sqlx.Named(queryAppendEntity, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("AppendEntity named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when appending entity")
		return err
	}

	return nil
}

func (r *transcriptRepository) GetEntities(ctx context.Context, sessionID string) ([]entity.IntelligenceEntity, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var rows []EntityDB

	argsKV := map[string]interface{}{
		"session_id": sessionID,
	}

	query, args, err := sqlx.Named(queryGetEntities, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetEntities named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetEntities execution err")
		return nil, err
	}

	entities := make([]entity.IntelligenceEntity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, entity.IntelligenceEntity{
			Kind:        entity.EntityKind(row.Kind.String),
			Value:       row.Value.String,
			FirstSeenAt: row.FirstSeenAt,
		})
	}

	return entities, nil
}

func (r *transcriptRepository) AppendURLScan(ctx context.Context, sessionID string, scan entity.URLScanResult) error {
	requestID := contextPkg.GetRequestID(ctx)

	findingsJSON, err := json.Marshal(scan.Findings)
	if err != nil {
		return err
	}

	argsKV := map[string]interface{}{
		"session_id": sessionID,
		"url":        scan.URL,
		"is_safe":    scan.IsSafe,
		"risk_score": scan.RiskScore,
		"findings":   string(findingsJSON),
		"created_at": time.Now(),
	}

	query, args, err := sqlx.Named(queryAppendURLScan, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("AppendURLScan named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when appending URL scan")
		return err
	}

	return nil
}
