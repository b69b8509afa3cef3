package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Report is the payload delivered to the configured webhook when a
// session ends.
type Report struct {
	SessionID        string              `json:"session_id"`
	Status           string              `json:"status"`
	Mode             string              `json:"mode"`
	TurnCount        int                 `json:"turn_count"`
	ThreatLevel      float64             `json:"threat_level"`
	Tactics          []string            `json:"tactics"`
	Entities         map[string][]string `json:"entities"`
	DetectedLanguage string              `json:"detected_language"`
	TranscriptLength int                 `json:"transcript_length"`
	StartedAt        time.Time           `json:"started_at"`
	EndedAt          time.Time           `json:"ended_at"`
	ReportURL        string              `json:"report_url,omitempty"`
}

type INotifier interface {
	SendReport(ctx context.Context, report Report) error
}

type notifier struct {
	webhookURL string
	httpClient *http.Client
}

func New() INotifier {
	return &notifier{
		webhookURL: os.Getenv("SESSION_CALLBACK_URL"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendReport posts the final report. Retries twice with a short backoff
// before giving up, since the receiver may be mid deploy.
func (n *notifier) SendReport(ctx context.Context, report Report) error {
	if n.webhookURL == "" {
		logrus.Debug("No session callback URL configured, skipping report delivery")
		return nil
	}

	jsonData, err := json.Marshal(report)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}

		if lastErr = n.post(ctx, jsonData); lastErr == nil {
			logrus.Info(fmt.Sprintf("Delivered final report for session %s", report.SessionID))
			return nil
		}
		logrus.Warn(fmt.Sprintf("Report delivery attempt %d for session %s failed: %v", attempt+1, report.SessionID, lastErr))
	}

	return lastErr
}

func (n *notifier) post(ctx context.Context, jsonData []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback endpoint returned %s", resp.Status)
	}

	return nil
}
