package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	contentType = "application/json"
	userAgent   = "spigell/scout-responder"
)

// WebApp posts events as JSON to a spreadsheet web-app endpoint.
type WebApp struct {
	URL        string
	HTTPClient *http.Client
	UserAgent  string
	logger     *zap.Logger
}

func NewWebApp(url string, timeout time.Duration, logger *zap.Logger) *WebApp {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebApp{
		URL: url,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		UserAgent: userAgent,
		logger:    logger,
	}
}

// Post sends one event. Any non-2xx status is an error.
func (w *WebApp) Post(ctx context.Context, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", w.UserAgent)

	w.logger.Debug("make request", zap.String("url", req.URL.Redacted()), zap.Int("bytes", len(payload)))
	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	return nil
}
