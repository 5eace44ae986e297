package coreapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"topic-pulse/config"
)

// FatalAPIError ist ein nicht-transienter API-Fehler (non-2xx außerhalb des
// Retry-Sets). Er bricht den gesamten Ingestion-Lauf ab.
type FatalAPIError struct {
	Status int
	Body   string
}

func (e *FatalAPIError) Error() string {
	return fmt.Sprintf("core api: fataler status %d: %s", e.Status, e.Body)
}

// TransientError wird zurückgegeben, wenn alle Retry-Versuche für einen
// transienten Fehler (429/5xx oder Netzwerkfehler) aufgebraucht sind.
type TransientError struct {
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("core api: nach %d versuchen aufgegeben: %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// retryableStatus enthält die Stati, die mit Backoff wiederholt werden.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Client kapselt die Kommunikation mit der CORE v3 Works-Suche.
type Client struct {
	Config *config.Config
	Logger *zap.Logger

	httpClient *http.Client
	// injizierbar für Tests
	sleep func(time.Duration)
}

// NewClient erstellt einen neuen CORE-API-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.CoreHTTPTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		Config:     cfg,
		Logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
		sleep:      time.Sleep,
	}
}

// BuildQuery baut die Query für einen Jahres-/Sprach-Ausschnitt.
func BuildQuery(fromYear, toYear int, lang string) string {
	return fmt.Sprintf("year:[%d TO %d] AND language:%s", fromYear, toYear, lang)
}

// SearchWorks holt eine Ergebnis-Seite. Transiente Fehler (429/5xx,
// Netzwerkfehler) werden mit exponentiellem Backoff (Basis 2) wiederholt;
// jeder andere non-2xx-Status ist fatal und wird nicht wiederholt.
func (c *Client) SearchWorks(ctx context.Context, query string, page, pageSize int) (*SearchResponse, error) {
	log := c.Logger.With(zap.String("query", query), zap.Int("page", page))

	reqBody, err := json.Marshal(searchRequest{
		Q:      query,
		Limit:  pageSize,
		Offset: page * pageSize,
		Scroll: false,
	})
	if err != nil {
		return nil, err
	}

	maxRetries := c.Config.CoreMaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<(attempt-1)) * time.Second
			log.Info("Warte vor erneutem Versuch", zap.Duration("wait", wait), zap.Int("attempt", attempt+1))
			c.sleep(wait)
		}

		resp, err := c.doRequest(ctx, reqBody)
		if err != nil {
			lastErr = err
			log.Warn("CORE-Anfrage fehlgeschlagen", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
			log.Debug("Rate-Limit-Status", zap.String("remaining", remaining))
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			parsed, err := decodeSearchResponse(body)
			if err != nil {
				return nil, fmt.Errorf("core api: antwort nicht dekodierbar: %w", err)
			}
			log.Debug("Seite erfolgreich geholt",
				zap.Int("results", len(parsed.Results)),
				zap.Int("total_hits", parsed.TotalHits))
			return parsed, nil

		case retryableStatus[resp.StatusCode]:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			log.Warn("Transienter CORE-Fehler", zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1))
			continue

		default:
			return nil, &FatalAPIError{Status: resp.StatusCode, Body: truncate(string(body), 200)}
		}
	}

	return nil, &TransientError{Attempts: maxRetries, Err: lastErr}
}

func (c *Client) doRequest(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Config.CoreBaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Config.CoreAPIKey)
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
