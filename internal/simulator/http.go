package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/okian/rumble/pkg/logger"
)

// httpClient wraps http.Client with the configured timeout.
type httpClient struct {
	client *http.Client
}

func newHTTPClient(cfg *Config) *httpClient {
	return &httpClient{
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// get performs a GET request.
func (c *httpClient) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// post performs a POST request with a JSON body.
func (c *httpClient) post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// postJSON posts a body and decodes the reply into out (when out is
// non-nil), returning the HTTP status code.
func (c *httpClient) postJSON(ctx context.Context, url string, body, out any) (int, error) {
	resp, err := c.post(ctx, url, body)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// getJSON fetches a URL and decodes the reply into out, returning the
// HTTP status code.
func (c *httpClient) getJSON(ctx context.Context, url string, out any) (int, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// submitPredictions files every guest's picks concurrently with a worker
// pool. Picks are independent of each other so ordering does not matter.
func submitPredictions(ctx context.Context, cfg *Config, client *httpClient, partyID string, predictions []prediction, stats *Stats) error {
	logger.Get().Info(ctx, "submitting predictions",
		logger.Int("count", len(predictions)),
		logger.Int("workers", cfg.Workers))

	url := cfg.BaseURL + "/parties/" + partyID + "/predictions"

	var (
		submitted int64
		failed    int64
	)

	predChan := make(chan prediction, cfg.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for p := range predChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				status, err := client.postJSON(ctx, url, p, nil)
				atomic.AddInt64(&submitted, 1)
				if err != nil || status != http.StatusAccepted {
					atomic.AddInt64(&failed, 1)
					if cfg.Verbose {
						logger.Get().Warn(ctx, "prediction rejected",
							logger.Participant(p.ParticipantID),
							logger.String("kind", p.Kind),
							logger.Int("status", status),
							logger.Error(err))
					}
				}
			}
		}()
	}

	go func() {
		defer close(predChan)
		for _, p := range predictions {
			select {
			case <-ctx.Done():
				return
			case predChan <- p:
			}
		}
	}()

	wg.Wait()

	stats.PredictionsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.PredictionsFailed = int(atomic.LoadInt64(&failed))

	if stats.PredictionsFailed > 0 {
		return fmt.Errorf("%d of %d predictions rejected", stats.PredictionsFailed, stats.PredictionsSubmitted)
	}

	logger.Get().Info(ctx, "predictions submitted", logger.Int("count", stats.PredictionsSubmitted))
	return nil
}

// submitFacts replays the host's facts one at a time. Unlike picks,
// facts carry ordering constraints (an elimination needs its entry) so
// they never go through the worker pool.
func submitFacts(ctx context.Context, cfg *Config, client *httpClient, partyID string, facts []fact, stats *Stats) error {
	logger.Get().Info(ctx, "confirming facts", logger.Int("count", len(facts)))

	url := cfg.BaseURL + "/parties/" + partyID + "/facts"

	for i, f := range facts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		status, err := client.postJSON(ctx, url, f, nil)
		if err != nil {
			stats.FactsFailed++
			return fmt.Errorf("fact %d (%s) failed: %w", i, f.Kind, err)
		}
		if status != http.StatusAccepted && status != http.StatusOK {
			stats.FactsFailed++
			return fmt.Errorf("fact %d (%s) rejected with status %d", i, f.Kind, status)
		}
		stats.FactsConfirmed++

		if cfg.Verbose {
			logger.Get().Debug(ctx, "fact confirmed",
				logger.Int("index", i),
				logger.String("kind", f.Kind),
				logger.String("division", f.Division),
				logger.Int("slot", f.Slot))
		}
	}

	logger.Get().Info(ctx, "facts confirmed", logger.Int("count", stats.FactsConfirmed))
	return nil
}
