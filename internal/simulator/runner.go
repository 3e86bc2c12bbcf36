package simulator

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/okian/rumble/pkg/logger"
)

// Run plays one full scripted party night against a running service.
func Run(ctx context.Context, cfg *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting rumble party simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("participants", cfg.Participants),
		logger.Int("workers", cfg.Workers),
		logger.String("timeout", cfg.Timeout.String()),
		logger.Int("topN", cfg.TopN),
		logger.Any("verbose", cfg.Verbose))

	client := newHTTPClient(cfg)

	// Step 1: make sure the service is up.
	if err := checkServiceHealth(ctx, cfg, client); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: lay out the evening.
	script := buildScript(cfg)

	// Step 3: open the party.
	partyID, err := createParty(ctx, cfg, client, script)
	if err != nil {
		return fmt.Errorf("party creation failed: %w", err)
	}

	// Step 4: everyone files their picks before the bell.
	if err := submitPredictions(ctx, cfg, client, partyID, script.predictions, stats); err != nil {
		return fmt.Errorf("prediction submission failed: %w", err)
	}

	// Step 5: replay the match as the host would call it.
	if err := submitFacts(ctx, cfg, client, partyID, script.facts, stats); err != nil {
		return fmt.Errorf("fact submission failed: %w", err)
	}

	// Step 6: read the board back and check it against the script.
	if err := verifyStandings(ctx, cfg, client, partyID, script, stats); err != nil {
		return fmt.Errorf("standings verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service answers its health endpoint.
func checkServiceHealth(ctx context.Context, cfg *Config, client *httpClient) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := client.get(ctx, cfg.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// createParty opens a party with the script's roster and returns its ID.
func createParty(ctx context.Context, cfg *Config, client *httpClient, s *script) (string, error) {
	var reply partyResponse
	status, err := client.postJSON(ctx, cfg.BaseURL+"/parties", s.party, &reply)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("party creation rejected with status %d", status)
	}
	if reply.PartyID == "" {
		return "", fmt.Errorf("party creation returned no party id")
	}

	logger.Get().Info(ctx, "party created", logger.Party(reply.PartyID))
	return reply.PartyID, nil
}

// verifyStandings reads every guest's rank plus the standings page and
// checks both against the script's precomputed outcome.
func verifyStandings(ctx context.Context, cfg *Config, client *httpClient, partyID string, s *script, stats *Stats) error {
	logger.Get().Info(ctx, "verifying standings", logger.Int("participants", len(s.expected)))

	// Per-guest totals must match the script exactly.
	for id, want := range s.expected {
		var got entry
		url := cfg.BaseURL + "/parties/" + partyID + "/rank/" + id
		status, err := client.getJSON(ctx, url, &got)
		if err != nil {
			return fmt.Errorf("rank lookup for %s failed: %w", id, err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("rank lookup for %s rejected with status %d", id, status)
		}

		if got.Points != want {
			stats.RankMismatches++
			logger.Get().Error(ctx, "score mismatch",
				logger.Participant(id),
				logger.Int("want", want),
				logger.Int("got", got.Points))
			continue
		}
		stats.RanksVerified++
	}

	// The standings page must be a correctly ordered prefix.
	url := fmt.Sprintf("%s/parties/%s/standings?limit=%d", cfg.BaseURL, partyID, cfg.TopN)
	var board []entry
	status, err := client.getJSON(ctx, url, &board)
	if err != nil {
		return fmt.Errorf("standings fetch failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("standings fetch rejected with status %d", status)
	}
	stats.StandingsEntries = len(board)

	wantLen := cfg.TopN
	if wantLen > len(s.expected) {
		wantLen = len(s.expected)
	}
	if len(board) != wantLen {
		return fmt.Errorf("standings returned %d entries, want %d", len(board), wantLen)
	}

	if !sort.SliceIsSorted(board, func(i, j int) bool {
		if board[i].Points != board[j].Points {
			return board[i].Points > board[j].Points
		}
		return board[i].ParticipantID < board[j].ParticipantID
	}) {
		return fmt.Errorf("standings are not ordered by points then participant id")
	}

	for i, e := range board {
		if e.Rank != i+1 {
			return fmt.Errorf("standings rank %d reported as %d", i+1, e.Rank)
		}
		if want := s.expected[e.ParticipantID]; e.Points != want {
			return fmt.Errorf("standings points for %s are %d, want %d", e.ParticipantID, e.Points, want)
		}
	}

	if stats.RankMismatches > 0 {
		return fmt.Errorf("%d of %d participant scores did not match the script", stats.RankMismatches, len(s.expected))
	}

	logger.Get().Info(ctx, "standings verified",
		logger.Int("ranksVerified", stats.RanksVerified),
		logger.Int("standingsEntries", stats.StandingsEntries))
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var factsPerSecond float64
	if stats.Duration > 0 {
		factsPerSecond = float64(stats.FactsConfirmed) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("predictionsSubmitted", stats.PredictionsSubmitted),
		logger.Int("predictionsFailed", stats.PredictionsFailed),
		logger.Int("factsConfirmed", stats.FactsConfirmed),
		logger.Int("factsFailed", stats.FactsFailed),
		logger.Int("ranksVerified", stats.RanksVerified),
		logger.Int("rankMismatches", stats.RankMismatches),
		logger.Int("standingsEntries", stats.StandingsEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("factsPerSecond", factsPerSecond))
}
