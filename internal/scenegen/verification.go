package scenegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/footfall/internal/adapters/repository"
	"github.com/okian/footfall/pkg/logger"
)

// StatsReader is the part of a store verification needs.
type StatsReader interface {
	Stats(ctx context.Context) (repository.Stats, error)
}

// Verify compares what a run stored against the scene's truth.
func Verify(ctx context.Context, want Truth, got Counts) error {
	var errs []error
	check := func(name string, w, g int) {
		if w != g {
			errs = append(errs, fmt.Errorf("%w: %s want %d got %d", ErrMismatch, name, w, g))
		}
	}
	check("visitors", want.Visitors, got.Visitors)
	check("entries", want.Entries, got.Entries)
	check("exits", want.Exits, got.Exits)

	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Get().Info(ctx, "scene verified",
		logger.Int("visitors", got.Visitors),
		logger.Int("entries", got.Entries),
		logger.Int("exits", got.Exits),
	)
	return nil
}

// CountStore reads the counts straight from a store.
func CountStore(ctx context.Context, r StatsReader) (Counts, error) {
	st, err := r.Stats(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("store stats: %w", err)
	}
	return Counts{Visitors: st.Visitors, Entries: st.Entries, Exits: st.Exits}, nil
}

// FetchCounts reads the counts from a running service's /stats endpoint.
func FetchCounts(ctx context.Context, baseURL string, timeout time.Duration) (Counts, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := strings.TrimRight(baseURL, "/") + "/stats"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Counts{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return Counts{}, fmt.Errorf("stats request failed with status: %d", resp.StatusCode)
	}
	var c Counts
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return Counts{}, fmt.Errorf("decode stats: %w", err)
	}
	return c, nil
}
