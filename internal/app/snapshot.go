package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arjun-vegeta/QuickPoll/internal/adapter/metrics"
	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// fetchTimeout bounds a shared repository query. It outlives any single
// caller: callers that give up earlier stop waiting, the query keeps running.
const fetchTimeout = 5 * time.Second

// SnapshotService loads the initial poll state for new viewers. Concurrent
// requests for the same poll share one repository query, and a circuit
// breaker stops hammering the database while it is failing.
type SnapshotService struct {
	repo    domain.SnapshotRepository
	breaker circuitbreaker.CircuitBreaker[any]
	group   singleflight.Group
	clock   clockwork.Clock
	metrics *metrics.SnapshotMetrics
}

// NewSnapshotService creates the service. m may be nil.
//
// Breaker settings: opens at a 60% failure rate over at least 5 requests in
// a 10s window, probes again after 30s and closes on the first success.
func NewSnapshotService(repo domain.SnapshotRepository, clock clockwork.Clock, m *metrics.SnapshotMetrics) *SnapshotService {
	s := &SnapshotService{repo: repo, clock: clock, metrics: m}
	s.breaker = circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "snapshot",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if s.metrics != nil {
				s.metrics.BreakerState.Set(stateToFloat(e.NewState))
			}
		}).
		Build()
	return s
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// GetSnapshot returns the current state of pollID, or ErrPollNotFound.
func (s *SnapshotService) GetSnapshot(ctx context.Context, pollID string) (*domain.PollSnapshot, error) {
	results := s.group.DoChan(pollID, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return s.fetch(fetchCtx, pollID)
	})

	var res singleflight.Result
	select {
	case res = <-results:
	case <-ctx.Done():
		return nil, fmt.Errorf("stopped waiting for snapshot of poll %s: %w", pollID, ctx.Err())
	}

	if res.Shared && s.metrics != nil {
		s.metrics.Coalesced.Inc()
	}
	if res.Err != nil {
		return nil, res.Err
	}

	// callers may share the pointer; hand each one its own copy
	snapshot := *res.Val.(*domain.PollSnapshot)
	snapshot.Options = append([]domain.PollOption(nil), snapshot.Options...)
	return &snapshot, nil
}

func (s *SnapshotService) fetch(ctx context.Context, pollID string) (*domain.PollSnapshot, error) {
	if !s.breaker.TryAcquirePermit() {
		s.record("rejected")
		return nil, fmt.Errorf("snapshot circuit breaker open: %w", circuitbreaker.ErrOpen)
	}

	start := s.clock.Now()
	snapshot, err := s.repo.GetSnapshot(ctx, pollID)
	if s.metrics != nil {
		s.metrics.Duration.Observe(s.clock.Since(start).Seconds())
	}

	switch {
	case err == nil:
		s.breaker.RecordSuccess()
		s.record("ok")
		return snapshot, nil
	case errors.Is(err, domain.ErrPollNotFound):
		// an unknown poll is an answer, not a database failure
		s.breaker.RecordSuccess()
		s.record("not_found")
		return nil, err
	default:
		s.breaker.RecordError(err)
		s.record("error")
		return nil, fmt.Errorf("failed to load snapshot of poll %s: %w", pollID, err)
	}
}

// BreakerState reports the circuit breaker state for health output.
func (s *SnapshotService) BreakerState() circuitbreaker.State {
	return s.breaker.State()
}

func (s *SnapshotService) record(result string) {
	if s.metrics != nil {
		s.metrics.Fetches.WithLabelValues(result).Inc()
	}
}
