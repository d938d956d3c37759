package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	"github.com/arjun-vegeta/QuickPoll/internal/platform/config"
	"github.com/jonboulle/clockwork"
)

const testPollID = "3f2b8c1e-9a4d-4e6f-8b1a-2c3d4e5f6a7b"

type fakeEndpoint struct {
	mu       sync.Mutex
	pollIDs  []string
	clientIP []string
	err      error
}

func (f *fakeEndpoint) Serve(w http.ResponseWriter, _ *http.Request, pollID, clientIP string) error {
	f.mu.Lock()
	f.pollIDs = append(f.pollIDs, pollID)
	f.clientIP = append(f.clientIP, clientIP)
	f.mu.Unlock()
	if f.err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return f.err
	}
	w.WriteHeader(http.StatusSwitchingProtocols)
	return nil
}

type recordingRelay struct {
	mu    sync.Mutex
	facts []any
	err   error
}

func (r *recordingRelay) record(fact any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.facts = append(r.facts, fact)
	return nil
}

func (r *recordingRelay) PublishVoteRecorded(_ context.Context, fact domain.VoteRecorded) error {
	if err := fact.Validate(); err != nil {
		return err
	}
	return r.record(fact)
}

func (r *recordingRelay) PublishLikeToggled(_ context.Context, fact domain.LikeToggled) error {
	if err := fact.Validate(); err != nil {
		return err
	}
	return r.record(fact)
}

func (r *recordingRelay) PublishCommentPosted(_ context.Context, fact domain.CommentPosted) error {
	if err := fact.Validate(); err != nil {
		return err
	}
	return r.record(fact)
}

func (r *recordingRelay) snapshot() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.facts...)
}

type stubSnapshots struct {
	polls map[string]*domain.PollSnapshot
	err   error
}

func (s *stubSnapshots) GetSnapshot(_ context.Context, pollID string) (*domain.PollSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	poll, ok := s.polls[pollID]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return poll, nil
}

type stubViewers struct {
	counts      map[string]int
	rooms       int
	connections int
}

func (s *stubViewers) ViewerCount(pollID string) int { return s.counts[pollID] }

func (s *stubViewers) Stats() (int, int) { return s.rooms, s.connections }

type testServer struct {
	*Server
	endpoint  *fakeEndpoint
	relay     *recordingRelay
	snapshots *stubSnapshots
	viewers   *stubViewers
	clock     *clockwork.FakeClock
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:          "development",
		Port:            "0",
		WSConnectRate:   100,
		WSConnectBurst:  100,
		SnapshotTimeout: time.Second,
	}
}

func newTestServer(t *testing.T, opts ...func(*Dependencies)) *testServer {
	t.Helper()

	ts := &testServer{
		endpoint: &fakeEndpoint{},
		relay:    &recordingRelay{},
		snapshots: &stubSnapshots{polls: map[string]*domain.PollSnapshot{
			testPollID: {ID: testPollID, Title: "Lunch?", Options: []domain.PollOption{{ID: "o1", OptionText: "Pizza"}}},
		}},
		viewers: &stubViewers{counts: map[string]int{testPollID: 2}, rooms: 1, connections: 2},
		clock:   clockwork.NewFakeClock(),
	}

	deps := Dependencies{
		Endpoint:  ts.endpoint,
		Relay:     ts.relay,
		Snapshots: ts.snapshots,
		Viewers:   ts.viewers,
		Clock:     ts.clock,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	ts.Server = NewServer(testConfig(), deps)
	return ts
}

func withHealthChecks(checks ...HealthCheck) func(*Dependencies) {
	return func(d *Dependencies) {
		d.HealthChecks = checks
	}
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}
