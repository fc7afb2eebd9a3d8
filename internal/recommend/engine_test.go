// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// mockProvider is a configurable in-memory DataProvider.
type mockProvider struct {
	courses    []Course
	coursesErr error

	interactions    []Interaction
	interactionsErr error

	userInteractions    map[string][]Interaction
	userInteractionsErr error

	interests    map[string][]string
	interestsErr error

	owned    map[string]map[int]bool
	ownedErr error
}

func (m *mockProvider) ListCourses(_ context.Context) ([]Course, error) {
	return m.courses, m.coursesErr
}

func (m *mockProvider) ListInteractions(_ context.Context) ([]Interaction, error) {
	return m.interactions, m.interactionsErr
}

func (m *mockProvider) GetUserInteractions(_ context.Context, userID string) ([]Interaction, error) {
	if m.userInteractionsErr != nil {
		return nil, m.userInteractionsErr
	}
	return m.userInteractions[userID], nil
}

func (m *mockProvider) GetUserInterests(_ context.Context, userID string) ([]string, error) {
	if m.interestsErr != nil {
		return nil, m.interestsErr
	}
	return m.interests[userID], nil
}

func (m *mockProvider) GetOwnedCourseIDs(_ context.Context, userID string) (map[int]bool, error) {
	if m.ownedErr != nil {
		return nil, m.ownedErr
	}
	return m.owned[userID], nil
}

// mockWorker delegates to a function and counts calls.
type mockWorker struct {
	fn    func(ctx context.Context, in PrimaryInput) ([]Recommendation, error)
	calls int
}

func (m *mockWorker) Name() string { return "mock" }

func (m *mockWorker) ComputeHybridScores(ctx context.Context, in PrimaryInput) ([]Recommendation, error) {
	m.calls++
	return m.fn(ctx, in)
}

// stubScorer returns a fixed score map.
type stubScorer struct {
	name    string
	scores  map[int]float64
	err     error
	trained bool
}

func (s *stubScorer) Name() string { return s.name }
func (s *stubScorer) Train(context.Context, *Snapshot, []Interaction) error {
	s.trained = true
	return nil
}
func (s *stubScorer) Score(context.Context, ScoreInput) (map[int]float64, error) {
	return s.scores, s.err
}
func (s *stubScorer) IsTrained() bool          { return s.trained }
func (s *stubScorer) Version() int             { return 1 }
func (s *stubScorer) LastTrainedAt() time.Time { return time.Time{} }

func testCatalog() []Course {
	return []Course{
		{ID: 1, Title: "Neural Networks", Theme: "AI", Skills: []string{"python", "deep learning"}, Rating: 4.8, Popularity: 500},
		{ID: 2, Title: "Intro to Machine Learning", Theme: "AI", Skills: []string{"python"}, Rating: 4.5, Popularity: 900},
		{ID: 3, Title: "Watercolor Basics", Theme: "Art", Skills: []string{"drawing"}, Rating: 4.9, Popularity: 2000},
		{ID: 4, Title: "Statistics for Data Science", Theme: "Data Science", Skills: []string{"statistics", "r"}, Rating: 4.2, Popularity: 700},
		{ID: 5, Title: "Go Fundamentals", Theme: "Programming", Skills: []string{"go"}, Rating: 4.6, Popularity: 1200},
	}
}

func newTestEngine(t *testing.T, provider DataProvider, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CacheTTL = 0 // tests opt in to caching explicitly
	if mutate != nil {
		mutate(&cfg)
	}
	return NewEngine(cfg, DefaultBreakerConfig(), provider, zerolog.Nop())
}

func checkInvariants(t *testing.T, records []Recommendation, k int) {
	t.Helper()
	if len(records) > k {
		t.Fatalf("got %d records, want at most %d", len(records), k)
	}
	seen := make(map[int]bool)
	for i, r := range records {
		if seen[r.CourseID] {
			t.Errorf("duplicate course id %d", r.CourseID)
		}
		seen[r.CourseID] = true
		if r.Rank != i+1 {
			t.Errorf("record %d: rank = %d, want %d", i, r.Rank, i+1)
		}
		if r.ScorePercentage < 0 || r.ScorePercentage > 100 {
			t.Errorf("course %d: score percentage %d out of range", r.CourseID, r.ScorePercentage)
		}
		if i > 0 && records[i-1].ScorePercentage < r.ScorePercentage {
			t.Errorf("records not sorted: %d before %d", records[i-1].ScorePercentage, r.ScorePercentage)
		}
	}
}

func TestRecommendPrimaryPath(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{courses: testCatalog()}
	e := newTestEngine(t, provider, nil)
	e.RegisterContentScorer(&stubScorer{name: "content", scores: map[int]float64{1: 0.8, 2: 0.6, 3: 0.1, 4: 0.4, 5: 0.2}})
	e.RegisterCollaborativeScorer(&stubScorer{name: "collab", scores: map[int]float64{1: 0.9, 2: 0.5, 3: 0.0, 4: 0.3, 5: 0.1}})

	resp, err := e.Recommend(context.Background(), Request{UserID: "u1", Count: 3})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if resp.Method != MethodHybrid {
		t.Fatalf("method = %q, want %q", resp.Method, MethodHybrid)
	}
	if !resp.ExecutionInfo.PrimarySucceeded {
		t.Error("PrimarySucceeded = false, want true")
	}
	checkInvariants(t, resp.Recommendations, 3)

	// Blended order is monotonic in the raw scores: 1 > 2 > 4.
	wantOrder := []int{1, 2, 4}
	for i, want := range wantOrder {
		if got := resp.Recommendations[i].CourseID; got != want {
			t.Errorf("rank %d: course %d, want %d", i+1, got, want)
		}
	}
	for _, r := range resp.Recommendations {
		if r.Method != MethodHybrid {
			t.Errorf("course %d: method %q, want %q", r.CourseID, r.Method, MethodHybrid)
		}
	}
}

func TestRecommendIdempotent(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{courses: testCatalog()}
	e := newTestEngine(t, provider, nil)
	e.RegisterContentScorer(&stubScorer{name: "content", scores: map[int]float64{1: 0.8, 2: 0.6, 5: 0.4}})

	req := Request{UserID: "u1", Count: 5}
	first, err := e.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("first Recommend() error = %v", err)
	}
	second, err := e.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("second Recommend() error = %v", err)
	}
	if len(first.Recommendations) != len(second.Recommendations) {
		t.Fatalf("result lengths differ: %d vs %d", len(first.Recommendations), len(second.Recommendations))
	}
	for i := range first.Recommendations {
		if first.Recommendations[i].CourseID != second.Recommendations[i].CourseID ||
			first.Recommendations[i].ScorePercentage != second.Recommendations[i].ScorePercentage {
			t.Errorf("record %d differs between identical requests", i)
		}
	}
}

func TestRecommendExcludesOwnedCourses(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		courses: testCatalog(),
		owned:   map[string]map[int]bool{"u1": {1: true, 3: true}},
	}
	e := newTestEngine(t, provider, nil)

	var captured PrimaryInput
	e.SetWorker(&mockWorker{fn: func(_ context.Context, in PrimaryInput) ([]Recommendation, error) {
		captured = in
		return []Recommendation{{CourseID: 2, ScorePercentage: 80}}, nil
	}})

	resp, err := e.Recommend(context.Background(), Request{UserID: "u1", Count: 10})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	for _, c := range captured.Candidates {
		if c.ID == 1 || c.ID == 3 {
			t.Errorf("owned course %d passed to worker as candidate", c.ID)
		}
	}
	for _, r := range resp.Recommendations {
		if r.CourseID == 1 || r.CourseID == 3 {
			t.Errorf("owned course %d in response", r.CourseID)
		}
	}
}

// A worker with its own view of the data (a subprocess scorer reading a
// stale replica, say) can return ids the user already owns. Those records
// must be dropped in post-processing, not served.
func TestRecommendDropsOwnedCoursesReturnedByWorker(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		courses: testCatalog(),
		owned:   map[string]map[int]bool{"u1": {1: true}},
	}
	e := newTestEngine(t, provider, nil)

	e.SetWorker(&mockWorker{fn: func(_ context.Context, _ PrimaryInput) ([]Recommendation, error) {
		return []Recommendation{
			{CourseID: 1, ScorePercentage: 95},
			{CourseID: 2, ScorePercentage: 80},
		}, nil
	}})

	resp, err := e.Recommend(context.Background(), Request{UserID: "u1", Count: 10})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if !resp.ExecutionInfo.PrimarySucceeded {
		t.Fatalf("PrimarySucceeded = false, want true: %s", resp.ExecutionInfo.Error)
	}
	for _, r := range resp.Recommendations {
		if r.CourseID == 1 {
			t.Errorf("owned course 1 in hybrid output at rank %d", r.Rank)
		}
	}
	if len(resp.Recommendations) != 1 || resp.Recommendations[0].CourseID != 2 {
		t.Fatalf("recommendations = %+v, want only course 2", resp.Recommendations)
	}
	checkInvariants(t, resp.Recommendations, 10)
}

func TestRecommendWorkerErrorFallsBack(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		courses:   testCatalog(),
		interests: map[string][]string{"u1": {"AI"}},
	}
	e := newTestEngine(t, provider, nil)
	e.SetWorker(&mockWorker{fn: func(context.Context, PrimaryInput) ([]Recommendation, error) {
		return nil, errors.New("scorer exploded")
	}})

	resp, err := e.Recommend(context.Background(), Request{UserID: "u1", Count: 4})
	if err != nil {
		t.Fatalf("Recommend() error = %v, want nil (fallback absorbs primary failures)", err)
	}
	if resp.Method != MethodFallback {
		t.Fatalf("method = %q, want %q", resp.Method, MethodFallback)
	}
	if resp.ExecutionInfo.PrimarySucceeded {
		t.Error("PrimarySucceeded = true for a failed primary")
	}
	if resp.ExecutionInfo.Error == "" {
		t.Error("ExecutionInfo.Error empty, want failure reason")
	}
	checkInvariants(t, resp.Recommendations, 4)

	// Interest matches come first, best rated first: AI courses 1 (4.8)
	// then 2 (4.5).
	if resp.Recommendations[0].CourseID != 1 || resp.Recommendations[1].CourseID != 2 {
		t.Errorf("fallback order = [%d, %d], want [1, 2]",
			resp.Recommendations[0].CourseID, resp.Recommendations[1].CourseID)
	}
}

func TestRecommendZeroRecordsFallsBack(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{courses: testCatalog()}
	e := newTestEngine(t, provider, nil)
	e.SetWorker(&mockWorker{fn: func(context.Context, PrimaryInput) ([]Recommendation, error) {
		return []Recommendation{}, nil
	}})

	resp, err := e.Recommend(context.Background(), Request{UserID: "u1", Count: 3})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if resp.Method != MethodFallback {
		t.Errorf("method = %q, want %q", resp.Method, MethodFallback)
	}
	if resp.ExecutionInfo.PrimarySucceeded {
		t.Error("zero primary records must not count as primary success")
	}
	if len(resp.Recommendations) == 0 {
		t.Error("fallback returned nothing for a non-empty catalog")
	}
}

func TestRecommendTimeoutFallsBack(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{courses: testCatalog()}
	e := newTestEngine(t, provider, func(cfg *Config) {
		cfg.PrimaryTimeout = 30 * time.Millisecond
	})
	e.SetWorker(&mockWorker{fn: func(ctx context.Context, _ PrimaryInput) ([]Recommendation, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})

	start := time.Now()
	resp, err := e.Recommend(context.Background(), Request{UserID: "u1", Count: 3})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("request took %s, timeout did not abandon the worker", elapsed)
	}
	if resp.Method != MethodFallback {
		t.Errorf("method = %q, want %q after timeout", resp.Method, MethodFallback)
	}
	if resp.ExecutionInfo.PrimarySucceeded {
		t.Error("PrimarySucceeded = true after timeout")
	}
}

func TestRecommendCatalogUnavailable(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{coursesErr: errors.New("duckdb: io error")}
	e := newTestEngine(t, provider, nil)

	resp, err := e.Recommend(context.Background(), Request{UserID: "u1", Count: 3})
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("error = %v, want ErrCatalogUnavailable", err)
	}
	if resp == nil {
		t.Fatal("response is nil, want empty response with execution info")
	}
	if len(resp.Recommendations) != 0 {
		t.Errorf("got %d records for unavailable catalog", len(resp.Recommendations))
	}
	if resp.ExecutionInfo.Error == "" {
		t.Error("ExecutionInfo.Error empty")
	}
}

func TestRecommendProfileUnavailable(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		courses:             testCatalog(),
		userInteractionsErr: errors.New("profile store down"),
	}
	e := newTestEngine(t, provider, nil)

	_, err := e.Recommend(context.Background(), Request{UserID: "u1", Count: 3})
	if !errors.Is(err, ErrProfileUnavailable) {
		t.Fatalf("error = %v, want ErrProfileUnavailable", err)
	}
}

func TestRecommendCallerInterestsSkipStoredLookup(t *testing.T) {
	t.Parallel()

	// The stored-interest lookup would fail; caller interests must bypass it.
	provider := &mockProvider{
		courses:      testCatalog(),
		interestsErr: errors.New("interest store down"),
	}
	e := newTestEngine(t, provider, nil)

	var captured PrimaryInput
	e.SetWorker(&mockWorker{fn: func(_ context.Context, in PrimaryInput) ([]Recommendation, error) {
		captured = in
		return []Recommendation{{CourseID: 5, ScorePercentage: 70}}, nil
	}})

	_, err := e.Recommend(context.Background(), Request{UserID: "u1", Interests: []string{"go"}, Count: 2})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(captured.Interests) != 1 || captured.Interests[0] != "go" {
		t.Errorf("worker interests = %v, want caller-provided [go]", captured.Interests)
	}
}

func TestRecommendCountDefaultAndCap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		count     int
		wantCount int
	}{
		{"zero uses default", 0, 10},
		{"negative uses default", -3, 10},
		{"above max is capped", 500, 50},
		{"in range passes through", 7, 7},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newTestEngine(t, &mockProvider{}, nil)
			got := e.prepareRequest(Request{UserID: "u1", Count: tt.count})
			if got.Count != tt.wantCount {
				t.Errorf("prepared count = %d, want %d", got.Count, tt.wantCount)
			}
		})
	}
}

func TestRecommendCachesPrimarySuccesses(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{courses: testCatalog()}
	e := newTestEngine(t, provider, func(cfg *Config) {
		cfg.CacheTTL = time.Minute
	})
	w := &mockWorker{fn: func(context.Context, PrimaryInput) ([]Recommendation, error) {
		return []Recommendation{{CourseID: 2, ScorePercentage: 90}}, nil
	}}
	e.SetWorker(w)

	req := Request{UserID: "u1", Count: 3}
	if _, err := e.Recommend(context.Background(), req); err != nil {
		t.Fatalf("first Recommend() error = %v", err)
	}
	if _, err := e.Recommend(context.Background(), req); err != nil {
		t.Fatalf("second Recommend() error = %v", err)
	}
	if w.calls != 1 {
		t.Errorf("worker ran %d times, want 1 (second request served from cache)", w.calls)
	}
}

func TestRecommendFallbackNotCached(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{courses: testCatalog()}
	e := newTestEngine(t, provider, func(cfg *Config) {
		cfg.CacheTTL = time.Minute
	})
	w := &mockWorker{fn: func(context.Context, PrimaryInput) ([]Recommendation, error) {
		return nil, errors.New("boom")
	}}
	e.SetWorker(w)

	req := Request{UserID: "u1", Count: 3}
	for i := 0; i < 2; i++ {
		if _, err := e.Recommend(context.Background(), req); err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
	}
	if w.calls != 2 {
		t.Errorf("worker ran %d times, want 2 (fallback responses are not cached)", w.calls)
	}
}

func TestPostProcessDedupAndUnknownIDs(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &mockProvider{}, nil)
	records := []Recommendation{
		{CourseID: 2, ScorePercentage: 80},
		{CourseID: 2, ScorePercentage: 75}, // duplicate, dropped
		{CourseID: 999, ScorePercentage: 90}, // unknown, dropped
		{CourseID: 1, ScorePercentage: 120},  // clamped to 100
		{CourseID: 4, ScorePercentage: -5},   // clamped to 0
	}

	got := e.postProcess(records, testCatalog(), nil, 10)
	checkInvariants(t, got, 10)
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[0].CourseID != 1 || got[0].ScorePercentage != 100 {
		t.Errorf("top record = %+v, want course 1 at 100", got[0])
	}
	if got[2].CourseID != 4 || got[2].ScorePercentage != 0 {
		t.Errorf("bottom record = %+v, want course 4 at 0", got[2])
	}
	if got[1].Title == "" {
		t.Error("title not filled from catalog")
	}
}

func TestPostProcessTieBreaksByCourseID(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &mockProvider{}, nil)
	records := []Recommendation{
		{CourseID: 5, ScorePercentage: 70},
		{CourseID: 2, ScorePercentage: 70},
		{CourseID: 4, ScorePercentage: 70},
	}
	got := e.postProcess(records, testCatalog(), nil, 10)
	wantOrder := []int{2, 4, 5}
	for i, want := range wantOrder {
		if got[i].CourseID != want {
			t.Errorf("position %d: course %d, want %d", i, got[i].CourseID, want)
		}
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		courses: testCatalog(),
		interactions: []Interaction{
			{UserID: "a", CourseID: 1, Type: InteractionPurchased},
			{UserID: "b", CourseID: 1, Type: InteractionPurchased},
		},
	}
	e := newTestEngine(t, provider, nil)
	content := &stubScorer{name: "content"}
	collab := &stubScorer{name: "collab"}
	e.RegisterContentScorer(content)
	e.RegisterCollaborativeScorer(collab)

	if err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !content.trained || !collab.trained {
		t.Error("scorers not trained by refresh")
	}

	st := e.Status()
	if st.SnapshotVersion != 1 {
		t.Errorf("snapshot version = %d, want 1", st.SnapshotVersion)
	}
	if st.Courses != len(provider.courses) {
		t.Errorf("snapshot courses = %d, want %d", st.Courses, len(provider.courses))
	}
	if st.Dimensions == 0 {
		t.Error("snapshot has zero dimensions")
	}
}

func TestRefreshInProgress(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	entered := make(chan struct{})
	provider := &blockingProvider{
		mockProvider: mockProvider{courses: testCatalog()},
		entered:      entered,
		release:      release,
	}
	e := newTestEngine(t, provider, nil)

	done := make(chan error, 1)
	go func() { done <- e.Refresh(context.Background()) }()

	<-entered
	if err := e.Refresh(context.Background()); !errors.Is(err, ErrRefreshInProgress) {
		t.Errorf("concurrent refresh error = %v, want ErrRefreshInProgress", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first refresh error = %v", err)
	}
}

// blockingProvider parks ListCourses until released, to hold a refresh open.
type blockingProvider struct {
	mockProvider
	entered chan struct{}
	release chan struct{}
	once    bool
}

func (b *blockingProvider) ListCourses(ctx context.Context) ([]Course, error) {
	if !b.once {
		b.once = true
		close(b.entered)
		<-b.release
	}
	return b.mockProvider.ListCourses(ctx)
}

func TestRefreshCatalogFailure(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{coursesErr: errors.New("duckdb closed")}
	e := newTestEngine(t, provider, nil)
	if err := e.Refresh(context.Background()); !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("Refresh() error = %v, want ErrCatalogUnavailable", err)
	}
}

func TestRefreshInteractionFailureDegrades(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		courses:         testCatalog(),
		interactionsErr: errors.New("profile store down"),
	}
	e := newTestEngine(t, provider, nil)
	content := &stubScorer{name: "content"}
	e.RegisterContentScorer(content)

	if err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v, want nil (snapshot still publishes)", err)
	}
	if content.trained {
		t.Error("scorer trained despite missing interactions")
	}
	if e.Status().SnapshotVersion != 1 {
		t.Error("snapshot not published")
	}
}

func TestStatusWorkerName(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &mockProvider{}, nil)
	if got := e.Status().Worker; got != "inprocess" {
		t.Errorf("default worker = %q, want %q", got, "inprocess")
	}
	e.SetWorker(&mockWorker{fn: nil})
	if got := e.Status().Worker; got != "mock" {
		t.Errorf("worker after SetWorker = %q, want %q", got, "mock")
	}
}

func TestRecommendEmptyCatalog(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{courses: []Course{}}
	e := newTestEngine(t, provider, nil)

	resp, err := e.Recommend(context.Background(), Request{UserID: "u1", Count: 5})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(resp.Recommendations) != 0 {
		t.Errorf("got %d records from an empty catalog", len(resp.Recommendations))
	}
	if resp.Method != MethodFallback {
		t.Errorf("method = %q, want %q", resp.Method, MethodFallback)
	}
}

func ExampleEngine_Recommend() {
	provider := &mockProvider{courses: []Course{
		{ID: 1, Title: "Go Fundamentals", Theme: "Programming", Rating: 4.6, Popularity: 1200},
	}}
	e := NewEngine(DefaultConfig(), DefaultBreakerConfig(), provider, zerolog.Nop())

	resp, _ := e.Recommend(context.Background(), Request{UserID: "demo-user", Count: 1})
	fmt.Println(resp.Recommendations[0].Title, resp.Method)
	// Output: Go Fundamentals hybrid
}
