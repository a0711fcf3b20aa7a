// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/innsight/innsight/internal/config"
	"github.com/innsight/innsight/internal/database"
	"github.com/innsight/innsight/internal/eventpipeline"
	"github.com/innsight/innsight/internal/models"
)

// fakeStore is an in-memory Store double.
type fakeStore struct {
	mu      sync.Mutex
	hotels  map[string]*models.HotelSummary
	reviews map[string]*models.Review

	createHotelErr  error
	createReviewErr error
	applied         []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hotels:  make(map[string]*models.HotelSummary),
		reviews: make(map[string]*models.Review),
	}
}

func (f *fakeStore) addHotel(id, name string) {
	f.hotels[id] = &models.HotelSummary{
		Hotel: models.Hotel{ID: id, Name: name, CreatedAt: time.Now()},
	}
}

func (f *fakeStore) CreateHotel(ctx context.Context, h *models.Hotel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createHotelErr != nil {
		return f.createHotelErr
	}
	f.hotels[h.ID] = &models.HotelSummary{Hotel: *h}
	return nil
}

func (f *fakeStore) GetHotel(ctx context.Context, id string) (*models.HotelSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.hotels[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) ListHotels(ctx context.Context) ([]*models.Hotel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Hotel, 0, len(f.hotels))
	for _, s := range f.hotels {
		h := s.Hotel
		out = append(out, &h)
	}
	return out, nil
}

func (f *fakeStore) CreateReview(ctx context.Context, r *models.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createReviewErr != nil {
		return f.createReviewErr
	}
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	clone := *r
	f.reviews[r.ID] = &clone
	return nil
}

func (f *fakeStore) GetReview(ctx context.Context, id string) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (f *fakeStore) ListReviewsByHotel(ctx context.Context, hotelID string, limit int) ([]*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Review
	for _, r := range f.reviews {
		if r.HotelID == hotelID && len(out) < limit {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyOutcome(ctx context.Context, reviewID string, expectedStatusIn []models.ReviewStatus, outcome models.ReviewOutcome) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[reviewID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, s := range expectedStatusIn {
		if r.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	r.Status = outcome.Status
	if outcome.Error != "" {
		msg := outcome.Error
		r.ErrorMessage = &msg
	}
	f.applied = append(f.applied, reviewID)
	return true, nil
}

// setReviewStatus transitions a stored review, simulating the pipeline.
func (f *fakeStore) setReviewStatus(id string, status models.ReviewStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.reviews[id]; ok {
		r.Status = status
	}
}

type fakePublisher struct {
	mu         sync.Mutex
	published  []*eventpipeline.ReviewCreated
	publishErr error
}

func (f *fakePublisher) PublishReviewCreated(ctx context.Context, event *eventpipeline.ReviewCreated) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, event)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func newTestServer(t *testing.T, store *fakeStore, publisher *fakePublisher) *httptest.Server {
	t.Helper()
	handler := NewHandler(store, publisher, 2*time.Second)
	router := NewRouter(handler, config.ServerConfig{
		CORSOrigins:     []string{"*"},
		RateLimitReqs:   0, // disabled in tests
		RateLimitWindow: time.Minute,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func decodeEnvelope(t *testing.T, resp *http.Response) APIResponse {
	t.Helper()
	defer resp.Body.Close()
	var env APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func getJSON(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

func TestCreateHotel(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	srv := newTestServer(t, store, &fakePublisher{})

	resp := postJSON(t, srv.URL+"/api/v1/hotels", CreateHotelRequest{Name: "Seaside Inn", City: "Brighton"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if !env.Success {
		t.Fatal("expected success envelope")
	}
	if len(store.hotels) != 1 {
		t.Fatalf("stored hotels = %d, want 1", len(store.hotels))
	}
}

func TestCreateHotelValidation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, newFakeStore(), &fakePublisher{})

	resp := postJSON(t, srv.URL+"/api/v1/hotels", CreateHotelRequest{Name: ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
		t.Fatalf("error = %+v, want %s", env.Error, ErrCodeValidationFailed)
	}
}

func TestGetHotelNotFound(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, newFakeStore(), &fakePublisher{})

	resp := getJSON(t, srv.URL+"/api/v1/hotels/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Fatalf("error = %+v, want %s", env.Error, ErrCodeNotFound)
	}
}

func TestCreateReviewAccepted(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addHotel("h1", "Seaside Inn")
	publisher := &fakePublisher{}
	srv := newTestServer(t, store, publisher)

	resp := postJSON(t, srv.URL+"/api/v1/hotels/h1/reviews", CreateReviewRequest{
		Title:   "Lovely stay",
		Content: "The staff were wonderful and the view was excellent.",
		Rating:  5,
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if !env.Success {
		t.Fatal("expected success envelope")
	}

	if publisher.count() != 1 {
		t.Fatalf("published events = %d, want 1", publisher.count())
	}
	if len(store.reviews) != 1 {
		t.Fatalf("stored reviews = %d, want 1", len(store.reviews))
	}
	for _, r := range store.reviews {
		if r.Status != models.StatusPending {
			t.Errorf("review status = %s, want PENDING", r.Status)
		}
	}
	// Event mirrors the stored review.
	event := publisher.published[0]
	if event.HotelID != "h1" || event.Rating != 5 {
		t.Errorf("event = %+v, want hotel h1 rating 5", event)
	}
}

func TestCreateReviewUnknownHotel(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{}
	srv := newTestServer(t, newFakeStore(), publisher)

	resp := postJSON(t, srv.URL+"/api/v1/hotels/ghost/reviews", CreateReviewRequest{
		Content: "fine", Rating: 3,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if publisher.count() != 0 {
		t.Fatalf("published events = %d, want 0", publisher.count())
	}
}

func TestCreateReviewPublishFailureMarksFailed(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addHotel("h1", "Seaside Inn")
	publisher := &fakePublisher{publishErr: errors.New("broker unavailable")}
	srv := newTestServer(t, store, publisher)

	resp := postJSON(t, srv.URL+"/api/v1/hotels/h1/reviews", CreateReviewRequest{
		Content: "The room was fine.", Rating: 3,
	})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Error == nil || env.Error.Code != ErrCodeServiceUnavailable {
		t.Fatalf("error = %+v, want %s", env.Error, ErrCodeServiceUnavailable)
	}

	// The stranded review must not stay PENDING forever.
	if len(store.applied) != 1 {
		t.Fatalf("applied outcomes = %d, want 1", len(store.applied))
	}
	for _, r := range store.reviews {
		if r.Status != models.StatusFailed {
			t.Errorf("review status = %s, want FAILED", r.Status)
		}
	}
}

func TestGetReviewWaitReturnsTerminalState(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addHotel("h1", "Seaside Inn")
	review := &models.Review{
		ID: "r1", HotelID: "h1", Content: "great", Rating: 5,
		Status: models.StatusPending,
	}
	if err := store.CreateReview(context.Background(), review); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, store, &fakePublisher{})

	// Complete the review shortly after the wait starts.
	go func() {
		time.Sleep(200 * time.Millisecond)
		store.setReviewStatus("r1", models.StatusCompleted)
	}()

	start := time.Now()
	resp := getJSON(t, srv.URL+"/api/v1/reviews/r1?wait=1s")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)

	raw, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatal(err)
	}
	var got models.Review
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
	if elapsed := time.Since(start); elapsed >= time.Second {
		t.Errorf("wait took %v, should return as soon as terminal", elapsed)
	}
}

func TestGetReviewWaitExpiresWithCurrentState(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	review := &models.Review{
		ID: "r1", HotelID: "h1", Content: "great", Rating: 5,
		Status: models.StatusPending,
	}
	if err := store.CreateReview(context.Background(), review); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, store, &fakePublisher{})

	resp := getJSON(t, srv.URL+"/api/v1/reviews/r1?wait=300ms")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)

	raw, _ := json.Marshal(env.Data)
	var got models.Review
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusPending {
		t.Errorf("status = %s, want PENDING after wait expiry", got.Status)
	}
}

func TestGetReviewMalformedWait(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, newFakeStore(), &fakePublisher{})

	resp := getJSON(t, srv.URL+"/api/v1/reviews/r1?wait=banana")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestListHotelReviewsLimit(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addHotel("h1", "Seaside Inn")
	srv := newTestServer(t, store, &fakePublisher{})

	resp := getJSON(t, srv.URL+"/api/v1/hotels/h1/reviews?limit=0")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for limit=0", resp.StatusCode)
	}
	resp.Body.Close()

	resp = getJSON(t, srv.URL+"/api/v1/hotels/h1/reviews?limit=abc")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for non-integer limit", resp.StatusCode)
	}
	resp.Body.Close()

	resp = getJSON(t, srv.URL+"/api/v1/hotels/h1/reviews")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, newFakeStore(), &fakePublisher{})

	resp := getJSON(t, srv.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRequestIDEchoed(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, newFakeStore(), &fakePublisher{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Request-ID", "trace-me")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "trace-me" {
		t.Errorf("X-Request-ID = %q, want %q", got, "trace-me")
	}
}
