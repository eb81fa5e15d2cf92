package backfill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/syncline/likesync/internal/store"
	"github.com/syncline/likesync/internal/types"
)

// --- Mock Implementations for Testing ---

type mockStore struct {
	mu         sync.Mutex
	page       []types.Video
	pageErr    error
	lastCursor string
	lastLimit  int
	results    []store.EmbeddingResult
	applyErr   error
	applyCalls int
}

func (m *mockStore) GetEmbeddingPage(ctx context.Context, cursor string, limit int) ([]types.Video, error) {
	m.lastCursor = cursor
	m.lastLimit = limit
	return m.page, m.pageErr
}

func (m *mockStore) ApplyEmbeddingResults(ctx context.Context, results []store.EmbeddingResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++
	m.results = results
	return m.applyErr
}

type mockEmbedder struct {
	mu       sync.Mutex
	calls    int
	inFlight int
	maxSeen  int
	failFor  map[string]error
	dims     int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	for needle, err := range m.failFor {
		if strings.Contains(text, needle) {
			return nil, err
		}
	}
	return make([]float32, m.dims), nil
}

func (m *mockEmbedder) ModelName() string { return "test-model" }
func (m *mockEmbedder) Dimensions() int   { return m.dims }

func testVideo(id string, status types.EmbeddingStatus, blob []byte) types.Video {
	return types.Video{
		VideoID:         id,
		Title:           "Title " + id,
		EmbeddingStatus: status,
		Embedding:       blob,
	}
}

// --- ProcessPage ---

func TestScheduler_ProcessPage_EmptyPage(t *testing.T) {
	st := &mockStore{}
	s := NewScheduler(st, &mockEmbedder{dims: 4}, 25, 10)

	result, err := s.ProcessPage(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if result.HasMore {
		t.Error("empty page must not signal continuation")
	}
	if st.applyCalls != 0 {
		t.Error("nothing should be committed for an empty page")
	}
}

func TestScheduler_ProcessPage_SkipsValidEmbeddings(t *testing.T) {
	dims := 4
	validBlob := make([]byte, dims*4)

	var page []types.Video
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("v%02d", i)
		if i < 5 {
			page = append(page, testVideo(id, types.EmbeddingComplete, validBlob))
		} else {
			page = append(page, testVideo(id, types.EmbeddingPending, nil))
		}
	}

	st := &mockStore{page: page}
	emb := &mockEmbedder{dims: dims}
	s := NewScheduler(st, emb, 25, 10)

	result, err := s.ProcessPage(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}

	if result.Skipped != 5 {
		t.Errorf("Skipped = %d, want 5", result.Skipped)
	}
	if result.Processed != 20 {
		t.Errorf("Processed = %d, want 20", result.Processed)
	}
	if emb.calls != 20 {
		t.Errorf("embedder calls = %d, want 20", emb.calls)
	}
	if !result.HasMore {
		t.Error("full page must signal continuation")
	}
	if result.NextCursor != "v24" {
		t.Errorf("NextCursor = %q, want v24", result.NextCursor)
	}
	if st.applyCalls != 1 {
		t.Errorf("applyCalls = %d, want one shared commit per page", st.applyCalls)
	}
}

func TestScheduler_ProcessPage_CompleteButCorruptBlobIsReprocessed(t *testing.T) {
	dims := 4
	// complete status but truncated blob: must not be skipped
	page := []types.Video{
		testVideo("v1", types.EmbeddingComplete, make([]byte, dims*4-1)),
	}

	st := &mockStore{page: page}
	emb := &mockEmbedder{dims: dims}
	s := NewScheduler(st, emb, 25, 10)

	result, err := s.ProcessPage(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped != 0 || result.Processed != 1 {
		t.Errorf("skipped=%d processed=%d, want corrupt blob reprocessed", result.Skipped, result.Processed)
	}
}

func TestScheduler_ProcessPage_ShortPageEndsSweep(t *testing.T) {
	st := &mockStore{page: []types.Video{
		testVideo("v1", types.EmbeddingPending, nil),
		testVideo("v2", types.EmbeddingPending, nil),
	}}
	s := NewScheduler(st, &mockEmbedder{dims: 4}, 25, 10)

	result, err := s.ProcessPage(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if result.HasMore {
		t.Error("short page must not signal continuation")
	}
}

func TestScheduler_ProcessPage_FailureRecordedNotFatal(t *testing.T) {
	st := &mockStore{page: []types.Video{
		testVideo("good1", types.EmbeddingPending, nil),
		testVideo("bad1", types.EmbeddingPending, nil),
	}}
	emb := &mockEmbedder{
		dims:    4,
		failFor: map[string]error{"bad1": errors.New("rate limited")},
	}
	s := NewScheduler(st, emb, 25, 10)

	result, err := s.ProcessPage(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}

	if result.Processed != 1 || result.Failed != 1 {
		t.Errorf("processed=%d failed=%d, want 1/1", result.Processed, result.Failed)
	}

	var foundFailure bool
	for _, res := range st.results {
		if res.VideoID == "bad1" {
			foundFailure = true
			if res.Err == "" {
				t.Error("failure must carry the error message")
			}
			if res.Embedding != nil {
				t.Error("failed result must not carry a vector")
			}
		}
	}
	if !foundFailure {
		t.Error("failed video must still be committed in the shared batch")
	}
}

func TestScheduler_ProcessPage_BoundedConcurrency(t *testing.T) {
	var page []types.Video
	for i := 0; i < 25; i++ {
		page = append(page, testVideo(fmt.Sprintf("v%02d", i), types.EmbeddingPending, nil))
	}

	st := &mockStore{page: page}
	emb := &mockEmbedder{dims: 4}
	s := NewScheduler(st, emb, 25, 3)

	if _, err := s.ProcessPage(context.Background(), ""); err != nil {
		t.Fatal(err)
	}

	if emb.maxSeen > 3 {
		t.Errorf("observed %d concurrent embed calls, limit is 3", emb.maxSeen)
	}
}

func TestScheduler_ProcessPage_CursorForwarded(t *testing.T) {
	st := &mockStore{}
	s := NewScheduler(st, &mockEmbedder{dims: 4}, 25, 10)

	if _, err := s.ProcessPage(context.Background(), "v41"); err != nil {
		t.Fatal(err)
	}
	if st.lastCursor != "v41" {
		t.Errorf("cursor = %q, want v41", st.lastCursor)
	}
	if st.lastLimit != 25 {
		t.Errorf("limit = %d, want 25", st.lastLimit)
	}
}

func TestScheduler_ProcessPage_PageQueryError(t *testing.T) {
	st := &mockStore{pageErr: errors.New("db locked")}
	s := NewScheduler(st, &mockEmbedder{dims: 4}, 25, 10)

	if _, err := s.ProcessPage(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}
}
