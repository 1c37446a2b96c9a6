package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/cropsage/cropsage/internal/chunk"
	"github.com/cropsage/cropsage/internal/embedding"
	"github.com/cropsage/cropsage/internal/ingest"
	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/internal/pipeline"
	"github.com/cropsage/cropsage/internal/ranking"
	"github.com/cropsage/cropsage/internal/retrieval"
	"github.com/cropsage/cropsage/internal/storage"
	"github.com/cropsage/cropsage/internal/synthesis"
	"github.com/cropsage/cropsage/internal/vector"
)

func newWorker(t *testing.T) (*Worker, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	index, err := vector.NewMemoryIndex(16)
	if err != nil {
		t.Fatal(err)
	}
	logger := zap.NewNop()
	embedder := embedding.NewMockEmbedder(16)
	ing := ingest.New(store, chunk.NewChunker(20, 80, 10), embedder, index, nil, logger)

	retriever := retrieval.NewRetriever(store, embedder, index, nil, logger)
	synthesizer := synthesis.NewSynthesizer(nil, 0, logger)
	pipe := pipeline.New(store, retriever, ranking.NewRanker(nil), synthesizer, pipeline.Options{}, logger)

	w := New(store, ing, pipe, Config{BatchSize: 4, MaxAttempts: 2}, logger)
	return w, store
}

func enqueueFileJob(t *testing.T, store *storage.SQLiteStore, id, path string) {
	t.Helper()
	payload, _ := json.Marshal(IngestPayload{Path: path, SourceType: models.SourceGovernment})
	job := &storage.Job{ID: id, Kind: storage.JobIngestFile, Payload: string(payload)}
	if err := store.EnqueueJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}
}

func TestRunOnceIngestsQueuedFile(t *testing.T) {
	w, store := newWorker(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "bulletin.txt")
	body := strings.Repeat("Interveinal chlorosis on corn points at iron or magnesium deficiency in high pH soils.\n\n", 5)
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	enqueueFileJob(t, store, "j1", path)

	n, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("processed %d jobs, want 1", n)
	}

	sources, err := store.ListSources(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 || sources[0].Status != models.StatusReady {
		t.Fatalf("sources = %+v", sources)
	}
	if sources[0].Title != "bulletin.txt" {
		t.Errorf("title = %q", sources[0].Title)
	}

	// The done job is not claimed again.
	n, err = w.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("reclaimed %d jobs, want 0", n)
	}
}

func TestRunOnceFailedJobRetriesThenParks(t *testing.T) {
	w, store := newWorker(t)
	ctx := context.Background()

	enqueueFileJob(t, store, "j1", "/nonexistent/bulletin.pdf")

	// First attempt fails and requeues.
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	n, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("retry not claimed, processed %d", n)
	}

	// Second failure hits MaxAttempts and parks the job.
	n, _ = w.RunOnce(ctx)
	if n != 0 {
		t.Errorf("parked job reclaimed, processed %d", n)
	}
}

func TestRunOnceRecommendJob(t *testing.T) {
	w, store := newWorker(t)
	ctx := context.Background()

	// Seed the reference corpus through a normal ingest job.
	path := filepath.Join(t.TempDir(), "deficiency.txt")
	body := strings.Repeat("Interveinal chlorosis on corn leaves usually signals iron or magnesium deficiency. Confirm with tissue testing before any corrective application.\n\n", 4)
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	enqueueFileJob(t, store, "j1", path)
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	snap := &models.InputSnapshot{
		ID:          "in1",
		Type:        models.ObservationPhoto,
		Crop:        "corn",
		Location:    "Iowa",
		Description: "interveinal chlorosis on the lower leaves",
	}
	if err := store.CreateSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}

	payload, _ := json.Marshal(models.RecommendationRequest{
		RecommendationID: "rec1", InputID: "in1", Limit: 4,
	})
	job := &storage.Job{ID: "j2", Kind: storage.JobRecommend, Payload: string(payload)}
	if err := store.EnqueueJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	n, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("processed %d jobs, want 1", n)
	}

	result, err := store.GetResult(ctx, "rec1")
	if err != nil {
		t.Fatal(err)
	}
	if result.InputID != "in1" {
		t.Fatalf("result = %+v", result)
	}

	// A redelivered request completes against the stored result instead of
	// running the pipeline again.
	dup := &storage.Job{ID: "j3", Kind: storage.JobRecommend, Payload: string(payload)}
	if err := store.EnqueueJob(ctx, dup); err != nil {
		t.Fatal(err)
	}
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	again, err := store.GetResult(ctx, "rec1")
	if err != nil {
		t.Fatal(err)
	}
	if again.CreatedAt != result.CreatedAt {
		t.Error("redelivery produced a new result")
	}
}

func TestRunOnceUnknownJobKind(t *testing.T) {
	w, store := newWorker(t)
	ctx := context.Background()

	job := &storage.Job{ID: "j1", Kind: "mystery", Payload: "{}"}
	if err := store.EnqueueJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	// Unknown kinds burn through attempts and park rather than erroring the
	// whole loop.
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ := w.RunOnce(ctx)
	if n != 0 {
		t.Errorf("unknown-kind job still circulating")
	}
}
