package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cropsage/cropsage/internal/chunk"
	"github.com/cropsage/cropsage/internal/compliance"
	"github.com/cropsage/cropsage/internal/config"
	"github.com/cropsage/cropsage/internal/embedding"
	"github.com/cropsage/cropsage/internal/export"
	"github.com/cropsage/cropsage/internal/ingest"
	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/internal/pipeline"
	"github.com/cropsage/cropsage/internal/ranking"
	"github.com/cropsage/cropsage/internal/retrieval"
	"github.com/cropsage/cropsage/internal/storage"
	"github.com/cropsage/cropsage/internal/synthesis"
	"github.com/cropsage/cropsage/internal/vector"
	"go.uber.org/zap"
)

const testDims = 16

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	index, err := vector.NewMemoryIndex(testDims)
	if err != nil {
		t.Fatal(err)
	}
	embedder := embedding.NewMockEmbedder(testDims)
	logger := zap.NewNop()

	ing := ingest.New(store, chunk.NewChunker(20, 80, 10), embedder, index, nil, logger)
	retriever := retrieval.NewRetriever(store, embedder, index, nil, logger)
	synthesizer := synthesis.NewSynthesizer(nil, 0, logger)
	pipe := pipeline.New(store, retriever, ranking.NewRanker(nil), synthesizer, pipeline.Options{}, logger)
	evaluator := compliance.NewEvaluator(compliance.DefaultThresholds(), logger)
	exporter := export.NewExporter(store, logger)

	srv := NewServer(pipe, ing, store, evaluator, exporter, index, &config.ServerConfig{Port: 8080}, logger)
	return srv, srv.router()
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func seedReference(t *testing.T, h http.Handler) {
	t.Helper()
	guide := strings.Repeat("Interveinal chlorosis on corn leaves usually signals iron or magnesium deficiency. Confirm with tissue testing before any corrective application.\n\n", 4)
	w := postJSON(t, h, "/api/v1/references", referenceRequest{
		Title:      "Deficiency Guide",
		Text:       guide,
		SourceType: models.SourceUniversityExtension,
		Crops:      []string{"corn"},
		Tags:       []string{"chlorosis", "leaves"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("seed reference: status %d body %s", w.Code, w.Body.String())
	}
}

func TestObservationLifecycle(t *testing.T) {
	_, h := newTestServer(t)

	w := postJSON(t, h, "/api/v1/observations", models.InputSnapshot{
		Type:        models.ObservationPhoto,
		Crop:        "corn",
		Description: "yellowing between leaf veins",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	var created models.InputSnapshot
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" {
		t.Fatal("no id assigned")
	}

	w = get(h, "/api/v1/observations/"+created.ID)
	if w.Code != http.StatusOK {
		t.Errorf("get: status %d", w.Code)
	}
	w = get(h, "/api/v1/observations/nope")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing observation: status %d", w.Code)
	}
}

func TestCreateObservationRejectsEmpty(t *testing.T) {
	_, h := newTestServer(t)
	w := postJSON(t, h, "/api/v1/observations", models.InputSnapshot{Type: models.ObservationPhoto})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestRecommendationFlow(t *testing.T) {
	_, h := newTestServer(t)
	seedReference(t, h)

	w := postJSON(t, h, "/api/v1/observations", models.InputSnapshot{
		ID:          "in1",
		Type:        models.ObservationPhoto,
		Crop:        "corn",
		Description: "interveinal chlorosis on the lower leaves",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("observation: status %d", w.Code)
	}

	w = postJSON(t, h, "/api/v1/recommendations", models.RecommendationRequest{
		RecommendationID: "rec1",
		InputID:          "in1",
		Limit:            4,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("recommend: status %d body %s", w.Code, w.Body.String())
	}
	var result models.RecommendationResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.ModelUsed != synthesis.HeuristicModelName {
		t.Errorf("model = %q", result.ModelUsed)
	}

	w = get(h, "/api/v1/recommendations/rec1")
	if w.Code != http.StatusOK {
		t.Errorf("get result: status %d", w.Code)
	}
	w = get(h, "/api/v1/recommendations/rec1/audit")
	if w.Code != http.StatusOK {
		t.Fatalf("get audit: status %d", w.Code)
	}
	var audit models.RetrievalAudit
	if err := json.NewDecoder(w.Body).Decode(&audit); err != nil {
		t.Fatal(err)
	}
	if len(audit.Candidates) == 0 {
		t.Fatal("audit has no candidates")
	}

	w = postJSON(t, h, "/api/v1/recommendations/rec1/feedback", feedbackRequest{
		ChunkID:  audit.Candidates[0].ChunkID,
		Feedback: 1,
	})
	if w.Code != http.StatusOK {
		t.Errorf("feedback: status %d body %s", w.Code, w.Body.String())
	}

	w = postJSON(t, h, "/api/v1/recommendations/rec1/feedback", feedbackRequest{ChunkID: "bogus", Feedback: 1})
	if w.Code != http.StatusNotFound {
		t.Errorf("bogus chunk feedback: status %d", w.Code)
	}
	w = postJSON(t, h, "/api/v1/recommendations/rec1/feedback", feedbackRequest{ChunkID: "x", Feedback: 5})
	if w.Code != http.StatusBadRequest {
		t.Errorf("out of range feedback: status %d", w.Code)
	}
}

func TestRecommendationUnknownInput(t *testing.T) {
	_, h := newTestServer(t)
	w := postJSON(t, h, "/api/v1/recommendations", models.RecommendationRequest{InputID: "nope"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestComplianceEndpoints(t *testing.T) {
	_, h := newTestServer(t)

	w := postJSON(t, h, "/api/v1/recommendations/rec1/compliance", models.ComplianceInput{
		Crop:     "corn",
		Location: "Story County, Iowa",
		Acreage:  120,
		Products: []models.ProductChoice{{ProductID: "p1", ApplicationRate: "2.5 oz/acre"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("evaluate: status %d body %s", w.Code, w.Body.String())
	}
	var review models.RiskReview
	if err := json.NewDecoder(w.Body).Decode(&review); err != nil {
		t.Fatal(err)
	}
	if review.RecommendationID != "rec1" {
		t.Errorf("recommendation id = %q", review.RecommendationID)
	}
	if len(review.Checks) != 6 {
		t.Errorf("checks = %d, want 6", len(review.Checks))
	}

	w = get(h, "/api/v1/recommendations/rec1/compliance")
	if w.Code != http.StatusOK {
		t.Errorf("get review: status %d", w.Code)
	}
	w = get(h, "/api/v1/recommendations/other/compliance")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing review: status %d", w.Code)
	}
}

func TestReferenceEndpoints(t *testing.T) {
	_, h := newTestServer(t)
	seedReference(t, h)

	w := get(h, "/api/v1/references")
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d", w.Code)
	}
	var out struct {
		Sources []*models.ReferenceSource `json:"sources"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(out.Sources))
	}

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/references/"+out.Sources[0].ID, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("delete: status %d", rec.Code)
	}

	w = postJSON(t, h, "/api/v1/references", referenceRequest{Title: "empty"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty reference: status %d", w.Code)
	}
}

func TestReferencePathQueuesJob(t *testing.T) {
	srv, h := newTestServer(t)

	w := postJSON(t, h, "/api/v1/references", referenceRequest{
		Title: "Bulletin",
		Path:  "/data/bulletin.pdf",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", w.Code)
	}

	jobs, err := srv.store.DequeueJobs(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	if jobs[0].Kind != storage.JobIngestFile {
		t.Errorf("kind = %q", jobs[0].Kind)
	}
	if !strings.Contains(jobs[0].Payload, "/data/bulletin.pdf") {
		t.Errorf("payload = %q", jobs[0].Payload)
	}
}

func TestAsyncRecommendationQueuesJob(t *testing.T) {
	srv, h := newTestServer(t)

	w := postJSON(t, h, "/api/v1/recommendations?async=true", models.RecommendationRequest{
		InputID: "in1",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["recommendation_id"] == "" {
		t.Error("no recommendation_id assigned")
	}

	jobs, err := srv.store.DequeueJobs(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].Kind != storage.JobRecommend {
		t.Fatalf("jobs = %+v", jobs)
	}
	if !strings.Contains(jobs[0].Payload, resp["recommendation_id"]) {
		t.Errorf("payload %q missing assigned id", jobs[0].Payload)
	}
}

func TestExportTraining(t *testing.T) {
	_, h := newTestServer(t)
	w := get(h, "/api/v1/export/training")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	header := strings.SplitN(w.Body.String(), "\n", 2)[0]
	if !strings.HasPrefix(header, "qid,label,f0_similarity") {
		t.Errorf("csv header = %q", header)
	}
}

func TestHealthAndStatus(t *testing.T) {
	_, h := newTestServer(t)
	if w := get(h, "/health"); w.Code != http.StatusOK {
		t.Errorf("health: status %d", w.Code)
	}
	w := get(h, "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if _, ok := out["passages"]; !ok {
		t.Error("status missing passage count")
	}
}
