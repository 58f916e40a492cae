package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/engine"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Server:            config.ServerConfig{Host: "127.0.0.1", Port: 0, CORSOrigins: []string{"*"}},
		DataSource:        config.SourceFilesystem,
		VectorDB:          config.VectorNone,
		GraphDB:           config.GraphNone,
		SearchDB:          config.SearchBM25,
		LLMProvider:       "ollama",
		EmbeddingProvider: "ollama",
		Ollama:            config.OllamaConfig{BaseURL: "http://localhost:11434", Model: "llama3.1", EmbeddingModel: "nomic-embed-text"},
		Chunking:          config.ChunkingConfig{ChunkSize: 300, ChunkOverlap: 30},
		BM25:              config.BM25Config{SimilarityTopK: 10},
		Timeouts: config.TimeoutConfig{
			ConvertTimeout:       10 * time.Second,
			ConvertCheckInterval: 20 * time.Millisecond,
			ExtractTimeout:       10 * time.Second,
			ExtractCheckInterval: 20 * time.Millisecond,
		},
		Dedup: config.DedupConfig{
			PreamblePrefixes: config.DefaultPreamblePrefixes,
			ClosingPhrases:   config.DefaultClosingPhrases,
			DatePatterns:     config.DefaultDatePatterns,
		},
	}

	eng, err := engine.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	return NewServer(cfg, eng)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["ready"])
	assert.Equal(t, "bm25", body["search_db"])
	assert.Equal(t, "none", body["vector_db"])
}

func TestSearchBeforeIngest(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/search", map[string]any{"query": "anything"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "please ingest documents first")
}

func TestSearchRejectsMissingQuery(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/search", map[string]any{"top_k": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessingStatusUnknownJob(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/processing-status/deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelUnknownJob(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/cancel-processing/deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngestWithoutPathsNeedsConfiguredSource(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/ingest", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode(t, w)["error"], "SOURCE_PATHS")
}

func TestIngestRejectsMissingPath(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/ingest",
		map[string]any{"paths": []string{"/no/such/file.txt"}})
	assert.NotEqual(t, http.StatusAccepted, w.Code)
}

func TestIngestRejectsUnknownDataSource(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/ingest", map[string]any{"data_source": "ftp"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "data_source")
}

func TestIngestFromRequestConnector(t *testing.T) {
	s := testServer(t)

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("cmisselector") {
		case "object":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": map[string]any{
					"succinctProperties": map[string]any{
						"cmis:objectId":              "doc-1",
						"cmis:name":                  "wiki.txt",
						"cmis:baseTypeId":            "cmis:document",
						"cmis:contentStreamMimeType": "text/plain",
						"cmis:contentStreamLength":   float64(64),
					},
				},
			})
		case "content":
			_, _ = w.Write([]byte("The Bene Gesserit trained Paul Atreides on Caladan."))
		default:
			http.Error(w, "unexpected selector", http.StatusBadRequest)
		}
	}))
	defer remote.Close()

	w := doJSON(t, s, http.MethodPost, "/api/ingest", map[string]any{
		"data_source": "cmis",
		"connector_config": map[string]any{
			"url":         remote.URL,
			"username":    "admin",
			"password":    "admin",
			"folder_path": "/Sites/wiki.txt",
		},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	jobID, _ := decode(t, w)["processing_id"].(string)
	require.NotEmpty(t, jobID)

	waitForCompletion(t, s, jobID)

	searchW := doJSON(t, s, http.MethodPost, "/api/search", map[string]any{"query": "Bene Gesserit"})
	require.Equal(t, http.StatusOK, searchW.Code)
	assert.NotZero(t, decode(t, searchW)["count"])
}

func TestIngestTextRequiresText(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/ingest-text", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func waitForCompletion(t *testing.T, s *Server, jobID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		w := doJSON(t, s, http.MethodGet, "/api/processing-status/"+jobID, nil)
		if w.Code != http.StatusOK {
			return false
		}
		status, _ := decode(t, w)["status"].(string)
		return status == "completed" || status == "failed"
	}, 30*time.Second, 50*time.Millisecond)
}

func TestSampleIngestThenSearch(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/test-sample", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	body := decode(t, w)
	jobID, _ := body["processing_id"].(string)
	require.Len(t, jobID, 8)
	assert.Equal(t, "started", body["status"])
	assert.Contains(t, body["estimated_time"], "about")

	waitForCompletion(t, s, jobID)

	statusW := doJSON(t, s, http.MethodGet, "/api/processing-status/"+jobID, nil)
	statusBody := decode(t, statusW)
	require.Equal(t, "completed", statusBody["status"])
	assert.Equal(t, float64(100), statusBody["progress"])

	searchW := doJSON(t, s, http.MethodPost, "/api/search", map[string]any{"query": "Caladan", "top_k": 5})
	require.Equal(t, http.StatusOK, searchW.Code)
	searchBody := decode(t, searchW)
	results, ok := searchBody["results"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, results)

	first, ok := results[0].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, first["content"], "Caladan")
	assert.Equal(t, "sample.txt", first["file_name"])
}

func TestIngestTextFlow(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/ingest-text", map[string]any{
		"name": "notes.txt",
		"text": "The sandworms of Arrakis produce the spice melange. Spice extends life.",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	jobID, _ := decode(t, w)["processing_id"].(string)
	require.NotEmpty(t, jobID)

	waitForCompletion(t, s, jobID)

	searchW := doJSON(t, s, http.MethodPost, "/api/search", map[string]any{"query": "sandworms"})
	require.Equal(t, http.StatusOK, searchW.Code)
	searchBody := decode(t, searchW)
	assert.NotZero(t, searchBody["count"])
}

func TestResetEndpoint(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/test-sample", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	jobID, _ := decode(t, w)["processing_id"].(string)
	waitForCompletion(t, s, jobID)

	resetW := doJSON(t, s, http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, resetW.Code)

	searchW := doJSON(t, s, http.MethodPost, "/api/search", map[string]any{"query": "Caladan"})
	assert.Equal(t, http.StatusBadRequest, searchW.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "fixed-id-123", w.Header().Get("X-Request-ID"))
}

func TestUnknownRouteIs404(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/%s", "nope"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
