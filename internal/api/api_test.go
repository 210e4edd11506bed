package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/ingest-notifier/internal/api/handlers"
)

type memoryRecorder struct {
	mu   sync.Mutex
	reqs []handlers.IngestRequest
}

func (m *memoryRecorder) Record(req handlers.IngestRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIngest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantStored int
	}{
		{
			name:       "accepts notification",
			body:       `{"ingestion_id":"test","files":["s3://data-bucket/a.json"]}`,
			wantStatus: http.StatusOK,
			wantStored: 1,
		},
		{
			name:       "key with percent sign",
			body:       `{"ingestion_id":"test","files":["s3://data-bucket/100%.json"]}`,
			wantStatus: http.StatusOK,
			wantStored: 1,
		},
		{name: "missing key", body: `{"ingestion_id":"test","files":["s3://data-bucket/"]}`, wantStatus: http.StatusBadRequest},
		{name: "malformed json", body: `{"ingestion_id":`, wantStatus: http.StatusBadRequest},
		{name: "missing files", body: `{"ingestion_id":"test"}`, wantStatus: http.StatusBadRequest},
		{name: "empty files", body: `{"ingestion_id":"test","files":[]}`, wantStatus: http.StatusBadRequest},
		{name: "missing ingestion id", body: `{"files":["s3://data-bucket/a.json"]}`, wantStatus: http.StatusBadRequest},
		{name: "not a storage uri", body: `{"ingestion_id":"test","files":["a.json"]}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &memoryRecorder{}
			router := NewRouter(rec, nil, zerolog.Nop())

			req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Len(t, rec.reqs, tt.wantStored)
			if tt.wantStatus == http.StatusOK {
				assert.JSONEq(t, `{"status":"OK"}`, w.Body.String())
				require.Len(t, rec.reqs[0].Files, 1)
				assert.True(t, strings.HasPrefix(rec.reqs[0].Files[0], "s3://data-bucket/"))
			}
		})
	}
}

func TestHealth(t *testing.T) {
	router := NewRouter(nil, []string{"*"}, zerolog.Nop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"http://a.test, http://b.test", " "})
	assert.False(t, all)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, origins)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}
