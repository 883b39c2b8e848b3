package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/briefing"
	"github.com/fyrsmithlabs/briefd/internal/query"
)

type stubBriefings struct {
	briefing   *briefing.Briefing
	cacheHit   bool
	lastUserID string
	lastForce  bool
}

func (s *stubBriefings) GetBriefing(ctx context.Context, userID string, forceRefresh bool) (*briefing.Briefing, bool) {
	s.lastUserID = userID
	s.lastForce = forceRefresh
	return s.briefing, s.cacheHit
}

type stubQueries struct {
	resp *query.Response
	err  error
}

func (s *stubQueries) ProcessQuery(ctx context.Context, queryText, workspaceID string) (*query.Response, error) {
	return s.resp, s.err
}

func newTestServer(t *testing.T, briefings *stubBriefings, queries *stubQueries) *Server {
	t.Helper()
	if briefings.briefing == nil {
		briefings.briefing = briefing.Fallback(time.Now())
	}
	srv, err := NewServer(briefings, queries, zap.NewNop(), nil)
	require.NoError(t, err)
	return srv
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, &stubBriefings{}, &stubQueries{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Briefing(t *testing.T) {
	briefings := &stubBriefings{}
	srv := newTestServer(t, briefings, &stubQueries{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/briefing?user_id=u1", nil)
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", briefings.lastUserID)
	assert.False(t, briefings.lastForce)
	assert.Empty(t, rec.Header().Get("X-Cache"))

	var b briefing.Briefing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.NoError(t, b.Validate())
}

func TestServer_Briefing_MissingUserID(t *testing.T) {
	srv := newTestServer(t, &stubBriefings{}, &stubQueries{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/briefing", nil)
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Briefing_CacheHitHeader(t *testing.T) {
	srv := newTestServer(t, &stubBriefings{cacheHit: true}, &stubQueries{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/briefing?user_id=u1", nil)
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestServer_Briefing_ForceRefresh(t *testing.T) {
	briefings := &stubBriefings{cacheHit: false}
	srv := newTestServer(t, briefings, &stubQueries{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/briefing?user_id=u1&force_refresh=true", nil)
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, briefings.lastForce)
}

func TestServer_Query(t *testing.T) {
	ratio := 2.5
	queries := &stubQueries{resp: &query.Response{
		Summary:  "All quiet.",
		Receipts: []query.Receipt{},
		TokenStats: query.TokenStats{
			InputTokens:      40,
			OutputTokens:     10,
			CompressionRatio: &ratio,
		},
	}}
	srv := newTestServer(t, &stubBriefings{}, queries)

	body := `{"query":"what's happening","workspace_id":"ws1"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp query.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "All quiet.", resp.Summary)
	require.NotNil(t, resp.TokenStats.CompressionRatio)
	assert.Equal(t, 2.5, *resp.TokenStats.CompressionRatio)
}

func TestServer_Query_BadRequests(t *testing.T) {
	srv := newTestServer(t, &stubBriefings{}, &stubQueries{})

	tests := []struct {
		name string
		body string
	}{
		{"missing query", `{"workspace_id":"ws1"}`},
		{"missing workspace", `{"query":"hello"}`},
		{"malformed json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			srv.echo.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestServer_Query_EngineError(t *testing.T) {
	srv := newTestServer(t, &stubBriefings{}, &stubQueries{err: errors.New("model down")})

	body := `{"query":"what's happening","workspace_id":"ws1"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t, &stubBriefings{}, &stubQueries{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
