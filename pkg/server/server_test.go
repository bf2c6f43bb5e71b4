// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/gasket/pkg/catalog"
	"github.com/kadirpekel/gasket/pkg/config"
	"github.com/kadirpekel/gasket/pkg/engine"
	"github.com/kadirpekel/gasket/pkg/vector"
)

type stubProvider struct{}

func (stubProvider) Name() string                          { return "stub" }
func (stubProvider) Build(context.Context, []string) error { return nil }
func (stubProvider) Size() int                             { return 0 }
func (stubProvider) Close() error                          { return nil }
func (stubProvider) Search(context.Context, string, int) ([]vector.Hit, error) {
	return nil, nil
}

type stubLLM struct{ reply string }

func (s stubLLM) Generate(context.Context, string) (string, error) { return s.reply, nil }
func (s stubLLM) Model() string                                    { return "gpt-4o" }
func (s stubLLM) Close() error                                     { return nil }

func testServer(t *testing.T) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parts.jsonl")
	content := `{"part_number":"BRK-00123","part_name":"Brake Pad Set","system":"Braking System","cost":2500,"stock":4}
{"part_number":"CLT-00200","part_name":"Clutch Plate","system":"Transmission","cost":1450,"stock":2}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	corpus, err := catalog.Load(path)
	require.NoError(t, err)

	cfg := config.Default(path)
	eng, err := engine.New(cfg, engine.Dependencies{
		Corpus: corpus,
		Vector: stubProvider{},
		LLM:    stubLLM{reply: "BRK-00123 is the one."},
	})
	require.NoError(t, err)

	return New(cfg, eng)
}

func TestHandleSearch(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/search",
		strings.NewReader(`{"query":"brake pad","top_k":5}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp engine.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "BRK-00123", resp.Results[0].Record.PartNumber())
}

func TestHandleSearchGet(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=clutch&k=3", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp engine.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "CLT-00200", resp.Results[0].Record.PartNumber())
}

func TestHandleSearchBadBody(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnswer(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/answer",
		strings.NewReader(`{"query":"which brake pads fit?"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp engine.AnswerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer, "BRK-00123")
}

func TestHandleCacheReload(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/cache/reload", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string       `json:"status"`
		Stats  engine.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 2, body.Stats.CorpusSize)
}

func TestMetricsRoute(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	// Metrics are enabled by default configuration.
	assert.Equal(t, http.StatusOK, rec.Code)
}
