package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yashubustudio/papersift/papersift"
)

const libraryCSV = `Key,Item Type,Publication Year,Author,Title,Abstract Note
A1,journalArticle,2021,"Kim, Min",Graph neural networks,Message passing neural networks on molecular graphs.
A2,book,2018,Ann Lee,Medieval poetry,Rhyme and meter in medieval verse.
A3,conferencePaper,2022,"Ito, Ken",Neural networks for graphs,Graph convolution networks learn molecular properties.
A4,journalArticle,2020,,Baking bread,Sourdough fermentation at home.
`

const reference = "graph neural networks for molecular graphs"

type countingFactory struct{ built atomic.Int32 }

func (f *countingFactory) build(cfg papersift.Config) (papersift.Embedder, error) {
	f.built.Add(1)
	return papersift.NewHashEmbedder(256), nil
}

func newTestServer(t *testing.T) (*Server, *countingFactory) {
	t.Helper()
	cfg := papersift.Config{Embedder: papersift.EmbedderConfig{Provider: papersift.ProviderHashing}}
	factory := &countingFactory{}
	pool := papersift.NewEmbedderPool(cfg, factory.build)
	t.Cleanup(func() { pool.Close() })
	srv, err := NewServer(cfg, pool, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	return srv, factory
}

func upload(t *testing.T, h http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func process(t *testing.T, h http.Handler, sessionID string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func uploadSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := upload(t, h, "library.csv", libraryCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)["session_id"].(string)
}

func TestUploadCreatesSession(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := upload(t, srv.Handler(), "library.csv", libraryCSV)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "library.csv", out["filename"])
	assert.EqualValues(t, 4, out["paper_count"])
	id := out["session_id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, srv.Sessions().Len())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.Equal(t, id, cookies[0].Value)
}

func TestUploadRejectsBadFiles(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := upload(t, h, "library.xlsx", libraryCSV)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], ".csv")

	rec = upload(t, h, "empty.csv", "Key,Title\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("plain"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, srv.Sessions().Len())
}

func TestProcessSelectsAndReusesEmbeddings(t *testing.T) {
	srv, factory := newTestServer(t)
	h := srv.Handler()
	id := uploadSession(t, h)

	rec := process(t, h, id, map[string]any{"reference_text": reference, "threshold_method": "median"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, false, out["reused_embeddings"])
	assert.EqualValues(t, 4, out["total_count"])
	assert.EqualValues(t, 2, out["selected_count"])
	assert.Len(t, out["similarities"], 4)
	assert.NotEmpty(t, out["histogram"])
	stats := out["stats"].(map[string]any)
	assert.EqualValues(t, 4, stats["count"])
	assert.Equal(t, true, stats["has_threshold"])

	rec = process(t, h, id, map[string]any{"reference_text": reference, "threshold_method": "custom", "custom_threshold": 0.99})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out = decode(t, rec)
	assert.Equal(t, true, out["reused_embeddings"])
	assert.Equal(t, 0.99, out["threshold"])
	assert.EqualValues(t, 0, out["selected_count"])
	assert.EqualValues(t, 1, factory.built.Load())
}

func TestProcessCustomThresholdOverridesMethod(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	id := uploadSession(t, h)

	rec := process(t, h, id, map[string]any{
		"reference_text":   reference,
		"threshold_method": "mean_2std",
		"custom_threshold": 0.0,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, 0.0, out["threshold"])
	assert.Equal(t, "fixed(0)", out["strategy"])
}

func TestProcessRejectsNonFiniteThresholds(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	id := uploadSession(t, h)

	for _, method := range []string{"fixed:inf", "custom:-inf", "fixed:nan"} {
		rec := process(t, h, id, map[string]any{"reference_text": reference, "threshold_method": method})
		assert.Equal(t, http.StatusBadRequest, rec.Code, method)
		out := decode(t, rec)
		assert.Equal(t, false, out["success"], method)
		assert.Contains(t, out["error"], "threshold", method)
	}
}

func TestWriteJSONReportsEncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]any{"threshold": math.Inf(1)})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "encode response")
}

func TestProcessErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := process(t, h, "", map[string]any{"reference_text": reference})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "upload")

	id := uploadSession(t, h)
	rec = process(t, h, id, map[string]any{"reference_text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = process(t, h, id, map[string]any{"reference_text": reference, "threshold_method": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "threshold")

	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader("{"))
	req.Header.Set(sessionHeader, id)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownload(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	id := uploadSession(t, h)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: id})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusBadRequest, get("/download/csv").Code)

	rec := process(t, h, id, map[string]any{"reference_text": reference, "threshold_method": "fixed:0.3"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = get("/download/csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "library_selected.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.True(t, strings.HasSuffix(lines[0], papersift.ScoreColumn))
	assert.True(t, strings.HasPrefix(lines[1], "A1,") || strings.HasPrefix(lines[1], "A3,"), lines[1])
	assert.NotContains(t, rec.Body.String(), "Baking bread")

	rec = get("/download/bib")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Kim2021_")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "library_selected.bib")

	assert.Equal(t, http.StatusNotFound, get("/download/pdf").Code)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, papersift.DefaultModelID, out["model"])
}

func TestRequestsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	cfg := papersift.Config{Embedder: papersift.EmbedderConfig{Provider: papersift.ProviderHashing}}
	pool := papersift.NewEmbedderPool(cfg, nil)
	t.Cleanup(func() { pool.Close() })
	srv, err := NewServer(cfg, pool, log.New(&buf, "", 0))
	require.NoError(t, err)

	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Contains(t, buf.String(), "GET /health 200")
}

func TestNewServerRejectsBadTTL(t *testing.T) {
	cfg := papersift.Config{Web: papersift.WebConfig{SessionTTL: "soon"}}
	_, err := NewServer(cfg, papersift.NewEmbedderPool(cfg, nil), nil)
	assert.ErrorContains(t, err, "sessionTtl")
}
