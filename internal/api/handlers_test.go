package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/lead-refinery/internal/domain"
	"github.com/ignite/lead-refinery/internal/pipeline"
	"github.com/ignite/lead-refinery/internal/table"
)

type memBackend struct {
	sheets  map[string]*table.Table
	written map[string]*table.Table
}

func newMemBackend() *memBackend {
	return &memBackend{sheets: map[string]*table.Table{}, written: map[string]*table.Table{}}
}

func (m *memBackend) put(spreadsheet, worksheet string, t *table.Table) {
	m.sheets[spreadsheet+"/"+worksheet] = t
}

func (m *memBackend) Worksheet(_ context.Context, spreadsheet, worksheet string) (*table.Table, error) {
	t, ok := m.sheets[spreadsheet+"/"+worksheet]
	if !ok {
		return table.New(nil, nil), nil
	}
	return t, nil
}

func (m *memBackend) WriteWorksheet(_ context.Context, spreadsheet, worksheet string, t *table.Table) error {
	m.written[spreadsheet+"/"+worksheet] = t
	return nil
}

type memRunStore struct {
	runs []domain.Run
}

func (s *memRunStore) Save(_ context.Context, run *domain.Run) error {
	s.runs = append(s.runs, *run)
	return nil
}

func (s *memRunStore) List(_ context.Context, _ int) ([]domain.Run, error) {
	return s.runs, nil
}

func (s *memRunStore) Get(_ context.Context, id string) (*domain.Run, error) {
	for i := range s.runs {
		if s.runs[i].ID == id {
			return &s.runs[i], nil
		}
	}
	return nil, fmt.Errorf("run %s not found", id)
}

// newTestServer wires a full working backend: instruction sheet, input
// worksheet and one NG tab, all in spreadsheet "cfg".
func newTestServer(t *testing.T) (*httptest.Server, *memBackend, *memRunStore) {
	t.Helper()

	backend := newMemBackend()
	backend.put("cfg", "設定", table.New(
		[]string{"項目", "値"},
		[][]string{
			{"入力シート名", "リード一覧"},
			{"出力シート名", "クリーニング済"},
			{"NG使用タブ", "NGリスト"},
		},
	))
	backend.put("cfg", "リード一覧", table.New(
		[]string{"会社名", "メールアドレス"},
		[][]string{
			{"株式会社アルファ", "info@alpha.example.jp"},
			{"NG株式会社", "sales@blocked.example.jp"},
		},
	))
	backend.put("cfg", "NGリスト", table.New(
		[]string{"種別", "値"},
		[][]string{{"会社名", "NG"}},
	))

	runner := &pipeline.Runner{Source: backend, Sink: backend, ConfigSpreadsheetID: "cfg"}
	h := NewHandlers(runner, "設定")
	store := &memRunStore{}
	h.SetRunStore(store)

	srv := httptest.NewServer(SetupRoutes(h))
	t.Cleanup(srv.Close)
	return srv, backend, store
}

func TestHealthCheck(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestTriggerRun(t *testing.T) {
	srv, backend, store := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/runs", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report pipeline.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 2, report.InputRows)
	assert.Equal(t, 1, report.NGCompany)
	assert.Equal(t, 1, report.OutputRows)

	out := backend.written["cfg/クリーニング済"]
	require.NotNil(t, out)
	assert.Equal(t, 1, out.Len())

	require.Len(t, store.runs, 1)
	assert.Equal(t, domain.RunKindNGFilter, store.runs[0].Kind)
	assert.Equal(t, domain.RunCompleted, store.runs[0].Status)
}

func TestTriggerRunBadConfig(t *testing.T) {
	srv, backend, store := newTestServer(t)

	// Instruction sheet without an NG tab list.
	backend.put("cfg", "設定", table.New(
		[]string{"項目", "値"},
		[][]string{
			{"入力シート名", "リード一覧"},
			{"出力シート名", "クリーニング済"},
		},
	))

	resp, err := http.Post(srv.URL+"/api/v1/runs", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	require.Len(t, store.runs, 1)
	assert.Equal(t, domain.RunFailed, store.runs[0].Status)
	assert.NotEmpty(t, store.runs[0].Error)
}

func TestListAndGetRuns(t *testing.T) {
	srv, _, store := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/runs", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, store.runs, 1)

	resp, err = http.Get(srv.URL + "/api/v1/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Runs  []domain.Run `json:"runs"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	require.Equal(t, 1, listing.Count)

	resp, err = http.Get(srv.URL + "/api/v1/runs/" + listing.Runs[0].ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/runs/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func multipartBody(t *testing.T, files map[string][]csvFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, parts := range files {
		for _, part := range parts {
			fw, err := mw.CreateFormFile(field, part.name)
			require.NoError(t, err)
			_, err = fw.Write([]byte(part.content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

type csvFile struct {
	name    string
	content string
}

func TestFilterUpload(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body, contentType := multipartBody(t, map[string][]csvFile{
		"instruction": {{"settings.csv", "項目,値\n入力シート名,whatever\n出力シート名,out\nNG使用タブ,NGリスト\n"}},
		"input":       {{"leads.csv", "会社名,メールアドレス\n株式会社アルファ,info@alpha.example.jp\nNG株式会社,sales@blocked.example.jp\n"}},
		"ng":          {{"NGリスト.csv", "種別,値\n会社名,NG\n"}},
	})

	resp, err := http.Post(srv.URL+"/api/v1/filter", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Equal(t, "2", resp.Header.Get("X-Run-Input-Rows"))
	assert.Equal(t, "1", resp.Header.Get("X-Run-Output-Rows"))
	assert.Equal(t, "1", resp.Header.Get("X-Run-Ng-Company"))

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(out), "info@alpha.example.jp")
	assert.NotContains(t, string(out), "sales@blocked.example.jp")
}

func TestFilterUploadMissingParts(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body, contentType := multipartBody(t, map[string][]csvFile{
		"instruction": {{"settings.csv", "項目,値\nNG使用タブ,NGリスト\n"}},
		"input":       {{"leads.csv", "会社名,メールアドレス\n"}},
	})

	resp, err := http.Post(srv.URL+"/api/v1/filter", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTriggerUpdateUnconfigured(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/updates", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
