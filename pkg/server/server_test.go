package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert"
	"github.com/kjk/common/log"

	"mythkv/pkg/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	config := store.DefaultConfig()
	config.DataDir = filepath.Join(t.TempDir(), "store")
	config.ExpectedKeys = 1024
	config.MaxValueSize = 16
	s, err := store.Open(config)
	assert.NoError(t, err)

	ts := httptest.NewServer(New(s, "", config.MaxValueSize).Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return ts, s
}

func do(t *testing.T, method string, url string, body []byte) (int, []byte) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	assert.NoError(t, err)
	rsp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	defer rsp.Body.Close()
	d, err := io.ReadAll(rsp.Body)
	assert.NoError(t, err)
	return rsp.StatusCode, d
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	code, _ := do(t, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusNoContent, code)
}

func TestPutGetDelete(t *testing.T) {
	ts, _ := newTestServer(t)
	url := ts.URL + "/kv/x"

	code, _ := do(t, http.MethodGet, url, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, http.MethodPut, url, []byte{1, 2, 3})
	assert.Equal(t, http.StatusOK, code)

	code, body := do(t, http.MethodGet, url, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []byte{1, 2, 3}, body)

	code, _ = do(t, http.MethodDelete, url, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, http.MethodGet, url, nil)
	assert.Equal(t, http.StatusNotFound, code)

	// deleting again is fine
	code, _ = do(t, http.MethodDelete, url, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestPutRejectsBadValues(t *testing.T) {
	ts, s := newTestServer(t)

	code, _ := do(t, http.MethodPut, ts.URL+"/kv/k", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, http.MethodPut, ts.URL+"/kv/k", bytes.Repeat([]byte("v"), 17))
	assert.Equal(t, http.StatusBadRequest, code)

	assert.Equal(t, int64(0), s.Stats().LogBytes)
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)
	code, _ := do(t, http.MethodPost, ts.URL+"/kv/k", []byte("v"))
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestStats(t *testing.T) {
	ts, _ := newTestServer(t)
	do(t, http.MethodPut, ts.URL+"/kv/a", []byte("1"))
	do(t, http.MethodDelete, ts.URL+"/kv/b", nil)

	code, body := do(t, http.MethodGet, ts.URL+"/stats", nil)
	assert.Equal(t, http.StatusOK, code)
	var st store.Stats
	assert.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 2, st.Keys)
	assert.Equal(t, uint64(2), st.Version)
	assert.Equal(t, uint64(1), st.Puts)
	assert.Equal(t, uint64(1), st.Deletes)
	assert.Equal(t, "none", st.SyncMode)

	code, body = do(t, http.MethodGet, ts.URL+"/stats?pretty=1", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, strings.Contains(string(body), "\n  \"keys\": 2"))
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	ts, s := newTestServer(t)
	assert.NoError(t, s.Close())
	code, _ := do(t, http.MethodPut, ts.URL+"/kv/k", []byte("v"))
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestRequestsGoToHTTPLog(t *testing.T) {
	dir := t.TempDir()
	log.Init(&log.Config{Dir: dir})
	t.Cleanup(log.Close)

	ts, _ := newTestServer(t)
	code, _ := do(t, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = do(t, http.MethodGet, ts.URL+"/kv/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	// waits for handlers to finish
	ts.Close()
	log.Close()

	files, err := os.ReadDir(filepath.Join(dir, "http"))
	assert.NoError(t, err)
	assert.Equal(t, 1, len(files))
	d, err := os.ReadFile(filepath.Join(dir, "http", files[0].Name()))
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(d)), "\n")
	assert.Equal(t, 2, len(lines))

	var entry struct {
		Method string `json:"method"`
		URL    string `json:"url"`
		Code   int    `json:"code"`
	}
	assert.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, http.MethodGet, entry.Method)
	assert.Equal(t, "/kv/missing", entry.URL)
	assert.Equal(t, http.StatusNotFound, entry.Code)
}
