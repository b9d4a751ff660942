package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lan-drop/internal/storage"
)

type testEnv struct {
	app   *fiber.App
	store *storage.LocalStorage
	hook  *logtest.Hook
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	fs := storage.NewLocalStorage(filepath.Join(t.TempDir(), "root"), 128)
	require.NoError(t, fs.EnsureLayout())

	app := fiber.New(fiber.Config{
		ErrorHandler:      ErrorHandler(log),
		StreamRequestBody: true,
	})
	RegisterRoutes(app, NewHandler(fs, log))
	return &testEnv{app: app, store: fs, hook: hook}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) upload(t *testing.T, name string, body []byte) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/upload?filename="+url.QueryEscape(name), bytes.NewReader(body))
	resp := e.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeJSON(t, resp)
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return b
}

func sequentialBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestUpload_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	payload := sequentialBytes(10_000)

	out := env.upload(t, "clip.mp4", payload)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "video", out["folder"])
	assert.Equal(t, "clip.mp4", out["filename"])
	assert.Equal(t, "clip.mp4 uploaded successfully", out["message"])
	assert.Equal(t, "9.77 KB", out["formattedSize"])

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/download/video/clip.mp4", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, int64(len(payload)), resp.ContentLength)
	assert.Equal(t, payload, readBody(t, resp))
}

func TestUpload_CollisionGetsSuffix(t *testing.T) {
	env := newTestEnv(t)

	first := env.upload(t, "photo.jpg", []byte("one"))
	second := env.upload(t, "photo.jpg", []byte("two"))
	assert.Equal(t, "photo.jpg", first["filename"])
	assert.Equal(t, "photo_1.jpg", second["filename"])
	assert.Equal(t, "pictures", second["folder"])

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/download/pictures/photo.jpg", nil))
	assert.Equal(t, "one", string(readBody(t, resp)))
	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/download/pictures/photo_1.jpg", nil))
	assert.Equal(t, "two", string(readBody(t, resp)))
}

func TestUpload_PathTraversalConfined(t *testing.T) {
	env := newTestEnv(t)

	out := env.upload(t, "../../escape.txt", []byte("contained"))
	assert.Equal(t, "escape.txt", out["filename"])
	assert.Equal(t, "documents", out["folder"])

	_, err := os.Stat(filepath.Join(env.store.Dir(storage.CategoryDocuments), "escape.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(env.store.Root()), "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestUpload_InvalidName(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/upload?filename=..", bytes.NewReader([]byte("x")))
	resp := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	out := decodeJSON(t, resp)
	assert.Equal(t, false, out["success"])
}

func TestUpload_NoFilenameNoForm(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader([]byte("x"))))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	out := decodeJSON(t, resp)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "No files uploaded", out["error"])
}

func TestUpload_WriteErrorIs500(t *testing.T) {
	env := newTestEnv(t)
	dir := env.store.Dir(storage.CategoryFiles)
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, nil, 0644))

	req := httptest.NewRequest(http.MethodPost, "/upload?filename=blob.bin", bytes.NewReader([]byte("data")))
	resp := env.do(t, req)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	out := decodeJSON(t, resp)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "STORAGE_ERROR", out["code"])
	assert.Contains(t, out["error"], "not a directory")

	entry := env.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "Upload failed", entry.Message)
	assert.Equal(t, "blob.bin", entry.Data["filename"])
}

func TestUpload_LogFieldsSurviveLaterRequests(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "first-name.txt", []byte("1"))
	env.upload(t, "other-name.txt", []byte("2"))
	env.upload(t, "third-name.txt", []byte("3"))

	var names []any
	for _, e := range env.hook.AllEntries() {
		if e.Message == "Upload completed" {
			names = append(names, e.Data["filename"])
		}
	}
	assert.Equal(t, []any{"first-name.txt", "other-name.txt", "third-name.txt"}, names)
}

func TestUploadForm_MultipleFiles(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range map[string]string{"song.mp3": "la la", "notes.txt": "hello"} {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := env.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeJSON(t, resp)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "2 file(s) uploaded successfully", out["message"])
	assert.Len(t, out["files"], 2)

	_, err := os.Stat(filepath.Join(env.store.Dir(storage.CategoryAudio), "song.mp3"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(env.store.Dir(storage.CategoryDocuments), "notes.txt"))
	assert.NoError(t, err)
}

func TestDownload_PartialRange(t *testing.T) {
	env := newTestEnv(t)
	payload := sequentialBytes(1000)
	env.upload(t, "data.bin", payload)

	req := httptest.NewRequest(http.MethodGet, "/download/files/data.bin", nil)
	req.Header.Set("Range", "bytes=100-199")
	resp := env.do(t, req)

	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 100-199/1000", resp.Header.Get("Content-Range"))
	assert.Equal(t, int64(100), resp.ContentLength)
	assert.Equal(t, payload[100:200], readBody(t, resp))
}

func TestDownload_OpenEndedAndSuffixRanges(t *testing.T) {
	env := newTestEnv(t)
	payload := sequentialBytes(1000)
	env.upload(t, "data.bin", payload)

	req := httptest.NewRequest(http.MethodGet, "/download/files/data.bin", nil)
	req.Header.Set("Range", "bytes=900-")
	resp := env.do(t, req)
	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 900-999/1000", resp.Header.Get("Content-Range"))
	assert.Equal(t, payload[900:], readBody(t, resp))

	req = httptest.NewRequest(http.MethodGet, "/download/files/data.bin", nil)
	req.Header.Set("Range", "bytes=-10")
	resp = env.do(t, req)
	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 990-999/1000", resp.Header.Get("Content-Range"))
	assert.Equal(t, payload[990:], readBody(t, resp))
}

func TestDownload_RangeNotSatisfiable(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "data.bin", sequentialBytes(1000))

	for _, header := range []string{"bytes=1000-1001", "bytes=5-1000", "bytes=2000-", "bytes=2000-10", "bytes=1500-1200"} {
		req := httptest.NewRequest(http.MethodGet, "/download/files/data.bin", nil)
		req.Header.Set("Range", header)
		resp := env.do(t, req)
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.StatusCode, header)
		assert.Equal(t, "bytes */1000", resp.Header.Get("Content-Range"), header)
		assert.Empty(t, readBody(t, resp), header)
	}
}

func TestDownload_MalformedRange(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "data.bin", sequentialBytes(1000))

	req := httptest.NewRequest(http.MethodGet, "/download/files/data.bin", nil)
	req.Header.Set("Range", "bytes=abc-def")
	resp := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", decodeJSON(t, resp)["code"])
}

func TestDownload_InvalidCategoryAndMissingFile(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/download/secrets/a.txt", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	out := decodeJSON(t, resp)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Invalid folder type", out["error"])

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/download/documents/missing.txt", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDownload_ContentDispositionEncoded(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "my notes.txt", []byte("hi"))

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/download/documents/my%20notes.txt", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="my%20notes.txt"; filename*=UTF-8''my%20notes.txt`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "hi", string(readBody(t, resp)))
}

func TestDownloadLegacy(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "report.pdf", []byte("%PDF"))

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/download/report.pdf", nil))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/download/documents/report.pdf", resp.Header.Get("Location"))

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/download/nope.pdf", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListFiles_NewestFirst(t *testing.T) {
	env := newTestEnv(t)

	base := time.Now().Add(-time.Hour)
	uploads := []struct {
		name string
		age  time.Duration
	}{
		{"song.mp3", 0},
		{"photo.png", time.Minute},
		{"sheet.csv", 2 * time.Minute},
	}
	for _, u := range uploads {
		out := env.upload(t, u.name, make([]byte, 1536))
		p := filepath.Join(env.store.Root(), fmt.Sprint(out["folder"]), u.name)
		mt := base.Add(u.age)
		require.NoError(t, os.Chtimes(p, mt, mt))
	}

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Success bool `json:"success"`
		Files   []struct {
			Name          string    `json:"name"`
			Size          int64     `json:"size"`
			FormattedSize string    `json:"formattedSize"`
			Date          time.Time `json:"date"`
			Type          string    `json:"type"`
			Path          string    `json:"path"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(readBody(t, resp), &out))
	require.True(t, out.Success)
	require.Len(t, out.Files, 3)

	assert.Equal(t, "sheet.csv", out.Files[0].Name)
	assert.Equal(t, "documents", out.Files[0].Type)
	assert.Equal(t, "documents/sheet.csv", out.Files[0].Path)
	assert.Equal(t, "photo.png", out.Files[1].Name)
	assert.Equal(t, "pictures", out.Files[1].Type)
	assert.Equal(t, "song.mp3", out.Files[2].Name)
	assert.Equal(t, "audio", out.Files[2].Type)
	for _, f := range out.Files {
		assert.Equal(t, int64(1536), f.Size)
		assert.Equal(t, "1.50 KB", f.FormattedSize)
	}
	assert.True(t, out.Files[0].Date.After(out.Files[1].Date))
}

func TestListFiles_Empty(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.RemoveAll(env.store.Dir(storage.CategoryVideo)))

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"files":[]}`, string(readBody(t, resp)))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(readBody(t, resp)))
}
