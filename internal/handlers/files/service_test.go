package files

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uploader/internal/selection"
	"uploader/internal/session"
	"uploader/internal/testutil"
)

type part struct {
	field, name, contentType string
	content                  []byte
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, p := range parts {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.name+`"`)
		if p.contentType != "" {
			header.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = w.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func newRouter(t *testing.T, constraint FileConstraint) (http.Handler, *session.MemoryStore, string) {
	t.Helper()
	store := session.NewMemoryStore(time.Minute)
	id, err := store.Create(context.Background())
	require.NoError(t, err)

	h := NewFileHandler(NewFileService(store, constraint, testutil.NewTestLogger()))
	r := chi.NewRouter()
	r.Post("/sessions/{id}/files", h.AddFiles)
	r.Delete("/sessions/{id}/files/{index}", h.RemoveFile)
	return r, store, id
}

func TestAddFiles(t *testing.T) {
	router, store, id := newRouter(t, FileConstraint{MaxSize: 1 << 20})
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	body, contentType := multipartBody(t,
		part{field: "files", name: "lease.pdf", contentType: "application/pdf", content: []byte("%PDF-1.4")},
		part{field: "files", name: "a b.png", contentType: "application/octet-stream", content: png},
		part{field: "note", name: "ignored.txt", content: []byte("x")},
	)

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	form, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	files := form.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "lease.pdf", files[0].Name)
	assert.Equal(t, "application/pdf", files[0].ContentType)
	assert.Equal(t, int64(8), files[0].Size)
	assert.Equal(t, "a b.png", files[1].Name)
	assert.Equal(t, "image/png", files[1].ContentType)
}

func TestAddFiles_TooLarge(t *testing.T) {
	router, store, id := newRouter(t, FileConstraint{MaxSize: 4})
	body, contentType := multipartBody(t,
		part{field: "files", name: "ok.txt", content: []byte("1234")},
		part{field: "files", name: "big.txt", content: []byte("12345")},
	)

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	form, _ := store.Get(context.Background(), id)
	assert.Empty(t, form.Files())
}

func TestAddFiles_DisallowedType(t *testing.T) {
	router, _, id := newRouter(t, FileConstraint{AllowedMimeTypes: []string{"application/pdf"}})
	body, contentType := multipartBody(t, part{field: "files", name: "a.txt", content: []byte("hello")})

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddFiles_BadRequests(t *testing.T) {
	router, _, id := newRouter(t, FileConstraint{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/files", bytes.NewBufferString("{}")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, contentType := multipartBody(t, part{field: "other", name: "a.txt", content: []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/files", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, contentType = multipartBody(t, part{field: "files", name: "a.txt", content: []byte("x")})
	req = httptest.NewRequest(http.MethodPost, "/sessions/unknown/files", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddFiles_RequestTooLarge(t *testing.T) {
	router, store, id := newRouter(t, FileConstraint{MaxSize: 512, MaxRequestSize: 1024})
	chunk := bytes.Repeat([]byte("a"), 400)
	body, contentType := multipartBody(t,
		part{field: "files", name: "1.txt", content: chunk},
		part{field: "files", name: "2.txt", content: chunk},
		part{field: "files", name: "3.txt", content: chunk},
	)

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "PAYLOAD_TOO_LARGE")
	form, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, form.Files())
}

func TestAddFiles_RequestWithinLimit(t *testing.T) {
	router, store, id := newRouter(t, FileConstraint{MaxSize: 512, MaxRequestSize: 1024})
	body, contentType := multipartBody(t, part{field: "files", name: "1.txt", content: bytes.Repeat([]byte("a"), 400)})

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	form, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, form.Files(), 1)
}

func TestAddFiles_SessionLimit(t *testing.T) {
	router, store, id := newRouter(t, FileConstraint{MaxSessionSize: 20})
	require.NoError(t, store.Update(context.Background(), id, func(f *selection.Form) error {
		f.AddFiles(testutil.StagedFile("a.txt")) // 17 bytes
		return nil
	}))
	body, contentType := multipartBody(t, part{field: "files", name: "b.txt", content: []byte("1234")})

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	form, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, form.Files(), 1)
	assert.Equal(t, "a.txt", form.Files()[0].Name)
}

// countingReader records how many bytes were pulled from the request body.
type countingReader struct {
	r    io.Reader
	read int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	return n, err
}

func TestAddFiles_UnknownSessionReadsNoBody(t *testing.T) {
	router, _, _ := newRouter(t, FileConstraint{})
	body, contentType := multipartBody(t, part{field: "files", name: "a.txt", content: []byte("x")})
	counter := &countingReader{r: body}

	req := httptest.NewRequest(http.MethodPost, "/sessions/unknown/files", counter)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, counter.read)
}

func TestAddFiles_KeepsBaseName(t *testing.T) {
	router, store, id := newRouter(t, FileConstraint{})
	body, contentType := multipartBody(t, part{field: "files", name: "../../etc/report.txt", content: []byte("x")})

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	form, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "report.txt", form.Files()[0].Name)
}

func TestRemoveFile(t *testing.T) {
	router, store, id := newRouter(t, FileConstraint{})
	require.NoError(t, store.Update(context.Background(), id, func(f *selection.Form) error {
		f.AddFiles(testutil.StagedFile("a.txt"), testutil.StagedFile("b.txt"), testutil.StagedFile("c.txt"))
		return nil
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/"+id+"/files/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"index":0,"name":"a.txt","size":17,"content_type":"text/plain; charset=utf-8"},
		{"index":1,"name":"c.txt","size":17,"content_type":"text/plain; charset=utf-8"}
	]`, rec.Body.String())

	// out of range is a no-op
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/"+id+"/files/9", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/"+id+"/files/x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
