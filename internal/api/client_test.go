package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{BaseURL: server.URL, Timeout: 5})
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	config := &Config{BaseURL: "http://localhost:5000/", Timeout: 30}

	client, err := NewClient(config)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", client.BaseURL())
	assert.Equal(t, "http://localhost:5000/download/abc", client.DownloadURL("abc"))

	_, err = NewClient(&Config{BaseURL: "ftp://example.com", Timeout: 30})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, err = NewClient(&Config{BaseURL: "http://localhost:5000"})
	require.Error(t, err)
}

func TestClient_UploadSendsMultipartForm(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "convert", r.FormValue("action"))
		assert.Equal(t, "70", r.FormValue("target"))
		assert.Equal(t, "png", r.FormValue("to_format"))

		f, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		content, _ := io.ReadAll(f)
		assert.Equal(t, "photo.heic", header.Filename)
		assert.Equal(t, "image-bytes", string(content))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"job_id":"job-42","status":"queued","progress":0}`))
	}))

	resp, err := client.Upload(context.Background(), UploadRequest{
		FileName: "/home/me/photo.heic",
		File:     strings.NewReader("image-bytes"),
		Action:   "convert",
		Target:   70,
		ToFormat: "png",
	})
	require.NoError(t, err)
	assert.Equal(t, "job-42", resp.JobID)
	assert.Equal(t, "queued", resp.Status)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_UploadErrorCarriesBackendMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{"error":"too large"}`))
	}))

	_, err := client.Upload(context.Background(), UploadRequest{
		FileName: "big.mp4",
		File:     strings.NewReader("x"),
		Action:   "compress",
	})
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusRequestEntityTooLarge, apiErr.StatusCode)
	assert.Equal(t, "too large", apiErr.Message)
}

// endlessReader never runs out of bytes and counts its reads.
type endlessReader struct {
	reads atomic.Int64
}

func (r *endlessReader) Read(p []byte) (int, error) {
	r.reads.Add(1)
	for i := range p {
		p[i] = 'x'
	}
	return len(p), nil
}

func TestClient_UploadRejectedEarlyStopsFormWriter(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{"error":"too large"}`))
	}))
	file := &endlessReader{}

	returned := make(chan error, 1)
	go func() {
		_, err := client.Upload(context.Background(), UploadRequest{
			FileName: "huge.mp4",
			File:     file,
			Action:   "compress",
		})
		returned <- err
	}()

	select {
	case err := <-returned:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("upload did not return after the backend rejected it")
	}

	reads := file.reads.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, reads, file.reads.Load(), "file still read after Upload returned")
}

func TestClient_UploadErrorWithoutMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))

	_, err := client.Upload(context.Background(), UploadRequest{
		FileName: "a.png",
		File:     strings.NewReader("x"),
		Action:   "compress",
	})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Empty(t, apiErr.Message)
	assert.Contains(t, apiErr.Error(), "502")
}

func TestClient_UploadMissingJobID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	}))

	_, err := client.Upload(context.Background(), UploadRequest{
		FileName: "a.png",
		File:     strings.NewReader("x"),
		Action:   "compress",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job_id")
}

func TestClient_JobStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/job/with-progress":
			_, _ = w.Write([]byte(`{"status":"Compressing file","progress":20}`))
		case "/job/no-progress":
			_, _ = w.Write([]byte(`{"status":"queued"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
		}
	}))

	ctx := context.Background()
	state, err := client.JobStatus(ctx, "with-progress")
	require.NoError(t, err)
	assert.Equal(t, "Compressing file", state.Status)
	require.NotNil(t, state.Progress)
	assert.Equal(t, 20.0, state.ProgressValue())

	state, err = client.JobStatus(ctx, "no-progress")
	require.NoError(t, err)
	assert.Nil(t, state.Progress)
	assert.Equal(t, 0.0, state.ProgressValue())

	_, err = client.JobStatus(ctx, "missing")
	require.Error(t, err)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "boom", apiErr.Message)
}

func TestClient_DownloadFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/download/job-1", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/storage/signed", http.StatusFound)
	})
	mux.HandleFunc("/storage/signed", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="holiday.jpg"`)
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	})
	client := newTestClient(t, mux)

	res, err := client.Download(context.Background(), "job-1")
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(body))
	assert.Equal(t, "holiday.jpg", res.FileName)
	assert.Equal(t, "image/jpeg", res.ContentType)
}

func TestClient_DownloadNotReady(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"File not ready or job not finished"}`))
	}))

	_, err := client.Download(context.Background(), "job-1")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "File not ready or job not finished", apiErr.Message)
}

func TestClient_Health(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if healthy.Load() {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	}))

	require.NoError(t, client.Health(context.Background()))

	healthy.Store(false)
	err := client.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "degraded")
}

func TestDispositionFileName(t *testing.T) {
	assert.Equal(t, "report.pdf", dispositionFileName(`attachment; filename="report.pdf"`))
	assert.Equal(t, "evil.sh", dispositionFileName(`attachment; filename="../../evil.sh"`))
	assert.Equal(t, "", dispositionFileName(""))
	assert.Equal(t, "", dispositionFileName("attachment"))
}
