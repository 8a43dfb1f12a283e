package httpfs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/kbukum/filestream/errors"
	"github.com/kbukum/filestream/resilience"
	"github.com/kbukum/filestream/storage"
)

func fastOptions() storage.Options {
	return storage.Options{
		Headers: map[string]string{"Authorization": "Bearer token"},
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		},
	}
}

func newServer(t *testing.T, flaky *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/data/a.txt", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "x\ny\n")
	})
	mux.HandleFunc("/flaky.txt", func(w http.ResponseWriter, _ *http.Request) {
		if flaky.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	})
	mux.HandleFunc("/down.txt", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/forbidden.txt", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpen(t *testing.T) {
	var flaky atomic.Int32
	srv := newServer(t, &flaky)
	fs := New(fastOptions(), nil)
	ctx := context.Background()

	rc, err := fs.Open(ctx, srv.URL+"/data/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "x\ny\n" {
		t.Errorf("got %q", data)
	}
}

func TestOpen_RetriesServerErrors(t *testing.T) {
	var flaky atomic.Int32
	srv := newServer(t, &flaky)
	fs := New(fastOptions(), nil)

	rc, err := fs.Open(context.Background(), srv.URL+"/flaky.txt")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	_ = rc.Close()
	if flaky.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", flaky.Load())
	}
}

func TestOpen_Errors(t *testing.T) {
	var flaky atomic.Int32
	srv := newServer(t, &flaky)
	fs := New(fastOptions(), nil)
	ctx := context.Background()

	tests := []struct {
		path string
		want apperrors.ErrorCode
	}{
		{"/missing.txt", apperrors.ErrCodeNotFound},
		{"/down.txt", apperrors.ErrCodeBackendUnavailable},
		{"/forbidden.txt", apperrors.ErrCodeOpenFailed},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			_, err := fs.Open(ctx, srv.URL+tc.path)
			if apperrors.CodeOf(err) != tc.want {
				t.Errorf("expected %s, got %v", tc.want, err)
			}
		})
	}
}

func TestOpen_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/a.txt"
	srv.Close()

	_, err := New(fastOptions(), nil).Open(context.Background(), url)
	if apperrors.CodeOf(err) != apperrors.ErrCodeBackendUnavailable {
		t.Errorf("expected BACKEND_UNAVAILABLE, got %v", err)
	}
}

func TestGlobAndIsFile(t *testing.T) {
	var flaky atomic.Int32
	srv := newServer(t, &flaky)
	fs := New(fastOptions(), nil)
	ctx := context.Background()

	got, err := fs.Glob(ctx, srv.URL+"/data/a.txt")
	if err != nil || len(got) != 1 || got[0] != srv.URL+"/data/a.txt" {
		t.Errorf("literal glob: %v, %v", got, err)
	}
	if got, err := fs.Glob(ctx, srv.URL+"/data/*.txt"); err != nil || len(got) != 0 {
		t.Errorf("wildcard glob: %v, %v", got, err)
	}
	if got, err := fs.Glob(ctx, srv.URL+"/missing.txt"); err != nil || len(got) != 0 {
		t.Errorf("missing glob: %v, %v", got, err)
	}
	if ok, err := fs.IsFile(ctx, srv.URL+"/forbidden.txt"); err == nil || ok {
		t.Errorf("expected error for 403, got %v, %v", ok, err)
	}
}

func TestRegistered(t *testing.T) {
	fs, err := storage.New("https", storage.Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if fs.Protocol() != "https" {
		t.Errorf("protocol = %q", fs.Protocol())
	}
}
