package synth

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSynthesize_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer cw_demo_12345" {
			t.Errorf("expected bearer token, got %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		if got := r.FormValue("text"); got != "Hello there" {
			t.Errorf("expected text %q, got %q", "Hello there", got)
		}
		if got := r.FormValue("voice_id"); got != "naija_female" {
			t.Errorf("expected voice_id %q, got %q", "naija_female", got)
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte{0x00, 0x01})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "cw_demo_12345")
	audio, err := client.Synthesize(context.Background(), "Hello there", "naija_female")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(audio, []byte{0x00, 0x01}) {
		t.Errorf("audio = %v, want [0 1]", audio)
	}
}

func TestSynthesize_NoTokenOmitsHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("expected no Authorization header, got %q", got)
		}
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "").Synthesize(context.Background(), "hi", "v"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSynthesize_BackendError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("model loading\n"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok").Synthesize(context.Background(), "hi", "v")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}

	var synthErr *Error
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if synthErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", synthErr.StatusCode)
	}
	if synthErr.Message != "model loading" {
		t.Errorf("Message = %q, want %q", synthErr.Message, "model loading")
	}
	if synthErr.Transport() {
		t.Error("expected Transport() = false for backend error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("backend called %d times, want exactly 1 (no retry)", n)
	}
}

func TestSynthesize_BackendErrorEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bad").Synthesize(context.Background(), "hi", "v")
	var synthErr *Error
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if synthErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", synthErr.StatusCode)
	}
	if synthErr.Message != "empty error body" {
		t.Errorf("Message = %q, want %q", synthErr.Message, "empty error body")
	}
}

func TestSynthesize_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "tok").Synthesize(context.Background(), "hi", "v")
	var synthErr *Error
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if !synthErr.Transport() {
		t.Errorf("expected transport error, got status %d", synthErr.StatusCode)
	}
	if synthErr.Unwrap() == nil {
		t.Error("expected wrapped cause for transport error")
	}
}

func TestSynthesize_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL, "tok", WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := client.Synthesize(context.Background(), "hi", "v")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}

	var synthErr *Error
	if !errors.As(err, &synthErr) || !synthErr.Transport() {
		t.Fatalf("expected transport *Error, got %v", err)
	}
	if !isTimeout(synthErr.Err) {
		t.Errorf("expected timeout cause, got %v", synthErr.Err)
	}
}

func TestSynthesize_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL, "tok").Synthesize(ctx, "hi", "v")
	var synthErr *Error
	if !errors.As(err, &synthErr) || !synthErr.Transport() {
		t.Fatalf("expected transport *Error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	backend := &Error{StatusCode: 503, Message: "busy"}
	if got := backend.Error(); got != "synth: backend returned status 503: busy" {
		t.Errorf("Error() = %q", got)
	}

	transport := &Error{Message: "sending request", Err: errors.New("connection refused")}
	if got := transport.Error(); got != "synth: sending request: connection refused" {
		t.Errorf("Error() = %q", got)
	}
}
