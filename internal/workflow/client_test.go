package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
)

func newTestClient(t *testing.T, baseURL string, maxTries int) (*Client, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	c := NewClient(http.DefaultClient, Config{BaseURL: baseURL, MaxTries: maxTries, Timeout: 2 * time.Second}, logger)
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c, &buf
}

func TestClient_TranscribeVideo_SendsPayload(t *testing.T) {
	var got transcribeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/transcribe-video" {
			t.Errorf("path = %s, want /transcribe-video", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, 3)
	if err := c.TranscribeVideo(context.Background(), "dQw4w9WgXcQ", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.VideoID != "dQw4w9WgXcQ" || got.UserID != "u1" {
		t.Errorf("payload = %+v", got)
	}
}

func TestClient_TranscribeVideo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, 3)
	if err := c.TranscribeVideo(context.Background(), "v", "u"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClient_TranscribeVideo_GivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, 2)
	if err := c.TranscribeVideo(context.Background(), "v", "u"); err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestClient_TranscribeVideo_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, 5)
	if err := c.TranscribeVideo(context.Background(), "v", "u"); err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_Disabled(t *testing.T) {
	c, _ := newTestClient(t, "", 3)
	if c.Enabled() {
		t.Error("client without base URL should be disabled")
	}
	if err := c.TranscribeVideo(context.Background(), "v", "u"); err != nil {
		t.Errorf("disabled client should not fail: %v", err)
	}
	c.RequestTranscription(context.Background(), "v", "u")
	c.Wait()
}

func TestClient_RequestTranscription_SurvivesCallerCancel(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, 1)

	ctx, cancel := context.WithCancel(context.Background())
	c.RequestTranscription(ctx, "v", "u")
	cancel()
	c.Wait()

	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_RequestTranscription_LogsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c, buf := newTestClient(t, server.URL, 1)
	c.RequestTranscription(context.Background(), "v", "u")
	c.Wait()

	if !bytes.Contains(buf.Bytes(), []byte("transcription request abandoned")) {
		t.Errorf("expected failure log, got %s", buf.String())
	}
}

type recorderFunc func(err error, d time.Duration)

func (f recorderFunc) RecordTranscription(err error, d time.Duration) { f(err, d) }

func TestClient_RequestTranscription_RecordsResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	var recorded atomic.Int32
	var failed atomic.Bool
	c, _ := newTestClient(t, server.URL, 1)
	c.config.Recorder = recorderFunc(func(err error, _ time.Duration) {
		recorded.Add(1)
		failed.Store(err != nil)
	})

	c.RequestTranscription(context.Background(), "v", "u")
	c.Wait()

	if recorded.Load() != 1 || !failed.Load() {
		t.Errorf("recorded = %d, failed = %v; want 1, true", recorded.Load(), failed.Load())
	}
}

func TestClient_TranscribeVideo_HungAttemptDoesNotConsumeRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			<-r.Context().Done()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, Config{
		BaseURL:        server.URL,
		Timeout:        2 * time.Second,
		AttemptTimeout: 100 * time.Millisecond,
		MaxTries:       3,
	}, slog.New(slog.NewJSONHandler(&buf, nil)))
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	start := time.Now()
	if err := c.TranscribeVideo(context.Background(), "v", "u"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("elapsed = %v, want the hung attempt cut at AttemptTimeout", elapsed)
	}
}

func TestNewClient_AttemptTimeoutDefaults(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want time.Duration
	}{
		{"未指定はTimeoutを試行回数で割る", Config{Timeout: 9 * time.Second, MaxTries: 3}, 3 * time.Second},
		{"指定値を使う", Config{Timeout: 9 * time.Second, AttemptTimeout: time.Second, MaxTries: 3}, time.Second},
		{"Timeoutを超える指定は使わない", Config{Timeout: 4 * time.Second, AttemptTimeout: time.Minute, MaxTries: 2}, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(http.DefaultClient, tt.cfg, slog.Default())
			if c.config.AttemptTimeout != tt.want {
				t.Errorf("AttemptTimeout = %v, want %v", c.config.AttemptTimeout, tt.want)
			}
		})
	}
}
