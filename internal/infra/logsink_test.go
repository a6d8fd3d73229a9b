package infra

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRemoteLogWriterPostsPhaseAsMessage(t *testing.T) {
	var (
		mu       sync.Mutex
		received []remoteLogEntry
		auth     string
	)
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		var entry remoteLogEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			t.Errorf("decode body: %v", err)
		}
		mu.Lock()
		received = append(received, entry)
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		return &http.Response{StatusCode: http.StatusAccepted, Body: io.NopCloser(strings.NewReader(""))}, nil
	})}

	w := NewRemoteLogWriter("https://logs.example.com", "tok", client)
	logger := NewLogger("production", w)
	logger.Info().Str("phase", "moderation.blocked").Str("reason", "nsfw").Msg("image blocked")
	_ = w.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 remote entry, got %d", len(received))
	}
	if received[0].Message != "moderation.blocked" {
		t.Fatalf("message mismatch: %q", received[0].Message)
	}
	if received[0].Context["reason"] != "nsfw" {
		t.Fatalf("context mismatch: %#v", received[0].Context)
	}
	if auth != "Bearer tok" {
		t.Fatalf("authorization mismatch: %q", auth)
	}
}

func TestRemoteLogWriterFailureDoesNotBreakLogging(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("network down")
	})}
	w := NewRemoteLogWriter("https://logs.example.com", "tok", client)

	n, err := w.Write([]byte(`{"message":"hello"}`))
	if err != nil || n == 0 {
		t.Fatalf("write should succeed locally, got n=%d err=%v", n, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestRemoteLogWriterWriteAfterClose(t *testing.T) {
	var (
		mu    sync.Mutex
		posts int
	)
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		posts++
		mu.Unlock()
		return &http.Response{StatusCode: http.StatusAccepted, Body: io.NopCloser(strings.NewReader(""))}, nil
	})}
	w := NewRemoteLogWriter("https://logs.example.com", "tok", client)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	n, err := w.Write([]byte(`{"message":"late shutdown line"}`))
	if err != nil || n == 0 {
		t.Fatalf("write after close: n=%d err=%v", n, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if posts != 0 {
		t.Fatalf("late line was shipped %d times", posts)
	}
}

func TestOpenLogSinksAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	sinks, closeFn, err := OpenLogSinks(&Config{LogFile: path})
	if err != nil {
		t.Fatalf("OpenLogSinks: %v", err)
	}
	logger := NewLogger("production", sinks...)
	logger.Info().Str("phase", "upload.success").Msg("stored")
	closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "upload.success") {
		t.Fatalf("log file missing entry: %s", data)
	}
}

func TestToRemoteEntryFallsBackToRawLine(t *testing.T) {
	entry := toRemoteEntry([]byte("not json\n"))
	if entry.Message != "not json" {
		t.Fatalf("message mismatch: %q", entry.Message)
	}
}
