package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// OpenLogSinks builds the optional log destinations configured for the
// process. The returned close func flushes and releases all of them.
func OpenLogSinks(cfg *Config) ([]io.Writer, func(), error) {
	var (
		sinks   []io.Writer
		closers []io.Closer
	)
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		sinks = append(sinks, f)
		closers = append(closers, f)
	}
	if cfg.BetterStackEndpoint != "" && cfg.BetterStackToken != "" {
		remote := NewRemoteLogWriter(cfg.BetterStackEndpoint, cfg.BetterStackToken, nil)
		sinks = append(sinks, remote)
		closers = append(closers, remote)
	}
	return sinks, func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}, nil
}

// RemoteLogWriter ships zerolog JSON lines to a BetterStack style HTTP
// ingestion endpoint. Writes never block the caller; lines are dropped when
// the queue is full or the endpoint is failing.
type RemoteLogWriter struct {
	endpoint string
	token    string
	client   *http.Client

	queue chan []byte
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type remoteLogEntry struct {
	Dt      string         `json:"dt"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

func NewRemoteLogWriter(endpoint, token string, client *http.Client) *RemoteLogWriter {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	w := &RemoteLogWriter{
		endpoint: endpoint,
		token:    token,
		client:   client,
		queue:    make(chan []byte, 256),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Write drops the line once the writer is closed.
func (w *RemoteLogWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return len(p), nil
	}
	line := append([]byte(nil), p...)
	select {
	case w.queue <- line:
	default:
	}
	return len(p), nil
}

// Close drains queued lines and stops the sender. It is safe to call more
// than once.
func (w *RemoteLogWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
	return nil
}

func (w *RemoteLogWriter) loop() {
	defer w.wg.Done()
	for line := range w.queue {
		_ = w.send(line)
	}
}

func (w *RemoteLogWriter) send(line []byte) error {
	entry := toRemoteEntry(line)
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.token)
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("log endpoint status %d", resp.StatusCode)
	}
	return nil
}

// toRemoteEntry uses the phase field as the message when present, matching
// how components log ("phase": "moderation.blocked").
func toRemoteEntry(line []byte) remoteLogEntry {
	var fields map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(line), &fields); err != nil {
		return remoteLogEntry{Dt: time.Now().UTC().Format(time.RFC3339), Message: string(bytes.TrimSpace(line))}
	}
	entry := remoteLogEntry{Dt: time.Now().UTC().Format(time.RFC3339)}
	if ts, ok := fields["time"].(string); ok {
		entry.Dt = ts
		delete(fields, "time")
	}
	if phase, ok := fields["phase"].(string); ok && phase != "" {
		entry.Message = phase
		delete(fields, "phase")
	} else if msg, ok := fields["message"].(string); ok {
		entry.Message = msg
		delete(fields, "message")
	}
	if len(fields) > 0 {
		entry.Context = fields
	}
	return entry
}
