package image

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"retouch/internal/domain"
	"retouch/internal/providers/gemini"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type stubEditor struct {
	name  string
	queue []error
	res   *Result
	calls int
	last  EditRequest
}

func (s *stubEditor) Name() string { return s.name }

func (s *stubEditor) Edit(_ context.Context, req EditRequest) (*Result, error) {
	s.calls++
	s.last = req
	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		if next != nil {
			return nil, next
		}
	}
	if s.res == nil {
		return nil, errors.New("no result")
	}
	return s.res, nil
}

func unavailableErr() error {
	return &StatusError{Provider: "stub", Code: http.StatusServiceUnavailable, Message: "busy"}
}

func testChain(editors ...Editor) *Chain {
	return NewChain(ChainOptions{InitialInterval: time.Millisecond, Logger: zerolog.New(io.Discard)}, editors...)
}

var sampleIntent = domain.EditIntent{
	Locale:           "es",
	Change:           []domain.EditChange{{Type: domain.ChangeHairLength, Value: "short"}},
	Instruction:      "pelo corto",
	PreserveIdentity: true,
	OutputSize:       1024,
}

func TestChainWithoutEditorsIsUnavailable(t *testing.T) {
	_, err := testChain(nil).Edit(context.Background(), EditRequest{ImageURL: "https://img.test/a.jpg"})
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("err = %v", err)
	}
	status, code, msg, _ := domain.ErrorInfo(err)
	if status != http.StatusServiceUnavailable || code != domain.CodeServiceUnavailable || !strings.Contains(msg, "AI image service unavailable") {
		t.Fatalf("ErrorInfo = %d %s %s", status, code, msg)
	}
}

func TestChainRetriesTransientThenSucceeds(t *testing.T) {
	first := &stubEditor{name: "gemini", queue: []error{unavailableErr(), nil}, res: &Result{Data: []byte("png")}}
	res, err := testChain(first).Edit(context.Background(), EditRequest{ImageURL: "https://img.test/a.jpg", Intent: sampleIntent})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if first.calls != 2 || res.Provider != "gemini" {
		t.Fatalf("calls=%d provider=%q", first.calls, res.Provider)
	}
	if !strings.Contains(first.last.Prompt, "hair length: short") {
		t.Fatalf("prompt not derived from intent: %q", first.last.Prompt)
	}
}

func TestChainFallsBackOnPermanentError(t *testing.T) {
	first := &stubEditor{name: "gemini", queue: []error{&StatusError{Provider: "gemini", Code: http.StatusBadRequest}}}
	second := &stubEditor{name: "nanobanana", res: &Result{URL: "https://cdn.test/out.png", Provider: "nanobanana"}}
	res, err := testChain(first, second).Edit(context.Background(), EditRequest{ImageURL: "https://img.test/a.jpg"})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if first.calls != 1 || second.calls != 1 || res.URL != "https://cdn.test/out.png" {
		t.Fatalf("first=%d second=%d res=%+v", first.calls, second.calls, res)
	}
}

func TestChainAllUnavailable(t *testing.T) {
	first := &stubEditor{name: "a", queue: []error{unavailableErr(), unavailableErr(), unavailableErr()}}
	second := &stubEditor{name: "b", queue: []error{&gemini.StatusError{Code: http.StatusServiceUnavailable}, unavailableErr(), unavailableErr()}}
	_, err := testChain(first, second).Edit(context.Background(), EditRequest{ImageURL: "https://img.test/a.jpg"})
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if first.calls != defaultMaxTries || second.calls != defaultMaxTries {
		t.Fatalf("calls = %d/%d", first.calls, second.calls)
	}
}

func TestChainMixedFailureIsProviderFailure(t *testing.T) {
	first := &stubEditor{name: "a", queue: []error{errors.New("bad prompt")}}
	_, err := testChain(first).Edit(context.Background(), EditRequest{ImageURL: "https://img.test/a.jpg"})
	if !errors.Is(err, domain.ErrProviderFailure) || errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&StatusError{Code: http.StatusTooManyRequests}, true},
		{&StatusError{Code: http.StatusServiceUnavailable}, true},
		{&gemini.StatusError{Code: http.StatusBadGateway}, true},
		{&StatusError{Code: http.StatusBadRequest}, false},
		{errors.New("boom"), false},
		{nil, false},
	}
	for _, tc := range tests {
		if got := Transient(tc.err); got != tc.want {
			t.Fatalf("Transient(%v) = %v", tc.err, got)
		}
	}
}

type fakeImageModel struct {
	instruction string
	mime        string
}

func (f *fakeImageModel) EditImage(_ context.Context, instruction string, _ []byte, mimeType string) ([]byte, string, error) {
	f.instruction = instruction
	f.mime = mimeType
	return []byte("edited"), "image/png", nil
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(context.Context, string) ([]byte, string, error) {
	return []byte("source"), "image/webp", nil
}

func TestGeminiEditorFetchesSource(t *testing.T) {
	model := &fakeImageModel{}
	res, err := NewGeminiEditor(model, fakeFetcher{}).Edit(context.Background(), EditRequest{ImageURL: "https://img.test/a.webp", Prompt: "shorter"})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if string(res.Data) != "edited" || res.Format != "image/png" || model.mime != "image/webp" || model.instruction != "shorter" {
		t.Fatalf("res=%+v model=%+v", res, model)
	}
}

func TestGeminiEditorRendersIntentWithoutPrompt(t *testing.T) {
	model := &fakeImageModel{}
	in := domain.EditIntent{Instruction: "barba de 3 días", Change: []domain.EditChange{{Type: domain.ChangeBeardStyle, Value: "stubble"}}}
	if _, err := NewGeminiEditor(model, fakeFetcher{}).Edit(context.Background(), EditRequest{ImageURL: "https://img.test/a.webp", Intent: in}); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if !strings.Contains(model.instruction, "stubble") || !strings.Contains(model.instruction, "barba de 3 días") {
		t.Fatalf("instruction = %q", model.instruction)
	}
}

func TestNanoBanana(t *testing.T) {
	var captured nanoRequest
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get("Authorization") != "Bearer nb-key" {
			t.Fatalf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: io.NopCloser(strings.NewReader(
			`{"editedUrl":"https://cdn.test/edited.png","note":"ok"}`,
		))}, nil
	})}
	res, err := NewNanoBanana("https://nano.test/edit", "nb-key", client).Edit(context.Background(), EditRequest{ImageURL: "https://img.test/a.jpg", Intent: sampleIntent, Prompt: "p"})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if res.URL != "https://cdn.test/edited.png" || res.Note != "ok" || res.Provider != "nanobanana" {
		t.Fatalf("res = %+v", res)
	}
	if captured.ImageURL != "https://img.test/a.jpg" || len(captured.Changes) != 1 || captured.OutputSize != 1024 {
		t.Fatalf("captured = %+v", captured)
	}
}

func TestNanoBananaStatusError(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusServiceUnavailable, Header: http.Header{}, Body: io.NopCloser(strings.NewReader(`{"error":"warming up"}`))}, nil
	})}
	_, err := NewNanoBanana("https://nano.test/edit", "", client).Edit(context.Background(), EditRequest{ImageURL: "https://img.test/a.jpg"})
	if statusOf(err) != http.StatusServiceUnavailable || !strings.Contains(err.Error(), "warming up") {
		t.Fatalf("err = %v", err)
	}
}

func TestGeminiRESTEditor(t *testing.T) {
	client := gemini.NewRESTClient(gemini.RESTOptions{
		Endpoint: "https://legacy.test/edit",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: io.NopCloser(strings.NewReader(
				`{"url":"https://cdn.test/edited.png","publicId":"abstain/edited"}`,
			))}, nil
		})},
	})
	res, err := NewGeminiRESTEditor(client).Edit(context.Background(), EditRequest{ImageURL: "https://img.test/a.jpg", Intent: sampleIntent})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if res.URL != "https://cdn.test/edited.png" || res.PublicID != "abstain/edited" || res.Provider != "gemini-rest" {
		t.Fatalf("res = %+v", res)
	}
}
