package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"retouch/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func respond(status int, body string) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}}, nil
	})}
}

func TestParsePayloadStripsFences(t *testing.T) {
	type payload struct {
		Pose string `json:"pose"`
	}
	tests := []string{
		`{"pose":"frontal"}`,
		"```json\n{\"pose\":\"frontal\"}\n```",
		"Here you go: {\"pose\":\"frontal\"} thanks",
	}
	for _, raw := range tests {
		got, err := ParsePayload[payload](raw)
		if err != nil || got.Pose != "frontal" {
			t.Fatalf("ParsePayload(%q) = %+v, %v", raw, got, err)
		}
	}
	if _, err := ParsePayload[payload]("   "); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestRESTAdvise(t *testing.T) {
	var got AdviceRequest
	client := NewRESTClient(RESTOptions{
		Endpoint: "https://bridge.test/advise",
		APIKey:   "secret",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Query().Get("key") != "secret" {
				t.Fatalf("missing key query: %s", r.URL)
			}
			_ = json.NewDecoder(r.Body).Decode(&got)
			return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: io.NopCloser(strings.NewReader(
				`{"advisoryText":"Corte medio","cut":{"length":"short"},"beard":{"style":"stubble"},"confidence":0.8}`,
			))}, nil
		})},
	})
	advice, err := client.Advise(context.Background(), AdviceRequest{ImageURL: "https://img.test/a.jpg", Prompt: AdvicePrompt("es")})
	if err != nil {
		t.Fatalf("Advise: %v", err)
	}
	if got.ImageURL != "https://img.test/a.jpg" || !strings.Contains(got.Prompt, "en es") {
		t.Fatalf("request = %+v", got)
	}
	if advice.AdvisoryText != "Corte medio" || advice.Cut == nil || advice.Cut.Length != "short" || advice.Beard.Style != "stubble" {
		t.Fatalf("advice = %+v", advice)
	}
}

func TestRESTEditResults(t *testing.T) {
	intent := domain.EditIntent{Instruction: "shorter hair", OutputSize: 1024, PreserveIdentity: true}

	client := NewRESTClient(RESTOptions{Endpoint: "https://bridge.test/edit", HTTPClient: respond(http.StatusOK, `{"url":"https://cdn.test/edited.png","publicId":"abstain/edited"}`)})
	res, data, err := client.Edit(context.Background(), "https://img.test/a.jpg", "prompt", intent)
	if err != nil || res.URL != "https://cdn.test/edited.png" || data != nil {
		t.Fatalf("url edit = %+v %v %v", res, data, err)
	}

	client = NewRESTClient(RESTOptions{Endpoint: "https://bridge.test/edit", HTTPClient: respond(http.StatusOK, `{"imageBase64":"aGVsbG8=","mimeType":"image/png"}`)})
	_, data, err = client.Edit(context.Background(), "https://img.test/a.jpg", "prompt", intent)
	if err != nil || string(data) != "hello" {
		t.Fatalf("inline edit = %q %v", data, err)
	}

	client = NewRESTClient(RESTOptions{Endpoint: "https://bridge.test/edit", HTTPClient: respond(http.StatusOK, `{}`)})
	if _, _, err := client.Edit(context.Background(), "https://img.test/a.jpg", "prompt", intent); err == nil {
		t.Fatalf("expected empty response error")
	}
}

func TestRESTStatusErrors(t *testing.T) {
	client := NewRESTClient(RESTOptions{Endpoint: "https://bridge.test/edit", HTTPClient: respond(http.StatusServiceUnavailable, `{"error":{"code":503,"message":"overloaded"}}`)})
	_, _, err := client.Edit(context.Background(), "https://img.test/a.jpg", "p", domain.EditIntent{})
	if StatusCode(err) != http.StatusServiceUnavailable || !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("err = %v", err)
	}

	if NewRESTClient(RESTOptions{}).Enabled() {
		t.Fatalf("client without endpoint should be disabled")
	}
}
