package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestAnnotateSendsKeyAndFeatures(t *testing.T) {
	var captured batchRequest
	client := NewClient(Options{
		APIKey:  "vision-key",
		BaseURL: "https://vision.test/v1/",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/v1/images:annotate" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("key"); got != "vision-key" {
				t.Fatalf("key = %q", got)
			}
			data, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(data, &captured); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			return jsonResponse(http.StatusOK, `{"responses":[{
				"faceAnnotations":[{"panAngle":3.5,"rollAngle":-2}],
				"safeSearchAnnotation":{"adult":"UNLIKELY","racy":"POSSIBLE"},
				"imagePropertiesAnnotation":{"dominantColors":{"colors":[{"color":{"red":20,"green":25,"blue":30},"score":0.6}]}},
				"labelAnnotations":[{"description":"Hair","score":0.97}]
			}]}`), nil
		})},
	})

	ann, err := client.Annotate(context.Background(), Image{URI: "https://img.test/a.jpg"}, FeatureFaceDetection, FeatureSafeSearch, FeatureImageProperties, FeatureLabelDetection)
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if len(captured.Requests) != 1 || captured.Requests[0].Image.Source == nil || captured.Requests[0].Image.Source.ImageURI != "https://img.test/a.jpg" {
		t.Fatalf("unexpected request: %+v", captured)
	}
	if len(captured.Requests[0].Features) != 4 {
		t.Fatalf("features = %+v", captured.Requests[0].Features)
	}
	if len(ann.Faces) != 1 || ann.Faces[0].PanAngle != 3.5 {
		t.Fatalf("faces = %+v", ann.Faces)
	}
	if ann.SafeSearch == nil || ann.SafeSearch.Racy != Possible {
		t.Fatalf("safe search = %+v", ann.SafeSearch)
	}
	c, ok := ann.DominantColor()
	if !ok || c.Red != 20 {
		t.Fatalf("dominant color = %+v %v", c, ok)
	}
	if len(ann.Labels) != 1 || ann.Labels[0].Description != "Hair" {
		t.Fatalf("labels = %+v", ann.Labels)
	}
}

func TestAnnotateInlineContent(t *testing.T) {
	client := NewClient(Options{
		APIKey: "k",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			data, _ := io.ReadAll(r.Body)
			if !bytes.Contains(data, []byte(`"content":"aGVsbG8="`)) {
				t.Fatalf("expected base64 content, got %s", data)
			}
			return jsonResponse(http.StatusOK, `{"responses":[{}]}`), nil
		})},
	})
	if _, err := client.Annotate(context.Background(), Image{Data: []byte("hello")}, FeatureSafeSearch); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
}

func TestAnnotateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "api error", status: http.StatusForbidden, body: `{"error":{"code":403,"message":"API key not valid"}}`, want: "vision status 403: API key not valid"},
		{name: "plain body", status: http.StatusBadGateway, body: "bad gateway", want: "vision status 502: bad gateway"},
		{name: "per image error", status: http.StatusOK, body: `{"responses":[{"error":{"code":3,"message":"bad image"}}]}`, want: "bad image"},
		{name: "empty", status: http.StatusOK, body: `{"responses":[]}`, want: "empty response"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := NewClient(Options{
				APIKey: "k",
				HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
					return jsonResponse(tc.status, tc.body), nil
				})},
			})
			_, err := client.Annotate(context.Background(), Image{URI: "https://img.test/a.jpg"}, FeatureSafeSearch)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestAnnotateWithoutKey(t *testing.T) {
	client := NewClient(Options{})
	if client.Enabled() {
		t.Fatalf("expected disabled client")
	}
	if _, err := client.Annotate(context.Background(), Image{URI: "x"}, FeatureSafeSearch); err != ErrNoAPIKey {
		t.Fatalf("err = %v", err)
	}
}

func TestAtLeastLikely(t *testing.T) {
	for v, want := range map[string]bool{"VERY_LIKELY": true, "LIKELY": true, "POSSIBLE": false, "UNLIKELY": false, "": false} {
		if got := AtLeastLikely(v); got != want {
			t.Fatalf("AtLeastLikely(%q) = %v", v, got)
		}
	}
}
