package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestClient(t *testing.T, rt roundTripFunc) Client {
	t.Helper()
	c, err := New(logger.Nop(), Config{
		APIKey:     "test-key",
		HTTPClient: &http.Client{Transport: rt},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func okResponse(t *testing.T, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(raw)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestEmbedRequestShape(t *testing.T) {
	var captured map[string]any
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost {
			t.Fatalf("method: want=%s got=%s", http.MethodPost, r.Method)
		}
		if r.URL.Path != "/v1/embed" {
			t.Fatalf("path: want=%q got=%q", "/v1/embed", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("authorization: got=%q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, map[string]any{
			"id":         "resp-1",
			"embeddings": [][]float64{{0.1, 0.2}, {0.3, 0.4}},
		}), nil
	})

	vecs, err := c.Embed(context.Background(), []string{"first", "second"}, "search_document")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if captured["model"] != "embed-multilingual-v3.0" {
		t.Fatalf("model: got=%v", captured["model"])
	}
	if captured["input_type"] != "search_document" {
		t.Fatalf("input_type: got=%v", captured["input_type"])
	}
	texts, ok := captured["texts"].([]any)
	if !ok || len(texts) != 2 || texts[0] != "first" {
		t.Fatalf("texts: got=%v", captured["texts"])
	}
	if len(vecs) != 2 || vecs[1][1] != float32(0.4) {
		t.Fatalf("vectors: got=%v", vecs)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return okResponse(t, map[string]any{"embeddings": [][]float64{{0.1}}}), nil
	})
	if _, err := c.Embed(context.Background(), []string{"a", "b"}, "search_document"); err == nil {
		t.Fatalf("Embed: expected error for embedding count mismatch")
	}
}

func TestEmbedHTTPError(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusTooManyRequests,
			Body:       io.NopCloser(bytes.NewBufferString(`{"message":"rate limited"}`)),
		}, nil
	})
	if _, err := c.Embed(context.Background(), []string{"a"}, "search_document"); err == nil {
		t.Fatalf("Embed: expected error for non-2xx response")
	}
}

func TestEmbedNoTextsNoCall(t *testing.T) {
	called := false
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		called = true
		return okResponse(t, map[string]any{"embeddings": [][]float64{}}), nil
	})
	vecs, err := c.Embed(context.Background(), nil, "search_document")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 0 || called {
		t.Fatalf("Embed with no texts: vecs=%v called=%v", vecs, called)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(logger.Nop(), Config{}); err == nil {
		t.Fatalf("New: expected error for missing API key")
	}
}
