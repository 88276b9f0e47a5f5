package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPost_JSONBodyAndResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if r.Header.Get("X-Test") != "1" {
			t.Error("default header missing")
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"hello":"world"}` {
			t.Errorf("body = %s", body)
		}
		w.Write([]byte(`{"answer":42}`))
	}))
	defer server.Close()

	client, err := NewInstrumentedClient(
		WithProviderName("test"),
		WithBaseURL(server.URL),
		WithHeaders(map[string]string{"X-Test": "1"}),
	)
	if err != nil {
		t.Fatal(err)
	}

	var out struct {
		Answer int `json:"answer"`
	}
	resp, err := client.NewRequest().
		SetBody(map[string]string{"hello": "world"}).
		SetResult(&out).
		Post(context.Background(), "/rpc")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.IsError() {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if out.Answer != 42 {
		t.Errorf("answer = %d", out.Answer)
	}
}

func TestErrorHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewInstrumentedClient()
	if err != nil {
		t.Fatal(err)
	}

	sentinel := errors.New("limited")
	_, err = client.NewRequest(WithResponseErrorHandler(func(status int, _ []byte) error {
		if status == http.StatusTooManyRequests {
			return sentinel
		}
		return nil
	})).Get(context.Background(), server.URL)

	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
}
