package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"resume-copilot/internal/domain"
)

func TestClientComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{Agent: "auto", Output: `{"summary":"ok"}`})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, 1, nil)
	out, err := c.Complete(context.Background(), "Analyze CV")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"summary":"ok"}` {
		t.Errorf("output = %q", out)
	}
	if got.Agent != "auto" || got.Input != "Analyze CV" {
		t.Errorf("request = %+v", got)
	}
}

func TestClientNon200IsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, 1, nil).Complete(context.Background(), "p")
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}

func TestClientBadBodyIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, 1, nil).Complete(context.Background(), "p")
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}

func TestClientTransportErrorSingleAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	start := time.Now()
	_, err := NewClient(url, time.Second, 0, nil).Complete(context.Background(), "p")
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Error("single attempt should not back off")
	}
}

func TestClientStopsRetryingOnCancel(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	url := srv.URL
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := NewClient(url, time.Second, 5, nil).Complete(ctx, "p")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Error("closed server should not have been reached")
	}
}
