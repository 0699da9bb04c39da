package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(Endpoint{AgentID: "coder", BaseURL: "http://localhost:9001"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ep, err := r.Lookup("coder")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.BaseURL != "http://localhost:9001" {
		t.Errorf("base URL = %q", ep.BaseURL)
	}
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(Endpoint{BaseURL: "http://x"}); !errors.Is(err, ErrInvalidEndpoint) {
		t.Errorf("empty agent id: err = %v, want ErrInvalidEndpoint", err)
	}
	if err := r.Register(Endpoint{AgentID: "a"}); !errors.Is(err, ErrInvalidEndpoint) {
		t.Errorf("empty base URL: err = %v, want ErrInvalidEndpoint", err)
	}
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Lookup("ghost"); !errors.Is(err, ErrAgentNotRegistered) {
		t.Errorf("err = %v, want ErrAgentNotRegistered", err)
	}
}

func TestRegistry_RemoveAndList(t *testing.T) {
	r := NewRegistry()
	r.Register(Endpoint{AgentID: "b", BaseURL: "http://b"})
	r.Register(Endpoint{AgentID: "a", BaseURL: "http://a"})

	eps := r.List()
	if len(eps) != 2 || eps[0].AgentID != "a" || eps[1].AgentID != "b" {
		t.Fatalf("list = %v, want sorted [a b]", eps)
	}

	r.Remove("a")
	if r.Size() != 1 {
		t.Errorf("size = %d after remove, want 1", r.Size())
	}
}

// newAgentServer поднимает тестового HTTP-агента.
func newAgentServer(t *testing.T, handler http.HandlerFunc) (*Registry, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r := NewRegistry()
	if err := r.Register(Endpoint{AgentID: "worker", BaseURL: srv.URL}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return r, srv
}

func TestHTTPInvoker_Success(t *testing.T) {
	var gotTask string
	r, _ := newAgentServer(t, func(w http.ResponseWriter, req *http.Request) {
		var body invokeRequest
		json.NewDecoder(req.Body).Decode(&body)
		gotTask = body.Task
		json.NewEncoder(w).Encode(invokeResponse{Success: true, Output: "42"})
	})

	res := NewHTTPInvoker(r).Invoke(context.Background(), "worker", "compute", 0)
	if !res.Success {
		t.Fatalf("invoke failed: %s", res.Error)
	}
	if res.Output != "42" {
		t.Errorf("output = %q", res.Output)
	}
	if gotTask != "compute" {
		t.Errorf("task sent to agent = %q", gotTask)
	}
}

func TestHTTPInvoker_AgentError(t *testing.T) {
	r, _ := newAgentServer(t, func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(invokeResponse{Success: false, Error: "tool crashed"})
	})

	res := NewHTTPInvoker(r).Invoke(context.Background(), "worker", "x", 0)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "tool crashed" {
		t.Errorf("error = %q", res.Error)
	}
}

func TestHTTPInvoker_HTTPError(t *testing.T) {
	r, _ := newAgentServer(t, func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	res := NewHTTPInvoker(r).Invoke(context.Background(), "worker", "x", 0)
	if res.Success {
		t.Fatal("expected failure on HTTP 500")
	}
}

func TestHTTPInvoker_UnknownAgent(t *testing.T) {
	res := NewHTTPInvoker(NewRegistry()).Invoke(context.Background(), "ghost", "x", 0)
	if res.Success {
		t.Fatal("expected failure for unregistered agent")
	}
}

func TestHTTPInvoker_Timeout(t *testing.T) {
	r, _ := newAgentServer(t, func(w http.ResponseWriter, req *http.Request) {
		time.Sleep(500 * time.Millisecond)
	})

	start := time.Now()
	res := NewHTTPInvoker(r).Invoke(context.Background(), "worker", "slow", 30*time.Millisecond)
	if res.Success {
		t.Fatal("expected failure on timeout")
	}
	if time.Since(start) > 300*time.Millisecond {
		t.Error("invoke should return promptly after the timeout")
	}
}

func TestFunc_Adapter(t *testing.T) {
	f := Func(func(ctx context.Context, agentID, task string, timeout time.Duration) Result {
		return Result{Success: true, Output: agentID + ":" + task}
	})

	res := f.Invoke(context.Background(), "a", "t", 0)
	if res.Output != "a:t" {
		t.Errorf("output = %q", res.Output)
	}
}
