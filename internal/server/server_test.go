package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lazypower/strata/internal/dualwrite"
	"github.com/lazypower/strata/internal/engine"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	coord, err := dualwrite.Open(t.TempDir(), "")
	if err != nil {
		t.Fatalf("open coordinator: %v", err)
	}
	t.Cleanup(func() { coord.Close() })

	eng := engine.New(coord, engine.DefaultConfig())
	return New(coord, eng, "test")
}

func get(t *testing.T, s *Server, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec.Code, body
}

func TestHealth(t *testing.T) {
	s := testServer(t)

	code, body := get(t, s, "/api/health")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestStatus(t *testing.T) {
	s := testServer(t)

	code, body := get(t, s, "/api/status")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	layers, ok := body["layers"].(map[string]any)
	if !ok {
		t.Fatalf("layers is %T, want object", body["layers"])
	}
	if len(layers) != 6 {
		t.Errorf("len(layers) = %d, want 6", len(layers))
	}
	if body["decay"] == nil {
		t.Error("decay section missing")
	}
}

func TestStats(t *testing.T) {
	s := testServer(t)

	code, body := get(t, s, "/api/stats")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	layers, ok := body["layers"].(map[string]any)
	if !ok {
		t.Fatalf("layers is %T, want object", body["layers"])
	}
	if len(layers) != 6 {
		t.Errorf("len(layers) = %d, want 6", len(layers))
	}
}
