package server

import (
	"net/http/httptest"
	"testing"

	"life2gpx/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		JWTSecret:  "secret",
		ServerPort: ":0",
		DataDir:    t.TempDir(),
		Timezone:   "UTC",
	}
}

func TestHealthRoute(t *testing.T) {
	s := NewServer(testConfig(t), nil)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status")
	}
}

func TestTimelineRouteWired(t *testing.T) {
	s := NewServer(testConfig(t), nil)

	req := httptest.NewRequest("GET", "/timeline/2024-03-01", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status, got %d", resp.StatusCode)
	}
}

func TestMutatingRoutesRequireAuth(t *testing.T) {
	s := NewServer(testConfig(t), nil)

	for _, route := range []struct{ method, path string }{
		{"POST", "/fixes"},
		{"POST", "/places"},
		{"PUT", "/days/2024-03-01/waypoints"},
	} {
		req := httptest.NewRequest(route.method, route.path, nil)
		resp, err := s.App.Test(req)
		if err != nil {
			t.Fatalf("%s %s: %v", route.method, route.path, err)
		}
		if resp.StatusCode != 401 {
			t.Fatalf("%s %s: expected 401, got %d", route.method, route.path, resp.StatusCode)
		}
	}
}
