package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"dependency not ready"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Post(context.Background(), "/api/run/mapping", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "server error (409): dependency not ready") {
		t.Errorf("error = %v", err)
	}
}

func TestClient_PutJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer srv.Close()

	var out map[string]string
	if err := NewClient(srv.URL).Put(context.Background(), "/x", map[string]string{"a": "b"}, &out); err != nil {
		t.Fatal(err)
	}
	if out["a"] != "b" {
		t.Errorf("out = %v", out)
	}
}

func TestClient_PostFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compendio.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		fh := r.MultipartForm.File["compendio"]
		if len(fh) != 1 || fh[0].Filename != "compendio.pdf" {
			t.Errorf("files = %v", r.MultipartForm.File)
		}
		if _, ok := r.MultipartForm.File["brief"]; ok {
			t.Error("empty path should be skipped")
		}
		if r.FormValue("note") != "hi" {
			t.Errorf("note = %q", r.FormValue("note"))
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).PostFiles(context.Background(), "/upload",
		map[string]string{"compendio": path, "brief": ""}, map[string]string{"note": "hi"}, nil)
	if err != nil {
		t.Fatal(err)
	}
}

type testEndpoint struct {
	use   string
	group []string
}

func (e *testEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/" + e.use, func(w http.ResponseWriter, r *http.Request) {}
}
func (e *testEndpoint) RequiresInit() bool { return e.use == "guarded" }
func (e *testEndpoint) Group() []string    { return e.group }
func (e *testEndpoint) Command(func() string) *cobra.Command {
	if e.use == "" {
		return nil
	}
	return &cobra.Command{Use: e.use}
}

func TestRegistry_BuildCommands(t *testing.T) {
	r := NewRegistry()
	r.Register(&testEndpoint{use: "health"})
	r.Register(&testEndpoint{use: "status", group: []string{"run"}})
	r.Register(&testEndpoint{use: "next", group: []string{"run", "chapters"}})
	r.Register(&testEndpoint{use: "list", group: []string{"run", "chapters"}})

	root := r.BuildCommands(func() string { return "" })
	for _, path := range [][]string{{"health"}, {"run", "status"}, {"run", "chapters", "next"}, {"run", "chapters", "list"}} {
		cmd, rest, err := root.Find(path)
		if err != nil || len(rest) != 0 || cmd.Name() != path[len(path)-1] {
			t.Errorf("Find(%v) = %v, %v, %v", path, cmd, rest, err)
		}
	}
}

func TestRegistry_RegisterRoutes(t *testing.T) {
	r := NewRegistry()
	r.Register(&testEndpoint{use: "open"})
	r.Register(&testEndpoint{use: "guarded"})

	mux := http.NewServeMux()
	r.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	for path, want := range map[string]int{"/open": http.StatusOK, "/guarded": http.StatusServiceUnavailable} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != want {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, want)
		}
	}
}
