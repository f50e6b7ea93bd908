//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/hyperengineering/voyager/pkg/voyager"
)

const e2eAPIKey = "e2e-test-api-key"

// upstreams fakes the LLM, catalog and rating services the binary talks to.
type upstreams struct {
	groq *httptest.Server
	tmdb *httptest.Server
	omdb *httptest.Server

	mu          sync.Mutex
	answers     []string
	llmCalls    atomic.Int32
	detailCalls atomic.Int32
}

// newUpstreams serves answers from the LLM in order, repeating the last one.
func newUpstreams(t *testing.T, answers ...string) *upstreams {
	t.Helper()
	u := &upstreams{answers: answers}

	u.groq = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(u.llmCalls.Add(1))
		u.mu.Lock()
		answer := u.answers[min(n, len(u.answers))-1]
		u.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      fmt.Sprintf("chatcmpl-%d", n),
			"object":  "chat.completion",
			"created": 0,
			"model":   "openai/gpt-oss-120b",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": answer},
			}},
		})
	}))
	t.Cleanup(u.groq.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("/3/search/movie", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("query") {
		case "Heat":
			_, _ = w.Write([]byte(`{"page":1,"results":[
				{"id":949,"title":"Heat","release_date":"1995-12-15","popularity":41.2},
				{"id":11,"title":"Heat Wave","release_date":"1990-01-01","popularity":2.1}
			],"total_results":2}`))
		default:
			_, _ = w.Write([]byte(`{"page":1,"results":[],"total_results":0}`))
		}
	})
	mux.HandleFunc("/3/search/tv", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") != "Breaking Bad" {
			_, _ = w.Write([]byte(`{"page":1,"results":[],"total_results":0}`))
			return
		}
		_, _ = w.Write([]byte(`{"page":1,"results":[
			{"id":1396,"name":"Breaking Bad","first_air_date":"2008-01-20","popularity":300.5}
		],"total_results":1}`))
	})
	mux.HandleFunc("/3/movie/949", func(w http.ResponseWriter, r *http.Request) {
		u.detailCalls.Add(1)
		_, _ = w.Write([]byte(`{
			"id":949,"imdb_id":"tt0113277","title":"Heat","overview":"Obsessive master thief.",
			"release_date":"1995-12-15","tagline":"A Los Angeles crime saga","poster_path":"/heat.jpg",
			"genres":[{"id":80,"name":"Crime"}],
			"production_countries":[{"iso_3166_1":"US","name":"United States of America"}]
		}`))
	})
	mux.HandleFunc("/3/tv/1396", func(w http.ResponseWriter, r *http.Request) {
		u.detailCalls.Add(1)
		_, _ = w.Write([]byte(`{
			"id":1396,"name":"Breaking Bad","original_name":"Breaking Bad","overview":"A chemistry teacher.",
			"first_air_date":"2008-01-20","tagline":"","poster_path":"/bb.jpg","number_of_seasons":5,
			"genres":[{"id":18,"name":"Drama"}],"origin_country":["US"]
		}`))
	})
	mux.HandleFunc("/3/tv/1396/external_ids", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1396,"imdb_id":"tt0903747"}`))
	})
	u.tmdb = httptest.NewServer(mux)
	t.Cleanup(u.tmdb.Close)

	u.omdb = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("i") {
		case "tt0113277":
			_, _ = w.Write([]byte(`{"Response":"True","imdbRating":"8.3"}`))
		case "tt0903747":
			_, _ = w.Write([]byte(`{"Response":"True","imdbRating":"9.5"}`))
		default:
			_, _ = w.Write([]byte(`{"Response":"False","Error":"Incorrect IMDb ID."}`))
		}
	}))
	t.Cleanup(u.omdb.Close)

	return u
}

// voyagerServer manages a running Voyager server process.
type voyagerServer struct {
	cmd     *exec.Cmd
	dataDir string
	address string
	logFile string
}

// environ returns the environment for running the binary against u.
// Voyager is configured entirely via environment variables here.
func environ(dataDir string, u *upstreams, port int) []string {
	return append(os.Environ(),
		fmt.Sprintf("VOYAGER_PORT=%d", port),
		"VOYAGER_DB_PATH="+filepath.Join(dataDir, "voyager.db"),
		"VOYAGER_CONFIG_PATH="+filepath.Join(dataDir, "nonexistent.yaml"),
		"VOYAGER_API_KEY="+e2eAPIKey,
		"VOYAGER_PROVIDER=groq",
		"VOYAGER_LOG_FORMAT=text",
		"VOYAGER_GROQ_BASE_URL="+u.groq.URL+"/",
		"VOYAGER_TMDB_BASE_URL="+u.tmdb.URL,
		"VOYAGER_OMDB_BASE_URL="+u.omdb.URL,
		"GROQ_API_KEY=groq-e2e",
		"TMDB_API_KEY=tmdb-e2e",
		"OMDB_API_KEY=omdb-e2e",
		"GEMINI_API_KEY=",
	)
}

// startVoyager launches the binary and waits for it to become healthy.
func startVoyager(t *testing.T, u *upstreams) *voyagerServer {
	t.Helper()

	if voyagerBin == "" {
		t.Skip("voyager binary not available (set VOYAGER_BIN or add to PATH)")
	}

	dataDir := t.TempDir()
	port := freePort(t)
	s := &voyagerServer{
		dataDir: dataDir,
		address: fmt.Sprintf("127.0.0.1:%d", port),
		logFile: filepath.Join(dataDir, "voyager.log"),
	}

	lf, err := os.Create(s.logFile)
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}

	s.cmd = exec.Command(voyagerBin, "serve")
	s.cmd.Env = environ(dataDir, u, port)
	s.cmd.Stdout = lf
	s.cmd.Stderr = lf
	if err := s.cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start voyager: %v", err)
	}

	t.Cleanup(func() {
		s.stop()
		lf.Close()
		if t.Failed() {
			if data, err := os.ReadFile(s.logFile); err == nil {
				t.Logf("voyager log:\n%s", data)
			}
		}
	})

	if err := s.waitHealthy(10 * time.Second); err != nil {
		t.Fatalf("voyager not healthy: %v", err)
	}
	return s
}

func (s *voyagerServer) stop() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(os.Interrupt)
		_ = s.cmd.Wait()
	}
}

func (s *voyagerServer) baseURL() string {
	return "http://" + s.address
}

// client returns an API client acting as userID.
func (s *voyagerServer) client(t *testing.T, userID string) *voyager.Client {
	t.Helper()
	c, err := voyager.New(voyager.Config{
		BaseURL: s.baseURL(),
		APIKey:  e2eAPIKey,
		UserID:  userID,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func (s *voyagerServer) waitHealthy(timeout time.Duration) error {
	c, err := voyager.New(voyager.Config{BaseURL: s.baseURL(), Timeout: time.Second})
	if err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if h, err := c.Health(context.Background()); err == nil && h.Status == "healthy" {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("voyager not healthy after %s", timeout)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
