package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/kiln/internal/scope"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// mavenServer is a Maven2 repository backed by a map of paths. Paths listed
// in broken answer 500.
type mavenServer struct {
	*httptest.Server
	mu     sync.Mutex
	files  map[string]string
	broken map[string]bool
	hits   map[string]int
}

func newMavenServer(t *testing.T, files map[string]string, broken ...string) *mavenServer {
	t.Helper()
	m := &mavenServer{files: files, broken: make(map[string]bool), hits: make(map[string]int)}
	for _, p := range broken {
		m.broken[p] = true
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		m.mu.Lock()
		m.hits[path]++
		m.mu.Unlock()
		if m.broken[path] {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		body, ok := m.files[path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mavenServer) hitCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[path]
}

// library adds the descriptor and jar of gav to files. deps use "g:a:v".
func library(files map[string]string, gav string, deps ...string) {
	parts := strings.Split(gav, ":")
	g, a, v := parts[0], parts[1], parts[2]
	dir := strings.ReplaceAll(g, ".", "/") + "/" + a + "/" + v + "/"

	var b strings.Builder
	fmt.Fprintf(&b, "<project><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version><dependencies>", g, a, v)
	for _, dep := range deps {
		d := strings.Split(dep, ":")
		fmt.Fprintf(&b, "<dependency><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version></dependency>", d[0], d[1], d[2])
	}
	b.WriteString("</dependencies></project>")

	files[dir+a+"-"+v+".pom"] = b.String()
	files[dir+a+"-"+v+".jar"] = "jar:" + a + "-" + v
}

// writeProject writes a kiln.hcl using repoURL as its only repository and
// returns its path.
func writeProject(t *testing.T, repoURL string, compile, test []string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
project {
  group    = "com.example"
  artifact = "app"
  version  = "1.0.0"
}

dependencies {
  compile = %s
  test    = %s
}

cache {
  root      = "cache"
  secondary = ""
}

repository "test" {
  url = %q
}
`, hclList(compile), hclList(test), repoURL)
	path := filepath.Join(dir, "kiln.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func hclList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// SetupAppTest creates a new app instance for system testing. Command output
// and logs are captured separately.
func SetupAppTest(t *testing.T, cfg Config) (*App, *bytes.Buffer, *SafeBuffer) {
	t.Helper()

	if cfg.Command == "" {
		cfg.Command = CommandClasspath
	}
	if cfg.Scope == scope.None {
		cfg.Scope = scope.Compile
	}
	cfg.LogLevel = "debug"
	cfg.LogFormat = "text"

	out := &bytes.Buffer{}
	logBuffer := &SafeBuffer{}
	testApp, err := NewApp(context.Background(), out, logBuffer, &cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = testApp.Close()
		if os.Getenv("KILN_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, out, logBuffer
}
