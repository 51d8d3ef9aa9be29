package repository

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/kiln/internal/cache"
	"github.com/vk/kiln/internal/coordinate"
	"github.com/vk/kiln/internal/pom"
	"github.com/vk/kiln/internal/remote"
	"github.com/vk/kiln/internal/scope"
)

// fakeRemote serves files by Maven2 path and counts requests per path.
type fakeRemote struct {
	mu    sync.Mutex
	files map[string]string
	calls map[string]int
	delay time.Duration
}

func newFakeRemote(files map[string]string) *fakeRemote {
	return &fakeRemote{files: files, calls: make(map[string]int)}
}

func (f *fakeRemote) Fetch(ctx context.Context, coord coordinate.Coordinate, ext string) ([]byte, error) {
	path := remote.Path(coord, ext)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
	if data, ok := f.files[path]; ok {
		return []byte(data), nil
	}
	return nil, &remote.DownloadError{Repository: "fake", Path: path, Status: http.StatusNotFound}
}

func (f *fakeRemote) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeRemote) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// pomXML renders a minimal descriptor. parent and deps use "g:a:v" notation.
func pomXML(gav, parent string, props map[string]string, deps ...string) string {
	var b strings.Builder
	c := coordinate.MustParse(gav)
	b.WriteString("<project>")
	if parent != "" {
		p := coordinate.MustParse(parent)
		fmt.Fprintf(&b, "<parent><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version></parent>", p.GroupID, p.ArtifactID, p.Version)
	}
	fmt.Fprintf(&b, "<groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version>", c.GroupID, c.ArtifactID, c.Version)
	if len(props) > 0 {
		b.WriteString("<properties>")
		for k, v := range props {
			fmt.Fprintf(&b, "<%s>%s</%s>", k, v, k)
		}
		b.WriteString("</properties>")
	}
	b.WriteString("<dependencies>")
	for _, dep := range deps {
		g, rest, _ := strings.Cut(dep, ":")
		a, v, _ := strings.Cut(rest, ":")
		fmt.Fprintf(&b, "<dependency><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version></dependency>", g, a, v)
	}
	b.WriteString("</dependencies></project>")
	return b.String()
}

func newTestRepository(t *testing.T, files map[string]string, opts ...Option) (*Repository, *fakeRemote, *cache.Cache) {
	t.Helper()
	c := cache.New(t.TempDir(), cache.Flat)
	fake := newFakeRemote(files)
	repo, err := New(c, fake, opts...)
	require.NoError(t, err)
	return repo, fake, c
}

func TestArtifact_DownloadsOnceIntoCache(t *testing.T) {
	repo, fake, c := newTestRepository(t, map[string]string{
		"org/lib/core/1.0/core-1.0.jar": "jar-bytes",
	})
	coord := coordinate.MustParse("org.lib:core:1.0")

	path, err := repo.Artifact(context.Background(), coord)
	require.NoError(t, err)
	expected, err := c.Path(coord, "")
	require.NoError(t, err)
	assert.Equal(t, expected, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jar-bytes", string(data))

	_, err = repo.Artifact(context.Background(), coord)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.count("org/lib/core/1.0/core-1.0.jar"))
}

func TestArtifact_Errors(t *testing.T) {
	repo, _, _ := newTestRepository(t, nil)

	_, err := repo.Artifact(context.Background(), coordinate.MustParse("org.lib:missing:1.0"))
	assert.True(t, IsNotFound(err))

	_, err = repo.Artifact(context.Background(), coordinate.NewSystem(filepath.Join(t.TempDir(), "absent.jar")))
	assert.ErrorContains(t, err, "does not exist")

	jar := filepath.Join(t.TempDir(), "present.jar")
	require.NoError(t, os.WriteFile(jar, []byte("x"), 0o644))
	path, err := repo.Artifact(context.Background(), coordinate.NewSystem(jar))
	require.NoError(t, err)
	assert.Equal(t, jar, path)
}

func TestBytes_ServesDownloadWhenStoreFails(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.WriteFile(root, []byte("not a directory"), 0o644))
	fake := newFakeRemote(map[string]string{"g/a/1/a-1.pom": "<project/>"})
	repo, err := New(cache.New(root, cache.Flat), fake)
	require.NoError(t, err)

	data, err := repo.Bytes(context.Background(), coordinate.MustParse("g:a:1"), "pom")
	require.NoError(t, err)
	assert.Equal(t, "<project/>", string(data))
}

func TestOffline(t *testing.T) {
	repo, fake, c := newTestRepository(t, map[string]string{"g/a/1/a-1.jar": "remote"}, WithOffline(true))
	coord := coordinate.MustParse("g:a:1")

	_, err := repo.Artifact(context.Background(), coord)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 0, fake.total())

	_, err = c.Put(coord, "", []byte("cached"))
	require.NoError(t, err)
	path, err := repo.Artifact(context.Background(), coord)
	require.NoError(t, err)
	expected, err := c.Path(coord, "")
	require.NoError(t, err)
	assert.Equal(t, expected, path)
}

func TestDescriptor_SolvesParentChain(t *testing.T) {
	files := map[string]string{
		"org/lib/parent/3/parent-3.pom": pomXML("org.lib:parent:3", "", map[string]string{"dep.version": "2.1"}),
		"org/lib/core/1.0/core-1.0.pom": pomXML("org.lib:core:1.0", "org.lib:parent:3", nil, "org.dep:util:${dep.version}"),
	}
	metrics := NewMetrics(nil)
	repo, fake, c := newTestRepository(t, files, WithMetrics(metrics))
	coord := coordinate.MustParse("org.lib:core:1.0")

	d, err := repo.Descriptor(context.Background(), coord)
	require.NoError(t, err)
	require.Len(t, d.Dependencies, 1)
	assert.Equal(t, "org.dep:util:2.1", d.Dependencies[0].GAV())
	assert.Equal(t, scope.Compile, d.Dependencies[0].Scope)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.descriptors.WithLabelValues(sourceSolved)))

	again, err := repo.Descriptor(context.Background(), coord)
	require.NoError(t, err)
	assert.Same(t, d, again)
	assert.Equal(t, 1, fake.count("org/lib/core/1.0/core-1.0.pom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.descriptors.WithLabelValues(sourceMemory)))

	// A fresh process reads the persisted record without any download.
	_, ok := c.ReadSolution(coord)
	require.True(t, ok)
	fresh := newFakeRemote(nil)
	freshMetrics := NewMetrics(nil)
	repo2, err := New(c, fresh, WithMetrics(freshMetrics))
	require.NoError(t, err)
	d2, err := repo2.Descriptor(context.Background(), coord)
	require.NoError(t, err)
	assert.Equal(t, "org.dep:util:2.1", d2.Dependencies[0].GAV())
	assert.Equal(t, 0, fresh.total())
	assert.Equal(t, 1.0, testutil.ToFloat64(freshMetrics.descriptors.WithLabelValues(sourceRecord)))
}

func TestDescriptor_CorruptRecordIsResolvedAgain(t *testing.T) {
	files := map[string]string{"g/a/1/a-1.pom": pomXML("g:a:1", "", nil)}
	repo, fake, c := newTestRepository(t, files)
	coord := coordinate.MustParse("g:a:1")
	require.NoError(t, c.WriteSolution(coord, []byte("{{not yaml")))

	d, err := repo.Descriptor(context.Background(), coord)
	require.NoError(t, err)
	assert.Equal(t, "g:a:1", d.Coordinate.GAV())
	assert.Equal(t, 1, fake.count("g/a/1/a-1.pom"))

	data, ok := c.ReadSolution(coord)
	require.True(t, ok)
	_, err = pom.UnmarshalRecord(data)
	assert.NoError(t, err, "the record is rewritten")
}

func TestDescriptor_Failures(t *testing.T) {
	files := map[string]string{
		"g/loop-a/1/loop-a-1.pom":     pomXML("g:loop-a:1", "g:loop-b:1", nil),
		"g/loop-b/1/loop-b-1.pom":     pomXML("g:loop-b:1", "g:loop-a:1", nil),
		"g/orphan/1/orphan-1.pom":     pomXML("g:orphan:1", "g:gone:1", nil),
		"g/garbage/1/garbage-1.pom":   "<project><parent>",
		"g/nameless/1/nameless-1.pom": "<project><groupId>g</groupId></project>",
	}
	repo, _, _ := newTestRepository(t, files)

	testCases := []struct {
		name        string
		coord       string
		notFound    bool
		expectedErr string
	}{
		{name: "missing", coord: "g:missing:1", notFound: true},
		{name: "parent cycle", coord: "g:loop-a:1", expectedErr: pom.ErrParentCycle.Error()},
		{name: "missing parent", coord: "g:orphan:1", notFound: true, expectedErr: "parent g:gone:1 of g:orphan:1"},
		{name: "malformed", coord: "g:garbage:1", expectedErr: "failed to parse descriptor of g:garbage:1"},
		{name: "no artifactId", coord: "g:nameless:1", expectedErr: "missing artifactId"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.Descriptor(context.Background(), coordinate.MustParse(tc.coord))
			require.Error(t, err)
			assert.Equal(t, tc.notFound, IsNotFound(err))
			if tc.expectedErr != "" {
				assert.ErrorContains(t, err, tc.expectedErr)
			}
		})
	}

	_, err := repo.Descriptor(context.Background(), coordinate.NewSystem("/x.jar"))
	assert.ErrorContains(t, err, "has no descriptor")
}

func TestDescriptor_ConcurrentCallsShareOneDownload(t *testing.T) {
	files := map[string]string{"g/a/1/a-1.pom": pomXML("g:a:1", "", nil, "g:b:2")}
	repo, fake, _ := newTestRepository(t, files)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := repo.Descriptor(context.Background(), coordinate.MustParse("g:a:1"))
			assert.NoError(t, err)
			if d != nil {
				assert.Len(t, d.Dependencies, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fake.count("g/a/1/a-1.pom"))
}

func TestDescriptor_CallerDeadlineDoesNotFailOtherWaiters(t *testing.T) {
	files := map[string]string{"g/a/1/a-1.pom": pomXML("g:a:1", "", nil, "g:b:2")}
	repo, fake, _ := newTestRepository(t, files)
	fake.delay = 50 * time.Millisecond

	impatient, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	var (
		wg                sync.WaitGroup
		impatientErr      error
		patientDescriptor *pom.Descriptor
		patientErr        error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, impatientErr = repo.Descriptor(impatient, coordinate.MustParse("g:a:1"))
	}()
	go func() {
		defer wg.Done()
		// Join the flight after the impatient caller started it.
		time.Sleep(time.Millisecond)
		patientDescriptor, patientErr = repo.Descriptor(context.Background(), coordinate.MustParse("g:a:1"))
	}()
	wg.Wait()

	require.ErrorIs(t, impatientErr, context.DeadlineExceeded)
	require.NoError(t, patientErr)
	require.NotNil(t, patientDescriptor)
	assert.Len(t, patientDescriptor.Dependencies, 1)
	assert.Equal(t, 1, fake.count("g/a/1/a-1.pom"))

	// The detached solve completed and was memoized for later callers.
	d, err := repo.Descriptor(impatient, coordinate.MustParse("g:a:1"))
	require.NoError(t, err)
	assert.Same(t, patientDescriptor, d)
}

func TestDescriptor_SharedFetchTimeout(t *testing.T) {
	files := map[string]string{"g/a/1/a-1.pom": pomXML("g:a:1", "", nil)}
	repo, fake, _ := newTestRepository(t, files, WithFetchTimeout(5*time.Millisecond))
	fake.delay = time.Second

	_, err := repo.Descriptor(context.Background(), coordinate.MustParse("g:a:1"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnsafeCoordinatesAreNeverFetched(t *testing.T) {
	repo, fake, _ := newTestRepository(t, map[string]string{
		"g/a/../../evil/a-../../evil.pom": "<project/>",
	})
	// A version substituted from a hostile property.
	coord := coordinate.New("g", "a", "../../evil")

	_, err := repo.Bytes(context.Background(), coord, "pom")
	assert.ErrorContains(t, err, `version "../../evil" contains '/'`)

	_, err = repo.Artifact(context.Background(), coord)
	assert.Error(t, err)

	_, err = repo.Descriptor(context.Background(), coord)
	assert.Error(t, err)
	assert.Equal(t, 0, fake.total())
}

func TestNew_InvalidMemoSize(t *testing.T) {
	_, err := New(cache.New(t.TempDir(), cache.Flat), newFakeRemote(nil), WithMemoSize(0))
	assert.ErrorContains(t, err, "failed to create descriptor memo")
}
