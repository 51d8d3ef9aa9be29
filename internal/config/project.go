package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/kiln/internal/cache"
	"github.com/vk/kiln/internal/coordinate"
	"github.com/vk/kiln/internal/pom"
	"github.com/vk/kiln/internal/remote"
	"github.com/vk/kiln/internal/scope"
)

// Defaults applied when the configuration leaves a setting out.
const (
	DefaultWorkers      = 8
	DefaultFetchTimeout = time.Minute
	CentralName         = "central"
	CentralURL          = "https://repo1.maven.org/maven2"
)

// Project is a validated configuration.
type Project struct {
	// Root is the project's own descriptor with properties substituted and
	// managed versions applied.
	Root *pom.Descriptor

	CacheRoot       string
	CacheLayout     cache.Layout
	SecondaryRoot   string
	SecondaryLayout cache.Layout

	Workers      int
	FetchTimeout time.Duration
	Offline      bool

	Repositories []Repository
}

// Repository is a remote repository. Exactly one of URL and S3 is set.
type Repository struct {
	Name string
	URL  string
	S3   *remote.S3Config
}

// Convert validates f and converts it. Relative paths are resolved against
// baseDir.
func (f *File) Convert(baseDir string) (*Project, error) {
	if f.Project == nil {
		return nil, errors.New("configuration has no project block")
	}

	root := &pom.Descriptor{
		Coordinate:      coordinate.New(f.Project.Group, f.Project.Artifact, f.Project.Version),
		Packaging:       "jar",
		ManagedVersions: f.Managed,
	}
	if root.Coordinate.GroupID == "" || root.Coordinate.ArtifactID == "" || root.Coordinate.Version == "" {
		return nil, errors.New("project block needs group, artifact and version")
	}
	for _, prop := range f.Properties {
		root.Properties.Set(prop.Name, prop.Value)
	}
	for key := range f.Managed {
		if g, a, ok := strings.Cut(key, ":"); !ok || g == "" || a == "" {
			return nil, fmt.Errorf("managed version key %q must be groupId:artifactId", key)
		}
	}

	deps, err := f.dependencies(baseDir)
	if err != nil {
		return nil, err
	}
	root.Dependencies = deps

	p := &Project{
		Root:         pom.Solve([]*pom.Descriptor{root}),
		Workers:      DefaultWorkers,
		FetchTimeout: DefaultFetchTimeout,
	}
	if err := f.applyCache(p, baseDir); err != nil {
		return nil, err
	}
	if err := f.applyResolver(p); err != nil {
		return nil, err
	}
	if err := f.applyRepositories(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (f *File) dependencies(baseDir string) ([]coordinate.Coordinate, error) {
	if f.Dependencies == nil {
		return nil, nil
	}
	lists := map[scope.Scope][]string{
		scope.Compile:  f.Dependencies.Compile,
		scope.Provided: f.Dependencies.Provided,
		scope.Runtime:  f.Dependencies.Runtime,
		scope.Test:     f.Dependencies.Test,
		scope.System:   f.Dependencies.System,
		scope.Build:    f.Dependencies.Build,
	}

	var deps []coordinate.Coordinate
	for _, sc := range scope.All {
		for _, raw := range lists[sc] {
			c, err := coordinate.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("dependencies.%s: %w", sc, err)
			}
			switch {
			case sc == scope.System && !c.IsSystem():
				return nil, fmt.Errorf("dependencies.system: %q must be a file path", raw)
			case sc != scope.System && c.IsSystem():
				return nil, fmt.Errorf("dependencies.%s: file path %q belongs in dependencies.system", sc, raw)
			}
			if c.IsSystem() {
				c.SystemPath = absPath(baseDir, strings.TrimPrefix(c.SystemPath, "file:"))
			}
			c.Scope = sc
			deps = append(deps, c)
		}
	}
	return deps, nil
}

func (f *File) applyCache(p *Project, baseDir string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	p.CacheRoot = filepath.Join(home, ".kiln", "repository")
	p.CacheLayout = cache.Flat
	p.SecondaryRoot = filepath.Join(home, ".m2", "repository")
	p.SecondaryLayout = cache.Maven2

	b := f.Cache
	if b == nil {
		return nil
	}
	if b.Root != "" {
		p.CacheRoot = absPath(baseDir, b.Root)
	}
	if b.Secondary != nil {
		p.SecondaryRoot = ""
		if *b.Secondary != "" {
			p.SecondaryRoot = absPath(baseDir, *b.Secondary)
		}
	}
	if b.Layout != "" {
		if p.CacheLayout, err = cache.LayoutByName(b.Layout); err != nil {
			return fmt.Errorf("cache.layout: %w", err)
		}
	}
	if b.SecondaryLayout != "" {
		if p.SecondaryLayout, err = cache.LayoutByName(b.SecondaryLayout); err != nil {
			return fmt.Errorf("cache.secondary_layout: %w", err)
		}
	}
	return nil
}

func (f *File) applyResolver(p *Project) error {
	b := f.Resolver
	if b == nil {
		return nil
	}
	if b.Workers < 0 {
		return fmt.Errorf("resolver.workers must not be negative, got %d", b.Workers)
	}
	if b.Workers > 0 {
		p.Workers = b.Workers
	}
	if b.FetchTimeout != "" {
		d, err := time.ParseDuration(b.FetchTimeout)
		if err != nil {
			return fmt.Errorf("resolver.fetch_timeout: %w", err)
		}
		p.FetchTimeout = d
	}
	p.Offline = b.Offline
	return nil
}

func (f *File) applyRepositories(p *Project) error {
	if len(f.Repositories) == 0 {
		p.Repositories = []Repository{{Name: CentralName, URL: CentralURL}}
		return nil
	}
	seen := make(map[string]bool)
	for _, b := range f.Repositories {
		if seen[b.Name] {
			return fmt.Errorf("repository %q is declared twice", b.Name)
		}
		seen[b.Name] = true

		switch {
		case b.URL != "" && b.S3 != nil:
			return fmt.Errorf("repository %q: set either url or an s3 block, not both", b.Name)
		case b.URL != "":
			u, err := url.Parse(b.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("repository %q: url %q must be an absolute http(s) URL", b.Name, b.URL)
			}
			p.Repositories = append(p.Repositories, Repository{Name: b.Name, URL: b.URL})
		case b.S3 != nil:
			useSSL := true
			if b.S3.UseSSL != nil {
				useSSL = *b.S3.UseSSL
			}
			p.Repositories = append(p.Repositories, Repository{Name: b.Name, S3: &remote.S3Config{
				Endpoint:  b.S3.Endpoint,
				Bucket:    b.S3.Bucket,
				Prefix:    b.S3.Prefix,
				Region:    b.S3.Region,
				AccessKey: b.S3.AccessKey,
				SecretKey: b.S3.SecretKey,
				UseSSL:    useSSL,
			}})
		default:
			return fmt.Errorf("repository %q: needs a url or an s3 block", b.Name)
		}
	}
	return nil
}

func absPath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}
