package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vk/kiln/internal/ctxlog"
)

// Environment variables that override the configuration file.
const (
	EnvCacheRoot     = "KILN_CACHE_ROOT"
	EnvSecondaryRoot = "KILN_SECONDARY_ROOT"
	EnvWorkers       = "KILN_WORKERS"
	EnvFetchTimeout  = "KILN_FETCH_TIMEOUT"
	EnvOffline       = "KILN_OFFLINE"
	EnvS3AccessKey   = "KILN_S3_ACCESS_KEY"
	EnvS3SecretKey   = "KILN_S3_SECRET_KEY"
)

// Load reads the configuration at path (a file or a directory of .hcl
// files). A .env file next to it is loaded into the process environment
// first, without replacing variables that are already set.
func Load(ctx context.Context, path string) (*Project, error) {
	logger := ctxlog.FromContext(ctx)

	baseDir := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(path)
	}
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	dotenv := filepath.Join(baseDir, ".env")
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", dotenv, err)
	} else if err == nil {
		logger.Debug("Loaded environment file.", "path", dotenv)
	}

	file, err := DecodePath(ctx, path, Environ())
	if err != nil {
		return nil, err
	}
	p, err := file.Convert(baseDir)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	if err := ApplyEnv(p, os.Getenv); err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded.",
		"project", p.Root.Coordinate.GAV(),
		"dependencies", len(p.Root.Dependencies),
		"repositories", len(p.Repositories))
	return p, nil
}

// ApplyEnv overrides p with the KILN_* variables returned by getenv.
func ApplyEnv(p *Project, getenv func(string) string) error {
	get := func(key string) string {
		return strings.TrimSpace(getenv(key))
	}

	p.CacheRoot = firstNonEmpty(get(EnvCacheRoot), p.CacheRoot)
	p.SecondaryRoot = firstNonEmpty(get(EnvSecondaryRoot), p.SecondaryRoot)

	if raw := get(EnvWorkers); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", EnvWorkers, raw)
		}
		p.Workers = n
	}
	if raw := get(EnvFetchTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFetchTimeout, err)
		}
		p.FetchTimeout = d
	}
	if raw := get(EnvOffline); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s must be a boolean, got %q", EnvOffline, raw)
		}
		p.Offline = v
	}

	for _, r := range p.Repositories {
		if r.S3 == nil {
			continue
		}
		r.S3.AccessKey = firstNonEmpty(get(EnvS3AccessKey), r.S3.AccessKey)
		r.S3.SecretKey = firstNonEmpty(get(EnvS3SecretKey), r.S3.SecretKey)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
