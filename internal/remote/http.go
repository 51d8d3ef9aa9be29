package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"resty.dev/v3"

	"github.com/vk/kiln/internal/coordinate"
)

// HTTPRepository fetches files from a Maven2-layout HTTP repository.
type HTTPRepository struct {
	name    string
	baseURL string
	client  *resty.Client
}

// NewHTTPRepository creates a repository rooted at baseURL. Resty's own
// diagnostics are routed to logger.
func NewHTTPRepository(name, baseURL string, logger *slog.Logger) *HTTPRepository {
	client := resty.New().
		SetHeader("User-Agent", "kiln").
		SetLogger(restyLogger{logger: logger.With("repository", name)})
	return &HTTPRepository{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// Name implements Repository.
func (r *HTTPRepository) Name() string {
	return r.name
}

// URL returns the address of coord's file with extension ext.
func (r *HTTPRepository) URL(coord coordinate.Coordinate, ext string) string {
	return r.baseURL + "/" + Path(coord, ext)
}

// Fetch implements Fetcher.
func (r *HTTPRepository) Fetch(ctx context.Context, coord coordinate.Coordinate, ext string) ([]byte, error) {
	path := Path(coord, ext)
	res, err := r.client.R().SetContext(ctx).Get(r.baseURL + "/" + path)
	if err != nil {
		return nil, &DownloadError{Repository: r.name, Path: path, Status: http.StatusBadGateway, Err: err}
	}
	if res.IsError() {
		return nil, &DownloadError{Repository: r.name, Path: path, Status: res.StatusCode(), Message: res.Status()}
	}
	return res.Bytes(), nil
}

// Close releases the underlying client.
func (r *HTTPRepository) Close() error {
	return r.client.Close()
}

type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
