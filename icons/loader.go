package icons

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Loader fetches the raw bytes an image URL refers to.
type Loader interface {
	Load(ctx context.Context, rawURL string) ([]byte, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, rawURL string) ([]byte, error)

func (f LoaderFunc) Load(ctx context.Context, rawURL string) ([]byte, error) {
	return f(ctx, rawURL)
}

// HTTPLoader loads images over HTTP. Relative URLs are resolved against
// BaseURL.
type HTTPLoader struct {
	Client   *http.Client
	BaseURL  string
	Timeout  time.Duration
	MaxBytes int64
}

func (l *HTTPLoader) Load(ctx context.Context, rawURL string) ([]byte, error) {
	target, err := l.resolve(rawURL)
	if err != nil {
		return nil, err
	}

	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, target, resp.StatusCode)
	}

	return readLimited(resp.Body, l.MaxBytes)
}

func (l *HTTPLoader) resolve(rawURL string) (string, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse image url: %w", err)
	}
	if ref.IsAbs() || l.BaseURL == "" {
		return ref.String(), nil
	}

	base, err := url.Parse(l.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// DataURLLoader decodes RFC 2397 data: URLs.
type DataURLLoader struct{}

func (DataURLLoader) Load(ctx context.Context, rawURL string) ([]byte, error) {
	rest, ok := strings.CutPrefix(rawURL, "data:")
	if !ok {
		return nil, ErrInvalidDataURL
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrInvalidDataURL
	}

	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
		}
		return data, nil
	}

	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return []byte(data), nil
}

// FileLoader reads file:// URLs and bare paths from the local filesystem.
type FileLoader struct {
	MaxBytes int64
}

func (l FileLoader) Load(ctx context.Context, rawURL string) ([]byte, error) {
	path := rawURL
	if strings.HasPrefix(rawURL, "file:") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse file url: %w", err)
		}
		path = u.Path
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image file: %w", err)
	}
	defer f.Close()

	return readLimited(f, l.MaxBytes)
}

// SchemeLoader dispatches on the URL scheme. URLs without a scheme go to
// Default.
type SchemeLoader struct {
	Loaders map[string]Loader
	Default Loader
}

func (l *SchemeLoader) Load(ctx context.Context, rawURL string) ([]byte, error) {
	scheme, _, found := strings.Cut(rawURL, ":")
	if found && isScheme(scheme) {
		if loader, ok := l.Loaders[strings.ToLower(scheme)]; ok {
			return loader.Load(ctx, rawURL)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}

	if l.Default == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, rawURL)
	}
	return l.Default.Load(ctx, rawURL)
}

// NewLoader returns the loader drawbridge uses by default: http(s) through
// client, data: URLs inline, file: URLs from disk. Relative URLs are loaded
// over HTTP when cfg.BaseURL is set and from disk otherwise.
func NewLoader(cfg Config, client *http.Client) Loader {
	defaults := DefaultConfig()
	defaults.Merge(&cfg)

	httpLoader := &HTTPLoader{
		Client:   client,
		BaseURL:  defaults.BaseURL,
		Timeout:  defaults.LoadTimeout.Std(),
		MaxBytes: defaults.MaxImageBytes,
	}
	fileLoader := FileLoader{MaxBytes: defaults.MaxImageBytes}

	var fallback Loader = fileLoader
	if defaults.BaseURL != "" {
		fallback = httpLoader
	}

	return &SchemeLoader{
		Loaders: map[string]Loader{
			"http":  httpLoader,
			"https": httpLoader,
			"data":  DataURLLoader{},
			"file":  fileLoader,
		},
		Default: fallback,
	}
}

// isScheme reports whether s is a URL scheme rather than, say, a Windows
// drive letter or a path segment.
func isScheme(s string) bool {
	if len(s) < 2 {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrImageTooLarge
	}
	return data, nil
}
