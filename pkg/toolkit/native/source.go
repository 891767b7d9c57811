package native

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/recera/dicomview/pkg/toolkit"
)

// PayloadCache stores fetched payloads by source URL
type PayloadCache interface {
	Fetch(source string, fill func() ([]byte, error)) ([]byte, error)
}

// SourceLoader fetches DICOM payloads over HTTP or from the local filesystem
// and decodes them with Decode.
type SourceLoader struct {
	// Client defaults to a client with a 30s timeout
	Client *http.Client

	// Cache, when set, stores payloads fetched over HTTP
	Cache PayloadCache

	// BaseURL resolves relative references such as /files/exam/IM0001.dcm
	BaseURL *url.URL

	// MaxBytes caps the payload size, 0 means 256 MiB
	MaxBytes int64
}

// Load implements Loader
func (s *SourceLoader) Load(ctx context.Context, source string) (*toolkit.Image, error) {
	data, err := s.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Fetch returns the raw payload behind source
func (s *SourceLoader) Fetch(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse source %q: %w", source, err)
	}
	if s.BaseURL != nil && !u.IsAbs() && strings.HasPrefix(source, "/") {
		u = s.BaseURL.ResolveReference(u)
	}

	switch u.Scheme {
	case "http", "https":
		get := func() ([]byte, error) { return s.get(ctx, u.String()) }
		if s.Cache != nil {
			return s.Cache.Fetch(u.String(), get)
		}
		return get()
	case "file":
		return s.readFile(u.Path)
	case "":
		return s.readFile(source)
	}
	return nil, fmt.Errorf("unsupported source scheme %q", u.Scheme)
}

func (s *SourceLoader) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/dicom")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", target, resp.Status)
	}
	return s.readAll(resp.Body)
}

func (s *SourceLoader) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.readAll(f)
}

func (s *SourceLoader) readAll(r io.Reader) ([]byte, error) {
	limit := s.MaxBytes
	if limit <= 0 {
		limit = 256 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("payload exceeds %d bytes", limit)
	}
	return data, nil
}
