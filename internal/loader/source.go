package loader

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quic-go/quic-go/http3"
	"golang.org/x/sync/singleflight"

	"github.com/orizon-lang/typecore/internal/diagnostic"
	"github.com/orizon-lang/typecore/internal/errors"
)

// Source provides declaration manifests.
type Source interface {
	// Name identifies the source in logs and diagnostics.
	Name() string
	// List returns the names of the manifests the source provides.
	List(ctx context.Context) ([]string, error)
	// Fetch reads and decodes one manifest.
	Fetch(ctx context.Context, name string) (*Manifest, error)
}

// ====== File Source ======

// FileSource reads manifests (*.yaml, *.yml, *.json) from directories.
// Decoded manifests are cached by path and modification time, and
// concurrent reads of one file are coalesced. A FileSource may be shared
// by loaders running in parallel.
type FileSource struct {
	dirs  []string
	sf    singleflight.Group
	mu    sync.RWMutex
	cache map[string]cachedManifest
}

type cachedManifest struct {
	modTime  time.Time
	manifest *Manifest
}

// NewFileSource creates a source over dirs.
func NewFileSource(dirs ...string) *FileSource {
	return &FileSource{dirs: dirs, cache: make(map[string]cachedManifest)}
}

func (s *FileSource) Name() string { return "file:" + strings.Join(s.dirs, string(os.PathListSeparator)) }

// Dirs returns the directories the source reads.
func (s *FileSource) Dirs() []string { return append([]string(nil), s.dirs...) }

// List walks every directory and returns the manifest paths in order.
func (s *FileSource) List(ctx context.Context) ([]string, error) {
	var out []string
	for _, dir := range s.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !d.IsDir() && IsManifestFile(path) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(errors.CategoryLoader, "source.list", err, func() *diagnostic.Fragment {
				return diagnostic.NewFragment("source.list", dir)
			})
		}
	}
	sort.Strings(out)
	return out, nil
}

// IsManifestFile reports whether path has a manifest extension.
func IsManifestFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Fetch returns the manifest at path, decoding it again only when the file
// changed since the last read.
func (s *FileSource) Fetch(ctx context.Context, path string) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(errors.CategoryLoader, "source.read", err, func() *diagnostic.Fragment {
			return diagnostic.NewFragment("source.read", path)
		})
	}

	s.mu.RLock()
	c, ok := s.cache[path]
	s.mu.RUnlock()
	if ok && c.modTime.Equal(info.ModTime()) {
		return c.manifest, nil
	}

	v, err, _ := s.sf.Do(path, func() (any, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.CategoryLoader, "source.read", err, func() *diagnostic.Fragment {
				return diagnostic.NewFragment("source.read", path)
			})
		}
		m, err := ParseManifest(path, data)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[path] = cachedManifest{modTime: info.ModTime(), manifest: m}
		s.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Manifest), nil
}

// Invalidate drops the cached manifest of path.
func (s *FileSource) Invalidate(path string) {
	s.mu.Lock()
	delete(s.cache, path)
	s.mu.Unlock()
}

// ====== HTTP Source ======

// HTTPSource fetches "{base}/{module}.yaml" for each configured module.
type HTTPSource struct {
	base    string
	modules []string
	client  *http.Client
	h3      *http3.Transport
	sf      singleflight.Group
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) { s.client.Timeout = d }
}

// WithHTTP3 makes the source speak HTTP/3 over QUIC.
func WithHTTP3(tlsCfg *tls.Config) HTTPOption {
	return func(s *HTTPSource) {
		s.h3 = &http3.Transport{TLSClientConfig: tlsCfg}
		s.client.Transport = s.h3
	}
}

// WithHTTPClient replaces the client used for requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) { s.client = c }
}

// NewHTTPSource creates a source serving modules from base.
func NewHTTPSource(base string, modules []string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		base:    strings.TrimRight(base, "/"),
		modules: append([]string(nil), modules...),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSource) Name() string { return s.base }

// List returns the configured modules.
func (s *HTTPSource) List(context.Context) ([]string, error) {
	return append([]string(nil), s.modules...), nil
}

// Fetch downloads and decodes the manifest of module.
func (s *HTTPSource) Fetch(ctx context.Context, module string) (*Manifest, error) {
	v, err, _ := s.sf.Do(module, func() (any, error) {
		return s.fetch(ctx, module)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Manifest), nil
}

func (s *HTTPSource) fetch(ctx context.Context, module string) (*Manifest, error) {
	u := s.base + "/" + module + ".yaml"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(errors.CategoryLoader, "source.fetch", err, nil)
	}
	req.Header.Set("Accept", "application/yaml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.CategoryLoader, "source.fetch", err, func() *diagnostic.Fragment {
			return diagnostic.NewFragment("source.fetch", u)
		})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.CategoryLoader, "source.status", u, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errors.Wrap(errors.CategoryLoader, "source.fetch", err, nil)
	}
	m, err := ParseManifest(module+".yaml", data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", u, err)
	}
	m.Source = u
	return m, nil
}

// Close releases the HTTP/3 transport, if any.
func (s *HTTPSource) Close() error {
	if s.h3 != nil {
		return s.h3.Close()
	}
	return nil
}
