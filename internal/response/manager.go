package response

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/KI7MT/goes-xrs-tem/internal/common"
)

// ErrChecksumMismatch reports an artifact whose SHA-256 differs from the
// pinned value.
var ErrChecksumMismatch = errors.New("response table checksum mismatch")

// ManagerConfig configures where the artifact comes from and where it is
// cached.
type ManagerConfig struct {
	URL      string        // http(s) URL or local path
	SHA256   string        // hex digest; empty disables verification
	CacheDir string        // download cache; empty means os.TempDir()
	Timeout  time.Duration // HTTP timeout per download
	Client   *http.Client  // optional; overrides Timeout
}

// artifact is one loaded table plus its reference count.
type artifact struct {
	table *Table
	refs  atomic.Int64
}

// Handle is a counted reference to a loaded table. Release it when the
// computation using it is done.
type Handle struct {
	a    *artifact
	once sync.Once
}

// Table returns the referenced table.
func (h *Handle) Table() *Table {
	return h.a.table
}

// Release drops the reference. Extra calls are no-ops.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.a.refs.Add(-1)
	})
}

// ManagerStats is a point-in-time view of the manager.
type ManagerStats struct {
	Loads      uint64 // successful loads since creation
	LiveRefs   int64  // handles held on the current artifact
	Retired    int    // retired artifacts still referenced
	Version    string // current table version, empty if not loaded
	CachedPath string
}

// Manager lazily fetches, verifies and parses the response table, and
// shares the immutable result between callers until Invalidate.
type Manager struct {
	cfg    ManagerConfig
	logger *zap.Logger

	mu       sync.Mutex
	current  *artifact
	retired  []*artifact
	loads    atomic.Uint64
	lastPath string

	// OnLoad, when set, is called after each successful load.
	OnLoad func(version string)
}

// NewManager creates a manager. Nothing is fetched until Acquire.
func NewManager(cfg ManagerConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = os.TempDir()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Manager{cfg: cfg, logger: logger}
}

// Acquire returns a handle on the current table, loading it on first use or
// after Invalidate.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		t, path, err := m.load(ctx)
		if err != nil {
			return nil, err
		}
		m.current = &artifact{table: t}
		m.lastPath = path
		m.loads.Add(1)
		m.logger.Info("response table loaded",
			zap.String("version", t.Version),
			zap.Int("rows", t.Len()),
			zap.String("path", path))
		if m.OnLoad != nil {
			m.OnLoad(t.Version)
		}
	}

	m.current.refs.Add(1)
	return &Handle{a: m.current}, nil
}

// Invalidate retires the current table. Handles already acquired keep
// working; the next Acquire loads the artifact again. When purge is true
// the cached download is removed as well.
func (m *Manager) Invalidate(purge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if m.current.refs.Load() > 0 {
			m.retired = append(m.retired, m.current)
		}
		m.current = nil
	}
	m.compact()

	if purge && m.isRemote() {
		path := m.cachePath()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("purge cached response table: %w", err)
		}
	}
	return nil
}

// Stats reports load and reference counts.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compact()

	st := ManagerStats{
		Loads:      m.loads.Load(),
		Retired:    len(m.retired),
		CachedPath: m.lastPath,
	}
	if m.current != nil {
		st.LiveRefs = m.current.refs.Load()
		st.Version = m.current.table.Version
	}
	return st
}

// compact forgets retired artifacts nobody references any more.
func (m *Manager) compact() {
	kept := m.retired[:0]
	for _, a := range m.retired {
		if a.refs.Load() > 0 {
			kept = append(kept, a)
		}
	}
	m.retired = kept
}

// Fetch makes sure the artifact is present in the cache and verified, and
// returns its path. Local paths are verified in place.
func (m *Manager) Fetch(ctx context.Context) (string, error) {
	if m.cfg.URL == "" {
		return "", errors.New("response table location not configured")
	}
	if !m.isRemote() {
		if err := m.verify(m.cfg.URL); err != nil {
			return "", err
		}
		return m.cfg.URL, nil
	}

	dest := m.cachePath()
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		if err := m.verify(dest); err == nil {
			return dest, nil
		}
		m.logger.Warn("cached response table failed verification, downloading again", zap.String("path", dest))
	}

	if err := os.MkdirAll(m.cfg.CacheDir, 0755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	if err := m.download(ctx, dest); err != nil {
		return "", err
	}
	if err := m.verify(dest); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}

func (m *Manager) load(ctx context.Context) (*Table, string, error) {
	path, err := m.Fetch(ctx)
	if err != nil {
		return nil, "", err
	}

	data, err := readArtifact(path)
	if err != nil {
		return nil, "", err
	}

	version := m.cfg.SHA256
	if version == "" {
		version = filepath.Base(path)
	}
	var t *Table
	if IsFITS(path) {
		t, err = LoadFITS(bytes.NewReader(data), version)
	} else {
		t, err = Load(bytes.NewReader(data), int64(len(data)), version)
	}
	if err != nil {
		return nil, "", err
	}
	return t, path, nil
}

// readArtifact reads the file, decompressing .gz with parallel gzip.
func readArtifact(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open response table: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReaderN(f, 256*1024, runtime.NumCPU())
		if err != nil {
			return nil, fmt.Errorf("gunzip response table: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read response table: %w", err)
	}
	return data, nil
}

func (m *Manager) download(ctx context.Context, destPath string) error {
	client := m.cfg.Client
	if client == nil {
		client = &http.Client{Timeout: m.cfg.Timeout}
	}
	n, err := common.DownloadFile(ctx, client, m.cfg.URL, destPath, false)
	if err != nil {
		return err
	}
	m.logger.Info("response table downloaded",
		zap.String("url", m.cfg.URL),
		zap.Int64("bytes", n))
	return nil
}

func (m *Manager) verify(path string) error {
	if m.cfg.SHA256 == "" {
		return nil
	}
	got, err := FileSHA256(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, m.cfg.SHA256) {
		return fmt.Errorf("%w: %s has %s, want %s", ErrChecksumMismatch, filepath.Base(path), got, m.cfg.SHA256)
	}
	return nil
}

func (m *Manager) isRemote() bool {
	return strings.HasPrefix(m.cfg.URL, "http://") || strings.HasPrefix(m.cfg.URL, "https://")
}

func (m *Manager) cachePath() string {
	name := filepath.Base(m.cfg.URL)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if name == "" || name == "/" || name == "." {
		name = "goes_chianti_response.parquet"
	}
	return filepath.Join(m.cfg.CacheDir, name)
}

// FileSHA256 returns the hex SHA-256 digest of a file.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
