// Package discovery publishes the connection record that lets the external
// CLI find and authenticate to the protocol server. One record file exists
// per port under {configDir}/ide/{port}.lock.
package discovery

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/vaulterm/idebridge/src/idebridge/internal/scheduler"
)

const (
	_configKeyDirOverride = "discovery.configDirOverride"

	_envConfigDir     = "CLAUDE_CONFIG_DIR"
	_defaultConfigDir = ".claude"
	_lockSubdir       = "ide"
	_lockSuffix       = ".lock"

	_transportKind = "ws"
	_tokenBytes    = 64
)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// Record is the discovery file schema read by the external CLI.
type Record struct {
	PID              int      `json:"pid"`
	WorkspaceFolders []string `json:"workspaceFolders"`
	IDEName          string   `json:"ideName"`
	Transport        string   `json:"transport"`
	RunningInWindows bool     `json:"runningInWindows"`
	AuthToken        string   `json:"authToken"`
}

// Publisher manages the server's discovery records.
type Publisher interface {
	// AllocatePort binds a transient loopback listener, reads back the
	// assigned port, and releases it.
	AllocatePort() (int, error)
	// GenerateAuthToken returns a fresh unpredictable credential.
	GenerateAuthToken() (string, error)
	// WriteRecord creates the discovery directory if needed and writes the
	// record for the given port in a single write call.
	WriteRecord(port int, workspaceRoot, ideName, authToken string) (*Record, error)
	// DeleteRecord unlinks the record for the given port. Best effort; all
	// failures including "not found" are swallowed.
	DeleteRecord(port int)
	// CleanupStaleRecords deletes every parseable record that references the
	// given workspace root. Run before WriteRecord to recover from a prior
	// ungraceful shutdown.
	CleanupStaleRecords(workspaceRoot string) error
	// WatchRecord re-publishes the record if something else unlinks it, until
	// the returned task is stopped. A sibling editor instance's stale-record
	// cleanup can otherwise leave a live server unadvertised.
	WatchRecord(port int, rewrite func() error) (scheduler.Task, error)
}

type publisher struct {
	lockDir string
	logger  *zap.SugaredLogger
}

// Params define values to be used by the Publisher.
type Params struct {
	fx.In

	Config config.Provider
	Logger *zap.SugaredLogger
}

// New creates a Publisher with the discovery directory resolved once: the
// config override wins, then $CLAUDE_CONFIG_DIR, then ~/.claude.
func New(p Params) (Publisher, error) {
	var override string
	if err := p.Config.Get(_configKeyDirOverride).Populate(&override); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyDirOverride, err)
	}

	dir, err := resolveLockDir(override)
	if err != nil {
		return nil, err
	}

	return &publisher{
		lockDir: dir,
		logger:  p.Logger,
	}, nil
}

func resolveLockDir(override string) (string, error) {
	base := override
	if base == "" {
		base = os.Getenv(_envConfigDir)
	}
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		base = filepath.Join(home, _defaultConfigDir)
	}
	return filepath.Join(base, _lockSubdir), nil
}

func (p *publisher) AllocatePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("allocating ephemeral port: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		return 0, fmt.Errorf("releasing ephemeral port listener: %w", err)
	}
	return port, nil
}

func (p *publisher) GenerateAuthToken() (string, error) {
	raw := make([]byte, _tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating auth token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func (p *publisher) WriteRecord(port int, workspaceRoot, ideName, authToken string) (*Record, error) {
	if err := os.MkdirAll(p.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating discovery directory: %w", err)
	}

	record := &Record{
		PID:              os.Getpid(),
		WorkspaceFolders: []string{},
		IDEName:          ideName,
		Transport:        _transportKind,
		RunningInWindows: runtime.GOOS == "windows",
		AuthToken:        authToken,
	}
	if workspaceRoot != "" {
		record.WorkspaceFolders = []string{workspaceRoot}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshalling discovery record: %w", err)
	}

	// One write call so a concurrent reader never sees a half-written file.
	if err := os.WriteFile(p.recordPath(port), data, 0o600); err != nil {
		return nil, fmt.Errorf("writing discovery record: %w", err)
	}

	p.logger.Infow("discovery record published", "path", p.recordPath(port), "pid", record.PID)
	return record, nil
}

func (p *publisher) DeleteRecord(port int) {
	if err := os.Remove(p.recordPath(port)); err != nil && !os.IsNotExist(err) {
		p.logger.Debugw("discovery record removal failed", "port", port, "error", err)
	}
}

func (p *publisher) CleanupStaleRecords(workspaceRoot string) error {
	entries, err := os.ReadDir(p.lockDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("scanning discovery directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), _lockSuffix) {
			continue
		}
		path := filepath.Join(p.lockDir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			// Malformed records belong to nobody; leave them alone.
			continue
		}
		if !slices.Contains(record.WorkspaceFolders, workspaceRoot) {
			continue
		}

		if err := os.Remove(path); err != nil {
			p.logger.Warnw("stale discovery record removal failed", "path", path, "error", err)
			continue
		}
		p.logger.Infow("stale discovery record removed", "path", path, "pid", record.PID)
	}

	return nil
}

func (p *publisher) WatchRecord(port int, rewrite func() error) (scheduler.Task, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating discovery watcher: %w", err)
	}
	if err := watcher.Add(p.lockDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching discovery directory: %w", err)
	}

	name := strconv.Itoa(port) + _lockSuffix
	task := &watchTask{watcher: watcher, done: make(chan struct{})}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name || !event.Has(fsnotify.Remove|fsnotify.Rename) {
					continue
				}
				p.logger.Warnw("discovery record disappeared, re-publishing", "port", port)
				if err := rewrite(); err != nil {
					p.logger.Errorw("re-publishing discovery record", "port", port, "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Debugw("discovery watcher error", "error", err)
			case <-task.done:
				return
			}
		}
	}()

	return task, nil
}

func (p *publisher) recordPath(port int) string {
	return filepath.Join(p.lockDir, strconv.Itoa(port)+_lockSuffix)
}

type watchTask struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

func (t *watchTask) Stop() {
	t.once.Do(func() {
		t.watcher.Close()
		close(t.done)
	})
}
