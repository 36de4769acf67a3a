package storage

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"blackbox/internal/logging"
)

// Audit modes.
const (
	ModeNormal    = "normal"
	ModeEmergency = "emergency"
)

// ImportantSource lists clip paths that get the longer retention window.
type ImportantSource interface {
	ImportantPaths(ctx context.Context) (map[string]struct{}, error)
}

// Stats describes the events tree and its filesystem.
type Stats struct {
	Files        int     `json:"files"`
	UsedBytes    int64   `json:"used_bytes"`
	MaxBytes     int64   `json:"max_bytes"`
	FreeBytes    uint64  `json:"free_bytes"`
	TotalFSBytes uint64  `json:"total_fs_bytes"`
	UsagePercent float64 `json:"usage_percent"`
}

// DeletedFile is one file removed by an audit.
type DeletedFile struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size_bytes"`
	Created   time.Time `json:"created_at"`
	Important bool      `json:"important,omitempty"`
}

// AuditResult reports what an audit did.
type AuditResult struct {
	Mode       string        `json:"mode"`
	Before     Stats         `json:"before"`
	After      Stats         `json:"after"`
	Deleted    []DeletedFile `json:"deleted,omitempty"`
	FreedBytes int64         `json:"freed_bytes"`
	PrunedDirs []string      `json:"pruned_dirs,omitempty"`
	Errors     []AuditError  `json:"-"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// Option customises a Manager.
type Option func(*Manager)

// WithImportant wires the source of important clip paths.
func WithImportant(src ImportantSource) Option {
	return func(m *Manager) {
		m.important = src
	}
}

// WithClock overrides the clock used for age cutoffs.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager audits and cleans the events directory.
type Manager struct {
	policy     RetentionPolicy
	root       string
	extensions map[string]struct{}
	logger     *slog.Logger
	important  ImportantSource
	now        func() time.Time
	statfs     statfsFunc
	birthTime  birthTimeFunc
}

// NewManager builds a manager for root. Only files whose extension is in
// extensions are accounted and evicted.
func NewManager(policy RetentionPolicy, root string, extensions []string, logger *slog.Logger, opts ...Option) *Manager {
	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}
	m := &Manager{
		policy:     policy,
		root:       filepath.Clean(root),
		extensions: exts,
		logger:     logging.NewComponentLogger(logger, "storage"),
		now:        time.Now,
		statfs:     realStatfs,
		birthTime:  creationTime,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the managed directory.
func (m *Manager) Root() string { return m.root }

// Policy returns the retention policy.
func (m *Manager) Policy() RetentionPolicy { return m.policy }

type clip struct {
	path    string
	size    int64
	created time.Time
}

type scanResult struct {
	clips []clip
	dirs  []string
	used  int64
	errs  []AuditError
}

// scan walks root, skipping hidden directories. A missing root is empty.
func (m *Manager) scan(ctx context.Context) (scanResult, error) {
	var res scanResult
	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == m.root {
				if errors.Is(err, fs.ErrNotExist) {
					return fs.SkipAll
				}
				return err
			}
			res.errs = append(res.errs, AuditError{Path: path, Op: "walk", Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == m.root {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			res.dirs = append(res.dirs, path)
			return nil
		}
		if !d.Type().IsRegular() || !m.matches(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			res.errs = append(res.errs, AuditError{Path: path, Op: "stat", Err: err})
			return nil
		}
		res.clips = append(res.clips, clip{path: path, size: info.Size(), created: m.birthTime(path, info)})
		res.used += info.Size()
		return nil
	})
	if err != nil {
		return res, &AuditError{Path: m.root, Op: "walk", Err: err}
	}
	return res, nil
}

func (m *Manager) matches(name string) bool {
	_, ok := m.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (m *Manager) stats(used int64, files int) (Stats, error) {
	total, free, err := m.statfs(m.root)
	if err != nil {
		return Stats{}, &AuditError{Path: m.root, Op: "statfs", Err: err}
	}
	s := Stats{
		Files:        files,
		UsedBytes:    used,
		MaxBytes:     m.policy.MaxBytes,
		FreeBytes:    free,
		TotalFSBytes: total,
	}
	if m.policy.MaxBytes > 0 {
		s.UsagePercent = float64(used) / float64(m.policy.MaxBytes) * 100
	}
	return s, nil
}

// Stats walks the tree and reports current usage.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	res, err := m.scan(ctx)
	if err != nil {
		return Stats{}, err
	}
	return m.stats(res.used, len(res.clips))
}

// AuditAndClean applies the retention policy once. Running it when nothing
// qualifies deletes nothing and returns no error.
func (m *Manager) AuditAndClean(ctx context.Context) (AuditResult, error) {
	result := AuditResult{StartedAt: m.now()}
	scanned, err := m.scan(ctx)
	if err != nil {
		return result, err
	}
	result.Errors = append(result.Errors, scanned.errs...)
	result.Before, err = m.stats(scanned.used, len(scanned.clips))
	if err != nil {
		return result, err
	}

	slices.SortFunc(scanned.clips, func(a, b clip) int {
		if c := a.created.Compare(b.created); c != 0 {
			return c
		}
		return cmp.Compare(a.path, b.path)
	})

	var victims []DeletedFile
	if m.policy.emergency(result.Before) {
		result.Mode = ModeEmergency
		n := len(scanned.clips) / m.policy.divisor()
		for _, c := range scanned.clips[:n] {
			victims = append(victims, DeletedFile{Path: c.path, Size: c.size, Created: c.created})
		}
		logging.WarnWithContext(m.logger, "storage over budget; evicting oldest clips", "storage_emergency",
			logging.Int("files", len(scanned.clips)),
			logging.Int("evicting", n),
			logging.Float64("usage_percent", result.Before.UsagePercent),
			logging.Uint64("free_bytes", result.Before.FreeBytes),
			logging.String(logging.FieldErrorHint, "raise storage.max_gib or free disk space"),
			logging.String(logging.FieldImpact, "oldest motion clips deleted"),
		)
	} else {
		result.Mode = ModeNormal
		victims = m.expired(ctx, scanned.clips)
	}

	for _, victim := range victims {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := os.Remove(victim.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			result.Errors = append(result.Errors, AuditError{Path: victim.Path, Op: "remove", Err: err})
			continue
		}
		m.removeSidecars(victim.Path)
		result.Deleted = append(result.Deleted, victim)
		result.FreedBytes += victim.Size
	}

	result.PrunedDirs, result.Errors = m.pruneEmptyDirs(scanned.dirs, result.Errors)

	result.After, err = m.Stats(ctx)
	if err != nil {
		return result, err
	}
	result.Duration = m.now().Sub(result.StartedAt)

	for _, auditErr := range result.Errors {
		logging.WarnWithContext(m.logger, "storage audit step failed", "storage_audit_failed",
			logging.String("path", auditErr.Path),
			logging.String("op", auditErr.Op),
			logging.Error(auditErr.Err),
			logging.String(logging.FieldErrorHint, "check events_dir permissions"),
			logging.String(logging.FieldImpact, "retried on the next audit"),
		)
	}
	m.logger.Info("storage audit complete",
		logging.String("mode", result.Mode),
		logging.Int("deleted", len(result.Deleted)),
		logging.Int64("freed_bytes", result.FreedBytes),
		logging.Int("pruned_dirs", len(result.PrunedDirs)),
		logging.Int("files", result.After.Files),
		logging.Float64("usage_percent", result.After.UsagePercent),
		logging.String(logging.FieldEventType, "storage_audit"),
	)
	return result, nil
}

// expired selects clips older than their retention window.
func (m *Manager) expired(ctx context.Context, clips []clip) []DeletedFile {
	if m.policy.RetentionAge <= 0 {
		return nil
	}
	important := m.importantPaths(ctx)
	now := m.now()
	var victims []DeletedFile
	for _, c := range clips {
		age := m.policy.RetentionAge
		_, flagged := important[c.path]
		if flagged && m.policy.ImportantRetentionAge > age {
			age = m.policy.ImportantRetentionAge
		}
		if now.Sub(c.created) > age {
			victims = append(victims, DeletedFile{Path: c.path, Size: c.size, Created: c.created, Important: flagged})
		}
	}
	return victims
}

func (m *Manager) importantPaths(ctx context.Context) map[string]struct{} {
	if m.important == nil {
		return nil
	}
	paths, err := m.important.ImportantPaths(ctx)
	if err != nil {
		logging.WarnWithContext(m.logger, "important clip list unavailable", "storage_important_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "important clips use the normal retention window"),
		)
		return nil
	}
	return paths
}

// removeSidecars deletes the preview image written beside a clip.
func (m *Manager) removeSidecars(path string) {
	thumb := strings.TrimSuffix(path, filepath.Ext(path)) + ".jpg"
	if thumb == path {
		return
	}
	_ = os.Remove(thumb)
}

// pruneEmptyDirs removes empty directories deepest first. The root is kept.
func (m *Manager) pruneEmptyDirs(dirs []string, errs []AuditError) ([]string, []AuditError) {
	slices.SortFunc(dirs, func(a, b string) int {
		if c := cmp.Compare(strings.Count(b, string(filepath.Separator)), strings.Count(a, string(filepath.Separator))); c != 0 {
			return c
		}
		return cmp.Compare(b, a)
	})
	var pruned []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, AuditError{Path: dir, Op: "readdir", Err: err})
			}
			continue
		}
		if len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			errs = append(errs, AuditError{Path: dir, Op: "rmdir", Err: err})
			continue
		}
		pruned = append(pruned, dir)
	}
	return pruned, errs
}
