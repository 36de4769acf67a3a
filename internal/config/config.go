package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	EventsDir   string `toml:"events_dir"`
	LogDir      string `toml:"log_dir"`
	StateDir    string `toml:"state_dir"`
	InflightDir string `toml:"inflight_dir"`
}

// Cameras describes the capture devices and how frames are pulled from them.
type Cameras struct {
	IDs                 []int             `toml:"ids"`
	Width               int               `toml:"width"`
	Height              int               `toml:"height"`
	FPS                 int               `toml:"fps"`
	Backend             string            `toml:"backend"`
	Binary              string            `toml:"binary"`
	FFmpegBinary        string            `toml:"ffmpeg_binary"`
	Devices             map[string]string `toml:"devices"`
	Quality             int               `toml:"quality"`
	StartTimeoutSeconds int               `toml:"start_timeout_seconds"`
	StopGraceSeconds    int               `toml:"stop_grace_seconds"`
	UnhealthyThreshold  int               `toml:"unhealthy_threshold"`
	InitSettleMillis    int               `toml:"init_settle_ms"`
	RetryInitialSeconds int               `toml:"retry_initial_seconds"`
	RetryMaxSeconds     int               `toml:"retry_max_seconds"`
}

// Motion controls background subtraction and trigger pacing.
type Motion struct {
	Sensitivity     string `toml:"sensitivity"`
	CooldownSeconds int    `toml:"cooldown_seconds"`
	SampleEvery     int    `toml:"sample_every"`
	AnalysisWidth   int    `toml:"analysis_width"`
}

// Recording controls event clip capture.
type Recording struct {
	PreRollSeconds      int    `toml:"pre_roll_seconds"`
	PostRollSeconds     int    `toml:"post_roll_seconds"`
	FPS                 int    `toml:"fps"`
	Codec               string `toml:"codec"`
	Extension           string `toml:"extension"`
	Binary              string `toml:"binary"`
	TimeoutSlackSeconds int    `toml:"timeout_slack_seconds"`
	SettleMillis        int    `toml:"settle_ms"`
	ResumeDelayMillis   int    `toml:"resume_delay_ms"`
	Thumbnails          bool   `toml:"thumbnails"`
}

// Storage controls the retention policy applied to the events directory.
type Storage struct {
	MaxGiB                 float64  `toml:"max_gib"`
	RetentionDays          int      `toml:"retention_days"`
	ImportantRetentionDays int      `toml:"important_retention_days"`
	EmergencyDivisor       int      `toml:"emergency_fraction_divisor"`
	FreeFloorMiB           int      `toml:"free_floor_mib"`
	UsageRatio             float64  `toml:"usage_ratio"`
	AuditIntervalSeconds   int      `toml:"audit_interval_seconds"`
	ErrorBackoffSeconds    int      `toml:"error_backoff_seconds"`
	Extensions             []string `toml:"extensions"`
}

// Workflow contains orchestrator loop timing.
type Workflow struct {
	LoopIntervalMillis    int `toml:"loop_interval_ms"`
	StatusIntervalSeconds int `toml:"status_interval_seconds"`
	ShutdownGraceSeconds  int `toml:"shutdown_grace_seconds"`
}

// Logging contains logging configuration.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics controls the Prometheus listener. An empty bind disables it.
type Metrics struct {
	Bind string `toml:"bind"`
}

// API controls the read-only HTTP status API. An empty bind disables it; a
// non-empty token requires "Authorization: Bearer <token>".
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Config encapsulates all configuration values for blackbox.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Cameras   Cameras   `toml:"cameras"`
	Motion    Motion    `toml:"motion"`
	Recording Recording `toml:"recording"`
	Storage   Storage   `toml:"storage"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
	Metrics   Metrics   `toml:"metrics"`
	API       API       `toml:"api"`
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/blackbox/config.toml")
}

// Load locates, parses, and validates configuration. It returns the loaded
// config, the resolved path, whether the file existed, and an error.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadDotEnv(resolvedPath)

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv overlays .env files from next to the config and the working
// directory. Variables already present in the environment win.
func loadDotEnv(configPath string) {
	candidates := []string{filepath.Join(filepath.Dir(configPath), ".env")}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, fmt.Errorf("resolve config path: %w", err)
		}
		_, err = os.Stat(expanded)
		if err == nil {
			return expanded, true, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(defaultPath); err == nil {
		return defaultPath, true, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", false, fmt.Errorf("stat config: %w", err)
	}

	projectPath, err := filepath.Abs("blackbox.toml")
	if err != nil {
		return "", false, fmt.Errorf("resolve project config: %w", err)
	}
	if _, err := os.Stat(projectPath); err == nil {
		return projectPath, true, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", false, fmt.Errorf("stat project config: %w", err)
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.EventsDir, c.Paths.LogDir, c.Paths.StateDir, c.InflightDir()} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// InflightDir returns the directory clips are captured into before they are
// moved into the events tree.
func (c *Config) InflightDir() string {
	if strings.TrimSpace(c.Paths.InflightDir) != "" {
		return c.Paths.InflightDir
	}
	return filepath.Join(c.Paths.EventsDir, ".inflight")
}

// SocketPath returns the daemon IPC socket path.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "blackbox.sock")
}

// LockPath returns the single-instance lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "blackbox.lock")
}

// PIDPath returns the daemon PID file path.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "blackbox.pid")
}

// LedgerPath returns the SQLite events ledger path.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "events.db")
}

// DevicePath returns the V4L2 device for a camera id.
func (c *Config) DevicePath(id int) string {
	if dev, ok := c.Cameras.Devices[fmt.Sprintf("%d", id)]; ok && strings.TrimSpace(dev) != "" {
		return dev
	}
	return fmt.Sprintf("/dev/video%d", id)
}

// MaxBytes returns the storage budget in bytes.
func (c *Config) MaxBytes() int64 {
	return int64(c.Storage.MaxGiB * float64(1<<30))
}

// PreRoll returns the pre-trigger buffer duration.
func (c *Config) PreRoll() time.Duration {
	return time.Duration(c.Recording.PreRollSeconds) * time.Second
}

// PostRoll returns the post-trigger recording duration.
func (c *Config) PostRoll() time.Duration {
	return time.Duration(c.Recording.PostRollSeconds) * time.Second
}

// ExpandPath expands a user path, resolving ~ and cleaning the result.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, path[2:])
		}
	}
	path = filepath.Clean(path)
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return abs, nil
}

// CreateSample writes a sample configuration file to the specified path.
func CreateSample(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}
