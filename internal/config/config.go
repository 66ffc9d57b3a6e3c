package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Remote contains endpoints for the content archive service.
type Remote struct {
	SearchURL      string `toml:"search_url"`
	MetadataURL    string `toml:"metadata_url"`
	DownloadURL    string `toml:"download_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Transfers contains built-in transfer option defaults. Persisted settings
// and per-request overrides layer on top of these at job creation.
type Transfers struct {
	SkipExisting       bool `toml:"skip_existing"`
	VerifyChecksum     bool `toml:"verify_checksum"`
	Retries            int  `toml:"retries"`
	TimeoutSeconds     int  `toml:"timeout_seconds"`
	Flatten            bool `toml:"flatten"`
	PreserveTimestamps bool `toml:"preserve_timestamps"`
	IncludeDerivatives bool `toml:"include_derivatives"`

	// WorkerBinary overrides the executable spawned for transfer workers.
	// Empty means the daemon re-executes itself.
	WorkerBinary string `toml:"worker_binary"`
}

// Workflow contains scheduler timing and supervision intervals.
type Workflow struct {
	AdmissionPollMS       int `toml:"admission_poll_ms"`
	SupervisionPollMS     int `toml:"supervision_poll_ms"`
	ProgressIntervalMS    int `toml:"progress_interval_ms"`
	TerminateGraceSeconds int `toml:"terminate_grace_seconds"`
	StaleStagingHours     int `toml:"stale_staging_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Archivist.
//
// Configuration sections by subsystem:
//   - Paths: data root, state/log directories, and API bind address
//   - Remote: archive service endpoints and request timeout
//   - Transfers: built-in transfer option defaults
//   - Workflow: scheduler polling intervals and termination grace
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Remote    Remote    `toml:"remote"`
	Transfers Transfers `toml:"transfers"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/archivist/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

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

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("archivist.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The data root is created on a best-effort basis so the daemon can start
// when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.DataDir) != "" {
		_ = os.MkdirAll(c.Paths.DataDir, 0o755)
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the state directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "archivist.db")
}

// LockFilePath returns the daemon lock file location inside the state directory.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.StateDir, "archivistd.lock")
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)

	c.Remote.SearchURL = strings.TrimRight(strings.TrimSpace(c.Remote.SearchURL), "/")
	c.Remote.MetadataURL = strings.TrimRight(strings.TrimSpace(c.Remote.MetadataURL), "/")
	c.Remote.DownloadURL = strings.TrimRight(strings.TrimSpace(c.Remote.DownloadURL), "/")
	if c.Remote.RequestTimeout <= 0 {
		c.Remote.RequestTimeout = defaultRemoteRequestTimeout
	}

	if c.Transfers.WorkerBinary, err = expandPath(strings.TrimSpace(c.Transfers.WorkerBinary)); err != nil {
		return fmt.Errorf("transfers.worker_binary: %w", err)
	}

	if c.Workflow.AdmissionPollMS <= 0 {
		c.Workflow.AdmissionPollMS = defaultAdmissionPollMS
	}
	if c.Workflow.SupervisionPollMS <= 0 {
		c.Workflow.SupervisionPollMS = defaultSupervisionPollMS
	}
	if c.Workflow.ProgressIntervalMS <= 0 {
		c.Workflow.ProgressIntervalMS = defaultProgressIntervalMS
	}
	if c.Workflow.TerminateGraceSeconds <= 0 {
		c.Workflow.TerminateGraceSeconds = defaultTerminateGraceSeconds
	}
	if c.Workflow.StaleStagingHours <= 0 {
		c.Workflow.StaleStagingHours = defaultStaleStagingHours
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) (string, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return expanded, fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return expanded, nil
}
