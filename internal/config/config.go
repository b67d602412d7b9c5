package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"gitpack/internal/paths"
)

// Failure policies accepted in build.policy
const (
	PolicyImmediate       = "immediate"
	PolicyCollectAndRaise = "collect-and-raise"
	PolicyTolerant        = "tolerant"
)

// UsualBinaries are the programs built when no target list is given.
var UsualBinaries = []string{
	"masterodb", "bator",
	"ioassign", "lfitools",
	"pgd", "prep",
	"oovar", "ootestvar",
}

// Config represents the complete gitpack configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`
	Remote   string `json:"remote" mapstructure:"remote"`
	// EpochTag is the oldest official tag considered when resolving ancestors
	EpochTag string `json:"epochTag" mapstructure:"epochTag"`

	Git     GitConfig     `json:"git" mapstructure:"git"`
	Sandbox SandboxConfig `json:"sandbox" mapstructure:"sandbox"`
	Build   BuildConfig   `json:"build" mapstructure:"build"`
	Sync    SyncConfig    `json:"sync" mapstructure:"sync"`
	History HistoryConfig `json:"history" mapstructure:"history"`
	Bundle  BundleConfig  `json:"bundle" mapstructure:"bundle"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// GitConfig contains git runner configuration
type GitConfig struct {
	Executable string `json:"executable" mapstructure:"executable"`
	// TimeoutMs bounds read-only git queries; 0 disables the bound
	TimeoutMs int `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// SandboxConfig contains sandbox tool configuration
type SandboxConfig struct {
	Home          string `json:"home" mapstructure:"home"`
	RootPack      string `json:"rootPack" mapstructure:"rootPack"`
	CompilerLabel string `json:"compilerLabel" mapstructure:"compilerLabel"`
	CompilerFlag  string `json:"compilerFlag" mapstructure:"compilerFlag"`
	Tool          string `json:"tool" mapstructure:"tool"`
	ScanTool      string `json:"scanTool" mapstructure:"scanTool"`
	CleanTool     string `json:"cleanTool" mapstructure:"cleanTool"`
}

// BuildConfig contains build orchestration defaults
type BuildConfig struct {
	Targets    []string `json:"targets" mapstructure:"targets"`
	Policy     string   `json:"policy" mapstructure:"policy"`
	Regenerate bool     `json:"regenerate" mapstructure:"regenerate"`
	CleanFirst bool     `json:"cleanFirst" mapstructure:"cleanFirst"`
	Threads    int      `json:"threads" mapstructure:"threads"`
	OptLevel   int      `json:"optLevel" mapstructure:"optLevel"`
	Partition  string   `json:"partition" mapstructure:"partition"`
	Silent     bool     `json:"silent" mapstructure:"silent"`
	ReportFile string   `json:"reportFile" mapstructure:"reportFile"`
	// StrictScripts makes unmatched script patches fail instead of being skipped
	StrictScripts bool `json:"strictScripts" mapstructure:"strictScripts"`
}

// SyncConfig contains sandbox synchronization filters
type SyncConfig struct {
	Exclude []string `json:"exclude" mapstructure:"exclude"`
}

// HistoryConfig contains build history persistence settings
type HistoryConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// BundleConfig locates bundle projects and published bundles
type BundleConfig struct {
	// CacheDir holds one clone per bundle project
	CacheDir string `json:"cacheDir" mapstructure:"cacheDir"`
	// Repository is a clone of the repository publishing bundles as tags
	Repository string `json:"repository" mapstructure:"repository"`
	// File is the bundle file name at the root of Repository
	File string `json:"file" mapstructure:"file"`
	// Downloads bounds the parallel project downloads
	Downloads int `json:"downloads" mapstructure:"downloads"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		Remote:   "origin",
		EpochTag: "CY38",
		Git: GitConfig{
			Executable: "git",
		},
		Sandbox: SandboxConfig{
			CompilerFlag: "2y",
			Tool:         "gmkpack",
			ScanTool:     "scanpack",
			CleanTool:    "cleanpack",
		},
		Build: BuildConfig{
			Targets:    UsualBinaries,
			Policy:     PolicyImmediate,
			Regenerate: true,
			CleanFirst: true,
			Threads:    32,
			OptLevel:   4,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Bundle: BundleConfig{
			CacheDir:  "~/bundles",
			File:      "bundle.yml",
			Downloads: 1,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "warn",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("repoRoot", d.RepoRoot)
	v.SetDefault("remote", d.Remote)
	v.SetDefault("epochTag", d.EpochTag)
	v.SetDefault("git.executable", d.Git.Executable)
	v.SetDefault("git.timeoutMs", d.Git.TimeoutMs)
	v.SetDefault("sandbox.home", d.Sandbox.Home)
	v.SetDefault("sandbox.rootPack", d.Sandbox.RootPack)
	v.SetDefault("sandbox.compilerLabel", d.Sandbox.CompilerLabel)
	v.SetDefault("sandbox.compilerFlag", d.Sandbox.CompilerFlag)
	v.SetDefault("sandbox.tool", d.Sandbox.Tool)
	v.SetDefault("sandbox.scanTool", d.Sandbox.ScanTool)
	v.SetDefault("sandbox.cleanTool", d.Sandbox.CleanTool)
	v.SetDefault("build.targets", d.Build.Targets)
	v.SetDefault("build.policy", d.Build.Policy)
	v.SetDefault("build.regenerate", d.Build.Regenerate)
	v.SetDefault("build.cleanFirst", d.Build.CleanFirst)
	v.SetDefault("build.threads", d.Build.Threads)
	v.SetDefault("build.optLevel", d.Build.OptLevel)
	v.SetDefault("build.partition", d.Build.Partition)
	v.SetDefault("build.silent", d.Build.Silent)
	v.SetDefault("build.reportFile", d.Build.ReportFile)
	v.SetDefault("build.strictScripts", d.Build.StrictScripts)
	v.SetDefault("sync.exclude", []string{})
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("bundle.cacheDir", d.Bundle.CacheDir)
	v.SetDefault("bundle.repository", d.Bundle.Repository)
	v.SetDefault("bundle.file", d.Bundle.File)
	v.SetDefault("bundle.downloads", d.Bundle.Downloads)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
}

// LoadConfig loads configuration from <repoRoot>/.gitpack/config.* then the
// user config directory, overlaid with GITPACK_* and the legacy pack variables.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(repoRoot, paths.RepoConfigDir))
	if dir, err := paths.GetUserConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("GITPACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// variables understood by the sandbox tool itself
	_ = v.BindEnv("sandbox.home", "GITPACK_SANDBOX_HOME", "HOMEPACK")
	_ = v.BindEnv("sandbox.rootPack", "GITPACK_SANDBOX_ROOTPACK", "ROOTPACK")
	_ = v.BindEnv("sandbox.compilerFlag", "GITPACK_SANDBOX_COMPILERFLAG", "GMK_OPT")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.RepoRoot == "." || cfg.RepoRoot == "" {
		cfg.RepoRoot = repoRoot
	}
	return &cfg, nil
}

// Save writes the configuration to <repoRoot>/.gitpack/config.json
func (c *Config) Save(repoRoot string) error {
	dir, err := paths.EnsureDir(filepath.Join(repoRoot, paths.RepoConfigDir))
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	switch c.Build.Policy {
	case PolicyImmediate, PolicyCollectAndRaise, PolicyTolerant:
	default:
		return &ConfigError{Field: "build.policy", Message: "must be one of immediate, collect-and-raise, tolerant"}
	}
	if c.Build.Threads < 0 {
		return &ConfigError{Field: "build.threads", Message: "must not be negative"}
	}
	if c.Git.TimeoutMs < 0 {
		return &ConfigError{Field: "git.timeoutMs", Message: "must not be negative"}
	}
	if c.Bundle.Downloads < 1 {
		return &ConfigError{Field: "bundle.downloads", Message: "must be at least 1"}
	}
	if c.Sandbox.CompilerFlag == "" {
		return &ConfigError{Field: "sandbox.compilerFlag", Message: "must not be empty"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
