package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.EpochTag != "CY38" {
		t.Errorf("EpochTag = %q, want CY38", cfg.EpochTag)
	}
	if cfg.Sandbox.CompilerFlag != "2y" {
		t.Errorf("CompilerFlag = %q, want 2y", cfg.Sandbox.CompilerFlag)
	}
	if cfg.Build.Policy != PolicyImmediate {
		t.Errorf("Policy = %q, want %q", cfg.Build.Policy, PolicyImmediate)
	}
	if len(cfg.Build.Targets) != len(UsualBinaries) {
		t.Errorf("Targets = %v, want usual binaries", cfg.Build.Targets)
	}
	if cfg.Build.Threads != 32 || cfg.Build.OptLevel != 4 {
		t.Errorf("Threads/OptLevel = %d/%d, want 32/4", cfg.Build.Threads, cfg.Build.OptLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad version", func(c *Config) { c.Version = 7 }, "version"},
		{"bad policy", func(c *Config) { c.Build.Policy = "sometimes" }, "build.policy"},
		{"negative threads", func(c *Config) { c.Build.Threads = -1 }, "build.threads"},
		{"negative timeout", func(c *Config) { c.Git.TimeoutMs = -5 }, "git.timeoutMs"},
		{"empty flag", func(c *Config) { c.Sandbox.CompilerFlag = "" }, "sandbox.compilerFlag"},
		{"no downloads", func(c *Config) { c.Bundle.Downloads = 0 }, "bundle.downloads"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			cerr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	repo := t.TempDir()

	cfg, err := LoadConfig(repo)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RepoRoot != repo {
		t.Errorf("RepoRoot = %q, want %q", cfg.RepoRoot, repo)
	}
	if cfg.Build.Policy != PolicyImmediate {
		t.Errorf("Policy = %q, want default", cfg.Build.Policy)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOMEPACK", "/scratch/pack")
	t.Setenv("GMK_OPT", "x")
	repo := t.TempDir()

	cfgDir := filepath.Join(repo, ".gitpack")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "version: 1\nbuild:\n  policy: tolerant\n  threads: 8\n  targets: [masterodb, bator]\nsync:\n  exclude: [\"**/*.bak\"]\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(repo)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Build.Policy != PolicyTolerant {
		t.Errorf("Policy = %q, want tolerant", cfg.Build.Policy)
	}
	if cfg.Build.Threads != 8 {
		t.Errorf("Threads = %d, want 8", cfg.Build.Threads)
	}
	if len(cfg.Build.Targets) != 2 {
		t.Errorf("Targets = %v", cfg.Build.Targets)
	}
	if cfg.Sandbox.Home != "/scratch/pack" {
		t.Errorf("Sandbox.Home = %q, want HOMEPACK value", cfg.Sandbox.Home)
	}
	if cfg.Sandbox.CompilerFlag != "x" {
		t.Errorf("CompilerFlag = %q, want GMK_OPT value", cfg.Sandbox.CompilerFlag)
	}
	if len(cfg.Sync.Exclude) != 1 || cfg.Sync.Exclude[0] != "**/*.bak" {
		t.Errorf("Sync.Exclude = %v", cfg.Sync.Exclude)
	}
	if cfg.EpochTag != "CY38" {
		t.Errorf("EpochTag = %q, want default", cfg.EpochTag)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	repo := t.TempDir()

	cfg := DefaultConfig()
	cfg.Remote = "upstream"
	cfg.Build.Partition = "normal256"
	if err := cfg.Save(repo); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadConfig(repo)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Remote != "upstream" || loaded.Build.Partition != "normal256" {
		t.Errorf("loaded = %+v", loaded)
	}
}
