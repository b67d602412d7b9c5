package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfiles(t *testing.T, repo, content string) {
	t.Helper()
	dir := filepath.Join(repo, ".gitpack")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ProfilesFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadProfiles_Missing(t *testing.T) {
	profiles, err := LoadProfiles(t.TempDir())
	if err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}
	if len(profiles) != 0 {
		t.Errorf("expected no profiles, got %v", profiles)
	}
}

func TestUseProfile(t *testing.T) {
	repo := t.TempDir()
	writeProfiles(t, repo, `
[profile.debug]
optLevel = 2
threads = 8
targets = ["masterodb"]
policy = "tolerant"
cleanFirst = false

[profile.nightly]
policy = "collect-and-raise"
partition = "normal256"
`)

	profiles, err := LoadProfiles(repo)
	if err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}
	if names := ProfileNames(profiles); len(names) != 2 || names[0] != "debug" || names[1] != "nightly" {
		t.Errorf("ProfileNames = %v", names)
	}

	cfg := DefaultConfig()
	if err := cfg.UseProfile(repo, "debug"); err != nil {
		t.Fatalf("UseProfile: %v", err)
	}
	if cfg.Build.OptLevel != 2 || cfg.Build.Threads != 8 {
		t.Errorf("OptLevel/Threads = %d/%d", cfg.Build.OptLevel, cfg.Build.Threads)
	}
	if cfg.Build.Policy != PolicyTolerant {
		t.Errorf("Policy = %q", cfg.Build.Policy)
	}
	if cfg.Build.CleanFirst {
		t.Error("CleanFirst should be overridden to false")
	}
	if !cfg.Build.Regenerate {
		t.Error("Regenerate should keep its default")
	}
	if len(cfg.Build.Targets) != 1 || cfg.Build.Targets[0] != "masterodb" {
		t.Errorf("Targets = %v", cfg.Build.Targets)
	}

	if err := cfg.UseProfile(repo, "missing"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestLoadProfiles_UnknownKey(t *testing.T) {
	repo := t.TempDir()
	writeProfiles(t, repo, "[profile.x]\nthreadz = 3\n")

	if _, err := LoadProfiles(repo); err == nil {
		t.Error("expected error for unknown setting")
	}
}
