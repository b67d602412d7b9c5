package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"gitpack/internal/paths"
)

// ProfilesFileName is the build profiles file, looked up in the repo config dir.
const ProfilesFileName = "profiles.toml"

// Profile is a named set of build overrides. Zero values leave the
// corresponding setting untouched.
type Profile struct {
	Targets    []string `toml:"targets"`
	Policy     string   `toml:"policy"`
	Threads    int      `toml:"threads"`
	OptLevel   int      `toml:"optLevel"`
	Partition  string   `toml:"partition"`
	CleanFirst *bool    `toml:"cleanFirst"`
	Regenerate *bool    `toml:"regenerate"`
	Silent     *bool    `toml:"silent"`
}

type profilesFile struct {
	Profile map[string]Profile `toml:"profile"`
}

// LoadProfiles reads <repoRoot>/.gitpack/profiles.toml. A missing file yields
// an empty set.
func LoadProfiles(repoRoot string) (map[string]Profile, error) {
	path := filepath.Join(repoRoot, paths.RepoConfigDir, ProfilesFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]Profile{}, nil
	}

	var pf profilesFile
	md, err := toml.DecodeFile(path, &pf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, &ConfigError{Field: undecoded[0].String(), Message: "unknown profile setting"}
	}
	if pf.Profile == nil {
		pf.Profile = map[string]Profile{}
	}
	return pf.Profile, nil
}

// ProfileNames returns the sorted profile names.
func ProfileNames(profiles map[string]Profile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyProfile overlays p onto the build section.
func (c *Config) ApplyProfile(p Profile) {
	if len(p.Targets) > 0 {
		c.Build.Targets = append([]string(nil), p.Targets...)
	}
	if p.Policy != "" {
		c.Build.Policy = p.Policy
	}
	if p.Threads > 0 {
		c.Build.Threads = p.Threads
	}
	if p.OptLevel > 0 {
		c.Build.OptLevel = p.OptLevel
	}
	if p.Partition != "" {
		c.Build.Partition = p.Partition
	}
	if p.CleanFirst != nil {
		c.Build.CleanFirst = *p.CleanFirst
	}
	if p.Regenerate != nil {
		c.Build.Regenerate = *p.Regenerate
	}
	if p.Silent != nil {
		c.Build.Silent = *p.Silent
	}
}

// UseProfile loads the profiles file and applies the named profile.
func (c *Config) UseProfile(repoRoot, name string) error {
	profiles, err := LoadProfiles(repoRoot)
	if err != nil {
		return err
	}
	p, ok := profiles[name]
	if !ok {
		return &ConfigError{Field: "profile", Message: fmt.Sprintf("unknown profile %q (available: %v)", name, ProfileNames(profiles))}
	}
	c.ApplyProfile(p)
	return nil
}
