// Package bundle reads bundle files: the projects, each one a git
// repository at a given version, that together make a build of the model.
//
//	name: IAL-bundle
//	projects:
//	  - IAL:
//	      git: https://github.com/ACCORD-NWP/IAL.git
//	      version: CY49T0_bf.01
//	  - eckit:
//	      git: https://github.com/ecmwf/eckit.git
//	      version: 1.24.4
//	      gmkpack: hub/local/src/ecSDK
package bundle

import (
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"gitpack/internal/errors"
)

// MainProject is the project sandboxes are named and resolved after.
const MainProject = "IAL"

const (
	// HubDir holds packages built by their own build system
	HubDir = "hub"
	// LocalDir holds the sources gmkpack compiles
	LocalDir = "src/local"
)

// defaultDestinations places projects that do not say where they go.
var defaultDestinations = map[string]string{
	"eckit":   "hub/local/src/ecSDK",
	"fckit":   "hub/local/src/ecSDK",
	"ecbuild": "hub/local/src/ecSDK",
	"arpifs":  LocalDir,
	"ial":     LocalDir,
}

// Project is one repository of a bundle.
type Project struct {
	Name    string `yaml:"-" json:"name"`
	Git     string `yaml:"git" json:"git"`
	Version string `yaml:"version" json:"version"`
	// Gmkpack is the directory the project goes to, relative to the sandbox root
	Gmkpack string `yaml:"gmkpack,omitempty" json:"gmkpack,omitempty"`
	// Subdir puts a src/local project under src/local/<Subdir>
	Subdir string `yaml:"copy_to_subdirectory,omitempty" json:"subdir,omitempty"`
}

// Destination is where the project goes in a sandbox.
func (p Project) Destination() (string, error) {
	dest := p.Gmkpack
	if dest == "" {
		dest = defaultDestinations[strings.ToLower(p.Name)]
	}
	dest = strings.Trim(path.Clean(dest), "/")
	switch {
	case dest == "" || dest == ".":
		return "", errors.Errorf(errors.InvalidArgument,
			"destination of project %s is unknown: set its gmkpack attribute, e.g. src/local/oops or hub/local/src/ecSDK", p.Name)
	case dest != LocalDir && !strings.HasPrefix(dest, LocalDir+"/") && !strings.HasPrefix(dest, HubDir+"/"):
		return "", errors.Errorf(errors.InvalidArgument,
			"project %s: destination %s is neither under %s nor under %s", p.Name, dest, HubDir, LocalDir)
	}
	return dest, nil
}

// IsHub reports whether the project is a hub package, copied as a whole
// next to the sandbox sources.
func (p Project) IsHub() bool {
	dest, err := p.Destination()
	return err == nil && strings.HasPrefix(dest, HubDir+"/")
}

// LocalSubdir is the directory under src/local a source project goes to.
func (p Project) LocalSubdir() string {
	if p.Subdir != "" {
		return p.Subdir
	}
	dest, _ := p.Destination()
	return strings.TrimPrefix(strings.TrimPrefix(dest, LocalDir), "/")
}

// Bundle is a parsed bundle file.
type Bundle struct {
	Name     string    `json:"name"`
	Path     string    `json:"path,omitempty"`
	Projects []Project `json:"projects"`
}

// Main returns the project sandboxes are made from.
func (b *Bundle) Main() (Project, error) {
	for _, p := range b.Projects {
		if strings.EqualFold(p.Name, MainProject) {
			return p, nil
		}
	}
	return Project{}, errors.Errorf(errors.InvalidArgument, "bundle %s has no %s project", b.Name, MainProject)
}

// Others returns the projects besides the main one, hub packages first.
func (b *Bundle) Others() []Project {
	var hub, local []Project
	for _, p := range b.Projects {
		switch {
		case strings.EqualFold(p.Name, MainProject):
		case p.IsHub():
			hub = append(hub, p)
		default:
			local = append(local, p)
		}
	}
	return append(hub, local...)
}

// Load reads the bundle file at file.
func Load(fs afero.Fs, file string) (*Bundle, error) {
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf(errors.InvalidArgument, "bundle file not found: %s", file)
		}
		return nil, errors.Wrap(errors.InternalError, "Failed to read "+file, err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, err
	}
	b.Path = file
	return b, nil
}

// Parse decodes a bundle file. Every project needs a git URL and a version,
// and a destination.
func Parse(data []byte) (*Bundle, error) {
	var raw struct {
		Name     string               `yaml:"name"`
		Projects []map[string]Project `yaml:"projects"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.InvalidArgument, "Malformed bundle file", err)
	}

	b := &Bundle{Name: raw.Name}
	seen := make(map[string]bool)
	for _, entry := range raw.Projects {
		if len(entry) != 1 {
			return nil, errors.Errorf(errors.InvalidArgument, "each bundle project must be a single name: got %d", len(entry))
		}
		for name, p := range entry {
			p.Name = name
			if p.Git == "" || p.Version == "" {
				return nil, errors.Errorf(errors.InvalidArgument, "project %s needs both git and version", name)
			}
			if seen[strings.ToLower(name)] {
				return nil, errors.Errorf(errors.InvalidArgument, "project %s is listed twice", name)
			}
			if _, err := p.Destination(); err != nil {
				return nil, err
			}
			seen[strings.ToLower(name)] = true
			b.Projects = append(b.Projects, p)
		}
	}
	if len(b.Projects) == 0 {
		return nil, errors.Errorf(errors.InvalidArgument, "bundle %s lists no project", b.Name)
	}
	return b, nil
}
