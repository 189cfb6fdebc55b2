// Package recipe loads package build declarations from recipe directories,
// a central packages.yaml, or a legacy packages.txt flat list.
package recipe

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for recipe loading.
var (
	ErrNoConfigSource = errors.New("no package configuration source found")
	ErrMissingName    = errors.New("package entry missing name")
)

// DefaultSource is assumed when a package declares no source.
const DefaultSource = "pypi"

// Package is a single build-plan entry. Metadata beyond the dependency lists
// is carried through to the build executor unmodified.
type Package struct {
	Name              string            `yaml:"name" json:"name"`
	Version           string            `yaml:"version,omitempty" json:"version,omitempty"`
	Alias             string            `yaml:"alias,omitempty" json:"alias,omitempty"`
	Source            string            `yaml:"source,omitempty" json:"source"`
	URL               string            `yaml:"url,omitempty" json:"url,omitempty"`
	HostDependencies  []string          `yaml:"host_dependencies,omitempty" json:"host_dependencies"`
	BuildDependencies []string          `yaml:"build_dependencies,omitempty" json:"build_dependencies"`
	PipDependencies   []string          `yaml:"pip_dependencies,omitempty" json:"pip_dependencies"`
	Patches           []string          `yaml:"patches,omitempty" json:"patches"`
	Env               map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Spec returns the pip requirement spec for the package, e.g. "pyyaml==6.0".
func (p Package) Spec() string {
	return p.Name + p.Version
}

// OrderDependencies returns the names that must be built before this package:
// build-time dependencies plus host dependencies, deduplicated, declaration
// order preserved.
func (p Package) OrderDependencies() []string {
	seen := make(map[string]bool)
	var deps []string
	for _, name := range append(append([]string{}, p.BuildDependencies...), p.HostDependencies...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		deps = append(deps, name)
	}
	return deps
}

// Validate checks required fields and applies defaults.
func (p *Package) Validate() error {
	if p.Name == "" {
		return ErrMissingName
	}
	if p.Source == "" {
		p.Source = DefaultSource
	}
	return nil
}

// PlanEntry is a build-plan record as handed to the downstream build
// executor: the package metadata unchanged, plus the computed requirement
// spec.
type PlanEntry struct {
	Spec string `json:"spec"`
	Package
}

// NewPlan wraps an ordered package list into plan entries.
func NewPlan(packages []Package) []PlanEntry {
	entries := make([]PlanEntry, 0, len(packages))
	for _, pkg := range packages {
		entries = append(entries, PlanEntry{Spec: pkg.Spec(), Package: pkg})
	}
	return entries
}

// LoadOptions selects the configuration sources. All paths are optional; at
// least one must exist on disk or loading fails with ErrNoConfigSource.
// Precedence: per-package recipe directories, then the central config file
// for packages not already defined, then the legacy flat list only when
// neither richer source exists.
type LoadOptions struct {
	RecipesDir string // directory of <package>/recipe.yaml entries
	ConfigFile string // central packages.yaml
	LegacyFile string // legacy packages.txt flat list
}

// configFile is the top-level shape of packages.yaml. Entries are decoded
// individually so a malformed entry skips with a warning instead of failing
// the whole file.
type configFile struct {
	Packages []yaml.Node `yaml:"packages"`
}

// Load reads package declarations from the configured sources and returns
// them sorted by name. Malformed entries are logged and skipped; missing
// local patch files are dropped from their package's patch list.
func Load(opts LoadOptions, logger *slog.Logger) ([]Package, error) {
	byName := make(map[string]Package)

	recipesLoaded, err := loadRecipeDirs(opts.RecipesDir, byName, logger)
	if err != nil {
		return nil, err
	}

	configLoaded, err := loadConfigFile(opts.ConfigFile, byName, logger)
	if err != nil {
		return nil, err
	}

	if !recipesLoaded && !configLoaded {
		legacyLoaded, err := loadLegacyFile(opts.LegacyFile, byName, logger)
		if err != nil {
			return nil, err
		}
		if !legacyLoaded {
			return nil, ErrNoConfigSource
		}
		logger.Info("using legacy package list", "path", opts.LegacyFile)
	}

	packages := make([]Package, 0, len(byName))
	for _, pkg := range byName {
		packages = append(packages, pkg)
	}
	sort.Slice(packages, func(i, j int) bool {
		return packages[i].Name < packages[j].Name
	})

	logger.Info("loaded package configuration", "package_count", len(packages))
	for _, pkg := range packages {
		logger.Debug("package",
			"spec", pkg.Spec(),
			"source", pkg.Source,
			"build_dependencies", len(pkg.BuildDependencies),
			"host_dependencies", len(pkg.HostDependencies),
			"patches", len(pkg.Patches))
	}

	return packages, nil
}

// loadRecipeDirs reads <dir>/<package>/recipe.yaml files. A recipe without an
// explicit name takes its directory name.
func loadRecipeDirs(dir string, byName map[string]Package, logger *slog.Logger) (bool, error) {
	if dir == "" {
		return false, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read recipes directory %s: %w", dir, err)
	}

	loaded := false
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		recipePath := filepath.Join(dir, entry.Name(), "recipe.yaml")
		data, err := os.ReadFile(recipePath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return false, fmt.Errorf("failed to read recipe %s: %w", recipePath, err)
		}

		var pkg Package
		if err := yaml.Unmarshal(data, &pkg); err != nil {
			logger.Warn("skipping malformed recipe", "path", recipePath, "error", err)
			continue
		}
		if pkg.Name == "" {
			pkg.Name = entry.Name()
		}
		if err := pkg.Validate(); err != nil {
			logger.Warn("skipping invalid recipe", "path", recipePath, "error", err)
			continue
		}

		pkg.Patches = resolvePatches(pkg, filepath.Join(dir, entry.Name()), logger)
		byName[pkg.Name] = pkg
		loaded = true
	}

	return loaded, nil
}

// loadConfigFile reads the central packages.yaml, filling in packages not
// already defined by recipe directories.
func loadConfigFile(path string, byName map[string]Package, logger *slog.Logger) (bool, error) {
	if path == "" {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return false, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	for _, node := range cfg.Packages {
		if node.Kind != yaml.MappingNode {
			logger.Warn("skipping invalid package entry", "path", path, "line", node.Line)
			continue
		}

		var pkg Package
		if err := node.Decode(&pkg); err != nil {
			logger.Warn("skipping malformed package entry", "path", path, "line", node.Line, "error", err)
			continue
		}
		if err := pkg.Validate(); err != nil {
			logger.Warn("skipping package entry", "path", path, "line", node.Line, "error", err)
			continue
		}

		if _, exists := byName[pkg.Name]; exists {
			logger.Debug("package already defined by recipe directory, config entry ignored",
				"package", pkg.Name)
			continue
		}

		pkg.Patches = resolvePatches(pkg, baseDir, logger)
		byName[pkg.Name] = pkg
	}

	return true, nil
}

// loadLegacyFile reads the flat packages.txt list: one requirement spec per
// line, blank lines and # comments skipped.
func loadLegacyFile(path string, byName map[string]Package, logger *slog.Logger) (bool, error) {
	if path == "" {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read legacy package list %s: %w", path, err)
	}

	loaded := false
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name := specName(line)
		if name == "" {
			logger.Warn("skipping unparseable package spec", "path", path, "spec", line)
			continue
		}

		byName[name] = Package{
			Name:    name,
			Version: strings.TrimPrefix(line, name),
			Source:  DefaultSource,
		}
		loaded = true
	}

	return loaded, nil
}

// specName extracts the bare package name from a requirement spec by cutting
// at the first version operator or extras bracket.
func specName(spec string) string {
	name := spec
	for _, sep := range []string{"==", ">=", "<=", "!=", "~=", "["} {
		if idx := strings.Index(name, sep); idx >= 0 {
			name = name[:idx]
		}
	}
	return strings.TrimSpace(name)
}

// resolvePatches returns the package's patch list with missing local files
// dropped. URL patches pass through untouched; local paths are checked
// relative to baseDir.
func resolvePatches(pkg Package, baseDir string, logger *slog.Logger) []string {
	if len(pkg.Patches) == 0 {
		return nil
	}

	var kept []string
	for _, patch := range pkg.Patches {
		if strings.HasPrefix(patch, "http://") || strings.HasPrefix(patch, "https://") {
			kept = append(kept, patch)
			continue
		}

		local := patch
		if !filepath.IsAbs(local) {
			local = filepath.Join(baseDir, patch)
		}
		if _, err := os.Stat(local); err != nil {
			logger.Warn("patch file not found, dropping from package",
				"package", pkg.Name,
				"patch", patch)
			continue
		}
		kept = append(kept, patch)
	}
	return kept
}
