package recipe

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadNoSources(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(LoadOptions{
		RecipesDir: filepath.Join(dir, "recipes"),
		ConfigFile: filepath.Join(dir, "packages.yaml"),
		LegacyFile: filepath.Join(dir, "packages.txt"),
	}, testLogger())
	if !errors.Is(err, ErrNoConfigSource) {
		t.Errorf("error = %v, want ErrNoConfigSource", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "packages.yaml")
	writeFile(t, configPath, `packages:
  - name: pyyaml
    version: ==6.0
  - name: cryptography
    version: ==41.0.0
    build_dependencies: [cffi]
    host_dependencies: [openssl]
  - name: numpy
    alias: numpy-compat
`)

	packages, err := Load(LoadOptions{ConfigFile: configPath}, testLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(packages) != 3 {
		t.Fatalf("expected 3 packages, got %d", len(packages))
	}

	// Sorted by name.
	if packages[0].Name != "cryptography" || packages[1].Name != "numpy" || packages[2].Name != "pyyaml" {
		t.Errorf("packages not sorted: %v, %v, %v",
			packages[0].Name, packages[1].Name, packages[2].Name)
	}

	crypto := packages[0]
	if crypto.Spec() != "cryptography==41.0.0" {
		t.Errorf("Spec() = %q, want cryptography==41.0.0", crypto.Spec())
	}
	if crypto.Source != DefaultSource {
		t.Errorf("Source = %q, want %q", crypto.Source, DefaultSource)
	}
	deps := crypto.OrderDependencies()
	if len(deps) != 2 || deps[0] != "cffi" || deps[1] != "openssl" {
		t.Errorf("OrderDependencies() = %v, want [cffi openssl]", deps)
	}

	if packages[1].Alias != "numpy-compat" {
		t.Errorf("Alias = %q, want numpy-compat", packages[1].Alias)
	}
}

func TestLoadConfigFileSkipsMalformedEntries(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "packages.yaml")
	writeFile(t, configPath, `packages:
  - name: pyyaml
  - "just a string"
  - version: ==1.0
`)

	packages, err := Load(LoadOptions{ConfigFile: configPath}, testLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(packages) != 1 || packages[0].Name != "pyyaml" {
		t.Errorf("packages = %+v, want only pyyaml", packages)
	}
}

func TestLoadRecipeDirs(t *testing.T) {
	dir := t.TempDir()
	recipesDir := filepath.Join(dir, "recipes")
	writeFile(t, filepath.Join(recipesDir, "pillow", "recipe.yaml"), `version: ==10.0.0
build_dependencies: [libjpeg]
`)
	writeFile(t, filepath.Join(recipesDir, "cffi", "recipe.yaml"), `name: cffi
version: ==1.16.0
`)
	// A directory without a recipe file is ignored.
	if err := os.MkdirAll(filepath.Join(recipesDir, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	packages, err := Load(LoadOptions{RecipesDir: recipesDir}, testLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(packages) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(packages))
	}
	if packages[0].Name != "cffi" {
		t.Errorf("first package = %q, want cffi", packages[0].Name)
	}
	// Name defaults to the directory name.
	if packages[1].Name != "pillow" || packages[1].Version != "==10.0.0" {
		t.Errorf("pillow recipe = %+v", packages[1])
	}
}

func TestLoadRecipeDirsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	recipesDir := filepath.Join(dir, "recipes")
	writeFile(t, filepath.Join(recipesDir, "pyyaml", "recipe.yaml"), `version: ==6.0.1
`)
	configPath := filepath.Join(dir, "packages.yaml")
	writeFile(t, configPath, `packages:
  - name: pyyaml
    version: ==5.4
  - name: requests
    version: ==2.28.0
`)

	packages, err := Load(LoadOptions{RecipesDir: recipesDir, ConfigFile: configPath}, testLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(packages) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(packages))
	}
	if packages[0].Version != "==6.0.1" {
		t.Errorf("recipe directory should win: version = %q, want ==6.0.1", packages[0].Version)
	}
	if packages[1].Name != "requests" {
		t.Errorf("config-only package missing: %+v", packages)
	}
}

func TestLoadLegacyFile(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, "packages.txt")
	writeFile(t, legacyPath, `# build list
pyyaml==6.0

requests>=2.28
cryptography[ssh]==41.0.0
plain-package
`)

	packages, err := Load(LoadOptions{LegacyFile: legacyPath}, testLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(packages) != 4 {
		t.Fatalf("expected 4 packages, got %d", len(packages))
	}

	byName := make(map[string]Package)
	for _, pkg := range packages {
		byName[pkg.Name] = pkg
	}
	if byName["pyyaml"].Version != "==6.0" {
		t.Errorf("pyyaml version = %q, want ==6.0", byName["pyyaml"].Version)
	}
	if byName["requests"].Version != ">=2.28" {
		t.Errorf("requests version = %q, want >=2.28", byName["requests"].Version)
	}
	if _, ok := byName["cryptography"]; !ok {
		t.Errorf("extras bracket not stripped: %v", packages)
	}
	if byName["plain-package"].Version != "" {
		t.Errorf("plain-package version = %q, want empty", byName["plain-package"].Version)
	}
}

func TestLoadLegacyIgnoredWhenConfigExists(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "packages.yaml")
	writeFile(t, configPath, `packages:
  - name: pyyaml
`)
	legacyPath := filepath.Join(dir, "packages.txt")
	writeFile(t, legacyPath, "requests==2.28.0\n")

	packages, err := Load(LoadOptions{ConfigFile: configPath, LegacyFile: legacyPath}, testLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(packages) != 1 || packages[0].Name != "pyyaml" {
		t.Errorf("legacy file should be ignored: %+v", packages)
	}
}

func TestResolvePatches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "patches", "fix-build.patch"), "--- a\n+++ b\n")

	configPath := filepath.Join(dir, "packages.yaml")
	writeFile(t, configPath, `packages:
  - name: pillow
    patches:
      - patches/fix-build.patch
      - patches/missing.patch
      - https://example.com/upstream.patch
`)

	packages, err := Load(LoadOptions{ConfigFile: configPath}, testLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(packages) != 1 {
		t.Fatalf("expected 1 package, got %d", len(packages))
	}

	patches := packages[0].Patches
	if len(patches) != 2 {
		t.Fatalf("patches = %v, want existing local patch plus URL", patches)
	}
	if patches[0] != "patches/fix-build.patch" || patches[1] != "https://example.com/upstream.patch" {
		t.Errorf("patches = %v", patches)
	}
}

func TestNewPlan(t *testing.T) {
	packages := []Package{
		{Name: "cffi", Version: "==1.16.0", Source: "pypi"},
		{Name: "cryptography", Version: "==41.0.0", Source: "pypi", BuildDependencies: []string{"cffi"}},
	}

	plan := NewPlan(packages)
	if len(plan) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(plan))
	}
	if plan[0].Spec != "cffi==1.16.0" {
		t.Errorf("Spec = %q, want cffi==1.16.0", plan[0].Spec)
	}
	if len(plan[1].BuildDependencies) != 1 {
		t.Errorf("metadata not carried through: %+v", plan[1])
	}
}

func TestValidate(t *testing.T) {
	pkg := Package{}
	if err := pkg.Validate(); !errors.Is(err, ErrMissingName) {
		t.Errorf("error = %v, want ErrMissingName", err)
	}

	pkg = Package{Name: "numpy"}
	if err := pkg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if pkg.Source != DefaultSource {
		t.Errorf("Source = %q, want %q", pkg.Source, DefaultSource)
	}
}
