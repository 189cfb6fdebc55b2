// Package alias maps between configured package names and the alternate names
// embedded in real artifact filenames. Lookups are bidirectional and
// case-insensitive; one artifact name per configured name and vice versa.
package alias

import (
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"github.com/platform-wheels/wheelhouse/internal/wheelname"
)

// Pair is a single alias declaration from configuration. An empty Alias means
// the package publishes under its configured name only.
type Pair struct {
	Name  string
	Alias string
}

// Resolver holds the bidirectional alias lookup tables.
type Resolver struct {
	byArtifact   map[string]string // folded artifact name -> configured name
	byConfigured map[string]string // folded configured name -> artifact name
}

// foldKey returns the Unicode case-folded form of name used as a lookup key.
func foldKey(name string) string {
	return cases.Fold().String(name)
}

// NewResolver builds a Resolver from configuration pairs. Pairs without an
// alias are ignored. A duplicate declaration for either side is a
// configuration warning; the first declaration wins.
func NewResolver(pairs []Pair, logger *slog.Logger) *Resolver {
	r := &Resolver{
		byArtifact:   make(map[string]string),
		byConfigured: make(map[string]string),
	}

	for _, pair := range pairs {
		if pair.Name == "" || pair.Alias == "" {
			continue
		}

		configuredKey := foldKey(pair.Name)
		artifactKey := foldKey(pair.Alias)

		if existing, ok := r.byConfigured[configuredKey]; ok {
			logger.Warn("duplicate alias declaration for package, keeping first",
				"package", pair.Name,
				"existing_alias", existing,
				"ignored_alias", pair.Alias)
			continue
		}
		if existing, ok := r.byArtifact[artifactKey]; ok {
			logger.Warn("alias already claimed by another package, keeping first",
				"alias", pair.Alias,
				"existing_package", existing,
				"ignored_package", pair.Name)
			continue
		}

		r.byConfigured[configuredKey] = pair.Alias
		r.byArtifact[artifactKey] = pair.Name
	}

	return r
}

// Len returns the number of alias mappings held by the resolver.
func (r *Resolver) Len() int {
	return len(r.byConfigured)
}

// AliasFor returns the artifact name declared for a configured package name.
func (r *Resolver) AliasFor(configuredName string) (string, bool) {
	name, ok := r.byConfigured[foldKey(configuredName)]
	return name, ok
}

// CanonicalFor returns the configured package name for an artifact name.
func (r *Resolver) CanonicalFor(artifactName string) (string, bool) {
	name, ok := r.byArtifact[foldKey(artifactName)]
	return name, ok
}

// Rename rewrites an archive filename, substituting the identity from for to.
// The filename is parsed exactly as wheelname.ParseIdentity parses it; if the
// recovered identity does not match from (case-insensitively) or the filename
// cannot be parsed, the input is returned unchanged. When the original
// identity segment used underscores the substituted name keeps that style.
func Rename(filename, from, to string) string {
	identitySegments, rest, ok := wheelname.SplitIdentity(filename)
	if !ok {
		return filename
	}

	rawIdentity := strings.Join(identitySegments, "-")
	identity := strings.ReplaceAll(rawIdentity, "_", "-")
	if foldKey(identity) != foldKey(from) {
		return filename
	}

	replacement := to
	if strings.Contains(rawIdentity, "_") {
		replacement = strings.ReplaceAll(replacement, "-", "_")
	}

	stem, _ := wheelname.StripExtension(filename)
	ext := filename[len(stem):]

	if len(rest) == 0 {
		return replacement + ext
	}
	return replacement + "-" + strings.Join(rest, "-") + ext
}
