package index

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/platform-wheels/wheelhouse/internal/alias"
	"github.com/platform-wheels/wheelhouse/internal/version"
	"github.com/platform-wheels/wheelhouse/internal/wheelname"
)

// ScanArchives walks dir recursively and returns every file carrying a
// recognized built-distribution extension. A missing directory yields an
// empty set, not an error, so optional inputs like a prebuilt-wheels
// directory can simply be absent.
func ScanArchives(dir string, logger *slog.Logger) ([]Archive, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("archive directory does not exist, skipping", "dir", dir)
		return nil, nil
	}

	var archives []Archive
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !wheelname.HasArchiveExtension(d.Name()) {
			return nil
		}
		archives = append(archives, Archive{Filename: d.Name(), Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan archive directory %s: %w", dir, err)
	}

	// Walk order is already lexical per directory, but the combined set
	// must be stable regardless of nesting.
	sort.Slice(archives, func(i, j int) bool {
		if archives[i].Filename != archives[j].Filename {
			return archives[i].Filename < archives[j].Filename
		}
		return archives[i].Path < archives[j].Path
	})

	logger.Info("scanned archive directory", "dir", dir, "archive_count", len(archives))
	return archives, nil
}

// BuildModel groups archives by their parsed package identity and materializes
// alias groups for every identity with a configured alternate name. Archives
// whose filename does not conform to the naming convention are logged and
// skipped.
func BuildModel(archives []Archive, aliases *alias.Resolver, logger *slog.Logger) *Site {
	groups := make(map[string][]Entry)

	for _, archive := range archives {
		identity, ok := wheelname.ParseIdentity(archive.Filename)
		if !ok {
			logger.Warn("could not determine package name for archive, skipping",
				"filename", archive.Filename)
			continue
		}
		groups[identity] = append(groups[identity], Entry{
			Filename: archive.Filename,
			Path:     archive.Path,
		})
		logger.Debug("found archive", "filename", archive.Filename, "package", identity)
	}

	site := &Site{}
	naturalNames := sortedKeys(groups)

	for _, name := range naturalNames {
		entries := groups[name]
		sortEntries(entries)
		site.Groups = append(site.Groups, Group{Name: name, Entries: entries})
	}

	// Alias groups reference the same content under the alternate name,
	// with each filename rewritten to match.
	for _, name := range naturalNames {
		aliasName, ok := publishedAliasFor(name, aliases)
		if !ok {
			continue
		}
		if _, exists := groups[aliasName]; exists {
			logger.Warn("alias name collides with a natural package group, skipping alias listing",
				"package", name,
				"alias", aliasName)
			continue
		}

		entries := make([]Entry, 0, len(groups[name]))
		for _, entry := range groups[name] {
			entries = append(entries, Entry{
				Filename: alias.Rename(entry.Filename, name, aliasName),
				Path:     entry.Path,
			})
		}
		sortEntries(entries)
		site.Groups = append(site.Groups, Group{Name: aliasName, Aliased: true, Entries: entries})
	}

	sort.Slice(site.Groups, func(i, j int) bool {
		return site.Groups[i].Name < site.Groups[j].Name
	})

	return site
}

// publishedAliasFor returns the alternate name a package group must also be
// published under. The lookup works in both directions: a group named by the
// configured name publishes under its artifact alias, and a group named by
// the artifact alias publishes under the configured name.
func publishedAliasFor(name string, aliases *alias.Resolver) (string, bool) {
	if aliases == nil {
		return "", false
	}
	if other, ok := aliases.AliasFor(name); ok && other != name {
		return other, true
	}
	if other, ok := aliases.CanonicalFor(name); ok && other != name {
		return other, true
	}
	return "", false
}

// sortEntries orders a group's entries newest version first, filename
// ascending as the tie-break. Entries without a parseable version sort last.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		vi, okI := version.FromFilename(entries[i].Filename)
		vj, okJ := version.FromFilename(entries[j].Filename)
		if okI != okJ {
			return okI
		}
		if okI && okJ {
			if cmp := version.Compare(vi, vj); cmp != 0 {
				return cmp > 0
			}
		}
		return entries[i].Filename < entries[j].Filename
	})
}

// sortedKeys returns sorted keys from a map[string]T.
func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
