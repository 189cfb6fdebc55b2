// Package wheelname extracts canonical package identities from built
// distribution filenames following the wheel naming convention
// {distribution}-{version}[-{build}]-{python tag}-{abi tag}-{platform tag}.whl.
package wheelname

import (
	"strings"
)

// archiveExtensions lists the recognized built-distribution extensions,
// longest first so ".tar.gz" wins over a plain suffix match.
var archiveExtensions = []string{".tar.gz", ".whl", ".zip"}

// HasArchiveExtension reports whether filename carries a recognized
// built-distribution extension.
func HasArchiveExtension(filename string) bool {
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}

// StripExtension removes the recognized archive extension from filename.
// Returns the stem and true, or the input unchanged and false if no
// recognized extension is present.
func StripExtension(filename string) (string, bool) {
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(filename, ext) {
			return strings.TrimSuffix(filename, ext), true
		}
	}
	return filename, false
}

// SplitIdentity locates the identity/version boundary in an archive filename.
// The version component is the first dash-separated segment that begins with a
// decimal digit; everything before it is the distribution identity. Returns
// the raw identity segments (underscore style preserved) and the remaining
// segments starting at the version. If no segment starts with a digit the
// first segment alone is treated as the identity.
//
// The digit heuristic is inherent to the naming convention: a distribution
// whose own name contains a digit-leading segment parses short. That tie-break
// is deliberate and matches the index consumers.
func SplitIdentity(filename string) (identity []string, rest []string, ok bool) {
	stem, _ := StripExtension(filename)
	if stem == "" {
		return nil, nil, false
	}

	parts := strings.Split(stem, "-")
	for i, part := range parts {
		if part != "" && part[0] >= '0' && part[0] <= '9' {
			if i == 0 {
				// Version with no preceding name segment is not a
				// recognizable distribution filename.
				return nil, nil, false
			}
			return parts[:i], parts[i:], true
		}
	}

	// Fallback: no version segment found, first segment is the identity.
	return parts[:1], parts[1:], true
}

// ParseIdentity extracts the canonical package identity from an archive
// filename. Underscores are normalized to hyphens; letter casing is preserved
// so that, e.g., PyYAML and pyyaml remain distinct identities.
func ParseIdentity(filename string) (string, bool) {
	identity, _, ok := SplitIdentity(filename)
	if !ok {
		return "", false
	}
	name := strings.Join(identity, "-")
	name = strings.ReplaceAll(name, "_", "-")
	if name == "" {
		return "", false
	}
	return name, true
}
