package index

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
)

// renderPackagePage renders <out>/<package>/index.html: one hash-qualified
// link per published archive.
func renderPackagePage(group Group, outDir string, logger *slog.Logger) error {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n    <meta charset=\"utf-8\">\n    <title>Links for ")
	buf.WriteString(group.Name)
	buf.WriteString("</title>\n</head>\n<body>\n    <h1>Links for ")
	buf.WriteString(group.Name)
	buf.WriteString("</h1>\n")

	for _, entry := range group.Entries {
		buf.WriteString(fmt.Sprintf("    <a href=\"%s#sha256=%s\">%s</a><br/>\n",
			entry.Filename, entry.SHA256, entry.Filename))
	}

	buf.WriteString("</body>\n</html>\n")

	path := filepath.Join(outDir, group.Name, "index.html")
	if err := writeFileIfChanged(path, buf.Bytes(), logger); err != nil {
		return fmt.Errorf("failed to write package index for %s: %w", group.Name, err)
	}

	logger.Debug("rendered package index",
		"package", group.Name,
		"aliased", group.Aliased,
		"archives", len(group.Entries))
	return nil
}

// renderRootIndex renders <out>/index.html listing every published package
// name. names must already be sorted.
func renderRootIndex(names []string, outDir string, logger *slog.Logger) error {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n    <meta charset=\"utf-8\">\n    <title>Platform Wheels Index</title>\n</head>\n<body>\n    <h1>Platform Wheels Index</h1>\n    <p>Simple PyPI-like index for platform-specific Python wheels.</p>\n")

	for _, name := range names {
		buf.WriteString(fmt.Sprintf("    <a href=\"%s/\">%s</a><br/>\n", name, name))
	}

	buf.WriteString("</body>\n</html>\n")

	path := filepath.Join(outDir, "index.html")
	if err := writeFileIfChanged(path, buf.Bytes(), logger); err != nil {
		return fmt.Errorf("failed to write root index: %w", err)
	}

	logger.Info("rendered root index", "path", path, "packages", len(names))
	return nil
}
