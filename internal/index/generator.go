// Package index builds a static PyPI-style package index from a directory of
// built distribution archives: hash-qualified per-package link pages, copied
// archive files, and a root listing of every published package name.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/platform-wheels/wheelhouse/internal/alias"
)

// SignatureVerifier checks a detached signature against an archive file.
// Implementations live in internal/gpg; the builder only needs the check.
type SignatureVerifier interface {
	VerifyFile(archivePath, signaturePath string) error
}

// CatalogRecorder persists published archives for later inspection. The
// index output never depends on it; recording failures abort the run so the
// catalog cannot silently drift from the published site.
type CatalogRecorder interface {
	RecordWheel(pkg, filename, sha256 string, size int64) error
}

// Generator orchestrates index construction.
type Generator struct {
	aliases  *alias.Resolver
	verifier SignatureVerifier // nil disables signature checking
	catalog  CatalogRecorder   // nil disables catalog recording
	logger   *slog.Logger
}

// NewGenerator creates a Generator. aliases may be nil when no package
// declares an alternate name.
func NewGenerator(aliases *alias.Resolver, logger *slog.Logger) *Generator {
	return &Generator{
		aliases: aliases,
		logger:  logger,
	}
}

// SetVerifier enables detached-signature verification of scanned archives.
func (g *Generator) SetVerifier(verifier SignatureVerifier) {
	g.verifier = verifier
}

// SetCatalog enables recording of published archives.
func (g *Generator) SetCatalog(catalog CatalogRecorder) {
	g.catalog = catalog
}

// Options control a single Generate run.
type Options struct {
	WheelsDir   string // required: directory scanned recursively for archives
	PrebuiltDir string // optional: additional archives merged into the set
	OutputDir   string // required: index output root
	Concurrency int    // per-group fan-out; values below 1 mean sequential
	DryRun      bool   // resolve and log without writing files

	// RequireSignatures skips archives without a detached signature instead
	// of publishing them unverified. Only meaningful with a verifier set.
	RequireSignatures bool
}

// Generate builds the complete index. An empty archive set still produces a
// valid empty root index. Re-running over unchanged input writes nothing.
func (g *Generator) Generate(ctx context.Context, opts Options) (*Site, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if opts.WheelsDir == "" {
		return nil, fmt.Errorf("wheels directory is required")
	}
	if _, err := os.Stat(opts.WheelsDir); err != nil {
		return nil, fmt.Errorf("wheels directory %s does not exist: %w", opts.WheelsDir, err)
	}

	g.logger.Info("starting index generation",
		"wheels_dir", opts.WheelsDir,
		"prebuilt_dir", opts.PrebuiltDir,
		"output_dir", opts.OutputDir,
		"dry_run", opts.DryRun)

	archives, err := ScanArchives(opts.WheelsDir, g.logger)
	if err != nil {
		return nil, err
	}
	prebuilt, err := ScanArchives(opts.PrebuiltDir, g.logger)
	if err != nil {
		return nil, err
	}
	archives = append(archives, prebuilt...)

	archives = g.verifyArchives(archives, opts.RequireSignatures)

	site := BuildModel(archives, g.aliases, g.logger)
	g.logger.Info("built index model", "packages", len(site.Groups), "archives", len(archives))

	if opts.DryRun {
		g.logger.Info("dry-run mode: skipping file writes")
		return site, nil
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := g.processGroups(ctx, site, opts); err != nil {
		return nil, err
	}

	// Groups share no output; the root index is the only shared write and
	// must happen after every per-group write has completed.
	if err := renderRootIndex(site.Names(), opts.OutputDir, g.logger); err != nil {
		return nil, err
	}

	g.logger.Info("index generation completed",
		"packages", len(site.Groups),
		"archives", len(archives))
	return site, nil
}

// verifyArchives filters the archive set through detached-signature
// verification. Archives with an invalid signature are always skipped; ones
// without a signature are skipped only when signatures are required.
func (g *Generator) verifyArchives(archives []Archive, require bool) []Archive {
	if g.verifier == nil {
		return archives
	}

	kept := archives[:0]
	for _, archive := range archives {
		sigPath := archive.Path + ".asc"
		if _, err := os.Stat(sigPath); os.IsNotExist(err) {
			if require {
				g.logger.Warn("archive has no detached signature, skipping",
					"filename", archive.Filename)
				continue
			}
			g.logger.Debug("archive has no detached signature", "filename", archive.Filename)
			kept = append(kept, archive)
			continue
		}

		if err := g.verifier.VerifyFile(archive.Path, sigPath); err != nil {
			g.logger.Warn("signature verification failed, skipping archive",
				"filename", archive.Filename,
				"error", err)
			continue
		}

		g.logger.Debug("signature verified", "filename", archive.Filename)
		kept = append(kept, archive)
	}
	return kept
}

// processGroups hashes, copies and renders every package group. Groups are
// independent, so the work fans out across a bounded set of goroutines and
// joins before the caller writes the root index.
func (g *Generator) processGroups(ctx context.Context, site *Site, opts Options) error {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := range site.Groups {
		wg.Add(1)
		go func(group *Group) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				mu.Lock()
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				mu.Unlock()
				return
			}

			if err := g.processGroup(group, opts.OutputDir); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(&site.Groups[i])
	}

	wg.Wait()
	return firstErr
}

// processGroup hashes and copies one group's archives and renders its link
// page. The group's entries are updated in place with hash and size, which is
// safe because no other goroutine touches this group.
func (g *Generator) processGroup(group *Group, outDir string) error {
	for i := range group.Entries {
		entry := &group.Entries[i]

		digest, size, err := hashFile(entry.Path)
		if err != nil {
			return err
		}
		entry.SHA256 = digest
		entry.Size = size

		dst := filepath.Join(outDir, group.Name, entry.Filename)
		if err := copyFileIfChanged(entry.Path, dst, digest, g.logger); err != nil {
			return err
		}

		if g.catalog != nil {
			if err := g.catalog.RecordWheel(group.Name, entry.Filename, digest, size); err != nil {
				return fmt.Errorf("failed to record %s in catalog: %w", entry.Filename, err)
			}
		}
	}

	return renderPackagePage(*group, outDir, g.logger)
}
