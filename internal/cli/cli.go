// Package cli provides the wheelhouse command-line interface: build-plan
// resolution, static index generation, and release publishing.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/platform-wheels/wheelhouse/internal/alias"
	"github.com/platform-wheels/wheelhouse/internal/depgraph"
	gh "github.com/platform-wheels/wheelhouse/internal/github"
	"github.com/platform-wheels/wheelhouse/internal/gpg"
	"github.com/platform-wheels/wheelhouse/internal/index"
	"github.com/platform-wheels/wheelhouse/internal/recipe"
	"github.com/platform-wheels/wheelhouse/internal/storage"
)

// NewApp creates and configures the main CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:     "wheelhouse",
		Usage:    "Build-plan resolution and static package index generation for platform wheels",
		Version:  "1.0.0",
		Compiled: time.Now(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level for structured JSON output (debug, info, warn, error)",
				EnvVars: []string{"WHEELHOUSE_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "plan",
				Usage: "Resolve the package build order and emit the build plan as JSON",
				Flags: append(configFlags(),
					&cli.StringFlag{
						Name:    "db",
						Usage:   "path to SQLite catalog database; records the resolved plan",
						EnvVars: []string{"WHEELHOUSE_DB"},
					},
				),
				Action: planCommand,
			},
			{
				Name:  "index",
				Usage: "Generate the static package index from built wheel archives",
				Flags: append(configFlags(),
					&cli.StringFlag{
						Name:     "wheels-dir",
						Usage:    "directory of built wheel archives",
						Required: true,
						EnvVars:  []string{"WHEELHOUSE_WHEELS_DIR"},
					},
					&cli.StringFlag{
						Name:    "prebuilt-dir",
						Usage:   "optional directory of prebuilt archives merged into the index",
						EnvVars: []string{"WHEELHOUSE_PREBUILT_DIR"},
					},
					&cli.StringFlag{
						Name:     "out",
						Usage:    "output directory for the generated index",
						Required: true,
						EnvVars:  []string{"WHEELHOUSE_OUT"},
					},
					&cli.StringFlag{
						Name:  "metadata",
						Usage: "build-plan JSON file from a previous plan run; supplies alias declarations",
					},
					&cli.StringFlag{
						Name:    "db",
						Usage:   "path to SQLite catalog database; records published wheels",
						EnvVars: []string{"WHEELHOUSE_DB"},
					},
					&cli.StringSliceFlag{
						Name:  "verify-key",
						Usage: "armored PGP public key file; enables detached-signature verification",
					},
					&cli.BoolFlag{
						Name:  "require-signatures",
						Usage: "skip archives without a detached signature instead of publishing them",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Value: 4,
						Usage: "number of package groups processed concurrently",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "resolve the index without writing files",
					},
				),
				Action: indexCommand,
			},
			{
				Name:  "publish",
				Usage: "Upload indexed wheel archives as GitHub release assets",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "repository",
						Usage:    "GitHub repository in owner/repo form",
						Required: true,
						EnvVars:  []string{"WHEELHOUSE_REPOSITORY"},
					},
					&cli.StringFlag{
						Name:     "tag",
						Usage:    "release tag to create or reuse",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "release title; defaults to the tag",
					},
					&cli.StringFlag{
						Name:  "notes",
						Usage: "release body text",
					},
					&cli.BoolFlag{
						Name:  "draft",
						Usage: "create the release as a draft",
					},
					&cli.StringFlag{
						Name:     "wheels-dir",
						Usage:    "directory of wheel archives to upload",
						Required: true,
						EnvVars:  []string{"WHEELHOUSE_WHEELS_DIR"},
					},
				},
				Action: publishCommand,
			},
		},
	}
}

// configFlags are the package-configuration source flags shared by the plan
// and index commands.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "recipes-dir",
			Value:   "recipes",
			Usage:   "directory of per-package recipe.yaml files",
			EnvVars: []string{"WHEELHOUSE_RECIPES_DIR"},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "packages.yaml",
			Usage:   "path to the central package configuration file",
			EnvVars: []string{"WHEELHOUSE_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "packages-txt",
			Value: "packages.txt",
			Usage: "path to the legacy flat package list",
		},
	}
}

// loadPackages reads the configured package sources.
func loadPackages(c *cli.Context, logger *slog.Logger) ([]recipe.Package, error) {
	return recipe.Load(recipe.LoadOptions{
		RecipesDir: c.String("recipes-dir"),
		ConfigFile: c.String("config"),
		LegacyFile: c.String("packages-txt"),
	}, logger)
}

// aliasPairs extracts declared alias mappings from the package list.
func aliasPairs(packages []recipe.Package) []alias.Pair {
	var pairs []alias.Pair
	for _, pkg := range packages {
		if pkg.Alias == "" {
			continue
		}
		pairs = append(pairs, alias.Pair{Name: pkg.Name, Alias: pkg.Alias})
	}
	return pairs
}

// loadPlanFile reads a build-plan JSON file produced by the plan command.
func loadPlanFile(path string) ([]recipe.PlanEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file %s: %w", path, err)
	}
	var entries []recipe.PlanEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse plan file %s: %w", path, err)
	}
	return entries, nil
}

// planCommand implements the plan command: load the package configuration,
// resolve the build order, and write the plan as JSON to stdout.
func planCommand(c *cli.Context) error {
	logLevel := ParseLogLevelOrDefault(c.String("log-level"))
	stdout, stderr := NewLoggers(logLevel)

	packages, err := loadPackages(c, stdout)
	if err != nil {
		stderr.Error("failed to load package configuration", "error", err)
		return err
	}

	ordered, err := depgraph.Sort(packages, stdout)
	if err != nil {
		var cycleErr *depgraph.CycleError
		if errors.As(err, &cycleErr) {
			stderr.Error("dependency cycle detected", "packages", cycleErr.Remaining)
		}
		return err
	}

	plan := recipe.NewPlan(ordered)
	output, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	if dbPath := c.String("db"); dbPath != "" {
		db, err := storage.InitDB(storage.Config{
			DatabasePath: dbPath,
			LogLevel:     "silent",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				stderr.Warn("failed to close database", "error", closeErr)
			}
		}()

		if err := db.RecordPlan(output, len(plan)); err != nil {
			return fmt.Errorf("failed to record plan: %w", err)
		}
		stdout.Info("recorded build plan", "db", dbPath, "package_count", len(plan))
	}

	fmt.Println(string(output))
	return nil
}

// indexCommand implements the index command.
func indexCommand(c *cli.Context) error {
	logLevel := ParseLogLevelOrDefault(c.String("log-level"))
	stdout, stderr := NewLoggers(logLevel)

	var pairs []alias.Pair
	if metadataPath := c.String("metadata"); metadataPath != "" {
		entries, err := loadPlanFile(metadataPath)
		if err != nil {
			stderr.Error("failed to load build-plan metadata", "error", err)
			return err
		}
		packages := make([]recipe.Package, 0, len(entries))
		for _, entry := range entries {
			packages = append(packages, entry.Package)
		}
		pairs = aliasPairs(packages)
	} else {
		packages, err := loadPackages(c, stdout)
		if err != nil {
			if !errors.Is(err, recipe.ErrNoConfigSource) {
				stderr.Error("failed to load package configuration", "error", err)
				return err
			}
			stdout.Info("no package configuration found, indexing without aliases")
		}
		pairs = aliasPairs(packages)
	}

	resolver := alias.NewResolver(pairs, stdout)
	generator := index.NewGenerator(resolver, stdout)

	if keyPaths := c.StringSlice("verify-key"); len(keyPaths) > 0 {
		verifier := gpg.NewVerifier()
		for _, keyPath := range keyPaths {
			if err := verifier.AddKeyFile(keyPath); err != nil {
				stderr.Error("failed to load verification key", "path", keyPath, "error", err)
				return err
			}
		}
		stdout.Info("signature verification enabled", "key_count", verifier.KeyCount())
		generator.SetVerifier(verifier)
	}

	if dbPath := c.String("db"); dbPath != "" {
		db, err := storage.InitDB(storage.Config{
			DatabasePath: dbPath,
			LogLevel:     "silent",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				stderr.Warn("failed to close database", "error", closeErr)
			}
		}()
		generator.SetCatalog(db)
	}

	opts := index.Options{
		WheelsDir:         c.String("wheels-dir"),
		PrebuiltDir:       c.String("prebuilt-dir"),
		OutputDir:         c.String("out"),
		Concurrency:       c.Int("concurrency"),
		DryRun:            c.Bool("dry-run"),
		RequireSignatures: c.Bool("require-signatures"),
	}

	if _, err := generator.Generate(c.Context, opts); err != nil {
		stderr.Error("index generation failed", "error", err)
		return err
	}
	return nil
}

// publishCommand implements the publish command. GITHUB_TOKEN must be set; in
// GitHub Actions it is provided when the workflow has contents write
// permission.
func publishCommand(c *cli.Context) error {
	logLevel := ParseLogLevelOrDefault(c.String("log-level"))
	stdout, stderr := NewLoggers(logLevel)

	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return fmt.Errorf("GITHUB_TOKEN environment variable is required for publishing")
	}

	client, err := gh.NewClient(token, c.String("repository"))
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	archives, err := index.ScanArchives(c.String("wheels-dir"), stdout)
	if err != nil {
		stderr.Error("failed to scan wheel archives", "error", err)
		return err
	}
	if len(archives) == 0 {
		return fmt.Errorf("no wheel archives found in %s", c.String("wheels-dir"))
	}

	files := make([]string, 0, len(archives))
	for _, archive := range archives {
		files = append(files, archive.Path)
	}

	tag := c.String("tag")
	title := c.String("title")
	if title == "" {
		title = tag
	}

	url, err := client.PublishWheels(c.Context, tag, title, c.String("notes"), c.Bool("draft"), files, stdout)
	if err != nil {
		stderr.Error("publish failed", "tag", tag, "error", err)
		return err
	}

	stdout.Info("release published",
		"tag", tag,
		"url", url,
		"asset_count", len(files))
	return nil
}
