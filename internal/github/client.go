// Package github publishes indexed wheel archives as GitHub release assets.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/go-github/v57/github"
)

// Sentinel errors for GitHub operations.
var (
	ErrEmptyToken      = errors.New("github token cannot be empty")
	ErrInvalidRepo     = errors.New("repository must be in format 'owner/repo'")
	ErrReleaseNotFound = errors.New("release not found")
	ErrNoAssets        = errors.New("no files to upload")
)

// Client wraps the GitHub API client for wheel release operations.
type Client struct {
	client *github.Client
	owner  string
	repo   string
}

// NewClient creates an authenticated client for the given repository.
// Repository must be in the format "owner/repo"; the token needs contents
// write permission.
func NewClient(token, repository string) (*Client, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	owner, repo, err := parseRepository(repository)
	if err != nil {
		return nil, err
	}

	return &Client{
		client: github.NewClient(nil).WithAuthToken(token),
		owner:  owner,
		repo:   repo,
	}, nil
}

// CreateRelease creates a new release for the given tag.
func (c *Client) CreateRelease(ctx context.Context, tag, name, body string, draft bool) (*github.RepositoryRelease, error) {
	if tag == "" {
		return nil, fmt.Errorf("release tag cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("release name cannot be empty")
	}

	release := &github.RepositoryRelease{
		TagName: github.String(tag),
		Name:    github.String(name),
		Body:    github.String(body),
		Draft:   github.Bool(draft),
	}

	created, _, err := c.client.Repositories.CreateRelease(ctx, c.owner, c.repo, release)
	if err != nil {
		return nil, fmt.Errorf("failed to create release %s: %w", tag, err)
	}
	return created, nil
}

// GetRelease retrieves an existing release by tag name. Returns
// ErrReleaseNotFound if no release carries the tag.
func (c *Client) GetRelease(ctx context.Context, tag string) (*github.RepositoryRelease, error) {
	if tag == "" {
		return nil, fmt.Errorf("release tag cannot be empty")
	}

	release, resp, err := c.client.Repositories.GetReleaseByTag(ctx, c.owner, c.repo, tag)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, ErrReleaseNotFound
		}
		return nil, fmt.Errorf("failed to get release %s: %w", tag, err)
	}
	return release, nil
}

// UploadAsset uploads one file as an asset of the given release.
func (c *Client) UploadAsset(ctx context.Context, releaseID int64, filePath string) (*github.ReleaseAsset, error) {
	if releaseID == 0 {
		return nil, fmt.Errorf("release ID cannot be zero")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file %s: %w", filePath, err)
	}

	opts := &github.UploadOptions{Name: info.Name()}
	asset, _, err := c.client.Repositories.UploadReleaseAsset(ctx, c.owner, c.repo, releaseID, opts, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload asset %s: %w", info.Name(), err)
	}
	return asset, nil
}

// PublishWheels creates the release for tag (or reuses an existing one) and
// uploads every file as an asset. Returns the release HTML URL.
func (c *Client) PublishWheels(ctx context.Context, tag, name, body string, draft bool, files []string, logger *slog.Logger) (string, error) {
	if len(files) == 0 {
		return "", ErrNoAssets
	}

	release, err := c.GetRelease(ctx, tag)
	if errors.Is(err, ErrReleaseNotFound) {
		logger.Info("creating release", "tag", tag, "name", name)
		release, err = c.CreateRelease(ctx, tag, name, body, draft)
	}
	if err != nil {
		return "", err
	}

	for _, file := range files {
		asset, err := c.UploadAsset(ctx, release.GetID(), file)
		if err != nil {
			return "", err
		}
		logger.Info("uploaded release asset",
			"tag", tag,
			"asset", asset.GetName(),
			"url", asset.GetBrowserDownloadURL())
	}

	return release.GetHTMLURL(), nil
}

// parseRepository splits a repository string into owner and repo.
func parseRepository(repository string) (owner, repo string, err error) {
	if repository == "" {
		return "", "", ErrInvalidRepo
	}

	parts := strings.Split(repository, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: got %s", ErrInvalidRepo, repository)
	}

	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("%w: owner or repo is empty", ErrInvalidRepo)
	}

	return owner, repo, nil
}
