package gitinfo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
	"github.com/loicbachelot/cross-section-digitizer/internal/core/manifest"
)

// GitVersionResolver implements the VersionResolver interface with go-git,
// so no git binary is needed on the machine running the CLI.
type GitVersionResolver struct{}

// NewGitVersionResolver creates a new resolver
func NewGitVersionResolver() *GitVersionResolver {
	return &GitVersionResolver{}
}

func openRepository(dir string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("no git repository found at or above %s", dir)
		}
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}
	return repo, nil
}

// HeadTag returns the tag pointing at HEAD, empty when HEAD is untagged
func (r *GitVersionResolver) HeadTag(dir string) (string, error) {
	repo, err := openRepository(dir)
	if err != nil {
		return "", err
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	tags, err := repo.Tags()
	if err != nil {
		return "", fmt.Errorf("failed to list tags: %w", err)
	}

	var candidates []string
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		// Annotated tags point at a tag object, peel it to the commit.
		if obj, tagErr := repo.TagObject(ref.Hash()); tagErr == nil {
			target = obj.Target
		}
		if target == head.Hash() {
			candidates = append(candidates, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk tags: %w", err)
	}

	return pickTag(candidates), nil
}

// pickTag prefers version-shaped tags, newest first, so a release tag
// wins over an alias like "latest" sitting on the same commit.
func pickTag(tags []string) string {
	var best string
	var bestVersion manifest.Version
	var haveVersion bool

	for _, tag := range tags {
		version, err := manifest.ParseVersion(strings.TrimPrefix(tag, "v"))
		if err != nil {
			if best == "" {
				best = tag
			}
			continue
		}
		if !haveVersion || version.Compare(bestVersion) > 0 {
			best = tag
			bestVersion = version
			haveVersion = true
		}
	}
	return best
}

// OriginRepository derives the owner/name repo from the origin remote
func (r *GitVersionResolver) OriginRepository(dir string) (ports.Repo, error) {
	repo, err := openRepository(dir)
	if err != nil {
		return ports.Repo{}, err
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return ports.Repo{}, fmt.Errorf("no origin remote configured: %w", err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ports.Repo{}, fmt.Errorf("origin remote has no URL")
	}

	return parseRemoteURL(urls[0])
}

// parseRemoteURL extracts owner/name from https, ssh and scp-like remotes
func parseRemoteURL(raw string) (ports.Repo, error) {
	s := raw
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.Index(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ".git")
	s = strings.TrimSuffix(s, "/")
	s = strings.ReplaceAll(s, ":", "/")

	parts := strings.Split(s, "/")
	if len(parts) < 3 {
		return ports.Repo{}, fmt.Errorf("cannot derive owner/name from remote %q", raw)
	}
	return ports.ParseRepo(parts[len(parts)-2] + "/" + parts[len(parts)-1])
}
