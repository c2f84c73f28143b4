package gitinfo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
)

func testSignature() *object.Signature {
	return &object.Signature{
		Name:  "Test Author",
		Email: "author@example.com",
		When:  time.Now(),
	}
}

func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return dir, repo
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) plumbing.Hash {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))

	worktree, err := repo.Worktree()
	require.NoError(t, err)
	_, err = worktree.Add(name)
	require.NoError(t, err)

	hash, err := worktree.Commit("add "+name, &git.CommitOptions{Author: testSignature()})
	require.NoError(t, err)
	return hash
}

func TestHeadTag_LightweightTag(t *testing.T) {
	dir, repo := initRepo(t)
	hash := commitFile(t, repo, dir, "metadata.txt", "[general]\n")
	_, err := repo.CreateTag("v1.2.0", hash, nil)
	require.NoError(t, err)

	tag, err := NewGitVersionResolver().HeadTag(dir)
	require.NoError(t, err)
	assert.Equal(t, "v1.2.0", tag)
}

func TestHeadTag_AnnotatedTag(t *testing.T) {
	dir, repo := initRepo(t)
	hash := commitFile(t, repo, dir, "metadata.txt", "[general]\n")
	_, err := repo.CreateTag("v2.0.0", hash, &git.CreateTagOptions{
		Tagger:  testSignature(),
		Message: "release 2.0.0",
	})
	require.NoError(t, err)

	tag, err := NewGitVersionResolver().HeadTag(dir)
	require.NoError(t, err)
	assert.Equal(t, "v2.0.0", tag)
}

func TestHeadTag_Untagged(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "metadata.txt", "[general]\n")

	tag, err := NewGitVersionResolver().HeadTag(dir)
	require.NoError(t, err)
	assert.Empty(t, tag)
}

func TestHeadTag_TagOnOlderCommit(t *testing.T) {
	dir, repo := initRepo(t)
	first := commitFile(t, repo, dir, "metadata.txt", "[general]\n")
	_, err := repo.CreateTag("v1.0.0", first, nil)
	require.NoError(t, err)
	commitFile(t, repo, dir, "README.md", "digitize cross sections\n")

	tag, err := NewGitVersionResolver().HeadTag(dir)
	require.NoError(t, err)
	assert.Empty(t, tag, "a tag behind HEAD is not a release of HEAD")
}

func TestHeadTag_PrefersVersionShapedTag(t *testing.T) {
	dir, repo := initRepo(t)
	hash := commitFile(t, repo, dir, "metadata.txt", "[general]\n")
	for _, name := range []string{"latest", "v1.9.0", "v1.10.0"} {
		_, err := repo.CreateTag(name, hash, nil)
		require.NoError(t, err)
	}

	tag, err := NewGitVersionResolver().HeadTag(dir)
	require.NoError(t, err)
	assert.Equal(t, "v1.10.0", tag, "versions compare numerically, not lexically")
}

func TestHeadTag_DetectsRepositoryFromSubdirectory(t *testing.T) {
	dir, repo := initRepo(t)
	hash := commitFile(t, repo, dir, "metadata.txt", "[general]\n")
	_, err := repo.CreateTag("v1.2.0", hash, nil)
	require.NoError(t, err)

	sub := filepath.Join(dir, "cross_section_digitizer")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	tag, err := NewGitVersionResolver().HeadTag(sub)
	require.NoError(t, err)
	assert.Equal(t, "v1.2.0", tag)
}

func TestHeadTag_NotARepository(t *testing.T) {
	_, err := NewGitVersionResolver().HeadTag(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no git repository")
}

func TestOriginRepository(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "metadata.txt", "[general]\n")
	_, err := repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://github.com/loicbachelot/cross_section_digitizer.git"},
	})
	require.NoError(t, err)

	parsed, err := NewGitVersionResolver().OriginRepository(dir)
	require.NoError(t, err)
	assert.Equal(t, ports.Repo{Owner: "loicbachelot", Name: "cross_section_digitizer"}, parsed)
}

func TestOriginRepository_NoRemote(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "metadata.txt", "[general]\n")

	_, err := NewGitVersionResolver().OriginRepository(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no origin remote")
}

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    ports.Repo
		wantErr bool
	}{
		{
			name: "https with .git suffix",
			url:  "https://github.com/loicbachelot/cross_section_digitizer.git",
			want: ports.Repo{Owner: "loicbachelot", Name: "cross_section_digitizer"},
		},
		{
			name: "https without suffix",
			url:  "https://github.com/loicbachelot/cross_section_digitizer",
			want: ports.Repo{Owner: "loicbachelot", Name: "cross_section_digitizer"},
		},
		{
			name: "scp-like ssh remote",
			url:  "git@github.com:loicbachelot/cross_section_digitizer.git",
			want: ports.Repo{Owner: "loicbachelot", Name: "cross_section_digitizer"},
		},
		{
			name: "ssh scheme with port",
			url:  "ssh://git@github.com:22/loicbachelot/cross_section_digitizer.git",
			want: ports.Repo{Owner: "loicbachelot", Name: "cross_section_digitizer"},
		},
		{
			name:    "bare host",
			url:     "https://github.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRemoteURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
