package migrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-billy/v6/util"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
)

// GitAuthor is the signature of the commits made by GitDir.
var GitAuthor = object.Signature{Name: "schemasync", Email: "schemasync@localhost"}

// GitDir stores migrations as SQL files in a git repository. Every
// written migration is committed, so the history of the migration
// directory is the history of the schema.
type GitDir struct {
	mu   sync.Mutex
	repo *git.Repository
	dir  string
}

// NewMemGitDir returns a store backed by an in-memory repository.
func NewMemGitDir() (*GitDir, error) {
	repo, err := git.Init(memory.NewStorage(), git.WithWorkTree(memfs.New()))
	if err != nil {
		return nil, fmt.Errorf("migrate: init git repository: %w", err)
	}
	return &GitDir{repo: repo}, nil
}

// OpenGitDir opens the git repository at root, initializing it if needed.
// Migration files are kept under dir, relative to root.
func OpenGitDir(root, dir string) (*GitDir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("migrate: create directory: %w", err)
	}
	wt := osfs.New(root)
	fs, err := wt.Chroot(".git")
	if err != nil {
		return nil, fmt.Errorf("migrate: open git directory: %w", err)
	}
	storer := filesystem.NewStorageWithOptions(fs, cache.NewObjectLRUDefault(), filesystem.Options{ExclusiveAccess: true})
	var repo *git.Repository
	if _, err := os.Stat(fs.Root()); err != nil {
		repo, err = git.Init(storer, git.WithWorkTree(wt))
		if err != nil {
			return nil, fmt.Errorf("migrate: init git repository: %w", err)
		}
	} else if repo, err = git.Open(storer, wt); err != nil {
		return nil, fmt.Errorf("migrate: open git repository: %w", err)
	}
	return &GitDir{repo: repo, dir: strings.Trim(dir, "/")}, nil
}

// Write implements the Store interface. The up and down files of m are
// committed together.
func (d *GitDir) Write(_ context.Context, m *Migration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	wt, err := d.repo.Worktree()
	if err != nil {
		return fmt.Errorf("migrate: git worktree: %w", err)
	}
	up, down := FileNames(m)
	for name, data := range map[string][]byte{
		up:   Encode(m, "up", m.Up),
		down: Encode(m, "down", m.Down),
	} {
		p := path.Join(d.dir, name)
		if err := util.WriteFile(wt.Filesystem, p, data, 0o644); err != nil {
			return fmt.Errorf("migrate: write %s: %w", p, err)
		}
		if _, err := wt.Add(p); err != nil {
			return fmt.Errorf("migrate: git add %s: %w", p, err)
		}
	}
	sig := GitAuthor
	sig.When = time.Now()
	if _, err := wt.Commit("migration "+m.ID(), &git.CommitOptions{Author: &sig}); err != nil {
		return fmt.Errorf("migrate: git commit %s: %w", m.ID(), err)
	}
	return nil
}

// Migrations implements the Store interface. It reads the migrations
// committed at HEAD; uncommitted files are ignored.
func (d *GitDir) Migrations(context.Context) ([]*Migration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	head, err := d.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("migrate: git head: %w", err)
	}
	commit, err := d.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("migrate: git commit %s: %w", head.Hash(), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("migrate: git tree: %w", err)
	}
	dir := d.dir
	if dir == "" {
		dir = "."
	}
	var files []file
	err = tree.Files().ForEach(func(f *object.File) error {
		if path.Dir(f.Name) != dir {
			return nil
		}
		content, err := f.Contents()
		if err != nil {
			return err
		}
		files = append(files, file{name: path.Base(f.Name), data: []byte(content)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("migrate: read git tree: %w", err)
	}
	return assemble(files)
}
