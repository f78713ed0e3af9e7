/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package workspace checks out the env and deploy git repositories a
// Deploy Job needs into a scratch directory, and guarantees that
// directory is removed however the caller's use of it ends (spec §4.6).
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/martinmares/release-orchestrator/pkg/database/model"
	apierrors "github.com/martinmares/release-orchestrator/pkg/errors"
	"github.com/martinmares/release-orchestrator/pkg/gitclient"
	"github.com/martinmares/release-orchestrator/pkg/process"
)

// RepoSpec is one repo checkout request.
type RepoSpec struct {
	Repo       *model.GitRepository
	Path       string // subdirectory within the repo the caller cares about, informational only
	Branch     string // overrides Repo.DefaultBranch when set
	Credential string // decrypted credential, resolved by the caller
}

// AcquireSpec describes the two checkouts a deploy job needs.
type AcquireSpec struct {
	EnvironmentSlug string
	EnvRepo         RepoSpec
	DeployRepo      RepoSpec
	Sink            process.Sink
}

// Handle exposes the two checked-out working trees and their
// caller-relevant subpaths. It must be released via Close, typically
// through Manager.Use's guaranteed-cleanup wrapper.
type Handle struct {
	root string

	EnvRepoDir    string
	EnvRepoPath   string
	DeployRepoDir string
	DeployRepoPath string

	mu     sync.Mutex
	closed bool
}

// Close recursively removes the handle's scratch directory. Safe to
// call more than once; only the first call does work.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return os.RemoveAll(h.root)
}

// Manager acquires workspace handles under baseDir using git to clone
// the configured repos.
type Manager struct {
	git     *gitclient.Client
	baseDir string
}

// NewManager constructs a Manager. baseDir is the parent directory new
// scratch workspaces are created under (e.g. os.TempDir()).
func NewManager(git *gitclient.Client, baseDir string) *Manager {
	return &Manager{git: git, baseDir: baseDir}
}

// Acquire clones both repos into a fresh scratch directory and returns
// a handle to them. On any clone failure the partially-created scratch
// directory is removed before the error is returned, so a failed
// Acquire never leaks a directory.
func (m *Manager) Acquire(ctx context.Context, spec AcquireSpec) (*Handle, error) {
	root, err := os.MkdirTemp(m.baseDir, fmt.Sprintf("ro-workspace-%s-", spec.EnvironmentSlug))
	if err != nil {
		return nil, apierrors.Internal(err, "workspace: failed to create scratch directory")
	}

	h := &Handle{
		root:           root,
		EnvRepoDir:     filepath.Join(root, "env"),
		EnvRepoPath:    spec.EnvRepo.Path,
		DeployRepoDir:  filepath.Join(root, "deploy"),
		DeployRepoPath: spec.DeployRepo.Path,
	}

	if err := m.cloneInto(ctx, spec.EnvRepo, h.EnvRepoDir, spec.Sink); err != nil {
		_ = os.RemoveAll(root)
		return nil, err
	}
	if err := m.cloneInto(ctx, spec.DeployRepo, h.DeployRepoDir, spec.Sink); err != nil {
		_ = os.RemoveAll(root)
		return nil, err
	}

	return h, nil
}

func (m *Manager) cloneInto(ctx context.Context, rs RepoSpec, dir string, sink process.Sink) error {
	if rs.Repo == nil {
		return apierrors.Validation("workspace: repo spec has no git repository configured")
	}
	branch := rs.Branch
	if branch == "" {
		branch = rs.Repo.DefaultBranch
	}
	return m.git.Clone(ctx, gitclient.CloneSpec{
		URL:        rs.Repo.URL,
		Branch:     branch,
		Dir:        dir,
		AuthKind:   rs.Repo.AuthKind,
		Credential: rs.Credential,
		Sink:       sink,
	})
}

// Use acquires a handle, runs fn against it, and guarantees the handle
// is closed before Use returns — whether fn returns normally, returns
// an error, or panics. A deferred Close executes during panic unwind
// just as it does on a normal return, which is what gives 4.6's
// "removal on normal drop, on panic, and on cancellation" guarantee:
// cancellation surfaces as fn returning early because its ctx is done,
// which still runs the same deferred Close.
func (m *Manager) Use(ctx context.Context, spec AcquireSpec, fn func(*Handle) error) error {
	h, err := m.Acquire(ctx, spec)
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(h)
}
