/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package gitclient wraps the git binary via pkg/process, the same
// Process Runner every other subprocess invocation in this module goes
// through, so clone/commit/push calls get the same timeout, streaming,
// and "never log credentials" guarantees as the mover/toolchain
// commands (spec §4.1). Clone retries with backoff, the same pattern
// used by repositories that talk to a remote git host.
package gitclient

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/martinmares/release-orchestrator/pkg/database/model"
	apierrors "github.com/martinmares/release-orchestrator/pkg/errors"
	"github.com/martinmares/release-orchestrator/pkg/process"
)

const (
	cloneRetries = 3
	cloneBackoff = 2 * time.Second

	// commitAuthorName is the fixed committer name used for every commit
	// this module makes, spec §6's "release-management@<host>" identity.
	commitAuthorName = "release-management"
)

// Client runs git subcommands against working trees on disk.
type Client struct {
	runner   *process.Runner
	hostname string
}

// NewClient constructs a Client backed by runner. hostname is baked
// into every commit's author/committer identity as
// release-management@<hostname> (spec §6); it falls back to
// "localhost" if os.Hostname fails.
func NewClient(runner *process.Runner) *Client {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return &Client{runner: runner, hostname: host}
}

// CloneSpec describes one clone operation.
type CloneSpec struct {
	URL        string
	Branch     string
	Dir        string
	AuthKind   model.GitAuthKind
	Credential string // token for AuthKind=token, private key path for AuthKind=ssh
	Sink       process.Sink
	Timeout    time.Duration
}

// Clone checks out Branch of URL into Dir, retrying transient failures
// with backoff (network flakiness talking to the remote host). The
// credential is carried via an authenticated URL or GIT_SSH_COMMAND
// env var, never passed through Sink or logged directly.
func (c *Client) Clone(ctx context.Context, spec CloneSpec) error {
	cloneURL, env, err := c.authFor(spec.URL, spec.AuthKind, spec.Credential)
	if err != nil {
		return err
	}

	var lastOutcome process.Outcome
	delay := cloneBackoff
	for attempt := 1; attempt <= cloneRetries; attempt++ {
		lastOutcome = c.runner.Run(ctx, process.Spec{
			Program: "git",
			Args:    []string{"clone", "--depth", "1", "--branch", spec.Branch, "--single-branch", cloneURL, spec.Dir},
			Env:     env,
			Timeout: spec.Timeout,
			Sink:    spec.Sink,
		})
		if lastOutcome.Kind == process.OutcomeExited && lastOutcome.ExitCode == 0 {
			return nil
		}
		if lastOutcome.Kind == process.OutcomeCancelled || lastOutcome.Kind == process.OutcomeTimedOut {
			break // caller's cancellation/timeout, do not retry past it
		}
		if attempt < cloneRetries {
			klog.Warningf("gitclient: clone attempt %d/%d failed for %s, retrying in %s", attempt, cloneRetries, spec.Dir, delay)
			time.Sleep(delay)
			delay *= 2
		}
	}
	return apierrors.SubprocessFailed(lastOutcome.ExitCode, nil, "gitclient: clone of branch %q into %s failed after %d attempts", spec.Branch, spec.Dir, cloneRetries)
}

// HasChanges reports whether dir's working tree has uncommitted
// changes, via `git status --porcelain`.
func (c *Client) HasChanges(ctx context.Context, dir string) (bool, error) {
	var lines []string
	outcome := c.runner.Run(ctx, process.Spec{
		Program: "git",
		Args:    []string{"status", "--porcelain"},
		WorkDir: dir,
		Sink:    func(l process.Line) { lines = append(lines, l.Text) },
	})
	if outcome.Kind != process.OutcomeExited || outcome.ExitCode != 0 {
		return false, apierrors.SubprocessFailed(outcome.ExitCode, lines, "gitclient: git status failed in %s", dir)
	}
	return len(lines) > 0, nil
}

// CommitAll stages every change in dir and commits with message, under
// the release-management@<host> author/committer identity (spec §6).
// The identity is passed via -c flags rather than relying on the
// workspace's ambient git config, which a freshly cloned directory
// never has.
func (c *Client) CommitAll(ctx context.Context, dir, message string) error {
	var lines []string
	sink := func(l process.Line) { lines = append(lines, l.Text) }

	if outcome := c.runner.Run(ctx, process.Spec{Program: "git", Args: []string{"add", "-A"}, WorkDir: dir, Sink: sink}); outcome.Kind != process.OutcomeExited || outcome.ExitCode != 0 {
		return apierrors.SubprocessFailed(outcome.ExitCode, lines, "gitclient: git add failed in %s", dir)
	}

	authorEmail := commitAuthorName + "@" + c.hostname
	args := []string{
		"-c", "user.name=" + commitAuthorName,
		"-c", "user.email=" + authorEmail,
		"commit", "-m", message,
	}
	if outcome := c.runner.Run(ctx, process.Spec{Program: "git", Args: args, WorkDir: dir, Sink: sink}); outcome.Kind != process.OutcomeExited || outcome.ExitCode != 0 {
		return apierrors.SubprocessFailed(outcome.ExitCode, lines, "gitclient: git commit failed in %s", dir)
	}
	return nil
}

// Push pushes dir's current HEAD to branch on origin. Non-fast-forward
// and auth rejections surface as SubprocessFailed, which callers map
// directly to a deploy job failure (4.7: "push failure sets status
// failed").
func (c *Client) Push(ctx context.Context, dir, branch string, sink process.Sink) error {
	outcome := c.runner.Run(ctx, process.Spec{
		Program: "git",
		Args:    []string{"push", "origin", "HEAD:" + branch},
		WorkDir: dir,
		Sink:    sink,
	})
	if outcome.Kind != process.OutcomeExited || outcome.ExitCode != 0 {
		return apierrors.SubprocessFailed(outcome.ExitCode, nil, "gitclient: push to %s failed in %s", branch, dir)
	}
	return nil
}

// Diff returns the unified diff between dir's working tree and ref
// (typically the branch tip before this job's changes), plus the list
// of changed files.
func (c *Client) Diff(ctx context.Context, dir, ref string) (patch string, files []string, err error) {
	var patchLines []string
	outcome := c.runner.Run(ctx, process.Spec{
		Program: "git",
		Args:    []string{"diff", ref},
		WorkDir: dir,
		Sink:    func(l process.Line) { patchLines = append(patchLines, l.Text) },
	})
	if outcome.Kind != process.OutcomeExited || outcome.ExitCode != 0 {
		return "", nil, apierrors.SubprocessFailed(outcome.ExitCode, patchLines, "gitclient: git diff failed in %s", dir)
	}

	var fileLines []string
	nameOutcome := c.runner.Run(ctx, process.Spec{
		Program: "git",
		Args:    []string{"diff", "--name-only", ref},
		WorkDir: dir,
		Sink:    func(l process.Line) { fileLines = append(fileLines, l.Text) },
	})
	if nameOutcome.Kind != process.OutcomeExited || nameOutcome.ExitCode != 0 {
		return "", nil, apierrors.SubprocessFailed(nameOutcome.ExitCode, fileLines, "gitclient: git diff --name-only failed in %s", dir)
	}

	return strings.Join(patchLines, "\n"), fileLines, nil
}

// authFor builds the clone URL and env overlay for the repo's auth
// kind. Token credentials are embedded as URL userinfo; ssh credentials
// go through GIT_SSH_COMMAND. Neither is ever written to a log line.
func (c *Client) authFor(rawURL string, kind model.GitAuthKind, credential string) (string, map[string]string, error) {
	switch kind {
	case model.GitAuthKindNone, "":
		return rawURL, nil, nil
	case model.GitAuthKindToken:
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", nil, apierrors.Validation("gitclient: invalid repo url: %v", err)
		}
		u.User = url.UserPassword("x-access-token", credential)
		return u.String(), nil, nil
	case model.GitAuthKindSSH:
		env := map[string]string{
			"GIT_SSH_COMMAND": fmt.Sprintf("ssh -i %s -o StrictHostKeyChecking=no -o IdentitiesOnly=yes", credential),
		}
		return rawURL, env, nil
	default:
		return "", nil, apierrors.Validation("gitclient: unknown auth kind %q", kind)
	}
}
