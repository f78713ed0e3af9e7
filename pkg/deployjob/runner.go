/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package deployjob implements the Deploy Job Runner from spec §4.7: an
// ordered toolchain invocation (build -> encrypt -> apply-env ->
// validate) inside a freshly cloned workspace, followed by a diff,
// commit, and push. Its state machine mirrors pkg/copyjob's (4.7:
// "state machine identical to 4.5").
package deployjob

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/martinmares/release-orchestrator/pkg/cryptoutil"
	"github.com/martinmares/release-orchestrator/pkg/database"
	"github.com/martinmares/release-orchestrator/pkg/database/model"
	apierrors "github.com/martinmares/release-orchestrator/pkg/errors"
	"github.com/martinmares/release-orchestrator/pkg/gitclient"
	"github.com/martinmares/release-orchestrator/pkg/logbus"
	"github.com/martinmares/release-orchestrator/pkg/process"
	"github.com/martinmares/release-orchestrator/pkg/release"
	"github.com/martinmares/release-orchestrator/pkg/workspace"
)

// CanonicalReleaseEnvVar is the release env variable the build step
// receives whenever the job is bound to a release, in addition to any
// mapped keys from the environment's ReleaseEnvVarMappings (4.7 step 1).
// The encrypt, apply-env and validate steps run without this overlay.
const CanonicalReleaseEnvVar = "RELEASE_ID"

// DefaultStepTimeout bounds a single toolchain subprocess invocation.
const DefaultStepTimeout = 30 * time.Minute

// DefaultTotalTimeout bounds the whole workspace lifetime of one deploy
// job (5: "deploy jobs have a total-budget timeout applied as a guard
// on the whole workspace lifetime").
const DefaultTotalTimeout = 2 * time.Hour

// ManifestReader is the narrow slice of the Release Assembler (4.8)
// the Runner needs: the release row's derived manifest, and the
// deployed-transition it triggers on a successful push. *release.
// Assembler satisfies this directly.
type ManifestReader interface {
	BuildManifest(ctx context.Context, r *model.Release) (*release.Manifest, error)
	MarkDeployed(ctx context.Context, id uuid.UUID) error
}

// Deps collects every collaborator the Runner drives.
type Deps struct {
	Jobs         *database.DeployJobFacade
	Diffs        *database.DeployJobDiffFacade
	Images       *database.DeployJobImageFacade
	Environments *database.EnvironmentFacade
	GitRepos     *database.GitRepositoryFacade
	Releases     *database.ReleaseFacade
	Manifests    ManifestReader

	Crypto    *cryptoutil.Box
	Bus       *logbus.Bus
	Workspace *workspace.Manager
	Git       *gitclient.Client
	Runner    *process.Runner

	KubeBuildAppPath string
	EncjsonPath      string
	ApplyEnvPath     string
	KubeconformPath  string

	StepTimeout  time.Duration
	TotalTimeout time.Duration
}

func (d Deps) stepTimeout() time.Duration {
	if d.StepTimeout <= 0 {
		return DefaultStepTimeout
	}
	return d.StepTimeout
}

func (d Deps) totalTimeout() time.Duration {
	if d.TotalTimeout <= 0 {
		return DefaultTotalTimeout
	}
	return d.TotalTimeout
}

// Runner drives DeployJob rows through their state machine.
type Runner struct {
	deps Deps

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
}

// NewRunner constructs a Runner.
func NewRunner(deps Deps) *Runner {
	return &Runner{deps: deps, active: make(map[uuid.UUID]context.CancelFunc)}
}

// CreateRequest describes a new pending DeployJob.
type CreateRequest struct {
	TenantID      uuid.UUID
	EnvironmentID uuid.UUID
	ReleaseID     *uuid.UUID
	DryRun        bool
	TriggeredBy   string
	Notes         string
}

// Create persists a pending DeployJob. Per SPEC_FULL §12's
// idempotent-resubmission supplement, a DeployJob bound to a Release
// may only be created once that Release has left draft: submitting
// against a still-draft release is rejected with PreconditionFailed,
// mirroring the teacher's Rollback-style illegal-transition guard.
func (r *Runner) Create(ctx context.Context, req CreateRequest) (*model.DeployJob, error) {
	if req.ReleaseID != nil {
		rel, err := r.deps.Releases.GetByID(ctx, *req.ReleaseID)
		if err != nil {
			return nil, err
		}
		if rel.Status == model.ReleaseStatusDraft {
			return nil, apierrors.PreconditionFailed("deployjob: release %s is still draft, not released/deployed", rel.ID)
		}
	}

	job := &model.DeployJob{
		TenantID:      req.TenantID,
		EnvironmentID: req.EnvironmentID,
		ReleaseID:     req.ReleaseID,
		DryRun:        req.DryRun,
		TriggeredBy:   req.TriggeredBy,
		Notes:         req.Notes,
		Status:        model.DeployJobStatusPending,
	}
	if err := r.deps.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Cancel requests cancellation of jobID (cooperative, idempotent, per
// §5). A pending job has no subprocess to signal; Start checks the
// flag before ever spawning one.
func (r *Runner) Cancel(ctx context.Context, jobID uuid.UUID) error {
	if err := r.deps.Jobs.RequestCancel(ctx, jobID); err != nil {
		return err
	}
	r.mu.Lock()
	cancel, ok := r.active[jobID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// Start runs jobID's toolchain end to end: workspace acquisition,
// build -> encrypt -> apply-env -> validate, diff, and (unless
// dry_run) commit + push. The workspace is dropped unconditionally on
// every exit path (4.6, 4.7: "cancellation mid-step... the workspace is
// dropped unconditionally").
func (r *Runner) Start(ctx context.Context, jobID uuid.UUID) error {
	if err := r.deps.Jobs.StartTransition(ctx, jobID); err != nil {
		return err
	}

	job, err := r.deps.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return r.failJob(ctx, jobID, fmt.Sprintf("failed to load job after start: %v", err))
	}
	if job.CancelRequested {
		_ = r.deps.Bus.Append(ctx, jobID, "job cancelled before start")
		return r.finish(ctx, job, model.DeployJobStatusCancelled)
	}

	runCtx, cancel := context.WithTimeout(context.Background(), r.deps.totalTimeout())
	defer cancel()
	r.mu.Lock()
	r.active[jobID] = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.active, jobID)
		r.mu.Unlock()
	}()

	env, err := r.deps.Environments.GetByID(runCtx, job.EnvironmentID)
	if err != nil {
		return r.failJob(runCtx, jobID, fmt.Sprintf("failed to load environment: %v", err))
	}

	var rel *model.Release
	var manifest *release.Manifest
	if job.ReleaseID != nil {
		rel, err = r.deps.Releases.GetByID(runCtx, *job.ReleaseID)
		if err != nil {
			return r.failJob(runCtx, jobID, fmt.Sprintf("failed to load release: %v", err))
		}
		manifest, err = r.deps.Manifests.BuildManifest(runCtx, rel)
		if err != nil {
			return r.failJob(runCtx, jobID, fmt.Sprintf("failed to build release manifest: %v", err))
		}
	}

	envRepo, err := r.deps.GitRepos.GetByID(runCtx, env.EnvGitRepositoryID)
	if err != nil {
		return r.failJob(runCtx, jobID, fmt.Sprintf("failed to load env repository: %v", err))
	}
	deployRepo, err := r.deps.GitRepos.GetByID(runCtx, env.DeployGitRepositoryID)
	if err != nil {
		return r.failJob(runCtx, jobID, fmt.Sprintf("failed to load deploy repository: %v", err))
	}

	envCred, err := r.decryptRepoCredential(envRepo)
	if err != nil {
		return r.failJob(runCtx, jobID, fmt.Sprintf("failed to decrypt env repo credential: %v", err))
	}
	deployCred, err := r.decryptRepoCredential(deployRepo)
	if err != nil {
		return r.failJob(runCtx, jobID, fmt.Sprintf("failed to decrypt deploy repo credential: %v", err))
	}

	sink := func(l process.Line) {
		if appendErr := r.deps.Bus.Append(context.Background(), jobID, l.Text); appendErr != nil {
			klog.Warningf("deployjob: log append failed for job %s: %v", jobID, appendErr)
		}
	}

	spec := workspace.AcquireSpec{
		EnvironmentSlug: env.Slug,
		EnvRepo:         workspace.RepoSpec{Repo: envRepo, Path: env.EnvRepoPath, Branch: env.EnvRepoBranch, Credential: envCred},
		DeployRepo:      workspace.RepoSpec{Repo: deployRepo, Path: env.DeployRepoPath, Branch: env.DeployRepoBranch, Credential: deployCred},
		Sink:            sink,
	}

	var finalStatus model.DeployJobStatus
	useErr := r.deps.Workspace.Use(runCtx, spec, func(h *workspace.Handle) error {
		finalStatus = r.runToolchain(runCtx, job, env, rel, manifest, h, sink)
		return nil
	})
	if useErr != nil {
		return r.failJob(runCtx, jobID, fmt.Sprintf("failed to acquire workspace: %v", useErr))
	}

	return r.finish(ctx, job, finalStatus)
}

// runToolchain executes the four ordered steps and, on their success,
// the diff/commit/push sequence. It always returns a terminal status;
// it never returns an error because every failure is already recorded
// as a Log Bus line and reflected in the returned status.
func (r *Runner) runToolchain(ctx context.Context, job *model.DeployJob, env *model.Environment, rel *model.Release, manifest *release.Manifest, h *workspace.Handle, sink process.Sink) model.DeployJobStatus {
	appendLog := func(line string) {
		if err := r.deps.Bus.Append(context.Background(), job.ID, line); err != nil {
			klog.Warningf("deployjob: log append failed for job %s: %v", job.ID, err)
		}
	}

	if ctx.Err() != nil {
		appendLog("job cancelled before toolchain start")
		return model.DeployJobStatusCancelled
	}

	releaseEnv := r.releaseEnvOverlay(env, rel, manifest)

	steps := []struct {
		name string
		run  func() process.Outcome
	}{
		{"build", func() process.Outcome {
			env := mergeMaps(releaseEnv, env.ExtraEnvVars)
			return r.deps.Runner.Run(ctx, process.Spec{
				Program: r.deps.KubeBuildAppPath,
				WorkDir: h.DeployRepoDir,
				Env:     env,
				Timeout: r.deps.stepTimeout(),
				Sink:    sink,
			})
		}},
		{"encrypt", func() process.Outcome {
			if env.EncjsonKeyDir == "" {
				appendLog("encrypt: no encjson_key_dir configured, skipping")
				return process.Outcome{Kind: process.OutcomeExited, ExitCode: 0}
			}
			entries, readErr := os.ReadDir(env.EncjsonKeyDir)
			if readErr != nil || len(entries) == 0 {
				appendLog("encrypt: encjson_key_dir is empty, skipping")
				return process.Outcome{Kind: process.OutcomeExited, ExitCode: 0}
			}
			return r.deps.Runner.Run(ctx, process.Spec{
				Program: r.deps.EncjsonPath,
				Args:    []string{"--key-dir", env.EncjsonKeyDir},
				WorkDir: h.DeployRepoDir,
				Timeout: r.deps.stepTimeout(),
				Sink:    sink,
			})
		}},
		{"apply-env", func() process.Outcome {
			return r.deps.Runner.Run(ctx, process.Spec{
				Program: r.deps.ApplyEnvPath,
				Args:    []string{"--env", env.Slug},
				WorkDir: h.DeployRepoDir,
				Timeout: r.deps.stepTimeout(),
				Sink:    sink,
			})
		}},
		{"validate", func() process.Outcome {
			return r.deps.Runner.Run(ctx, process.Spec{
				Program: r.deps.KubeconformPath,
				Args:    []string{"-summary", "."},
				WorkDir: h.DeployRepoDir,
				Timeout: r.deps.stepTimeout(),
				Sink:    sink,
			})
		}},
	}

	for _, step := range steps {
		if ctx.Err() != nil {
			appendLog(fmt.Sprintf("job cancelled before step %q", step.name))
			return model.DeployJobStatusCancelled
		}
		outcome := step.run()
		if outcome.Kind == process.OutcomeCancelled {
			appendLog(fmt.Sprintf("step %q cancelled", step.name))
			return model.DeployJobStatusCancelled
		}
		if outcome.Kind != process.OutcomeExited || outcome.ExitCode != 0 {
			appendLog(fmt.Sprintf("step %q failed: %s", step.name, diagnosticFor(outcome)))
			return model.DeployJobStatusFailed
		}
		appendLog(fmt.Sprintf("step %q succeeded", step.name))
	}

	if err := r.persistDiffAndImages(ctx, job, h, manifest); err != nil {
		appendLog(fmt.Sprintf("failed to persist diff/images: %v", err))
		return model.DeployJobStatusFailed
	}

	if job.DryRun {
		appendLog("dry run requested, stopping before commit/push")
		return model.DeployJobStatusSuccess
	}

	message := fmt.Sprintf("Release %s to %s", manifestReleaseID(manifest), env.Slug)
	if err := r.deps.Git.CommitAll(ctx, h.DeployRepoDir, message); err != nil {
		appendLog(fmt.Sprintf("commit failed: %v", err))
		return model.DeployJobStatusFailed
	}
	if err := r.deps.Git.Push(ctx, h.DeployRepoDir, env.DeployRepoBranch, sink); err != nil {
		appendLog(fmt.Sprintf("push failed: %v", err))
		return model.DeployJobStatusFailed
	}

	if rel != nil {
		if err := r.deps.Manifests.MarkDeployed(ctx, rel.ID); err != nil {
			klog.Warningf("deployjob: failed to mark release %s deployed: %v", rel.ID, err)
		}
	}
	return model.DeployJobStatusSuccess
}

func manifestReleaseID(m *release.Manifest) string {
	if m == nil || m.ReleaseID == "" {
		return "unreleased"
	}
	return m.ReleaseID
}

// persistDiffAndImages computes the unified diff between the
// deploy-repo working tree and its branch tip (HEAD at clone time,
// before the toolchain modified anything) and the resolved image list
// from the release manifest (4.7: persisted "after step 4 succeeds").
func (r *Runner) persistDiffAndImages(ctx context.Context, job *model.DeployJob, h *workspace.Handle, manifest *release.Manifest) error {
	patch, files, err := r.deps.Git.Diff(ctx, h.DeployRepoDir, "HEAD")
	if err != nil {
		return err
	}
	diff := &model.DeployJobDiff{
		DeployJobID: job.ID,
		Files:       model.StringSlice(files),
		Patch:       patch,
	}
	if err := r.deps.Diffs.Create(ctx, diff); err != nil {
		return err
	}

	if manifest == nil || len(manifest.Images) == 0 {
		return nil
	}
	images := make([]*model.DeployJobImage, 0, len(manifest.Images))
	for _, img := range manifest.Images {
		images = append(images, &model.DeployJobImage{
			DeployJobID: job.ID,
			ImagePath:   img.Path,
			Tag:         img.Tag,
			Digest:      img.Digest,
		})
	}
	return r.deps.Images.CreateBatch(ctx, images)
}

// releaseEnvOverlay builds the env map the build step receives: the
// canonical key, every mapped key from the environment's
// ReleaseEnvVarMappings, and one IMAGE_DIGEST_* variable per manifest
// image (4.7 step 1: "image path -> digest substitutions").
func (r *Runner) releaseEnvOverlay(env *model.Environment, rel *model.Release, manifest *release.Manifest) map[string]string {
	overlay := make(map[string]string)
	if rel == nil || manifest == nil {
		return overlay
	}
	overlay[CanonicalReleaseEnvVar] = rel.ReleaseID
	for _, mappedKey := range env.ReleaseEnvVarMappings {
		if mappedKey != "" {
			overlay[mappedKey] = rel.ReleaseID
		}
	}
	for _, img := range manifest.Images {
		overlay[digestEnvKey(img.Path)] = img.Digest
	}
	return overlay
}

func digestEnvKey(imagePath string) string {
	replacer := strings.NewReplacer("/", "_", "-", "_", ".", "_")
	return "IMAGE_DIGEST_" + strings.ToUpper(replacer.Replace(imagePath))
}

func mergeMaps(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func (r *Runner) decryptRepoCredential(repo *model.GitRepository) (string, error) {
	if repo.AuthKind == model.GitAuthKindNone || repo.EncryptedCredential == "" {
		return "", nil
	}
	return r.deps.Crypto.Decrypt(repo.EncryptedCredential)
}

// finish performs the terminal transition and emits the Log Bus end
// marker exactly once, mirroring pkg/copyjob.Runner.finish.
func (r *Runner) finish(ctx context.Context, job *model.DeployJob, status model.DeployJobStatus) error {
	if status == "" {
		status = model.DeployJobStatusFailed
	}
	if err := r.deps.Jobs.CompleteTransition(ctx, job.ID, status); err != nil {
		klog.Errorf("deployjob: terminal transition to %s failed for job %s: %v", status, job.ID, err)
	}
	r.deps.Bus.MarkTerminal(job.ID)
	if status == model.DeployJobStatusFailed {
		return apierrors.Internal(nil, "deploy job %s completed with status failed", job.ID)
	}
	return nil
}

func (r *Runner) failJob(ctx context.Context, jobID uuid.UUID, diagnostic string) error {
	_ = r.deps.Bus.Append(ctx, jobID, "job failed: "+diagnostic)
	if err := r.deps.Jobs.CompleteTransition(ctx, jobID, model.DeployJobStatusFailed); err != nil {
		klog.Errorf("deployjob: failed to force-fail job %s: %v", jobID, err)
	}
	r.deps.Bus.MarkTerminal(jobID)
	return apierrors.Internal(nil, diagnostic)
}

// diagnosticFor renders a subprocess outcome as a one-line diagnostic,
// matching pkg/copyjob's helper.
func diagnosticFor(outcome process.Outcome) string {
	switch outcome.Kind {
	case process.OutcomeExited:
		return fmt.Sprintf("exited with code %d", outcome.ExitCode)
	case process.OutcomeSignalled:
		return "process was signalled"
	case process.OutcomeTimedOut:
		return "timed out"
	case process.OutcomeCancelled:
		return "cancelled"
	case process.OutcomeSpawnFailed:
		return fmt.Sprintf("spawn failed: %s", outcome.SpawnError)
	default:
		return fmt.Sprintf("unknown outcome %q", outcome.Kind)
	}
}
