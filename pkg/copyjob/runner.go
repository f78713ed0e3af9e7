/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package copyjob implements the Copy Job Runner state machine and
// execution fan-out from spec §4.5: pending -> in_progress ->
// {success, failed, cancelled}, with bounded-parallel per-image copies
// through pkg/mover, retried with fixed delay, streamed into the Log
// Bus, and coordinated with the process-wide Concurrency Supervisor.
package copyjob

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/martinmares/release-orchestrator/pkg/cryptoutil"
	"github.com/martinmares/release-orchestrator/pkg/database"
	"github.com/martinmares/release-orchestrator/pkg/database/model"
	apierrors "github.com/martinmares/release-orchestrator/pkg/errors"
	"github.com/martinmares/release-orchestrator/pkg/imageplan"
	"github.com/martinmares/release-orchestrator/pkg/logbus"
	"github.com/martinmares/release-orchestrator/pkg/mover"
	"github.com/martinmares/release-orchestrator/pkg/supervisor"
)

// DefaultParallelism is P's default (4.5: "bounded parallelism P
// (default 3, configurable)").
const DefaultParallelism = 3

// ReleaseAssembler is the narrow slice of 4.8's contract a release-copy
// variant needs after its source job succeeds.
type ReleaseAssembler interface {
	CreateRelease(ctx context.Context, copyJobID uuid.UUID, releaseID, notes string) (*model.Release, error)
}

// Deps collects every collaborator the Runner drives.
type Deps struct {
	Jobs           *database.CopyJobFacade
	Images         *database.CopyJobImageFacade
	BundleVersions *database.BundleVersionFacade
	Registries     *database.RegistryFacade
	Environments   *database.EnvironmentFacade
	Bus            *logbus.Bus
	Mover          *mover.Mover
	Crypto         *cryptoutil.Box
	Supervisor     *supervisor.Supervisor
	Releases       ReleaseAssembler // nil disables the release-copy success hook

	Parallelism int
	MaxRetries  int
	RetryDelay  time.Duration
}

func (d Deps) parallelism() int {
	if d.Parallelism <= 0 {
		return DefaultParallelism
	}
	return d.Parallelism
}

// Runner drives CopyJob rows through their state machine.
type Runner struct {
	deps Deps
}

// NewRunner constructs a Runner.
func NewRunner(deps Deps) *Runner {
	return &Runner{deps: deps}
}

// CreateRequest is everything needed to persist a new pending CopyJob
// and its per-image rows. Plan is the already-built output of 4.4's
// Image Plan Builder; Runner does not resolve registries or tags
// itself, it only executes the plan it is handed.
type CreateRequest struct {
	TenantID         uuid.UUID
	BundleVersionID  uuid.UUID
	EnvironmentID    uuid.UUID
	SourceRegistryID uuid.UUID
	TargetRegistryID uuid.UUID
	TargetTag        string
	IsReleaseJob     bool
	SourceCopyJobID  *uuid.UUID
	ReleaseID        *string
	ReleaseNotes     string
	TriggeredBy      string
	Plan             []imageplan.Entry
}

// Create persists a pending CopyJob and its CopyJobImage snapshot rows,
// and marks the source BundleVersion referenced (invariant 1: once
// referenced, its mappings become immutable). The job is left pending;
// callers invoke Start to admit and execute it.
func (r *Runner) Create(ctx context.Context, req CreateRequest) (*model.CopyJob, error) {
	if len(req.Plan) == 0 {
		return nil, apierrors.Validation("copyjob: cannot create a job with an empty plan")
	}

	job := &model.CopyJob{
		TenantID:         req.TenantID,
		BundleVersionID:  req.BundleVersionID,
		EnvironmentID:    req.EnvironmentID,
		SourceRegistryID: req.SourceRegistryID,
		TargetRegistryID: req.TargetRegistryID,
		TargetTag:        req.TargetTag,
		Status:           model.CopyJobStatusPending,
		IsReleaseJob:     req.IsReleaseJob,
		SourceCopyJobID:  req.SourceCopyJobID,
		ReleaseID:        req.ReleaseID,
		ReleaseNotes:     req.ReleaseNotes,
		TriggeredBy:      req.TriggeredBy,
	}
	if err := r.deps.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	images := make([]*model.CopyJobImage, 0, len(req.Plan))
	for _, e := range req.Plan {
		images = append(images, &model.CopyJobImage{
			CopyJobID:   job.ID,
			SourceImage: e.SourceImagePath,
			SourceTag:   e.SourceTag,
			TargetImage: e.TargetImagePath,
			TargetTag:   e.TargetTag,
			CopyStatus:  model.CopyJobImageStatusPending,
		})
	}
	if err := r.deps.Images.CreateBatch(ctx, images); err != nil {
		return nil, err
	}

	if err := r.deps.BundleVersions.MarkReferenced(ctx, req.BundleVersionID); err != nil {
		return nil, err
	}

	return job, nil
}

// Cancel requests cancellation of jobID. A pending job moves straight
// to cancelled without ever spawning a subprocess; an in_progress job's
// live handle is signalled via the Concurrency Supervisor; a terminal
// job is a no-op (5: "cooperative, idempotent").
func (r *Runner) Cancel(ctx context.Context, jobID uuid.UUID) error {
	job, err := r.deps.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return nil
	}
	if job.Status == model.CopyJobStatusPending {
		if err := r.deps.Jobs.CancelPending(ctx, jobID); err == nil {
			return nil
		}
		// Fell through: the job transitioned to in_progress between the
		// GetByID above and this call. Proceed to the in_progress path.
	}

	if err := r.deps.Jobs.RequestCancel(ctx, jobID); err != nil {
		return err
	}
	if err := r.deps.Supervisor.Cancel(jobID); err != nil && !apierrors.Is(err, apierrors.KindNotFound) {
		return err
	}
	return nil
}

// endpointTemplate is the per-registry information needed to build a
// mover.Endpoint for every image the job touches.
type endpointTemplate struct {
	baseURL         string
	projectOverride string
	credentialKind  model.RegistryCredentialKind
	credential      string
	tlsVerify       bool
}

func (r *Runner) resolveEndpointTemplate(ctx context.Context, registryID uuid.UUID, env *model.Environment) (endpointTemplate, error) {
	reg, err := r.deps.Registries.GetByID(ctx, registryID)
	if err != nil {
		return endpointTemplate{}, err
	}

	encrypted := reg.EncryptedCredential
	if override, ok := env.CredentialOverrides[registryID.String()]; ok && override != "" {
		encrypted = override
	}

	var credential string
	if reg.CredentialKind != model.RegistryCredentialNone && encrypted != "" {
		credential, err = r.deps.Crypto.Decrypt(encrypted)
		if err != nil {
			return endpointTemplate{}, apierrors.Internal(err, "copyjob: failed to decrypt credential for registry %s", registryID)
		}
	}

	return endpointTemplate{
		baseURL:         reg.BaseURL,
		projectOverride: env.ProjectPathOverrides[registryID.String()],
		credentialKind:  reg.CredentialKind,
		credential:      credential,
		tlsVerify:       reg.TLSVerify,
	}, nil
}

// Start admits jobID through the Concurrency Supervisor, transitions it
// to in_progress, and fans its plan out across Deps.Parallelism
// workers (DefaultParallelism when unset). It blocks until the job
// reaches a terminal state (or the caller's ctx governs only the
// admission wait — once running, the job's own supervisor-issued context governs cancellation).
func (r *Runner) Start(ctx context.Context, jobID uuid.UUID) error {
	jobCtx, release, err := r.deps.Supervisor.Admit(ctx, jobID)
	if err != nil {
		return err
	}
	defer release()

	if err := r.deps.Jobs.StartTransition(ctx, jobID); err != nil {
		return err
	}

	job, err := r.deps.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return r.failJob(ctx, jobID, fmt.Sprintf("failed to load job after start: %v", err))
	}

	env, err := r.deps.Environments.GetByID(ctx, job.EnvironmentID)
	if err != nil {
		return r.failJob(ctx, jobID, fmt.Sprintf("failed to load environment: %v", err))
	}

	srcTemplate, err := r.resolveEndpointTemplate(ctx, job.SourceRegistryID, env)
	if err != nil {
		return r.failJob(ctx, jobID, fmt.Sprintf("failed to resolve source registry: %v", err))
	}
	dstTemplate, err := r.resolveEndpointTemplate(ctx, job.TargetRegistryID, env)
	if err != nil {
		return r.failJob(ctx, jobID, fmt.Sprintf("failed to resolve target registry: %v", err))
	}

	r.execute(jobCtx, job, srcTemplate, dstTemplate)
	return r.finish(ctx, job)
}

// execute runs Deps.parallelism() workers, each repeatedly claiming and
// processing the next pending image until none remain or jobCtx ends.
// The workers never return an error of their own; errgroup is used
// purely as the fan-out/join primitive, not for error propagation.
func (r *Runner) execute(jobCtx context.Context, job *model.CopyJob, src, dst endpointTemplate) {
	var g errgroup.Group
	for i := 0; i < r.deps.parallelism(); i++ {
		g.Go(func() error {
			for {
				if jobCtx.Err() != nil {
					return nil
				}
				img, err := r.deps.Images.ClaimNextPending(context.Background(), job.ID)
				if err != nil {
					klog.Warningf("copyjob: claim failed for job %s: %v", job.ID, err)
					return nil
				}
				if img == nil {
					return nil // no more pending work
				}
				r.processImage(jobCtx, job, img, src, dst)
			}
		})
	}
	_ = g.Wait()

	if jobCtx.Err() != nil {
		r.cancelRemainingInProgress(job.ID)
	}
}

// cancelRemainingInProgress marks any image a worker had claimed but
// could not finish (because jobCtx ended mid-copy) as cancelled rather
// than leaving it stuck in_progress.
func (r *Runner) cancelRemainingInProgress(jobID uuid.UUID) {
	images, err := r.deps.Images.ListByJob(context.Background(), jobID)
	if err != nil {
		klog.Warningf("copyjob: failed to list images while reconciling cancellation for job %s: %v", jobID, err)
		return
	}
	for _, img := range images {
		if img.CopyStatus == model.CopyJobImageStatusInProgress {
			_ = r.deps.Images.MarkTerminal(context.Background(), img.ID, model.CopyJobImageStatusCancelled, "cancelled")
		}
	}
}

func (r *Runner) processImage(jobCtx context.Context, job *model.CopyJob, img *model.CopyJobImage, src, dst endpointTemplate) {
	prefix := img.SourceImage + ": "

	appendLog := func(line string) {
		if err := r.deps.Bus.Append(context.Background(), job.ID, prefix+line); err != nil {
			klog.Warningf("copyjob: log append failed for job %s: %v", job.ID, err)
		}
	}

	srcRef := imageplan.JoinRef(src.baseURL, src.projectOverride, img.SourceImage, img.SourceTag)
	dstRef := imageplan.JoinRef(dst.baseURL, dst.projectOverride, img.TargetImage, img.TargetTag)

	srcEndpoint := mover.Endpoint{Ref: srcRef, CredentialKind: src.credentialKind, Credential: src.credential, TLSVerify: src.tlsVerify}
	dstEndpoint := mover.Endpoint{Ref: dstRef, CredentialKind: dst.credentialKind, Credential: dst.credential, TLSVerify: dst.tlsVerify}

	sourceDigest, inspectOutcome, err := r.deps.Mover.Inspect(jobCtx, srcEndpoint, func(l processLine) { appendLog(l.Text) })
	if err != nil || inspectOutcome.Kind != outcomeExited(0) {
		// Non-fatal: some movers cannot inspect pre-copy. Proceed without
		// a pre-copy digest and rely on MarkSuccess's target digest.
		sourceDigest = ""
	}

	maxAttempts := r.deps.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if jobCtx.Err() != nil {
			_ = r.deps.Images.MarkTerminal(context.Background(), img.ID, model.CopyJobImageStatusCancelled, "cancelled before dispatch")
			return
		}

		targetDigest, outcome, moveErr := r.deps.Mover.Copy(jobCtx, srcEndpoint, dstEndpoint, func(l processLine) { appendLog(l.Text) })
		if moveErr != nil {
			_ = r.deps.Images.RecordAttemptFailure(context.Background(), img.ID, moveErr.Error())
		} else if outcome.Kind == outcomeExited(0) && outcome.ExitCode == 0 {
			_ = r.deps.Images.MarkSuccess(context.Background(), img.ID, sourceDigest, targetDigest, 0)
			appendLog(fmt.Sprintf("copied successfully, target digest %s", targetDigest))
			return
		}

		if jobCtx.Err() != nil {
			_ = r.deps.Images.MarkTerminal(context.Background(), img.ID, model.CopyJobImageStatusCancelled, "cancelled during copy")
			return
		}

		diagnostic := diagnosticFor(outcome)
		_ = r.deps.Images.RecordAttemptFailure(context.Background(), img.ID, diagnostic)
		appendLog(fmt.Sprintf("attempt %d/%d failed: %s", attempt, maxAttempts, diagnostic))

		if outcome.Kind == outcomeSpawnFailed() {
			break // retrying a missing/unreachable binary cannot help
		}
		if attempt < maxAttempts {
			select {
			case <-time.After(r.retryDelay()):
			case <-jobCtx.Done():
				_ = r.deps.Images.MarkTerminal(context.Background(), img.ID, model.CopyJobImageStatusCancelled, "cancelled during retry backoff")
				return
			}
		}
	}

	_ = r.deps.Images.MarkTerminal(context.Background(), img.ID, model.CopyJobImageStatusFailed, "exhausted retries")
}

func (r *Runner) retryDelay() time.Duration {
	if r.deps.RetryDelay <= 0 {
		return 30 * time.Second
	}
	return r.deps.RetryDelay
}

// finish determines the job's terminal status from its images' final
// states and performs the terminal transition, emitting the Log Bus
// end marker exactly once (4.5, 4.2).
func (r *Runner) finish(ctx context.Context, job *model.CopyJob) error {
	images, err := r.deps.Images.ListByJob(ctx, job.ID)
	if err != nil {
		return r.failJob(ctx, job.ID, fmt.Sprintf("failed to list images for terminal determination: %v", err))
	}

	status := model.CopyJobStatusSuccess
	anyCancelled := false
	anyNonSuccess := false
	for _, img := range images {
		switch img.CopyStatus {
		case model.CopyJobImageStatusSuccess:
		case model.CopyJobImageStatusCancelled:
			anyCancelled = true
			anyNonSuccess = true
		default:
			anyNonSuccess = true
		}
	}
	if anyNonSuccess {
		if anyCancelled {
			status = model.CopyJobStatusCancelled
		} else {
			status = model.CopyJobStatusFailed
		}
	}

	if err := r.deps.Jobs.CompleteTransition(ctx, job.ID, status); err != nil {
		klog.Errorf("copyjob: terminal transition to %s failed for job %s: %v", status, job.ID, err)
	}
	r.deps.Bus.MarkTerminal(job.ID)

	if status == model.CopyJobStatusSuccess && job.IsReleaseJob && r.deps.Releases != nil && job.ReleaseID != nil {
		if _, err := r.deps.Releases.CreateRelease(ctx, job.ID, *job.ReleaseID, job.ReleaseNotes); err != nil {
			klog.Errorf("copyjob: release assembly failed for job %s: %v", job.ID, err)
		}
	}

	if status == model.CopyJobStatusFailed {
		return apierrors.Internal(nil, "copy job %s completed with status failed", job.ID)
	}
	return nil
}

// failJob forces a job directly to failed with a diagnostic line, for
// failures that prevent any per-image progress (plan invalid lookup,
// credential decryption failed) per 5's propagation policy.
func (r *Runner) failJob(ctx context.Context, jobID uuid.UUID, diagnostic string) error {
	_ = r.deps.Bus.Append(ctx, jobID, "job failed: "+diagnostic)
	if err := r.deps.Jobs.CompleteTransition(ctx, jobID, model.CopyJobStatusFailed); err != nil {
		klog.Errorf("copyjob: failed to force-fail job %s: %v", jobID, err)
	}
	r.deps.Bus.MarkTerminal(jobID)
	return apierrors.Internal(nil, diagnostic)
}
