/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package release implements the Release Assembler from spec §4.8: it
// turns a successful CopyJob into a Release whose manifest (image
// paths plus pinned digests) is the deploy unit, deriving the manifest
// from the CopyJob's images rather than storing it, so the release is
// immutable for exactly as long as its source CopyJob is (§4.5's
// terminal-state invariants).
package release

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/martinmares/release-orchestrator/pkg/database"
	"github.com/martinmares/release-orchestrator/pkg/database/model"
	apierrors "github.com/martinmares/release-orchestrator/pkg/errors"
)

// Deps collects the Assembler's collaborators.
type Deps struct {
	Releases       *database.ReleaseFacade
	CopyJobs       *database.CopyJobFacade
	Images         *database.CopyJobImageFacade
	BundleVersions *database.BundleVersionFacade
	Bundles        *database.BundleFacade
}

// Assembler implements 4.8's create_release contract.
type Assembler struct {
	deps Deps
}

// NewAssembler constructs an Assembler.
func NewAssembler(deps Deps) *Assembler {
	return &Assembler{deps: deps}
}

// ManifestImage is one entry of a Release's derived manifest.
type ManifestImage struct {
	Path   string `json:"path"`
	Tag    string `json:"tag"`
	Digest string `json:"digest"`
}

// Manifest is the stable release-manifest document from spec §6:
// `{release_id, bundle_id, bundle_name, version, created_at, images}`.
type Manifest struct {
	ReleaseID  string          `json:"release_id"`
	BundleID   uuid.UUID       `json:"bundle_id"`
	BundleName string          `json:"bundle_name"`
	Version    int             `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	Images     []ManifestImage `json:"images"`
}

// CreateRelease validates the preconditions from 4.8 and persists a
// Release row. It is idempotent: re-submitting the same copyJobID
// returns the release already created for it rather than erroring,
// mirroring the teacher's Rollback-style guard against illegal
// re-submission (extended here per SPEC_FULL §12 to CreateRelease).
func (a *Assembler) CreateRelease(ctx context.Context, copyJobID uuid.UUID, releaseID, notes string) (*model.Release, error) {
	if existing, err := a.deps.Releases.GetByCopyJobID(ctx, copyJobID); err == nil {
		klog.Infof("release: copy job %s already has release %s, returning existing", copyJobID, existing.ReleaseID)
		return existing, nil
	} else if !apierrors.Is(err, apierrors.KindNotFound) {
		return nil, err
	}

	job, err := a.deps.CopyJobs.GetByID(ctx, copyJobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.CopyJobStatusSuccess {
		return nil, apierrors.PreconditionFailed("release: copy job %s is %s, not success", copyJobID, job.Status)
	}

	allDigests, err := a.deps.Images.AllNonNullTargetDigest(ctx, copyJobID)
	if err != nil {
		return nil, err
	}
	if !allDigests {
		return nil, apierrors.PreconditionFailed("release: copy job %s has images without a target digest", copyJobID)
	}

	r := &model.Release{
		TenantID:  job.TenantID,
		CopyJobID: copyJobID,
		ReleaseID: releaseID,
		Status:    model.ReleaseStatusReleased,
		Notes:     notes,
	}
	if err := a.deps.Releases.Create(ctx, r); err != nil {
		return nil, err
	}
	klog.Infof("release: created %s from copy job %s", releaseID, copyJobID)
	return r, nil
}

// BuildManifest derives r's manifest document from its source CopyJob's
// images (invariant 5: "the resulting manifest's (path, tag) pairs
// equal the source job's image (target_image, target_tag) set"). The
// manifest is never stored; it is recomputed on every call so a
// Release stays immutable precisely as long as its CopyJob's rows do.
func (a *Assembler) BuildManifest(ctx context.Context, r *model.Release) (*Manifest, error) {
	job, err := a.deps.CopyJobs.GetByID(ctx, r.CopyJobID)
	if err != nil {
		return nil, err
	}
	bv, err := a.deps.BundleVersions.GetByID(ctx, job.BundleVersionID)
	if err != nil {
		return nil, err
	}
	bundle, err := a.deps.Bundles.GetByID(ctx, bv.BundleID)
	if err != nil {
		return nil, err
	}
	images, err := a.deps.Images.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	manifestImages := make([]ManifestImage, 0, len(images))
	for _, img := range images {
		manifestImages = append(manifestImages, ManifestImage{
			Path:   img.TargetImage,
			Tag:    img.TargetTag,
			Digest: img.TargetSHA256,
		})
	}
	sort.Slice(manifestImages, func(i, j int) bool { return manifestImages[i].Path < manifestImages[j].Path })

	return &Manifest{
		ReleaseID:  r.ReleaseID,
		BundleID:   bundle.ID,
		BundleName: bundle.Name,
		Version:    bv.Version,
		CreatedAt:  r.CreatedAt,
		Images:     manifestImages,
	}, nil
}

// MarkDeployed transitions r to deployed, called by the Deploy Job
// Runner after a successful (non-dry-run) push (spec §3: Release
// status released -> deployed).
func (a *Assembler) MarkDeployed(ctx context.Context, id uuid.UUID) error {
	return a.deps.Releases.MarkDeployed(ctx, id)
}
