/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package orchestrator wires the core's collaborators into a single
// long-running process. The REST/SSE surface that would drive
// CopyJobs/DeployJobs is out of scope (spec §1: "referenced only by
// their contract"); Server exposes the two runners for that surface to
// call, and otherwise just keeps the process alive and its janitor
// running until asked to stop.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/martinmares/release-orchestrator/pkg/config"
	"github.com/martinmares/release-orchestrator/pkg/copyjob"
	"github.com/martinmares/release-orchestrator/pkg/cryptoutil"
	"github.com/martinmares/release-orchestrator/pkg/database"
	"github.com/martinmares/release-orchestrator/pkg/deployjob"
	"github.com/martinmares/release-orchestrator/pkg/gitclient"
	"github.com/martinmares/release-orchestrator/pkg/logbus"
	"github.com/martinmares/release-orchestrator/pkg/mover"
	"github.com/martinmares/release-orchestrator/pkg/process"
	"github.com/martinmares/release-orchestrator/pkg/release"
	"github.com/martinmares/release-orchestrator/pkg/supervisor"
	"github.com/martinmares/release-orchestrator/pkg/workspace"
)

// logRingSize bounds the in-memory live-fanout ring each Log Bus keeps
// per job, independent of the durable row count (4.2).
const logRingSize = 500

// orphanWorkspaceAge is how long a workspace scratch directory can sit
// under BasePath before the janitor considers it orphaned rather than
// in-flight. It comfortably exceeds DeployTotalTimeout so the janitor
// never races a still-running deploy job.
const orphanWorkspaceAge = 4 * time.Hour

// Server holds the assembled core: the Copy Job and Deploy Job
// Runners, the Release Assembler, and the Concurrency Supervisor they
// share.
type Server struct {
	CopyJobs   *copyjob.Runner
	DeployJobs *deployjob.Runner
	Releases   *release.Assembler
	Supervisor *supervisor.Supervisor
}

// NewServer loads configuration, opens and migrates the database, and
// wires every collaborator, the way apiserver.NewServer constructs the
// teacher's handler graph.
func NewServer() (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("database: migrate: %w", err)
	}

	box, err := cryptoutil.NewBox(cfg.EncryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: %w", err)
	}

	if cfg.BasePath != "" {
		if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
			return nil, fmt.Errorf("base path %s: %w", cfg.BasePath, err)
		}
	}

	procRunner := process.NewRunner()
	imageMover := mover.NewMover(procRunner, cfg.SkopeoPath, cfg.CopyTimeout)
	gitClient := gitclient.NewClient(procRunner)
	wsManager := workspace.NewManager(gitClient, cfg.BasePath)

	copyJobs := database.NewCopyJobFacade(db)
	copyJobImages := database.NewCopyJobImageFacade(db)
	copyJobLogs := database.NewCopyJobLogFacade(db)
	deployJobs := database.NewDeployJobFacade(db)
	deployJobDiffs := database.NewDeployJobDiffFacade(db)
	deployJobImages := database.NewDeployJobImageFacade(db)
	deployJobLogs := database.NewDeployJobLogFacade(db)
	environments := database.NewEnvironmentFacade(db)
	gitRepos := database.NewGitRepositoryFacade(db)
	registries := database.NewRegistryFacade(db)
	releases := database.NewReleaseFacade(db)
	bundles := database.NewBundleFacade(db)
	bundleVersions := database.NewBundleVersionFacade(db)

	copyLogBus := logbus.NewBus(database.CopyJobLogDurable{Facade: copyJobLogs}, logRingSize)
	deployLogBus := logbus.NewBus(database.DeployJobLogDurable{Facade: deployJobLogs}, logRingSize)

	sup := supervisor.NewSupervisor(cfg.MaxConcurrentCopyJobs)
	if err := sup.StartJanitor(cfg.JanitorSchedule, orphanWorkspaceSweep(cfg.BasePath, orphanWorkspaceAge)); err != nil {
		return nil, fmt.Errorf("supervisor: janitor: %w", err)
	}

	assembler := release.NewAssembler(release.Deps{
		Releases:       releases,
		CopyJobs:       copyJobs,
		Images:         copyJobImages,
		BundleVersions: bundleVersions,
		Bundles:        bundles,
	})

	copyRunner := copyjob.NewRunner(copyjob.Deps{
		Jobs:           copyJobs,
		Images:         copyJobImages,
		BundleVersions: bundleVersions,
		Registries:     registries,
		Environments:   environments,
		Bus:            copyLogBus,
		Mover:          imageMover,
		Crypto:         box,
		Supervisor:     sup,
		Releases:       assembler,
		Parallelism:    copyjob.DefaultParallelism,
		MaxRetries:     cfg.CopyMaxRetries,
		RetryDelay:     cfg.CopyRetryDelay,
	})

	deployRunner := deployjob.NewRunner(deployjob.Deps{
		Jobs:             deployJobs,
		Diffs:            deployJobDiffs,
		Images:           deployJobImages,
		Environments:     environments,
		GitRepos:         gitRepos,
		Releases:         releases,
		Manifests:        assembler,
		Crypto:           box,
		Bus:              deployLogBus,
		Workspace:        wsManager,
		Git:              gitClient,
		Runner:           procRunner,
		KubeBuildAppPath: cfg.KubeBuildAppPath,
		EncjsonPath:      cfg.EncjsonPath,
		ApplyEnvPath:     cfg.ApplyEnvPath,
		KubeconformPath:  cfg.KubeconformPath,
		StepTimeout:      cfg.DeployStepTimeout,
		TotalTimeout:     cfg.DeployTotalTimeout,
	})

	return &Server{
		CopyJobs:   copyRunner,
		DeployJobs: deployRunner,
		Releases:   assembler,
		Supervisor: sup,
	}, nil
}

// Start blocks until the process receives SIGINT or SIGTERM, then stops
// the janitor and returns. The REST/SSE surface that admits jobs onto
// s.CopyJobs/s.DeployJobs runs in front of this process; Start's only
// job here is to keep the supervisor's janitor alive and shut down
// cleanly.
func (s *Server) Start() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	klog.Infof("release-orchestrator: ready, copy jobs in flight=%d", s.Supervisor.InFlight())
	<-ctx.Done()

	klog.Infof("release-orchestrator: shutting down")
	s.Supervisor.Stop()
}

// orphanWorkspaceSweep returns a supervisor.SweepFunc that removes
// workspace scratch directories under baseDir whose modification time
// is older than maxAge, catching directories a crashed process left
// behind mid-deploy-job (SPEC_FULL §12: janitor sweep for orphaned
// workspaces).
func orphanWorkspaceSweep(baseDir string, maxAge time.Duration) supervisor.SweepFunc {
	return func(ctx context.Context) ([]string, error) {
		if baseDir == "" {
			return nil, nil
		}
		entries, err := os.ReadDir(baseDir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}

		var removed []string
		cutoff := time.Now().Add(-maxAge)
		for _, entry := range entries {
			if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "ro-workspace-") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			dir := filepath.Join(baseDir, entry.Name())
			if err := os.RemoveAll(dir); err != nil {
				klog.Warningf("janitor: failed to remove orphaned workspace %s: %v", dir, err)
				continue
			}
			removed = append(removed, dir)
		}
		return removed, nil
	}
}
