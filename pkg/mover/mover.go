/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package mover wraps the image-mover subprocess contract from spec §6:
// `<mover> copy [--src-*] [--dst-*] docker://<src> docker://<dst>` and
// `<mover> inspect docker://<ref>`, run through pkg/process so every
// invocation gets the same timeout/streaming/never-log-credential
// guarantees as every other subprocess in this module.
package mover

import (
	"context"
	"fmt"
	"time"

	"github.com/martinmares/release-orchestrator/pkg/database/model"
	"github.com/martinmares/release-orchestrator/pkg/imageplan"
	"github.com/martinmares/release-orchestrator/pkg/process"
)

// Endpoint is one side of a copy (or the sole side of an inspect).
type Endpoint struct {
	Ref            string
	CredentialKind model.RegistryCredentialKind
	Credential     string // decrypted: "user:secret" for basic, a bare token for token/bearer
	TLSVerify      bool
}

// Mover runs BinaryPath (SKOPEO_PATH) against source/target endpoints.
type Mover struct {
	runner     *process.Runner
	binaryPath string
	timeout    time.Duration
}

// NewMover constructs a Mover. timeout is the per-invocation budget
// (COPY_TIMEOUT_SECONDS).
func NewMover(runner *process.Runner, binaryPath string, timeout time.Duration) *Mover {
	return &Mover{runner: runner, binaryPath: binaryPath, timeout: timeout}
}

// Copy runs `<mover> copy` from src to dst and returns the target
// digest parsed from stdout, if the tool printed one.
func (m *Mover) Copy(ctx context.Context, src, dst Endpoint, sink process.Sink) (digest string, outcome process.Outcome, err error) {
	args := []string{"copy"}
	args = append(args, endpointFlags("src", src)...)
	args = append(args, endpointFlags("dest", dst)...)
	args = append(args, "docker://"+src.Ref, "docker://"+dst.Ref)
	return m.run(ctx, args, sink)
}

// Inspect runs `<mover> inspect` against ep and returns the digest
// parsed from stdout, used to capture source_sha256 before a copy.
func (m *Mover) Inspect(ctx context.Context, ep Endpoint, sink process.Sink) (digest string, outcome process.Outcome, err error) {
	args := []string{"inspect"}
	args = append(args, endpointFlags("", ep)...)
	args = append(args, "docker://"+ep.Ref)
	return m.run(ctx, args, sink)
}

func (m *Mover) run(ctx context.Context, args []string, sink process.Sink) (string, process.Outcome, error) {
	var lines []string
	wrapped := func(l process.Line) {
		lines = append(lines, l.Text)
		if sink != nil {
			sink(l)
		}
	}

	outcome := m.runner.Run(ctx, process.Spec{
		Program: m.binaryPath,
		Args:    args,
		Timeout: m.timeout,
		Sink:    wrapped,
	})

	if outcome.Kind != process.OutcomeExited || outcome.ExitCode != 0 {
		return "", outcome, nil
	}

	for _, line := range lines {
		if d, err := imageplan.ParseDigest(line); err == nil {
			return d, outcome, nil
		}
	}
	return "", outcome, nil
}

// endpointFlags builds the --<prefix>-creds / --<prefix>-registry-token
// / --<prefix>-tls-verify flags for one endpoint. prefix is "src" or
// "dest" for copy's two-sided flags, and "" for inspect's unprefixed
// single-sided flags.
func endpointFlags(prefix string, ep Endpoint) []string {
	flag := func(name string) string {
		if prefix == "" {
			return "--" + name
		}
		return "--" + prefix + "-" + name
	}

	var flags []string
	switch ep.CredentialKind {
	case model.RegistryCredentialBasic:
		flags = append(flags, fmt.Sprintf("%s=%s", flag("creds"), ep.Credential))
	case model.RegistryCredentialToken, model.RegistryCredentialBearer:
		flags = append(flags, fmt.Sprintf("%s=%s", flag("registry-token"), ep.Credential))
	}
	if !ep.TLSVerify {
		flags = append(flags, flag("tls-verify")+"=false")
	}
	return flags
}
