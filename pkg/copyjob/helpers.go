/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package copyjob

import (
	"fmt"

	"github.com/martinmares/release-orchestrator/pkg/process"
)

// processLine is an alias for the line type every pkg/process.Sink
// callback receives, so processImage's closures can be typed without
// importing pkg/process at every call site.
type processLine = process.Line

// outcomeExited names the successful-exit outcome kind; its argument is
// unused but keeps call sites ("outcomeExited(0)") self-documenting
// about the exit code they actually require (ExitCode == 0 is checked
// separately).
func outcomeExited(int) process.OutcomeKind { return process.OutcomeExited }

func outcomeSpawnFailed() process.OutcomeKind { return process.OutcomeSpawnFailed }

// diagnosticFor renders an outcome as a one-line failure diagnostic for
// CopyJobImage.ErrorMessage and the Log Bus.
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
