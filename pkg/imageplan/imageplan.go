/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package imageplan builds the concrete (source ref, target ref) list
// for a Copy Job, applying rename rules and per-image overrides for
// release copies (spec §4.4).
package imageplan

import (
	"fmt"
	"path"
	"strings"

	digest "github.com/opencontainers/go-digest"

	apierrors "github.com/martinmares/release-orchestrator/pkg/errors"
)

// RenameRule is a single ordered "find" -> "replace" substring pair
// (4.4: "each is a plain substring replacement, in listed order").
type RenameRule struct {
	Find    string
	Replace string
}

// Mapping is one source-to-target pairing drawn from a BundleVersion's
// image mappings.
type Mapping struct {
	SourceImagePath string
	SourceTag       string
	TargetImagePath string
}

// Entry is one element of a built plan: a fully-qualified source
// reference and its fully-qualified target reference.
type Entry struct {
	SourceImagePath string
	SourceTag       string
	TargetImagePath string
	TargetTag       string
	SourceRef       string
	TargetRef       string
}

// Input collects everything 4.4 names as builder inputs.
type Input struct {
	Mappings []Mapping

	SourceBaseURL          string
	SourceProjectOverride  string
	TargetBaseURL          string
	TargetProjectOverride  string

	// RenameRules and Override only apply to release copies, where
	// TargetImagePath is replaced by the completed source copy's
	// target path before these transforms run.
	IsReleaseCopy bool
	RenameRules   []RenameRule
	// Overrides maps a mapping's SourceImagePath to a replacement for
	// the last path segment of its target (4.4 rule 2: "replace last
	// path segment").
	Overrides map[string]string

	// TargetTag is the caller-supplied tag; if empty and AutoTagEnabled
	// is set, callers must resolve a tag via pkg/tagalloc before
	// calling Build and pass it here instead.
	TargetTag       string
	AppendEnvSuffix bool
	EnvironmentSlug string
}

// Build constructs the plan and validates it per 4.4's rules.
func Build(in Input) ([]Entry, error) {
	if len(in.Mappings) == 0 {
		return nil, apierrors.Validation("image plan: no mappings to build a plan from")
	}
	if in.TargetTag == "" {
		return nil, apierrors.Validation("image plan: target tag is required")
	}

	targetTag := in.TargetTag
	if in.AppendEnvSuffix && in.EnvironmentSlug != "" {
		targetTag = targetTag + "-" + in.EnvironmentSlug
	}

	entries := make([]Entry, 0, len(in.Mappings))
	seen := make(map[string]struct{}, len(in.Mappings))

	for _, m := range in.Mappings {
		sourceRef := joinRef(in.SourceBaseURL, in.SourceProjectOverride, m.SourceImagePath, m.SourceTag)

		targetPath := m.TargetImagePath
		if in.IsReleaseCopy {
			targetPath = ApplyRules(in.RenameRules, targetPath)
			if override, ok := in.Overrides[m.SourceImagePath]; ok && override != "" {
				targetPath = replaceLastSegment(targetPath, override)
			}
		}

		if err := validatePath(targetPath); err != nil {
			return nil, err
		}
		if err := validateTag(targetTag); err != nil {
			return nil, err
		}

		targetRef := joinRef(in.TargetBaseURL, in.TargetProjectOverride, targetPath, targetTag)
		if _, dup := seen[targetRef]; dup {
			return nil, apierrors.Validation("image plan: duplicate target ref %q", targetRef)
		}
		seen[targetRef] = struct{}{}

		entries = append(entries, Entry{
			SourceImagePath: m.SourceImagePath,
			SourceTag:       m.SourceTag,
			TargetImagePath: targetPath,
			TargetTag:       targetTag,
			SourceRef:       sourceRef,
			TargetRef:       targetRef,
		})
	}

	return entries, nil
}

// ApplyRules is a left-fold of plain substring replacements, applied in
// listed order (testable property 6: "apply_rules is a left-fold...
// applied twice with the same inputs yields identical output").
func ApplyRules(rules []RenameRule, p string) string {
	for _, r := range rules {
		p = strings.ReplaceAll(p, r.Find, r.Replace)
	}
	return p
}

func replaceLastSegment(p, replacement string) string {
	dir := path.Dir(p)
	if dir == "." {
		return replacement
	}
	return dir + "/" + replacement
}

// JoinRef builds a fully-qualified reference the same way Build does,
// for callers (pkg/copyjob) that reconstruct a plan entry's ref at
// execution time from its persisted path/tag components.
func JoinRef(baseURL, projectOverride, imagePath, tag string) string {
	return joinRef(baseURL, projectOverride, imagePath, tag)
}

func joinRef(baseURL, projectOverride, imagePath, tag string) string {
	segments := []string{baseURL}
	if projectOverride != "" {
		segments = append(segments, projectOverride)
	}
	segments = append(segments, imagePath)
	return strings.Join(segments, "/") + ":" + tag
}

func validatePath(p string) error {
	if p == "" {
		return apierrors.Validation("image plan: empty image path")
	}
	return nil
}

var tagCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_.-"

func validateTag(tag string) error {
	if tag == "" {
		return apierrors.Validation("image plan: empty tag")
	}
	for _, c := range tag {
		if !strings.ContainsRune(tagCharset, c) {
			return apierrors.Validation("image plan: tag %q contains invalid character %q", tag, c)
		}
	}
	return nil
}

// ParseDigest validates a digest line captured from the image-mover's
// stdout (6: "stdout is parsed only for digest lines of the form
// sha256:<64 hex chars>").
func ParseDigest(line string) (string, error) {
	idx := strings.Index(line, "sha256:")
	if idx < 0 {
		return "", apierrors.Validation("image plan: no digest found in line %q", line)
	}
	candidate := line[idx:]
	// Truncate at the first whitespace or quote so trailing tool
	// output on the same line is not folded into the digest.
	if end := strings.IndexAny(candidate, " \t\n\"'"); end >= 0 {
		candidate = candidate[:end]
	}
	d, err := digest.Parse(candidate)
	if err != nil {
		return "", apierrors.Validation("image plan: invalid digest %q: %v", candidate, err)
	}
	if d.Algorithm() != digest.SHA256 {
		return "", apierrors.Validation("image plan: unexpected digest algorithm %q", d.Algorithm())
	}
	return d.String(), nil
}

// FormatTargetTag mirrors the suffixing rule from Build, exposed so
// callers resolving a tag via pkg/tagalloc before Build can preview the
// final tag (e.g. for logging).
func FormatTargetTag(tag, envSlug string, appendSuffix bool) string {
	if appendSuffix && envSlug != "" {
		return fmt.Sprintf("%s-%s", tag, envSlug)
	}
	return tag
}
