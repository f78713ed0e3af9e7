/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package model

import (
	"time"

	"github.com/google/uuid"
)

const TableNameEnvironment = "environments"

// ReleaseManifestMode selects how a Release's manifest document is
// rendered for this environment's deploy toolchain (4.7 step 1).
type ReleaseManifestMode string

const (
	ReleaseManifestModeDefault ReleaseManifestMode = "default"
	ReleaseManifestModeCompact ReleaseManifestMode = "compact"
)

// Environment is a deployment destination (spec §3): it selects source
// and target registries, carries deploy-repo coordinates consumed by
// the Workspace Manager (4.6), and the toolchain env-var contract
// consumed by the Deploy Job Runner (4.7).
type Environment struct {
	ID                     uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TenantID               uuid.UUID            `gorm:"column:tenant_id;type:uuid;not null;index" json:"tenant_id"`
	Name                   string               `gorm:"column:name;not null" json:"name"`
	Slug                   string               `gorm:"column:slug;not null" json:"slug"`
	SourceRegistryID       uuid.UUID            `gorm:"column:source_registry_id;type:uuid;not null" json:"source_registry_id"`
	TargetRegistryID       uuid.UUID            `gorm:"column:target_registry_id;type:uuid;not null" json:"target_registry_id"`
	ProjectPathOverrides   StringMap            `gorm:"column:project_path_overrides;type:jsonb" json:"project_path_overrides"`
	CredentialOverrides    StringMap            `gorm:"column:credential_overrides;type:jsonb" json:"-"`
	EnvGitRepositoryID     uuid.UUID            `gorm:"column:env_git_repository_id;type:uuid;not null" json:"env_git_repository_id"`
	EnvRepoPath            string               `gorm:"column:env_repo_path;not null" json:"env_repo_path"`
	EnvRepoBranch          string               `gorm:"column:env_repo_branch;not null;default:main" json:"env_repo_branch"`
	DeployGitRepositoryID  uuid.UUID            `gorm:"column:deploy_git_repository_id;type:uuid;not null" json:"deploy_git_repository_id"`
	DeployRepoPath         string               `gorm:"column:deploy_repo_path;not null" json:"deploy_repo_path"`
	DeployRepoBranch       string               `gorm:"column:deploy_repo_branch;not null;default:main" json:"deploy_repo_branch"`
	AllowAutoRelease       bool                 `gorm:"column:allow_auto_release;not null;default:false" json:"allow_auto_release"`
	AppendEnvSuffix        bool                 `gorm:"column:append_env_suffix;not null;default:false" json:"append_env_suffix"`
	ReleaseManifestMode    ReleaseManifestMode  `gorm:"column:release_manifest_mode;not null;default:default" json:"release_manifest_mode"`
	ReleaseEnvVarMappings  StringMap            `gorm:"column:release_env_var_mappings;type:jsonb" json:"release_env_var_mappings"`
	ExtraEnvVars           StringMap            `gorm:"column:extra_env_vars;type:jsonb" json:"extra_env_vars"`
	EncjsonKeyDir          string               `gorm:"column:encjson_key_dir" json:"encjson_key_dir"`
	CreatedAt              time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (*Environment) TableName() string { return TableNameEnvironment }
