/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package model

import (
	"time"

	"github.com/google/uuid"
)

const TableNameGitRepository = "git_repositories"

// GitAuthKind selects how GitRepository.EncryptedCredential should be
// interpreted by pkg/gitclient.
type GitAuthKind string

const (
	GitAuthKindNone  GitAuthKind = "none"
	GitAuthKindSSH   GitAuthKind = "ssh"
	GitAuthKindToken GitAuthKind = "token"
)

// GitRepository is a tenant-scoped named repo shared by Environments
// (spec §3). Token repos are cloned over HTTPS with the decrypted
// token embedded in the clone URL, never logged (4.6).
type GitRepository struct {
	ID                  uuid.UUID   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TenantID            uuid.UUID   `gorm:"column:tenant_id;type:uuid;not null;index" json:"tenant_id"`
	Name                string      `gorm:"column:name;not null" json:"name"`
	URL                 string      `gorm:"column:url;not null" json:"url"`
	DefaultBranch       string      `gorm:"column:default_branch;not null;default:main" json:"default_branch"`
	AuthKind            GitAuthKind `gorm:"column:auth_kind;not null;default:none" json:"auth_kind"`
	EncryptedCredential string      `gorm:"column:encrypted_credential" json:"-"`
	CreatedAt           time.Time   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (*GitRepository) TableName() string { return TableNameGitRepository }
