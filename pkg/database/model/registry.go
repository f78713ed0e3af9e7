/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package model

import (
	"time"

	"github.com/google/uuid"
)

const TableNameRegistry = "registries"

// RegistryRole is where a Registry may appear in a copy plan.
type RegistryRole string

const (
	RegistryRoleSource RegistryRole = "source"
	RegistryRoleTarget RegistryRole = "target"
	RegistryRoleBoth   RegistryRole = "both"
)

// RegistryCredentialKind selects how EncryptedCredential should be
// decoded once decrypted.
type RegistryCredentialKind string

const (
	RegistryCredentialNone   RegistryCredentialKind = "none"
	RegistryCredentialBasic  RegistryCredentialKind = "basic"
	RegistryCredentialToken  RegistryCredentialKind = "token"
	RegistryCredentialBearer RegistryCredentialKind = "bearer"
)

// Registry is a named OCI endpoint (spec §3). Credentials at rest are
// opaque ciphertext; decryption is delegated to pkg/cryptoutil.
type Registry struct {
	ID                  uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TenantID            uuid.UUID              `gorm:"column:tenant_id;type:uuid;not null;index" json:"tenant_id"`
	Name                string                 `gorm:"column:name;not null" json:"name"`
	BaseURL             string                 `gorm:"column:base_url;not null" json:"base_url"`
	Flavor              string                 `gorm:"column:flavor;not null" json:"flavor"`
	Role                RegistryRole           `gorm:"column:role;not null" json:"role"`
	CredentialKind      RegistryCredentialKind `gorm:"column:credential_kind;not null;default:none" json:"credential_kind"`
	EncryptedCredential string                 `gorm:"column:encrypted_credential" json:"-"`
	TLSVerify           bool                   `gorm:"column:tls_verify;not null;default:true" json:"tls_verify"`
	CreatedAt           time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (*Registry) TableName() string { return TableNameRegistry }
