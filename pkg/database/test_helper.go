/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/martinmares/release-orchestrator/pkg/database/model"
)

// newTestDB opens an in-memory SQLite database and migrates every
// entity, so facade logic is exercised without a live Postgres
// instance.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open in-memory sqlite")

	err = db.AutoMigrate(
		&model.Tenant{},
		&model.Registry{},
		&model.GitRepository{},
		&model.Environment{},
		&model.Bundle{},
		&model.BundleVersion{},
		&model.ImageMapping{},
		&model.BundleTagCounter{},
		&model.CopyJob{},
		&model.CopyJobImage{},
		&model.CopyJobLog{},
		&model.Release{},
		&model.DeployJob{},
		&model.DeployJobLog{},
		&model.DeployJobDiff{},
		&model.DeployJobImage{},
	)
	require.NoError(t, err, "failed to auto-migrate models")
	return db
}
