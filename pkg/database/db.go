/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package database opens the shared gorm connection and runs schema
// migration for every entity in the data model (spec §3).
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/martinmares/release-orchestrator/pkg/database/model"
)

// Open connects to Postgres at dsn and configures the pool the same
// way across every entrypoint: a small, short-lived pool befitting a
// single-process orchestrator rather than a fanned-out API tier.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Migrate brings the schema up to date with every model in pkg/database/model.
// Order matters only for foreign-key creation convenience; gorm's
// AutoMigrate does not enforce FK constraints across tables by default.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
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
}
