/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package config binds the recognized environment variables (spec §6)
// via viper, the way common/pkg/config binds DB and crypto settings for
// the rest of the teacher's stack.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every process-wide tunable the core reads at startup.
type Config struct {
	DatabaseURL      string
	EncryptionSecret string
	BasePath         string

	SkopeoPath       string
	KubeBuildAppPath string
	ApplyEnvPath     string
	EncjsonPath      string
	KubeconformPath  string

	MaxConcurrentCopyJobs int
	CopyTimeout           time.Duration
	CopyMaxRetries        int
	CopyRetryDelay        time.Duration

	DeployStepTimeout  time.Duration
	DeployTotalTimeout time.Duration
	JanitorSchedule    string
}

// Load reads the recognized environment variables, applying the
// defaults from spec §6. DATABASE_URL and ENCRYPTION_SECRET have no
// default and must be set by the caller's environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("max_concurrent_copy_jobs", 3)
	v.SetDefault("copy_timeout_seconds", 3600)
	v.SetDefault("copy_max_retries", 3)
	v.SetDefault("copy_retry_delay_seconds", 30)
	v.SetDefault("skopeo_path", "skopeo")
	v.SetDefault("deploy_step_timeout_seconds", 1800)
	v.SetDefault("deploy_total_timeout_seconds", 7200)
	v.SetDefault("janitor_schedule", "@every 10m")

	for _, key := range []string{
		"database_url", "encryption_secret", "base_path",
		"skopeo_path", "kube_build_app_path", "apply_env_path",
		"encjson_path", "kubeconform_path",
		"max_concurrent_copy_jobs", "copy_timeout_seconds",
		"copy_max_retries", "copy_retry_delay_seconds",
		"deploy_step_timeout_seconds", "deploy_total_timeout_seconds",
		"janitor_schedule",
	} {
		_ = v.BindEnv(key)
	}

	cfg := &Config{
		DatabaseURL:           v.GetString("database_url"),
		EncryptionSecret:      v.GetString("encryption_secret"),
		BasePath:              v.GetString("base_path"),
		SkopeoPath:            v.GetString("skopeo_path"),
		KubeBuildAppPath:      v.GetString("kube_build_app_path"),
		ApplyEnvPath:          v.GetString("apply_env_path"),
		EncjsonPath:           v.GetString("encjson_path"),
		KubeconformPath:       v.GetString("kubeconform_path"),
		MaxConcurrentCopyJobs: v.GetInt("max_concurrent_copy_jobs"),
		CopyTimeout:           time.Duration(v.GetInt("copy_timeout_seconds")) * time.Second,
		CopyMaxRetries:        v.GetInt("copy_max_retries"),
		CopyRetryDelay:        time.Duration(v.GetInt("copy_retry_delay_seconds")) * time.Second,
		DeployStepTimeout:     time.Duration(v.GetInt("deploy_step_timeout_seconds")) * time.Second,
		DeployTotalTimeout:    time.Duration(v.GetInt("deploy_total_timeout_seconds")) * time.Second,
		JanitorSchedule:       v.GetString("janitor_schedule"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errMissingRequired("DATABASE_URL")
	}
	if cfg.EncryptionSecret == "" {
		return nil, errMissingRequired("ENCRYPTION_SECRET")
	}
	return cfg, nil
}

type missingRequiredError struct{ name string }

func (e *missingRequiredError) Error() string {
	return "required environment variable " + e.name + " is not set"
}

func errMissingRequired(name string) error { return &missingRequiredError{name: name} }
