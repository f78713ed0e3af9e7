/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package model holds the gorm row types for every entity in spec §3.
// Identifiers are opaque 128-bit values (google/uuid); timestamps are
// stored UTC.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// NewID mints a fresh opaque identifier.
func NewID() uuid.UUID { return uuid.New() }

// StringMap is a JSONB-backed map, following the teacher's ValuesJSON
// pattern (database/controlplane/database/model/release_version.go)
// for storing arbitrary key/value configuration (env-var mappings,
// project-path overrides) in a single column.
type StringMap map[string]string

func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *StringMap) Scan(value interface{}) error {
	if value == nil {
		*m = StringMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("model.StringMap: unsupported scan source")
	}
}

// StringSlice is a JSONB-backed ordered list, used for rename rules
// where order is semantically significant (4.4: "each is a plain
// substring replacement, in listed order").
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	return string(b), err
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("model.StringSlice: unsupported scan source")
	}
}
