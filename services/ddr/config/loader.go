// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration with priority: env > file > defaults.
//
// Description:
//
//	Starts from Default, overlays the config file when the path is
//	non-empty and the file exists, overlays DDR_* environment
//	variables, and validates the merged result. A missing file is not
//	an error; a malformed one is.
//
// Inputs:
//
//	path - Config file path, YAML or JSON. May be empty.
//
// Outputs:
//
//	Config - The merged configuration.
//	error - Parse or validation failure.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	loadEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	// Try YAML first, then JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadEnv(cfg *Config) {
	// Workspace
	if v := os.Getenv("DDR_WORKSPACE_ROOT"); v != "" {
		cfg.Workspace.Root = v
	}

	// Validation
	if v := os.Getenv("DDR_PROBE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Validation.ProbeTimeout = Duration(d)
		}
	}
	if v := os.Getenv("DDR_STRUCTURAL_MAX_FILES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Validation.StructuralMaxFiles = i
		}
	}
	if v := os.Getenv("DDR_SYNTAX_MAX_FILES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Validation.SyntaxMaxFiles = i
		}
	}
	if v := os.Getenv("DDR_RAWTEXT_MAX_FILES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Validation.RawTextMaxFiles = i
		}
	}
	if v := os.Getenv("DDR_RAWTEXT_MAX_FILE_BYTES"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Validation.RawTextMaxFileBytes = i
		}
	}
	if v := os.Getenv("DDR_DISABLE_LANGUAGE_SERVER"); v != "" {
		cfg.Validation.DisableLanguageServer = v == "true" || v == "1"
	}

	// Session
	if v := os.Getenv("DDR_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Session.Threshold = f
		}
	}
	if v := os.Getenv("DDR_MIN_SAMPLES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Session.MinSamples = i
		}
	}

	// Journal
	if v := os.Getenv("DDR_JOURNAL_ENABLED"); v != "" {
		cfg.Journal.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("DDR_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("DDR_JOURNAL_SYNC_WRITES"); v != "" {
		cfg.Journal.SyncWrites = v == "true" || v == "1"
	}

	// Telemetry
	if v := os.Getenv("DDR_SERVICE_NAME"); v != "" {
		cfg.Telemetry.ServiceName = v
	}
	if v := os.Getenv("DDR_TRACE_EXPORTER"); v != "" {
		cfg.Telemetry.TraceExporter = v
	}
	if v := os.Getenv("DDR_METRIC_EXPORTER"); v != "" {
		cfg.Telemetry.MetricExporter = v
	}
	if v := os.Getenv("DDR_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("DDR_TRACE_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Telemetry.SampleRate = f
		}
	}
	if v := os.Getenv("DDR_LOG_LEVEL"); v != "" {
		cfg.Telemetry.LogLevel = v
	}
	if v := os.Getenv("DDR_LOG_DIR"); v != "" {
		cfg.Telemetry.LogDir = v
	}
	if v := os.Getenv("DDR_LOG_JSON"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Telemetry.LogJSON = b
		}
	}
}
