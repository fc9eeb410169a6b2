// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the verification engine's configuration with
// priority env > file > defaults.
package config

import (
	"log/slog"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/ddr/pkg/logging"
	"github.com/AleutianAI/ddr/services/ddr/journal"
	"github.com/AleutianAI/ddr/services/ddr/metric"
	"github.com/AleutianAI/ddr/services/ddr/probe"
	"github.com/AleutianAI/ddr/services/ddr/telemetry"
	"github.com/AleutianAI/ddr/services/ddr/validate"
)

// ddrValidate is the validator instance for config structs.
// Initialized in init() with custom validators.
var ddrValidate *validator.Validate

func init() {
	ddrValidate = validator.New()
	_ = ddrValidate.RegisterValidation("rate", validateRate)
}

// validateRate accepts a fraction in (0, 1].
func validateRate(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return v > 0 && v <= 1
}

// Config is the full engine configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after
// creation.
type Config struct {
	// Workspace locates the source tree the probes verify against.
	Workspace WorkspaceConfig `json:"workspace" yaml:"workspace"`

	// Validation contains probe and validator settings.
	Validation ValidationConfig `json:"validation" yaml:"validation"`

	// Session contains hallucination accounting settings.
	Session SessionConfig `json:"session" yaml:"session"`

	// Journal contains session persistence settings.
	Journal JournalConfig `json:"journal" yaml:"journal"`

	// Telemetry contains tracing, metrics, and logging settings.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// WorkspaceConfig locates the verified source tree.
type WorkspaceConfig struct {
	// Root is the workspace directory probes walk and cite into.
	Root string `json:"root" yaml:"root" validate:"required"`
}

// ValidationConfig contains probe and validator settings.
type ValidationConfig struct {
	// ProbeTimeout bounds each probe check; a probe that exceeds it
	// abstains.
	ProbeTimeout Duration `json:"probe_timeout" yaml:"probe_timeout" validate:"gt=0"`

	// StructuralMaxFiles bounds the structural index build.
	StructuralMaxFiles int `json:"structural_max_files" yaml:"structural_max_files" validate:"gte=1"`

	// SyntaxMaxFiles bounds unscoped grammar-level scans.
	SyntaxMaxFiles int `json:"syntax_max_files" yaml:"syntax_max_files" validate:"gte=1"`

	// RawTextMaxFiles bounds unscoped text scans.
	RawTextMaxFiles int `json:"rawtext_max_files" yaml:"rawtext_max_files" validate:"gte=1"`

	// RawTextMaxFileBytes skips files larger than this during text
	// scans.
	RawTextMaxFileBytes int64 `json:"rawtext_max_file_bytes" yaml:"rawtext_max_file_bytes" validate:"gte=1"`

	// DisableLanguageServer leaves the language server probe out of
	// the validator entirely.
	DisableLanguageServer bool `json:"disable_language_server" yaml:"disable_language_server"`
}

// SessionConfig contains hallucination accounting settings.
type SessionConfig struct {
	// Threshold is the hallucination rate at which a session fails,
	// in (0, 1].
	Threshold float64 `json:"threshold" yaml:"threshold" validate:"rate"`

	// MinSamples is the record count below which the threshold is
	// never enforced.
	MinSamples int `json:"min_samples" yaml:"min_samples" validate:"gte=1"`
}

// JournalConfig contains session persistence settings.
type JournalConfig struct {
	// Enabled turns on durable per-session journaling.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the parent directory for journal stores. Each session
	// opens its own BadgerDB directory underneath it. Required when
	// Enabled.
	Path string `json:"path" yaml:"path" validate:"required_if=Enabled true"`

	// SyncWrites makes every journal append durable before returning.
	SyncWrites bool `json:"sync_writes" yaml:"sync_writes"`

	// MaxBytes fails appends once the journal exceeds this size, 0
	// disables the limit.
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes" validate:"gte=0"`
}

// TelemetryConfig contains tracing, metrics, and logging settings.
type TelemetryConfig struct {
	// ServiceName labels exported traces and metrics.
	ServiceName string `json:"service_name" yaml:"service_name" validate:"required"`

	// TraceExporter selects the span exporter: otlp, stdout, or none.
	TraceExporter string `json:"trace_exporter" yaml:"trace_exporter" validate:"oneof=otlp stdout none"`

	// MetricExporter selects the metric exporter: prometheus, stdout,
	// or none.
	MetricExporter string `json:"metric_exporter" yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`

	// OTLPEndpoint is the gRPC collector address used when
	// TraceExporter is otlp.
	OTLPEndpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint"`

	// SampleRate is the fraction of traces to sample. Values outside
	// [0, 1] clamp to always or never.
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`

	// LogDir mirrors logs to dated JSON files under this directory,
	// empty disables file logging.
	LogDir string `json:"log_dir" yaml:"log_dir"`

	// LogJSON switches stderr output from text to JSON.
	LogJSON bool `json:"log_json" yaml:"log_json"`
}

// SlogLevel converts LogLevel to a slog.Level, defaulting to info.
func (t TelemetryConfig) SlogLevel() slog.Level {
	switch t.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoggingConfig derives the logger configuration for components that
// build their own logger rather than receiving one.
func (t TelemetryConfig) LoggingConfig() logging.Config {
	level := logging.LevelInfo
	switch t.LogLevel {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.Config{
		Level:   level,
		LogDir:  t.LogDir,
		Service: t.ServiceName,
		JSON:    t.LogJSON,
	}
}

// Default returns the engine defaults: current directory workspace,
// the standard probe budgets, a 2% threshold over at least 5 samples,
// journaling off, telemetry quiet.
func Default() Config {
	return Config{
		Workspace: WorkspaceConfig{
			Root: ".",
		},
		Validation: ValidationConfig{
			ProbeTimeout:        Duration(validate.DefaultProbeTimeout),
			StructuralMaxFiles:  probe.DefaultStructuralMaxFiles,
			SyntaxMaxFiles:      probe.DefaultSyntaxMaxFiles,
			RawTextMaxFiles:     probe.DefaultRawTextMaxFiles,
			RawTextMaxFileBytes: probe.DefaultRawTextMaxFileSize,
		},
		Session: SessionConfig{
			Threshold:  metric.DefaultThreshold,
			MinSamples: metric.DefaultMinSamples,
		},
		Journal: JournalConfig{
			Enabled:    false,
			SyncWrites: true,
			MaxBytes:   journal.DefaultMaxBytes,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "aleutian-ddr",
			TraceExporter:  "none",
			MetricExporter: "none",
			OTLPEndpoint:   "localhost:4317",
			SampleRate:     1.0,
			LogLevel:       "info",
		},
	}
}

// Validate checks the configuration, including the custom rate rule
// on the session threshold.
func (c Config) Validate() error {
	return ddrValidate.Struct(c)
}

// JournalConfigFor builds the journal package's config for a session.
// Sessions store under their own subdirectory so concurrent sessions
// never contend for the same BadgerDB lock; resuming a session reopens
// the same subdirectory.
func (c Config) JournalConfigFor(sessionID string) journal.Config {
	jc := journal.DefaultConfig()
	jc.Path = filepath.Join(c.Journal.Path, sessionID)
	jc.SessionID = sessionID
	jc.SyncWrites = c.Journal.SyncWrites
	jc.MaxBytes = c.Journal.MaxBytes
	return jc
}

// TelemetryConfigFor builds the telemetry package's config. Service
// version and environment keep the telemetry defaults; an empty OTLP
// endpoint keeps the standard OTEL_EXPORTER_OTLP_ENDPOINT fallback.
func (c Config) TelemetryConfigFor() telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceName = c.Telemetry.ServiceName
	tc.TraceExporter = c.Telemetry.TraceExporter
	tc.MetricExporter = c.Telemetry.MetricExporter
	tc.SampleRate = c.Telemetry.SampleRate
	if c.Telemetry.OTLPEndpoint != "" {
		tc.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	}
	return tc
}
