// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// LoggerWithTrace returns a logger with trace correlation fields attached.
//
// Description:
//
//	Extracts the span context from ctx and attaches trace_id and span_id
//	attributes so log lines can be joined with traces in Grafana/Loki.
//	Returns the logger unchanged when no valid span context is present.
//
// Inputs:
//
//	ctx - Context potentially carrying an active span. May be nil.
//	logger - Base logger. Nil falls back to slog.Default().
//
// Outputs:
//
//	*slog.Logger - Logger with trace fields, or the base logger.
//
// Example:
//
//	log := telemetry.LoggerWithTrace(ctx, s.logger)
//	log.Info("Query validated", slog.String("symbol", q.Symbol))
//
// Thread Safety: Safe for concurrent use.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if ctx == nil {
		return logger
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}

	return logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}

// LoggerWithSession returns a trace-correlated logger tagged with a
// verification session.
//
// Inputs:
//
//	ctx - Context potentially carrying an active span. May be nil.
//	logger - Base logger. Nil falls back to slog.Default().
//	sessionID - The session identifier to attach as session_id.
//
// Thread Safety: Safe for concurrent use.
func LoggerWithSession(ctx context.Context, logger *slog.Logger, sessionID string) *slog.Logger {
	return LoggerWithTrace(ctx, logger).With(slog.String("session_id", sessionID))
}

// LoggerWithQuery returns a trace-correlated logger tagged with a
// symbol query.
//
// Inputs:
//
//	ctx - Context potentially carrying an active span. May be nil.
//	logger - Base logger. Nil falls back to slog.Default().
//	queryID - The query identifier to attach as query_id.
//
// Thread Safety: Safe for concurrent use.
func LoggerWithQuery(ctx context.Context, logger *slog.Logger, queryID string) *slog.Logger {
	return LoggerWithTrace(ctx, logger).With(slog.String("query_id", queryID))
}
