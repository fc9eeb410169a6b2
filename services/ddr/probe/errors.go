// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package probe

import "errors"

var (
	// ErrUnavailable indicates the probe's backing tool cannot run at
	// all (missing binary, dead server). Callers treat this as an
	// abstention, never as a negative verdict.
	ErrUnavailable = errors.New("probe unavailable")

	// ErrUnsupported indicates the probe cannot analyze this particular
	// query (unknown file extension, no sources it understands in the
	// workspace). Also an abstention.
	ErrUnsupported = errors.New("probe does not support query")

	// ErrInvalidQuery indicates a structurally bad query (empty symbol
	// name). This is caller misuse, not an abstention; validators
	// reject it before any probe runs.
	ErrInvalidQuery = errors.New("invalid query")
)
