// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ddr

import "errors"

var (
	// ErrServiceClosed is returned for operations on a closed service.
	ErrServiceClosed = errors.New("ddr service is closed")

	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("ddr session is closed")

	// ErrJournalDisabled is returned when a journal-backed operation
	// is requested without journaling configured.
	ErrJournalDisabled = errors.New("journaling is disabled")

	// ErrNoSessionID is returned when a resume is attempted without a
	// session ID.
	ErrNoSessionID = errors.New("session id required")
)
