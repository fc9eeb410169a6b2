// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package verify

import "errors"

var (
	// ErrInvalidCitation indicates a citation that is malformed before any
	// filesystem check runs: empty path, missing line separator, or a line
	// number below 1.
	ErrInvalidCitation = errors.New("invalid citation")

	// ErrFileMissing indicates the cited file does not exist or is not a
	// regular file.
	ErrFileMissing = errors.New("cited file missing")

	// ErrLineOutOfRange indicates the cited line number exceeds the number
	// of lines in the file.
	ErrLineOutOfRange = errors.New("cited line out of range")
)
