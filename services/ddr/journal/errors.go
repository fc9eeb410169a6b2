// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package journal

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned for operations on a closed journal.
	ErrClosed = errors.New("journal is closed")

	// ErrCorrupted is returned when an entry fails its integrity
	// check.
	ErrCorrupted = errors.New("journal entry corrupted (CRC mismatch)")

	// ErrFull is returned when the journal exceeds its size limit.
	// Checkpoint to truncate.
	ErrFull = errors.New("journal size limit exceeded")

	// ErrSequenceGap is returned when replay finds a missing sequence
	// number, which means records were lost.
	ErrSequenceGap = errors.New("journal sequence gap detected")

	// ErrReplayMismatch is returned when counts recomputed from the
	// journal disagree with the live tracker the journal backs.
	ErrReplayMismatch = errors.New("journal replay mismatch")
)

// ReplayMismatchError carries the diverging counts behind an
// ErrReplayMismatch so callers can report exactly what drifted.
type ReplayMismatchError struct {
	// SessionID is the session whose counts diverged.
	SessionID string

	// JournalValidated and JournalRejected are the counts recomputed
	// from the journal's records.
	JournalValidated int
	JournalRejected  int

	// TrackerValidated and TrackerRejected are the live tracker's
	// counts.
	TrackerValidated int
	TrackerRejected  int
}

func (e *ReplayMismatchError) Error() string {
	return fmt.Sprintf("journal replay mismatch: session %s journal %d/%d tracker %d/%d",
		e.SessionID, e.JournalValidated, e.JournalRejected,
		e.TrackerValidated, e.TrackerRejected)
}

// Unwrap makes errors.Is(err, ErrReplayMismatch) match.
func (e *ReplayMismatchError) Unwrap() error {
	return ErrReplayMismatch
}
