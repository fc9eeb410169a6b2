// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package journal persists per-session classification records so a
// session's hallucination accounting survives a restart.
//
// # Description
//
// Every classified query appends one record, written synchronously to
// BadgerDB with a CRC32 checksum. On resume, Replay returns the
// records in order and Counts folds them back into the validated and
// rejected counters, so incremental accounting and a full replay
// always agree.
//
// Key format: "record:{session_id}:{seq:016d}"
// Value format: [4-byte CRC32][gob-encoded record]
//
// # Thread Safety
//
// A Journal is safe for concurrent use from multiple goroutines.
package journal

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/ddr/services/ddr/trust"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// -----------------------------------------------------------------------------
// Records
// -----------------------------------------------------------------------------

// Entry is one journaled classification record.
type Entry struct {
	// SessionID is the owning session. Set by the journal on append.
	SessionID string

	// Seq is the append order within the session, starting at 1. Set
	// by the journal on append.
	Seq uint64

	// QueryID identifies the retrieval that produced this record.
	QueryID string

	// Symbol is the queried symbol name.
	Symbol string

	// Class is the trust class the query was assigned.
	Class trust.TrustClass

	// Citation is the formatted "path:line" citation, empty when none
	// was attached.
	Citation string

	// Rate is the session hallucination rate immediately after this
	// record.
	Rate float64

	// RecordedAt is when the record was appended.
	RecordedAt time.Time
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// DefaultMaxBytes is the journal size that triggers ErrFull, 1GB.
const DefaultMaxBytes = 1 << 30

// Config configures a session journal.
type Config struct {
	// Path is the directory for BadgerDB files. Required unless
	// InMemory is true.
	Path string

	// SessionID scopes the journal to one session and prefixes every
	// key. Required.
	SessionID string

	// InMemory keeps the journal in memory with no persistence. For
	// testing.
	InMemory bool

	// SyncWrites makes every append durable before returning. Must be
	// true for crash recovery to be meaningful.
	SyncWrites bool

	// MaxBytes fails appends with ErrFull once exceeded, 0 disables
	// the limit.
	MaxBytes int64

	// SkipCorrupted makes replay log and skip corrupted records
	// instead of failing.
	SkipCorrupted bool

	// GCInterval is how often to run value log garbage collection, 0
	// disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable fraction before GC
	// rewrites a value log file.
	GCDiscardRatio float64

	// Logger receives journal and BadgerDB events. Nil silences
	// BadgerDB and uses slog.Default for the journal itself.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable writes, a 1GB
// size limit, and five minute GC.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		MaxBytes:       DefaultMaxBytes,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: in-memory, no
// sync, no GC.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SessionID == "" {
		return errors.New("session id must not be empty")
	}
	if !c.InMemory && c.Path == "" {
		return errors.New("path is required for a persistent journal")
	}
	if c.MaxBytes < 0 {
		return errors.New("max bytes must be non-negative")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Journal
// -----------------------------------------------------------------------------

// Stats summarizes a journal's state.
type Stats struct {
	// LastSeq is the most recent sequence number.
	LastSeq uint64

	// TotalBytes is the approximate size of journal data since the
	// last checkpoint.
	TotalBytes int64

	// CorruptedCount is the number of corrupted records seen during
	// replay.
	CorruptedCount int64

	// LastCheckpoint is when the journal was last checkpointed, zero
	// if never.
	LastCheckpoint time.Time
}

// Journal is a session-scoped write-ahead log of classification
// records.
type Journal struct {
	store  *store
	cfg    Config
	logger *slog.Logger

	seq            atomic.Uint64
	totalBytes     atomic.Int64
	corrupted      atomic.Int64
	lastCheckpoint atomic.Int64
	closed         atomic.Bool
}

// Open opens or resumes the journal for a session.
//
// Description:
//
//	Opens BadgerDB at the configured path and scans for the highest
//	existing sequence number so appends after a restart continue the
//	sequence instead of overwriting it.
//
// Inputs:
//
//	cfg - Journal configuration. Must pass Validate.
//
// Outputs:
//
//	*Journal - The open journal. Caller must Close it.
//	error - Non-nil on invalid config or storage failure.
//
// Thread Safety:
//
//	The returned Journal is safe for concurrent use.
func Open(cfg Config) (*Journal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid journal config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "journal", "session", cfg.SessionID)

	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	j := &Journal{
		store:  st,
		cfg:    cfg,
		logger: logger,
	}

	if err := j.initSeq(); err != nil {
		st.close()
		return nil, fmt.Errorf("scan last sequence: %w", err)
	}

	logger.Info("Journal opened",
		"path", cfg.Path,
		"in_memory", cfg.InMemory,
		"sync_writes", cfg.SyncWrites,
		"last_seq", j.seq.Load())

	return j, nil
}

// initSeq finds the highest existing sequence number for the session.
func (j *Journal) initSeq() error {
	prefix := []byte(j.recordPrefix())
	var maxSeq uint64

	err := j.store.withReadTxn(context.Background(), func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the last possible key with this prefix, then the
		// first valid item is the highest sequence.
		seek := append(append([]byte{}, prefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		it.Seek(seek)

		if it.ValidForPrefix(prefix) {
			if seq, ok := parseSeq(it.Item().Key(), prefix); ok {
				maxSeq = seq
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	j.seq.Store(maxSeq)
	return nil
}

func (j *Journal) recordPrefix() string {
	return fmt.Sprintf("record:%s:", j.cfg.SessionID)
}

func (j *Journal) recordKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%016d", j.recordPrefix(), seq))
}

func (j *Journal) checkpointKey() []byte {
	return []byte(fmt.Sprintf("checkpoint:latest:%s", j.cfg.SessionID))
}

// parseSeq extracts the sequence number from a record key.
func parseSeq(key, prefix []byte) (uint64, bool) {
	var seq uint64
	if _, err := fmt.Sscanf(string(key[len(prefix):]), "%016d", &seq); err != nil {
		return 0, false
	}
	return seq, true
}

// encodeRecord encodes an entry as [4-byte CRC32][gob].
func encodeRecord(e Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}

	out := make([]byte, 4+buf.Len())
	binary.BigEndian.PutUint32(out[:4], crc32.ChecksumIEEE(buf.Bytes()))
	copy(out[4:], buf.Bytes())
	return out, nil
}

// decodeRecord validates the checksum and decodes an entry.
func decodeRecord(data []byte) (Entry, error) {
	if len(data) < 5 {
		return Entry{}, fmt.Errorf("%w: entry too short", ErrCorrupted)
	}

	stored := binary.BigEndian.Uint32(data[:4])
	payload := data[4:]
	if computed := crc32.ChecksumIEEE(payload); stored != computed {
		return Entry{}, fmt.Errorf("%w: stored=%08x computed=%08x", ErrCorrupted, stored, computed)
	}

	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&e); err != nil {
		return Entry{}, fmt.Errorf("gob decode: %w", err)
	}
	return e, nil
}

// Append writes one classification record durably.
//
// Description:
//
//	Assigns the next sequence number, stamps the session and time,
//	and writes the checksummed record in its own transaction. With
//	SyncWrites the record is on disk when Append returns.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	e - The record. SessionID, Seq, and a zero RecordedAt are filled
//	    in by the journal.
//
// Outputs:
//
//	error - ErrClosed, ErrFull, context errors, or storage failure.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if j.closed.Load() {
		return ErrClosed
	}

	ctx, span := otel.Tracer("aleutian.ddr.journal").Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.String("session", j.cfg.SessionID),
			attribute.String("class", e.Class.String()),
		))
	defer span.End()

	if j.cfg.MaxBytes > 0 && j.totalBytes.Load() >= j.cfg.MaxBytes {
		span.SetStatus(codes.Error, "journal full")
		return fmt.Errorf("%w: %d bytes", ErrFull, j.totalBytes.Load())
	}

	seq := j.seq.Add(1)
	e.SessionID = j.cfg.SessionID
	e.Seq = seq
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}

	data, err := encodeRecord(e)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return fmt.Errorf("encode record: %w", err)
	}

	err = j.store.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(j.recordKey(seq), data)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return fmt.Errorf("write record: %w", err)
	}

	j.totalBytes.Add(int64(len(data)))
	span.SetAttributes(attribute.Int64("seq", int64(seq)))

	j.logger.Debug("Record appended",
		"seq", seq,
		"query", e.QueryID,
		"class", e.Class.String(),
		"bytes", len(data))
	return nil
}

// Replay returns every record after the last checkpoint, in sequence
// order.
//
// Description:
//
//	Validates each record's checksum and that sequence numbers are
//	contiguous. A gap means records were lost and replay fails with
//	ErrSequenceGap unless SkipCorrupted is set, in which case gaps
//	and corrupted records are logged and skipped.
//
// Inputs:
//
//	ctx - Context for cancellation.
//
// Outputs:
//
//	[]Entry - Records in append order, empty when none exist.
//	error - ErrClosed, ErrCorrupted, ErrSequenceGap, or storage
//	        failure.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (j *Journal) Replay(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if j.closed.Load() {
		return nil, ErrClosed
	}

	ctx, span := otel.Tracer("aleutian.ddr.journal").Start(ctx, "journal.replay",
		trace.WithAttributes(attribute.String("session", j.cfg.SessionID)))
	defer span.End()

	checkpointSeq, err := j.checkpointSeq()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var entries []Entry
	var lastSeq uint64
	corrupted := 0

	prefix := []byte(j.recordPrefix())
	err = j.store.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			seq, ok := parseSeq(item.Key(), prefix)
			if !ok {
				continue
			}
			if seq <= checkpointSeq {
				continue
			}

			if lastSeq > 0 && seq != lastSeq+1 {
				if !j.cfg.SkipCorrupted {
					return fmt.Errorf("%w: expected %d, got %d", ErrSequenceGap, lastSeq+1, seq)
				}
				j.logger.Warn("Sequence gap in replay",
					"expected", lastSeq+1,
					"got", seq)
			}
			lastSeq = seq

			err := item.Value(func(val []byte) error {
				e, err := decodeRecord(val)
				if err != nil {
					if errors.Is(err, ErrCorrupted) {
						corrupted++
						j.corrupted.Add(1)
						if j.cfg.SkipCorrupted {
							j.logger.Warn("Skipping corrupted record",
								"seq", seq,
								"error", err)
							return nil
						}
					}
					return err
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replay failed")
		return nil, fmt.Errorf("replay: %w", err)
	}

	span.SetAttributes(
		attribute.Int("records", len(entries)),
		attribute.Int("corrupted", corrupted),
	)

	j.logger.Info("Replay completed",
		"records", len(entries),
		"corrupted", corrupted,
		"checkpoint_seq", checkpointSeq)

	return entries, nil
}

// Counts folds the journaled records back into session counters.
//
// Outputs:
//
//	validated - Count of non-rejected records since the checkpoint.
//	rejected - Count of rejected records since the checkpoint.
//	err - Replay failure.
func (j *Journal) Counts(ctx context.Context) (validated, rejected int, err error) {
	entries, err := j.Replay(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		if e.Class == trust.Rejected {
			rejected++
		} else {
			validated++
		}
	}
	return validated, rejected, nil
}

// Checkpoint marks the current position and truncates older records.
//
// Description:
//
//	Writes the checkpoint marker first, then deletes records at or
//	below it. A truncation failure is logged but does not fail the
//	checkpoint; the marker alone is enough for correct replay.
//
// Inputs:
//
//	ctx - Context for cancellation.
//
// Outputs:
//
//	error - ErrClosed, context errors, or marker write failure.
func (j *Journal) Checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if j.closed.Load() {
		return ErrClosed
	}

	ctx, span := otel.Tracer("aleutian.ddr.journal").Start(ctx, "journal.checkpoint",
		trace.WithAttributes(attribute.String("session", j.cfg.SessionID)))
	defer span.End()

	current := j.seq.Load()
	marker := make([]byte, 8)
	binary.BigEndian.PutUint64(marker, current)

	err := j.store.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(j.checkpointKey(), marker)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkpoint failed")
		return fmt.Errorf("write checkpoint: %w", err)
	}

	j.lastCheckpoint.Store(time.Now().Unix())

	deleted := 0
	prefix := []byte(j.recordPrefix())
	err = j.store.withTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			seq, ok := parseSeq(key, prefix)
			if !ok || seq > current {
				continue
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		j.logger.Warn("Checkpoint truncation failed", "error", err)
	}

	j.totalBytes.Store(0)

	span.SetAttributes(
		attribute.Int64("checkpoint_seq", int64(current)),
		attribute.Int("deleted", deleted),
	)

	j.logger.Info("Checkpoint created",
		"seq", current,
		"deleted", deleted)
	return nil
}

// checkpointSeq reads the last checkpoint marker, 0 when none exists.
func (j *Journal) checkpointSeq() (uint64, error) {
	var seq uint64

	err := j.store.withReadTxn(context.Background(), func(txn *badger.Txn) error {
		item, err := txn.Get(j.checkpointKey())
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) >= 8 {
				seq = binary.BigEndian.Uint64(val)
			}
			return nil
		})
	})
	return seq, err
}

// SessionID returns the session this journal is scoped to.
func (j *Journal) SessionID() string {
	return j.cfg.SessionID
}

// Stats returns the journal's current statistics.
func (j *Journal) Stats() Stats {
	var lastCP time.Time
	if ts := j.lastCheckpoint.Load(); ts > 0 {
		lastCP = time.Unix(ts, 0)
	}
	return Stats{
		LastSeq:        j.seq.Load(),
		TotalBytes:     j.totalBytes.Load(),
		CorruptedCount: j.corrupted.Load(),
		LastCheckpoint: lastCP,
	}
}

// Sync flushes pending writes to disk.
func (j *Journal) Sync() error {
	if j.closed.Load() {
		return ErrClosed
	}
	return j.store.sync()
}

// Close syncs and releases the journal. Safe to call twice.
func (j *Journal) Close() error {
	if j.closed.Swap(true) {
		return nil
	}

	j.logger.Info("Closing journal")

	if err := j.store.sync(); err != nil {
		j.logger.Warn("Sync before close failed", "error", err)
	}
	return j.store.close()
}
