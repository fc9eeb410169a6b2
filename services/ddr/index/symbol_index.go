// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index holds the in-memory symbol table the structural probe
// reads from. Symbols come from workspace parses; lookups are O(1) by
// ID, name, file, and kind, with a linear fuzzy Search for suggestion
// generation.
package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/ddr/services/ddr/ast"
)

const (
	// DefaultMaxSymbols is the default index capacity.
	DefaultMaxSymbols = 1_000_000

	// searchCheckInterval is how often Search polls for cancellation.
	searchCheckInterval = 1000

	// fuzzyDistanceMax is the exclusive Levenshtein bound for fuzzy matches.
	fuzzyDistanceMax = 3
)

// SymbolIndexOptions configures SymbolIndex limits.
type SymbolIndexOptions struct {
	// MaxSymbols caps the number of symbols the index holds.
	// Adding beyond the cap returns ErrMaxSymbolsExceeded.
	MaxSymbols int
}

// DefaultSymbolIndexOptions returns the default options.
func DefaultSymbolIndexOptions() SymbolIndexOptions {
	return SymbolIndexOptions{
		MaxSymbols: DefaultMaxSymbols,
	}
}

// SymbolIndexOption is a functional option for NewSymbolIndex.
type SymbolIndexOption func(*SymbolIndexOptions)

// WithMaxSymbols sets the index capacity.
func WithMaxSymbols(max int) SymbolIndexOption {
	return func(o *SymbolIndexOptions) {
		o.MaxSymbols = max
	}
}

// IndexStats describes the current index contents.
type IndexStats struct {
	// TotalSymbols is the number of symbols held.
	TotalSymbols int

	// ByKind counts symbols per kind.
	ByKind map[ast.SymbolKind]int

	// FileCount is the number of distinct files with indexed symbols.
	FileCount int

	// MaxSymbols is the configured capacity.
	MaxSymbols int
}

// SymbolIndex provides O(1) symbol lookups by several keys.
//
// Description:
//
//	The index is the structural probe's source of truth: a query is
//	confirmed structurally when its name resolves here with matching
//	kind and scope. It maintains four maps over the same symbol set:
//
//	  - byID: unique lookup ("file:line:name")
//	  - byName: all declarations sharing a name
//	  - byFile: all declarations in one file, for invalidation
//	  - byKind: all declarations of one kind
//
// Thread Safety:
//
//	Safe for concurrent use. Reads take a shared lock; mutations are
//	exclusive and atomic (a batch is applied fully or not at all).
//
// Ownership:
//
//	The index stores pointers but does not own the symbols. Symbols
//	must not be mutated after being added.
type SymbolIndex struct {
	mu sync.RWMutex

	byID   map[string]*ast.Symbol
	byName map[string][]*ast.Symbol
	byFile map[string][]*ast.Symbol
	byKind map[ast.SymbolKind][]*ast.Symbol

	// Maintained counters so Stats stays O(1).
	totalCount int
	kindCounts map[ast.SymbolKind]int

	options SymbolIndexOptions
}

// NewSymbolIndex creates an empty index.
//
// Example:
//
//	idx := NewSymbolIndex()                       // 1M capacity
//	idx := NewSymbolIndex(WithMaxSymbols(50_000)) // bounded workspace
func NewSymbolIndex(opts ...SymbolIndexOption) *SymbolIndex {
	options := DefaultSymbolIndexOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &SymbolIndex{
		byID:       make(map[string]*ast.Symbol),
		byName:     make(map[string][]*ast.Symbol),
		byFile:     make(map[string][]*ast.Symbol),
		byKind:     make(map[ast.SymbolKind][]*ast.Symbol),
		kindCounts: make(map[ast.SymbolKind]int),
		options:    options,
	}
}

// Add inserts a single symbol.
//
// Inputs:
//
//	symbol - Must pass ast.Symbol validation via its ParseResult rules
//	         (non-empty name, positive lines).
//
// Errors:
//
//	ErrInvalidSymbol - nil or malformed symbol
//	ErrDuplicateSymbol - ID already present
//	ErrMaxSymbolsExceeded - index at capacity
//
// Thread Safety:
//
//	Safe for concurrent use.
func (idx *SymbolIndex) Add(symbol *ast.Symbol) error {
	if symbol == nil {
		return fmt.Errorf("%w: symbol is nil", ErrInvalidSymbol)
	}
	if err := validateSymbol(symbol); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSymbol, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.totalCount >= idx.options.MaxSymbols {
		return ErrMaxSymbolsExceeded
	}
	if _, exists := idx.byID[symbol.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, symbol.ID)
	}

	idx.addSymbolLocked(symbol)
	return nil
}

// AddBatch inserts multiple symbols atomically.
//
// Description:
//
//	All symbols are validated and checked for duplicates (within the
//	batch and against the index) before any write happens. On failure
//	no symbols are added and the returned *BatchError lists every
//	offender.
//
// Errors:
//
//	*BatchError - one entry per invalid or duplicate symbol
//	ErrMaxSymbolsExceeded - batch would exceed capacity
//
// Thread Safety:
//
//	Safe for concurrent use.
func (idx *SymbolIndex) AddBatch(symbols []*ast.Symbol) error {
	if len(symbols) == 0 {
		return nil
	}

	// Phase 1: validate everything before taking the lock.
	var errs []error
	seen := make(map[string]int) // ID → first batch position

	for i, sym := range symbols {
		if sym == nil {
			errs = append(errs, fmt.Errorf("symbol[%d]: %w: symbol is nil", i, ErrInvalidSymbol))
			continue
		}
		if err := validateSymbol(sym); err != nil {
			errs = append(errs, fmt.Errorf("symbol[%d]: %w: %v", i, ErrInvalidSymbol, err))
			continue
		}
		if first, exists := seen[sym.ID]; exists {
			errs = append(errs, fmt.Errorf("symbol[%d]: duplicate ID in batch (same as symbol[%d]): %s",
				i, first, sym.ID))
		} else {
			seen[sym.ID] = i
		}
	}
	if len(errs) > 0 {
		return &BatchError{Errors: errs}
	}

	// Phase 2: check against existing contents under the lock.
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.totalCount+len(symbols) > idx.options.MaxSymbols {
		return ErrMaxSymbolsExceeded
	}
	for i, sym := range symbols {
		if _, exists := idx.byID[sym.ID]; exists {
			errs = append(errs, fmt.Errorf("symbol[%d]: %w: %s", i, ErrDuplicateSymbol, sym.ID))
		}
	}
	if len(errs) > 0 {
		return &BatchError{Errors: errs}
	}

	// Phase 3: all clear, apply.
	for _, sym := range symbols {
		idx.addSymbolLocked(sym)
	}
	return nil
}

// validateSymbol applies the subset of ParseResult validation rules
// that matter for index integrity.
func validateSymbol(sym *ast.Symbol) error {
	if sym.ID == "" {
		return fmt.Errorf("symbol has no ID")
	}
	if sym.Name == "" {
		return fmt.Errorf("symbol has no name")
	}
	if sym.FilePath == "" {
		return fmt.Errorf("symbol %q has no file path", sym.Name)
	}
	if sym.StartLine < 1 {
		return fmt.Errorf("symbol %q has invalid start line %d", sym.Name, sym.StartLine)
	}
	if sym.EndLine < sym.StartLine {
		return fmt.Errorf("symbol %q has end line %d before start line %d",
			sym.Name, sym.EndLine, sym.StartLine)
	}
	return nil
}

// addSymbolLocked writes a symbol into every map. Caller holds idx.mu.
func (idx *SymbolIndex) addSymbolLocked(symbol *ast.Symbol) {
	idx.byID[symbol.ID] = symbol
	idx.byName[symbol.Name] = append(idx.byName[symbol.Name], symbol)
	idx.byFile[symbol.FilePath] = append(idx.byFile[symbol.FilePath], symbol)
	idx.byKind[symbol.Kind] = append(idx.byKind[symbol.Kind], symbol)

	idx.totalCount++
	idx.kindCounts[symbol.Kind]++
}

// GetByID returns the symbol with the given ID, if present.
func (idx *SymbolIndex) GetByID(id string) (*ast.Symbol, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	sym, exists := idx.byID[id]
	return sym, exists
}

// GetByName returns every symbol declared under the given name.
//
// Multiple files can declare the same name; the structural probe
// filters the result by kind and container. The returned slice is a
// defensive copy.
func (idx *SymbolIndex) GetByName(name string) []*ast.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return copySymbols(idx.byName[name])
}

// GetByFile returns every symbol declared in the given file.
// The returned slice is a defensive copy.
func (idx *SymbolIndex) GetByFile(filePath string) []*ast.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return copySymbols(idx.byFile[filePath])
}

// GetByKind returns every symbol of the given kind.
// The returned slice is a defensive copy.
func (idx *SymbolIndex) GetByKind(kind ast.SymbolKind) []*ast.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return copySymbols(idx.byKind[kind])
}

// Files returns the paths of every file with indexed symbols, sorted.
//
// The watcher reconciles against this list when directories are
// renamed or removed underneath it.
func (idx *SymbolIndex) Files() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	files := make([]string, 0, len(idx.byFile))
	for path := range idx.byFile {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

func copySymbols(src []*ast.Symbol) []*ast.Symbol {
	if len(src) == 0 {
		return nil
	}
	result := make([]*ast.Symbol, len(src))
	copy(result, src)
	return result
}

// Search finds symbols whose names approximately match the query.
//
// Description:
//
//	Linear scan over all names, scored by match quality: exact (0),
//	prefix (1), substring (2), then Levenshtein distance below 3 (3).
//	Results sort by score then name. This is what produces the
//	"closest declared name" suggestions attached to rejected lookups.
//
// Performance:
//
//	O(n) in total symbols. The context is polled every 1000 symbols
//	so large scans stay cancellable.
//
// Inputs:
//
//	ctx - cancellation
//	query - case-insensitive search string
//	limit - maximum results (0 = unlimited)
//
// Thread Safety:
//
//	Safe for concurrent use.
func (idx *SymbolIndex) Search(ctx context.Context, query string, limit int) ([]*ast.Symbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, nil
	}

	queryLower := strings.ToLower(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scoredSymbol struct {
		symbol *ast.Symbol
		score  int // lower is better
	}

	var results []scoredSymbol
	count := 0

	for _, sym := range idx.byID {
		count++
		if count%searchCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		nameLower := strings.ToLower(sym.Name)
		score := -1

		switch {
		case nameLower == queryLower:
			score = 0
		case strings.HasPrefix(nameLower, queryLower):
			score = 1
		case strings.Contains(nameLower, queryLower):
			score = 2
		case levenshteinDistance(nameLower, queryLower) < fuzzyDistanceMax:
			score = 3
		}

		if score >= 0 {
			results = append(results, scoredSymbol{symbol: sym, score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score < results[j].score
		}
		return results[i].symbol.Name < results[j].symbol.Name
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	symbols := make([]*ast.Symbol, len(results))
	for i, r := range results {
		symbols[i] = r.symbol
	}
	return symbols, nil
}

// levenshteinDistance computes edit distance using two rolling rows.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// RemoveByFile drops every symbol declared in the given file.
//
// Description:
//
//	This is the invalidation path: when the watcher reports a change,
//	the file's symbols are removed and the file reparsed. Removal is
//	atomic across all maps.
//
// Outputs:
//
//	int - number of symbols removed
//
// Thread Safety:
//
//	Safe for concurrent use.
func (idx *SymbolIndex) RemoveByFile(filePath string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	symbols := idx.byFile[filePath]
	if len(symbols) == 0 {
		return 0
	}

	for _, sym := range symbols {
		delete(idx.byID, sym.ID)

		idx.byName[sym.Name] = removeFromSlice(idx.byName[sym.Name], sym)
		if len(idx.byName[sym.Name]) == 0 {
			delete(idx.byName, sym.Name)
		}

		idx.byKind[sym.Kind] = removeFromSlice(idx.byKind[sym.Kind], sym)
		if len(idx.byKind[sym.Kind]) == 0 {
			delete(idx.byKind, sym.Kind)
		}

		idx.totalCount--
		idx.kindCounts[sym.Kind]--
		if idx.kindCounts[sym.Kind] == 0 {
			delete(idx.kindCounts, sym.Kind)
		}
	}

	removed := len(symbols)
	delete(idx.byFile, filePath)
	return removed
}

// removeFromSlice removes sym by pointer equality, swapping with the
// last element. Order within secondary indexes is not meaningful.
func removeFromSlice(slice []*ast.Symbol, sym *ast.Symbol) []*ast.Symbol {
	for i, s := range slice {
		if s == sym {
			slice[i] = slice[len(slice)-1]
			return slice[:len(slice)-1]
		}
	}
	return slice
}

// Clear resets the index to empty.
func (idx *SymbolIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.byID = make(map[string]*ast.Symbol)
	idx.byName = make(map[string][]*ast.Symbol)
	idx.byFile = make(map[string][]*ast.Symbol)
	idx.byKind = make(map[ast.SymbolKind][]*ast.Symbol)
	idx.kindCounts = make(map[ast.SymbolKind]int)
	idx.totalCount = 0
}

// Stats returns current counts from the maintained counters.
func (idx *SymbolIndex) Stats() IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	byKind := make(map[ast.SymbolKind]int, len(idx.kindCounts))
	for k, v := range idx.kindCounts {
		byKind[k] = v
	}

	return IndexStats{
		TotalSymbols: idx.totalCount,
		ByKind:       byKind,
		FileCount:    len(idx.byFile),
		MaxSymbols:   idx.options.MaxSymbols,
	}
}

// Clone creates an independent copy of the index.
//
// Map structure is deep-copied; symbol pointers are shared, which is
// safe because symbols are immutable once added. Used to snapshot the
// workspace state before a bulk reindex so concurrent lookups keep a
// consistent view.
func (idx *SymbolIndex) Clone() *SymbolIndex {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	clone := &SymbolIndex{
		byID:       make(map[string]*ast.Symbol, len(idx.byID)),
		byName:     make(map[string][]*ast.Symbol, len(idx.byName)),
		byFile:     make(map[string][]*ast.Symbol, len(idx.byFile)),
		byKind:     make(map[ast.SymbolKind][]*ast.Symbol, len(idx.byKind)),
		kindCounts: make(map[ast.SymbolKind]int, len(idx.kindCounts)),
		totalCount: idx.totalCount,
		options:    idx.options,
	}

	for id, sym := range idx.byID {
		clone.byID[id] = sym
	}
	for name, symbols := range idx.byName {
		clone.byName[name] = append([]*ast.Symbol(nil), symbols...)
	}
	for file, symbols := range idx.byFile {
		clone.byFile[file] = append([]*ast.Symbol(nil), symbols...)
	}
	for kind, symbols := range idx.byKind {
		clone.byKind[kind] = append([]*ast.Symbol(nil), symbols...)
	}
	for kind, count := range idx.kindCounts {
		clone.kindCounts[kind] = count
	}

	return clone
}
