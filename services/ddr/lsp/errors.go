// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import "errors"

// Sentinel errors for server lifecycle and requests.
var (
	// ErrUnsupportedLanguage indicates no configuration exists for the language.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrServerNotInstalled indicates the server binary is not on PATH.
	ErrServerNotInstalled = errors.New("language server not installed")

	// ErrServerNotRunning indicates the server is not in the ready state.
	ErrServerNotRunning = errors.New("language server not running")

	// ErrServerAlreadyStarted indicates Start was called more than once.
	ErrServerAlreadyStarted = errors.New("language server already started")

	// ErrInitializeFailed indicates the LSP initialize handshake failed.
	ErrInitializeFailed = errors.New("language server initialization failed")
)
