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

import "sync"

// LanguageConfig describes how to launch one language server.
type LanguageConfig struct {
	// Language is the language identifier (e.g., "go", "python").
	Language string

	// Command is the executable name or path.
	Command string

	// Args are command-line arguments passed at launch.
	Args []string

	// Extensions are the file extensions this server handles (with dot).
	Extensions []string

	// RootFiles are marker files that indicate a project root.
	RootFiles []string

	// InitializationOptions are passed verbatim during initialize.
	InitializationOptions interface{}
}

// ConfigRegistry maps languages and extensions to server configurations.
//
// The registry decides which lookups the language-server check can
// even attempt: a language absent here makes that check abstain
// rather than fail.
//
// Thread Safety: safe for concurrent use.
type ConfigRegistry struct {
	mu         sync.RWMutex
	byLanguage map[string]LanguageConfig
	byExt      map[string]string // extension → language
}

// NewConfigRegistry creates a registry pre-populated with the stock
// server configurations: gopls, pyright, typescript-language-server,
// rust-analyzer, jdtls, and clangd.
func NewConfigRegistry() *ConfigRegistry {
	r := &ConfigRegistry{
		byLanguage: make(map[string]LanguageConfig),
		byExt:      make(map[string]string),
	}
	r.registerDefaults()
	return r
}

// registerDefaults adds the stock language server configurations.
func (r *ConfigRegistry) registerDefaults() {
	r.Register(LanguageConfig{
		Language:   "go",
		Command:    "gopls",
		Args:       []string{"serve"},
		Extensions: []string{".go"},
		RootFiles:  []string{"go.mod", "go.sum"},
	})

	r.Register(LanguageConfig{
		Language:   "python",
		Command:    "pyright-langserver",
		Args:       []string{"--stdio"},
		Extensions: []string{".py", ".pyi"},
		RootFiles:  []string{"pyproject.toml", "requirements.txt", "setup.py"},
	})

	r.Register(LanguageConfig{
		Language:   "typescript",
		Command:    "typescript-language-server",
		Args:       []string{"--stdio"},
		Extensions: []string{".ts", ".tsx"},
		RootFiles:  []string{"tsconfig.json", "package.json"},
	})

	r.Register(LanguageConfig{
		Language:   "javascript",
		Command:    "typescript-language-server",
		Args:       []string{"--stdio"},
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		RootFiles:  []string{"package.json", "jsconfig.json"},
	})

	// Languages beyond the syntax layer's grammars. The server probe
	// can still verify these when the binary is installed.
	r.Register(LanguageConfig{
		Language:   "rust",
		Command:    "rust-analyzer",
		Args:       []string{},
		Extensions: []string{".rs"},
		RootFiles:  []string{"Cargo.toml"},
	})

	r.Register(LanguageConfig{
		Language:   "java",
		Command:    "jdtls",
		Args:       []string{},
		Extensions: []string{".java"},
		RootFiles:  []string{"pom.xml", "build.gradle", "build.gradle.kts"},
	})

	r.Register(LanguageConfig{
		Language:   "c",
		Command:    "clangd",
		Args:       []string{},
		Extensions: []string{".c", ".h"},
		RootFiles:  []string{"compile_commands.json", "CMakeLists.txt", "Makefile"},
	})

	r.Register(LanguageConfig{
		Language:   "cpp",
		Command:    "clangd",
		Args:       []string{},
		Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx"},
		RootFiles:  []string{"compile_commands.json", "CMakeLists.txt", "Makefile"},
	})
}

// Register adds or replaces a language configuration and its
// extension mappings.
//
// Thread Safety: safe for concurrent use.
func (r *ConfigRegistry) Register(config LanguageConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[config.Language] = config
	for _, ext := range config.Extensions {
		r.byExt[ext] = config.Language
	}
}

// Get returns the configuration for a language identifier.
func (r *ConfigRegistry) Get(language string) (LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.byLanguage[language]
	return config, ok
}

// GetByExtension returns the configuration for the language that
// handles the given extension (with dot, case-sensitive).
func (r *ConfigRegistry) GetByExtension(ext string) (LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.byExt[ext]
	if !ok {
		return LanguageConfig{}, false
	}
	config, ok := r.byLanguage[lang]
	return config, ok
}

// Languages returns all registered language identifiers.
func (r *ConfigRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		langs = append(langs, lang)
	}
	return langs
}

// Extensions returns all mapped file extensions.
func (r *ConfigRegistry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}

// LanguageForExtension maps a file extension to its language identifier.
func (r *ConfigRegistry) LanguageForExtension(ext string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.byExt[ext]
	return lang, ok
}
