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

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// =============================================================================
// MANAGER CONFIG
// =============================================================================

// ManagerConfig configures server lifecycle management.
type ManagerConfig struct {
	// IdleTimeout is how long a server may sit unused before it is
	// shut down. 0 disables idle shutdown.
	IdleTimeout time.Duration

	// StartupTimeout bounds process launch plus the initialize
	// handshake.
	StartupTimeout time.Duration

	// RequestTimeout is the default bound for individual requests.
	RequestTimeout time.Duration
}

// DefaultManagerConfig returns the stock lifecycle settings:
// 10 minute idle shutdown, 30 second startup, 10 second requests.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		IdleTimeout:    10 * time.Minute,
		StartupTimeout: 30 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns at most one server per language for one workspace.
//
// Description:
//
//	Servers start lazily on first use and are torn down when idle.
//	Verification traffic is bursty: a batch of lookups arrives, each
//	wanting the same language's server, so startup is serialized per
//	language with double-check locking to guarantee a single spawn.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Manager struct {
	config   ManagerConfig
	rootPath string
	configs  *ConfigRegistry

	servers   map[string]*Server
	serversMu sync.RWMutex
	startMu   sync.Map // language → *sync.Mutex serializing startup

	stopped  chan struct{}
	stopOnce sync.Once
}

// NewManager creates a manager rooted at the given workspace path.
func NewManager(rootPath string, config ManagerConfig) *Manager {
	return &Manager{
		config:   config,
		rootPath: rootPath,
		configs:  NewConfigRegistry(),
		servers:  make(map[string]*Server),
		stopped:  make(chan struct{}),
	}
}

// GetOrSpawn returns a ready server for the language, starting one if
// needed.
//
// Description:
//
//	Fast path returns a running server under a read lock. Otherwise
//	the per-language startup mutex is taken and the check repeated, so
//	concurrent callers for the same language produce exactly one
//	process. Dead servers are evicted and replaced.
//
// Errors:
//
//	ErrUnsupportedLanguage - no configuration for the language
//	ErrServerNotInstalled - binary not found
//	ErrInitializeFailed - handshake failed
//
// Thread Safety:
//
//	Safe for concurrent use.
func (m *Manager) GetOrSpawn(ctx context.Context, language string) (*Server, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}

	select {
	case <-m.stopped:
		return nil, fmt.Errorf("manager is stopped")
	default:
	}

	m.serversMu.RLock()
	server, ok := m.servers[language]
	m.serversMu.RUnlock()

	if ok && server.State() == ServerStateReady {
		return server, nil
	}

	lockI, _ := m.startMu.LoadOrStore(language, &sync.Mutex{})
	lock := lockI.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	// Re-check now that we hold the startup lock.
	m.serversMu.RLock()
	server, ok = m.servers[language]
	m.serversMu.RUnlock()

	if ok && server.State() == ServerStateReady {
		return server, nil
	}

	if ok && server.State() == ServerStateStopped {
		m.serversMu.Lock()
		delete(m.servers, language)
		m.serversMu.Unlock()
	}

	config, ok := m.configs.Get(language)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	server = NewServer(config, m.rootPath)

	startCtx := ctx
	if m.config.StartupTimeout > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, m.config.StartupTimeout)
		defer cancel()
	}

	if err := server.Start(startCtx); err != nil {
		return nil, err
	}

	m.serversMu.Lock()
	m.servers[language] = server
	m.serversMu.Unlock()

	return server, nil
}

// Get returns a ready server for the language, or nil. Never spawns.
func (m *Manager) Get(language string) *Server {
	m.serversMu.RLock()
	defer m.serversMu.RUnlock()

	server, ok := m.servers[language]
	if ok && server.State() == ServerStateReady {
		return server
	}
	return nil
}

// Shutdown stops the server for one language. No-op when none runs.
func (m *Manager) Shutdown(ctx context.Context, language string) error {
	m.serversMu.Lock()
	server, ok := m.servers[language]
	if ok {
		delete(m.servers, language)
	}
	m.serversMu.Unlock()

	if !ok {
		return nil
	}
	return server.Shutdown(ctx)
}

// ShutdownAll stops every server and marks the manager stopped.
// Further GetOrSpawn calls fail. Idempotent.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	m.stopOnce.Do(func() {
		close(m.stopped)
	})

	m.serversMu.Lock()
	servers := make(map[string]*Server, len(m.servers))
	for lang, srv := range m.servers {
		servers[lang] = srv
	}
	m.servers = make(map[string]*Server)
	m.serversMu.Unlock()

	var lastErr error
	for _, server := range servers {
		if err := server.Shutdown(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// IsAvailable reports whether the language has a configuration and
// its binary is on PATH. This is the availability signal the
// language-server check consults before counting itself in: a missing
// binary means abstain, not reject.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (m *Manager) IsAvailable(language string) bool {
	config, ok := m.configs.Get(language)
	if !ok {
		return false
	}
	_, err := exec.LookPath(config.Command)
	return err == nil
}

// RunningServers returns the languages with servers currently ready.
func (m *Manager) RunningServers() []string {
	m.serversMu.RLock()
	defer m.serversMu.RUnlock()

	langs := make([]string, 0, len(m.servers))
	for lang, srv := range m.servers {
		if srv.State() == ServerStateReady {
			langs = append(langs, lang)
		}
	}
	return langs
}

// Config returns the manager configuration.
func (m *Manager) Config() ManagerConfig {
	return m.config
}

// RootPath returns the workspace root path.
func (m *Manager) RootPath() string {
	return m.rootPath
}

// Configs returns the registry so callers can add custom languages.
func (m *Manager) Configs() *ConfigRegistry {
	return m.configs
}

// =============================================================================
// IDLE MONITOR
// =============================================================================

// StartIdleMonitor launches the background goroutine that shuts down
// idle servers. The check interval is half the idle timeout. Does
// nothing when IdleTimeout is 0.
func (m *Manager) StartIdleMonitor() {
	if m.config.IdleTimeout <= 0 {
		return
	}

	go func() {
		interval := m.config.IdleTimeout / 2
		if interval < time.Second {
			interval = time.Second
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stopped:
				return
			case <-ticker.C:
				m.shutdownIdle()
			}
		}
	}()
}

// shutdownIdle stops servers idle beyond the configured timeout.
func (m *Manager) shutdownIdle() {
	m.serversMu.RLock()
	var toShutdown []string
	for lang, srv := range m.servers {
		if srv.State() == ServerStateReady && time.Since(srv.LastUsed()) > m.config.IdleTimeout {
			toShutdown = append(toShutdown, lang)
		}
	}
	m.serversMu.RUnlock()

	ctx := context.Background()
	for _, lang := range toShutdown {
		slog.Info("Shutting down idle language server",
			slog.String("language", lang),
			slog.Duration("idle_timeout", m.config.IdleTimeout),
		)
		_ = m.Shutdown(ctx, lang)
	}
}
