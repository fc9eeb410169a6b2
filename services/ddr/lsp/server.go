// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lsp manages language server subprocesses over JSON-RPC and
// exposes the operations the language-server probe asks of them:
// workspace symbol search, go-to-definition, and hover.
//
// Servers are spawned lazily per language by the Manager, speak the
// Language Server Protocol over stdio with Content-Length framing, and
// are shut down when idle. Nothing in this package interprets results;
// mapping LSP answers onto verification verdicts belongs to the caller.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// SERVER STATE
// =============================================================================

// ServerState tracks the lifecycle of a language server process.
type ServerState int32

const (
	// ServerStateUninitialized means Start has not been called.
	ServerStateUninitialized ServerState = iota

	// ServerStateStarting means the process is launching or initializing.
	ServerStateStarting

	// ServerStateReady means the server completed the initialize handshake.
	ServerStateReady

	// ServerStateStopping means shutdown is in progress.
	ServerStateStopping

	// ServerStateStopped means the process has exited or never started.
	ServerStateStopped
)

// String returns the lowercase state name.
func (s ServerState) String() string {
	switch s {
	case ServerStateUninitialized:
		return "uninitialized"
	case ServerStateStarting:
		return "starting"
	case ServerStateReady:
		return "ready"
	case ServerStateStopping:
		return "stopping"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// =============================================================================
// SERVER
// =============================================================================

// shutdownGrace is how long Shutdown waits for a clean exit before
// killing the process.
const shutdownGrace = 2 * time.Second

// Server is a single language server subprocess.
//
// Description:
//
//	Owns the process, the stdio pipes, and the JSON-RPC request
//	correlation state. Start launches the binary and runs the
//	initialize handshake; Request and Notify are only valid in the
//	ready state. Server-initiated requests (client/registerCapability
//	and friends) are answered with an empty success so servers that
//	insist on them keep functioning.
//
// Thread Safety:
//
//	Safe for concurrent use. Writes to the process are serialized;
//	responses are routed to waiting callers by request ID.
type Server struct {
	config   LanguageConfig
	rootPath string

	state atomic.Int32

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writeMu sync.Mutex

	nextID    atomic.Int64
	pending   map[int64]chan *jsonrpcMessage
	pendingMu sync.Mutex

	capsMu       sync.RWMutex
	capabilities ServerCapabilities

	lastUsed atomic.Int64 // unix nanos

	done     chan struct{} // closed when the process exits
	doneOnce sync.Once
}

// NewServer creates a server for the given language configuration.
// The server is not started; call Start.
func NewServer(config LanguageConfig, rootPath string) *Server {
	s := &Server{
		config:   config,
		rootPath: rootPath,
		pending:  make(map[int64]chan *jsonrpcMessage),
		done:     make(chan struct{}),
	}
	s.state.Store(int32(ServerStateUninitialized))
	s.touch()
	return s
}

// Language returns the language identifier this server handles.
func (s *Server) Language() string {
	return s.config.Language
}

// RootPath returns the workspace root the server was started in.
func (s *Server) RootPath() string {
	return s.rootPath
}

// State returns the current lifecycle state.
func (s *Server) State() ServerState {
	return ServerState(s.state.Load())
}

// LastUsed returns the time of the most recent request or notification.
func (s *Server) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Capabilities returns the capabilities reported during initialize.
// Zero value before the server is ready.
func (s *Server) Capabilities() ServerCapabilities {
	s.capsMu.RLock()
	defer s.capsMu.RUnlock()
	return s.capabilities
}

func (s *Server) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// Start launches the server process and performs the LSP handshake.
//
// Description:
//
//	Resolves the binary, starts the process with the workspace root
//	as working directory, spawns the reader goroutine, then sends
//	initialize followed by the initialized notification. On success
//	the server is ready for requests.
//
// Inputs:
//
//	ctx - Bounds the whole startup including the handshake.
//
// Errors:
//
//	ErrServerAlreadyStarted - Start was already called
//	ErrServerNotInstalled - binary not found on PATH
//	ErrInitializeFailed - handshake rejected or timed out
//
// Thread Safety:
//
//	Safe for concurrent use; only the first caller proceeds.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}

	if !s.state.CompareAndSwap(int32(ServerStateUninitialized), int32(ServerStateStarting)) {
		return ErrServerAlreadyStarted
	}

	binPath, err := exec.LookPath(s.config.Command)
	if err != nil {
		s.markStopped()
		return fmt.Errorf("%w: %s (command %q)", ErrServerNotInstalled, s.config.Language, s.config.Command)
	}

	cmd := exec.Command(binPath, s.config.Args...)
	cmd.Dir = s.rootPath

	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.markStopped()
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.markStopped()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.markStopped()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		s.markStopped()
		return fmt.Errorf("start %s: %w", s.config.Command, err)
	}

	s.cmd = cmd
	s.stdin = stdin

	go s.readLoop(bufio.NewReader(stdout))
	go s.drainStderr(stderr)
	go func() {
		_ = cmd.Wait()
		s.markStopped()
	}()

	if err := s.initialize(ctx); err != nil {
		_ = s.killProcess()
		s.markStopped()
		return fmt.Errorf("%w: %v", ErrInitializeFailed, err)
	}

	s.state.Store(int32(ServerStateReady))
	s.touch()

	slog.Info("Language server ready",
		slog.String("language", s.config.Language),
		slog.String("command", s.config.Command),
		slog.String("root", s.rootPath),
	)
	return nil
}

// initialize runs the LSP handshake on a starting server.
func (s *Server) initialize(ctx context.Context) error {
	params := InitializeParams{
		ProcessID: os.Getpid(),
		RootURI:   pathToURI(s.rootPath),
		Capabilities: ClientCapabilities{
			TextDocument: TextDocumentClientCapabilities{
				Definition: &DefinitionCapabilities{LinkSupport: true},
				Hover:      &HoverCapabilities{ContentFormat: []string{"markdown", "plaintext"}},
			},
			Workspace: &WorkspaceClientCapabilities{
				Symbol: &WorkspaceSymbolCapabilities{},
			},
		},
		InitializationOptions: s.config.InitializationOptions,
	}

	raw, err := s.request(ctx, "initialize", params)
	if err != nil {
		return err
	}

	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode initialize result: %w", err)
	}

	s.capsMu.Lock()
	s.capabilities = result.Capabilities
	s.capsMu.Unlock()

	return s.notify("initialized", struct{}{})
}

// Request sends a request and waits for the matching response.
//
// Inputs:
//
//	ctx - Bounds the wait. On cancellation the pending slot is freed.
//	method - LSP method name (e.g., "workspace/symbol").
//	params - Marshaled as the params object. May be nil.
//
// Outputs:
//
//	json.RawMessage - The raw result. May be the JSON literal null.
//	error - ErrServerNotRunning if not ready, the server's error
//	        object if it rejected the request, or ctx.Err().
//
// Thread Safety:
//
//	Safe for concurrent use.
func (s *Server) Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if s.State() != ServerStateReady {
		return nil, ErrServerNotRunning
	}
	return s.request(ctx, method, params)
}

// request is the state-agnostic core used by both Request and the
// initialize handshake.
func (s *Server) request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}

	id := s.nextID.Add(1)
	ch := make(chan *jsonrpcMessage, 1)

	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	msg := jsonrpcMessage{
		JSONRPC: "2.0",
		ID:      json.RawMessage(strconv.FormatInt(id, 10)),
		Method:  method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal %s params: %w", method, err)
		}
		msg.Params = data
	}

	if err := s.send(&msg); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	s.touch()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrServerNotRunning
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("%s: %w", method, resp.Error)
		}
		return resp.Result, nil
	}
}

// Notify sends a notification (no response expected).
//
// Thread Safety:
//
//	Safe for concurrent use.
func (s *Server) Notify(method string, params interface{}) error {
	if s.State() != ServerStateReady {
		return ErrServerNotRunning
	}
	s.touch()
	return s.notify(method, params)
}

// notify is the state-agnostic notification sender.
func (s *Server) notify(method string, params interface{}) error {
	msg := jsonrpcMessage{
		JSONRPC: "2.0",
		Method:  method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal %s params: %w", method, err)
		}
		msg.Params = data
	}
	return s.send(&msg)
}

// send writes one framed message to the server's stdin.
func (s *Server) send(msg *jsonrpcMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.stdin == nil {
		return ErrServerNotRunning
	}
	if _, err := fmt.Fprintf(s.stdin, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	_, err = s.stdin.Write(data)
	return err
}

// readLoop reads framed messages until the pipe closes, routing
// responses to waiting requests and answering server-side requests.
func (s *Server) readLoop(r *bufio.Reader) {
	for {
		payload, err := readMessage(r)
		if err != nil {
			break
		}

		var msg jsonrpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			slog.Debug("Discarding unparseable LSP message",
				slog.String("language", s.config.Language),
				slog.String("error", err.Error()),
			)
			continue
		}

		switch {
		case msg.Method != "" && len(msg.ID) > 0:
			// Server-initiated request. Reply with an empty success so
			// the server does not stall waiting on us.
			reply := jsonrpcMessage{
				JSONRPC: "2.0",
				ID:      msg.ID,
				Result:  json.RawMessage("null"),
			}
			_ = s.send(&reply)

		case msg.Method != "":
			// Notification (diagnostics, progress). Not our concern.

		default:
			s.dispatch(&msg)
		}
	}

	s.markStopped()
}

// dispatch routes a response to the request waiting on its ID.
func (s *Server) dispatch(msg *jsonrpcMessage) {
	id, err := strconv.ParseInt(strings.Trim(string(msg.ID), `"`), 10, 64)
	if err != nil {
		return
	}

	s.pendingMu.Lock()
	ch, ok := s.pending[id]
	s.pendingMu.Unlock()

	if ok {
		select {
		case ch <- msg:
		default:
		}
	}
}

// drainStderr logs server stderr lines at debug level.
func (s *Server) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		slog.Debug("Language server stderr",
			slog.String("language", s.config.Language),
			slog.String("line", scanner.Text()),
		)
	}
}

// readMessage reads one Content-Length framed message.
func readMessage(r *bufio.Reader) ([]byte, error) {
	contentLength := -1

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if name, value, found := strings.Cut(line, ":"); found {
			if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
				n, err := strconv.Atoi(strings.TrimSpace(value))
				if err != nil {
					return nil, fmt.Errorf("bad Content-Length %q: %w", value, err)
				}
				contentLength = n
			}
		}
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("message without Content-Length header")
	}

	payload := make([]byte, contentLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Shutdown stops the server gracefully.
//
// Description:
//
//	Sends shutdown and exit per the protocol, then waits briefly for
//	the process to leave. A process that lingers past the grace
//	period is killed. Idempotent; callable in any state.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (s *Server) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch s.State() {
	case ServerStateUninitialized, ServerStateStopped:
		s.markStopped()
		return nil
	case ServerStateStopping:
		return nil
	}

	s.state.Store(int32(ServerStateStopping))

	// Best-effort protocol shutdown.
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	_, _ = s.request(shutdownCtx, "shutdown", nil)
	_ = s.notify("exit", nil)

	s.writeMu.Lock()
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	s.writeMu.Unlock()

	select {
	case <-s.done:
	case <-time.After(shutdownGrace):
		_ = s.killProcess()
	case <-ctx.Done():
		_ = s.killProcess()
	}

	s.markStopped()
	return nil
}

// killProcess forcefully terminates the subprocess.
func (s *Server) killProcess() error {
	if s.cmd != nil && s.cmd.Process != nil {
		return s.cmd.Process.Kill()
	}
	return nil
}

// markStopped transitions to Stopped and fails all pending requests.
func (s *Server) markStopped() {
	s.state.Store(int32(ServerStateStopped))
	s.doneOnce.Do(func() {
		close(s.done)
	})

	s.pendingMu.Lock()
	for id, ch := range s.pending {
		select {
		case ch <- &jsonrpcMessage{Error: &ResponseError{Code: -32099, Message: "server stopped"}}:
		default:
		}
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()
}
