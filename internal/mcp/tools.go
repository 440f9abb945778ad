package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jstsdebug/internal/cdp"
	"jstsdebug/internal/metrics"
	"jstsdebug/internal/registry"
	"jstsdebug/internal/sandbox"
)

// Facade wires the MCP server to the session registry and sandbox
// provisioner, exposing exactly the three tools spec.md §6 names:
// create_session, execute_commands, close_session.
type Facade struct {
	server      *MCPServer
	registry    *registry.Registry
	provisioner *sandbox.Provisioner
	timeout     time.Duration
	log         *zap.Logger
}

// NewFacade constructs a Facade and registers its tools on a fresh
// MCPServer.
func NewFacade(reg *registry.Registry, provisioner *sandbox.Provisioner, timeout time.Duration, log *zap.Logger) *Facade {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = cdp.DefaultTimeout
	}
	f := &Facade{
		server:      NewMCPServer("jstsdebug", "1.0.0"),
		registry:    reg,
		provisioner: provisioner,
		timeout:     timeout,
		log:         log,
	}
	f.registerTools()
	return f
}

// Server returns the underlying MCP server, for mounting its WebSocket
// handler on an HTTP router.
func (f *Facade) Server() *MCPServer {
	return f.server
}

func (f *Facade) registerTools() {
	f.server.RegisterTool(Tool{
		Name: "create_session",
		Description: fmt.Sprintf(
			"Start a debug session: build a sandboxed container running the given TypeScript/JavaScript code under a CDP-attached debugger, and return the events produced before it first quiesces. "+
				"The code is written to /app/entrypoint.ts; the project this server was started against is mounted read-write at /app/%s/, so breakpoints set under that path resolve.",
			f.provisioner.PackageName(),
		),
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"code":    map[string]interface{}{"type": "string", "description": "Entry script contents, written to /app/entrypoint.ts"},
				"timeout": map[string]interface{}{"type": "number", "description": "Session timeout in seconds"},
			},
			"required": []interface{}{"code"},
		},
	}, f.createSession)

	f.server.RegisterTool(Tool{
		Name:        "execute_commands",
		Description: "Send a sequence of CDP commands to a session and return every response and event produced, in order, up to the next quiescent point.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"session_id": map[string]interface{}{"type": "string"},
				"commands": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"method": map[string]interface{}{"type": "string"},
							"params": map[string]interface{}{"type": "object"},
						},
						"required": []interface{}{"method"},
					},
				},
				"allow_unknown_command": map[string]interface{}{"type": "boolean"},
			},
			"required": []interface{}{"session_id", "commands"},
		},
	}, f.executeCommands)

	f.server.RegisterTool(Tool{
		Name:        "close_session",
		Description: "Stop a debug session and tear down its sandboxed container.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"session_id": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"session_id"},
		},
	}, f.closeSession)
}

type createSessionArgs struct {
	Code           string         `json:"code"`
	TimeoutSeconds float64        `json:"timeout"`
	PackageJSON    map[string]any `json:"package_json,omitempty"`
	TSConfigJSON   map[string]any `json:"tsconfig_json,omitempty"`
}

func (f *Facade) createSession(ctx context.Context, arguments map[string]interface{}) (res *ToolCallResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, errorEnvelope(fmt.Errorf("panic: %v", r), string(debug.Stack()))
		}
	}()

	var args createSessionArgs
	if err := remarshal(arguments, &args); err != nil {
		return nil, err
	}
	if args.Code == "" {
		return nil, fmt.Errorf("code is required")
	}

	timeout := f.timeout
	if args.TimeoutSeconds > 0 {
		timeout = time.Duration(args.TimeoutSeconds * float64(time.Second))
	}

	start := time.Now()
	debuggee, err := f.provisioner.Provision(ctx, args.Code, args.PackageJSON, args.TSConfigJSON)
	metrics.ObserveProvisionDuration(time.Since(start).Seconds())
	if err != nil {
		return toolError(err), nil
	}

	transport, err := cdp.Dial(ctx, debuggee.WebSocketURL)
	if err != nil {
		_ = debuggee.Close(ctx)
		return toolError(err), nil
	}

	sessionID := uuid.NewString()
	session := cdp.NewSession(sessionID, transport, debuggee, timeout, f.log)
	f.registry.Put(session)
	metrics.IncSessionsCreated()
	metrics.SetActiveSessions(f.registry.Len())

	items, err := session.Initialize(ctx)
	if err != nil && cdp.IsFatal(err) {
		f.registry.Remove(sessionID)
		_ = session.Close(ctx)
		metrics.SetActiveSessions(f.registry.Len())
		return toolError(err), nil
	}

	return jsonResult(map[string]interface{}{
		"session_id":       sessionID,
		"execution_result": items,
	}), nil
}

type executeCommandsArgs struct {
	SessionID           string        `json:"session_id"`
	Commands            []cdp.Command `json:"commands"`
	AllowUnknownCommand bool          `json:"allow_unknown_command"`
}

func (f *Facade) executeCommands(ctx context.Context, arguments map[string]interface{}) (res *ToolCallResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, errorEnvelope(fmt.Errorf("panic: %v", r), string(debug.Stack()))
		}
	}()

	var args executeCommandsArgs
	if err := remarshal(arguments, &args); err != nil {
		return nil, err
	}

	session, ok := f.registry.Get(args.SessionID)
	if !ok {
		return toolError(fmt.Errorf("unknown session: %s", args.SessionID)), nil
	}

	items, err := session.ExecuteBatch(ctx, args.Commands, args.AllowUnknownCommand)
	for _, cmd := range args.Commands {
		metrics.IncCommandsExecuted(cmd.Method)
	}
	if err != nil {
		if cdp.IsFatal(err) {
			_ = f.registry.Close(ctx, args.SessionID)
			metrics.SetActiveSessions(f.registry.Len())
		}
		metrics.IncCommandErrors(errorClass(err))
		return jsonResult(map[string]interface{}{
			"execution_result": items,
			"error":            err.Error(),
		}), nil
	}

	return jsonResult(map[string]interface{}{
		"execution_result": items,
	}), nil
}

type closeSessionArgs struct {
	SessionID string `json:"session_id"`
}

func (f *Facade) closeSession(ctx context.Context, arguments map[string]interface{}) (*ToolCallResult, error) {
	var args closeSessionArgs
	if err := remarshal(arguments, &args); err != nil {
		return nil, err
	}

	if err := f.registry.Close(ctx, args.SessionID); err != nil {
		return toolError(err), nil
	}
	metrics.IncSessionsClosed()
	metrics.SetActiveSessions(f.registry.Len())

	return jsonResult(map[string]interface{}{"status": "closed"}), nil
}

func remarshal(arguments map[string]interface{}, dst interface{}) error {
	buf, err := json.Marshal(arguments)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(buf, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func jsonResult(v interface{}) *ToolCallResult {
	buf, err := json.Marshal(v)
	if err != nil {
		return toolError(err)
	}
	return &ToolCallResult{Content: []ContentBlock{{Type: "text", Text: string(buf)}}}
}

func toolError(err error) *ToolCallResult {
	return jsonResultWithError(err, "")
}

func errorEnvelope(err error, stack string) error {
	return fmt.Errorf("%w\n%s", err, stack)
}

func jsonResultWithError(err error, stackTrace string) *ToolCallResult {
	buf, _ := json.Marshal(map[string]interface{}{
		"error":       err.Error(),
		"stack_trace": stackTrace,
	})
	return &ToolCallResult{Content: []ContentBlock{{Type: "text", Text: string(buf)}}, IsError: true}
}

func errorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case cdp.IsFatal(err):
		return "fatal"
	default:
		return "per_command"
	}
}
