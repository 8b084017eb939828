// Package dispatch translates logical control-surface commands into
// remote method invocations on the session root object. Each command
// carries a priority-ordered list of acceptable remote method names so
// the module keeps working across studio API revisions without a new
// release: the first name the studio declared wins.
package dispatch

import (
	"encoding/json"

	"github.com/tinyland-inc/stagelink/pkg/bridge"
	"github.com/tinyland-inc/stagelink/pkg/logger"
)

// CommandCustom invokes an arbitrary studio method; the first argument
// names the method, the rest are passed through positionally.
const CommandCustom = "custom_command"

// commandAliases is the capability lookup table: logical command name to
// candidate remote method names, in priority order.
var commandAliases = map[string][]string{
	"show_scene":       {"showScene", "setCurrentScene", "switchToScene"},
	"toggle_recording": {"toggleRecording", "recordToggle"},
	"start_recording":  {"startRecording", "recordStart"},
	"stop_recording":   {"stopRecording", "recordStop"},
	"toggle_streaming": {"toggleStreaming", "streamToggle"},
	"start_streaming":  {"startStreaming", "streamStart"},
	"stop_streaming":   {"stopStreaming", "streamStop"},
}

// Commands returns the known logical command names (excluding
// custom_command), for console completion.
func Commands() []string {
	out := make([]string, 0, len(commandAliases))
	for k := range commandAliases {
		out = append(out, k)
	}
	return out
}

// Dispatcher resolves and fires commands against the current proxy.
type Dispatcher struct {
	root func() *bridge.RemoteObject
}

// New creates a Dispatcher. root is queried at dispatch time and may
// return nil while the bridge is down; commands arriving then are
// dropped, never queued for replay.
func New(root func() *bridge.RemoteObject) *Dispatcher {
	return &Dispatcher{root: root}
}

// Dispatch fires one command. Failures never propagate: an unready
// proxy, an exhausted alias list, or a failed invocation each produce a
// log entry and nothing else; the operator re-triggers after the
// condition clears.
func (d *Dispatcher) Dispatch(command string, args ...any) {
	root := d.root()
	if root == nil {
		logger.WarnCF("dispatch", "Command dropped, bridge not ready", map[string]any{"command": command})
		return
	}

	method, callArgs, ok := d.resolve(root, command, args)
	if !ok {
		return
	}

	err := root.Invoke(method, callArgs, func(result json.RawMessage, err error) {
		if err != nil {
			logger.WarnCF("dispatch", "Command failed", map[string]any{
				"command": command,
				"method":  method,
				"error":   err.Error(),
			})
			return
		}
		logger.DebugCF("dispatch", "Command acknowledged", map[string]any{
			"command": command,
			"method":  method,
			"result":  string(result),
		})
	})
	if err != nil {
		logger.WarnCF("dispatch", "Command invoke failed", map[string]any{
			"command": command,
			"method":  method,
			"error":   err.Error(),
		})
	}
}

func (d *Dispatcher) resolve(root *bridge.RemoteObject, command string, args []any) (string, []any, bool) {
	if command == CommandCustom {
		if len(args) == 0 {
			logger.WarnC("dispatch", "custom_command requires a method name argument")
			return "", nil, false
		}
		method, ok := args[0].(string)
		if !ok || method == "" {
			logger.WarnCF("dispatch", "custom_command method name invalid", map[string]any{"arg": args[0]})
			return "", nil, false
		}
		if !root.HasMethod(method) {
			logger.WarnCF("dispatch", "Studio does not declare method", map[string]any{"method": method})
			return "", nil, false
		}
		return method, args[1:], true
	}

	aliases, ok := commandAliases[command]
	if !ok {
		logger.WarnCF("dispatch", "Unknown command", map[string]any{"command": command})
		return "", nil, false
	}
	for _, method := range aliases {
		if root.HasMethod(method) {
			return method, args, true
		}
	}
	logger.WarnCF("dispatch", "No declared method for command", map[string]any{
		"command": command,
		"tried":   aliases,
	})
	return "", nil, false
}
