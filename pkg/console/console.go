// Package console provides the interactive prompt for the standalone
// CLI. It is a thin host collaborator: every line is translated into a
// logical command and handed to the controller, which treats the console
// exactly like any other control surface.
package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tinyland-inc/stagelink/pkg/core"
	"github.com/tinyland-inc/stagelink/pkg/dispatch"
)

// Run reads commands until EOF or "exit".
func Run(ctrl *core.Controller) error {
	rl, err := readline.New("stagelink> ")
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer rl.Close()

	fmt.Println("Type 'help' for commands.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if done := handle(ctrl, fields[0], fields[1:]); done {
			return nil
		}
	}
}

func handle(ctrl *core.Controller, cmd string, args []string) bool {
	switch cmd {
	case "help":
		printHelp()
	case "scenes":
		printScenes(ctrl)
	case "state":
		printState(ctrl)
	case "scene":
		if len(args) != 1 {
			fmt.Println("usage: scene <id>")
			return false
		}
		ctrl.Dispatch("show_scene", args[0])
	case "rec":
		ctrl.Dispatch("toggle_recording")
	case "stream":
		ctrl.Dispatch("toggle_streaming")
	case "call":
		if len(args) == 0 {
			fmt.Println("usage: call <method> [args...]")
			return false
		}
		callArgs := make([]any, 0, len(args))
		callArgs = append(callArgs, args[0])
		for _, a := range args[1:] {
			callArgs = append(callArgs, parseArg(a))
		}
		ctrl.Dispatch(dispatch.CommandCustom, callArgs...)
	case "exit", "quit":
		return true
	default:
		fmt.Printf("unknown command %q, try 'help'\n", cmd)
	}
	return false
}

func printHelp() {
	fmt.Println(`commands:
  scenes            list scenes, current one marked with *
  scene <id>        switch to a scene
  rec               toggle recording
  stream            toggle streaming
  call <m> [a...]   invoke a raw studio method (args parsed as JSON)
  state             show session state
  exit`)
}

func printScenes(ctrl *core.Controller) {
	s := ctrl.State()
	if len(s.Scenes) == 0 {
		fmt.Println("no scenes (not connected?)")
		return
	}
	for _, sc := range s.Scenes {
		marker := " "
		if sc.ID == s.CurrentSceneID {
			marker = "*"
		}
		fmt.Printf("%s %-12s %s\n", marker, sc.ID, sc.Name)
	}
}

func printState(ctrl *core.Controller) {
	s := ctrl.State()
	current := "-"
	if sc, ok := s.CurrentScene(); ok {
		current = sc.Name
	}
	fmt.Printf("scenes=%d current=%s recording=%v streaming=%v\n",
		len(s.Scenes), current, s.IsRecording, s.IsStreaming)
}

// parseArg interprets a console token as JSON where possible, so `true`,
// `3` and `"quoted"` keep their types while bare words stay strings.
func parseArg(tok string) any {
	var v any
	if err := json.Unmarshal([]byte(tok), &v); err == nil {
		return v
	}
	return tok
}
