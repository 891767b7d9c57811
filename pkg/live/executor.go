package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/recera/dicomview/pkg/toolkit"
	"github.com/recera/dicomview/pkg/viewer"
)

// Executor runs commands sent by the server against the client's own
// toolkit and view.
type Executor struct {
	Toolkit toolkit.Toolkit
	View    viewer.View

	// Surface resolves a surface id, default wraps it in toolkit.SurfaceID
	Surface func(id string) (toolkit.Surface, error)
}

// HandleFrame decodes a command frame, runs it and returns the encoded reply.
// The reply is nil for commands that expect none.
func (e *Executor) HandleFrame(ctx context.Context, data []byte) ([]byte, error) {
	cmd, err := DecodeCommand(data)
	if err != nil {
		return nil, err
	}
	result, err := e.Execute(ctx, *cmd)
	if cmd.Seq == 0 {
		if err != nil {
			log.Printf("[Live Client] ⚠️  %s failed: %v", cmd.Op, err)
		}
		return nil, nil
	}
	reply := Reply{Seq: cmd.Seq, Result: result}
	if err != nil {
		reply.Err = err.Error()
	}
	return EncodeReply(reply), nil
}

// Execute runs one command and returns its result
func (e *Executor) Execute(ctx context.Context, cmd Command) (string, error) {
	args := commandArgs(cmd)

	switch cmd.Op {
	case OpEnable:
		s, err := e.surfaceArg(args, 0)
		if err != nil {
			return "", err
		}
		return "", e.Toolkit.Enable(s)

	case OpLoad:
		id, err := args.at(0)
		if err != nil {
			return "", err
		}
		img, err := e.Toolkit.LoadImage(ctx, id)
		if err != nil {
			return "", err
		}
		return encodeJSON(img)

	case OpDisplay:
		s, err := e.surfaceArg(args, 0)
		if err != nil {
			return "", err
		}
		img, err := e.imageArg(args, 1)
		if err != nil {
			return "", err
		}
		var vp *toolkit.Viewport
		if raw, _ := args.at(2); raw != "" {
			vp = &toolkit.Viewport{}
			if err := json.Unmarshal([]byte(raw), vp); err != nil {
				return "", fmt.Errorf("%s viewport: %w", cmd.Op, ErrBadCommand)
			}
		}
		return "", e.Toolkit.DisplayImage(s, img, vp)

	case OpViewportGet:
		s, err := e.surfaceArg(args, 0)
		if err != nil {
			return "", err
		}
		vp, err := e.Toolkit.GetViewport(s)
		if err != nil {
			return "", err
		}
		return encodeJSON(vp)

	case OpViewportSet:
		s, err := e.surfaceArg(args, 0)
		if err != nil {
			return "", err
		}
		raw, err := args.at(1)
		if err != nil {
			return "", err
		}
		var vp toolkit.Viewport
		if err := json.Unmarshal([]byte(raw), &vp); err != nil {
			return "", fmt.Errorf("%s viewport: %w", cmd.Op, ErrBadCommand)
		}
		return "", e.Toolkit.SetViewport(s, vp)

	case OpViewportDefault:
		s, err := e.surfaceArg(args, 0)
		if err != nil {
			return "", err
		}
		img, err := e.imageArg(args, 1)
		if err != nil {
			return "", err
		}
		vp, err := e.Toolkit.DefaultViewport(s, img)
		if err != nil {
			return "", err
		}
		return encodeJSON(vp)

	case OpToolAdd:
		name, err := args.at(0)
		if err != nil {
			return "", err
		}
		return "", e.Toolkit.AddTool(toolkit.ToolName(name))

	case OpToolActivate:
		name, err := args.at(0)
		if err != nil {
			return "", err
		}
		raw, err := args.at(1)
		if err != nil {
			return "", err
		}
		mask, err := strconv.Atoi(raw)
		if err != nil {
			return "", fmt.Errorf("%s mask %q: %w", cmd.Op, raw, ErrBadCommand)
		}
		return "", e.Toolkit.SetToolActive(toolkit.ToolName(name), toolkit.MouseButton(mask))

	case OpToolClear:
		s, err := e.surfaceArg(args, 0)
		if err != nil {
			return "", err
		}
		name, err := args.at(1)
		if err != nil {
			return "", err
		}
		return "", e.Toolkit.ClearToolState(s, toolkit.ToolName(name))

	case OpViewStatus:
		text, err := args.at(0)
		if err != nil {
			return "", err
		}
		e.View.SetStatus(text)
		return "", nil

	case OpViewPlay:
		label, err := args.at(0)
		if err != nil {
			return "", err
		}
		e.View.SetPlayLabel(label)
		return "", nil

	case OpViewInputs, OpViewLabels:
		if len(args.values) != 2 {
			return "", fmt.Errorf("%s wants 2 args: %w", cmd.Op, ErrBadCommand)
		}
		if cmd.Op == OpViewInputs {
			e.View.SetWindowInputs(args.values[0], args.values[1])
		} else {
			e.View.SetWindowLabels(args.values[0], args.values[1])
		}
		return "", nil

	case OpViewMeasurements:
		e.View.SetMeasurements(args.values)
		return "", nil
	}
	return "", fmt.Errorf("unknown op %q: %w", cmd.Op, ErrBadCommand)
}

func (e *Executor) surfaceArg(args cmdArgs, i int) (toolkit.Surface, error) {
	id, err := args.at(i)
	if err != nil {
		return nil, err
	}
	if e.Surface != nil {
		return e.Surface(id)
	}
	return toolkit.SurfaceID(id), nil
}

func (e *Executor) imageArg(args cmdArgs, i int) (*toolkit.Image, error) {
	id, err := args.at(i)
	if err != nil {
		return nil, err
	}
	return e.Toolkit.GetImage(id)
}

type cmdArgs struct {
	op     string
	values []string
}

func commandArgs(cmd Command) cmdArgs {
	return cmdArgs{op: cmd.Op, values: cmd.Args}
}

func (a cmdArgs) at(i int) (string, error) {
	if i >= len(a.values) {
		return "", fmt.Errorf("%s missing arg %d: %w", a.op, i, ErrBadCommand)
	}
	return a.values[i], nil
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
