package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"answer-engine/internal/domain/entity"
	"answer-engine/internal/domain/repository"
)

// Results returned in place of a handler's output when dispatch cannot
// produce one.
const (
	UnknownFunctionResult = "Unknown function."
	ToolErrorResult       = "Error during function execution."
)

// ToolRunner dispatches model-requested calls to a fixed table of handlers.
// The table is built once and only read afterwards.
type ToolRunner struct {
	tools  map[string]repository.Tool
	specs  []entity.ToolSpec
	logger *slog.Logger
}

func NewToolRunner(tools ...repository.Tool) *ToolRunner {
	r := &ToolRunner{
		tools:  make(map[string]repository.Tool, len(tools)),
		logger: slog.Default().With("component", "tool-runner"),
	}
	for _, t := range tools {
		if _, dup := r.tools[t.Spec.Name]; dup {
			continue
		}
		r.tools[t.Spec.Name] = t
		r.specs = append(r.specs, t.Spec)
	}
	return r
}

// Specs lists the registered tools in registration order.
func (r *ToolRunner) Specs() []entity.ToolSpec {
	return r.specs
}

// Dispatch never fails. Unknown names and handler errors or panics turn into
// sentinel results so sibling calls in the same turn still run.
func (r *ToolRunner) Dispatch(ctx context.Context, name string, args map[string]any) (result any) {
	tool, ok := r.tools[name]
	if !ok {
		r.logger.Error("unknown function called", "name", name)
		return UnknownFunctionResult
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "name", name,
				"err", fmt.Errorf("%w: %v", entity.ErrToolDispatch, p))
			result = ToolErrorResult
		}
	}()

	out, err := tool.Handler(ctx, args)
	if err != nil {
		r.logger.Error("tool failed", "name", name, "err", fmt.Errorf("%w: %w", entity.ErrToolDispatch, err))
		return ToolErrorResult
	}
	r.logger.Info("tool executed", "name", name)
	return out
}

// DispatchAll runs calls in order and records one invocation per call.
func (r *ToolRunner) DispatchAll(ctx context.Context, calls []entity.ToolCall) []entity.ToolInvocation {
	invocations := make([]entity.ToolInvocation, 0, len(calls))
	for _, call := range calls {
		invocations = append(invocations, entity.ToolInvocation{
			FunctionName: call.Name,
			Arguments:    call.Arguments,
			Response:     r.Dispatch(ctx, call.Name, call.Arguments),
		})
	}
	return invocations
}
