package planner

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/stratadb/strata/pkg/flake"
)

var celEnv *cel.Env

func init() {
	env, err := cel.NewEnv(
		cel.Variable("o", cel.DynType),
		cel.EagerlyValidateDeclarations(true),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to construct CEL filter env: %v", err))
	}
	celEnv = env
}

// compileExpression compiles a CEL filter over the decoded object value,
// bound to the variable "o". Compilation errors fail the query before
// execution; evaluation errors surface through the pipeline's error
// channel.
func compileExpression(expr string) (FilterFunc, error) {
	ast, issues := celEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := celEnv.Program(ast)
	if err != nil {
		return nil, err
	}

	return func(f *flake.Flake) (bool, error) {
		out, _, err := program.Eval(map[string]any{"o": f.Object.Native()})
		if err != nil {
			return false, fmt.Errorf("filter expression %q: %w", expr, err)
		}
		pass, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Errorf("filter expression %q is not boolean", expr)
		}
		return pass, nil
	}, nil
}
