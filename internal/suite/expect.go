package suite

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/shyim/kvprobe/internal/executor"
)

// expectEnv exposes an outcome to expect expressions. Every key is always
// present so expressions type-check the same way for every response.
func expectEnv(o *executor.Outcome) map[string]interface{} {
	env := map[string]interface{}{
		"status":      o.StatusCode,
		"body":        string(o.Body),
		"data":        nil,
		"versions":    []interface{}{},
		"redirect":    "",
		"clocks":      []interface{}{},
		"duration_ms": o.Duration.Milliseconds(),
		"url":         o.URL,
		"command":     o.Command.Kind().String(),
	}

	switch payload := o.Payload.(type) {
	case map[string]interface{}:
		if data, ok := payload["data"]; ok {
			env["data"] = data
		}

		if address, ok := payload["address"].(string); ok {
			env["redirect"] = address
		}
	case []interface{}:
		if o.Command.Kind().IsWrite() {
			env["clocks"] = payload
		} else {
			env["versions"] = payload
		}
	}

	return env
}

func compileExpect(expression string) (*vm.Program, error) {
	program, err := expr.Compile(expression, expr.Env(expectEnv(&executor.Outcome{})), expr.AsBool())

	if err != nil {
		return nil, fmt.Errorf("expect %q: %w", expression, err)
	}

	return program, nil
}

func runExpect(program *vm.Program, o *executor.Outcome) (bool, error) {
	output, err := expr.Run(program, expectEnv(o))

	if err != nil {
		return false, err
	}

	return output.(bool), nil
}
