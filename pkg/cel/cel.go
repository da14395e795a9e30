package cel

import (
	"encoding/json"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Context makes it easy to execute CEL expressions on a commit body.
type Context struct {
	env  *cel.Env
	Data map[string]interface{}
}

// New creates and returns a Context for evaluating expressions against a
// single commit, which is exposed to expressions as "context".
func New(commit interface{}) (*Context, error) {
	env, err := makeCelEnv()
	if err != nil {
		return nil, err
	}
	ctx, err := makeEvalContext(commit)
	if err != nil {
		return nil, err
	}
	return &Context{
		env:  env,
		Data: ctx,
	}, nil
}

// Evaluate evaluates the provided expression and returns the result.
func (c *Context) Evaluate(expr string) (ref.Val, error) {
	return evaluate(expr, c.env, c.Data)
}

// EvaluateBool evaluates the provided expression, requiring a boolean
// result.
func (c *Context) EvaluateBool(expr string) (bool, error) {
	res, err := c.Evaluate(expr)
	if err != nil {
		return false, err
	}
	b, ok := res.(types.Bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to a bool: %v", expr, res)
	}
	return bool(b), nil
}

func evaluate(expr string, env *cel.Env, data map[string]interface{}) (ref.Val, error) {
	parsed, issues := env.Parse(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}

	checked, issues := env.Check(parsed)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}

	prg, err := env.Program(checked)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.Eval(data)
	return out, err
}

func makeCelEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Declarations(
			decls.NewIdent("context", decls.Dyn, nil)))
}

func makeEvalContext(commit interface{}) (map[string]interface{}, error) {
	m, err := contextToMap(commit)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"context": m}, nil
}

func contextToMap(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	err = json.Unmarshal(b, &m)
	return m, err
}
