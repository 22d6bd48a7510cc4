package config

import (
	"os"
	"runtime"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// newEvalContext exposes num_cpu, the process environment as env.NAME and a
// few helper functions to configuration expressions.
func newEvalContext(environ []string) (*hcl.EvalContext, error) {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}

	envVal := cty.MapValEmpty(cty.String)
	if len(env) > 0 {
		var err error
		envVal, err = gocty.ToCtyValue(env, cty.Map(cty.String))
		if err != nil {
			return nil, err
		}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"num_cpu": cty.NumberIntVal(int64(runtime.NumCPU())),
			"env":     envVal,
		},
		Functions: map[string]function.Function{
			"max":      stdlib.MaxFunc,
			"min":      stdlib.MinFunc,
			"upper":    stdlib.UpperFunc,
			"lower":    stdlib.LowerFunc,
			"coalesce": stdlib.CoalesceFunc,
		},
	}, nil
}

// processEnviron is swapped in tests.
var processEnviron = os.Environ
