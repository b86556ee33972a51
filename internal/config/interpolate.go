// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// newFileFunction returns the ${file("<path>")} builtin, reading
// through fs so tests can substitute an in-memory filesystem instead
// of touching disk (spec.md §6).
func newFileFunction(fs afero.Fs) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{
			Name: "path",
			Type: cty.String,
		}},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			path := args[0].AsString()
			data, err := afero.ReadFile(fs, path)
			if err != nil {
				return cty.UnknownVal(cty.String), err
			}
			return cty.StringVal(string(data)), nil
		},
	})
}

// builtinFunctions returns the function table available inside
// interpolations: file() plus a small set of stdlib string/collection
// helpers commonly needed in extra_data (e.g. join/format), mirroring
// the teacher's internal/lang function table without importing its
// whole (module-call-aware) function package.
func builtinFunctions(fs afero.Fs) map[string]function.Function {
	return map[string]function.Function{
		"file":   newFileFunction(fs),
		"join":   stdlib.JoinFunc,
		"format": stdlib.FormatFunc,
		"upper":  stdlib.UpperFunc,
		"lower":  stdlib.LowerFunc,
	}
}
