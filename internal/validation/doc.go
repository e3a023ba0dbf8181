// Package validation merges schema and semantic findings into one result.
//
// # Overview
//
// Two validators look at every specification:
//
//  1. Schema - structural checks with no I/O (internal/schema)
//  2. Semantic - deeper checks, in-process or over HTTP (internal/semantic)
//
// Aggregate combines their results. Schema entries come first, in their
// original order, followed by semantic entries. Each entry's type is
// prefixed with its source label ("schema:duplicate", "python:dependency");
// entries without a type take the bare label.
//
// # Degraded mode
//
// The semantic layer is optional. When it is not configured, fails, or does
// not answer within the timeout, Validator returns the schema findings alone
// and marks the result Degraded. The failure is logged at WARN level and
// counted in metrics but never surfaces as an error.
//
// # Usage
//
//	v := validation.New(schema.New(),
//	    validation.WithSemantic(semantic.NewClient(url)),
//	    validation.WithTimeout(5*time.Second),
//	)
//	result := v.Validate(ctx, spec)
//	if !result.Valid() {
//	    for _, e := range result.Errors {
//	        fmt.Println(e)
//	    }
//	}
package validation
