package harness

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// SchemaError reports a scenario that does not satisfy the schema.
type SchemaError struct {
	Details string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return "scenario does not match schema:\n" + e.Details
}

var (
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
	schemaErr   error
)

// loadSchema compiles the embedded schema once. A cue.Context is not safe for
// concurrent use, so validation serializes on schemaMu.
func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile scenario schema: %w", err)
			return
		}
		schemaValue = v.LookupPath(cue.ParsePath("#Scenario"))
		if err := schemaValue.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #Scenario: %w", err)
		}
	})
	return schemaCtx, schemaValue, schemaErr
}

var schemaMu sync.Mutex

// validateSchema checks decoded YAML data against #Scenario.
func validateSchema(data map[string]any) error {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	ctx, schema, err := loadSchema()
	if err != nil {
		return err
	}

	v := schema.Unify(ctx.Encode(data))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &SchemaError{Details: strings.TrimSpace(errors.Details(err, nil))}
	}
	return nil
}
