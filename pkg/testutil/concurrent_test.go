package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "formproof/pkg/domain-errors"
)

func TestRunConcurrentCategorisesByCode(t *testing.T) {
	result := RunConcurrent(8, func(idx int) error {
		switch idx % 4 {
		case 0:
			return nil
		case 1:
			return dErrors.New(dErrors.CodeConflict, "taken")
		case 2:
			return dErrors.Wrap(errors.New("no rows"), dErrors.CodeNotFound, "missing")
		default:
			return errors.New("boom")
		}
	})
	assert.Equal(t, int32(2), result.Successes)
	assert.Equal(t, int32(2), result.Conflicts)
	assert.Equal(t, int32(2), result.NotFounds)
	assert.Equal(t, int32(2), result.Errors)
	assert.Equal(t, int32(8), result.Total())
}

func TestRunConcurrentCtxPassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	result := RunConcurrentCtx(ctx, 3, func(ctx context.Context, _ int) error {
		if ctx.Value(key{}) != "v" {
			return errors.New("context lost")
		}
		return nil
	})
	assert.Equal(t, int32(3), result.Successes)
}

func TestFormBuilderProducesExtractableDefinition(t *testing.T) {
	form := NewFormBuilder().
		WithField("notes").
		WithVCField("given", "BCSC", "given_name", "required").
		WithLegacyVCField("family", "BCSC", "family_name", "optional").
		Build()

	schema, ok := form.Definition["formSchema"].(map[string]any)
	assert.True(t, ok)
	assert.Len(t, schema["components"], 3)
}
