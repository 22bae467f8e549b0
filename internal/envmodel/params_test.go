package envmodel

import (
	"testing"

	"github.com/cuenv/cuenv/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateParamsRequiresDeclaredFields(t *testing.T) {
	schema := model.ParamSchema{
		Named: map[string]model.Param{
			"target": {Required: true, Type: "string"},
			"dry_run": {Type: "bool"},
		},
	}

	err := ValidateParams(schema, map[string]any{"dry_run": true})
	require.Error(t, err)

	err = ValidateParams(schema, map[string]any{"target": "prod", "dry_run": true})
	require.NoError(t, err)

	err = ValidateParams(schema, map[string]any{"target": "prod", "extra": "nope"})
	assert.Error(t, err)
}
