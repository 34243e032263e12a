package imagebuild

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanSteps(t *testing.T) {
	steps := PlanSteps("images", "fnproject", "1.45.0")
	require.Len(t, steps, 3)

	assert.Equal(t, StepBuildImage, steps[0].Name)
	assert.Equal(t, filepath.Join("images", "build", "1.45.0"), steps[0].ContextDir)
	assert.Equal(t, "fnproject/rust:1.45.0-build", steps[0].Tag)

	assert.Equal(t, StepRuntimeImage, steps[1].Name)
	assert.Equal(t, filepath.Join("images", "runtime", "1.45.0"), steps[1].ContextDir)
	assert.Equal(t, "fnproject/rust:1.45.0-rt", steps[1].Tag)

	assert.Equal(t, StepInitImage, steps[2].Name)
	assert.Equal(t, filepath.Join("images", "init"), steps[2].ContextDir)
	assert.Equal(t, "fnproject/rust:init", steps[2].Tag)
}

func TestPlanStepsInitContextIgnoresVersion(t *testing.T) {
	first := PlanSteps("/srv/images", "fnproject", "1.45.0")
	second := PlanSteps("/srv/images", "fnproject", "1.52.1")

	assert.Equal(t, first[2], second[2])
}
