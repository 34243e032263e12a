package imagebuild

import (
	"context"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type buildCall struct {
	contextDir string
	tag        string
}

type imageBuilderMock struct {
	calls []buildCall

	// failAt makes the n-th build (1-based) fail; 0 disables failures.
	failAt int
	err    error
}

func (m *imageBuilderMock) buildImage(_ context.Context, contextDir, tag string) error {
	m.calls = append(m.calls, buildCall{contextDir: contextDir, tag: tag})
	if m.failAt != 0 && len(m.calls) == m.failAt {
		return m.err
	}

	return nil
}

func (m *imageBuilderMock) inspectImage(_ context.Context, tag string) (types.ImageInspect, error) {
	return types.ImageInspect{ID: "sha256:deadbeef", Size: 42}, nil
}

func newTestPipeline(engine imageBuilder) *Pipeline {
	cfg := DefaultConfig
	cfg.BuildTimeout = 0

	return newPipeline(zlog.Logger, cfg, engine)
}

func TestPipelineRunBuildsAllImagesInOrder(t *testing.T) {
	engine := &imageBuilderMock{}
	p := newTestPipeline(engine)

	result, err := p.Run(context.Background(), "1.45.0")
	require.NoError(t, err)

	require.Len(t, engine.calls, 3)
	assert.Equal(t, "fnproject/rust:1.45.0-build", engine.calls[0].tag)
	assert.Equal(t, "fnproject/rust:1.45.0-rt", engine.calls[1].tag)
	assert.Equal(t, "fnproject/rust:init", engine.calls[2].tag)

	assert.Contains(t, engine.calls[0].contextDir, "build")
	assert.Contains(t, engine.calls[1].contextDir, "runtime")
	assert.Contains(t, engine.calls[2].contextDir, "init")

	assert.Equal(t, "1.45.0", result.Version)
	assert.Equal(t, []string{
		"fnproject/rust:1.45.0-build",
		"fnproject/rust:1.45.0-rt",
		"fnproject/rust:init",
	}, result.ImageTags)
}

func TestPipelineRunFailsFastOnFirstStep(t *testing.T) {
	engine := &imageBuilderMock{failAt: 1, err: errors.New("daemon is down")}
	p := newTestPipeline(engine)

	result, err := p.Run(context.Background(), "1.45.0")
	require.Error(t, err)
	assert.Nil(t, result)

	// The runtime and init builds must never start.
	assert.Len(t, engine.calls, 1)
	assert.Contains(t, err.Error(), StepBuildImage)
	assert.Contains(t, err.Error(), "daemon is down")
}

func TestPipelineRunPropagatesLastStepFailure(t *testing.T) {
	engine := &imageBuilderMock{failAt: 3, err: errors.New("no space left")}
	p := newTestPipeline(engine)

	_, err := p.Run(context.Background(), "1.45.0")
	require.Error(t, err)

	assert.Len(t, engine.calls, 3)
	assert.Contains(t, err.Error(), StepInitImage)
	assert.Contains(t, err.Error(), "no space left")
}

func TestPipelineRunRejectsEmptyVersion(t *testing.T) {
	engine := &imageBuilderMock{}
	p := newTestPipeline(engine)

	_, err := p.Run(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyVersion)
	assert.Empty(t, engine.calls)
}
