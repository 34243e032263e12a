package imagebuild

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fnproject/rust-images/internal/metrics"

	"github.com/docker/docker/api/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var ErrEmptyVersion = errors.New("version must not be empty")

// imageBuilder abstracts the Docker engine, so the pipeline
// can be exercised without a running daemon.
type imageBuilder interface {
	buildImage(ctx context.Context, contextDir, tag string) error
	inspectImage(ctx context.Context, tag string) (types.ImageInspect, error)
}

// Pipeline builds the function runtime images for a requested Rust version.
//
// Steps run strictly one after another and the first failure aborts the whole
// run. Partially built images are left in the local store untouched.
type Pipeline struct {
	logger zerolog.Logger
	cfg    Config
	engine imageBuilder
}

func NewPipeline(logger zerolog.Logger, cfg Config) (*Pipeline, error) {
	root, err := filepath.Abs(cfg.ImagesRoot)
	if err != nil {
		return nil, errors.Wrap(err, "images root cannot be resolved")
	}
	cfg.ImagesRoot = root

	engine, err := newProvider(cfg.DaemonURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Docker engine provider")
	}

	return newPipeline(logger, cfg, engine), nil
}

func newPipeline(logger zerolog.Logger, cfg Config, engine imageBuilder) *Pipeline {
	return &Pipeline{
		logger: logger,
		cfg:    cfg,
		engine: engine,
	}
}

// Result describes a fully succeeded pipeline run.
type Result struct {
	Version   string
	ImageTags []string
	Elapsed   time.Duration
}

// Run builds the build, runtime and init images for the given version.
func (p *Pipeline) Run(ctx context.Context, version string) (*Result, error) {
	if version == "" {
		return nil, ErrEmptyVersion
	}

	startedAt := time.Now()
	result := &Result{Version: version}

	for _, step := range PlanSteps(p.cfg.ImagesRoot, p.cfg.Namespace, version) {
		err := p.runStep(ctx, version, step)
		if err != nil {
			return nil, errors.Wrapf(err, "step %s failed", step.Name)
		}

		result.ImageTags = append(result.ImageTags, step.Tag)
	}

	result.Elapsed = time.Since(startedAt)
	p.logger.Info().
		Str("version", version).
		Strs("images", result.ImageTags).
		Dur("elapsed", result.Elapsed).
		Msg("all images have been built")

	return result, nil
}

func (p *Pipeline) runStep(ctx context.Context, version string, step Step) (err error) {
	if p.cfg.BuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.BuildTimeout)
		defer cancel()
	}

	// Announce the step before execution, the way the daemon invocation
	// would be echoed by a shell trace.
	p.logger.Info().
		Str("step", step.Name).
		Str("tag", step.Tag).
		Str("context", step.ContextDir).
		Msg("docker build")

	startedAt := time.Now()
	defer func() {
		metrics.BuildPipeline.Step(err == nil, step.Name, version, startedAt)
	}()

	err = p.engine.buildImage(ctx, step.ContextDir, step.Tag)
	if err != nil {
		return err
	}

	inspect, err := p.engine.inspectImage(ctx, step.Tag)
	if err != nil {
		return errors.Wrap(err, "built image cannot be inspected")
	}

	p.logger.Debug().
		Str("tag", step.Tag).
		Str("image_id", inspect.ID).
		Int64("size", inspect.Size).
		Msg("image has been built")

	return nil
}
