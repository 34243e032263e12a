package imagebuild

import (
	"context"
	"io"
	"os"

	dockerignore "github.com/docker/cli/cli/command/image/build"
	"github.com/docker/docker/api/types"
	dockercli "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/idtools"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/term"
	"github.com/pkg/errors"
)

// engineProvider simplifies communication with Docker Engine API.
type engineProvider struct {
	cli *dockercli.Client
	out io.Writer
}

func newProvider(daemonURL *string) (*engineProvider, error) {
	opts := []dockercli.Opt{
		dockercli.FromEnv,
		dockercli.WithAPIVersionNegotiation(),
	}
	if daemonURL != nil {
		opts = append(opts, dockercli.WithHost(*daemonURL))
	}

	cli, err := dockercli.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create docker client")
	}

	return &engineProvider{
		cli: cli,
		out: os.Stdout,
	}, nil
}

// buildImage tars the given context directory and asks the daemon to build
// an image tagged tag from it. The daemon output is streamed to p.out live;
// a failed build surfaces as an error record in the stream and is returned.
func (p *engineProvider) buildImage(ctx context.Context, contextDir, tag string) error {
	stat, err := os.Stat(contextDir)
	if err != nil {
		return errors.Wrap(err, "build context cannot be read")
	}
	if !stat.IsDir() {
		return errors.Errorf("build context %s is not a directory", contextDir)
	}

	excludes, err := dockerignore.ReadDockerignore(contextDir)
	if err != nil {
		return errors.Wrap(err, "failed to read .dockerignore")
	}

	buildCtx, err := archive.TarWithOptions(contextDir, &archive.TarOptions{
		ExcludePatterns: excludes,
		ChownOpts:       &idtools.Identity{UID: 0, GID: 0},
	})
	if err != nil {
		return errors.Wrap(err, "failed to tar the build context")
	}
	defer buildCtx.Close()

	resp, err := p.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{tag},
		Dockerfile:  "Dockerfile",
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return errors.Wrap(err, "image build request failed")
	}
	defer resp.Body.Close()

	fd, isTerm := term.GetFdInfo(p.out)
	err = jsonmessage.DisplayJSONMessagesStream(resp.Body, p.out, fd, isTerm, nil)
	if err != nil {
		return errors.Wrap(err, "image build failed")
	}

	return nil
}

func (p *engineProvider) inspectImage(ctx context.Context, tag string) (types.ImageInspect, error) {
	inspect, _, err := p.cli.ImageInspectWithRaw(ctx, tag)

	return inspect, err
}
