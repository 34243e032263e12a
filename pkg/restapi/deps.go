package restapi

import (
	"context"

	"github.com/fnproject/rust-images/internal/imagebuild"
	"github.com/fnproject/rust-images/internal/toolchain"
)

type Builder interface {
	Run(ctx context.Context, version string) (*imagebuild.Result, error)
}

type ToolchainStorage interface {
	GetAll() []toolchain.Image
	Exists(version string) bool
}
