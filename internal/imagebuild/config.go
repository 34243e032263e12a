package imagebuild

import "time"

type Config struct {
	// Namespace is the image namespace the produced tags live in,
	// e.g. "fnproject" for fnproject/rust:1.45.0-build.
	Namespace string

	// ImagesRoot is the directory holding the build contexts:
	// <root>/build/<version>, <root>/runtime/<version> and <root>/init.
	ImagesRoot string

	// DaemonURL overrides the Docker daemon address.
	// If nil, the client settings are taken from the environment.
	DaemonURL *string

	// BuildTimeout bounds a single build step. If 0, steps are unbounded.
	BuildTimeout time.Duration
}

var DefaultConfig = Config{
	Namespace:  "fnproject",
	ImagesRoot: "images",

	DaemonURL: nil,

	BuildTimeout: 30 * time.Minute,
}
