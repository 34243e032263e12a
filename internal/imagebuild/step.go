package imagebuild

import "path/filepath"

const (
	StepBuildImage   = "build_image"
	StepRuntimeImage = "runtime_image"
	StepInitImage    = "init_image"
)

// Step is a single image build: a context directory and the tag
// the built image should get.
type Step struct {
	Name       string
	ContextDir string
	Tag        string
}

// PlanSteps computes the fixed sequence of builds for the given version:
// the build image, the runtime image and the shared init image, in that order.
func PlanSteps(imagesRoot, namespace, version string) []Step {
	return []Step{
		{
			Name:       StepBuildImage,
			ContextDir: filepath.Join(imagesRoot, "build", version),
			Tag:        BuildImageName(namespace, version),
		},
		{
			Name:       StepRuntimeImage,
			ContextDir: filepath.Join(imagesRoot, "runtime", version),
			Tag:        RuntimeImageName(namespace, version),
		},
		{
			Name:       StepInitImage,
			ContextDir: filepath.Join(imagesRoot, "init"),
			Tag:        InitImageName(namespace),
		},
	}
}
