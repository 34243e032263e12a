package imagebuild

import "fmt"

// All produced images live in the <namespace>/rust repository.
const imageRepository = "rust"

func BuildImageName(namespace, version string) string {
	return fmt.Sprintf("%s/%s:%s-build", namespace, imageRepository, version)
}

func RuntimeImageName(namespace, version string) string {
	return fmt.Sprintf("%s/%s:%s-rt", namespace, imageRepository, version)
}

// InitImageName is version-independent: there is a single init image
// per namespace regardless of the toolchain version being built.
func InitImageName(namespace string) string {
	return fmt.Sprintf("%s/%s:init", namespace, imageRepository)
}
