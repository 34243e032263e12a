package toolchain

import "time"

// Image is a single upstream toolchain image matching the configured platform.
type Image struct {
	Repository string
	Tag        string

	OS           string
	Architecture string
	Digest       string

	PushedAt time.Time
}
