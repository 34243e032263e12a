package toolchain

import "time"

const DefaultExpirationTime = 5 * time.Minute

// DefaultRepository is the upstream repository the Rust toolchain
// images are published to.
const DefaultRepository = "library/rust"

type Config struct {
	Repositories []string
	OS           string
	Architecture string

	ExpirationTime time.Duration
}
