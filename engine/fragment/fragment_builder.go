package fragment

import (
	"github.com/Carmen-Shannon/disintegrate/common"
)

const (
	// DefaultMinLifetime is the lower lifetime bound used when WithLifetime is not given.
	DefaultMinLifetime float32 = 1.0

	// DefaultMaxLifetime is the upper lifetime bound used when WithLifetime is not given.
	DefaultMaxLifetime float32 = 2.0
)

type decomposeOptions struct {
	minLifetime float32
	maxLifetime float32
	random      common.Random
}

// DecomposeOption is a functional option for configuring Decompose.
type DecomposeOption func(*decomposeOptions)

// WithLifetime is an option builder that sets the range fragment lifetimes are sampled from.
// Both bounds must be positive and min must not exceed max.
//
// Parameters:
//   - min: the shortest lifetime in seconds
//   - max: the longest lifetime in seconds
//
// Returns:
//   - DecomposeOption: a function that applies the lifetime range
func WithLifetime(min, max float32) DecomposeOption {
	return func(o *decomposeOptions) {
		o.minLifetime = min
		o.maxLifetime = max
	}
}

// WithRandom is an option builder that sets the random source lifetimes are sampled from.
// Without it a time-seeded source is used.
//
// Parameters:
//   - r: the random source
//
// Returns:
//   - DecomposeOption: a function that applies the random source
func WithRandom(r common.Random) DecomposeOption {
	return func(o *decomposeOptions) {
		o.random = r
	}
}
