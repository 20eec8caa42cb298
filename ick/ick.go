// The ick package is for things I can't believe I have to write.
package ick

import (
	"math/rand"
)

// NShuffle shuffles a slice in place with r, so a seeded r gives a
// repeatable order.
//
// The "N" prefix is a nod to CL.
func NShuffle[T any](r *rand.Rand, data []T) []T {
	r.Shuffle(len(data), func(i, j int) { data[i], data[j] = data[j], data[i] })
	return data
}

// Shuffle copies a slice, and then shuffles the copy.
func Shuffle[T any](r *rand.Rand, in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return NShuffle(r, out)
}
