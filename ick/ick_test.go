package ick

import (
	"math/rand"
	"slices"
	"testing"
)

func TestShuffleLeavesInputAlone(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	orig := slices.Clone(in)
	out := Shuffle(rand.New(rand.NewSource(1)), in)

	if !slices.Equal(in, orig) {
		t.Errorf("input changed to %v", in)
	}
	sorted := slices.Clone(out)
	slices.Sort(sorted)
	if !slices.Equal(sorted, orig) {
		t.Errorf("Shuffle(%v) = %v, not a permutation", orig, out)
	}

	again := Shuffle(rand.New(rand.NewSource(1)), in)
	if !slices.Equal(out, again) {
		t.Errorf("same seed gave %v then %v", out, again)
	}
}
