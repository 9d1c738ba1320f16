package forest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func childrenOf(q Quadrant) []Quadrant {
	out := make([]Quadrant, Children)
	for i := range out {
		out[i] = Child(q, i)
	}
	return out
}

func TestLowerUpperBoundAgainstLinearScan(t *testing.T) {
	root := Quadrant{Level: 0}
	qs := childrenOf(root)
	for _, target := range qs {
		lo := LowerBound(qs, target, -1)
		hi := UpperBound(qs, target, -1)
		assert.Equal(t, target, qs[lo])
		assert.Equal(t, lo+1, hi)
	}
}

func TestLowerBoundWithGuessMatchesWithoutGuess(t *testing.T) {
	root := Quadrant{Level: 0}
	qs := childrenOf(root)
	target := qs[2]
	for guess := -1; guess < len(qs); guess++ {
		assert.Equal(t, LowerBound(qs, target, -1), LowerBound(qs, target, guess))
		assert.Equal(t, UpperBound(qs, target, -1), UpperBound(qs, target, guess))
	}
}

func TestSplitArrayBucketsChildren(t *testing.T) {
	root := Quadrant{Level: 0}
	qs := childrenOf(root)
	offsets := SplitArray(qs, 0)
	for c := 0; c < Children; c++ {
		assert.Equal(t, c, offsets[c])
	}
	assert.Equal(t, Children, offsets[Children])
}

func TestSplitArrayHandlesEmptyBuckets(t *testing.T) {
	root := Quadrant{Level: 0}
	qs := []Quadrant{Child(root, 0), Child(root, 3)}
	offsets := SplitArray(qs, 0)
	assert.Equal(t, 0, offsets[0])
	assert.Equal(t, 1, offsets[1])
	assert.Equal(t, 1, offsets[2])
	assert.Equal(t, 1, offsets[3])
	assert.Equal(t, 2, offsets[4])
}

func TestFindRangeBoundariesNoMaskReturnsFullRange(t *testing.T) {
	root := Quadrant{Level: 0}
	qs := childrenOf(root)
	first, last := FindRangeBoundaries(qs, 0, 0, 0, 0)
	assert.Equal(t, 0, first)
	assert.Equal(t, len(qs), last)
}

func TestFindRangeBoundariesFace(t *testing.T) {
	root := Quadrant{Level: 0}
	qs := childrenOf(root)
	first, last := FindRangeBoundaries(qs, 0, FaceWest, 0, RangeFaceBit)
	for i := first; i < last; i++ {
		assert.True(t, ChildID(qs[i])&1 == 0)
	}
	assert.Equal(t, 2, last-first)
}

func TestFindRangeBoundariesCorner(t *testing.T) {
	root := Quadrant{Level: 0}
	qs := childrenOf(root)
	first, last := FindRangeBoundaries(qs, 0, 0, CornerNE, RangeCornerBit)
	assert.Equal(t, 1, last-first)
	assert.Equal(t, CornerNE, ChildID(qs[first]))
}
