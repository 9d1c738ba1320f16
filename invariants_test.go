package forest

import (
	"testing"

	"github.com/noctilu/forest/comm"
	"github.com/stretchr/testify/assert"
)

func TestIsValidTreeAcceptsFreshTree(t *testing.T) {
	tr := NewTree(3)
	assert.True(t, IsValidTree(tr))
}

func TestIsValidTreeRejectsMismatchedPayloadSize(t *testing.T) {
	tr := NewTree(3)
	tr.Data[0] = []byte{1, 2}
	assert.False(t, IsValidTree(tr))
}

func TestIsValidTreeRejectsNonTiling(t *testing.T) {
	root := Quadrant{Level: 0}
	tr := &Tree{Quadrants: []Quadrant{Child(root, 0), Child(root, 1)}, Data: [][]byte{{}, {}}}
	assert.False(t, IsValidTree(tr))
}

func TestIsValidForestOnFreshForest(t *testing.T) {
	f := New(NewUnitSquare(), &comm.Null{}, 2, 0, nil, nil)
	assert.True(t, IsValidForest(f))
}

func TestIsBalancedOnUniformForestIsTrue(t *testing.T) {
	f := New(NewPeriodic(), &comm.Null{}, 0, 0, nil, nil)
	assert.True(t, IsBalanced(f))
}

func TestIsBalancedDetectsSameTreeViolation(t *testing.T) {
	f := New(NewUnitSquare(), &comm.Null{}, 0, 0, nil, nil)
	root := f.Trees[0].Quadrants[0]
	children := make([]Quadrant, Children)
	data := make([][]byte, Children)
	for i := range children {
		children[i] = Child(root, i)
		data[i] = []byte{}
	}
	f.Trees[0].Replace(0, 1, children, data)
	// Refine one child down two more levels at the grandchild touching
	// its siblings, leaving level-3 leaves against level-1 siblings.
	grandchildren := make([]Quadrant, Children)
	gdata := make([][]byte, Children)
	for i := range grandchildren {
		grandchildren[i] = Child(children[0], i)
		gdata[i] = []byte{}
	}
	greatgrandchildren := make([]Quadrant, Children)
	ggdata := make([][]byte, Children)
	for i := range greatgrandchildren {
		greatgrandchildren[i] = Child(grandchildren[3], i)
		ggdata[i] = []byte{}
	}
	f.Trees[0].Replace(0, 1, grandchildren, gdata)
	f.Trees[0].Replace(3, 4, greatgrandchildren, ggdata)
	f.recomputeCounts()
	assert.False(t, IsBalanced(f))
}
