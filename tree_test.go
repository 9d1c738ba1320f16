package forest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTreeIsSortedAndTiles(t *testing.T) {
	tr := NewTree(4)
	assert.True(t, tr.IsSorted())
	assert.True(t, tr.IsTiling())
	assert.Len(t, tr.Data[0], 4)
}

func TestTreeInsertKeepsSortedAndLockstepData(t *testing.T) {
	tr := EmptyTree(2)
	root := Quadrant{Level: 0}
	c1 := Child(root, 1)
	c0 := Child(root, 0)
	tr.Insert(c1, []byte{1, 1})
	tr.Insert(c0, []byte{0, 0})
	require.True(t, tr.IsSorted())
	assert.Equal(t, c0, tr.Quadrants[0])
	assert.Equal(t, []byte{0, 0}, tr.Data[0])
	assert.Equal(t, c1, tr.Quadrants[1])
	assert.Equal(t, []byte{1, 1}, tr.Data[1])
}

func TestTreeReplaceRefinesOneQuadrantIntoFamily(t *testing.T) {
	tr := NewTree(1)
	root := tr.Quadrants[0]
	family := [Children]Quadrant{}
	familyData := make([][]byte, Children)
	for i := 0; i < Children; i++ {
		family[i] = Child(root, i)
		familyData[i] = []byte{byte(i)}
	}
	tr.Replace(0, 1, family[:], familyData)
	assert.True(t, tr.IsSorted())
	assert.True(t, tr.IsTiling())
	assert.Len(t, tr.Quadrants, Children)
	for i := 0; i < Children; i++ {
		assert.Equal(t, []byte{byte(i)}, tr.Data[i])
	}
}

func TestIsTilingRejectsGapsAndOverlaps(t *testing.T) {
	root := Quadrant{Level: 0}
	tr := &Tree{Quadrants: []Quadrant{Child(root, 0), Child(root, 1), Child(root, 2)}}
	tr.Data = [][]byte{{}, {}, {}}
	assert.False(t, tr.IsTiling()) // missing child 3

	tr2 := &Tree{Quadrants: []Quadrant{Child(root, 0), Child(root, 0), Child(root, 1), Child(root, 2), Child(root, 3)}}
	tr2.Data = make([][]byte, 5)
	assert.False(t, tr2.IsTiling())
}

func TestRebuildHistogramTracksMaxLevel(t *testing.T) {
	tr := NewTree(0)
	root := tr.Quadrants[0]
	children := make([]Quadrant, Children)
	data := make([][]byte, Children)
	for i := range children {
		children[i] = Child(root, i)
		data[i] = []byte{}
	}
	tr.Replace(0, 1, children, data)
	assert.Equal(t, int8(1), tr.MaxLevel)
	assert.Equal(t, Children, tr.QuadrantsPerLevel[1])
}
