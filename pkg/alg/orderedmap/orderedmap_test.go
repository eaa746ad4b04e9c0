package orderedmap

import (
	"cmp"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test constants.
const (
	testKey10 = 10
	testKey20 = 20
	testKey30 = 30
)

func newIntMap() *Map[int, string] {
	m := New[int, string](cmp.Compare[int])
	m.Insert(testKey20, "b")
	m.Insert(testKey10, "a")
	m.Insert(testKey30, "c")

	return m
}

// TestMap_InsertGet verifies insertion and lookup.
func TestMap_InsertGet(t *testing.T) {
	t.Parallel()

	m := newIntMap()
	assert.Equal(t, 3, m.Len())

	v, ok := m.Get(testKey20)
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = m.Get(15)
	assert.False(t, ok)
	assert.Equal(t, []int{10, 20, 30}, m.Keys())
}

// TestMap_Replace verifies replacement updates the reverse index.
func TestMap_Replace(t *testing.T) {
	t.Parallel()

	m := newIntMap()
	m.Insert(testKey20, "z")

	_, ok := m.KeyOf("b")
	assert.False(t, ok)

	k, ok := m.KeyOf("z")
	require.True(t, ok)
	assert.Equal(t, testKey20, k)
	assert.Equal(t, 3, m.Len())
}

// TestMap_FloorCeil verifies floor and ceiling semantics.
func TestMap_FloorCeil(t *testing.T) {
	t.Parallel()

	m := newIntMap()

	k, v, ok := m.Floor(25)
	require.True(t, ok)
	assert.Equal(t, testKey20, k)
	assert.Equal(t, "b", v)

	k, _, ok = m.Floor(testKey20)
	require.True(t, ok)
	assert.Equal(t, testKey20, k)

	_, _, ok = m.Floor(5)
	assert.False(t, ok)

	k, _, ok = m.Ceil(11)
	require.True(t, ok)
	assert.Equal(t, testKey20, k)

	_, _, ok = m.Ceil(31)
	assert.False(t, ok)

	k, _, ok = m.Lower(testKey20)
	require.True(t, ok)
	assert.Equal(t, testKey10, k)

	k, _, ok = m.Higher(testKey20)
	require.True(t, ok)
	assert.Equal(t, testKey30, k)
}

// TestMap_Remove verifies removal and reverse index cleanup.
func TestMap_Remove(t *testing.T) {
	t.Parallel()

	m := newIntMap()
	assert.True(t, m.Remove(testKey10))
	assert.False(t, m.Remove(testKey10))
	assert.False(t, m.Contains(testKey10))

	_, ok := m.KeyOf("a")
	assert.False(t, ok)

	k, _, ok := m.Min()
	require.True(t, ok)
	assert.Equal(t, testKey20, k)
}

// TestMap_Clone verifies clones are independent.
func TestMap_Clone(t *testing.T) {
	t.Parallel()

	m := newIntMap()
	c := m.Clone()
	c.Insert(40, "d")
	c.Remove(testKey10)

	assert.Equal(t, 3, m.Len())
	assert.True(t, m.Contains(testKey10))
	assert.Equal(t, []string{"b", "c", "d"}, c.Values())
}

// TestMap_All verifies ordered iteration with early exit.
func TestMap_All(t *testing.T) {
	t.Parallel()

	m := newIntMap()

	var keys []int

	for k := range m.All() {
		keys = append(keys, k)
		if k == testKey20 {
			break
		}
	}

	assert.Equal(t, []int{10, 20}, keys)
}

// TestSet verifies ordered set operations.
func TestSet(t *testing.T) {
	t.Parallel()

	s := NewSet[int](cmp.Compare[int])
	assert.True(t, s.Add(3))
	assert.True(t, s.Add(1))
	assert.False(t, s.Add(3))
	assert.True(t, s.Add(7))

	assert.Equal(t, []int{1, 3, 7}, s.Items())

	f, ok := s.Floor(5)
	require.True(t, ok)
	assert.Equal(t, 3, f)

	c, ok := s.Ceil(4)
	require.True(t, ok)
	assert.Equal(t, 7, c)

	assert.True(t, s.Remove(3))
	assert.False(t, s.Contains(3))
	assert.Equal(t, 2, s.Len())
}

// TestProperty_Floor checks floor against a linear scan.
func TestProperty_Floor(t *testing.T) {
	t.Parallel()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("floor is the greatest key <= probe", prop.ForAll(
		func(keys []int, probe int) bool {
			m := New[int, int](cmp.Compare[int])
			for i, k := range keys {
				m.Insert(k, i)
			}

			want, found := 0, false

			for _, k := range keys {
				if k <= probe && (!found || k > want) {
					want, found = k, true
				}
			}

			got, _, ok := m.Floor(probe)

			return ok == found && (!ok || got == want)
		},
		gen.SliceOf(gen.IntRange(-100, 100)),
		gen.IntRange(-120, 120),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
