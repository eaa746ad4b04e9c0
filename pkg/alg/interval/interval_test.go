package interval

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test constants.
const (
	testLow10   = 10
	testHigh20  = 20
	testLow15   = 15
	testHigh25  = 25
	testLow30   = 30
	testHigh40  = 40
	testLow5    = 5
	testHigh35  = 35
	testPoint12 = 12
	testPoint50 = 50
	testCount   = 500
)

func newTree() *Tree[int, string] {
	return New[int, string](cmp.Compare[int])
}

func iv(lo, hi int) Interval[int] {
	return Interval[int]{Lo: lo, Hi: hi}
}

func values(nodes []*Node[int, string]) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Value())
	}

	slices.Sort(out)

	return out
}

// TestNew verifies empty tree creation.
func TestNew(t *testing.T) {
	t.Parallel()

	tree := newTree()
	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, tree.QueryPoint(testPoint12))
	require.NoError(t, tree.Verify())
}

// TestPut_QueryInterval verifies basic insert and overlap query.
func TestPut_QueryInterval(t *testing.T) {
	t.Parallel()

	tree := newTree()
	tree.Put(iv(testLow10, testHigh20), "a")
	tree.Put(iv(testLow30, testHigh40), "b")

	got := tree.QueryInterval(iv(testLow15, testHigh25))
	require.Len(t, got, 1)
	assert.Equal(t, iv(testLow10, testHigh20), got[0].Interval())
	assert.Equal(t, "a", got[0].Value())

	assert.Empty(t, tree.QueryInterval(iv(testHigh20, testLow30)))
	assert.Equal(t, []string{"a", "b"}, values(tree.QueryInterval(iv(testLow5, testHigh35))))
}

// TestQueryPoint_HalfOpen verifies the upper bound is excluded.
func TestQueryPoint_HalfOpen(t *testing.T) {
	t.Parallel()

	tree := newTree()
	tree.Put(iv(testLow10, testHigh20), "a")
	tree.Put(iv(testHigh20, testLow30), "b")

	assert.Equal(t, []string{"a"}, values(tree.QueryPoint(testLow10)))
	assert.Equal(t, []string{"b"}, values(tree.QueryPoint(testHigh20)))
	assert.Empty(t, tree.QueryPoint(testLow30))
	assert.Empty(t, tree.QueryPoint(testPoint50))
}

// TestQueryIntervalStart verifies lower-bound containment.
func TestQueryIntervalStart(t *testing.T) {
	t.Parallel()

	tree := newTree()
	tree.Put(iv(testLow5, testHigh35), "a")
	tree.Put(iv(testLow10, testHigh20), "b")
	tree.Put(iv(testLow15, testHigh25), "c")
	tree.Put(iv(testLow30, testHigh40), "d")

	assert.Equal(t, []string{"b", "c"}, values(tree.QueryIntervalStart(iv(testLow10, testHigh20))))
	assert.Equal(t, []string{"d"}, values(tree.QueryIntervalStart(iv(testLow30, testLow30+1))))
}

// TestFindExactInterval verifies exact matches including duplicates.
func TestFindExactInterval(t *testing.T) {
	t.Parallel()

	tree := newTree()
	tree.Put(iv(testLow10, testHigh20), "a")
	tree.Put(iv(testLow10, testHigh25), "b")
	tree.Put(iv(testLow10, testHigh20), "c")

	assert.Equal(t, []string{"a", "c"}, values(tree.FindExactInterval(iv(testLow10, testHigh20))))
	assert.Empty(t, tree.FindExactInterval(iv(testLow15, testHigh20)))
}

// TestDelete_HandleDeletion runs the canonical deletion scenario.
func TestDelete_HandleDeletion(t *testing.T) {
	t.Parallel()

	tree := newTree()
	handles := map[string]*Node[int, string]{}

	for _, e := range []struct {
		lo, hi int
		name   string
	}{
		{15, 30, "a"}, {5, 10, "b"}, {16, 30, "c"}, {18, 25, "d"}, {20, 40, "e"}, {23, 50, "f"},
	} {
		handles[e.name] = tree.Put(iv(e.lo, e.hi), e.name)
	}

	require.NoError(t, tree.Verify())
	assert.Equal(t, []string{"a", "c", "d", "e"}, values(tree.QueryPoint(20)))

	require.NoError(t, tree.Delete(handles["e"]))
	require.NoError(t, tree.Verify())

	assert.Equal(t, []string{"a", "c", "d"}, values(tree.QueryPoint(20)))
	assert.Equal(t, 5, tree.Len())

	// Remaining handles stay usable.
	require.NoError(t, tree.Delete(handles["a"]))
	require.NoError(t, tree.Verify())
	assert.Equal(t, []string{"c", "d", "f"}, values(tree.QueryPoint(24)))

	tree.Put(iv(20, 40), "e2")
	require.NoError(t, tree.Verify())
	assert.Equal(t, []string{"c", "d", "e2"}, values(tree.QueryPoint(20)))
}

// TestDelete_Stale verifies double deletion is rejected.
func TestDelete_Stale(t *testing.T) {
	t.Parallel()

	tree := newTree()
	h := tree.Put(iv(testLow10, testHigh20), "a")

	require.NoError(t, tree.Delete(h))
	require.ErrorIs(t, tree.Delete(h), ErrStaleHandle)
	require.ErrorIs(t, tree.Delete(nil), ErrStaleHandle)

	other := newTree()
	h2 := other.Put(iv(testLow10, testHigh20), "b")
	require.ErrorIs(t, tree.Delete(h2), ErrStaleHandle)
}

// TestDelete_TwoChildrenKeepsHandles verifies the handle of the spliced
// successor still refers to its own interval.
func TestDelete_TwoChildrenKeepsHandles(t *testing.T) {
	t.Parallel()

	tree := newTree()
	handles := make([]*Node[int, string], 0, 7)

	for i := range 7 {
		handles = append(handles, tree.Put(iv(i*10, i*10+5), string(rune('a'+i))))
	}

	root := tree.root
	require.NotEqual(t, tree.sentinel, root.left)
	require.NotEqual(t, tree.sentinel, root.right)

	require.NoError(t, tree.Delete(root))
	require.NoError(t, tree.Verify())

	for _, h := range handles {
		if h == root {
			continue
		}

		assert.Equal(t, h.Value(), string(rune('a'+h.Interval().Lo/10)))
		require.NoError(t, tree.Delete(h))
		require.NoError(t, tree.Verify())
	}

	assert.Equal(t, 0, tree.Len())
}

// TestLargeScale verifies correctness with many random inserts and deletes.
func TestLargeScale(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	tree := New[int, int](cmp.Compare[int])

	var live []*Node[int, int]

	for i := range testCount {
		lo := rng.IntN(1000)
		live = append(live, tree.Put(Interval[int]{Lo: lo, Hi: lo + 1 + rng.IntN(50)}, i))

		if i%3 == 2 {
			k := rng.IntN(len(live))
			require.NoError(t, tree.Delete(live[k]))

			live = slices.Delete(live, k, k+1)
		}
	}

	require.NoError(t, tree.Verify())
	assert.Equal(t, len(live), tree.Len())

	for p := 0; p < 1050; p += 7 {
		want := 0

		for _, n := range live {
			if n.Interval().Lo <= p && p < n.Interval().Hi {
				want++
			}
		}

		assert.Len(t, tree.QueryPoint(p), want, "point %d", p)
	}
}

// TestAll verifies in-order traversal.
func TestAll(t *testing.T) {
	t.Parallel()

	tree := newTree()
	tree.Put(iv(testLow30, testHigh40), "c")
	tree.Put(iv(testLow5, testHigh35), "a")
	tree.Put(iv(testLow15, testHigh25), "b")

	var got []string
	for _, n := range tree.All() {
		got = append(got, n.Value())
	}

	assert.Equal(t, []string{"a", "b", "c"}, got)
}

// TestProperty_QueryPoint checks point queries against brute force.
func TestProperty_QueryPoint(t *testing.T) {
	t.Parallel()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("interval returned iff lo <= p < hi", prop.ForAll(
		func(los, widths []int, p int) bool {
			tree := New[int, int](cmp.Compare[int])
			n := min(len(los), len(widths))

			for i := range n {
				tree.Put(Interval[int]{Lo: los[i], Hi: los[i] + widths[i]}, i)
			}

			want := 0

			for i := range n {
				if los[i] <= p && p < los[i]+widths[i] {
					want++
				}
			}

			return len(tree.QueryPoint(p)) == want && tree.Verify() == nil
		},
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.SliceOf(gen.IntRange(1, 30)),
		gen.IntRange(0, 130),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
