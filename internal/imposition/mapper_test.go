package imposition

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapScenarioA(t *testing.T) {
	cases := []struct {
		sheet, first, second int
	}{
		{1, 16, 17},
		{2, 18, 15},
		{3, 14, 19},
		{16, 32, 1},
	}
	for _, c := range cases {
		f, s, err := Map(c.sheet, 32)
		require.NoError(t, err)
		assert.Equal(t, c.first, f, "sheet %d first", c.sheet)
		assert.Equal(t, c.second, s, "sheet %d second", c.sheet)
	}
}

func TestMapScenarioB(t *testing.T) {
	want := [][2]int{{4, 5}, {6, 3}, {2, 7}, {8, 1}}
	for i, w := range want {
		f, s, err := Map(i+1, 8)
		require.NoError(t, err)
		assert.Equal(t, w, [2]int{f, s}, "sheet %d", i+1)
	}
}

func TestMapMatchesReferenceBooklet(t *testing.T) {
	table, err := Table(32)
	require.NoError(t, err)
	assert.Equal(t, ReferenceBooklet32, table)
}

func TestMapConjugatePairInvariant(t *testing.T) {
	for total := 4; total <= 400; total += 4 {
		for i := 1; i <= total/2; i++ {
			f, s, err := Map(i, total)
			require.NoError(t, err)
			require.Equal(t, total+1, f+s, "total %d sheet %d", total, i)
		}
	}
}

func TestMapBijectionInvariant(t *testing.T) {
	for total := 4; total <= 400; total += 4 {
		seen := map[int]int{}
		for i := 1; i <= total/2; i++ {
			f, s, err := Map(i, total)
			require.NoError(t, err)
			seen[f]++
			seen[s]++
		}
		require.Len(t, seen, total, "total %d", total)
		for p := 1; p <= total; p++ {
			require.Equal(t, 1, seen[p], "total %d page %d", total, p)
		}
		require.NoError(t, VerifyTable(total))
	}
}

func TestMapIsPure(t *testing.T) {
	for i := 1; i <= 50; i++ {
		f1, s1, err1 := Map(i, 100)
		f2, s2, err2 := Map(i, 100)
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, f1, f2)
		assert.Equal(t, s1, s2)
	}
}

func TestMapRejectsInvalidTotals(t *testing.T) {
	for _, total := range []int{0, -4, 2, 6, 31} {
		_, _, err := Map(1, total)
		require.Error(t, err, "total %d", total)
		assert.ErrorIs(t, err, ErrPrecondition)
		assert.False(t, IsOutOfRange(err))
	}
}

func TestMapRejectsSheetOutsideBooklet(t *testing.T) {
	for _, sheet := range []int{0, -1, 5, 100} {
		_, _, err := Map(sheet, 8)
		require.Error(t, err)
		assert.True(t, IsOutOfRange(err), "sheet %d", sheet)
		assert.ErrorIs(t, err, ErrPrecondition)
	}
}

func TestNormalizePageCount(t *testing.T) {
	cases := []struct {
		in, out int
		padded  bool
	}{
		{1, 4, true},
		{4, 4, false},
		{6, 8, true},
		{30, 32, true},
		{32, 32, false},
	}
	for _, c := range cases {
		got, padded, err := NormalizePageCount(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.out, got, "in %d", c.in)
		assert.Equal(t, c.padded, padded, "in %d", c.in)
	}

	_, _, err := NormalizePageCount(0)
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestTableGolden(t *testing.T) {
	table, err := Table(32)
	require.NoError(t, err)

	var buf bytes.Buffer
	for _, e := range table {
		fmt.Fprintf(&buf, "sheet %2d -> pages %2d %2d\n", e.Sheet, e.First, e.Second)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "booklet_32", buf.Bytes())
}
