package imposition

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func half(sheet int, role Role) HalfPage {
	return HalfPage{SourceSheet: sheet, Role: role, Content: sheet}
}

func TestAssemblerEmptyDrainsAllBlanks(t *testing.T) {
	asm, err := NewAssembler(8, A4)
	require.NoError(t, err)

	out, err := asm.Drain()
	require.NoError(t, err)
	require.Len(t, out, 8)
	for i, p := range out {
		assert.Equal(t, i+1, p.Ordinal)
		require.True(t, p.IsBlank())
		assert.Equal(t, A4, p.Blank.Size)
	}
}

func TestAssemblerScenarioC(t *testing.T) {
	asm, err := NewAssembler(8, A4)
	require.NoError(t, err)

	for sheet := 1; sheet <= 3; sheet++ {
		f, s, err := Map(sheet, 8)
		require.NoError(t, err)
		_, err = asm.File(f, half(sheet, First))
		require.NoError(t, err)
		_, err = asm.File(s, half(sheet, Second))
		require.NoError(t, err)
	}
	assert.Equal(t, 6, asm.Len())

	out, err := asm.Drain()
	require.NoError(t, err)
	require.Len(t, out, 8)

	for _, p := range out {
		if p.Ordinal == 1 || p.Ordinal == 8 {
			assert.True(t, p.IsBlank(), "page %d", p.Ordinal)
			continue
		}
		require.False(t, p.IsBlank(), "page %d", p.Ordinal)
	}
	assert.Equal(t, 3, out[1].Half.SourceSheet) // page 2
	assert.Equal(t, 2, out[2].Half.SourceSheet) // page 3
	assert.Equal(t, 1, out[3].Half.SourceSheet) // page 4
	assert.Equal(t, First, out[3].Half.Role)
}

func TestAssemblerLastWriteWins(t *testing.T) {
	asm, err := NewAssembler(4, A4)
	require.NoError(t, err)

	replaced, err := asm.File(2, half(1, First))
	require.NoError(t, err)
	assert.False(t, replaced)

	replaced, err = asm.File(2, half(7, Second))
	require.NoError(t, err)
	assert.True(t, replaced)

	out, err := asm.Drain()
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, 7, out[1].Half.SourceSheet)
	assert.Equal(t, Second, out[1].Half.Role)
}

func TestAssemblerRejectsOutOfRangePage(t *testing.T) {
	asm, err := NewAssembler(4, A4)
	require.NoError(t, err)

	for _, p := range []int{0, 5, -3} {
		_, err := asm.File(p, half(1, First))
		assert.True(t, IsOutOfRange(err), "page %d", p)
	}
}

func TestAssemblerDrainIsSingleUse(t *testing.T) {
	asm, err := NewAssembler(4, A4)
	require.NoError(t, err)

	_, err = asm.Drain()
	require.NoError(t, err)

	_, err = asm.Drain()
	assert.ErrorIs(t, err, ErrDrained)

	_, err = asm.File(1, half(1, First))
	assert.ErrorIs(t, err, ErrDrained)
}

func TestAssemblerConstructorPreconditions(t *testing.T) {
	_, err := NewAssembler(0, A4)
	assert.ErrorIs(t, err, ErrPrecondition)

	_, err = NewAssembler(4, Size{})
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestAssemblerConcurrentFile(t *testing.T) {
	const total = 400
	asm, err := NewAssembler(total, A4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for sheet := 1; sheet <= total/2; sheet++ {
		wg.Add(1)
		go func(sheet int) {
			defer wg.Done()
			f, s, err := Map(sheet, total)
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := asm.File(f, half(sheet, First)); err != nil {
				t.Error(err)
			}
			if _, err := asm.File(s, half(sheet, Second)); err != nil {
				t.Error(err)
			}
		}(sheet)
	}
	wg.Wait()

	out, err := asm.Drain()
	require.NoError(t, err)
	require.Len(t, out, total)
	for _, p := range out {
		assert.False(t, p.IsBlank(), "page %d", p.Ordinal)
	}
}
