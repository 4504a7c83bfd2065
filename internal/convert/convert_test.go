package convert

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/sheetsplit/internal/imposition"
	"github.com/local/sheetsplit/internal/pdfdoc"
	"github.com/local/sheetsplit/internal/pdfdoc/pdfdoctest"
)

func TestConvertSimple(t *testing.T) {
	in := bytes.NewReader(pdfdoctest.Sheets(3, pdfdoctest.A3Landscape))
	var out bytes.Buffer

	rep, err := Convert(context.Background(), in, &out, Options{Mode: imposition.ModeSimple})
	require.NoError(t, err)
	assert.Equal(t, "simple", rep.Mode)
	assert.Equal(t, 3, rep.Sheets)
	assert.Equal(t, 6, rep.OutputPages)
	assert.Zero(t, rep.Blanks)

	doc, err := pdfdoc.Open(bytes.NewReader(out.Bytes()), "")
	require.NoError(t, err)
	assert.Len(t, doc.Sheets(), 6)
}

func TestConvertBookletPadsAndBlanks(t *testing.T) {
	in := bytes.NewReader(pdfdoctest.Sheets(3, pdfdoctest.A3Landscape))
	var out bytes.Buffer

	rep, err := Convert(context.Background(), in, &out, Options{Mode: imposition.ModeBooklet, Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 8, rep.TotalFinalPages)
	assert.True(t, rep.Padded)
	assert.Equal(t, 2, rep.Blanks)
	assert.Equal(t, 8, rep.OutputPages)
}

func TestConvertMaxSheets(t *testing.T) {
	in := bytes.NewReader(pdfdoctest.Sheets(5, pdfdoctest.A3Landscape))
	_, err := Convert(context.Background(), in, &bytes.Buffer{}, Options{MaxSheets: 4})
	assert.ErrorIs(t, err, ErrTooManySheets)
}

func TestConvertBadPageCount(t *testing.T) {
	in := bytes.NewReader(pdfdoctest.Sheets(2, pdfdoctest.A3Landscape))
	_, err := Convert(context.Background(), in, &bytes.Buffer{}, Options{Mode: imposition.ModeBooklet, TotalPages: -4})
	assert.True(t, imposition.IsPrecondition(err))
}

func TestConvertCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := bytes.NewReader(pdfdoctest.Sheets(1, pdfdoctest.A3Landscape))
	var out bytes.Buffer

	_, err := Convert(ctx, in, &out, Options{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, out.Len())
}
