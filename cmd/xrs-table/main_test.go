package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/goes-xrs-tem/internal/response"
	"github.com/KI7MT/goes-xrs-tem/internal/response/responsetest"
)

func TestParseDetector(t *testing.T) {
	for in, want := range map[string]response.DetectorPair{
		"A1B1":  response.A1B1,
		"a2+b1": response.A2B1,
		"A1+B2": response.A1B2,
		"3":     response.A2B2,
	} {
		got, err := parseDetector(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseDetector("B3")
	assert.Error(t, err)
	_, err = parseDetector("4")
	assert.Error(t, err)
}

func TestRowLabelMatchesIndex(t *testing.T) {
	assert.Equal(t, "GOES-1", rowLabel(0))
	assert.Equal(t, "GOES-15", rowLabel(14))
	for _, sat := range []int{16, 17} {
		for _, p := range response.DetectorPairs {
			idx, err := response.RowIndex(sat, p)
			require.NoError(t, err)
			assert.Equal(t, "GOES-"+strconv.Itoa(sat)+" "+p.String(), rowLabel(idx))
		}
	}
}

func TestConvertTableFromFITS(t *testing.T) {
	var fits bytes.Buffer
	require.NoError(t, responsetest.WriteFITS(&fits, responsetest.Table()))
	src, err := response.LoadFITS(bytes.NewReader(fits.Bytes()), "fits")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "goes_chianti_response.parquet")
	sum, err := convertTable(src, out)
	require.NoError(t, err)
	assert.Len(t, sum, 64)
	assert.NoFileExists(t, out+".tmp")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	back, err := response.Load(bytes.NewReader(data), int64(len(data)), sum)
	require.NoError(t, err)
	assert.Equal(t, src.Len(), back.Len())
	assert.Equal(t, src.Row(16).LongCoronal, back.Row(16).LongCoronal)
}
