package response_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/goes-xrs-tem/internal/response"
	"github.com/KI7MT/goes-xrs-tem/internal/response/responsetest"
	"github.com/KI7MT/goes-xrs-tem/internal/xrs"
)

func TestRowIndexPinned(t *testing.T) {
	cases := []struct {
		sat  int
		pair response.DetectorPair
		want int
	}{
		{1, response.A1B1, 0},
		{6, response.A1B1, 5},
		{15, response.A1B1, 14},
		{15, response.A2B2, 14}, // pair ignored before GOES-R
		{16, response.A1B1, 15},
		{16, response.A2B1, 16},
		{16, response.A1B2, 17},
		{16, response.A2B2, 18},
		{17, response.A1B1, 19},
		{17, response.A2B1, 20},
		{17, response.A1B2, 21},
		{17, response.A2B2, 22},
	}
	for _, c := range cases {
		got, err := response.RowIndex(c.sat, c.pair)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "GOES-%d %s", c.sat, c.pair)
	}

	_, err := response.RowIndex(0, response.A1B1)
	assert.ErrorIs(t, err, xrs.ErrInvalidSatellite)
	_, err = response.RowIndex(18, response.A1B1)
	assert.ErrorIs(t, err, xrs.ErrInvalidSatellite)
	_, err = response.RowIndex(16, response.DetectorPair(4))
	assert.ErrorIs(t, err, xrs.ErrUnsupportedDetectorTable)
}

func TestDetectorPairDetectors(t *testing.T) {
	want := map[response.DetectorPair][2]int32{
		response.A1B1: {1, 1},
		response.A2B1: {2, 1},
		response.A1B2: {1, 2},
		response.A2B2: {2, 2},
	}
	for pair, dets := range want {
		s, l := pair.Detectors()
		assert.Equal(t, dets, [2]int32{s, l}, pair.String())
	}
}

func TestParseAbundance(t *testing.T) {
	a, err := response.ParseAbundance("Photospheric")
	require.NoError(t, err)
	assert.Equal(t, response.Photospheric, a)

	a, err = response.ParseAbundance("")
	require.NoError(t, err)
	assert.Equal(t, response.Coronal, a)

	_, err = response.ParseAbundance("solar")
	assert.ErrorIs(t, err, xrs.ErrInvalidAbundance)
}

func TestResolveEverySatellite(t *testing.T) {
	table := responsetest.Table()
	for sat := xrs.MinSatellite; sat <= xrs.MaxSatellite; sat++ {
		pairs := []response.DetectorPair{response.A1B1}
		if xrs.IsGOESR(sat) {
			pairs = response.DetectorPairs[:]
		}
		for _, pair := range pairs {
			row, err := table.Resolve(sat, pair)
			require.NoError(t, err, "GOES-%d %s", sat, pair)
			for _, ab := range []response.Abundance{response.Coronal, response.Photospheric} {
				ratio := row.ModelRatio(ab)
				flux := row.ModelLongFlux(ab)
				require.NotEmpty(t, ratio)
				require.Len(t, flux, len(row.TempMK))
				for i := 1; i < len(row.TempMK); i++ {
					assert.Greater(t, row.TempMK[i], row.TempMK[i-1])
				}
			}
		}
	}
}

func TestResolveMissingRow(t *testing.T) {
	table := responsetest.Sparse(17)
	_, err := table.Resolve(16, response.A1B2)
	assert.ErrorIs(t, err, xrs.ErrUnsupportedDetectorTable)

	_, err = table.Resolve(16, response.A1B1)
	assert.NoError(t, err)

	short := responsetest.Sparse()
	_, err = short.Resolve(17, response.A2B2)
	assert.NoError(t, err)
}

func TestModelRatioDerived(t *testing.T) {
	row := responsetest.Table().Row(3)
	require.NotNil(t, row)
	for i := range row.TempMK {
		assert.Equal(t, row.ShortCoronal[i]/row.LongCoronal[i], row.ModelRatio(response.Coronal)[i])
		assert.Equal(t, row.ShortPhotospheric[i]/row.LongPhotospheric[i], row.ModelRatio(response.Photospheric)[i])
	}
	assert.InEpsilon(t, 1e-6, row.EMScale(), 1e-12) // 10^(49-55)
}

func TestNewTableRejectsMalformedRows(t *testing.T) {
	bad := responsetest.NewRow(0)
	bad.TempMK = bad.TempMK[:3]
	_, err := response.NewTable("bad", []*response.Row{bad})
	assert.ErrorIs(t, err, response.ErrMalformedTable)

	unsorted := responsetest.NewRow(0)
	unsorted.TempMK[5], unsorted.TempMK[6] = unsorted.TempMK[6], unsorted.TempMK[5]
	_, err = response.NewTable("bad", []*response.Row{unsorted})
	assert.ErrorIs(t, err, response.ErrMalformedTable)

	zero := responsetest.NewRow(0)
	zero.LongPhotospheric[2] = 0
	_, err = response.NewTable("bad", []*response.Row{zero})
	assert.ErrorIs(t, err, response.ErrMalformedTable)
}

func TestParquetArtifact(t *testing.T) {
	table := responsetest.Sparse(20)

	var buf bytes.Buffer
	require.NoError(t, response.Write(&buf, table))

	loaded, err := response.Load(bytes.NewReader(buf.Bytes()), int64(buf.Len()), "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", loaded.Version)
	assert.Equal(t, table.Len(), loaded.Len())
	assert.Nil(t, loaded.Row(20))

	want := table.Row(19)
	got := loaded.Row(19)
	require.NotNil(t, got)
	assert.Equal(t, want.TempMK, got.TempMK)
	assert.Equal(t, want.LongPhotospheric, got.LongPhotospheric)
	assert.Equal(t, want.Log10EM, got.Log10EM)
	assert.Equal(t, want.ModelRatio(response.Coronal), got.ModelRatio(response.Coronal))
}

func TestLoadRejectsIndexBeyondLastSlot(t *testing.T) {
	rows := make([]*response.Row, response.MaxRows)
	for i := range rows {
		rows[i] = responsetest.NewRow(i)
	}
	table, err := response.NewTable("full", rows)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, response.Write(&buf, table))
	loaded, err := response.Load(bytes.NewReader(buf.Bytes()), int64(buf.Len()), "full")
	require.NoError(t, err)
	assert.Equal(t, response.MaxRows, loaded.Len())

	// a corrupt index must not size the row slice
	big := make([]*response.Row, response.MaxRows+1)
	big[response.MaxRows] = responsetest.NewRow(0)
	bigTable, err := response.NewTable("corrupt", big)
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, response.Write(&buf, bigTable))
	_, err = response.Load(bytes.NewReader(buf.Bytes()), int64(buf.Len()), "corrupt")
	assert.ErrorIs(t, err, response.ErrMalformedTable)
}
