package response_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/goes-xrs-tem/internal/response"
	"github.com/KI7MT/goes-xrs-tem/internal/response/responsetest"
)

func fitsBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, responsetest.WriteFITS(&buf, responsetest.Table()))
	return buf.Bytes()
}

func TestIsFITS(t *testing.T) {
	for _, p := range []string{"goes_chianti_response_latest.fits", "resp.FITS", "a/b.fts", "resp.fits.gz", "resp.fit"} {
		assert.True(t, response.IsFITS(p), p)
	}
	for _, p := range []string{"resp.parquet", "resp.parquet.gz", "fits", ""} {
		assert.False(t, response.IsFITS(p), p)
	}
}

func TestLoadFITS(t *testing.T) {
	want := responsetest.Table()
	got, err := response.LoadFITS(bytes.NewReader(fitsBytes(t)), "fits-v1")
	require.NoError(t, err)
	assert.Equal(t, "fits-v1", got.Version)
	require.Equal(t, want.Len(), got.Len())

	for _, i := range []int{0, 14, 19, response.MaxRows - 1} {
		w, g := want.Row(i), got.Row(i)
		require.NotNil(t, g, "row %d", i)
		assert.Equal(t, w.TempMK, g.TempMK, "row %d", i)
		assert.Equal(t, w.ShortCoronal, g.ShortCoronal, "row %d", i)
		assert.Equal(t, w.LongPhotospheric, g.LongPhotospheric, "row %d", i)
		assert.Equal(t, w.Log10EM, g.Log10EM, "row %d", i)
		assert.Equal(t, w.ModelRatio(response.Photospheric), g.ModelRatio(response.Photospheric), "row %d", i)
	}

	row, err := got.Resolve(17, response.A2B2)
	require.NoError(t, err)
	assert.Equal(t, response.MaxRows-1, row.Index)
}

func TestLoadFITSRejectsGarbage(t *testing.T) {
	_, err := response.LoadFITS(bytes.NewReader([]byte("SIMPLE  = nonsense")), "bad")
	assert.Error(t, err)
}

func TestManagerRemoteFITS(t *testing.T) {
	payload := fitsBytes(t)
	_, sum := writeArtifact(t, t.TempDir(), "ref.fits", payload)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	cache := t.TempDir()
	m := response.NewManager(response.ManagerConfig{
		URL:      srv.URL + "/goes_chianti_response_latest.fits",
		SHA256:   sum,
		CacheDir: cache,
	}, nil)

	h, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer h.Release()
	assert.Equal(t, sum, h.Table().Version)
	assert.Equal(t, responsetest.Rows, h.Table().Len())
	assert.FileExists(t, filepath.Join(cache, "goes_chianti_response_latest.fits"))
}
