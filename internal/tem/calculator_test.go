package tem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KI7MT/goes-xrs-tem/internal/metrics"
	"github.com/KI7MT/goes-xrs-tem/internal/response"
	"github.com/KI7MT/goes-xrs-tem/internal/response/responsetest"
	"github.com/KI7MT/goes-xrs-tem/internal/xrs"
)

func newManager(t *testing.T) *response.Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "response.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, response.Write(f, responsetest.Table()))
	require.NoError(t, f.Close())
	return response.NewManager(response.ManagerConfig{URL: path}, nil)
}

func TestCalculatorRecordsMetricsAndWarnings(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	core, logs := observer.New(zap.WarnLevel)

	mgr := newManager(t)
	mgr.OnLoad = m.TableLoaded
	calc := NewCalculator(mgr, coronal(), zap.New(core), m)

	s := xrs.NewSeries("GOES-16", xrs.SWPCOrigin, flareSamples(20), false, false)
	out, err := calc.Calculate(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 20, out.Len())
	assert.Equal(t, "response.parquet", out.TableVersion)

	assert.Equal(t, 1, logs.FilterMessageSnippet("assuming primary").Len())
	assert.Equal(t, 20.0, testutil.ToFloat64(m.Samples.WithLabelValues("goes16")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TableLoads))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Calculations.WithLabelValues(metrics.OutcomeSuccess)))
	assert.Equal(t, int64(0), mgr.Stats().LiveRefs)
}

func TestCalculatorError(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	mgr := newManager(t)
	calc := NewCalculator(mgr, coronal(), nil, m)

	s := xrs.NewSeries("GOES-15", "", flareSamples(3), false, false)
	s.Short = nil
	_, err = calc.Calculate(context.Background(), s)
	assert.ErrorIs(t, err, xrs.ErrMissingChannel)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Calculations.WithLabelValues(metrics.OutcomeError)))
	assert.Equal(t, int64(0), mgr.Stats().LiveRefs)

	bad := NewCalculator(response.NewManager(response.ManagerConfig{}, nil), coronal(), nil, nil)
	_, err = bad.Calculate(context.Background(), xrs.NewSeries("GOES-15", "", flareSamples(3), false, false))
	assert.Error(t, err)
}
