package auditrepro

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/model"
)

func sampleInputs() RecordedInputs {
	snap := model.NewMarketDataSnapshot(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), 24*time.Hour)
	snap.SetPrice("ACME", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), decimal.RequireFromString("101.25"))
	snap.SetRate("SOFR", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), decimal.RequireFromString("0.0525"))
	return RecordedInputs{
		Request: model.CalculationRequest{
			Contracts: []model.Contract{{ID: "swap-1", Currency: "USD"}},
			Range: model.DateRange{
				Start: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC),
			},
		},
		Snapshots: map[string]*model.MarketDataSnapshot{"swap-1": snap},
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	archive, err := OpenInputArchive("", zap.NewNop())
	require.NoError(t, err)
	defer archive.Close()

	inputs := sampleInputs()
	require.NoError(t, archive.Record("req-1", inputs))

	loaded, err := archive.Load("req-1")
	require.NoError(t, err)
	assert.Equal(t, "swap-1", loaded.Request.Contracts[0].ID)

	snap := loaded.Snapshots["swap-1"]
	require.NotNil(t, snap)
	px, ok := snap.Price("ACME", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("101.25").Equal(px), "amounts survive the round trip exactly")
}

func TestArchiveFirstRecordingWins(t *testing.T) {
	archive, err := OpenInputArchive("", zap.NewNop())
	require.NoError(t, err)
	defer archive.Close()

	first := sampleInputs()
	require.NoError(t, archive.Record("req-1", first))

	second := sampleInputs()
	second.Request.DataVersion = "v2"
	require.NoError(t, archive.Record("req-1", second))

	loaded, err := archive.Load("req-1")
	require.NoError(t, err)
	assert.Empty(t, loaded.Request.DataVersion, "reproduction stays anchored to the original inputs")
}

func TestArchiveLoadMissingIsNotFound(t *testing.T) {
	archive, err := OpenInputArchive("", zap.NewNop())
	require.NoError(t, err)
	defer archive.Close()

	_, err = archive.Load("absent")
	require.Error(t, err)
	assert.True(t, commonerr.IsKind(err, commonerr.KindNotFound))
}

type recordingReplayer struct {
	req       model.CalculationRequest
	snapshots map[string]*model.MarketDataSnapshot
}

func (r *recordingReplayer) Replay(_ context.Context, req model.CalculationRequest, snapshots map[string]*model.MarketDataSnapshot) (*model.CalculationResult, error) {
	r.req = req
	r.snapshots = snapshots
	return &model.CalculationResult{RequestID: req.NaturalKey()}, nil
}

func TestReproducerReplaysRecordedInputsOnly(t *testing.T) {
	archive, err := OpenInputArchive("", zap.NewNop())
	require.NoError(t, err)
	defer archive.Close()

	inputs := sampleInputs()
	require.NoError(t, archive.Record("req-1", inputs))

	replay := &recordingReplayer{}
	rep := NewReproducer(archive, replay, zap.NewNop())

	result, err := rep.Reproduce(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, inputs.Request.NaturalKey(), result.RequestID)
	require.Contains(t, replay.snapshots, "swap-1")

	rate, ok := replay.snapshots["swap-1"].RateAtOrBefore("SOFR", time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("0.0525").Equal(rate))
}

func TestResultCache(t *testing.T) {
	cache := NewResultCache()
	_, ok := cache.Get("k")
	assert.False(t, ok)

	result := &model.CalculationResult{RequestID: "k"}
	cache.Put("k", result)

	got, ok := cache.Get("k")
	require.True(t, ok)
	assert.Same(t, result, got)
	assert.Equal(t, 1, cache.Len())
}
