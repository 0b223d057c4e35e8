package allocation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/dca-lab/internal/events"
	"github.com/aristath/dca-lab/pkg/logger"
)

func testResolver(t *testing.T, reserve float64, bus *events.Bus) *Resolver {
	t.Helper()
	r, err := NewResolver(reserve, bus, logger.New(logger.Config{Level: "error"}))
	require.NoError(t, err)
	return r
}

func TestNewResolverRejectsLowReserve(t *testing.T) {
	_, err := NewResolver(0.5, nil, logger.New(logger.Config{Level: "error"}))
	assert.Error(t, err)
}

func TestResolveUnderBudget(t *testing.T) {
	r := testResolver(t, 1.01, nil)
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	intents := r.Resolve(date, 500000, 1000, []AssetRequest{
		{Symbol: "QQQ", Weight: 0.6, Price: 400, Multiplier: 1.0},
		{Symbol: "NVDA", Weight: 0.4, Price: 80, Multiplier: 1.5},
	})

	require.Len(t, intents, 2)
	assert.InDelta(t, 600.0, intents[0].Spend, 1e-9)
	assert.InDelta(t, 600.0/400.0, intents[0].Quantity, 1e-12)
	assert.InDelta(t, 600.0, intents[1].Spend, 1e-9) // 1000 * 0.4 * 1.5
	assert.InDelta(t, 7.5, intents[1].Quantity, 1e-12)
	assert.False(t, intents[0].Scaled)
	assert.False(t, intents[1].Scaled)
}

func TestResolveScalesUniformly(t *testing.T) {
	r := testResolver(t, 1.01, nil)
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// desired 180 + 180 = 360 against a 100 cap
	intents := r.Resolve(date, 101, 300, []AssetRequest{
		{Symbol: "QQQ", Weight: 0.6, Price: 10, Multiplier: 1.0},
		{Symbol: "NVDA", Weight: 0.4, Price: 20, Multiplier: 1.5},
	})

	require.Len(t, intents, 2)
	total := intents[0].Spend + intents[1].Spend
	assert.InDelta(t, 100.0, total, 1e-9, "scaled total should equal max deployable")
	// relative tilt between the two assets survives rescaling
	assert.InDelta(t, 1.0, intents[0].Spend/intents[1].Spend, 1e-12)
	assert.True(t, intents[0].Scaled)
	assert.True(t, intents[1].Scaled)
	for _, it := range intents {
		assert.InDelta(t, it.Spend/it.Price, it.Quantity, 1e-12)
	}
}

func TestResolveSkipsInvalidPrices(t *testing.T) {
	r := testResolver(t, 1.01, nil)
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	intents := r.Resolve(date, 500000, 1000, []AssetRequest{
		{Symbol: "QQQ", Weight: 0.25, Price: 0, Multiplier: 1.0},
		{Symbol: "NVDA", Weight: 0.25, Price: math.NaN(), Multiplier: 1.0},
		{Symbol: "MSFT", Weight: 0.25, Price: -4, Multiplier: 1.0},
		{Symbol: "AAPL", Weight: 0.25, Price: 190, Multiplier: 1.0},
	})

	require.Len(t, intents, 1)
	assert.Equal(t, "AAPL", intents[0].Symbol)
	assert.InDelta(t, 250.0, intents[0].Spend, 1e-9)
}

func TestResolveNoDeployableCash(t *testing.T) {
	r := testResolver(t, 1.01, nil)
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assets := []AssetRequest{{Symbol: "QQQ", Weight: 1.0, Price: 400, Multiplier: 1.0}}

	assert.Nil(t, r.Resolve(date, 0, 1000, assets))
	assert.Nil(t, r.Resolve(date, -50, 1000, assets))
}

func TestResolveNothingDesired(t *testing.T) {
	r := testResolver(t, 1.01, nil)
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	intents := r.Resolve(date, 500000, 1000, []AssetRequest{
		{Symbol: "QQQ", Weight: 0.5, Price: 400, Multiplier: 0},
		{Symbol: "NVDA", Weight: 0.5, Price: 0, Multiplier: 1.0},
	})
	assert.Nil(t, intents)
}

func TestResolveEmitsScaleEvent(t *testing.T) {
	bus := events.NewBus(logger.New(logger.Config{Level: "error"}))
	var scaled []*events.Event
	bus.Subscribe(events.OrdersScaled, func(e *events.Event) {
		scaled = append(scaled, e)
	})

	r := testResolver(t, 1.01, bus)
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// under budget: no event
	r.Resolve(date, 500000, 1000, []AssetRequest{
		{Symbol: "QQQ", Weight: 1.0, Price: 400, Multiplier: 1.0},
	})
	assert.Empty(t, scaled)

	// over budget: exactly one event carrying the scale factor
	r.Resolve(date, 101, 1000, []AssetRequest{
		{Symbol: "QQQ", Weight: 1.0, Price: 400, Multiplier: 1.0},
	})
	require.Len(t, scaled, 1)
	assert.Equal(t, "budget", scaled[0].Source)
	assert.InDelta(t, 0.1, scaled[0].Data["scale"].(float64), 1e-9)
}
