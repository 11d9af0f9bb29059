//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/encodeous/routesim/core"
	"github.com/encodeous/routesim/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLadderConverges(t *testing.T) {
	defer goleak.VerifyNone(t)
	for _, variant := range variants {
		t.Run(variant.String(), func(t *testing.T) {
			sim := runFixture(t, "ladder.yaml", variant)
			assert.True(t, sim.Tracker.AllCorrect(), sim.RouteString())
			assert.Len(t, sim.Tracker.Routes(), 6)
		})
	}
}

func TestRingFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	for _, variant := range variants {
		t.Run(variant.String(), func(t *testing.T) {
			sim := runFixture(t, "ring_failure.yaml", variant)
			assert.True(t, sim.Tracker.AllCorrect(), sim.RouteString())
		})
	}
}

func TestRingFlap(t *testing.T) {
	defer goleak.VerifyNone(t)
	for _, variant := range variants {
		t.Run(variant.String(), func(t *testing.T) {
			sim := runFixture(t, "ring_flap.json", variant)
			assert.True(t, sim.Tracker.AllCorrect(), sim.RouteString())
		})
	}
}

func TestForwardingTables(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	sim := newSimulation(t, "ladder.yaml", core.DistanceVector)
	require.NoError(t, sim.Start(ctx))
	defer sim.Stop()
	require.NoError(t, sim.WaitEnd(ctx))

	expected := map[string][]string{
		"A": {"B via (nh: B, cost: 1)", "C via (nh: B, cost: 3)", "F via (nh: D, cost: 6)", "f via (nh: D, cost: 7)"},
		"C": {"D via (nh: B, cost: 6)", "E via (nh: F, cost: 6)", "a via (nh: B, cost: 4)"},
		"E": {"A via (nh: D, cost: 5)", "B via (nh: B, cost: 5)", "c via (nh: F, cost: 7)"},
	}
	for id, lines := range expected {
		dump, err := sim.Inspect(state.NodeId(id))
		require.NoError(t, err)
		for _, line := range lines {
			assert.Contains(t, dump, line, "router %s", id)
		}
	}
}
