//go:build integration

package integration

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/encodeous/routesim/core"
	"github.com/encodeous/routesim/state"
	"github.com/encodeous/tint"
	"github.com/stretchr/testify/require"
)

type Signal chan bool

func NewSignal() Signal {
	return make(chan bool)
}
func (s Signal) Trigger() {
	select {
	case <-s:
	default:
		close(s)
	}
}
func (s Signal) Triggered() bool {
	select {
	case <-s:
		return true
	default:
		return false
	}
}
func (s Signal) Wait() {
	<-s
}

var variants = []core.Variant{core.DistanceVector, core.LinkState}

func testLogger(t *testing.T) *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("ROUTESIM_VERBOSE") != "" {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:        level,
		CustomPrefix: t.Name(),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == "time" {
				return slog.Attr{}
			}
			return attr
		},
	}))
}

func loadFixture(t *testing.T, name string) *state.TopologyCfg {
	t.Helper()
	cfg, err := core.ReadTopology(filepath.Join("fixtures", name))
	require.NoError(t, err)
	return cfg
}

// newSimulation builds a simulator for a fixture. The caller owns starting and stopping it.
func newSimulation(t *testing.T, name string, variant core.Variant) *core.Simulator {
	t.Helper()
	sim, err := core.NewSimulator(*loadFixture(t, name), variant, testLogger(t))
	require.NoError(t, err)
	return sim
}

// runFixture runs a fixture to completion and returns the stopped simulator.
func runFixture(t *testing.T, name string, variant core.Variant) *core.Simulator {
	t.Helper()
	sim := newSimulation(t, name, variant)
	require.NoError(t, sim.Run(context.Background()))
	return sim
}
