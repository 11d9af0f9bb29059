package state

import (
	"slices"
	"time"

	"github.com/samber/lo"
)

// TopologyCfg describes a simulated network. Field names follow the JSON
// network files the simulator has always accepted, so those load unchanged.
type TopologyCfg struct {
	EndTime        float64       `yaml:"endTime"`        // in scaled units
	ClientSendRate float64       `yaml:"clientSendRate"` // in scaled units
	TimeUnit       Duration      `yaml:"timeUnit,omitempty"`
	Routers        []NodeId      `yaml:"routers"`
	Clients        []ClientCfg   `yaml:"clients"`
	Links          []LinkCfg     `yaml:"links"`
	Changes        []ChangeCfg   `yaml:"changes,omitempty"`
	CorrectRoutes  [][]NodeId    `yaml:"correctRoutes"`
	Visualize      *VisualizeCfg `yaml:"visualize,omitempty"` // accepted and ignored
}

type VisualizeCfg struct {
	TimeMultiplier float64 `yaml:"timeMultiplier,omitempty"`
}

// ClientCfg may also be written as a bare node name, in which case the client
// probes every other client.
type ClientCfg struct {
	Id           NodeId   `yaml:"id"`
	Destinations []NodeId `yaml:"destinations,omitempty"`
}

// LinkCfg may also be written as [a, b, portA, portB, costAB, costBA].
type LinkCfg struct {
	A      NodeId `yaml:"a"`
	B      NodeId `yaml:"b"`
	PortA  Port   `yaml:"portA"`
	PortB  Port   `yaml:"portB"`
	CostAB uint32 `yaml:"costAB"`
	CostBA uint32 `yaml:"costBA"`
}

func (l LinkCfg) Edge() Pair[NodeId, NodeId] {
	return Edge(l.A, l.B)
}

type ChangeKind string

const (
	LinkUp   ChangeKind = "up"
	LinkDown ChangeKind = "down"
)

// ChangeCfg may also be written as [time, target, kind], where target is a full
// link for "up" and [a, b] for "down".
type ChangeCfg struct {
	Time float64    `yaml:"time"`
	Kind ChangeKind `yaml:"kind"`
	Link LinkCfg    `yaml:"link"`
}

// Duration is a time.Duration written as text, e.g. "100ms".
type Duration time.Duration

// Unit returns the real time represented by one scaled unit.
func (c *TopologyCfg) Unit() time.Duration {
	if c.TimeUnit <= 0 {
		return DefaultTimeUnit
	}
	return time.Duration(c.TimeUnit)
}

// Scaled converts scaled units to real time.
func (c *TopologyCfg) Scaled(units float64) time.Duration {
	return time.Duration(units * float64(c.Unit()))
}

func (c *TopologyCfg) ClientIds() []NodeId {
	return lo.Map(c.Clients, func(cl ClientCfg, _ int) NodeId {
		return cl.Id
	})
}

func (c *TopologyCfg) GetNodes() []NodeId {
	nodes := slices.Clone(c.Routers)
	return append(nodes, c.ClientIds()...)
}

func (c *TopologyCfg) IsRouter(id NodeId) bool {
	return slices.Contains(c.Routers, id)
}

func (c *TopologyCfg) IsClient(id NodeId) bool {
	return slices.Contains(c.ClientIds(), id)
}

// GetDestinations returns the nodes a client sends probes to.
func (c *TopologyCfg) GetDestinations(client ClientCfg) []NodeId {
	if len(client.Destinations) != 0 {
		return client.Destinations
	}
	return lo.Without(c.ClientIds(), client.Id)
}

// GetCorrectRoutes groups the known-good routes by (source, destination).
func (c *TopologyCfg) GetCorrectRoutes() map[Pair[NodeId, NodeId]][][]NodeId {
	routes := make(map[Pair[NodeId, NodeId]][][]NodeId)
	for _, route := range c.CorrectRoutes {
		if len(route) == 0 {
			continue
		}
		key := Pair[NodeId, NodeId]{route[0], route[len(route)-1]}
		routes[key] = append(routes[key], route)
	}
	return routes
}
