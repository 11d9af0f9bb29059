package state

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/samber/lo"
)

var namePattern, _ = regexp.Compile("^[0-9A-Za-z._-]+$")

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func LinkValidator(cfg *TopologyCfg, link LinkCfg) error {
	nodes := cfg.GetNodes()
	if !slices.Contains(nodes, link.A) {
		return fmt.Errorf("node %s not defined", link.A)
	}
	if !slices.Contains(nodes, link.B) {
		return fmt.Errorf("node %s not defined", link.B)
	}
	if link.A == link.B {
		return fmt.Errorf("link %s, %s must connect two different nodes", link.A, link.B)
	}
	return nil
}

// TopologyValidator checks that a topology is self-consistent before a simulation is built from it.
func TopologyValidator(cfg *TopologyCfg) error {
	if cfg.EndTime <= 0 {
		return fmt.Errorf("endTime must be positive")
	}
	if cfg.ClientSendRate <= 0 {
		return fmt.Errorf("clientSendRate must be positive")
	}
	nodes := cfg.GetNodes()
	for _, node := range nodes {
		if err := NameValidator(string(node)); err != nil {
			return err
		}
	}
	if dups := lo.FindDuplicates(nodes); len(dups) != 0 {
		return fmt.Errorf("duplicate node found: %s", dups[0])
	}

	edges := make([]Pair[NodeId, NodeId], 0)
	ports := make([]Pair[NodeId, Port], 0)
	for _, link := range cfg.Links {
		if err := LinkValidator(cfg, link); err != nil {
			return err
		}
		if slices.Contains(edges, link.Edge()) {
			return fmt.Errorf("duplicate link found: %s, %s", link.A, link.B)
		}
		edges = append(edges, link.Edge())
		for _, p := range []Pair[NodeId, Port]{{link.A, link.PortA}, {link.B, link.PortB}} {
			if slices.Contains(ports, p) {
				return fmt.Errorf("port %d is used more than once on node %s", p.V2, p.V1)
			}
			ports = append(ports, p)
		}
	}

	for _, client := range cfg.Clients {
		for _, dst := range client.Destinations {
			if !slices.Contains(nodes, dst) {
				return fmt.Errorf("client %s: destination %s not defined", client.Id, dst)
			}
		}
	}

	for _, change := range cfg.Changes {
		if change.Time < 0 {
			return fmt.Errorf("change at %v: time must not be negative", change.Time)
		}
		switch change.Kind {
		case LinkUp, LinkDown:
		default:
			return fmt.Errorf("change at %v: unknown kind %q", change.Time, change.Kind)
		}
		if err := LinkValidator(cfg, change.Link); err != nil {
			return fmt.Errorf("change at %v: %w", change.Time, err)
		}
	}

	for _, route := range cfg.CorrectRoutes {
		if len(route) < 2 {
			return fmt.Errorf("correct route %v must have at least two hops", route)
		}
		for _, hop := range route {
			if !slices.Contains(nodes, hop) {
				return fmt.Errorf("correct route %v: node %s not defined", route, hop)
			}
		}
	}
	return nil
}
