package engine

import (
	"fmt"
	"log"

	"patchbay"
)

// Graph is the connection topology over all ports of one engine. It creates
// ports sized to the engine block length, validates proposed connections, and
// supplies the processing order. The graph is derived state: only the
// connections are persisted, as identifier pairs.
type Graph struct {
	blockLength int
	backend     patchbay.Backend
	ports       []*Port
}

func NewGraph(blockLength int, backend patchbay.Backend) *Graph {
	return &Graph{blockLength: blockLength, backend: backend}
}

// BlockLength returns the engine block length the graph's port buffers are
// sized to.
func (g *Graph) BlockLength() int { return g.blockLength }

// NewPort creates a zero-filled port of the given kind and registers it in
// the graph. The identifier's owner fields stay unset until one of the owner
// setters is called.
func (g *Graph) NewPort(kind patchbay.SignalKind, flow patchbay.Flow, label string) *Port {
	p := newPort(g, kind, flow, label)
	g.ports = append(g.ports, p)
	return p
}

// Ports returns all ports in creation order.
func (g *Graph) Ports() []*Port { return g.ports }

func (g *Graph) remove(p *Port) {
	for i, q := range g.ports {
		if q == p {
			g.ports = append(g.ports[:i], g.ports[i+1:]...)
			return
		}
	}
}

// Expose registers the port with the hardware backend so that the propagator
// pulls from and pushes to it during processing.
func (g *Graph) Expose(p *Port) error {
	if g.backend == nil {
		return fmt.Errorf("expose %s: no backend", p.Designation())
	}
	h, err := g.backend.RegisterPort(p.ID)
	if err != nil {
		return fmt.Errorf("expose %s: %w", p.Designation(), err)
	}
	p.backend = g.backend
	p.handle = h
	return nil
}

// ProcessOrder returns the ports in dependency order: every port appears
// after all of its sources. Among ready ports, creation order decides, so the
// order is deterministic.
func (g *Graph) ProcessOrder() []*Port {
	order, ok := topoSort(g.ports, nil, nil)
	if !ok {
		// connections are cycle-checked before commit, so this is a
		// programming error; degrade by processing in creation order
		log.Print("port graph has a cycle, processing in creation order")
		return g.ports
	}
	return order
}

// State snapshots the current connections for persistence.
func (g *Graph) State() *patchbay.GraphState {
	var s patchbay.GraphState
	for _, p := range g.ports {
		for _, e := range p.dests {
			s.Connections = append(s.Connections, patchbay.Connection{
				Src:     p.ID,
				Dst:     e.port.ID,
				Mult:    e.mult,
				Locked:  e.locked,
				Enabled: e.enabled,
			})
		}
	}
	return &s
}

// trialAcyclic reports whether the graph stays acyclic with the edge
// src -> dst added. It builds a trial topological order including the
// proposed edge and discards it.
func trialAcyclic(src, dst *Port) bool {
	g := src.graph
	if g == nil {
		g = dst.graph
	}
	if g == nil {
		// detached ports; only a direct self-loop can cycle
		return src != dst
	}
	_, ok := topoSort(g.ports, src, dst)
	return ok
}

// topoSort runs Kahn's algorithm over ports, optionally including the extra
// edge extraSrc -> extraDst. It returns the order and whether the graph is
// acyclic.
func topoSort(ports []*Port, extraSrc, extraDst *Port) ([]*Port, bool) {
	indeg := make(map[*Port]int, len(ports))
	for _, p := range ports {
		indeg[p] = len(p.srcs)
	}
	if extraSrc != nil && extraDst != nil {
		indeg[extraDst]++
	}
	queue := make([]*Port, 0, len(ports))
	for _, p := range ports {
		if indeg[p] == 0 {
			queue = append(queue, p)
		}
	}
	order := make([]*Port, 0, len(ports))
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		order = append(order, p)
		for _, e := range p.dests {
			indeg[e.port]--
			if indeg[e.port] == 0 {
				queue = append(queue, e.port)
			}
		}
		if p == extraSrc && extraDst != nil {
			indeg[extraDst]--
			if indeg[extraDst] == 0 {
				queue = append(queue, extraDst)
			}
		}
	}
	return order, len(order) == len(ports)
}
