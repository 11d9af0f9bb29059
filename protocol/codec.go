// Package protocol implements the wire encoding of simulator messages.
//
// Messages use the protobuf wire format, written by hand with protowire:
//
//	Message         { 1: kind, 2: src, 3: dst, 4: route (repeated), 5: payload }
//	RouteUpdate     { 1: src, 2: dst, 3: cost }
//	LinkStateRecord { 1: owner, 2: seqno, 3: neighbour (repeated) }
//	Neighbour       { 1: id, 2: cost }
//	Probe           { 1: id, 2: sent at (unix nanoseconds) }
//
// Every field of a routing payload is required; a payload missing one is
// rejected with state.ErrMalformedUpdate.
package protocol

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/encodeous/routesim/state"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldKind    protowire.Number = 1
	fieldSrc     protowire.Number = 2
	fieldDst     protowire.Number = 3
	fieldRoute   protowire.Number = 4
	fieldPayload protowire.Number = 5
)

// Marshal encodes a message for transmission over a link.
func Marshal(m state.Message) ([]byte, error) {
	payload, err := marshalPayload(m.Payload)
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, 32+len(payload))
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Kind()))
	b = appendString(b, fieldSrc, string(m.Src))
	b = appendString(b, fieldDst, string(m.Dst))
	for _, hop := range m.Route {
		b = appendString(b, fieldRoute, string(hop))
	}
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, payload)
	return b, nil
}

func marshalPayload(p state.Payload) ([]byte, error) {
	var b []byte
	switch p := p.(type) {
	case state.RouteUpdate:
		b = appendString(b, 1, string(p.Src))
		b = appendString(b, 2, string(p.Dst))
		b = appendVarint(b, 3, uint64(p.Cost))
	case state.LinkStateRecord:
		b = appendString(b, 1, string(p.Owner))
		b = appendVarint(b, 2, uint64(p.Seqno))
		for _, nb := range sortedNeighbours(p.NbCost) {
			var e []byte
			e = appendString(e, 1, string(nb.Id))
			e = appendVarint(e, 2, uint64(nb.Cost))
			b = protowire.AppendTag(b, 3, protowire.BytesType)
			b = protowire.AppendBytes(b, e)
		}
	case state.Probe:
		id, _ := p.Id.MarshalBinary()
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, id)
		b = appendVarint(b, 2, uint64(p.SentAt.UnixNano()))
	default:
		return nil, fmt.Errorf("cannot encode payload %T", p)
	}
	return b, nil
}

// Unmarshal decodes and validates a message received from a link.
func Unmarshal(b []byte) (state.Message, error) {
	var m state.Message
	var kind state.MessageKind
	var payload []byte
	hasPayload := false

	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		if want, ok := envelopeTypes[num]; ok && typ != want {
			return wrongType(num, typ, want)
		}
		switch num {
		case fieldKind:
			kind = state.MessageKind(x)
		case fieldSrc:
			m.Src = state.NodeId(v)
		case fieldDst:
			m.Dst = state.NodeId(v)
		case fieldRoute:
			m.Route = append(m.Route, state.NodeId(v))
		case fieldPayload:
			payload = v
			hasPayload = true
		}
		return nil
	})
	if err != nil {
		return state.Message{}, err
	}
	if !hasPayload {
		return state.Message{}, fmt.Errorf("%s message has no payload: %w", kind, state.ErrMalformedUpdate)
	}

	switch kind {
	case state.RoutingUpdate:
		m.Payload, err = unmarshalRouteUpdate(payload)
	case state.LinkState:
		m.Payload, err = unmarshalLinkState(payload)
	case state.TraceProbe:
		m.Payload, err = unmarshalProbe(payload)
	default:
		err = fmt.Errorf("unknown message kind %d: %w", kind, state.ErrMalformedUpdate)
	}
	if err != nil {
		return state.Message{}, err
	}
	return m, nil
}

func unmarshalRouteUpdate(b []byte) (state.RouteUpdate, error) {
	var upd state.RouteUpdate
	var seen [4]bool
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		if want, ok := routeUpdateTypes[num]; ok && typ != want {
			return wrongType(num, typ, want)
		}
		switch num {
		case 1:
			upd.Src = state.NodeId(v)
		case 2:
			upd.Dst = state.NodeId(v)
		case 3:
			if x > uint64(^uint32(0)) {
				return fmt.Errorf("cost %d out of range: %w", x, state.ErrMalformedUpdate)
			}
			upd.Cost = uint32(x)
		default:
			return nil
		}
		seen[num] = true
		return nil
	})
	if err != nil {
		return upd, err
	}
	for num, name := range []string{1: "src", 2: "dst", 3: "cost"} {
		if num != 0 && !seen[num] {
			return upd, fmt.Errorf("route update missing %s: %w", name, state.ErrMalformedUpdate)
		}
	}
	return upd, nil
}

func unmarshalLinkState(b []byte) (state.LinkStateRecord, error) {
	rec := state.LinkStateRecord{NbCost: make(map[state.NodeId]uint32)}
	hasOwner, hasSeqno := false, false
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		if want, ok := linkStateTypes[num]; ok && typ != want {
			return wrongType(num, typ, want)
		}
		switch num {
		case 1:
			rec.Owner = state.NodeId(v)
			hasOwner = true
		case 2:
			if x > uint64(^uint32(0)) {
				return fmt.Errorf("seqno %d out of range: %w", x, state.ErrMalformedUpdate)
			}
			rec.Seqno = uint32(x)
			hasSeqno = true
		case 3:
			var nb state.Neighbour
			hasId, hasCost := false, false
			err := consumeFields(v, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
				if want, ok := neighbourTypes[num]; ok && typ != want {
					return wrongType(num, typ, want)
				}
				switch num {
				case 1:
					nb.Id = state.NodeId(v)
					hasId = true
				case 2:
					if x > uint64(^uint32(0)) {
						return fmt.Errorf("neighbour cost %d out of range: %w", x, state.ErrMalformedUpdate)
					}
					nb.Cost = uint32(x)
					hasCost = true
				}
				return nil
			})
			if err != nil {
				return err
			}
			if !hasId || !hasCost {
				return fmt.Errorf("link state neighbour missing id or cost: %w", state.ErrMalformedUpdate)
			}
			rec.NbCost[nb.Id] = nb.Cost
		}
		return nil
	})
	if err != nil {
		return rec, err
	}
	if !hasOwner || !hasSeqno {
		return rec, fmt.Errorf("link state record missing owner or seqno: %w", state.ErrMalformedUpdate)
	}
	return rec, nil
}

func unmarshalProbe(b []byte) (state.Probe, error) {
	var p state.Probe
	hasId, hasSentAt := false, false
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		if want, ok := probeTypes[num]; ok && typ != want {
			return wrongType(num, typ, want)
		}
		switch num {
		case 1:
			id, err := uuid.FromBytes(v)
			if err != nil {
				return fmt.Errorf("probe id: %w", state.ErrMalformedUpdate)
			}
			p.Id = id
			hasId = true
		case 2:
			p.SentAt = time.Unix(0, int64(x))
			hasSentAt = true
		}
		return nil
	})
	if err != nil {
		return p, err
	}
	if !hasId || !hasSentAt {
		return p, fmt.Errorf("probe missing id or sent at: %w", state.ErrMalformedUpdate)
	}
	return p, nil
}

// expected wire type of every known field, per message
var (
	envelopeTypes = map[protowire.Number]protowire.Type{
		fieldKind:    protowire.VarintType,
		fieldSrc:     protowire.BytesType,
		fieldDst:     protowire.BytesType,
		fieldRoute:   protowire.BytesType,
		fieldPayload: protowire.BytesType,
	}
	routeUpdateTypes = map[protowire.Number]protowire.Type{1: protowire.BytesType, 2: protowire.BytesType, 3: protowire.VarintType}
	linkStateTypes   = map[protowire.Number]protowire.Type{1: protowire.BytesType, 2: protowire.VarintType, 3: protowire.BytesType}
	neighbourTypes   = map[protowire.Number]protowire.Type{1: protowire.BytesType, 2: protowire.VarintType}
	probeTypes       = map[protowire.Number]protowire.Type{1: protowire.BytesType, 2: protowire.VarintType}
)

func wrongType(num protowire.Number, got, want protowire.Type) error {
	return fmt.Errorf("field %d has wire type %d, expected %d: %w", num, got, want, state.ErrMalformedUpdate)
}

func sortedNeighbours(nbCost map[state.NodeId]uint32) []state.Neighbour {
	nbs := make([]state.Neighbour, 0, len(nbCost))
	for id, cost := range nbCost {
		nbs = append(nbs, state.Neighbour{Id: id, Cost: cost})
	}
	slices.SortFunc(nbs, func(a, b state.Neighbour) int {
		return cmp.Compare(a.Id, b.Id)
	})
	return nbs
}

// consumeFields walks every field in b. For varint fields x holds the value, for bytes fields v does.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", protowire.ParseError(n), state.ErrMalformedUpdate)
		}
		b = b[n:]
		var v []byte
		var x uint64
		switch typ {
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: %w", protowire.ParseError(n), state.ErrMalformedUpdate)
		}
		b = b[n:]
		if err := fn(num, typ, v, x); err != nil {
			return err
		}
	}
	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, x uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, x)
}
