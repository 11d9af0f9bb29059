package state

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type clientAlias ClientCfg

func (c *ClientCfg) UnmarshalYAML(b []byte) error {
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return err
	}
	if _, ok := raw.(map[string]any); !ok {
		id, err := toNode(raw)
		if err != nil {
			return fmt.Errorf("client: %w", err)
		}
		*c = ClientCfg{Id: id}
		return nil
	}
	return yaml.Unmarshal(b, (*clientAlias)(c))
}

type linkAlias LinkCfg

func (l *LinkCfg) UnmarshalYAML(b []byte) error {
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return err
	}
	if seq, ok := raw.([]any); ok {
		return l.fromSeq(seq)
	}
	return yaml.Unmarshal(b, (*linkAlias)(l))
}

func (l *LinkCfg) fromSeq(seq []any) error {
	if len(seq) != 2 && len(seq) != 6 {
		return fmt.Errorf("link %v: expected [a, b] or [a, b, portA, portB, costAB, costBA]", seq)
	}
	var err error
	var link LinkCfg
	if link.A, err = toNode(seq[0]); err != nil {
		return err
	}
	if link.B, err = toNode(seq[1]); err != nil {
		return err
	}
	if len(seq) == 6 {
		nums := make([]uint64, 4)
		for i := range nums {
			if nums[i], err = toUint(seq[i+2]); err != nil {
				return fmt.Errorf("link %v: %w", seq, err)
			}
		}
		link.PortA, link.PortB = Port(nums[0]), Port(nums[1])
		link.CostAB, link.CostBA = uint32(nums[2]), uint32(nums[3])
	}
	*l = link
	return nil
}

type changeAlias ChangeCfg

func (c *ChangeCfg) UnmarshalYAML(b []byte) error {
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return err
	}
	seq, ok := raw.([]any)
	if !ok {
		return yaml.Unmarshal(b, (*changeAlias)(c))
	}
	if len(seq) != 3 {
		return fmt.Errorf("change %v: expected [time, target, kind]", seq)
	}
	at, err := toFloat(seq[0])
	if err != nil {
		return fmt.Errorf("change %v: %w", seq, err)
	}
	target, ok := seq[1].([]any)
	if !ok {
		return fmt.Errorf("change %v: target must be a list", seq)
	}
	var change ChangeCfg
	change.Time = at
	if err = change.Link.fromSeq(target); err != nil {
		return err
	}
	kind, ok := seq[2].(string)
	if !ok {
		return fmt.Errorf("change %v: kind must be a string", seq)
	}
	change.Kind = ChangeKind(kind)
	*c = change
	return nil
}

func toNode(v any) (NodeId, error) {
	switch x := v.(type) {
	case string:
		return NodeId(x), nil
	case int, int64, uint64:
		return NodeId(fmt.Sprint(x)), nil
	default:
		return "", fmt.Errorf("%v is not a valid node name", v)
	}
}

func toUint(v any) (uint64, error) {
	switch x := v.(type) {
	case int:
		if x < 0 {
			return 0, fmt.Errorf("%d must not be negative", x)
		}
		return uint64(x), nil
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("%d must not be negative", x)
		}
		return uint64(x), nil
	case uint64:
		return x, nil
	case float64:
		if x < 0 || x != float64(uint64(x)) {
			return 0, fmt.Errorf("%v must be a non-negative integer", x)
		}
		return uint64(x), nil
	case string:
		return strconv.ParseUint(x, 10, 32)
	default:
		return 0, fmt.Errorf("%v is not a number", v)
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, fmt.Errorf("%v is not a number", v)
	}
}

// ParseTopology decodes a topology document. JSON documents are accepted as well.
func ParseTopology(data []byte) (*TopologyCfg, error) {
	var cfg TopologyCfg
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}
	return &cfg, nil
}
