package domain

import (
	"bytes"
	"encoding/json"
	"sort"
)

// TechSpecs holds open-ended technical attributes of a passport. It is a map
// with a JSON representation fixed to ascending key order, so the same set of
// entries always serializes to the same bytes regardless of insertion order.
type TechSpecs map[string]string

func (ts TechSpecs) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(ts))
	for k := range ts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valueBytes, err := json.Marshal(ts[k])
		if err != nil {
			return nil, err
		}
		buf.Write(valueBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Clone returns an independent copy so stores can hand out snapshots.
func (ts TechSpecs) Clone() TechSpecs {
	if ts == nil {
		return nil
	}
	out := make(TechSpecs, len(ts))
	for k, v := range ts {
		out[k] = v
	}
	return out
}
