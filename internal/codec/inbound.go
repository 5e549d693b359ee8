package codec

import "github.com/cryguy/rtcbridge/internal/core"

// Field selects part of an event's positional data for decoding.
type Field struct {
	Index int
	// Sub, when set, names a key inside every record of the array found at
	// Index. Without it the element at Index is decoded as a whole.
	Sub string
}

var inbound = map[core.Subsystem]map[string][]Field{
	core.MessageService: {
		"onUserMessage":     {{Index: 1}},
		"onTopicMessage":    {{Index: 2}},
		"onPropertyChanged": {{Index: 0, Sub: "propValue"}},
	},
	core.Whiteboard: {
		"onMessage": {{Index: 1}},
	},
}

// Fields returns the decoding table entry for an event, if any.
func Fields(s core.Subsystem, event string) ([]Field, bool) {
	f, ok := inbound[s][event]
	return f, ok
}

// DecodeEvent converts the byte-valued fields of an event's positional data
// to text. Events with a table entry decode only the listed fields; every
// other event has each element walked with Decode. data is not mutated.
func DecodeEvent(s core.Subsystem, event string, data []any) []any {
	if data == nil {
		return nil
	}
	out := make([]any, len(data))
	copy(out, data)

	fields, ok := Fields(s, event)
	if !ok {
		for i, e := range out {
			out[i] = Decode(e)
		}
		return out
	}
	for _, f := range fields {
		if f.Index < 0 || f.Index >= len(out) {
			continue
		}
		if f.Sub == "" {
			out[f.Index] = Decode(out[f.Index])
			continue
		}
		out[f.Index] = decodeRecords(out[f.Index], f.Sub)
	}
	return out
}

// decodeRecords decodes key in every map record of a record list.
func decodeRecords(v any, key string) any {
	records, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]any, len(records))
	for i, r := range records {
		m, ok := r.(map[string]any)
		if !ok {
			out[i] = r
			continue
		}
		cp := make(map[string]any, len(m))
		for k, e := range m {
			cp[k] = e
		}
		if e, ok := cp[key]; ok {
			cp[key] = Decode(e)
		}
		out[i] = cp
	}
	return out
}
