// Package codec moves text fields across the native boundary. Native code
// sees message bodies and property values as raw bytes; scripts see UTF-8
// text. Conversion is always a direct bytes<->UTF-8 transform.
package codec

import (
	"strings"

	"github.com/cryguy/rtcbridge/internal/core"
)

// StringPrefix marks an outbound argument whose text value must reach native
// code as bytes. The prefix is stripped from the key.
const StringPrefix = "str_"

// MessageKey is the fixed argument key converted for message-sending methods.
const MessageKey = "message"

// fixedKeys lists, per subsystem and method, argument keys that always
// convert to bytes regardless of prefix.
var fixedKeys = map[core.Subsystem]map[string][]string{
	core.MessageService: {
		"sendMessage":      {MessageKey},
		"broadcastMessage": {MessageKey},
	},
	core.Whiteboard: {
		"sendMessage":      {MessageKey},
		"broadcastMessage": {MessageKey},
	},
}

// EncodeArgs applies the outbound conventions to a copy of args: string
// values under a fixed key for the method, and under any key beginning with
// StringPrefix, become bytes; the prefix is stripped. nil stays nil.
func EncodeArgs(s core.Subsystem, method string, args core.Args) core.Args {
	if args == nil {
		return nil
	}
	out := make(core.Args, len(args))
	for k, v := range args {
		if strings.HasPrefix(k, StringPrefix) && len(k) > len(StringPrefix) {
			out[k[len(StringPrefix):]] = toBytes(v)
			continue
		}
		if _, clash := out[k]; clash {
			// A stripped str_ key already claimed this name.
			continue
		}
		out[k] = v
	}
	for _, k := range fixedKeys[s][method] {
		if v, ok := out[k]; ok {
			out[k] = toBytes(v)
		}
	}
	return out
}

func toBytes(v any) any {
	if s, ok := v.(string); ok {
		return []byte(s)
	}
	return v
}

// Decode walks v and replaces every []byte with its UTF-8 text, recursing
// into slices and string-keyed maps. Containers are copied, never mutated.
func Decode(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Decode(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Decode(e)
		}
		return out
	}
	return v
}

// Encode is the inverse walk of Decode: every string becomes []byte.
func Encode(v any) any {
	switch x := v.(type) {
	case string:
		return []byte(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Encode(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Encode(e)
		}
		return out
	}
	return v
}
