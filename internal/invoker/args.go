package invoker

import (
	"fmt"

	"github.com/cryguy/rtcbridge/internal/core"
)

// Accessors used by native targets to read typed fields from an argument
// bag. Numbers may arrive as int or float64 depending on the caller.

// String returns args[key] as a string.
func String(args core.Args, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q is %T, want string", key, v)
	}
	return s, nil
}

// Int returns args[key] as an int.
func Int(args core.Args, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("argument %q is %T, want number", key, v)
}

// Bool returns args[key] as a bool, or def when absent.
func Bool(args core.Args, key string, def bool) (bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("argument %q is %T, want bool", key, v)
	}
	return b, nil
}

// Bytes returns args[key] as raw bytes. Text-tagged arguments reach native
// code in this form.
func Bytes(args core.Args, key string) ([]byte, error) {
	v, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("missing argument %q", key)
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("argument %q is %T, want bytes", key, v)
	}
	return b, nil
}

// View returns the injected render surface identity.
func View(args core.Args) (core.View, error) {
	v, ok := args[core.ViewKey].(core.View)
	if !ok {
		return core.View{}, fmt.Errorf("missing surface %q", core.ViewKey)
	}
	return v, nil
}
