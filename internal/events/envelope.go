package events

import (
	"encoding/json"
	"fmt"
)

// Envelope is the payload of a subsystem event. Multi-instance subsystems
// set InstanceKey ("whiteboardId", "annotationId") and InstanceID.
type Envelope struct {
	InstanceKey string
	InstanceID  string
	Data        []any
}

// MarshalJSON encodes {"data": [...]} or {"<instanceKey>": id, "data": [...]}.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Map())
}

// Map returns the envelope as a plain mapping, the form handed to scripts.
func (e Envelope) Map() map[string]any {
	data := e.Data
	if data == nil {
		data = []any{}
	}
	m := map[string]any{"data": data}
	if e.InstanceKey != "" {
		m[e.InstanceKey] = e.InstanceID
	}
	return m
}

// ParseEnvelope reads an envelope from a plain mapping. instanceKey is the
// subsystem's instance key, or "" for singletons.
func ParseEnvelope(m map[string]any, instanceKey string) (Envelope, error) {
	env := Envelope{InstanceKey: instanceKey}
	if raw, ok := m["data"]; ok && raw != nil {
		data, ok := raw.([]any)
		if !ok {
			return env, fmt.Errorf("envelope data is %T, want array", raw)
		}
		env.Data = data
	}
	if instanceKey != "" {
		id, _ := m[instanceKey].(string)
		if id == "" {
			return env, fmt.Errorf("envelope missing %s", instanceKey)
		}
		env.InstanceID = id
	}
	return env, nil
}

// SurfaceResult is the payload of a render-surface onResultReturned event.
// Exactly one of Result and Error is meaningful: a nil Result with a non-nil
// Error is a failure.
type SurfaceResult struct {
	ReactTag  int     `json:"reactTag"`
	RequestID int     `json:"requestId"`
	Result    any     `json:"result"`
	Error     *string `json:"error"`
}

// Map returns the result as a plain mapping, the form handed to scripts.
func (r SurfaceResult) Map() map[string]any {
	var errv any
	if r.Error != nil {
		errv = *r.Error
	}
	return map[string]any{
		"reactTag":  r.ReactTag,
		"requestId": r.RequestID,
		"result":    r.Result,
		"error":     errv,
	}
}
