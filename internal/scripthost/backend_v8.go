//go:build v8

package scripthost

import (
	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/v8engine"
)

func newRuntime(memoryLimitMB int) (core.JSRuntime, error) {
	rt, err := v8engine.New(memoryLimitMB)
	if err != nil {
		return nil, err
	}
	return rt, nil
}
