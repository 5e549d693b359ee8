//go:build !v8

package scripthost

import (
	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/quickjs"
)

func newRuntime(memoryLimitMB int) (core.JSRuntime, error) {
	rt, err := quickjs.New(memoryLimitMB)
	if err != nil {
		return nil, err
	}
	return rt, nil
}
