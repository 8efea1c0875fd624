//go:build !cgo

package hal

import (
	"context"
	"errors"
)

func RunWindow(_ context.Context, _ Config, _ func(*Host) (Runner, error)) error {
	return errors.New("window mode requires cgo (build/run with CGO_ENABLED=1)")
}
