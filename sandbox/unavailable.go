// ABOUTME: Runtime used when no sandbox is configured; every boot fails with a fixed message.
// ABOUTME: Lets the rest of the pipeline run and fall back to the static preview.
package sandbox

import (
	"context"
	"errors"

	"github.com/2389-research/vellum/preview"
)

// Unavailable is a Runtime that never boots.
type Unavailable struct {
	Message string
}

// Boot always fails.
func (u Unavailable) Boot(ctx context.Context, files map[string]string) (preview.Instance, error) {
	msg := u.Message
	if msg == "" {
		msg = "live preview sandbox is disabled"
	}
	return nil, errors.New(msg)
}
