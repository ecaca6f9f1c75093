// ABOUTME: Contracts for the external sandbox runtime that executes previews.
// ABOUTME: A Runtime boots instances; an Instance streams lifecycle notifications and can be reset.
package preview

import (
	"context"
	"fmt"
)

// NotificationKind is a lifecycle signal reported by a sandbox instance.
type NotificationKind string

const (
	NotifyReady           NotificationKind = "ready"
	NotifyInstalling      NotificationKind = "installing"
	NotifyInstallComplete NotificationKind = "install-complete"
	NotifyServerStarting  NotificationKind = "server-starting"
	NotifyPreviewReady    NotificationKind = "preview-ready"
	NotifyError           NotificationKind = "error"
)

// ParseNotificationKind validates a wire-level notification name.
func ParseNotificationKind(s string) (NotificationKind, error) {
	switch k := NotificationKind(s); k {
	case NotifyReady, NotifyInstalling, NotifyInstallComplete, NotifyServerStarting, NotifyPreviewReady, NotifyError:
		return k, nil
	}
	return "", fmt.Errorf("unknown notification kind %q", s)
}

// Notification is one signal from a running instance. URL is set for
// preview-ready, Message for error.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	URL     string           `json:"url,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Runtime boots sandbox instances from a path to content map.
type Runtime interface {
	Boot(ctx context.Context, files map[string]string) (Instance, error)
}

// Instance is one booted sandbox. The notification channel is closed when the
// instance stops reporting.
type Instance interface {
	Notifications() <-chan Notification
	Reset(ctx context.Context) error
}

// RuntimeFunc adapts a function to the Runtime interface.
type RuntimeFunc func(ctx context.Context, files map[string]string) (Instance, error)

// Boot calls f.
func (f RuntimeFunc) Boot(ctx context.Context, files map[string]string) (Instance, error) {
	return f(ctx, files)
}
