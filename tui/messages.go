// ABOUTME: Bubble Tea message types and commands that bridge store and preview events into the update loop.
// ABOUTME: Each wait command delivers one event and is re-issued by the model after handling it.
package tui

import (
	"github.com/2389-research/vellum/artifact"
	"github.com/2389-research/vellum/preview"
	tea "github.com/charmbracelet/bubbletea"
)

// StoreEventMsg wraps an artifact store event.
type StoreEventMsg struct {
	Event artifact.Event
}

// PreviewEventMsg wraps a preview status event.
type PreviewEventMsg struct {
	Event preview.Event
}

// RetryResultMsg reports the outcome of a retry request.
type RetryResultMsg struct {
	Err error
}

// WaitForStoreEventCmd waits for the next store event. A closed channel ends
// the wait loop.
func WaitForStoreEventCmd(ch <-chan artifact.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return StoreEventMsg{Event: ev}
	}
}

// WaitForPreviewEventCmd waits for the next preview event.
func WaitForPreviewEventCmd(sub *preview.Subscription) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub.C
		if !ok {
			return nil
		}
		return PreviewEventMsg{Event: ev}
	}
}
