// ABOUTME: Remote sandbox runtime talking to an HTTP preview service.
// ABOUTME: Boots with POST, streams lifecycle notifications over SSE, and tears down with DELETE.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/2389-research/vellum/preview"
	"github.com/2389-research/vellum/sandbox/sse"
)

// RemoteOption configures a Remote runtime.
type RemoteOption func(*Remote)

// WithHTTPClient replaces the HTTP client used for control requests and streams.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) {
		r.client = c
	}
}

// WithToken sends a bearer token with every request.
func WithToken(token string) RemoteOption {
	return func(r *Remote) {
		r.token = token
	}
}

// WithRemoteLogger sets the logger for stream diagnostics.
func WithRemoteLogger(l *log.Logger) RemoteOption {
	return func(r *Remote) {
		r.logger = l
	}
}

// Remote boots previews on a sandbox service.
type Remote struct {
	baseURL string
	client  *http.Client
	token   string
	logger  *log.Logger
}

// NewRemote creates a Remote runtime for the service at baseURL.
func NewRemote(baseURL string, opts ...RemoteOption) *Remote {
	r := &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type bootRequest struct {
	Files map[string]string `json:"files"`
}

type bootResponse struct {
	ID string `json:"id"`
}

type notificationData struct {
	Kind    string `json:"kind,omitempty"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r *Remote) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	return req, nil
}

// Boot creates an instance and opens its event stream.
func (r *Remote) Boot(ctx context.Context, files map[string]string) (preview.Instance, error) {
	payload, err := json.Marshal(bootRequest{Files: files})
	if err != nil {
		return nil, fmt.Errorf("encode boot request: %w", err)
	}
	req, err := r.newRequest(ctx, http.MethodPost, "/instances", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build boot request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("boot sandbox instance: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("unable to create more instances (HTTP 429): %s", readSnippet(resp.Body))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("boot sandbox instance: status %d: %s", resp.StatusCode, readSnippet(resp.Body))
	}

	var br bootResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("decode boot response: %w", err)
	}
	if br.ID == "" {
		return nil, errors.New("decode boot response: missing instance id")
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	inst := &remoteInstance{
		owner:  r,
		id:     br.ID,
		notes:  make(chan preview.Notification, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go inst.stream(streamCtx)
	return inst, nil
}

func readSnippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(data))
}

type remoteInstance struct {
	owner  *Remote
	id     string
	notes  chan preview.Notification
	cancel context.CancelFunc
	done   chan struct{}
	reset  sync.Once
}

func (i *remoteInstance) Notifications() <-chan preview.Notification {
	return i.notes
}

func (i *remoteInstance) path() string {
	return "/instances/" + url.PathEscape(i.id)
}

func (i *remoteInstance) stream(ctx context.Context) {
	defer close(i.done)
	defer close(i.notes)

	send := func(n preview.Notification) bool {
		select {
		case i.notes <- n:
			return true
		case <-ctx.Done():
			return false
		}
	}

	req, err := i.owner.newRequest(ctx, http.MethodGet, i.path()+"/events", nil)
	if err != nil {
		send(preview.Notification{Kind: preview.NotifyError, Message: err.Error()})
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := i.owner.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			send(preview.Notification{Kind: preview.NotifyError, Message: fmt.Sprintf("open event stream: %v", err)})
		}
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		send(preview.Notification{Kind: preview.NotifyError, Message: fmt.Sprintf("open event stream: status %d: %s", resp.StatusCode, readSnippet(resp.Body))})
		return
	}

	dec := sse.NewDecoder(resp.Body)
	for {
		ev, err := dec.Decode()
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				i.owner.logger.Printf("component=sandbox.remote action=stream_error instance=%s err=%v", i.id, err)
			}
			return
		}
		n, ok := decodeNotification(ev)
		if !ok {
			i.owner.logger.Printf("component=sandbox.remote action=skip_event instance=%s type=%q", i.id, ev.Type)
			continue
		}
		if !send(n) {
			return
		}
	}
}

// decodeNotification maps an SSE event onto a notification. The event name is
// the kind; unnamed events may carry the kind in their JSON data.
func decodeNotification(ev sse.Event) (preview.Notification, bool) {
	var data notificationData
	if strings.TrimSpace(ev.Data) != "" {
		if err := json.Unmarshal([]byte(ev.Data), &data); err != nil {
			data.Message = ev.Data
		}
	}
	kindName := ev.Type
	if kindName == "message" {
		kindName = data.Kind
	}
	kind, err := preview.ParseNotificationKind(kindName)
	if err != nil {
		return preview.Notification{}, false
	}
	return preview.Notification{Kind: kind, URL: data.URL, Message: data.Message}, true
}

// Reset closes the stream and deletes the instance. A missing instance counts
// as already reset.
func (i *remoteInstance) Reset(ctx context.Context) error {
	var err error
	i.reset.Do(func() {
		i.cancel()
		select {
		case <-i.done:
		case <-time.After(2 * time.Second):
		}

		req, reqErr := i.owner.newRequest(ctx, http.MethodDelete, i.path(), nil)
		if reqErr != nil {
			err = reqErr
			return
		}
		resp, doErr := i.owner.client.Do(req)
		if doErr != nil {
			err = fmt.Errorf("delete sandbox instance %s: %w", i.id, doErr)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
			err = fmt.Errorf("delete sandbox instance %s: status %d", i.id, resp.StatusCode)
		}
	})
	return err
}
