// ABOUTME: JSON response shapes for the HTTP API and the mapping from domain errors to status codes.
// ABOUTME: Every error body is {"error": "..."}.
package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/2389-research/vellum/artifact"
	"github.com/2389-research/vellum/extract"
	"github.com/2389-research/vellum/persist"
	"github.com/2389-research/vellum/preview"
	"github.com/2389-research/vellum/studio"
)

type rowView struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Depth    int    `json:"depth"`
	IsDir    bool   `json:"is_dir"`
	FileID   string `json:"file_id,omitempty"`
	Expanded bool   `json:"expanded,omitempty"`
}

type viewerView struct {
	Open         bool               `json:"open"`
	Artifact     *artifact.Artifact `json:"artifact,omitempty"`
	ActiveFileID string             `json:"active_file_id,omitempty"`
	Expanded     []string           `json:"expanded"`
	Tab          artifact.Tab       `json:"tab"`
	Editing      bool               `json:"editing"`
	Draft        string             `json:"draft,omitempty"`
	Tree         []rowView          `json:"tree"`
}

func newViewerView(snap artifact.Snapshot) viewerView {
	v := viewerView{
		Open:     snap.Open,
		Expanded: snap.Expanded,
		Tab:      snap.Tab,
		Tree:     []rowView{},
	}
	if v.Expanded == nil {
		v.Expanded = []string{}
	}
	if !snap.Open {
		return v
	}
	a := snap.Artifact
	v.Artifact = &a
	v.ActiveFileID = snap.ActiveFileID
	v.Editing = snap.Editing
	v.Draft = snap.Draft
	for _, row := range artifact.VisibleRows(a.Files, snap.IsExpanded) {
		v.Tree = append(v.Tree, rowView(row))
	}
	return v
}

type createView struct {
	Strategy extract.Strategy  `json:"strategy"`
	Artifact artifact.Artifact `json:"artifact"`
}

type failureView struct {
	Reason         preview.Reason `json:"reason"`
	Message        string         `json:"message"`
	Guidance       string         `json:"guidance"`
	Retryable      bool           `json:"retryable"`
	StaticFallback bool           `json:"static_fallback"`
}

type statusView struct {
	SessionID string        `json:"session_id,omitempty"`
	Phase     preview.Phase `json:"phase"`
	URL       string        `json:"url,omitempty"`
	Failure   *failureView  `json:"failure,omitempty"`
}

func newStatusView(sessionID string, st preview.Status) statusView {
	v := statusView{SessionID: sessionID, Phase: st.Phase, URL: st.URL}
	if f := st.Failure; f != nil {
		v.Failure = &failureView{
			Reason:         f.Reason,
			Message:        f.Message,
			Guidance:       f.Guidance(),
			Retryable:      f.Retryable(),
			StaticFallback: f.StaticFallback(),
		}
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, artifact.ErrInvalidArtifact):
		return http.StatusBadRequest
	case errors.Is(err, artifact.ErrFileNotFound), errors.Is(err, persist.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, artifact.ErrNotEditing), errors.Is(err, artifact.ErrNoArtifact), errors.Is(err, preview.ErrNoFiles):
		return http.StatusConflict
	case errors.Is(err, studio.ErrNoSource), errors.Is(err, studio.ErrNoRepository):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// decodeBody reads a JSON request body into v. An empty body leaves v unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

const maxBodyBytes = 8 << 20
