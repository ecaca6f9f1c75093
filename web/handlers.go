// ABOUTME: HTTP handlers for artifact creation and viewer state changes.
// ABOUTME: Viewer handlers answer with the full viewer state after the change.
package web

import (
	"net/http"

	"github.com/2389-research/vellum/artifact"
	"github.com/go-chi/chi/v5"
)

type createRequest struct {
	RawText string `json:"raw_text"`
	Prompt  string `json:"prompt"`
}

func (s *Server) handleArtifactCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	switch {
	case req.RawText != "" && req.Prompt != "":
		writeError(w, http.StatusBadRequest, "send either raw_text or prompt, not both")
	case req.RawText != "":
		res, a, err := s.studio.OpenRaw(r.Context(), req.RawText)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, createView{Strategy: res.Strategy, Artifact: a})
	case req.Prompt != "":
		if !s.studio.HasSource() {
			writeError(w, http.StatusServiceUnavailable, "generation is not configured")
			return
		}
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "generation rate limit exceeded")
			return
		}
		res, a, err := s.studio.OpenGenerated(r.Context(), req.Prompt)
		if err != nil {
			s.logger.Printf("component=web action=generate_failed err=%v", err)
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, createView{Strategy: res.Strategy, Artifact: a})
	default:
		writeError(w, http.StatusBadRequest, "raw_text or prompt is required")
	}
}

func (s *Server) handleArtifactList(w http.ResponseWriter, r *http.Request) {
	list, err := s.studio.Artifacts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleArtifactReopen(w http.ResponseWriter, r *http.Request) {
	if _, err := s.studio.Reopen(r.Context(), chi.URLParam(r, "artifactID")); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeViewer(w)
}

func (s *Server) writeViewer(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, newViewerView(s.studio.Store().Snapshot()))
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	s.writeViewer(w)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.studio.Close(r.Context()); err != nil {
		s.logger.Printf("component=web action=close_failed err=%v", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

type fileRequest struct {
	FileID string `json:"file_id"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.studio.Store().SelectFile(req.FileID); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeViewer(w)
}

type folderRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleToggleFolder(w http.ResponseWriter, r *http.Request) {
	var req folderRequest
	if err := decodeBody(w, r, &req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	s.studio.Store().ToggleFolder(req.Path)
	s.writeViewer(w)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	if err := s.studio.Store().NextFile(); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeViewer(w)
}

func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	if err := s.studio.Store().PrevFile(); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeViewer(w)
}

type tabRequest struct {
	Tab string `json:"tab"`
}

func (s *Server) handleTab(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	tab, err := artifact.ParseTab(req.Tab)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.studio.Store().SetTab(tab); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeViewer(w)
}

func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	id := req.FileID
	if id == "" {
		id = s.studio.Store().Snapshot().ActiveFileID
	}
	if err := s.studio.Store().BeginEdit(id); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeViewer(w)
}

type draftRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.studio.Store().UpdateDraft(req.Content); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeViewer(w)
}

type commitRequest struct {
	ClearChallenges bool `json:"clear_challenges"`
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	var opts []artifact.CommitOption
	if req.ClearChallenges {
		opts = append(opts, artifact.ClearChallenges())
	}
	if err := s.studio.CommitEdit(r.Context(), opts...); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeViewer(w)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	s.studio.Store().CancelEdit()
	s.writeViewer(w)
}
