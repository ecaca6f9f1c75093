// ABOUTME: Single-artifact store holding the open artifact, viewer state, and edit buffers.
// ABOUTME: Thread-safe; notifies subscribers of open, close, selection, and content changes.
package artifact

import (
	"fmt"
	"sort"
	"sync"
)

// Tab is the viewer pane currently shown.
type Tab string

const (
	TabCode    Tab = "code"
	TabPreview Tab = "preview"
	TabFiles   Tab = "files"
)

// ParseTab validates a tab name.
func ParseTab(s string) (Tab, error) {
	switch Tab(s) {
	case TabCode, TabPreview, TabFiles:
		return Tab(s), nil
	}
	return "", fmt.Errorf("unknown tab %q", s)
}

// DraftPolicy decides what happens to an uncommitted draft when the active file changes.
type DraftPolicy string

const (
	// DraftDiscard drops the draft of the file being left.
	DraftDiscard DraftPolicy = "discard"
	// DraftPreserve keeps drafts per file so returning resumes the edit.
	DraftPreserve DraftPolicy = "preserve"
)

// ParseDraftPolicy validates a draft policy name. Empty means discard.
func ParseDraftPolicy(s string) (DraftPolicy, error) {
	switch DraftPolicy(s) {
	case "", DraftDiscard:
		return DraftDiscard, nil
	case DraftPreserve:
		return DraftPreserve, nil
	}
	return "", fmt.Errorf("unknown draft policy %q", s)
}

// EventKind identifies a store notification.
type EventKind string

const (
	EventOpened        EventKind = "opened"
	EventClosed        EventKind = "closed"
	EventFileSelected  EventKind = "file_selected"
	EventFileUpdated   EventKind = "file_updated"
	EventFolderToggled EventKind = "folder_toggled"
	EventEditChanged   EventKind = "edit_changed"
	EventTabChanged    EventKind = "tab_changed"
)

// Event is delivered to store subscribers after a state change.
type Event struct {
	Kind       EventKind
	ArtifactID string
	FileID     string
	Path       string
}

// Snapshot is a consistent copy of the store's artifact and viewer state.
type Snapshot struct {
	Open         bool
	Artifact     Artifact
	ActiveFileID string
	Expanded     []string
	Tab          Tab
	Editing      bool
	Draft        string
}

// ActiveFile returns the active file of the snapshot.
func (s Snapshot) ActiveFile() (File, bool) {
	if !s.Open || s.ActiveFileID == "" {
		return File{}, false
	}
	return s.Artifact.FileByID(s.ActiveFileID)
}

// IsExpanded reports whether a folder prefix is expanded in the snapshot.
func (s Snapshot) IsExpanded(prefix string) bool {
	i := sort.SearchStrings(s.Expanded, prefix)
	return i < len(s.Expanded) && s.Expanded[i] == prefix
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDraftPolicy sets the policy applied to drafts on file switches.
func WithDraftPolicy(p DraftPolicy) StoreOption {
	return func(s *Store) {
		s.policy = p
	}
}

// CommitOption adjusts a CommitEdit call.
type CommitOption func(*commitConfig)

type commitConfig struct {
	clearChallenges bool
}

// ClearChallenges removes the file's challenges when the edit is committed.
func ClearChallenges() CommitOption {
	return func(c *commitConfig) {
		c.clearChallenges = true
	}
}

// Store holds at most one open artifact and its viewer state.
type Store struct {
	mu     sync.RWMutex
	policy DraftPolicy

	current  *Artifact
	active   string
	expanded map[string]bool
	tab      Tab
	editing  map[string]bool
	drafts   map[string]string

	subMu       sync.Mutex
	subscribers []chan Event
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		policy:   DraftDiscard,
		expanded: make(map[string]bool),
		editing:  make(map[string]bool),
		drafts:   make(map[string]string),
		tab:      TabCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the store's draft policy.
func (s *Store) Policy() DraftPolicy {
	return s.policy
}

// Open replaces the current artifact. On failure the current artifact is left untouched.
func (s *Store) Open(a Artifact) error {
	a = a.Clone()
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = &a
	s.active = a.Files[0].ID
	s.expanded = make(map[string]bool)
	for _, f := range a.Files {
		for _, prefix := range FolderPrefixes(f.Path) {
			s.expanded[prefix] = true
		}
	}
	s.editing = make(map[string]bool)
	s.drafts = make(map[string]string)
	s.tab = TabCode
	s.mu.Unlock()

	s.emit(Event{Kind: EventOpened, ArtifactID: a.ID, FileID: a.Files[0].ID, Path: a.Files[0].Path})
	return nil
}

// Close clears the current artifact and all derived viewer state.
func (s *Store) Close() {
	s.mu.Lock()
	var id string
	if s.current != nil {
		id = s.current.ID
	}
	s.current = nil
	s.active = ""
	s.expanded = make(map[string]bool)
	s.editing = make(map[string]bool)
	s.drafts = make(map[string]string)
	s.tab = TabCode
	s.mu.Unlock()

	if id != "" {
		s.emit(Event{Kind: EventClosed, ArtifactID: id})
	}
}

// Current returns a copy of the open artifact.
func (s *Store) Current() (Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Artifact{}, false
	}
	return s.current.Clone(), true
}

// Snapshot returns a consistent copy of the artifact and viewer state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Snapshot{Tab: s.tab}
	}
	expanded := make([]string, 0, len(s.expanded))
	for prefix, open := range s.expanded {
		if open {
			expanded = append(expanded, prefix)
		}
	}
	sort.Strings(expanded)
	return Snapshot{
		Open:         true,
		Artifact:     s.current.Clone(),
		ActiveFileID: s.active,
		Expanded:     expanded,
		Tab:          s.tab,
		Editing:      s.editing[s.active],
		Draft:        s.drafts[s.active],
	}
}

// SelectFile activates a file of the current artifact. A foreign id changes nothing.
func (s *Store) SelectFile(id string) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNoArtifact
	}
	f, ok := s.current.FileByID(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	changed := s.activateLocked(id)
	artifactID := s.current.ID
	s.mu.Unlock()

	if changed {
		s.emit(Event{Kind: EventFileSelected, ArtifactID: artifactID, FileID: id, Path: f.Path})
	}
	return nil
}

// activateLocked switches the active file, applying the draft policy to the file
// being left. Reports whether the active file changed.
func (s *Store) activateLocked(id string) bool {
	if s.active == id {
		return false
	}
	if s.policy != DraftPreserve && s.active != "" {
		delete(s.editing, s.active)
		delete(s.drafts, s.active)
	}
	s.active = id
	return true
}

// ToggleFolder flips the expansion of exactly one folder prefix.
func (s *Store) ToggleFolder(prefix string) {
	prefix = NormalizePath(prefix)
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.expanded[prefix] = !s.expanded[prefix]
	artifactID := s.current.ID
	s.mu.Unlock()

	s.emit(Event{Kind: EventFolderToggled, ArtifactID: artifactID, Path: prefix})
}

// SetTab switches the viewer pane.
func (s *Store) SetTab(tab Tab) error {
	if _, err := ParseTab(string(tab)); err != nil {
		return err
	}
	s.mu.Lock()
	s.tab = tab
	var artifactID string
	if s.current != nil {
		artifactID = s.current.ID
	}
	s.mu.Unlock()

	s.emit(Event{Kind: EventTabChanged, ArtifactID: artifactID})
	return nil
}

// BeginEdit puts a file in edit mode, selecting it first when needed. The draft
// starts as the file's content unless a preserved draft exists.
func (s *Store) BeginEdit(id string) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNoArtifact
	}
	f, ok := s.current.FileByID(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	s.activateLocked(id)
	s.editing[id] = true
	if _, ok := s.drafts[id]; !ok {
		s.drafts[id] = f.Content
	}
	artifactID := s.current.ID
	s.mu.Unlock()

	s.emit(Event{Kind: EventEditChanged, ArtifactID: artifactID, FileID: id, Path: f.Path})
	return nil
}

// UpdateDraft replaces the draft of the file being edited.
func (s *Store) UpdateDraft(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNoArtifact
	}
	if !s.editing[s.active] {
		return ErrNotEditing
	}
	s.drafts[s.active] = text
	return nil
}

// CommitEdit writes the draft into the active file and marks it complete.
// Challenges are kept unless ClearChallenges is passed.
func (s *Store) CommitEdit(opts ...CommitOption) error {
	var cfg commitConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNoArtifact
	}
	id := s.active
	if !s.editing[id] {
		s.mu.Unlock()
		return ErrNotEditing
	}
	draft := s.drafts[id]
	delete(s.editing, id)
	delete(s.drafts, id)
	path := s.writeLocked(id, draft, cfg.clearChallenges)
	artifactID := s.current.ID
	s.mu.Unlock()

	s.emit(Event{Kind: EventFileUpdated, ArtifactID: artifactID, FileID: id, Path: path})
	return nil
}

// CancelEdit leaves edit mode and drops the draft of the active file.
func (s *Store) CancelEdit() {
	s.mu.Lock()
	if s.current == nil || !s.editing[s.active] {
		s.mu.Unlock()
		return
	}
	id := s.active
	delete(s.editing, id)
	delete(s.drafts, id)
	artifactID := s.current.ID
	s.mu.Unlock()

	s.emit(Event{Kind: EventEditChanged, ArtifactID: artifactID, FileID: id})
}

// UpdateFile writes content directly into a file, with the same completion
// semantics as a committed edit. Any draft for that file is dropped.
func (s *Store) UpdateFile(id, content string) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNoArtifact
	}
	if _, ok := s.current.FileByID(id); !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	delete(s.editing, id)
	delete(s.drafts, id)
	path := s.writeLocked(id, content, false)
	artifactID := s.current.ID
	s.mu.Unlock()

	s.emit(Event{Kind: EventFileUpdated, ArtifactID: artifactID, FileID: id, Path: path})
	return nil
}

func (s *Store) writeLocked(id, content string, clearChallenges bool) string {
	for i := range s.current.Files {
		f := &s.current.Files[i]
		if f.ID != id {
			continue
		}
		f.Content = content
		f.IsComplete = true
		if clearChallenges {
			f.Challenges = nil
		}
		return f.Path
	}
	return ""
}

// NextFile activates the file after the active one in path order, wrapping around.
func (s *Store) NextFile() error {
	return s.step(1)
}

// PrevFile activates the file before the active one in path order, wrapping around.
func (s *Store) PrevFile() error {
	return s.step(-1)
}

func (s *Store) step(delta int) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNoArtifact
	}
	ordered := make([]File, len(s.current.Files))
	copy(ordered, s.current.Files)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Path < ordered[j].Path })

	idx := 0
	for i, f := range ordered {
		if f.ID == s.active {
			idx = (i + delta + len(ordered)) % len(ordered)
			break
		}
	}
	next := ordered[idx]
	changed := s.activateLocked(next.ID)
	artifactID := s.current.ID
	s.mu.Unlock()

	if changed {
		s.emit(Event{Kind: EventFileSelected, ArtifactID: artifactID, FileID: next.ID, Path: next.Path})
	}
	return nil
}

// Subscribe registers a subscriber. The channel is buffered; a subscriber that
// falls behind misses notifications instead of blocking the store.
func (s *Store) Subscribe() <-chan Event {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	ch := make(chan Event, 64)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (s *Store) Unsubscribe(ch <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, sub := range s.subscribers {
		if (<-chan Event)(sub) == ch {
			close(sub)
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return
		}
	}
}

func (s *Store) emit(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subscribers {
		select {
		case sub <- ev:
		default:
		}
	}
}
