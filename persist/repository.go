// ABOUTME: Artifact repository that stores artifacts as JSON documents in a KV store.
// ABOUTME: Artifact ids are ULIDs, so listing by key in reverse gives newest first.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/2389-research/vellum/artifact"
	"github.com/oklog/ulid/v2"
)

const artifactPrefix = "artifact/"

// Summary is the listing view of a stored artifact.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	FileCount int       `json:"file_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository saves and loads artifacts.
type Repository struct {
	kv KV
}

// NewRepository wraps a KV store.
func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

// Save validates and writes an artifact, replacing any earlier version with
// the same id. The stored copy is returned.
func (r *Repository) Save(ctx context.Context, a artifact.Artifact) (artifact.Artifact, error) {
	a = a.Clone()
	if err := a.Validate(); err != nil {
		return artifact.Artifact{}, err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("encode artifact %s: %w", a.ID, err)
	}
	if err := r.kv.Put(ctx, artifactPrefix+a.ID, data); err != nil {
		return artifact.Artifact{}, fmt.Errorf("save artifact %s: %w", a.ID, err)
	}
	return a, nil
}

// Load reads one artifact. Missing ids wrap ErrNotFound.
func (r *Repository) Load(ctx context.Context, id string) (artifact.Artifact, error) {
	data, err := r.kv.Get(ctx, artifactPrefix+id)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("load artifact %s: %w", id, err)
	}
	var a artifact.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return artifact.Artifact{}, fmt.Errorf("decode artifact %s: %w", id, err)
	}
	return a, nil
}

// List returns summaries of every stored artifact, newest first. Entries that
// fail to decode are skipped.
func (r *Repository) List(ctx context.Context) ([]Summary, error) {
	keys, err := r.kv.List(ctx, artifactPrefix)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	out := make([]Summary, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, artifactPrefix)
		a, err := r.Load(ctx, id)
		if err != nil {
			continue
		}
		s := Summary{ID: a.ID, Title: a.Title, FileCount: len(a.Files)}
		if parsed, err := ulid.ParseStrict(a.ID); err == nil {
			s.CreatedAt = ulid.Time(parsed.Time()).UTC()
		}
		out = append(out, s)
	}
	return out, nil
}

// Delete removes an artifact. Deleting a missing id is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.kv.Delete(ctx, artifactPrefix+id); err != nil {
		return fmt.Errorf("delete artifact %s: %w", id, err)
	}
	return nil
}
