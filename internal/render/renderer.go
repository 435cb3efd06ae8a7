package render

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/photovault/memories/internal/reel"
)

// FileRenderer is a placeholder renderer that writes a JSON manifest per reel
// instead of invoking a real video pipeline. The manifest carries everything
// a downstream encoder needs, so swapping in a real renderer only means
// replacing this type behind the reel.Renderer interface.
type FileRenderer struct {
	Dir string
}

// NewFileRenderer creates a renderer writing manifests under dir.
func NewFileRenderer(dir string) *FileRenderer {
	return &FileRenderer{Dir: dir}
}

type manifestPhoto struct {
	PhotoID  uint64    `json:"photo_id"`
	TakenAt  time.Time `json:"taken_at"`
	Location string    `json:"location,omitempty"`
}

type manifest struct {
	ReelID          uint64          `json:"reel_id"`
	Title           string          `json:"title"`
	Theme           string          `json:"theme"`
	DurationSeconds int             `json:"duration_seconds"`
	Photos          []manifestPhoto `json:"photos"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// Render writes the reel manifest and returns its path as the artifact ref.
func (r *FileRenderer) Render(ctx context.Context, spec reel.RenderSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", err
	}

	m := manifest{
		ReelID:          spec.ReelID,
		Title:           spec.Title,
		Theme:           spec.Theme,
		DurationSeconds: spec.DurationSeconds,
		Photos:          make([]manifestPhoto, 0, len(spec.Photos)),
		GeneratedAt:     time.Now().UTC(),
	}
	for _, p := range spec.Photos {
		m.Photos = append(m.Photos, manifestPhoto{
			PhotoID:  p.ID,
			TakenAt:  p.BestDate(),
			Location: p.LocationText,
		})
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(r.Dir, uuid.NewString()+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Remove deletes an artifact. A missing file is not an error; cleanup is
// idempotent.
func (r *FileRenderer) Remove(ctx context.Context, artifactRef string) error {
	if err := os.Remove(artifactRef); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
