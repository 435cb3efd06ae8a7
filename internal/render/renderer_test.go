package render_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photovault/memories/internal/db"
	"github.com/photovault/memories/internal/reel"
	"github.com/photovault/memories/internal/render"
)

func TestRenderWritesManifest(t *testing.T) {
	ctx := context.Background()
	r := render.NewFileRenderer(t.TempDir())

	taken := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	artifact, err := r.Render(ctx, reel.RenderSpec{
		ReelID:          7,
		Title:           "Summer 2024",
		Theme:           db.ThemeClassic,
		DurationSeconds: 30,
		Photos:          []db.Photo{{ID: 1, TakenAt: &taken, LocationText: "Paris"}},
	})
	require.NoError(t, err)
	require.FileExists(t, artifact)

	raw, err := os.ReadFile(artifact)
	require.NoError(t, err)

	var manifest map[string]any
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.Equal(t, float64(7), manifest["reel_id"])
	assert.Equal(t, "Summer 2024", manifest["title"])
	assert.Len(t, manifest["photos"], 1)
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := render.NewFileRenderer(t.TempDir())

	artifact, err := r.Render(ctx, reel.RenderSpec{ReelID: 1, Title: "x"})
	require.NoError(t, err)

	require.NoError(t, r.Remove(ctx, artifact))
	assert.NoFileExists(t, artifact)
	require.NoError(t, r.Remove(ctx, artifact), "second remove is a no-op")
}
