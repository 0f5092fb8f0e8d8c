//go:build gocv
// +build gocv

package vision

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"tyre-vision/internal/domain/port"
)

func TestSynthesizeFromFrames(t *testing.T) {
	ref := uniformFrame(100)
	defer ref.Close()
	dam := uniformFrame(140)
	defer dam.Close()

	tmp := t.TempDir()
	refDir := filepath.Join(tmp, "ref")
	damDir := filepath.Join(tmp, "dam")
	writeFrames(t, refDir, []gocv.Mat{ref, ref, ref})
	writeFrames(t, damDir, []gocv.Mat{dam, dam, dam})

	v := NewVideoSynthesizer(nil)
	outPath := filepath.Join(tmp, "diff.mp4")
	meta, err := v.SynthesizeFromFrames(context.Background(), refDir, damDir, outPath, port.DiffVideoOptions{
		FPS:        10,
		ApplyEdges: true,
	})
	require.NoError(t, err)
	require.Equal(t, 3, meta.NumFrames)
	require.Equal(t, 10, meta.FPS)
	require.Equal(t, 256, meta.Width)
	require.True(t, meta.AppliedEffects.EdgeDetection)
	require.False(t, meta.AppliedEffects.CrackOverlay)
	require.FileExists(t, outPath)
}

func TestSynthesizeFromFrames_EmptyDirs(t *testing.T) {
	tmp := t.TempDir()
	refDir := filepath.Join(tmp, "ref")
	damDir := filepath.Join(tmp, "dam")
	require.NoError(t, os.MkdirAll(refDir, 0o755))
	require.NoError(t, os.MkdirAll(damDir, 0o755))

	v := NewVideoSynthesizer(nil)
	_, err := v.SynthesizeFromFrames(context.Background(), refDir, damDir, filepath.Join(tmp, "diff.mp4"), port.DiffVideoOptions{})
	require.Error(t, err)
}

func TestListFrames_SortedAndFiltered(t *testing.T) {
	tmp := t.TempDir()
	for _, name := range []string{"frame_0002.png", "frame_0000.png", "frame_0001.jpg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(tmp, name), []byte("x"), 0o644))
	}

	frames, err := listFrames(tmp)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	require.Equal(t, filepath.Join(tmp, "frame_0000.png"), frames[0])
	require.Equal(t, filepath.Join(tmp, "frame_0002.png"), frames[2])
}
