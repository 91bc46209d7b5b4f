package processor

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseNamePattern = regexp.MustCompile(`^[a-z0-9-]{1,40}-[0-9a-f]{12}$`)

func TestNewBaseName(t *testing.T) {
	tests := []struct {
		original string
		prefix   string
	}{
		{"Crème Brûlée.JPG", "creme-brulee-"},
		{"IMG_2041.jpeg", "img-2041-"},
		{"日本語.png", "recipe-"},
		{"", "recipe-"},
		{"../../etc/passwd", "passwd-"},
	}
	for _, tt := range tests {
		t.Run(tt.original, func(t *testing.T) {
			got := NewBaseName(tt.original)
			assert.Regexp(t, baseNamePattern, got)
			assert.True(t, len(got) > len(tt.prefix))
			assert.Equal(t, tt.prefix, got[:len(tt.prefix)])
		})
	}
}

func TestNewBaseNameIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 200 {
		name := NewBaseName("pancakes.jpg")
		_, dup := seen[name]
		require.False(t, dup, "duplicate base name %s", name)
		seen[name] = struct{}{}
	}
}

func TestNewBaseNameTruncatesLongSlug(t *testing.T) {
	long := "a very long recipe title that keeps going and going well past the limit.png"
	got := NewBaseName(long)
	assert.Regexp(t, baseNamePattern, got)
	assert.LessOrEqual(t, len(got), maxSlugLength+13)
}

func TestCheckBaseName(t *testing.T) {
	for _, ok := range []string{"pancakes-0a1b2c3d4e5f", "Recipe_12", "a.b"} {
		assert.NoError(t, checkBaseName(ok), ok)
	}
	for _, bad := range []string{"", " ", ".", "..", "a/b", `a\b`, "../x"} {
		assert.Error(t, checkBaseName(bad), bad)
	}
}

func TestDerivativePaths(t *testing.T) {
	p := newTestPipeline(t)
	paths := p.DerivativePaths("/srv/img", "pie-0a1b2c3d4e5f")
	assert.Equal(t, map[string]string{
		PresetThumbnail: filepath.Join("/srv/img", "pie-0a1b2c3d4e5f_thumb.webp"),
		PresetOptimized: filepath.Join("/srv/img", "pie-0a1b2c3d4e5f_optimized.webp"),
		PresetBanner:    filepath.Join("/srv/img", "pie-0a1b2c3d4e5f_banner.webp"),
	}, paths)
}

func TestDerivativePathsResolveJPEGFallback(t *testing.T) {
	dir := t.TempDir()
	p := newTestPipeline(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pie_banner.jpg"), []byte("jpeg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pie_thumb.jpg"), []byte("jpeg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pie_thumb.webp"), []byte("webp"), 0o644))

	paths := p.DerivativePaths(dir, "pie")
	assert.Equal(t, filepath.Join(dir, "pie_banner.jpg"), paths[PresetBanner])
	assert.Equal(t, filepath.Join(dir, "pie_thumb.webp"), paths[PresetThumbnail])
	assert.Equal(t, filepath.Join(dir, "pie_optimized.webp"), paths[PresetOptimized])
}
