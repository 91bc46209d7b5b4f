package processor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/recipemedia/errors"
)

// recordingBody appends the argument list to argsFile and writes a small
// fake WebP to the output argument.
func recordingBody(argsFile string) string {
	return `echo "$*" >> "` + argsFile + `"
for last; do :; done
printf 'RIFF\000\000\000\000WEBPVP8 stub' > "${last#webp:}"`
}

func nativeConfig(binary string) Config {
	cfg := DefaultConfig()
	cfg.Native.Binary = binary
	cfg.Native.Timeout = 5 * time.Second
	return cfg
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(b)), "\n")
}

func TestNativeConverterReceivesComputedGeometry(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	stub := writeStubConverter(t, true, recordingBody(argsFile))
	src := writeJPEG(t, t.TempDir(), "roast.jpg", 800, 600)
	dest := t.TempDir()
	p := newPipelineWithConfig(t, nativeConfig(stub))

	res := p.ProcessRecipeImage(context.Background(), src, dest, "roast")

	require.True(t, res.Success, res.Diagnostics)
	assert.Equal(t, BackendNative, res.Backend)
	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Derivatives, 3)

	calls := readLines(t, argsFile)
	require.Len(t, calls, 3)
	want := []string{
		src + "[0] -resize 300x225! -crop 300x200+0+12 +repage -strip -quality 85 -define webp:lossless=false -define webp:method=4 webp:" +
			filepath.Join(dest, "roast_thumb.webp.part"),
		src + "[0] -resize 1000x750! -strip -quality 85 -define webp:lossless=false -define webp:method=4 webp:" +
			filepath.Join(dest, "roast_optimized.webp.part"),
		src + "[0] -resize 1200x900! -crop 1200x400+0+250 +repage -strip -quality 85 -define webp:lossless=false -define webp:method=4 webp:" +
			filepath.Join(dest, "roast_banner.webp.part"),
	}
	assert.Equal(t, want, calls)

	for _, d := range res.Derivatives {
		assert.Equal(t, "webp", d.Format)
		assert.Equal(t, 85, d.Quality)
		assert.FileExists(t, d.Path)
		assert.NoFileExists(t, d.Path+".part")
	}
	assert.Len(t, listDir(t, dest), 3)
}

func TestNativeConverterRetriesOverBudget(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	stub := writeStubConverter(t, true, recordingBody(argsFile))
	cfg := nativeConfig(stub)
	cfg.SizeBudget = 4
	src := writeJPEG(t, t.TempDir(), "roast.jpg", 300, 200)
	p := newPipelineWithConfig(t, cfg)

	res := p.ProcessRecipeImage(context.Background(), src, t.TempDir(), "roast")

	require.True(t, res.Success)
	calls := readLines(t, argsFile)
	require.Len(t, calls, 6)
	assert.Contains(t, calls[0], "-quality 85")
	assert.Contains(t, calls[1], "-quality 75")
	for _, d := range res.Derivatives {
		assert.True(t, d.Retried)
		assert.True(t, d.OverBudget)
		assert.Equal(t, 75, d.Quality)
	}
}

func TestNativeTimeoutKillsHangingConverter(t *testing.T) {
	stub := writeStubConverter(t, true, "exec sleep 30")
	cfg := nativeConfig(stub)
	cfg.Native.Timeout = 200 * time.Millisecond
	src := writeJPEG(t, t.TempDir(), "roast.jpg", 300, 200)
	p := newPipelineWithConfig(t, cfg)

	start := time.Now()
	res := p.ProcessRecipeImage(context.Background(), src, t.TempDir(), "roast")

	assert.Less(t, time.Since(start), 10*time.Second)
	assert.False(t, res.Success)
	assert.True(t, errors.IsType(res.Err, errors.ErrorTypeEncodeFailed))
	assert.ErrorIs(t, res.Err, errors.New(errors.ErrorTypeTimeout, ""))
	assert.True(t, hasDiagnostic(res.Diagnostics, "timed out after 200ms"))
}

func TestNativeConverterErrorIsReported(t *testing.T) {
	stub := writeStubConverter(t, true, `echo "convert: no decode delegate for this image format" >&2
exit 1`)
	src := writeJPEG(t, t.TempDir(), "roast.jpg", 300, 200)
	p := newPipelineWithConfig(t, nativeConfig(stub))

	res := p.ProcessRecipeImage(context.Background(), src, t.TempDir(), "roast")

	assert.False(t, res.Success)
	assert.True(t, hasDiagnostic(res.Diagnostics, "no decode delegate"))
}

func TestUnusableConverterFallsBackToBitmap(t *testing.T) {
	stub := writeStubConverter(t, false, "exit 1")
	src := writeJPEG(t, t.TempDir(), "roast.jpg", 300, 200)
	p := newPipelineWithConfig(t, nativeConfig(stub))

	res := p.ProcessRecipeImage(context.Background(), src, t.TempDir(), "roast")

	require.True(t, res.Success)
	assert.Equal(t, BackendBitmap, res.Backend)
	assert.True(t, hasDiagnostic(res.Diagnostics, "unusable"))
	assert.True(t, hasDiagnostic(res.Diagnostics, "using bitmap library"))
}

func TestCapabilitiesAreProbedOnce(t *testing.T) {
	stub := writeStubConverter(t, true, "exit 0")
	p := newPipelineWithConfig(t, nativeConfig(stub))

	first := p.Capabilities(context.Background())
	second := p.Capabilities(context.Background())

	assert.True(t, first.Native)
	assert.Equal(t, "Version: ImageMagick 7.1.1-21 Q16-HDRI x86_64", first.NativeVersion)
	assert.True(t, first.Bitmap)
	assert.Equal(t, webpEncoder != nil, first.BitmapWebP)
	assert.Equal(t, first, second)
	assert.Len(t, readLines(t, filepath.Join(filepath.Dir(stub), "probes")), 1)

	first.Notes = append(first.Notes, "mutated")
	assert.NotContains(t, p.Capabilities(context.Background()).Notes, "mutated")
}
