package processor

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/leeforge/recipemedia/utils"
)

const maxSlugLength = 40

// NewBaseName derives a unique derivative base name from an uploaded file
// name: an ASCII slug plus a 12 hex character token.
func NewBaseName(original string) string {
	slug := utils.Slugify(utils.BaseName(original), maxSlugLength)
	if slug == "" {
		slug = "recipe"
	}
	return slug + "-" + newToken()
}

// newToken takes the leading random bytes of a v4 UUID.
func newToken() string {
	id := uuid.New()
	return hex.EncodeToString(id[:6])
}

// checkBaseName rejects names that would escape the destination directory.
func checkBaseName(base string) error {
	switch {
	case strings.TrimSpace(base) == "":
		return fmt.Errorf("base filename is empty")
	case base == "." || base == "..":
		return fmt.Errorf("base filename %q is reserved", base)
	case strings.ContainsAny(base, `/\`+"\x00"), filepath.Base(base) != base:
		return fmt.Errorf("base filename %q contains a path separator", base)
	}
	return nil
}

// DerivativePaths returns the path of every preset for base, keyed by
// preset name. The canonical WebP path is returned unless only the JPEG
// fallback exists on disk.
func (p *Pipeline) DerivativePaths(dir, base string) map[string]string {
	paths := make(map[string]string, len(p.presets))
	for _, preset := range p.presets {
		stem := filepath.Join(dir, base+preset.Suffix)
		path := stem + ".webp"
		if !isFile(path) && isFile(stem+".jpg") {
			path = stem + ".jpg"
		}
		paths[preset.Name] = path
	}
	return paths
}

func isFile(path string) bool {
	isDir, ok, err := utils.Exists(path)
	return err == nil && ok && !isDir
}
