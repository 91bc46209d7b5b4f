package processor

// Preset names, in dispatch order.
const (
	PresetThumbnail = "thumbnail"
	PresetOptimized = "optimized"
	PresetBanner    = "banner"
)

// Preset is one derivative kind: target box, crop mode and file suffix.
type Preset struct {
	Name   string
	Suffix string
	Width  int
	Height int
	Crop   bool
}

// SourceImage describes the file a derivative set is produced from.
type SourceImage struct {
	Path   string
	Size   int64
	Width  int
	Height int
	Format string // jpeg, png, gif, webp
}

// BackendKind identifies how derivatives were produced.
type BackendKind string

const (
	BackendNative BackendKind = "native"
	BackendBitmap BackendKind = "bitmap"
	BackendCopy   BackendKind = "copy"
)

// Derivative is one written output file.
type Derivative struct {
	Preset     string `json:"preset"`
	Path       string `json:"path"`
	Format     string `json:"format"`
	Size       int64  `json:"size"`
	Quality    int    `json:"quality,omitempty"`
	Retried    bool   `json:"retried,omitempty"`
	OverBudget bool   `json:"overBudget,omitempty"`
	// Degraded marks an output that is not the intended WebP encode, either
	// a JPEG fallback or an unprocessed copy of the source.
	Degraded bool   `json:"degraded,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Result is returned by every top-level pipeline call. Diagnostics is a
// fresh list per call.
type Result struct {
	Success     bool
	Filename    string
	Diagnostics []string
	Derivatives []Derivative
	Backend     BackendKind
	// Err is the terminal error when Success is false.
	Err error
}

// Capabilities is the memoized backend probe.
type Capabilities struct {
	Native        bool     `json:"native"`
	NativeVersion string   `json:"nativeVersion,omitempty"`
	Bitmap        bool     `json:"bitmap"`
	BitmapWebP    bool     `json:"bitmapWebp"`
	Notes         []string `json:"notes,omitempty"`
}

func (c Capabilities) clone() Capabilities {
	c.Notes = append([]string(nil), c.Notes...)
	return c
}

// Upload mirrors a multipart upload result.
type Upload struct {
	TmpPath          string
	DeclaredMIME     string
	OriginalFilename string
	Size             int64
	// ErrorCode is non-zero when the transport reported a failure.
	ErrorCode int
}

type diagnostics struct {
	items []string
}

func (d *diagnostics) add(msg string) {
	d.items = append(d.items, msg)
}

func (d *diagnostics) list() []string {
	if d.items == nil {
		return []string{}
	}
	return d.items
}
