package batch

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

type Category string

const (
	CategoryMTS         Category = "mts"
	CategoryM2TS        Category = "m2ts"
	CategoryMP4         Category = "mp4"
	CategoryOther       Category = "other"
	CategoryUnsupported Category = "unsupported"
)

// Strategy is the fixed sequence of encoder invocations used for a group.
type Strategy string

const (
	StrategyConcatCopy          Strategy = "concat-copy"
	StrategyTranscodeThenConcat Strategy = "transcode-concat"
	StrategyDirectTranscode     Strategy = "direct-transcode"
)

// StrategyFor maps a convertible category onto its strategy.
func StrategyFor(c Category) (Strategy, bool) {
	switch c {
	case CategoryMTS:
		return StrategyConcatCopy, true
	case CategoryM2TS:
		return StrategyTranscodeThenConcat, true
	case CategoryOther:
		return StrategyDirectTranscode, true
	}
	return "", false
}

var otherExtensions = map[string]bool{
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".ts":   true,
	".webm": true,
	".mpg":  true,
}

// CategoryOf classifies a path by its extension alone.
func CategoryOf(path string) Category {
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".mts":
		return CategoryMTS
	case ext == ".m2ts":
		return CategoryM2TS
	case ext == ".mp4":
		return CategoryMP4
	case otherExtensions[ext]:
		return CategoryOther
	}
	return CategoryUnsupported
}

type SourceFile struct {
	Path     string   `json:"path"`
	Ext      string   `json:"ext"`
	Category Category `json:"category"`
}

func NewSourceFile(path string) SourceFile {
	return SourceFile{
		Path:     path,
		Ext:      strings.ToLower(filepath.Ext(path)),
		Category: CategoryOf(path),
	}
}

// Group is one output unit: its members are encoded or concatenated into a
// single <BaseName>.mp4.
type Group struct {
	Members []SourceFile `json:"members"`
}

// BaseName is the extension-stripped name of the first member.
func (g Group) BaseName() string {
	if len(g.Members) == 0 {
		return ""
	}
	name := filepath.Base(g.Members[0].Path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func (g Group) Strategy() Strategy {
	if len(g.Members) == 0 {
		return ""
	}
	s, _ := StrategyFor(g.Members[0].Category)
	return s
}

func (g Group) Paths() []string {
	paths := make([]string, len(g.Members))
	for i, m := range g.Members {
		paths[i] = m.Path
	}
	return paths
}

type Batch struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Strategy  Strategy  `json:"strategy"`
	Groups    []Group   `json:"groups"`
	OutputDir string    `json:"outputDir"`
	CreatedAt time.Time `json:"createdAt"`
}

func newBatchID() string {
	return fmt.Sprintf("%s_%d", shortuuid.New(), time.Now().Unix())
}

// FileCount is the number of source files across all groups.
func (b *Batch) FileCount() int {
	n := 0
	for _, g := range b.Groups {
		n += len(g.Members)
	}
	return n
}

// Describe summarizes the plan for the log panel.
func (b *Batch) Describe() string {
	switch b.Strategy {
	case StrategyConcatCopy:
		return fmt.Sprintf("MTS %d files -> MP4 (concat, video stream copy)", b.FileCount())
	case StrategyTranscodeThenConcat:
		return fmt.Sprintf("M2TS %d files -> MP4 (transcode, then concat)", b.FileCount())
	case StrategyDirectTranscode:
		return fmt.Sprintf("%d files -> MP4 (direct transcode)", b.FileCount())
	}
	return fmt.Sprintf("%d files", b.FileCount())
}
