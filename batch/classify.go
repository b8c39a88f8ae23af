package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ClassifyResult is the outcome of a drop. NoOp is set when the drop only
// held finished MP4 files; Category and Files are empty in that case.
type ClassifyResult struct {
	Category Category
	Files    []SourceFile
	NoOp     bool
	Ignored  int
}

// Classify expands directories, buckets files by extension and selects the
// single category the batch will convert. MTS wins over M2TS, which wins
// over the other recognized containers.
func Classify(paths []string) (ClassifyResult, error) {
	all, err := expand(paths)
	if err != nil {
		return ClassifyResult{}, err
	}

	buckets := make(map[Category][]SourceFile)
	ignored := 0
	for _, p := range all {
		f := NewSourceFile(p)
		if f.Category == CategoryUnsupported {
			ignored++
			continue
		}
		buckets[f.Category] = append(buckets[f.Category], f)
	}

	tape := len(buckets[CategoryMTS]) + len(buckets[CategoryM2TS])
	mp4 := len(buckets[CategoryMP4])
	if tape > 0 && mp4 > 0 {
		return ClassifyResult{}, &MixedInputError{Tape: tape, MP4: mp4}
	}
	if mp4 > 0 {
		return ClassifyResult{NoOp: true, Ignored: ignored}, nil
	}

	for _, c := range []Category{CategoryMTS, CategoryM2TS, CategoryOther} {
		if files := buckets[c]; len(files) > 0 {
			return ClassifyResult{Category: c, Files: files, Ignored: ignored}, nil
		}
	}
	return ClassifyResult{}, ErrUnsupportedFormat
}

// expand flattens the dropped paths into absolute file paths. Paths that
// cannot be stat'ed are passed through as files and classified by name.
func expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("could not resolve %s: %w", p, err)
		}

		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			files = append(files, abs)
			continue
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("could not read directory %s: %w", abs, err)
		}
	}
	return files, nil
}
