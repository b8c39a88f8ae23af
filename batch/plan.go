package batch

import (
	"path/filepath"
	"sort"
	"time"
)

// DefaultOutputDirName is created next to the first source file.
const DefaultOutputDirName = "converted_mp4"

// Grouper partitions sorted source files into output groups. It must keep
// the input order and must not return empty groups.
type Grouper func(files []SourceFile) [][]SourceFile

// SingletonGroups gives every file its own output.
func SingletonGroups(files []SourceFile) [][]SourceFile {
	groups := make([][]SourceFile, len(files))
	for i, f := range files {
		groups[i] = []SourceFile{f}
	}
	return groups
}

type planOptions struct {
	outputDirName string
	grouper       Grouper
}

type PlanOption func(*planOptions)

func WithOutputDirName(name string) PlanOption {
	return func(o *planOptions) {
		if name != "" {
			o.outputDirName = name
		}
	}
}

// WithGrouper replaces SingletonGroups, e.g. to merge the segments of one
// recording session into a single output.
func WithGrouper(g Grouper) PlanOption {
	return func(o *planOptions) {
		if g != nil {
			o.grouper = g
		}
	}
}

// BuildPlan turns a classification into an executable Batch. It has no side
// effects; the output directory is only created when the batch runs.
func BuildPlan(res ClassifyResult, opts ...PlanOption) (*Batch, error) {
	strategy, ok := StrategyFor(res.Category)
	if res.NoOp || !ok || len(res.Files) == 0 {
		return nil, ErrNothingToConvert
	}

	o := planOptions{outputDirName: DefaultOutputDirName, grouper: SingletonGroups}
	for _, opt := range opts {
		opt(&o)
	}

	files := append([]SourceFile(nil), res.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	b := &Batch{
		ID:        newBatchID(),
		Category:  res.Category,
		Strategy:  strategy,
		OutputDir: filepath.Join(filepath.Dir(files[0].Path), o.outputDirName),
		CreatedAt: time.Now(),
	}
	for _, members := range o.grouper(files) {
		if len(members) == 0 {
			continue
		}
		b.Groups = append(b.Groups, Group{Members: members})
	}
	if len(b.Groups) == 0 {
		return nil, ErrNothingToConvert
	}
	return b, nil
}
