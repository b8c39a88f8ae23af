package batch

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat means none of the dropped paths has a recognized extension.
	ErrUnsupportedFormat = errors.New("no supported video files found")
	// ErrNothingToConvert is returned when planning a result that needs no work.
	ErrNothingToConvert = errors.New("nothing to convert")
	// ErrCancelled marks a run stopped by the user.
	ErrCancelled = errors.New("conversion cancelled")
	ErrBusy      = errors.New("a conversion is already running")
	ErrNotReady  = errors.New("no batch is ready to start")
	// ErrOutputBusy means another process holds the output tree.
	ErrOutputBusy = errors.New("output directory is in use by another conversion")
)

// MixedInputError is returned when tape-format recordings and finished MP4
// files are dropped together.
type MixedInputError struct {
	Tape int
	MP4  int
}

func (e *MixedInputError) Error() string {
	return fmt.Sprintf("cannot process MTS/M2TS and MP4 together (%d tape files, %d mp4 files)", e.Tape, e.MP4)
}

// Stage names the step of a group's strategy that failed.
type Stage string

const (
	StageTranscode Stage = "transcode"
	StageConcat    Stage = "concat"
	StageManifest  Stage = "manifest"
)

// ProcessFailure reports the group and step at which a run was aborted.
type ProcessFailure struct {
	GroupIndex int
	BaseName   string
	Strategy   Strategy
	Stage      Stage
	Output     string
	Err        error
}

func (e *ProcessFailure) Error() string {
	return fmt.Sprintf("group %d (%s, %s) failed at %s: %v", e.GroupIndex+1, e.BaseName, e.Strategy, e.Stage, e.Err)
}

func (e *ProcessFailure) Unwrap() error { return e.Err }
