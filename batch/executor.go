package batch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mp4conv/config"
	"mp4conv/ffmpeg"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
)

// ProcessRunner runs one encoder invocation and waits for it to exit.
// Cancelling ctx must kill the process.
type ProcessRunner interface {
	Run(ctx context.Context, args []string) (logOutput string, err error)
}

type ExecutionResult struct {
	BatchID   string   `json:"batchId"`
	OutputDir string   `json:"outputDir"`
	Completed int      `json:"completed"`
	Total     int      `json:"total"`
	Outputs   []string `json:"outputs"`
	Err       error    `json:"-"`
}

func (r ExecutionResult) Cancelled() bool { return errors.Is(r.Err, ErrCancelled) }

// Executor realizes a Batch group by group, one encoder process at a time.
type Executor struct {
	runner     ProcessRunner
	videoCodec string
	audioCodec string
	lockDir    string
}

func NewExecutor(cfg *config.Config, runner ProcessRunner) *Executor {
	e := &Executor{
		runner:     runner,
		videoCodec: cfg.VideoCodec,
		audioCodec: cfg.AudioCodec,
		lockDir:    os.TempDir(),
	}
	if e.videoCodec == "" {
		e.videoCodec = ffmpeg.CodecH264
	}
	if e.audioCodec == "" {
		e.audioCodec = ffmpeg.CodecAAC
	}
	return e
}

// Execute runs every group of b in order. It stops before the next group
// once sig is cancelled and aborts the plan on the first failed invocation;
// outputs produced so far stay on disk. onProgress may be nil.
func (e *Executor) Execute(ctx context.Context, b *Batch, onProgress func(Progress), sig *CancelSignal) ExecutionResult {
	res := ExecutionResult{BatchID: b.ID, OutputDir: b.OutputDir, Total: len(b.Groups)}
	if sig == nil {
		sig = NewCancelSignal()
	}
	if onProgress == nil {
		onProgress = func(Progress) {}
	}
	logger := log.WithField("batch", b.ID)

	unlock, err := e.lockOutput(b.OutputDir)
	if err != nil {
		res.Err = err
		return res
	}
	defer unlock()

	if err := os.MkdirAll(b.OutputDir, 0o755); err != nil {
		res.Err = fmt.Errorf("could not create output directory: %w", err)
		return res
	}

	logger.Infof("Conversion started: %s", b.Describe())
	tracker := NewTracker(len(b.Groups))
	onProgress(tracker.Snapshot())

	for i, g := range b.Groups {
		if sig.Cancelled() || ctx.Err() != nil {
			res.Err = ErrCancelled
			break
		}

		glog := logger.WithFields(log.Fields{"group": i + 1, "strategy": g.Strategy()})
		glog.Infof("[%d/%d] %s", i+1, len(b.Groups), g.BaseName())

		out, err := e.runGroup(ctx, b.OutputDir, i, g, sig)
		if err != nil {
			res.Err = err
			break
		}
		res.Outputs = append(res.Outputs, out)

		p := tracker.Advance()
		res.Completed = p.Completed
		onProgress(p)
		glog.Infof("Done: %s (%d%%, remaining %s)", filepath.Base(out), p.Percent, p.ETAString())
	}

	switch {
	case res.Err == nil:
		logger.Infof("Conversion complete. Output: %s", b.OutputDir)
	case res.Cancelled():
		logger.Warnf("Conversion cancelled after %d/%d groups", res.Completed, res.Total)
	default:
		logger.Errorf("Conversion failed: %v", res.Err)
	}
	return res
}

func (e *Executor) runGroup(ctx context.Context, dir string, index int, g Group, sig *CancelSignal) (string, error) {
	out := filepath.Join(dir, g.BaseName()+".mp4")
	switch g.Strategy() {
	case StrategyConcatCopy:
		return out, e.concatCopy(ctx, dir, out, index, g, sig)
	case StrategyTranscodeThenConcat:
		return out, e.transcodeThenConcat(ctx, dir, out, index, g, sig)
	case StrategyDirectTranscode:
		args := ffmpeg.TranscodeArgs(g.Members[0].Path, out, e.videoCodec, e.audioCodec)
		return out, e.step(ctx, sig, index, g, StageTranscode, args)
	}
	return "", &ProcessFailure{
		GroupIndex: index,
		BaseName:   g.BaseName(),
		Stage:      StageTranscode,
		Err:        fmt.Errorf("no conversion strategy for %s", g.Members[0].Path),
	}
}

func (e *Executor) concatCopy(ctx context.Context, dir, out string, index int, g Group, sig *CancelSignal) error {
	manifest := filepath.Join(dir, g.BaseName()+"_list.txt")
	if err := ffmpeg.WriteManifest(manifest, g.Paths()); err != nil {
		return e.failure(index, g, StageManifest, "", err)
	}
	args := ffmpeg.ConcatArgs(manifest, out, ffmpeg.CodecCopy, e.audioCodec)
	return e.step(ctx, sig, index, g, StageConcat, args)
}

// transcodeThenConcat encodes every member to an intermediate MP4, then
// stream-copies the intermediates into the final file. Intermediates are
// removed whatever the outcome, except on cancellation.
func (e *Executor) transcodeThenConcat(ctx context.Context, dir, out string, index int, g Group, sig *CancelSignal) (err error) {
	temps := make([]string, 0, len(g.Members))
	defer func() {
		if !errors.Is(err, ErrCancelled) {
			removeIntermediates(temps)
		}
	}()

	for j, m := range g.Members {
		temp := filepath.Join(dir, fmt.Sprintf("temp_%d_%s.mp4", j, g.BaseName()))
		temps = append(temps, temp)
		args := ffmpeg.TranscodeArgs(m.Path, temp, e.videoCodec, e.audioCodec)
		if err := e.step(ctx, sig, index, g, StageTranscode, args); err != nil {
			return err
		}
	}

	manifest := filepath.Join(dir, g.BaseName()+"_list.txt")
	if err := ffmpeg.WriteManifest(manifest, temps); err != nil {
		return e.failure(index, g, StageManifest, "", err)
	}
	args := ffmpeg.ConcatArgs(manifest, out, ffmpeg.CodecCopy, ffmpeg.CodecCopy)
	return e.step(ctx, sig, index, g, StageConcat, args)
}

// step runs one invocation attached to sig. A failure caused by
// cancellation is reported as ErrCancelled, anything else as ProcessFailure.
func (e *Executor) step(ctx context.Context, sig *CancelSignal, index int, g Group, stage Stage, args []string) error {
	pctx, kill := context.WithCancel(ctx)
	defer kill()

	detach, err := sig.attach(kill)
	if err != nil {
		return err
	}
	output, err := e.runner.Run(pctx, args)
	detach()

	if err == nil {
		return nil
	}
	if sig.Cancelled() || ctx.Err() != nil {
		return ErrCancelled
	}
	return e.failure(index, g, stage, output, err)
}

func (e *Executor) failure(index int, g Group, stage Stage, output string, err error) *ProcessFailure {
	return &ProcessFailure{
		GroupIndex: index,
		BaseName:   g.BaseName(),
		Strategy:   g.Strategy(),
		Stage:      stage,
		Output:     ffmpeg.Tail(output, 20),
		Err:        err,
	}
}

func removeIntermediates(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warnf("could not remove intermediate %s: %v", p, err)
		}
	}
}

// lockOutput takes an advisory lock on the output tree. The lock file lives
// in the temp dir so it never shows up among the outputs.
func (e *Executor) lockOutput(dir string) (func(), error) {
	fl := flock.New(e.lockPath(dir))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("could not lock output directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrOutputBusy, dir)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			log.Warnf("could not release output lock: %v", err)
		}
	}, nil
}

func (e *Executor) lockPath(dir string) string {
	sum := sha1.Sum([]byte(filepath.Clean(dir)))
	return filepath.Join(e.lockDir, "mp4conv-"+hex.EncodeToString(sum[:8])+".lock")
}
