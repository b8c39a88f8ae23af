package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"mp4conv/config"

	"github.com/c2h5oh/datasize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"
)

// ErrInsufficientResources is returned when the host is too busy or too full
// to start another encode.
var ErrInsufficientResources = errors.New("insufficient system resources")

// outputTailLines bounds how much ffmpeg chatter is kept on failure.
const outputTailLines = 20

// killWaitDelay caps how long Run waits for output pipes after a kill.
const killWaitDelay = 5 * time.Second

// ExitError describes an ffmpeg invocation that ran but did not succeed.
type ExitError struct {
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("ffmpeg exited with status %d: %v", e.ExitCode, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

type Runner struct {
	cfg  *config.Config
	bin  string
	pre  []string
	cpuP func(time.Duration, bool) ([]float64, error)
}

// NewRunner resolves the configured encoder. FF_BIN may carry leading
// arguments ("ffmpeg -hide_banner"); they are kept ahead of every invocation.
func NewRunner(cfg *config.Config) (*Runner, error) {
	words, err := SplitCommand(cfg.FFBin)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("ffmpeg binary is not configured")
	}
	bin, err := exec.LookPath(words[0])
	if err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found or not in PATH: %s", words[0])
	}
	if err := SanitizeAndValidateArgs(words[1:]); err != nil {
		return nil, fmt.Errorf("invalid FF_BIN: %w", err)
	}

	return &Runner{
		cfg:  cfg,
		bin:  bin,
		pre:  words[1:],
		cpuP: cpu.Percent,
	}, nil
}

// Run executes one encoder invocation and waits for it to exit. Cancelling
// ctx kills the process outright. The combined stdout/stderr is returned in
// both the success and failure cases.
func (r *Runner) Run(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("no ffmpeg arguments given")
	}
	// ffmpeg's last argument is the output file.
	if err := r.checkResources(filepath.Dir(args[len(args)-1])); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInsufficientResources, err)
	}

	if r.cfg.FFTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.FFTimeout)
		defer cancel()
	}

	full := append(append([]string{}, r.pre...), args...)
	cmd := exec.CommandContext(ctx, r.bin, full...)
	cmd.WaitDelay = killWaitDelay
	var outputBuf bytes.Buffer
	cmd.Stdout = &outputBuf
	cmd.Stderr = &outputBuf

	log.Debugf("Executing: %s %s", r.bin, strings.Join(full, " "))

	err := cmd.Run()
	outputLog := outputBuf.String()
	if err == nil {
		return outputLog, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		// Killed on request or by FF_TIMEOUT; report that rather than "signal: killed".
		return outputLog, fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return outputLog, &ExitError{
		Args:     full,
		ExitCode: code,
		Output:   Tail(outputLog, outputTailLines),
		Err:      err,
	}
}

// checkResources verifies that the host can take another encode. Zero
// thresholds disable the matching check.
func (r *Runner) checkResources(dir string) error {
	if r.cfg.ThrottleCPU > 0 {
		p, err := r.cpuP(time.Second, false)
		if err != nil {
			log.Warnf("could not get CPU usage: %v", err)
		} else if len(p) > 0 && p[0] > (100.0-r.cfg.ThrottleCPU) {
			return fmt.Errorf("not enough idle CPU. Current usage: %.2f%%, Idle threshold: %.2f%%", p[0], r.cfg.ThrottleCPU)
		}
	}

	if r.cfg.ThrottleFreeMem > 0 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			log.Warnf("could not get memory usage: %v", err)
		} else if vm.Available < uint64(r.cfg.ThrottleFreeMem) {
			return fmt.Errorf("not enough free memory. Available: %s, Required: %s",
				datasize.ByteSize(vm.Available).HR(), datasize.ByteSize(r.cfg.ThrottleFreeMem).HR())
		}
	}

	if r.cfg.ThrottleFreeDisk > 0 {
		d, err := disk.Usage(dir)
		if err != nil {
			log.Warnf("could not get disk usage for %s: %v", dir, err)
		} else if d.Free < uint64(r.cfg.ThrottleFreeDisk) {
			return fmt.Errorf("not enough free disk space in %s. Available: %s, Required: %s",
				dir, datasize.ByteSize(d.Free).HR(), datasize.ByteSize(r.cfg.ThrottleFreeDisk).HR())
		}
	}
	return nil
}

// Tail returns at most the last n lines of s.
func Tail(s string, n int) string {
	s = strings.TrimRight(s, "\r\n")
	if s == "" || n <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
