package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"mp4conv/batch"
	"mp4conv/ffmpeg"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newConvertCommand(configPath *string) *cobra.Command {
	var planOnly bool

	cmd := &cobra.Command{
		Use:   "convert <file-or-folder>...",
		Short: "Convert files and folders to MP4 in one run",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), *configPath, args, planOnly, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&planOnly, "plan", false, "Print the conversion plan without running it")
	return cmd
}

func runConvert(ctx context.Context, configPath string, paths []string, planOnly bool, out io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	res, err := batch.Classify(paths)
	if err != nil {
		return err
	}
	if res.NoOp {
		fmt.Fprintln(out, "Only MP4 files given, nothing to convert.")
		return nil
	}

	b, err := batch.BuildPlan(res, batch.WithOutputDirName(cfg.OutputDirName))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderPlan(b))
	if planOnly {
		return nil
	}

	ffmpegRunner, err := ffmpeg.NewRunner(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize ffmpeg runner: %w", err)
	}

	sig := batch.NewCancelSignal()
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		sig.Cancel()
	}()

	reporter := newProgressReporter(len(b.Groups))
	result := batch.NewExecutor(cfg, ffmpegRunner).Execute(ctx, b, reporter.Update, sig)
	reporter.Finish()

	if result.Err != nil {
		var pf *batch.ProcessFailure
		if errors.As(result.Err, &pf) && pf.Output != "" {
			fmt.Fprintln(os.Stderr, pf.Output)
		}
		return result.Err
	}
	fmt.Fprintf(out, "Converted %d of %d into %s\n", result.Completed, result.Total, result.OutputDir)
	return nil
}

func renderPlan(b *batch.Batch) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(b.Describe())
	tw.AppendHeader(table.Row{"#", "Output", "Strategy", "Sources"})
	for i, g := range b.Groups {
		names := make([]string, len(g.Members))
		for j, m := range g.Members {
			names[j] = filepath.Base(m.Path)
		}
		tw.AppendRow(table.Row{strconv.Itoa(i + 1), g.BaseName() + ".mp4", string(g.Strategy()), strings.Join(names, ", ")})
	}
	tw.AppendFooter(table.Row{"", "Output dir", b.OutputDir, ""})
	return tw.Render()
}

// progressReporter draws a bar on a terminal and falls back to log lines
// when stderr is redirected.
type progressReporter struct {
	bar *progressbar.ProgressBar
}

func newProgressReporter(total int) *progressReporter {
	fd := os.Stderr.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return &progressReporter{}
	}
	return &progressReporter{bar: progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("converting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)}
}

func (r *progressReporter) Update(p batch.Progress) {
	if r.bar == nil {
		if p.Completed > 0 {
			log.Infof("Progress: %d%% (%d/%d), remaining %s", p.Percent, p.Completed, p.Total, p.ETAString())
		}
		return
	}
	r.bar.Describe("remaining " + p.ETAString())
	_ = r.bar.Set(p.Completed)
}

func (r *progressReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}
