package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/okian/footfall/internal/adapters/imagestore"
	"github.com/okian/footfall/internal/adapters/replay"
	service "github.com/okian/footfall/internal/app"
	"github.com/okian/footfall/pkg/logger"
)

type runFlags struct {
	progress bool
	serve    bool
	addr     string
}

func newRunCmd(c *cli) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <replay.jsonl>...",
		Short: "Process recorded streams into visitors and events",
		Long: `Run replays one JSONL recording per stream through detection, tracking and
identity resolution. Streams run concurrently and share one identity store.

With --serve the read API stays up after the streams finish until the
process is interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("serve") {
				c.cfg.Serve = f.serve
			}
			if f.addr != "" {
				c.cfg.Addr = f.addr
			}
			return runStreams(cmd.Context(), cmd.OutOrStdout(), c, f.progress, args)
		},
	}
	cmd.Flags().BoolVar(&f.progress, "progress", false, "Show a frame progress bar")
	cmd.Flags().BoolVar(&f.serve, "serve", false, "Serve the read API while and after processing")
	cmd.Flags().StringVar(&f.addr, "addr", "", "Override the HTTP listen address")
	return cmd
}

func runStreams(ctx context.Context, out io.Writer, c *cli, progress bool, paths []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := c.cfg
	log := logger.Get()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "failed to close store", logger.Error(err))
		}
	}()

	sources := make([]service.Source, 0, len(paths))
	for _, p := range paths {
		src, err := replay.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		sources = append(sources, src)
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithImageSink(imagestore.New(cfg.LogsDir, imagestore.WithMaxSide(cfg.CropMaxSide))),
	}
	var bar *progressbar.ProgressBar
	if progress {
		bar = newFrameBar(len(sources))
		opts = append(opts, service.WithProgress(func(string) { _ = bar.Add(1) }))
	}

	svc := service.New(cfg, store, opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "failed to stop service", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc, cfg.WriterQueueSize)

	var serveErr <-chan error
	if cfg.Serve {
		srv := newHTTPServer(ctx, cfg.Addr, store, svc)
		serveErr = startHTTPServer(ctx, srv)
		defer shutdownHTTPServer(ctx, srv)
	}

	summaries, runErr := svc.Run(ctx, sources...)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(out)
	}
	printSummaries(out, summaries)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	if cfg.Serve {
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("HTTP server failed: %w", err)
			}
		}
	}
	return nil
}

func newFrameBar(streams int) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(fmt.Sprintf("Replaying %d stream(s)", streams)),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
}

func printSummaries(out io.Writer, summaries []service.Summary) {
	for _, s := range summaries {
		fmt.Fprintf(out, "%s: %d frames (%d processed), %d detections, %d tracks, %d registered, %d matched, %d entries, %d exits",
			s.Stream, s.Frames, s.Processed, s.Detections, s.TracksCreated,
			s.Registered, s.Matched, s.Entries, s.Exits)
		if s.FrameErrors > 0 {
			fmt.Fprintf(out, ", %d frame errors", s.FrameErrors)
		}
		fmt.Fprintln(out)
	}
}
