package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/image-harvester/internal/app"
	"github.com/JakeFAU/image-harvester/internal/config"
)

// newHarvestCmd creates and configures the 'harvest' subcommand, which
// performs one full page scan and download run.
func newHarvestCmd() *cobra.Command {
	var (
		outputDir   string
		concurrency int
		maxSizeMB   int
		render      bool
	)

	cmd := &cobra.Command{
		Use:   "harvest <url>",
		Short: "Downloads all images referenced by the page at <url>",
		Long: `Fetches the page, extracts every image reference it can find, and
downloads each distinct image into <output-dir>/<domain>/. A summary report
is written alongside the images. The URL scheme defaults to https:// when
omitted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output-dir") {
				cfg.Harvest.OutputDir = outputDir
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Harvest.Concurrency = concurrency
			}
			if cmd.Flags().Changed("max-size-mb") {
				cfg.Harvest.MaxSizeMB = maxSizeMB
			}
			if cmd.Flags().Changed("render") {
				cfg.Render.Enabled = render
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runHarvest(cmd.Context(), cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-dir", "downloaded_images", "base directory for saved images")
	cmd.Flags().IntVar(&concurrency, "concurrency", 5, "number of parallel downloads")
	cmd.Flags().IntVar(&maxSizeMB, "max-size-mb", 0, "per-image size cap in MB (0 = unlimited)")
	cmd.Flags().BoolVar(&render, "render", false, "render the page in headless Chrome when it looks script-built")

	return cmd
}

func runHarvest(parent context.Context, cfg config.Config, rawURL string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer func() {
		if cerr := application.Close(context.WithoutCancel(ctx)); cerr != nil {
			application.Logger().Warn("shutdown incomplete", zap.Error(cerr))
		}
	}()

	report, err := application.Run(ctx, rawURL)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		// Interrupted by the user; in-flight downloads were collected and
		// the run already reported what it processed.
		application.Logger().Info("harvest interrupted, exiting cleanly")
		return nil
	default:
		return fmt.Errorf("harvest %s: %w", rawURL, err)
	}

	if report.Summary.Total == 0 && report.Skipped == 0 {
		application.Logger().Warn("no images found on page", zap.String("url", report.PageURL))
	}
	return nil
}
