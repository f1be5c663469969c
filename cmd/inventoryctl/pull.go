package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pharmacheck/inventory/backend-go/internal/drive"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline"
	"github.com/pharmacheck/inventory/backend-go/pkg/logger"
	"github.com/urfave/cli/v2"
)

func pullCommand() *cli.Command {
	return &cli.Command{
		Name:  "pull",
		Usage: "Download the latest exports from a Google Drive folder and reconcile them",
		Flags: append(pipelineFlags(),
			&cli.StringFlag{
				Name:    "credentials",
				Usage:   "Service account credentials JSON file",
				EnvVars: []string{"DRIVE_CREDENTIALS_FILE"},
			},
			&cli.StringFlag{
				Name:    "folder-id",
				Usage:   "Drive folder ID holding the exports",
				EnvVars: []string{"DRIVE_FOLDER_ID"},
			},
			&cli.StringFlag{
				Name:  "folder-path",
				Usage: "Drive folder path (e.g. pharmacy/exports), resolved when --folder-id is empty",
			},
			&cli.StringFlag{
				Name:    "dir",
				Usage:   "Local download directory",
				Value:   "./data/uploads",
				EnvVars: []string{"APP_UPLOAD_DIR"},
			},
			&cli.BoolFlag{Name: "watch", Usage: "Keep polling and reconcile whenever the exports change"},
			&cli.DurationFlag{
				Name:    "interval",
				Usage:   "Polling interval with --watch",
				Value:   5 * time.Minute,
				EnvVars: []string{"DRIVE_POLL_INTERVAL"},
			},
		),
		Action: runPull,
	}
}

func runPull(c *cli.Context) error {
	credentials, err := os.ReadFile(c.String("credentials"))
	if err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}
	driveService, err := drive.NewService(c.Context, credentials)
	if err != nil {
		return err
	}

	folderID := c.String("folder-id")
	if folderID == "" {
		if c.String("folder-path") == "" {
			return errors.New("either --folder-id or --folder-path is required")
		}
		folderID, err = driveService.FindFolderByPath(c.Context, c.String("folder-path"))
		if err != nil {
			return err
		}
	}

	orchestrator, err := buildOrchestrator(dbFrom(c), pipelineConfig(c))
	if err != nil {
		return err
	}
	reconcile := func(ctx context.Context, paths []string) error {
		results, err := orchestrator.Run(ctx, paths, pipeline.TriggerDrive)
		if err != nil {
			return err
		}
		committed := make([]*pipeline.Result, 0, len(results))
		for _, res := range results {
			printResult(res)
			committed = append(committed, res)
		}
		invalidateViews(c, committed)
		return nil
	}

	downloader := drive.NewDownloader(driveService)
	opts := drive.DownloadOptions{FolderID: folderID, DownloadDir: c.String("dir")}

	if c.Bool("watch") {
		logger.Log.Info().Str("folder_id", folderID).Dur("interval", c.Duration("interval")).Msg("watching drive folder")
		err := downloader.Watch(c.Context, opts, c.Duration("interval"), reconcile)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	paths, err := downloader.DownloadExports(c.Context, opts)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("no supported exports found")
		return nil
	}
	return reconcile(c.Context, paths)
}
