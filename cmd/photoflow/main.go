package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yourusername/photoflow/pkg/api"
	"github.com/yourusername/photoflow/pkg/config"
	"github.com/yourusername/photoflow/pkg/organizer"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	configPath string
	refresher  *organizer.TagRefresher
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if refresher != nil {
		refresher.Stop()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "photoflow: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "photoflow",
		Short:        "Photo collection client",
		Long:         `photoflow browses, rates, tags, and exports photos managed by a photoflow backend.`,
		SilenceUsage: true,
		Version:      fmt.Sprintf("%s (%s)", version, commit),
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	cmd.AddCommand(
		newPingCmd(),
		newListCmd(),
		newScanCmd(),
		newRateCmd(),
		newTagCmd(),
		newUntagCmd(),
		newTagsCmd(),
		newBulkCmd(),
		newExportCmd(),
		newAlbumsCmd(),
		newPresetsCmd(),
	)
	return cmd
}

// setup loads configuration, configures logging, and builds the controller.
func setup() (*config.Config, *organizer.Controller, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, defaulting to info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !cfg.LogJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	client := api.NewClient(cfg.BackendURL, cfg.BackendAPIKey, cfg.RequestTimeout)

	ctrl := organizer.NewController(client, organizer.Options{
		PageSize:       cfg.PageSize,
		DebounceWindow: cfg.DebounceWindow,
		PollInterval:   cfg.ExportPollInterval,
		DisplayWindow:  cfg.ExportDisplayWindow,
		BulkMaxIDs:     cfg.BulkMaxIDs,
		CacheTTL:       cfg.CacheTTL,
		Download:       fileDownloader(client, cfg.DownloadDir),
	})

	if cfg.EnableTagRefresh {
		refresher = organizer.NewTagRefresher(ctrl, cfg.TagRefreshCron)
		if err := refresher.Start(); err != nil {
			log.Warn().Err(err).Msg("Tag refresher failed to start")
			refresher = nil
		}
	}

	return cfg, ctrl, nil
}

// downloadDone receives one signal per finished download attempt so the
// export command can wait for the archive before exiting.
var downloadDone = make(chan struct{}, 1)

// fileDownloader writes a finished export archive into dir.
func fileDownloader(client *api.Client, dir string) organizer.Downloader {
	return func(ctx context.Context, jobID string) error {
		defer func() {
			select {
			case downloadDone <- struct{}{}:
			default:
			}
		}()

		body, err := client.DownloadExport(ctx, jobID)
		if err != nil {
			return err
		}
		defer body.Close()

		dest := filepath.Join(dir, fmt.Sprintf("export_%s.zip", jobID))
		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		defer out.Close()

		if _, err := io.Copy(out, body); err != nil {
			return err
		}

		log.Info().Str("path", dest).Msg("Export downloaded")
		return nil
	}
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check backend connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			client := api.NewClient(cfg.BackendURL, cfg.BackendAPIKey, cfg.RequestTimeout)
			if err := client.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("backend is reachable")
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var (
		dateStart string
		dateEnd   string
		cameras   []string
		tags      []string
		ratingMin int
		sortBy    string
		sortOrder string
		page      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List photos matching the given filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			q := ctrl.Query()
			q.SetCriteria(organizer.FilterCriteria{
				DateStart:    dateStart,
				DateEnd:      dateEnd,
				CameraModels: cameras,
				TagNames:     tags,
				RatingMin:    ratingMin,
			})
			q.SetSort(organizer.SortKey(sortBy), organizer.SortDirection(sortOrder))
			q.SetPage(page)

			if err := ctrl.RefreshPhotos(cmd.Context()); err != nil {
				return err
			}

			meta := ctrl.Store().Meta()
			for _, photo := range ctrl.Store().Records() {
				printPhoto(photo)
			}
			fmt.Printf("page %d/%d, %d photos total\n", meta.Page, meta.TotalPages, meta.TotalItems)
			return nil
		},
	}
	cmd.Flags().StringVar(&dateStart, "date-start", "", "Capture date lower bound (YYYY-MM-DD)")
	cmd.Flags().StringVar(&dateEnd, "date-end", "", "Capture date upper bound (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&cameras, "camera", nil, "Camera model filter (repeatable, OR)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag filter (repeatable, AND)")
	cmd.Flags().IntVar(&ratingMin, "rating-min", 0, "Minimum rating (0 = no constraint)")
	cmd.Flags().StringVar(&sortBy, "sort", string(organizer.SortCaptureDate), "Sort key: capture_date, date_added, original_filename, camera_model, rating")
	cmd.Flags().StringVar(&sortOrder, "order", string(organizer.SortDesc), "Sort order: asc or desc")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	return cmd
}

func printPhoto(photo api.Photo) {
	captured := "-"
	if photo.CaptureDate != nil {
		captured = photo.CaptureDate.Format("2006-01-02")
	}
	tagNames := make([]string, 0, len(photo.Tags))
	for _, t := range photo.Tags {
		tagNames = append(tagNames, t.Name)
	}
	fmt.Printf("%6d  %-10s %-20s %d★  %s  %s\n",
		photo.ID, captured, photo.CameraModel, photo.Rating,
		filepath.Base(photo.FilePath), strings.Join(tagNames, ","))
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <folder>",
		Short: "Ask the backend to ingest a folder of images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			client := api.NewClient(cfg.BackendURL, cfg.BackendAPIKey, cfg.RequestTimeout)
			result, err := client.ScanFolder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("added %d of %d processed images\n", result.NewImagesAdded, result.TotalImagesProcessed)
			for _, e := range result.Errors {
				fmt.Printf("  error: %s\n", e)
			}
			return nil
		},
	}
}

func newRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <photo-id> <rating>",
		Short: "Set the rating of one photo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			photoID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid photo id %q", args[0])
			}
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid rating %q", args[1])
			}

			_, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			return ctrl.RatePhoto(cmd.Context(), photoID, rating)
		},
	}
}

func newTagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag <photo-id> <tag-name>",
		Short: "Add a tag to one photo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			photoID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid photo id %q", args[0])
			}

			_, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			return ctrl.AddTagToPhoto(cmd.Context(), photoID, args[1])
		},
	}
}

func newUntagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "untag <photo-id> <tag-id>",
		Short: "Remove a tag from one photo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			photoID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid photo id %q", args[0])
			}
			tagID, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid tag id %q", args[1])
			}

			_, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			return ctrl.RemoveTagFromPhoto(cmd.Context(), photoID, tagID)
		},
	}
}

func newTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List all known tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			tags, err := ctrl.TagNames(cmd.Context())
			if err != nil {
				return err
			}
			for _, tag := range tags {
				fmt.Printf("%6d  %s\n", tag.ID, tag.Name)
			}
			return nil
		},
	}
}

func newBulkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Bulk operations over a set of photo ids",
	}
	cmd.AddCommand(newBulkDeleteCmd(), newBulkRateCmd(), newBulkTagCmd())
	return cmd
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid photo id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func selectIDs(ctrl *organizer.Controller, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	ctrl.Selection().SelectAll(ids)
	return nil
}

func printBulkResult(result *organizer.BulkResult) {
	fmt.Println(result.Message())
	for _, e := range result.Errors {
		fmt.Printf("  %s\n", e)
	}
}

func newBulkDeleteCmd() *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "delete <photo-id...>",
		Short: "Delete photos (requires --yes)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if err := selectIDs(ctrl, args); err != nil {
				return err
			}
			result, err := ctrl.BulkDeleteSelected(cmd.Context(), confirmed)
			if err != nil {
				return err
			}
			printBulkResult(result)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "Confirm the delete")
	return cmd
}

func newBulkRateCmd() *cobra.Command {
	var rating int
	cmd := &cobra.Command{
		Use:   "rate <photo-id...>",
		Short: "Set the same rating on many photos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if err := selectIDs(ctrl, args); err != nil {
				return err
			}
			result, err := ctrl.BulkRateSelected(cmd.Context(), rating)
			if err != nil {
				return err
			}
			printBulkResult(result)
			return nil
		},
	}
	cmd.Flags().IntVar(&rating, "rating", 0, "Rating to apply (0-5)")
	return cmd
}

func newBulkTagCmd() *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "tag <photo-id...>",
		Short: "Add tags to many photos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if err := selectIDs(ctrl, args); err != nil {
				return err
			}
			result, err := ctrl.BulkTagSelected(cmd.Context(), tags)
			if err != nil {
				return err
			}
			printBulkResult(result)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag to add (repeatable)")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		albumID  int
		format   string
		quality  string
		metadata bool
	)
	cmd := &cobra.Command{
		Use:   "export [photo-id...]",
		Short: "Export photos or an album and download the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			req := api.ExportRequest{
				ExportFormat:    format,
				Quality:         quality,
				IncludeMetadata: metadata,
			}
			if albumID > 0 {
				req.AlbumID = &albumID
			} else {
				ids, err := parseIDs(args)
				if err != nil {
					return err
				}
				req.ImageIDs = ids
			}

			orch := ctrl.Export()
			if err := orch.Submit(cmd.Context(), req); err != nil {
				return err
			}

			// Wait for the job to reach a terminal state.
			for {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(200 * time.Millisecond):
				}

				switch orch.State() {
				case organizer.ExportCompleted:
					select {
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					case <-downloadDone:
					}
					if reason := orch.Failure(); reason != "" {
						return fmt.Errorf("export finished but %s", reason)
					}
					if job, ok := orch.Job(); ok {
						fmt.Printf("exported %d/%d images\n", job.ProcessedImages, job.TotalImages)
					}
					orch.Dismiss()
					return nil
				case organizer.ExportFailed:
					reason := orch.Failure()
					orch.Dismiss()
					return fmt.Errorf("export failed: %s", reason)
				case organizer.ExportPolling:
					if job, ok := orch.Job(); ok {
						fmt.Printf("\r%3d%% (%d/%d)", job.Progress, job.ProcessedImages, job.TotalImages)
					}
				}
			}
		},
	}
	cmd.Flags().IntVar(&albumID, "album", 0, "Export a whole album instead of explicit ids")
	cmd.Flags().StringVar(&format, "format", "zip", "Export format: zip or folder")
	cmd.Flags().StringVar(&quality, "quality", "original", "Quality preset: original, high, medium, low")
	cmd.Flags().BoolVar(&metadata, "metadata", true, "Include metadata sidecars")
	return cmd
}

func newAlbumsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "albums",
		Short: "Album operations",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List albums",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			page, err := ctrl.ListAlbums(cmd.Context(), 1, 100)
			if err != nil {
				return err
			}
			for _, album := range page.Items {
				fmt.Printf("%6d  %-30s %4d photos\n", album.ID, album.Name, album.PhotoCount)
			}
			return nil
		},
	}

	var description string
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an album",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			album, err := ctrl.CreateAlbum(cmd.Context(), api.CreateAlbumParams{
				Name:        args[0],
				Description: description,
			})
			if err != nil {
				return err
			}
			fmt.Printf("created album %d %q\n", album.ID, album.Name)
			return nil
		},
	}
	createCmd.Flags().StringVar(&description, "description", "", "Album description")

	deleteCmd := &cobra.Command{
		Use:   "delete <album-id>",
		Short: "Delete an album (photos are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			albumID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid album id %q", args[0])
			}

			_, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			return ctrl.DeleteAlbum(cmd.Context(), albumID)
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <album-id> <photo-id...>",
		Short: "Add photos to an album",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			albumID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid album id %q", args[0])
			}

			_, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if err := selectIDs(ctrl, args[1:]); err != nil {
				return err
			}
			album, err := ctrl.AddSelectedToAlbum(cmd.Context(), albumID)
			if err != nil {
				return err
			}
			fmt.Printf("album %q now holds %d photos\n", album.Name, album.PhotoCount)
			return nil
		},
	}

	cmd.AddCommand(listCmd, createCmd, deleteCmd, addCmd)
	return cmd
}

func newPresetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Saved filter presets",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			store, err := organizer.NewFilterPresetStore(cfg.PresetsPath)
			if err != nil {
				return err
			}
			for _, preset := range store.List() {
				fmt.Printf("%-36s  %s\n", preset.ID, preset.Name)
			}
			return nil
		},
	}

	var (
		dateStart string
		dateEnd   string
		cameras   []string
		tags      []string
		ratingMin int
	)
	saveCmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save the given filters under a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			store, err := organizer.NewFilterPresetStore(cfg.PresetsPath)
			if err != nil {
				return err
			}

			preset := organizer.FilterPreset{
				Name: args[0],
				Criteria: organizer.FilterCriteria{
					DateStart:    dateStart,
					DateEnd:      dateEnd,
					CameraModels: cameras,
					TagNames:     tags,
					RatingMin:    ratingMin,
				},
			}
			if existing, ok := store.GetByName(args[0]); ok {
				preset.ID = existing.ID
				preset.CreatedAt = existing.CreatedAt
			}

			saved, err := store.Save(preset)
			if err != nil {
				return err
			}
			fmt.Printf("saved preset %q (%s)\n", saved.Name, saved.ID)
			return nil
		},
	}
	saveCmd.Flags().StringVar(&dateStart, "date-start", "", "Capture date lower bound (YYYY-MM-DD)")
	saveCmd.Flags().StringVar(&dateEnd, "date-end", "", "Capture date upper bound (YYYY-MM-DD)")
	saveCmd.Flags().StringSliceVar(&cameras, "camera", nil, "Camera model filter (repeatable)")
	saveCmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag filter (repeatable)")
	saveCmd.Flags().IntVar(&ratingMin, "rating-min", 0, "Minimum rating")

	useCmd := &cobra.Command{
		Use:   "use <name>",
		Short: "List photos using a saved preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			store, err := organizer.NewFilterPresetStore(cfg.PresetsPath)
			if err != nil {
				return err
			}
			preset, ok := store.GetByName(args[0])
			if !ok {
				return fmt.Errorf("no preset named %q", args[0])
			}

			ctrl.Query().SetCriteria(preset.Criteria)
			if preset.SortBy != "" {
				ctrl.Query().SetSort(preset.SortBy, preset.SortOrder)
			}
			if err := ctrl.RefreshPhotos(cmd.Context()); err != nil {
				return err
			}
			for _, photo := range ctrl.Store().Records() {
				printPhoto(photo)
			}
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ctrl, err := setup()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			store, err := organizer.NewFilterPresetStore(cfg.PresetsPath)
			if err != nil {
				return err
			}
			preset, ok := store.GetByName(args[0])
			if !ok {
				return fmt.Errorf("no preset named %q", args[0])
			}
			return store.Delete(preset.ID)
		},
	}

	cmd.AddCommand(listCmd, saveCmd, useCmd, deleteCmd)
	return cmd
}
