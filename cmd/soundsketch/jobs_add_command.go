package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"soundsketch/internal/config"
	"soundsketch/internal/fileutil"
	"soundsketch/internal/pipeline"
	"soundsketch/internal/queue"
	"soundsketch/internal/textutil"
)

func newJobsAddCommand(ctx *commandContext) *cobra.Command {
	var stem string

	cmd := &cobra.Command{
		Use:   "add <audio-file>",
		Short: "Copy a local audio file into the upload directory and queue it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				ext := strings.ToLower(filepath.Ext(info.Name()))
				if !cfg.AllowsExtension(ext) {
					return fmt.Errorf("unsupported file extension %q (allowed %s)", ext, strings.Join(cfg.API.AllowedExtensions, ", "))
				}

				// The copy lives in the upload directory so deletes and
				// retention sweeps own it; the original is never touched.
				id := uuid.NewString()
				dst := filepath.Join(cfg.Paths.UploadDir, id+ext)
				if err := fileutil.CopyFileVerified(absPath, dst); err != nil {
					return fmt.Errorf("copy into upload directory: %w", err)
				}
				job, err := store.NewJob(cmd.Context(), queue.NewJobParams{
					ID:         id,
					SourcePath: dst,
					Filename:   textutil.SanitizeFileName(info.Name()),
					Stem:       pipeline.SanitizeStem(stem, cfg.Transcription.DefaultStem),
				})
				if err != nil {
					_ = os.Remove(dst)
					return fmt.Errorf("queue job: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as job %s (stem %s)\n", info.Name(), job.ID, job.Stem)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&stem, "stem", "", "Instrument stem (defaults to transcription.default_stem)")
	return cmd
}
