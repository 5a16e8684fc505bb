package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"soundsketch/internal/config"
	"soundsketch/internal/logging"
	"soundsketch/internal/pipeline"
	"soundsketch/internal/queue"
)

type transcribeOutput struct {
	JobID        string   `json:"job_id"`
	Input        string   `json:"input"`
	Stem         string   `json:"stem"`
	Status       string   `json:"status"`
	Notes        int      `json:"note_count"`
	Strategy     string   `json:"strategy,omitempty"`
	Encoder      string   `json:"encoder,omitempty"`
	Key          string   `json:"key,omitempty"`
	MIDIPath     string   `json:"midi_path,omitempty"`
	MusicXMLPath string   `json:"musicxml_path,omitempty"`
	Errors       []string `json:"errors"`
	ElapsedMS    int64    `json:"elapsed_ms"`
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var stem string
	var jobID string
	var outputDir string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe one audio file without the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			input, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve input: %w", err)
			}
			if info, err := os.Stat(input); err != nil {
				return fmt.Errorf("input %s: %w", args[0], err)
			} else if info.IsDir() {
				return fmt.Errorf("input %s is a directory", args[0])
			}

			runCfg := *cfg
			if dir := strings.TrimSpace(outputDir); dir != "" {
				expanded, err := config.ExpandPath(dir)
				if err != nil {
					return fmt.Errorf("resolve output directory: %w", err)
				}
				runCfg.Paths.OutputDir = expanded
			}

			logger, err := logging.NewFromConfig(&runCfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			res := pipeline.New(&runCfg, logger).RunRequest(cmd.Context(), pipeline.Request{
				InputPath: input,
				JobID:     jobID,
				Stem:      stem,
			})
			out := newTranscribeOutput(res)
			if jsonOutput {
				if err := writeJSON(cmd, out); err != nil {
					return err
				}
			} else {
				printTranscribeResult(cmd, out)
			}
			if res.Status == queue.StatusFailed {
				if res.Err != nil {
					return fmt.Errorf("transcription failed: %w", res.Err)
				}
				return errors.New("transcription failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stem, "stem", "", "Instrument stem (vocals, bass, drums, other, piano)")
	cmd.Flags().StringVar(&jobID, "job-id", "", "Job identifier; a UUID is generated when empty")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory root (defaults to paths.output_dir)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func newTranscribeOutput(res *pipeline.Result) transcribeOutput {
	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}
	return transcribeOutput{
		JobID:        res.JobID,
		Input:        res.InputPath,
		Stem:         res.Stem,
		Status:       string(res.Status),
		Notes:        res.NoteCount(),
		Strategy:     res.Strategy,
		Encoder:      res.Encoder,
		Key:          res.Key,
		MIDIPath:     res.MIDIPath,
		MusicXMLPath: res.MusicXMLPath,
		Errors:       errs,
		ElapsedMS:    res.Duration().Milliseconds(),
	}
}

func printTranscribeResult(cmd *cobra.Command, out transcribeOutput) {
	w := cmd.OutOrStdout()
	colorize := shouldColorize(w)
	for _, line := range renderSectionHeader("Transcription "+out.JobID, colorize) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, renderStatusLine("Status", jobStatusKind(queue.Status(out.Status)), out.Status, colorize))
	fmt.Fprintln(w, renderStatusLine("Input", statusInfo, out.Input, colorize))
	fmt.Fprintln(w, renderStatusLine("Stem", statusInfo, out.Stem, colorize))
	fmt.Fprintln(w, renderStatusLine("Notes", statusInfo, fmt.Sprintf("%d (%s)", out.Notes, fallback(out.Strategy, "none")), colorize))
	if out.Key != "" {
		fmt.Fprintln(w, renderStatusLine("Key", statusInfo, out.Key, colorize))
	}
	fmt.Fprintln(w, artifactLine("MIDI", out.MIDIPath, colorize))
	fmt.Fprintln(w, artifactLine("MusicXML", out.MusicXMLPath, colorize))
	fmt.Fprintln(w, renderStatusLine("Elapsed", statusInfo, (time.Duration(out.ElapsedMS)*time.Millisecond).String(), colorize))
	for _, msg := range out.Errors {
		fmt.Fprintln(w, renderStatusLine("Error", statusWarn, msg, colorize))
	}
}

func artifactLine(label, path string, colorize bool) string {
	if path == "" {
		return renderStatusLine(label, statusWarn, "not written", colorize)
	}
	return renderStatusLine(label, statusOK, path, colorize)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
