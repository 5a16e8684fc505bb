package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateMIDI(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.UploadDir) == "" {
		return errors.New("paths.upload_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.MaxUploadMB <= 0 {
		return errors.New("api.max_upload_mb must be positive")
	}
	return nil
}

func (c *Config) validateAudio() error {
	if err := ensurePositiveMap(map[string]int{
		"audio.sample_rate":  c.Audio.SampleRate,
		"audio.frame_length": c.Audio.FrameLength,
		"audio.hop_length":   c.Audio.HopLength,
	}); err != nil {
		return err
	}
	if c.Audio.HopLength > c.Audio.FrameLength {
		return errors.New("audio.hop_length must not exceed audio.frame_length")
	}
	if c.Audio.FMinHz <= 0 || c.Audio.FMaxHz <= c.Audio.FMinHz {
		return errors.New("audio.fmin_hz must be positive and below audio.fmax_hz")
	}
	if c.Audio.FMaxHz >= float64(c.Audio.SampleRate)/2 {
		return errors.New("audio.fmax_hz must be below the Nyquist frequency of audio.sample_rate")
	}
	if c.Audio.VoicingThreshold < 0 || c.Audio.VoicingThreshold > 1 {
		return errors.New("audio.voicing_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	if t.MinNoteSeconds <= 0 {
		return errors.New("transcription.min_note_seconds must be positive")
	}
	if t.FallbackMinNoteSeconds <= 0 {
		return errors.New("transcription.fallback_min_note_seconds must be positive")
	}
	if t.FallbackMaxNoteSeconds < t.FallbackMinNoteSeconds {
		return errors.New("transcription.fallback_max_note_seconds must be >= fallback_min_note_seconds")
	}
	return nil
}

func (c *Config) validateMIDI() error {
	if c.MIDI.TempoBPM <= 0 || math.IsNaN(c.MIDI.TempoBPM) {
		return errors.New("midi.tempo_bpm must be positive")
	}
	if c.MIDI.TicksPerBeat <= 0 || c.MIDI.TicksPerBeat > 0x7FFF {
		return errors.New("midi.ticks_per_beat must be between 1 and 32767")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":             c.Workflow.Workers,
		"workflow.queue_poll_interval": c.Workflow.QueuePollInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	if c.Workflow.JobTimeoutSeconds < 0 {
		return errors.New("workflow.job_timeout_seconds must be >= 0")
	}
	if c.Workflow.RetentionHours < 0 {
		return errors.New("workflow.retention_hours must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
