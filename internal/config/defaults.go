package config

const (
	defaultConfigPath                = "~/.config/soundsketch/config.toml"
	defaultUploadDir                 = "~/.local/share/soundsketch/uploads"
	defaultOutputDir                 = "~/.local/share/soundsketch/outputs"
	defaultStateDir                  = "~/.local/share/soundsketch/state"
	defaultLogDir                    = "~/.local/share/soundsketch/logs"
	defaultAPIBind                   = "127.0.0.1:8000"
	defaultMaxUploadMB               = 100
	defaultSampleRate                = 22050
	defaultFrameLength               = 2048
	defaultHopLength                 = 512
	defaultFMinHz                    = 65.40639132514966 // C2
	defaultFMaxHz                    = 2093.004522404789 // C7
	defaultVoicingThreshold          = 0.75
	defaultFFmpegBinary              = "ffmpeg"
	defaultStem                      = "audio"
	defaultMinNoteSeconds            = 0.05
	defaultFallbackMinNoteSeconds    = 0.1
	defaultFallbackMaxNoteSeconds    = 4.0
	defaultTempoBPM                  = 120
	defaultTicksPerBeat              = 480
	defaultWorkflowWorkers           = 2
	defaultWorkflowPollInterval      = 2
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultJobTimeoutSeconds         = 600
	defaultRetentionHours            = 24
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
)

var (
	defaultCORSOrigins       = []string{"http://localhost:3000", "http://localhost:3001"}
	defaultAllowedExtensions = []string{".mp3", ".wav", ".flac", ".m4a", ".ogg"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir: defaultUploadDir,
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		API: API{
			CORSOrigins:       append([]string(nil), defaultCORSOrigins...),
			MaxUploadMB:       defaultMaxUploadMB,
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
		},
		Audio: Audio{
			SampleRate:       defaultSampleRate,
			FrameLength:      defaultFrameLength,
			HopLength:        defaultHopLength,
			FMinHz:           defaultFMinHz,
			FMaxHz:           defaultFMaxHz,
			VoicingThreshold: defaultVoicingThreshold,
			FFmpegBinary:     defaultFFmpegBinary,
		},
		Transcription: Transcription{
			DefaultStem:            defaultStem,
			MinNoteSeconds:         defaultMinNoteSeconds,
			FallbackMinNoteSeconds: defaultFallbackMinNoteSeconds,
			FallbackMaxNoteSeconds: defaultFallbackMaxNoteSeconds,
		},
		MIDI: MIDI{
			TempoBPM:     defaultTempoBPM,
			TicksPerBeat: defaultTicksPerBeat,
		},
		Workflow: Workflow{
			Workers:           defaultWorkflowWorkers,
			QueuePollInterval: defaultWorkflowPollInterval,
			HeartbeatInterval: defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:  defaultWorkflowHeartbeatTimeout,
			JobTimeoutSeconds: defaultJobTimeoutSeconds,
			RetentionHours:    defaultRetentionHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
