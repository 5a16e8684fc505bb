package deps

import "strings"

// FFmpegRequirement describes the optional transcoder used as the last decode
// fallback. Without it, WAV, FLAC, MP3 and Ogg Vorbis still decode natively.
func FFmpegRequirement(binary string) Requirement {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return Requirement{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Decodes formats without a native decoder (m4a, aac, ...)",
		Optional:    true,
	}
}

// CheckFFmpeg reports whether the configured FFmpeg binary can be executed.
func CheckFFmpeg(binary string) Status {
	return CheckBinaries([]Requirement{FFmpegRequirement(binary)})[0]
}
