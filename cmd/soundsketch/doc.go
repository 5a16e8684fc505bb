// Package main hosts the SoundSketch CLI entrypoint and command graph.
//
// The Cobra-based command tree runs one-shot transcriptions, starts the HTTP
// daemon, inspects and prunes the job store directly, and scaffolds
// configuration. Configuration is resolved once per invocation so
// subcommands can focus on presentation instead of wiring.
//
// Keep this package lean: new behavior belongs in the internal packages
// first and is surfaced here through dedicated commands or flags.
package main
