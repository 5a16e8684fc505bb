// Package textutil provides naming helpers shared by the pipeline, workflow
// and HTTP layers.
//
// The primary use cases are:
//   - Slugs for per-job log file names
//   - Lowercase tokens for instrument stems used in artifact paths
//   - Filesystem-safe display names for uploads and downloads
//   - Title casing for score headers
package textutil
