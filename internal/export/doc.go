// Package export renders conversation transcripts for download.
//
// Two formats: Markdown (one heading per turn) and a standalone HTML page
// with each message body converted through goldmark.
package export
