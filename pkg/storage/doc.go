// Package storage manages the downloads directory for record artifacts.
//
// The storage package handles:
//   - Creating and managing the downloads directory
//   - Saving record artifacts with atomic write operations
//   - Detecting already-downloaded records for resume
//   - Listing HTML artifacts that still need PDF conversion
//
// The Manager type is the primary interface. It maintains an in-memory
// index of saved records for fast duplicate detection and writes files
// atomically (temp file plus rename) so a crash mid-write never leaves
// a partial artifact behind.
package storage
