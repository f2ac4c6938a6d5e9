// Package media stores binary blobs (decoded frame bytes) content-addressed
// by SHA-256, using atomic temp-write-then-rename writes so a crash mid-write
// never leaves a torn blob behind.
package media
