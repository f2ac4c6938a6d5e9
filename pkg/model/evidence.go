package model

import "time"

// ContainerRef describes the optional container a capture segment's bytes
// are wrapped in, when the segment is not itself a single decoded frame.
type ContainerRef struct {
	Type string `json:"type"` // "zip", "avi_mjpeg", "ffmpeg_mp4", ""
}

// EvidenceCaptureSegment is an externally-produced, append-only capture
// record: one run's worth of screen/window/input evidence. The idle
// processor reads these; it never writes or mutates them.
type EvidenceCaptureSegment struct {
	RecordID    string        `json:"record_id"`
	RunID       string        `json:"run_id"`
	TSUTC       time.Time     `json:"ts_utc"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	ContentHash string        `json:"content_hash"` // SHA-256 of media bytes
	ContentType string        `json:"content_type"`
	Container   *ContainerRef `json:"container,omitempty"`

	// PrivacyExcluded, when truthy, causes the idle processor to skip this
	// record entirely without treating the skip as an error.
	PrivacyExcluded bool `json:"privacy_excluded,omitempty"`
}

// EvidenceCaptureFrame is a single decoded image derived from a capture
// segment (or captured directly as a single frame). FrameIndex addresses
// the frame within a multi-frame segment container.
type EvidenceCaptureFrame struct {
	RecordID    string        `json:"record_id"`
	RunID       string        `json:"run_id"`
	TSUTC       time.Time     `json:"ts_utc"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	ContentHash string        `json:"content_hash"`
	ContentType string        `json:"content_type"`
	Container   *ContainerRef `json:"container,omitempty"`

	SourceID   string `json:"source_id"` // parent segment record id
	FrameIndex int    `json:"frame_index"`
	MediaID    string `json:"media_id"` // media store blob id for the decoded bytes

	PrivacyExcluded bool `json:"privacy_excluded,omitempty"`

	// PayloadHash is computed over every other field, letting a reader
	// detect a corrupted or hand-edited frame record.
	PayloadHash string `json:"payload_hash,omitempty"`
}
