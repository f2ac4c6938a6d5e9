package idle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/localtrace/statetape/pkg/model"
)

// ContainerDecoder decodes one indexed frame's raw bytes out of a
// multi-frame container. Implementations wrap an external video codec;
// none ship in this module since the retrieval pack carries no such
// library (see DESIGN.md).
type ContainerDecoder interface {
	DecodeFrame(containerBytes []byte, frameIndex int) ([]byte, error)
}

// FrameMaterializer turns a capture segment's raw bytes into the bytes
// of a single addressable frame.
type FrameMaterializer struct {
	MJPEGDecoder ContainerDecoder // avi_mjpeg, optional
	MP4Decoder   ContainerDecoder // ffmpeg_mp4, optional
}

// Materialize returns the bytes of frameIndex within segment's bytes.
// Single-frame (uncontained) segments pass through unchanged regardless
// of frameIndex.
func (m *FrameMaterializer) Materialize(segment model.EvidenceCaptureSegment, segmentBytes []byte, frameIndex int) ([]byte, error) {
	if segment.Container == nil || segment.Container.Type == "" {
		return segmentBytes, nil
	}

	switch segment.Container.Type {
	case "zip":
		return decodeZipFrame(segmentBytes, frameIndex)
	case "avi_mjpeg":
		if m.MJPEGDecoder == nil {
			return nil, fmt.Errorf("idle: no avi_mjpeg decoder configured")
		}
		return m.MJPEGDecoder.DecodeFrame(segmentBytes, frameIndex)
	case "ffmpeg_mp4":
		if m.MP4Decoder == nil {
			return nil, fmt.Errorf("idle: no ffmpeg_mp4 decoder configured")
		}
		return m.MP4Decoder.DecodeFrame(segmentBytes, frameIndex)
	default:
		return nil, fmt.Errorf("idle: unsupported container type %q", segment.Container.Type)
	}
}

// decodeZipFrame reads the frameIndex'th entry (sorted by name) out of
// a zip-contained segment.
func decodeZipFrame(segmentBytes []byte, frameIndex int) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(segmentBytes), int64(len(segmentBytes)))
	if err != nil {
		return nil, fmt.Errorf("idle: open zip container: %w", err)
	}

	files := make([]*zip.File, len(r.File))
	copy(files, r.File)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	if frameIndex < 0 || frameIndex >= len(files) {
		return nil, fmt.Errorf("idle: frame index %d out of range (%d entries)", frameIndex, len(files))
	}

	rc, err := files[frameIndex].Open()
	if err != nil {
		return nil, fmt.Errorf("idle: open zip entry: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("idle: read zip entry: %w", err)
	}
	return data, nil
}

// encodedFrameKey builds the deterministic record id for a
// segment-derived frame: {run}/frame/segment/{encoded_source}/{frame_index}.
func encodedFrameKey(runID, sourceID string, frameIndex int) string {
	return fmt.Sprintf("%s/frame/segment/%s/%d", runID, encodeComponent(sourceID), frameIndex)
}

// encodeComponent makes an id component filesystem/key safe by
// replacing path separators, mirroring how the capture pipeline encodes
// source ids into derived-record keys.
func encodeComponent(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' {
			out = append(out, '_')
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
