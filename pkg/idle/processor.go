package idle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/localtrace/statetape/pkg/capability"
	"github.com/localtrace/statetape/pkg/hashing"
	"github.com/localtrace/statetape/pkg/model"
	"github.com/localtrace/statetape/pkg/statetape/builder"
	"github.com/localtrace/statetape/pkg/store/media"
	"github.com/localtrace/statetape/pkg/store/metadata"
)

// Capture-evidence records use two distinct key grammars depending on
// how they entered the store: segments are keyed "{run_id}/segment/{n}",
// directly-captured single frames "{run_id}/evidence.capture.frame/{n}".
// Both carry a "type" beginning with "evidence.capture." in their
// payload; enumerating the sweep means merging both key spaces.
func segmentPrefix(runID string) string { return runID + "/segment/" }
func frameCapturePrefix(runID string) string { return runID + "/evidence.capture.frame/" }

// sstStatePrefix holds derived structured-screen-state records awaiting
// a State Tape Builder pass, keyed "derived.sst.state/{run_id}/{state_id}".
const sstStatePrefix = "derived.sst.state/"

// enumerateEvidence returns every evidence key for runID, ASCII-sorted
// across both the segment and directly-captured-frame key spaces.
func enumerateEvidence(store metadata.Store, runID string) ([]string, error) {
	segKeys, err := store.Keys(segmentPrefix(runID))
	if err != nil {
		return nil, err
	}
	frameKeys, err := store.Keys(frameCapturePrefix(runID))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(segKeys)+len(frameKeys))
	keys = append(keys, segKeys...)
	keys = append(keys, frameKeys...)
	sort.Strings(keys)
	return keys, nil
}

// storedEvidence is the on-disk envelope for one evidence record.
type storedEvidence struct {
	RecordID string                       `json:"record_id"`
	Kind     string                       `json:"kind"` // "segment" | "frame"
	Segment  *model.EvidenceCaptureSegment `json:"segment,omitempty"`
	Frame    *model.EvidenceCaptureFrame   `json:"frame,omitempty"`
}

// SpanEdgeInserter is the subset of the append-only state store the
// processor needs to persist state-tape output.
type SpanEdgeInserter interface {
	InsertBatch(ctx context.Context, spans []model.StateSpan, edges []model.StateEdge) error
}

// SSTExtractor is the optional heavy structured-state pipeline
// capability. When a provider is configured, the idle processor
// delegates frame → DerivedSSTState construction to it instead of
// synthesizing a state from raw OCR tokens.
type SSTExtractor interface {
	ExtractState(frameBytes []byte) (model.DerivedSSTState, error)
}

// Processor drives one run's idle-time derivation sweep.
type Processor struct {
	RunID    string
	Metadata metadata.Store
	Media    media.Store
	Frames   *FrameMaterializer

	OCRProviders []capability.Pair
	VLMProviders []capability.Pair
	SSTProviders []capability.Pair

	Builder      *builder.Builder
	StateStore   SpanEdgeInserter
	ModelVersion string
	ConfigHash   string
	// SessionOf maps an evidence source id to the session id the State
	// Tape Builder should group it under. Defaults to RunID.
	SessionOf func(sourceID string) string

	Config Config
	Logger *slog.Logger
}

// ShouldAbort reports whether the caller wants the current step to stop
// early, checked at every suspension point.
type ShouldAbort func() bool

// ProcessStep fires one bounded sweep: load the checkpoint, walk
// evidence in ASCII id order until budget_ms/max_seconds_per_run
// elapses or shouldAbort fires, and optionally persist progress.
func (p *Processor) ProcessStep(ctx context.Context, shouldAbort ShouldAbort, budgetMs int64, persistCheckpoint bool) (bool, Stats, error) {
	stats := newStats()
	if p.Metadata == nil || p.Media == nil {
		return true, stats, nil
	}
	if shouldAbort == nil {
		shouldAbort = func() bool { return false }
	}
	logger := p.logger()

	deadline := p.deadline(budgetMs)

	keys, err := enumerateEvidence(p.Metadata, p.RunID)
	if err != nil {
		return false, stats, fmt.Errorf("idle: enumerate evidence: %w", err)
	}

	checkpoint, hasCheckpoint, err := loadIdleCheckpoint(p.Metadata, p.RunID)
	if err != nil {
		return false, stats, fmt.Errorf("idle: load checkpoint: %w", err)
	}

	startIdx := 0
	if hasCheckpoint && checkpoint.LastRecordID != "" {
		for i, k := range keys {
			if k <= checkpoint.LastRecordID {
				startIdx = i + 1
			}
		}
	}

	expired := false
	lastRecordID := checkpoint.LastRecordID
	processedTotal := checkpoint.ProcessedTotal

	for _, key := range keys[startIdx:] {
		if shouldAbort() || time.Now().After(deadline) {
			expired = true
			break
		}
		stats.Scanned++

		raw, err := p.Metadata.Get(key)
		if err != nil {
			stats.Errors++
			lastRecordID = key
			continue
		}
		var evidence storedEvidence
		if err := json.Unmarshal(raw, &evidence); err != nil {
			stats.Errors++
			lastRecordID = key
			continue
		}

		if err := p.processEvidence(evidence, &stats); err != nil {
			logger.Warn("evidence processing failed", "record_id", key, "error", err)
			stats.Errors++
		}

		lastRecordID = key
		processedTotal++
		if p.Config.MaxItemsPerRun > 0 && stats.Processed >= p.Config.MaxItemsPerRun {
			break
		}
	}

	allVisited := !expired && lastRecordID == lastKey(keys)

	stateDone := true
	if p.Config.StateLayerEnabled && !expired && p.Builder != nil && p.StateStore != nil {
		combinedAbort := func() bool { return shouldAbort() || time.Now().After(deadline) }
		done, sdStats, err := p.runStateTapeStep(ctx, combinedAbort)
		if err != nil {
			logger.Warn("state tape step failed", "error", err)
			stats.Errors++
		}
		stats.StateSpans += sdStats.StateSpans
		stats.StateEdges += sdStats.StateEdges
		stateDone = done
	}

	if persistCheckpoint {
		ck := model.IdleCheckpoint{
			RunID:          p.RunID,
			LastRecordID:   lastRecordID,
			ProcessedTotal: processedTotal,
			TSUTC:          time.Now().UTC(),
		}
		if err := saveIdleCheckpoint(p.Metadata, ck); err != nil {
			logger.Warn("checkpoint save failed", "error", err)
		}
	}

	done := !expired && allVisited && stateDone
	return done, stats, nil
}

// Process loops ProcessStep without checkpointing until done or abort.
func (p *Processor) Process(ctx context.Context, shouldAbort ShouldAbort) (Stats, error) {
	total := newStats()
	for {
		done, stats, err := p.ProcessStep(ctx, shouldAbort, 0, false)
		total.merge(stats)
		if err != nil {
			return total, err
		}
		if done {
			return total, nil
		}
		if shouldAbort != nil && shouldAbort() {
			return total, nil
		}
	}
}

func (p *Processor) deadline(budgetMs int64) time.Time {
	maxSeconds := p.Config.MaxSecondsPerRun
	var byMaxSeconds time.Time
	if maxSeconds > 0 {
		byMaxSeconds = time.Now().Add(time.Duration(maxSeconds) * time.Second)
	}
	if budgetMs <= 0 {
		if byMaxSeconds.IsZero() {
			return time.Now().Add(365 * 24 * time.Hour)
		}
		return byMaxSeconds
	}
	byBudget := time.Now().Add(time.Duration(budgetMs) * time.Millisecond)
	if byMaxSeconds.IsZero() || byBudget.Before(byMaxSeconds) {
		return byBudget
	}
	return byMaxSeconds
}

func lastKey(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	return keys[len(keys)-1]
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Processor) sessionFor(sourceID string) string {
	if p.SessionOf != nil {
		return p.SessionOf(sourceID)
	}
	return p.RunID
}

// processEvidence handles one evidence record: privacy check, frame
// materialization, OCR/VLM/SST extraction, and derivation-edge
// emission.
func (p *Processor) processEvidence(evidence storedEvidence, stats *Stats) error {
	privacyExcluded := false
	var sourceID, contentType string
	var width, height, frameIndex int
	var frameBytes []byte
	var err error
	var frameRecord *model.EvidenceCaptureFrame

	switch evidence.Kind {
	case "frame":
		f := evidence.Frame
		if f == nil {
			return fmt.Errorf("frame record missing payload")
		}
		frameRecord = f
		privacyExcluded = f.PrivacyExcluded
		sourceID = f.RecordID
		contentType, width, height, frameIndex = f.ContentType, f.Width, f.Height, f.FrameIndex
		if !privacyExcluded {
			frameBytes, err = p.Media.Get(f.MediaID)
		}
	case "segment":
		s := evidence.Segment
		if s == nil {
			return fmt.Errorf("segment record missing payload")
		}
		privacyExcluded = s.PrivacyExcluded
		sourceID = s.RecordID
		contentType, width, height = s.ContentType, s.Width, s.Height
		frameIndex = p.Config.SegmentFrameIndex
		if !privacyExcluded {
			frameBytes, err = p.materializeSegmentFrame(*s, frameIndex)
		}
	default:
		return fmt.Errorf("unknown evidence kind %q", evidence.Kind)
	}

	if privacyExcluded {
		stats.Skipped++
		return nil
	}
	if err != nil {
		stats.Errors++
		return err
	}

	frameRecordID := sourceID
	if evidence.Kind == "segment" && p.Config.EmitFrameEvidence {
		var freshFrame model.EvidenceCaptureFrame
		frameRecordID, freshFrame, err = p.ensureFrameRecord(sourceID, frameBytes, contentType, width, height, frameIndex)
		if err != nil {
			stats.Errors++
			return err
		}
		frameRecord = &freshFrame
	}

	stats.Processed++
	return p.extract(frameRecordID, frameBytes, frameRecord, stats)
}

func (p *Processor) materializeSegmentFrame(segment model.EvidenceCaptureSegment, frameIndex int) ([]byte, error) {
	segmentBytes, err := p.Media.Get(segment.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("idle: load segment media: %w", err)
	}
	return p.Frames.Materialize(segment, segmentBytes, frameIndex)
}

func (p *Processor) ensureFrameRecord(sourceID string, frameBytes []byte, contentType string, width, height, frameIndex int) (string, model.EvidenceCaptureFrame, error) {
	frameRecordID := encodedFrameKey(p.RunID, sourceID, frameIndex)
	key := frameRecordID
	if raw, err := p.Metadata.Get(key); err == nil {
		var existing storedEvidence
		if jsonErr := json.Unmarshal(raw, &existing); jsonErr == nil && existing.Frame != nil {
			return frameRecordID, *existing.Frame, nil
		}
	}

	mediaID, err := p.Media.Put(frameBytes)
	if err != nil {
		return "", model.EvidenceCaptureFrame{}, fmt.Errorf("idle: write frame media: %w", err)
	}

	frame := model.EvidenceCaptureFrame{
		RecordID:    frameRecordID,
		RunID:       p.RunID,
		TSUTC:       time.Now().UTC(),
		Width:       width,
		Height:      height,
		ContentHash: mediaID,
		ContentType: contentType,
		SourceID:    sourceID,
		FrameIndex:  frameIndex,
		MediaID:     mediaID,
	}
	frame.PayloadHash = payloadHashExceptSelf(frame)

	raw, err := json.Marshal(storedEvidence{RecordID: frameRecordID, Kind: "frame", Frame: &frame})
	if err != nil {
		return "", model.EvidenceCaptureFrame{}, err
	}
	if err := p.Metadata.PutNew(key, raw); err != nil && err != metadata.ErrKeyExists {
		return "", model.EvidenceCaptureFrame{}, fmt.Errorf("idle: persist frame record: %w", err)
	}
	return frameRecordID, frame, nil
}

func payloadHashExceptSelf(frame model.EvidenceCaptureFrame) string {
	frame.PayloadHash = ""
	sum, err := hashing.SHA256Sum(frame)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sum)
}

// extract runs every enabled OCR/VLM provider over frameBytes
// concurrently, writing a derived-text record and derivation edge per
// (kind, provider) pair whose target id is absent, then — when the
// state layer's heavy pipeline is enabled — builds and persists one
// DerivedSSTState for the frame.
func (p *Processor) extract(sourceID string, frameBytes []byte, frame *model.EvidenceCaptureFrame, stats *Stats) error {
	var mu sync.Mutex
	var ocrTokens []capability.OCRResult
	var group errgroup.Group

	if p.Config.EnableOCR {
		for _, pair := range p.OCRProviders {
			pair := pair
			extractor, ok := pair.Provider.(capability.OCRExtractor)
			if !ok {
				continue
			}
			group.Go(func() error {
				results, err := p.extractOCR(pair.ProviderID, sourceID, extractor, frameBytes, stats)
				if err != nil {
					return nil // extraction errors are counted, never fatal to the sweep
				}
				mu.Lock()
				if ocrTokens == nil {
					ocrTokens = results
				}
				mu.Unlock()
				return nil
			})
		}
	}

	if p.Config.EnableVLM {
		for _, pair := range p.VLMProviders {
			pair := pair
			extractor, ok := pair.Provider.(capability.VLMExtractor)
			if !ok {
				continue
			}
			group.Go(func() error {
				_, _ = p.extractVLM(pair.ProviderID, sourceID, extractor, frameBytes, stats)
				return nil
			})
		}
	}

	_ = group.Wait()

	if p.Config.SSTEnabled {
		if err := p.buildSSTState(sourceID, frameBytes, frame, ocrTokens, stats); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) extractOCR(providerID, sourceID string, extractor capability.OCRExtractor, frameBytes []byte, stats *Stats) ([]capability.OCRResult, error) {
	var captured []capability.OCRResult
	err := p.extractOne(model.DerivedTextKindOCR, providerID, sourceID, func() (string, error) {
		results, err := extractor.ExtractTokens(frameBytes)
		if err != nil {
			return "", err
		}
		captured = results
		return joinOCRText(results), nil
	}, stats)
	return captured, err
}

func (p *Processor) extractVLM(providerID, sourceID string, extractor capability.VLMExtractor, frameBytes []byte, stats *Stats) (string, error) {
	var text string
	err := p.extractOne(model.DerivedTextKindVLM, providerID, sourceID, func() (string, error) {
		result, err := extractor.Extract(frameBytes)
		if err != nil {
			return "", err
		}
		text = result.Text
		return result.Text, nil
	}, stats)
	return text, err
}

func (p *Processor) extractOne(kind, providerID, sourceID string, run func() (string, error), stats *Stats) error {
	derivedID := fmt.Sprintf("%s/%s/%s/%s", p.RunID, kind, encodeComponent(providerID), encodeComponent(sourceID))
	key := derivedID
	if _, err := p.Metadata.Get(key); err == nil {
		return nil
	}

	text, err := run()
	if err != nil {
		return err
	}

	record := model.DerivedTextRecord{
		RecordID:   derivedID,
		Kind:       kind,
		RunID:      p.RunID,
		TSUTC:      time.Now().UTC(),
		SourceID:   sourceID,
		ProviderID: providerID,
		Text:       text,
	}

	edgeID, err := hashing.DeterministicIDString(map[string]any{
		"kind":      "derivation_edge",
		"run_id":    p.RunID,
		"parent_id": sourceID,
		"child_id":  derivedID,
	})
	if err != nil {
		return err
	}
	record.DerivationEdgeID = edgeID

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := p.Metadata.PutNew(key, raw); err != nil && err != metadata.ErrKeyExists {
		return err
	}

	edge := model.DerivationEdge{
		EdgeID:   edgeID,
		ParentID: sourceID,
		ChildID:  derivedID,
		Relation: "derives",
		Method:   kind,
	}
	edgeRaw, err := json.Marshal(edge)
	if err != nil {
		return err
	}
	if err := p.Metadata.PutNew(edgeID, edgeRaw); err != nil && err != metadata.ErrKeyExists {
		return err
	}

	stats.OKByKind[kind]++
	return nil
}

// buildSSTState synthesizes (or, when an SST provider is configured,
// delegates) a DerivedSSTState for one frame and persists it for the
// State Tape Builder to pick up in the state-tape step.
func (p *Processor) buildSSTState(sourceID string, frameBytes []byte, frame *model.EvidenceCaptureFrame, ocrTokens []capability.OCRResult, stats *Stats) error {
	var state model.DerivedSSTState

	if len(p.SSTProviders) > 0 {
		if extractor, ok := p.SSTProviders[0].Provider.(SSTExtractor); ok {
			extracted, err := extractor.ExtractState(frameBytes)
			if err != nil {
				stats.Errors++
				return nil
			}
			state = extracted
			stats.OKByKind["sst"]++
		}
	}

	if state.StateID == "" {
		state = syntheticSSTState(sourceID, frame, ocrTokens)
	}
	if state.StateID == "" {
		stateID, err := hashing.DeterministicIDString(map[string]any{
			"kind":      "sst_state",
			"run_id":    p.RunID,
			"source_id": sourceID,
		})
		if err != nil {
			return err
		}
		state.StateID = stateID
	}
	if state.FrameID == "" {
		state.FrameID = sourceID
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	key := sstStatePrefix + p.RunID + "/" + state.StateID
	if err := p.Metadata.PutNew(key, raw); err != nil && err != metadata.ErrKeyExists {
		return fmt.Errorf("idle: persist sst state: %w", err)
	}
	return nil
}

func syntheticSSTState(sourceID string, frame *model.EvidenceCaptureFrame, ocrTokens []capability.OCRResult) model.DerivedSSTState {
	tokens := make([]model.Token, 0, len(ocrTokens))
	for i, r := range ocrTokens {
		tokens = append(tokens, model.Token{
			TokenID:    fmt.Sprintf("%s/token/%d", sourceID, i),
			Text:       r.Text,
			BBoxXYWH:   r.BBoxXYWH,
			Confidence: r.Confidence,
		})
	}

	state := model.DerivedSSTState{
		FrameID: sourceID,
		TSMs:    time.Now().UnixMilli(),
		Tokens:  tokens,
	}
	if frame != nil {
		state.Width = frame.Width
		state.Height = frame.Height
		state.ImageSHA256 = frame.ContentHash
		state.FrameIndex = frame.FrameIndex
		state.TSMs = frame.TSUTC.UnixMilli()
	}
	return state
}

// runStateTapeStep loads every derived structured state recorded so
// far for this run, groups it by session, and runs the State Tape
// Builder over each group. Insertion is idempotent (unique-key
// collisions are skipped by the store), so re-running over the full
// set on every step is safe; the checkpoint only tracks progress for
// reporting, not correctness.
func (p *Processor) runStateTapeStep(ctx context.Context, shouldAbort ShouldAbort) (bool, Stats, error) {
	stats := newStats()
	if p.Builder == nil || p.StateStore == nil {
		return true, stats, nil
	}

	prefix := sstStatePrefix + p.RunID + "/"
	keys, err := p.Metadata.Keys(prefix)
	if err != nil {
		return false, stats, fmt.Errorf("idle: enumerate sst states: %w", err)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return true, stats, nil
	}

	versionKey := model.VersionKey(p.ModelVersion, p.ConfigHash)
	checkpoint, _, err := loadStateTapeCheckpoint(p.Metadata, p.RunID, versionKey)
	if err != nil {
		return false, stats, fmt.Errorf("idle: load state tape checkpoint: %w", err)
	}

	bySession := make(map[string][]model.DerivedSSTState)
	for _, key := range keys {
		if shouldAbort() {
			return false, stats, nil
		}
		raw, err := p.Metadata.Get(key)
		if err != nil {
			stats.Errors++
			continue
		}
		var state model.DerivedSSTState
		if err := json.Unmarshal(raw, &state); err != nil {
			stats.Errors++
			continue
		}
		session := p.sessionFor(state.FrameID)
		bySession[session] = append(bySession[session], state)
	}

	sessions := make([]string, 0, len(bySession))
	for s := range bySession {
		sessions = append(sessions, s)
	}
	sort.Strings(sessions)

	for _, session := range sessions {
		if shouldAbort() {
			return false, stats, nil
		}
		result, err := p.Builder.Process(session, bySession[session])
		if err != nil {
			stats.Errors++
			continue
		}
		if err := p.StateStore.InsertBatch(ctx, result.Spans, result.Edges); err != nil {
			stats.Errors++
			continue
		}
		stats.StateSpans += len(result.Spans)
		stats.StateEdges += len(result.Edges)
	}

	ck := newStateTapeCheckpoint(p.RunID, keys[len(keys)-1], checkpoint.ProcessedTotal+len(keys), p.ModelVersion, p.ConfigHash)
	if err := saveStateTapeCheckpoint(p.Metadata, ck); err != nil {
		return false, stats, fmt.Errorf("idle: save state tape checkpoint: %w", err)
	}

	return true, stats, nil
}

func joinOCRText(results []capability.OCRResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		text := strings.TrimSpace(r.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
