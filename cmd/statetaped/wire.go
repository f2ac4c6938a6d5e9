package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/localtrace/statetape/pkg/capability"
	"github.com/localtrace/statetape/pkg/config"
	"github.com/localtrace/statetape/pkg/evidencecompiler"
	"github.com/localtrace/statetape/pkg/hashing"
	"github.com/localtrace/statetape/pkg/idle"
	"github.com/localtrace/statetape/pkg/jepa"
	"github.com/localtrace/statetape/pkg/policygate"
	"github.com/localtrace/statetape/pkg/providers"
	"github.com/localtrace/statetape/pkg/retrieval"
	"github.com/localtrace/statetape/pkg/statetape/builder"
	"github.com/localtrace/statetape/pkg/statetape/store"
	"github.com/localtrace/statetape/pkg/statetape/vectorindex"
	"github.com/localtrace/statetape/pkg/store/media"
	"github.com/localtrace/statetape/pkg/store/metadata"
)

const (
	builderPluginID      = "statetape-builder"
	builderPluginVersion = "1.0.0"
	builderOutDim        = 768
	defaultNativeDim     = 384
)

// components bundles every store, registry, and service cmd/statetaped's
// subcommands wire together. Each subcommand opens its own components
// from the same configuration rather than talking to a running daemon
// over the network, matching the no-remote-streaming non-goal: this is
// a local tool operating on local state, not a client of a server.
type components struct {
	cfg *config.Config

	metadataStore metadata.Store
	mediaStore    media.Store
	stateStore    *store.SQLiteStore

	registry *capability.Registry

	builder      *builder.Builder
	index        *vectorindex.Index
	retrievalSvc *retrieval.Service
	lookup       *metadataTextLookup

	jepaStore    *jepa.Store
	configHash   string
	modelVersion string

	logger *slog.Logger
}

// wireComponents opens every on-disk store and service needed to run an
// idle sweep, build state-tape spans, or answer a retrieval query,
// wiring capability providers from cfg.Capability as pkg/providers HTTP
// adapters.
func wireComponents(cfg *config.Config, logger *slog.Logger) (*components, error) {
	config.ApplyDefaults(cfg)

	c := &components{cfg: cfg, logger: logger}

	dataDir := cfg.DataDir

	badgerStore, err := metadata.OpenBadgerStore(filepath.Join(dataDir, "state", "metadata"))
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	c.metadataStore = badgerStore

	mediaStore, err := media.NewFSStore(filepath.Join(dataDir, "state", "media"), media.FsyncNormal)
	if err != nil {
		badgerStore.Close()
		return nil, fmt.Errorf("open media store: %w", err)
	}
	c.mediaStore = mediaStore

	stateStoreCfg := store.DefaultConfig()
	stateStoreCfg.Path = filepath.Join(dataDir, "state", "state_tape.db")
	stateStore, err := store.Open(stateStoreCfg, logger)
	if err != nil {
		badgerStore.Close()
		return nil, fmt.Errorf("open state tape store: %w", err)
	}
	c.stateStore = stateStore

	c.registry = capability.NewRegistry()
	c.registry.Register("ocr", providerMap(cfg.Capability.OCR, newOCRProvider))
	c.registry.Register("vlm", providerMap(cfg.Capability.VLM, newVLMProvider))
	c.registry.Register("text_embedder", providerMap(cfg.Capability.TextEmbedder, newTextEmbedderProvider))

	configHash, err := hashing.HashCanonical(cfg.Processing.StateLayer)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("compute config hash: %w", err)
	}
	c.configHash = configHash

	embedder, nativeDim := resolveTextEmbedder(c.registry)

	c.jepaStore = jepa.NewStore(dataDir)
	c.jepaStore.SetArchiveDir(cfg.Processing.StateLayer.Training.Retention.ArchiveDir)
	modelVersion := ""
	var encoder builder.Encoder
	if cfg.Processing.StateLayer.Features.TrainingEnabled {
		model, err := c.jepaStore.LoadLatestApproved(configHash)
		if err != nil {
			logger.Warn("no approved encoder loaded, falling back to sign-projection", "error", err)
		} else {
			encoder = model
			modelVersion = model.ModelVersionOf()
		}
	}
	c.modelVersion = modelVersion

	builderCfg := builder.Config{
		WindowingMode:   builder.WindowingMode(cfg.Processing.StateLayer.WindowingMode),
		WindowMs:        cfg.Processing.StateLayer.WindowMs,
		MaxEvidenceRefs: cfg.Processing.StateLayer.MaxEvidenceRefs,
		Weights: builder.FeatureWeights{
			Text:   cfg.Processing.StateLayer.Builder.TextWeight,
			Vision: cfg.Processing.StateLayer.Builder.VisionWeight,
			Layout: cfg.Processing.StateLayer.Builder.LayoutWeight,
			Input:  cfg.Processing.StateLayer.Builder.InputWeight,
		},
		OutDim:        builderOutDim,
		ConfigHash:    configHash,
		PluginID:      builderPluginID,
		PluginVersion: builderPluginVersion,
		ModelID:       "sign-projection",
		ModelVersion:  modelVersion,
	}
	b := builder.New(builderCfg, embedder, nativeDim)
	b.Encoder = encoder
	c.builder = b

	c.index = vectorindex.New(cfg.Processing.StateLayer.Index.MaxCandidates)

	adapter := spanStoreAdapter{stateStore}
	c.retrievalSvc = &retrieval.Service{
		Store:    adapter,
		Index:    c.index,
		Embedder: embedder,
		Policy: policygate.Config{
			AllowRawMedia:   cfg.Processing.StateLayer.Policy.AllowRawMedia,
			AllowTextExport: cfg.Processing.StateLayer.Policy.AllowTextExport,
			RedactText:      cfg.Processing.StateLayer.Policy.RedactText,
			AppAllowlist:    cfg.Processing.StateLayer.Policy.AppAllowlist,
			AppDenylist:     cfg.Processing.StateLayer.Policy.AppDenylist,
		},
		Config: retrieval.Config{
			TopK:                 cfg.Processing.StateLayer.Index.TopK,
			MinScore:             cfg.Processing.StateLayer.Index.MinScore,
			LinearFallbackLimit:  cfg.Processing.StateLayer.Index.MaxCandidates,
			ModelVersionFallback: cfg.Processing.StateLayer.Training.FallbackEnabled,
			ConfigHash:           configHash,
			CurrentModelVersion:  modelVersion,
		},
	}

	c.lookup = newMetadataTextLookup(c.metadataStore)

	return c, nil
}

// Close releases every store this set of components opened.
func (c *components) Close() error {
	var firstErr error
	if c.stateStore != nil {
		if err := c.stateStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.metadataStore != nil {
		if err := c.metadataStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// idleProcessor builds an idle.Processor for runID over c's components.
func (c *components) idleProcessor(runID string) *idle.Processor {
	cfg := c.cfg
	return &idle.Processor{
		RunID:        runID,
		Metadata:     c.metadataStore,
		Media:        c.mediaStore,
		Frames:       &idle.FrameMaterializer{},
		OCRProviders: c.registry.Providers("ocr"),
		VLMProviders: c.registry.Providers("vlm"),
		SSTProviders: c.registry.Providers("sst"),
		Builder:      c.builder,
		StateStore:   c.stateStore,
		ModelVersion: c.modelVersion,
		ConfigHash:   c.configHash,
		Config: idle.Config{
			MaxItemsPerRun:    cfg.Processing.Idle.MaxItemsPerRun,
			MaxSecondsPerRun:  cfg.Processing.Idle.MaxSecondsPerRun,
			EnableOCR:         cfg.Processing.Idle.Extractors.OCR,
			EnableVLM:         cfg.Processing.Idle.Extractors.VLM,
			SSTEnabled:        cfg.Processing.SST.Enabled,
			StateLayerEnabled: cfg.Processing.StateLayer.Enabled,
			EmitFrameEvidence: cfg.Processing.StateLayer.EmitFrameEvidence,
			SegmentFrameIndex: cfg.Processing.StateLayer.SegmentFrameIndex,
			DefaultProviderID: "default",
		},
		Logger: c.logger,
	}
}

func providerMap[T any](cfgs map[string]config.ProviderConfig, build func(string, config.ProviderConfig) T) map[string]any {
	out := make(map[string]any, len(cfgs))
	for name, pc := range cfgs {
		out[name] = build(name, pc)
	}
	return out
}

func newOCRProvider(name string, pc config.ProviderConfig) capability.OCRExtractor {
	return providers.NewHTTPOCRProvider(toProviderConfig(name, pc))
}

func newVLMProvider(name string, pc config.ProviderConfig) capability.VLMExtractor {
	return providers.NewHTTPVLMProvider(toProviderConfig(name, pc))
}

func newTextEmbedderProvider(name string, pc config.ProviderConfig) capability.IdentifiableEmbedder {
	return providers.NewHTTPTextEmbedder(toProviderConfig(name, pc))
}

func toProviderConfig(name string, pc config.ProviderConfig) providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:       name,
		BaseURL:    pc.BaseURL,
		APIKey:     pc.APIKey,
		Timeout:    pc.Timeout,
		MaxRetries: pc.MaxRetries,
	}
}

// resolveTextEmbedder picks the lowest-id registered text embedder as
// the one used for state-tape pooling and query embedding (the builder
// and retrieval accept exactly one embedder; multiple registered
// providers are for A/B operator choice, not simultaneous use). Its
// native output dimension is discovered via Identity() when available,
// falling back to defaultNativeDim when no embedder is registered or it
// doesn't report one.
func resolveTextEmbedder(registry *capability.Registry) (capability.TextEmbedder, int) {
	pairs := registry.Providers("text_embedder")
	if len(pairs) == 0 {
		return nil, defaultNativeDim
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].ProviderID < pairs[j].ProviderID })
	embedder, ok := pairs[0].Provider.(capability.TextEmbedder)
	if !ok {
		return nil, defaultNativeDim
	}
	dim := defaultNativeDim
	if identifiable, ok := embedder.(capability.IdentifiableEmbedder); ok {
		if identity, err := identifiable.Identity(); err == nil && identity.Dims > 0 {
			dim = identity.Dims
		}
	}
	return embedder, dim
}

// spanStoreAdapter satisfies retrieval.SpanStore over *store.SQLiteStore,
// translating its store.SnapshotMarker into vectorindex.SnapshotMarker so
// the retrieval package has no import dependency on the concrete store.
type spanStoreAdapter struct {
	*store.SQLiteStore
}

func (a spanStoreAdapter) GetSnapshotMarker(ctx context.Context) (vectorindex.SnapshotMarker, error) {
	marker, err := a.SQLiteStore.GetSnapshotMarker(ctx)
	if err != nil {
		return vectorindex.SnapshotMarker{}, err
	}
	return vectorindex.SnapshotMarker{
		SpanCount:           marker.SpanCount,
		MaxTSEndMs:          marker.MaxTSEndMs,
		LatestStateID:       marker.LatestStateID,
		LatestEmbeddingHash: marker.LatestEmbeddingHash,
		LatestModelVersion:  marker.LatestModelVersion,
	}, nil
}

var _ evidencecompiler.StateTextLookup = (*metadataTextLookup)(nil)
