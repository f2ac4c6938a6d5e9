package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/localtrace/statetape/pkg/contracts"
	"github.com/localtrace/statetape/pkg/hashing"
	"github.com/localtrace/statetape/pkg/model"
)

// Config configures the SQLite-backed state-tape store.
type Config struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns caps the connection pool; defaults to 10.
	MaxOpenConns int

	// BusyTimeout is how long SQLite waits on a locked database before
	// giving up; defaults to 5s.
	BusyTimeout time.Duration

	// Synchronous is the PRAGMA synchronous value applied on open:
	// "OFF" | "NORMAL" | "FULL" | "EXTRA". Empty selects "NORMAL". It is
	// set on its own and is not derived from the media fsync policy.
	Synchronous string
}

// DefaultConfig returns the store's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Path:         "state/state_tape.db",
		MaxOpenConns: 10,
		BusyTimeout:  5 * time.Second,
		Synchronous:  "NORMAL",
	}
}

// SQLiteStore is the production Store backend: an embedded relational
// store with insert-only span/edge/evidence-link tables.
type SQLiteStore struct {
	db     *sql.DB
	config *Config
	mu     sync.RWMutex
	logger *slog.Logger
}

// Open opens (or creates) the state-tape database at config.Path. If
// the existing file fails to load as a valid store, its bytes are
// copied into a corrupt/ archive with a recovery marker, the file is
// then removed from the original path, and a fresh store is created
// there. If archiving fails, the original file is left in place.
func Open(config *Config, logger *slog.Logger) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "statetape.store.sqlite")

	store, err := openAndInit(config, logger)
	if err == nil {
		return store, nil
	}

	if config.Path == ":memory:" {
		return nil, err
	}

	logger.Warn("state-tape database failed to load, archiving and recovering", "path", config.Path, "error", err)
	if archErr := archiveCorrupt(config.Path); archErr != nil {
		return nil, fmt.Errorf("store: archive corrupt database: %w (original error: %v)", archErr, err)
	}

	store, err2 := openAndInit(config, logger)
	if err2 != nil {
		return nil, &CorruptStoreError{Path: config.Path, Cause: err2}
	}
	return store, nil
}

func openAndInit(config *Config, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, newStoreError("open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStore{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	sync := s.config.Synchronous
	if sync == "" {
		sync = "NORMAL"
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA synchronous=%s;", sync)); err != nil {
		return newStoreError("set_synchronous", err)
	}

	busyMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyMs)); err != nil {
		return newStoreError("set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return newStoreError("create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return newStoreError("insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return newStoreError("get_schema_version", err)
	}
	if version != SchemaVersion {
		return newStoreError("schema_version_mismatch", fmt.Errorf("expected %d, got %d", SchemaVersion, version))
	}
	return nil
}

func archiveCorrupt(path string) error {
	dir := filepath.Dir(path)
	corruptDir := filepath.Join(dir, "corrupt")
	if err := os.MkdirAll(corruptDir, 0o755); err != nil {
		return err
	}

	ts := time.Now().UTC().Format("20060102T150405Z")
	archivePath := filepath.Join(corruptDir, fmt.Sprintf("%s.%s.corrupt", filepath.Base(path), ts))

	data, readErr := os.ReadFile(path)
	if readErr != nil && !os.IsNotExist(readErr) {
		return readErr
	}
	if readErr == nil {
		if err := os.WriteFile(archivePath, data, 0o644); err != nil {
			return err
		}
	}

	marker := map[string]any{
		"original_path": path,
		"archived_path": archivePath,
		"archived_at":   time.Now().UTC().Format(time.RFC3339),
	}
	markerJSON, _ := json.MarshalIndent(marker, "", "  ")
	if err := os.WriteFile(archivePath+".recovery.json", markerJSON, 0o644); err != nil {
		return err
	}

	// Remove the original so a fresh store can be created at the same
	// path; the bytes themselves survive in the archive above.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return newStoreError("close", err)
	}
	return nil
}

// InsertBatch persists spans and edges in a single transaction, plus
// the evidence-link rows they carry. Each row is validated before
// insertion; unique-key collisions are treated as success (insert-only
// semantics), not errors. The transaction commits on success and rolls
// back on any other failure.
func (s *SQLiteStore) InsertBatch(ctx context.Context, spans []model.StateSpan, edges []model.StateEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return newStoreError("begin_tx", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	for _, span := range spans {
		if err := contracts.ValidateSpan(span); err != nil {
			return err
		}
		if err := insertSpan(ctx, tx, span); err != nil {
			return err
		}
		if err := insertEvidenceLinks(ctx, tx, "state_span", span.StateID, span.Evidence); err != nil {
			return err
		}
	}

	for _, edge := range edges {
		if err := contracts.ValidateEdge(edge); err != nil {
			return err
		}
		if err := insertEdge(ctx, tx, edge); err != nil {
			return err
		}
		if err := insertEvidenceLinks(ctx, tx, "state_edge", edge.EdgeID, edge.Evidence); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return newStoreError("commit", err)
	}
	committed = true
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

func insertSpan(ctx context.Context, tx *sql.Tx, span model.StateSpan) error {
	embeddingBytes, err := base64.StdEncoding.DecodeString(span.ZEmbedding.Blob)
	if err != nil {
		return newStoreError("decode_embedding", err)
	}
	topEntitiesJSON, err := json.Marshal(span.SummaryFeatures.TopEntities)
	if err != nil {
		return newStoreError("marshal_top_entities", err)
	}
	provenanceJSON, err := json.Marshal(span.Provenance)
	if err != nil {
		return newStoreError("marshal_provenance", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO state_span (
			state_id, session_id, ts_start_ms, ts_end_ms,
			z_embedding, z_dim, z_dtype, app, window_title_hash,
			top_entities_json, provenance_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		span.StateID, span.SessionID, span.TSStartMs, span.TSEndMs,
		embeddingBytes, span.ZEmbedding.Dim, span.ZEmbedding.Dtype,
		span.SummaryFeatures.App, span.SummaryFeatures.WindowTitleHash,
		string(topEntitiesJSON), string(provenanceJSON),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return newStoreError("insert_span", err)
	}
	return nil
}

func insertEdge(ctx context.Context, tx *sql.Tx, edge model.StateEdge) error {
	deltaBytes, err := base64.StdEncoding.DecodeString(edge.DeltaEmbedding.Blob)
	if err != nil {
		return newStoreError("decode_delta_embedding", err)
	}
	provenanceJSON, err := json.Marshal(edge.Provenance)
	if err != nil {
		return newStoreError("marshal_provenance", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO state_edge (
			edge_id, from_state_id, to_state_id,
			delta_embedding, delta_dim, delta_dtype, pred_error, provenance_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		edge.EdgeID, edge.FromStateID, edge.ToStateID,
		deltaBytes, edge.DeltaEmbedding.Dim, edge.DeltaEmbedding.Dtype,
		edge.PredError, string(provenanceJSON),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return newStoreError("insert_edge", err)
	}
	return nil
}

func insertEvidenceLinks(ctx context.Context, tx *sql.Tx, objType, objID string, refs []model.EvidenceRef) error {
	for _, ref := range refs {
		id := hashing.HashBytes([]byte(fmt.Sprintf("%s:%s:%s:%d:%d", objType, objID, ref.MediaID, ref.TSStartMs, ref.TSEndMs)))
		refJSON, err := json.Marshal(ref)
		if err != nil {
			return newStoreError("marshal_evidence_ref", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO state_evidence_link (id, state_object_type, state_object_id, evidence_json)
			VALUES (?, ?, ?, ?)`,
			id, objType, objID, string(refJSON),
		)
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return newStoreError("insert_evidence_link", err)
		}
	}
	return nil
}

// GetSpans returns spans matching the given filters, bounded by limit.
// limit must be positive: the hot retrieval path never allows an
// unbounded enumeration.
func (s *SQLiteStore) GetSpans(ctx context.Context, sessionID string, startMs, endMs int64, app string, limit int) ([]model.StateSpan, error) {
	if limit <= 0 {
		return nil, newStoreError("get_spans", fmt.Errorf("limit must be positive, got %d", limit))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var conditions []string
	var args []any

	if sessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, sessionID)
	}
	if startMs > 0 {
		conditions = append(conditions, "ts_end_ms >= ?")
		args = append(args, startMs)
	}
	if endMs > 0 {
		conditions = append(conditions, "ts_start_ms <= ?")
		args = append(args, endMs)
	}
	if app != "" {
		conditions = append(conditions, "app = ?")
		args = append(args, app)
	}

	query := "SELECT state_id, session_id, ts_start_ms, ts_end_ms, z_embedding, z_dim, z_dtype, app, window_title_hash, top_entities_json, provenance_json FROM state_span"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY ts_start_ms ASC, state_id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newStoreError("get_spans", err)
	}
	defer rows.Close()

	var spans []model.StateSpan
	for rows.Next() {
		span, err := scanSpan(rows)
		if err != nil {
			return nil, newStoreError("scan_span", err)
		}
		spans = append(spans, span)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError("get_spans", err)
	}
	return spans, nil
}

// GetSpansByID returns the spans matching stateIDs, an IN (...) lookup
// bounded by the caller-supplied id set rather than by a row-count
// heuristic over an unrelated ordering.
func (s *SQLiteStore) GetSpansByID(ctx context.Context, stateIDs []string) ([]model.StateSpan, error) {
	if len(stateIDs) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := make([]string, len(stateIDs))
	args := make([]any, len(stateIDs))
	for i, id := range stateIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	query := fmt.Sprintf(`
		SELECT state_id, session_id, ts_start_ms, ts_end_ms, z_embedding, z_dim, z_dtype, app, window_title_hash, top_entities_json, provenance_json
		FROM state_span
		WHERE state_id IN (%s)
		ORDER BY ts_start_ms ASC, state_id ASC`, inClause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newStoreError("get_spans_by_id", err)
	}
	defer rows.Close()

	var spans []model.StateSpan
	for rows.Next() {
		span, err := scanSpan(rows)
		if err != nil {
			return nil, newStoreError("scan_span", err)
		}
		spans = append(spans, span)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError("get_spans_by_id", err)
	}
	return spans, nil
}

// GetEdgesForStates returns every edge whose endpoint is one of
// stateIDs.
func (s *SQLiteStore) GetEdgesForStates(ctx context.Context, stateIDs []string) ([]model.StateEdge, error) {
	if len(stateIDs) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := make([]string, len(stateIDs))
	args := make([]any, 0, len(stateIDs)*2)
	for i, id := range stateIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	for _, id := range stateIDs {
		args = append(args, id)
	}
	inClause := strings.Join(placeholders, ",")

	query := fmt.Sprintf(`
		SELECT edge_id, from_state_id, to_state_id, delta_embedding, delta_dim, delta_dtype, pred_error, provenance_json
		FROM state_edge
		WHERE from_state_id IN (%s) OR to_state_id IN (%s)
		ORDER BY from_state_id ASC, to_state_id ASC`, inClause, inClause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newStoreError("get_edges_for_states", err)
	}
	defer rows.Close()

	var edges []model.StateEdge
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, newStoreError("scan_edge", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError("get_edges_for_states", err)
	}
	return edges, nil
}

func scanSpan(rows *sql.Rows) (model.StateSpan, error) {
	var span model.StateSpan
	var embeddingBytes []byte
	var topEntitiesJSON, provenanceJSON string
	var app, windowTitleHash sql.NullString

	err := rows.Scan(
		&span.StateID, &span.SessionID, &span.TSStartMs, &span.TSEndMs,
		&embeddingBytes, &span.ZEmbedding.Dim, &span.ZEmbedding.Dtype,
		&app, &windowTitleHash, &topEntitiesJSON, &provenanceJSON,
	)
	if err != nil {
		return span, err
	}
	span.ZEmbedding.Blob = base64.StdEncoding.EncodeToString(embeddingBytes)
	span.SummaryFeatures.App = app.String
	span.SummaryFeatures.WindowTitleHash = windowTitleHash.String
	if topEntitiesJSON != "" {
		json.Unmarshal([]byte(topEntitiesJSON), &span.SummaryFeatures.TopEntities)
	}
	if provenanceJSON != "" {
		json.Unmarshal([]byte(provenanceJSON), &span.Provenance)
	}
	return span, nil
}

func scanEdge(rows *sql.Rows) (model.StateEdge, error) {
	var edge model.StateEdge
	var deltaBytes []byte
	var provenanceJSON string

	err := rows.Scan(
		&edge.EdgeID, &edge.FromStateID, &edge.ToStateID,
		&deltaBytes, &edge.DeltaEmbedding.Dim, &edge.DeltaEmbedding.Dtype,
		&edge.PredError, &provenanceJSON,
	)
	if err != nil {
		return edge, err
	}
	edge.DeltaEmbedding.Blob = base64.StdEncoding.EncodeToString(deltaBytes)
	if provenanceJSON != "" {
		json.Unmarshal([]byte(provenanceJSON), &edge.Provenance)
	}
	return edge, nil
}

// SnapshotMarker summarizes the store's current state so the vector
// index can detect drift without re-reading every row.
type SnapshotMarker struct {
	SpanCount           int64  `json:"span_count"`
	MaxTSEndMs          int64  `json:"max_ts_end_ms"`
	LatestStateID       string `json:"latest_state_id"`
	LatestEmbeddingHash string `json:"latest_embedding_hash"`
	LatestModelVersion  string `json:"latest_model_version"`
}

// GetSnapshotMarker computes the current snapshot marker.
func (s *SQLiteStore) GetSnapshotMarker(ctx context.Context) (SnapshotMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var marker SnapshotMarker
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(MAX(ts_end_ms), 0) FROM state_span").
		Scan(&marker.SpanCount, &marker.MaxTSEndMs)
	if err != nil {
		return marker, newStoreError("snapshot_marker", err)
	}
	if marker.SpanCount == 0 {
		return marker, nil
	}

	var embeddingBytes []byte
	var provenanceJSON string
	err = s.db.QueryRowContext(ctx, `
		SELECT state_id, z_embedding, provenance_json
		FROM state_span
		ORDER BY ts_end_ms DESC, state_id DESC LIMIT 1`).
		Scan(&marker.LatestStateID, &embeddingBytes, &provenanceJSON)
	if err != nil {
		return marker, newStoreError("snapshot_marker_latest", err)
	}
	marker.LatestEmbeddingHash = hashing.HashBytes(embeddingBytes)

	var provenance model.ProvenanceRecord
	if provenanceJSON != "" {
		json.Unmarshal([]byte(provenanceJSON), &provenance)
	}
	marker.LatestModelVersion = provenance.ModelVersion

	return marker, nil
}
