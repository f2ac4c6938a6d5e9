package jepa

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"

	"github.com/localtrace/statetape/pkg/hashing"
)

// Store manages the on-disk layout under state/models/jepa/: per
// (model_version, training_run_id) artifact directories, a shared
// signing key, and the approvals ledger.
type Store struct {
	root        string
	archiveRoot string
	signer      *Signer
	approvals   *ApprovalStore
}

// NewStore opens a Store rooted at dataDir/state/models/jepa.
func NewStore(dataDir string) *Store {
	root := filepath.Join(dataDir, "state", "models", "jepa")
	return &Store{
		root:        root,
		archiveRoot: filepath.Join(dataDir, "state", "models", "jepa_archive"),
		signer:      NewSigner(filepath.Join(root, "signing.key")),
		approvals:   NewApprovalStore(filepath.Join(root, "approvals.json")),
	}
}

// Approvals exposes the underlying approvals ledger for callers that
// need to approve, promote, or list directly.
func (s *Store) Approvals() *ApprovalStore { return s.approvals }

// SetArchiveDir overrides the default dataDir-derived archive root. A
// no-op when dir is empty, so callers can pass an unset config value
// through unconditionally.
func (s *Store) SetArchiveDir(dir string) {
	if dir != "" {
		s.archiveRoot = dir
	}
}

func (s *Store) modelDir(modelVersion, trainingRunID string) string {
	return filepath.Join(s.root, modelVersion, trainingRunID)
}

func (s *Store) archiveDir(modelVersion, trainingRunID string) string {
	return filepath.Join(s.archiveRoot, modelVersion, trainingRunID)
}

// SaveModel persists model.json, model.sig, and report.json for a newly
// trained model and returns the artifact directory.
func (s *Store) SaveModel(model *Model, report *TrainReport) (string, error) {
	model.quantize()
	dir := s.modelDir(model.ModelVersion, model.TrainingRunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("jepa: create model dir: %w", err)
	}

	reportBytes, err := hashing.CanonicalJSON(report)
	if err != nil {
		return "", fmt.Errorf("jepa: canonicalize report: %w", err)
	}
	model.ReportSHA256 = hashing.HashBytes(reportBytes)

	modelBytes, err := hashing.CanonicalJSON(model)
	if err != nil {
		return "", fmt.Errorf("jepa: canonicalize model: %w", err)
	}
	modelPath := filepath.Join(dir, "model.json")
	if err := renameio.WriteFile(modelPath, modelBytes, 0o644); err != nil {
		return "", fmt.Errorf("jepa: write model.json: %w", err)
	}
	reportPath := filepath.Join(dir, "report.json")
	if err := renameio.WriteFile(reportPath, reportBytes, 0o644); err != nil {
		return "", fmt.Errorf("jepa: write report.json: %w", err)
	}

	signature, err := s.signer.Sign(modelBytes)
	if err != nil {
		return "", fmt.Errorf("jepa: sign model: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(dir, "model.sig"), []byte(signature), 0o644); err != nil {
		return "", fmt.Errorf("jepa: write model.sig: %w", err)
	}
	return dir, nil
}

// LoadModel applies the full loading gate: signature verification,
// eval.ok, and approvals-list membership. It does not check
// config_hash; callers needing the fallback behavior on mismatch
// should use LoadLatestApproved.
func (s *Store) LoadModel(modelVersion, trainingRunID string) (*Model, error) {
	dir := s.resolveDir(modelVersion, trainingRunID)
	if dir == "" {
		return nil, ErrModelNotFound
	}

	modelPath := filepath.Join(dir, "model.json")
	modelBytes, err := os.ReadFile(modelPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("jepa: read model.json: %w", err)
	}

	sigPath := filepath.Join(dir, "model.sig")
	sigBytes, err := os.ReadFile(sigPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSignatureMissing
		}
		return nil, fmt.Errorf("jepa: read model.sig: %w", err)
	}

	var model Model
	if err := json.Unmarshal(modelBytes, &model); err != nil {
		return nil, fmt.Errorf("jepa: decode model.json: %w", err)
	}
	model.dequantize()

	if !model.EvalOK() {
		return nil, ErrEvalFailed
	}

	ok, err := s.signer.Verify(modelBytes, string(sigBytes))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSignatureMismatch
	}

	if !s.approvals.IsApproved(model.ModelVersion, model.TrainingRunID, string(sigBytes)) {
		return nil, ErrNotApproved
	}

	return &model, nil
}

// LoadLatestApproved loads the most recently approved model through
// LoadModel's gate and checks its config_hash against
// expectedConfigHash (skipped when expectedConfigHash is empty). Older
// approvals are not tried: it returns ErrModelNotFound when no approval
// exists, ErrConfigHashMismatch when the latest model's hash differs,
// and LoadModel's error when the gate rejects it; callers treat any of
// these as "use the fallback sign-projection path".
func (s *Store) LoadLatestApproved(expectedConfigHash string) (*Model, error) {
	latest := s.approvals.LatestApproved()
	if latest == nil {
		return nil, ErrModelNotFound
	}
	model, err := s.LoadModel(latest.ModelVersion, latest.TrainingRunID)
	if err != nil {
		return nil, err
	}
	if expectedConfigHash != "" && model.ConfigHash != expectedConfigHash {
		return nil, ErrConfigHashMismatch
	}
	return model, nil
}

// ApproveModel verifies a trained model's signature and eval, then
// records its approval, returning the signature recorded.
func (s *Store) ApproveModel(modelVersion, trainingRunID string, approvedTSMs int64) (string, error) {
	dir := s.modelDir(modelVersion, trainingRunID)
	modelPath := filepath.Join(dir, "model.json")
	modelBytes, err := os.ReadFile(modelPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrModelNotFound
		}
		return "", err
	}
	sigBytes, err := os.ReadFile(filepath.Join(dir, "model.sig"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrSignatureMissing
		}
		return "", err
	}

	var model Model
	if err := json.Unmarshal(modelBytes, &model); err != nil {
		return "", fmt.Errorf("jepa: decode model.json: %w", err)
	}
	if !model.EvalOK() {
		return "", ErrEvalFailed
	}

	signature := string(sigBytes)
	if err := s.approvals.Approve(modelVersion, trainingRunID, signature, approvedTSMs); err != nil {
		return "", err
	}
	return signature, nil
}

// ModelSummary is one entry in ListModels' output.
type ModelSummary struct {
	ModelVersion  string
	TrainingRunID string
	CreatedTSMs   int64
	Approved      bool
	Active        bool
	Path          string
}

// ListModels enumerates every model directory under root and, when
// includeArchived is true, also under the archive root, annotated with
// approval and "currently active" status.
func (s *Store) ListModels(includeArchived bool) ([]ModelSummary, error) {
	approvals := s.approvals.Load()
	approvedSet := make(map[[2]string]bool, len(approvals))
	for _, a := range approvals {
		approvedSet[[2]string{a.ModelVersion, a.TrainingRunID}] = true
	}
	active := s.approvals.LatestApproved()
	var activeKey [2]string
	if active != nil {
		activeKey = [2]string{active.ModelVersion, active.TrainingRunID}
	}

	roots := []string{s.root}
	if includeArchived {
		roots = append(roots, s.archiveRoot)
	}

	var out []ModelSummary
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, versionEntry := range entries {
			if !versionEntry.IsDir() {
				continue
			}
			versionDir := filepath.Join(root, versionEntry.Name())
			runEntries, err := os.ReadDir(versionDir)
			if err != nil {
				continue
			}
			for _, runEntry := range runEntries {
				if !runEntry.IsDir() {
					continue
				}
				dir := filepath.Join(versionDir, runEntry.Name())
				modelPath := filepath.Join(dir, "model.json")
				data, err := os.ReadFile(modelPath)
				if err != nil {
					continue
				}
				var model Model
				if err := json.Unmarshal(data, &model); err != nil {
					continue
				}
				key := [2]string{model.ModelVersion, model.TrainingRunID}
				out = append(out, ModelSummary{
					ModelVersion:  model.ModelVersion,
					TrainingRunID: model.TrainingRunID,
					CreatedTSMs:   model.CreatedTSMs,
					Approved:      approvedSet[key],
					Active:        active != nil && key == activeKey,
					Path:          dir,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedTSMs > out[j].CreatedTSMs })
	return out, nil
}

func (s *Store) resolveDir(modelVersion, trainingRunID string) string {
	dir := s.modelDir(modelVersion, trainingRunID)
	if _, err := os.Stat(filepath.Join(dir, "model.json")); err == nil {
		return dir
	}
	archived := s.archiveDir(modelVersion, trainingRunID)
	if _, err := os.Stat(filepath.Join(archived, "model.json")); err == nil {
		return archived
	}
	return ""
}
