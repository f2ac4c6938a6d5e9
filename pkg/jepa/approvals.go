package jepa

import (
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/google/renameio/v2"
)

// Approval records one model's admission into the approved set: the
// triple a loader matches against before it will trust a signed model.
type Approval struct {
	ModelVersion       string `json:"model_version"`
	TrainingRunID      string `json:"training_run_id"`
	Signature          string `json:"signature"`
	ApprovedTSMs       int64  `json:"approved_ts_ms"`
	InitialApprovedTSMs int64 `json:"initial_approved_ts_ms,omitempty"`
	PromotedTSMs       int64  `json:"promoted_ts_ms,omitempty"`
	ArchivedTSMs       int64  `json:"archived_ts_ms,omitempty"`
	ArchivePath        string `json:"archive_path,omitempty"`
}

// ApprovalStore persists the append-mostly approvals.json ledger that
// makes up the persistent approval record for trained models.
type ApprovalStore struct {
	mu   sync.Mutex
	path string
}

// NewApprovalStore opens (without requiring it to yet exist) the
// approvals ledger at path.
func NewApprovalStore(path string) *ApprovalStore {
	return &ApprovalStore{path: path}
}

// Load returns every recorded approval, oldest state visible first; an
// absent or unreadable file yields an empty list rather than an error,
// matching the original trainer's tolerant read.
func (s *ApprovalStore) Load() []Approval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *ApprovalStore) loadLocked() []Approval {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var approvals []Approval
	if err := json.Unmarshal(data, &approvals); err != nil {
		return nil
	}
	return approvals
}

func (s *ApprovalStore) saveLocked(approvals []Approval) error {
	data, err := json.MarshalIndent(approvals, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(s.path, data, 0o644)
}

// IsApproved reports whether (modelVersion, trainingRunID, signature)
// has an exact matching entry in the ledger.
func (s *ApprovalStore) IsApproved(modelVersion, trainingRunID, signature string) bool {
	for _, a := range s.Load() {
		if a.ModelVersion == modelVersion && a.TrainingRunID == trainingRunID && a.Signature == signature {
			return true
		}
	}
	return false
}

// LatestApproved returns the most recently approved entry, or nil if
// none exist.
func (s *ApprovalStore) LatestApproved() *Approval {
	approvals := s.Load()
	if len(approvals) == 0 {
		return nil
	}
	sort.Slice(approvals, func(i, j int) bool { return approvals[i].ApprovedTSMs > approvals[j].ApprovedTSMs })
	latest := approvals[0]
	return &latest
}

// Approve appends a new approval entry unless an identical one is
// already present, in which case it is a no-op, mirroring the original
// trainer's idempotent approve_model.
func (s *ApprovalStore) Approve(modelVersion, trainingRunID, signature string, approvedTSMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	approvals := s.loadLocked()
	for _, a := range approvals {
		if a.ModelVersion == modelVersion && a.TrainingRunID == trainingRunID && a.Signature == signature {
			return nil
		}
	}
	approvals = append(approvals, Approval{
		ModelVersion:  modelVersion,
		TrainingRunID: trainingRunID,
		Signature:     signature,
		ApprovedTSMs:  approvedTSMs,
	})
	return s.saveLocked(approvals)
}

// Promote bumps an existing approval's timestamp to now, used to keep a
// long-lived model at the front of the retention keep-list without
// retraining it.
func (s *ApprovalStore) Promote(modelVersion, trainingRunID string, nowTSMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	approvals := s.loadLocked()
	found := false
	for i := range approvals {
		if approvals[i].ModelVersion == modelVersion && approvals[i].TrainingRunID == trainingRunID {
			if approvals[i].InitialApprovedTSMs == 0 {
				approvals[i].InitialApprovedTSMs = approvals[i].ApprovedTSMs
			}
			approvals[i].ApprovedTSMs = nowTSMs
			approvals[i].PromotedTSMs = nowTSMs
			found = true
			break
		}
	}
	if !found {
		return ErrApprovalNotFound
	}
	return s.saveLocked(approvals)
}

// MarkArchived records that a previously approved model's artifacts
// were moved to archivePath, called by the retention archiver after a
// successful move.
func (s *ApprovalStore) MarkArchived(modelVersion, trainingRunID, archivePath string, archivedTSMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	approvals := s.loadLocked()
	for i := range approvals {
		if approvals[i].ModelVersion == modelVersion && approvals[i].TrainingRunID == trainingRunID {
			approvals[i].ArchivedTSMs = archivedTSMs
			approvals[i].ArchivePath = archivePath
			break
		}
	}
	return s.saveLocked(approvals)
}
