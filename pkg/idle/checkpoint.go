package idle

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/localtrace/statetape/pkg/model"
	"github.com/localtrace/statetape/pkg/store/metadata"
)

func idleCheckpointKey(runID string) string {
	return fmt.Sprintf("%s/%s", runID, model.RecordTypeIdleCheckpoint)
}

func stateTapeCheckpointKey(runID, versionKey string) string {
	return fmt.Sprintf("%s/%s/%s", runID, model.RecordTypeStateTapeCheckpoint, versionKey)
}

// loadIdleCheckpoint loads the idle checkpoint for runID, if present.
func loadIdleCheckpoint(store metadata.Store, runID string) (model.IdleCheckpoint, bool, error) {
	raw, err := store.Get(idleCheckpointKey(runID))
	if err != nil {
		if err == metadata.ErrKeyNotFound {
			return model.IdleCheckpoint{}, false, nil
		}
		return model.IdleCheckpoint{}, false, err
	}
	var ck model.IdleCheckpoint
	if err := json.Unmarshal(raw, &ck); err != nil {
		return model.IdleCheckpoint{}, false, err
	}
	return ck, true, nil
}

// saveIdleCheckpoint persists ck, preferring PutReplace and falling
// back to PutNew if the store implementation doesn't support in-place
// replacement.
func saveIdleCheckpoint(store metadata.Store, ck model.IdleCheckpoint) error {
	raw, err := json.Marshal(ck)
	if err != nil {
		return err
	}
	if err := store.PutReplace(idleCheckpointKey(ck.RunID), raw); err != nil {
		return store.PutNew(idleCheckpointKey(ck.RunID), raw)
	}
	return nil
}

// loadStateTapeCheckpoint loads the state-tape checkpoint for runID
// under the given version key, tolerating absence by falling back to
// the unversioned key "unknown:unknown".
func loadStateTapeCheckpoint(store metadata.Store, runID, versionKey string) (model.StateTapeCheckpoint, bool, error) {
	raw, err := store.Get(stateTapeCheckpointKey(runID, versionKey))
	if err == metadata.ErrKeyNotFound {
		raw, err = store.Get(stateTapeCheckpointKey(runID, model.VersionKey("", "")))
	}
	if err != nil {
		if err == metadata.ErrKeyNotFound {
			return model.StateTapeCheckpoint{}, false, nil
		}
		return model.StateTapeCheckpoint{}, false, err
	}
	var ck model.StateTapeCheckpoint
	if err := json.Unmarshal(raw, &ck); err != nil {
		return model.StateTapeCheckpoint{}, false, err
	}
	return ck, true, nil
}

func saveStateTapeCheckpoint(store metadata.Store, ck model.StateTapeCheckpoint) error {
	raw, err := json.Marshal(ck)
	if err != nil {
		return err
	}
	key := stateTapeCheckpointKey(ck.RunID, ck.VersionKey)
	if err := store.PutReplace(key, raw); err != nil {
		return store.PutNew(key, raw)
	}
	return nil
}

func newStateTapeCheckpoint(runID, lastRecordID string, processedTotal int, modelVersion, configHash string) model.StateTapeCheckpoint {
	versionKey := model.VersionKey(modelVersion, configHash)
	ck := model.StateTapeCheckpoint{
		SchemaVersion:  1,
		RecordType:     model.RecordTypeStateTapeCheckpoint,
		RunID:          runID,
		TSUTC:          time.Now().UTC(),
		LastRecordID:   lastRecordID,
		ProcessedTotal: processedTotal,
		ModelVersion:   modelVersion,
		ConfigHash:     configHash,
		VersionKey:     versionKey,
	}
	payload, _ := json.Marshal(struct {
		RunID          string `json:"run_id"`
		LastRecordID   string `json:"last_record_id"`
		ProcessedTotal int    `json:"processed_total"`
		VersionKey     string `json:"version_key"`
	}{ck.RunID, ck.LastRecordID, ck.ProcessedTotal, ck.VersionKey})
	sum := sha256.Sum256(payload)
	ck.PayloadHash = fmt.Sprintf("sha256:%x", sum)
	return ck
}
