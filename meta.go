package rollup

import (
	"sync"

	proto "github.com/gogo/protobuf/proto"

	"github.com/Kiriakos1998/shard-downsampler/internal"
)

// TaskStateRecord is the persisted shard-level checkpoint spec.md §3
// defines: status plus the tsid the shard completed through, used only for
// resume on CANCELLED or FAILED. It is the unit a caller loads before
// ShardDriver.Run and saves after every status transition.
type TaskStateRecord struct {
	mu sync.RWMutex

	shardID         uint64
	status          ShardStatus
	lastCompletedID []byte
}

// NewTaskStateRecord returns a record in INITIALIZING status for shardID.
func NewTaskStateRecord(shardID uint64) *TaskStateRecord {
	return &TaskStateRecord{shardID: shardID, status: StatusInitializing}
}

// Status returns the record's current status.
func (r *TaskStateRecord) Status() ShardStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// LastCompletedID returns the tsid the shard last completed a bucket
// through, or nil if none has been recorded (start from the beginning).
func (r *TaskStateRecord) LastCompletedID() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastCompletedID
}

// Update records a new status and, for a terminal status, the resume
// point. Only the terminal last_completed_tsid is meaningful for resume
// (spec.md §3); intermediate calls may pass nil.
func (r *TaskStateRecord) Update(status ShardStatus, lastCompletedID []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	if lastCompletedID != nil {
		r.lastCompletedID = append([]byte(nil), lastCompletedID...)
	}
}

// MarshalBinary encodes the record to the wire format in
// internal.TaskState, mirroring the teacher's
// MeasurementFields.MarshalBinary convention of marshaling an
// internal-package protobuf mirror rather than the live struct directly.
func (r *TaskStateRecord) MarshalBinary() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := int32(r.status)
	shardID := r.shardID
	pb := internal.TaskState{
		Status:          &status,
		ShardID:         &shardID,
		LastCompletedID: r.lastCompletedID,
	}
	return proto.Marshal(&pb)
}

// UnmarshalBinary decodes a record previously written by MarshalBinary.
func (r *TaskStateRecord) UnmarshalBinary(buf []byte) error {
	var pb internal.TaskState
	if err := proto.Unmarshal(buf, &pb); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = ShardStatus(pb.GetStatus())
	r.shardID = pb.GetShardID()
	r.lastCompletedID = pb.GetLastCompletedID()
	return nil
}
