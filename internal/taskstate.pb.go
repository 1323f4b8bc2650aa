// Code generated by protoc-gen-gogo, hand-maintained here in lieu of a
// vendored protoc toolchain. DO NOT EDIT the wire shape without bumping
// every already-persisted checkpoint's reader.

package internal

import (
	proto "github.com/gogo/protobuf/proto"
)

// TaskState is the wire shape of one persisted shard downsample checkpoint,
// mirroring the tagged-pointer-field convention of the generated
// MeasurementFields/Field messages it is modeled on.
type TaskState struct {
	Status          *int32 `protobuf:"varint,1,req,name=Status" json:"Status,omitempty"`
	LastCompletedID []byte `protobuf:"bytes,2,opt,name=LastCompletedID" json:"LastCompletedID,omitempty"`
	ShardID         *uint64 `protobuf:"varint,3,req,name=ShardID" json:"ShardID,omitempty"`
}

func (m *TaskState) Reset()         { *m = TaskState{} }
func (m *TaskState) String() string { return proto.CompactTextString(m) }
func (m *TaskState) ProtoMessage()  {}

func (m *TaskState) GetStatus() int32 {
	if m != nil && m.Status != nil {
		return *m.Status
	}
	return 0
}

func (m *TaskState) GetLastCompletedID() []byte {
	if m != nil {
		return m.LastCompletedID
	}
	return nil
}

func (m *TaskState) GetShardID() uint64 {
	if m != nil && m.ShardID != nil {
		return *m.ShardID
	}
	return 0
}

func init() {
	proto.RegisterType((*TaskState)(nil), "internal.TaskState")
}
