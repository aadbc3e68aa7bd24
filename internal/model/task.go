package model

import "fmt"

// TaskState is the progress of an AssetUploadTask.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskUploaded
	TaskLinked
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskUploaded:
		return "uploaded"
	case TaskLinked:
		return "linked"
	case TaskFailed:
		return "failed"
	}
	return fmt.Sprintf("TaskState(%d)", int(s))
}

// AssetUploadTask is one user-initiated picture change.
type AssetUploadTask struct {
	Key             string // storage key, unique per task
	TargetProfileID string
	Image           []byte
	ContentType     string
	State           TaskState
	URL             string // set once uploaded
}

// Advance moves the task forward. Allowed: pending→uploaded→linked and
// pending|uploaded→failed. Anything else is rejected and leaves the task unchanged.
func (t *AssetUploadTask) Advance(next TaskState) error {
	ok := false
	switch t.State {
	case TaskPending:
		ok = next == TaskUploaded || next == TaskFailed
	case TaskUploaded:
		ok = next == TaskLinked || next == TaskFailed
	}
	if !ok {
		return fmt.Errorf("asset task %s: illegal transition %s -> %s", t.Key, t.State, next)
	}
	t.State = next
	return nil
}

// Terminal reports whether the task reached linked or failed.
func (t *AssetUploadTask) Terminal() bool {
	return t.State == TaskLinked || t.State == TaskFailed
}
