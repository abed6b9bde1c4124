package fileops

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid"

	"github.com/yeisme/docvault/pkg/internal/model"
	"github.com/yeisme/docvault/pkg/internal/security"
)

// Status 任务终态/运行态的外显名称.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Job 单个后台任务的可变状态. 同一时刻只有执行协程写入，
// 轮询方经 Snapshot 读取副本，写读都经任务表的锁.
type Job struct {
	ID        string
	Owner     string
	Kind      model.OperationKind
	Principal security.Principal
	Sources   []string

	Progress  int
	Processed int
	Total     int
	Result    string
	Error     string
	Started   bool
	Finished  bool
	Canceled  bool
	// Hold 终结后结果尚未被客户端取走
	Hold bool

	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt time.Time

	cancel func()
}

// Snapshot 任务的只读快照，交给轮询端.
type Snapshot struct {
	ID        string              `json:"id"`
	Owner     string              `json:"owner"`
	Kind      model.OperationKind `json:"kind"`
	Status    Status              `json:"status"`
	Progress  int                 `json:"progress"`
	Processed int                 `json:"processed"`
	Total     int                 `json:"total"`
	Result    string              `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
	Finished  bool                `json:"finished"`
	Hold      bool                `json:"hold"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// status 由 finished/canceled/result/error 推导外显状态.
func (j *Job) status() Status {
	switch {
	case !j.Finished && !j.Started:
		return StatusQueued
	case !j.Finished:
		return StatusRunning
	case j.Canceled:
		return StatusCanceled
	case j.Result == "" && j.Error != "":
		return StatusFailed
	default:
		return StatusCompleted
	}
}

func (j *Job) snapshot() Snapshot {
	return Snapshot{
		ID:        j.ID,
		Owner:     j.Owner,
		Kind:      j.Kind,
		Status:    j.status(),
		Progress:  j.Progress,
		Processed: j.Processed,
		Total:     j.Total,
		Result:    j.Result,
		Error:     j.Error,
		Finished:  j.Finished,
		Hold:      j.Hold,
		UpdatedAt: j.UpdatedAt,
	}
}

// jobStore 进程内任务表. 每个任务只有一个写者（执行协程），
// 轮询/取消来自任意协程，整表一把读写锁足够.
type jobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func newJobStore() *jobStore {
	return &jobStore{jobs: make(map[string]*Job)}
}

func (s *jobStore) put(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

// update 在锁内应用变更并返回快照.
func (s *jobStore) update(id string, fn func(*Job)) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return Snapshot{}, false
	}

	fn(j)

	return j.snapshot(), true
}

func (s *jobStore) get(id string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return Snapshot{}, false
	}

	return j.snapshot(), true
}

func (s *jobStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// expired 返回终结时间早于 cutoff 的任务 id（清理任务用）.
func (s *jobStore) expired(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string

	for id, j := range s.jobs {
		if j.Finished && j.FinishedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}

	return ids
}

// ulid 的单调熵源非并发安全，提交路径加锁.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newJobID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Now(), entropy).String()
}
