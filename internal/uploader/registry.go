package uploader

import (
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type BatchState string

const (
	BatchStatePending   BatchState = "pending"
	BatchStateUploading BatchState = "uploading"
	BatchStateCompleted BatchState = "completed"
	BatchStateError     BatchState = "error"
)

const defaultBatchHistory = 256

type BatchInfo struct {
	ID          string     `json:"id"`
	Destination string     `json:"destination"`
	State       BatchState `json:"state"`
	Files       []string   `json:"files"`
	CurrentFile string     `json:"currentFile,omitempty"`
	FileIndex   int        `json:"fileIndex"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (b *BatchInfo) clone() *BatchInfo {
	c := *b
	c.Files = append([]string(nil), b.Files...)
	return &c
}

// Registry keeps the state of running batches, and of finished ones for a
// bounded time. It lives as long as the process.
type Registry struct {
	active   map[string]*BatchInfo
	finished *expirable.LRU[string, *BatchInfo]
	mu       sync.RWMutex
}

// NewRegistry keeps up to history finished batches for retention. A
// non-positive retention keeps them until evicted by newer ones.
func NewRegistry(history int, retention time.Duration) *Registry {
	if history <= 0 {
		history = defaultBatchHistory
	}
	return &Registry{
		active:   make(map[string]*BatchInfo),
		finished: expirable.NewLRU[string, *BatchInfo](history, nil, retention),
	}
}

func (r *Registry) Add(batch *UploadBatch) {
	files := make([]string, 0, len(batch.Files))
	for _, f := range batch.Files {
		files = append(files, f.name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.active[batch.ID] = &BatchInfo{
		ID:          batch.ID,
		Destination: batch.Destination,
		State:       BatchStatePending,
		Files:       files,
		CreatedAt:   batch.CreatedAt,
		UpdatedAt:   time.Now(),
	}
}

func (r *Registry) SetUploading(id string, index int, name string) {
	r.update(id, func(info *BatchInfo) {
		info.State = BatchStateUploading
		info.FileIndex = index
		info.CurrentFile = name
		info.Progress = 0
	})
}

func (r *Registry) SetProgress(id string, percent int) {
	r.update(id, func(info *BatchInfo) {
		info.Progress = percent
	})
}

func (r *Registry) SetMessage(id string, message string) {
	r.update(id, func(info *BatchInfo) {
		info.Message = message
	})
}

func (r *Registry) SetCompleted(id string, message string) {
	r.finish(id, func(info *BatchInfo) {
		info.State = BatchStateCompleted
		info.Progress = 100
		info.CurrentFile = ""
		info.Message = message
	})
}

func (r *Registry) SetError(id string, message string) {
	r.finish(id, func(info *BatchInfo) {
		info.State = BatchStateError
		info.Message = message
		info.Error = message
	})
}

func (r *Registry) Get(id string) (*BatchInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if info, ok := r.active[id]; ok {
		return info.clone(), nil
	}
	if info, ok := r.finished.Get(id); ok {
		return info.clone(), nil
	}
	return nil, ErrBatchNotFound
}

// List returns running and retained batches, newest first.
func (r *Registry) List() []*BatchInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*BatchInfo, 0, len(r.active)+r.finished.Len())
	for _, info := range r.active {
		result = append(result, info.clone())
	}
	for _, info := range r.finished.Values() {
		result = append(result, info.clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Active counts batches that have not finished.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

func (r *Registry) update(id string, fn func(info *BatchInfo)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.active[id]
	if !ok {
		return
	}
	fn(info)
	info.UpdatedAt = time.Now()
}

func (r *Registry) finish(id string, fn func(info *BatchInfo)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.active[id]
	if !ok {
		return
	}
	fn(info)
	info.UpdatedAt = time.Now()

	delete(r.active, id)
	r.finished.Add(id, info)
}
