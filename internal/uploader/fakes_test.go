package uploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openmined/stageup/internal/destination"
	"github.com/openmined/stageup/internal/remote"
)

// fakeSession advances one chunk per call. failAt may inject an error for a
// given (1-based) call.
type fakeSession struct {
	meta    remote.Metadata
	chunk   int64
	sent    int64
	calls   int
	failAt  func(call int) error
	block   bool
	aborted bool
}

func (s *fakeSession) NextChunk(ctx context.Context) (remote.ChunkResult, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return remote.ChunkResult{}, ctx.Err()
	}
	if s.failAt != nil {
		if err := s.failAt(s.calls); err != nil {
			return remote.ChunkResult{}, err
		}
	}
	s.sent = min(s.sent+s.chunk, s.meta.Size)
	return remote.ChunkResult{
		BytesSent:  s.sent,
		TotalBytes: s.meta.Size,
		Done:       s.sent == s.meta.Size,
	}, nil
}

func (s *fakeSession) Abort(context.Context) error {
	s.aborted = true
	return nil
}

type fakeClient struct {
	mu       sync.Mutex
	sessions []*fakeSession
	// configure is applied to every new session
	configure func(name string, s *fakeSession)
}

func (c *fakeClient) Begin(_ context.Context, meta remote.Metadata, src io.ReaderAt, chunkSize int64) (remote.Session, error) {
	if src == nil {
		return nil, fmt.Errorf("nil source")
	}
	s := &fakeSession{meta: meta, chunk: chunkSize}
	if c.configure != nil {
		c.configure(meta.Name, s)
	}
	c.mu.Lock()
	c.sessions = append(c.sessions, s)
	c.mu.Unlock()
	return s, nil
}

func (c *fakeClient) begun() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.sessions))
	for _, s := range c.sessions {
		names = append(names, s.meta.Name)
	}
	return names
}

type fakeResolver struct {
	mu         sync.Mutex
	names      map[string]string // name -> folder
	resolveErr error
	configure  func(name string, s *fakeSession)
	clients    []*fakeClient
}

func newFakeResolver(names ...string) *fakeResolver {
	r := &fakeResolver{names: map[string]string{}}
	for _, n := range names {
		r.names[n] = "folder-" + n
	}
	return r
}

func (r *fakeResolver) Has(name string) bool {
	_, ok := r.names[name]
	return ok
}

func (r *fakeResolver) Resolve(_ context.Context, name string) (*destination.RemoteDestination, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolveErr != nil {
		return nil, r.resolveErr
	}
	folder, ok := r.names[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", destination.ErrUnknownDestination, name)
	}
	client := &fakeClient{configure: r.configure}
	r.clients = append(r.clients, client)
	return &destination.RemoteDestination{Name: name, FolderID: folder, Client: client}, nil
}

func (r *fakeResolver) resolved() []*fakeClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fakeClient(nil), r.clients...)
}

// recorder collects observer events.
type recorder struct {
	mu       sync.Mutex
	progress []int
	statuses []StatusEvent
}

func (r *recorder) observer() Observer {
	return Observer{
		OnProgress: func(e ProgressEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.progress = append(r.progress, e.Percent)
		},
		OnStatus: func(e StatusEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.statuses = append(r.statuses, e)
		},
	}
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]string, 0, len(r.statuses))
	for _, s := range r.statuses {
		msgs = append(msgs, s.Message)
	}
	return msgs
}

func (r *recorder) last() StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[len(r.statuses)-1]
}

func (r *recorder) percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.progress...)
}

func stageFile(t *testing.T, dir, name string, size int) FileRef {
	t.Helper()
	path := filepath.Join(dir, "staged-"+name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return FileRef{LocalPath: path, DisplayName: name}
}

func noWait(context.Context, time.Duration) error { return nil }
