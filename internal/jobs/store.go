package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Store persists jobs. Implementations log persistence failures instead of
// returning them; callers see the in-memory outcome.
type Store interface {
	List(ctx context.Context) []Job
	Find(ctx context.Context, id uuid.UUID) (Job, bool)
	Add(ctx context.Context, job Job) Job
	Update(ctx context.Context, job Job) (Job, bool)
	Delete(ctx context.Context, id uuid.UUID) bool
}

// FileStore keeps jobs in memory and mirrors them to a JSON file.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	jobs []Job
}

// NewFileStore loads path if it exists. An unreadable file starts empty.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileStore{path: path, logger: logger}
	s.load()
	return s
}

func (s *FileStore) List(context.Context) []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

func (s *FileStore) Find(_ context.Context, id uuid.UUID) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.ID == id {
			return j, true
		}
	}
	return Job{}, false
}

func (s *FileStore) Add(_ context.Context, job Job) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	s.save()
	return job
}

func (s *FileStore) Update(_ context.Context, job Job) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if s.jobs[i].ID == job.ID {
			s.jobs[i] = job
			s.save()
			return job, true
		}
	}
	return Job{}, false
}

func (s *FileStore) Delete(_ context.Context, id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if s.jobs[i].ID == id {
			s.jobs = append(s.jobs[:i:i], s.jobs[i+1:]...)
			s.save()
			return true
		}
	}
	return false
}

func (s *FileStore) load() {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		s.logger.Warn("read jobs file failed", slog.String("path", s.path), slog.Any("err", err))
		return
	}
	var loaded []Job
	if err := json.Unmarshal(b, &loaded); err != nil {
		s.logger.Warn("parse jobs file failed, starting empty", slog.String("path", s.path), slog.Any("err", err))
		return
	}
	s.mu.Lock()
	s.jobs = loaded
	s.mu.Unlock()
}

// save must be called with mu held.
func (s *FileStore) save() {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Warn("create jobs dir failed", slog.String("path", dir), slog.Any("err", err))
			return
		}
	}
	jobs := s.jobs
	if jobs == nil {
		jobs = []Job{}
	}
	b, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		s.logger.Warn("encode jobs failed", slog.Any("err", err))
		return
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		s.logger.Warn("write jobs file failed", slog.String("path", s.path), slog.Any("err", err))
	}
}
