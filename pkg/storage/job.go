package storage

import (
	"context"
	"path"

	"github.com/google/uuid"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

// JobStore scopes a backend to one job's namespace. Two job stores with
// different IDs share no keys, so concurrent jobs on one backend cannot
// collide.
type JobStore struct {
	backend Backend
	jobID   string
}

// NewJobStore scopes the backend under jobID, generating one when
// empty.
func NewJobStore(backend Backend, jobID string) *JobStore {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	return &JobStore{backend: backend, jobID: jobID}
}

// JobID returns the job namespace.
func (s *JobStore) JobID() string { return s.jobID }

func (s *JobStore) key(name string) string {
	return path.Join(s.jobID, name)
}

func (s *JobStore) WriteJSON(ctx context.Context, name string, v interface{}) error {
	return s.backend.WriteJSON(ctx, s.key(name), v)
}

func (s *JobStore) WriteYAML(ctx context.Context, name string, v interface{}) error {
	return s.backend.WriteYAML(ctx, s.key(name), v)
}

func (s *JobStore) WriteParquet(ctx context.Context, name string, tbl *table.Table) error {
	return s.backend.WriteParquet(ctx, s.key(name), tbl)
}

func (s *JobStore) ReadJSON(ctx context.Context, name string, out interface{}) error {
	return s.backend.ReadJSON(ctx, s.key(name), out)
}

func (s *JobStore) ReadYAML(ctx context.Context, name string, out interface{}) error {
	return s.backend.ReadYAML(ctx, s.key(name), out)
}

func (s *JobStore) ReadParquet(ctx context.Context, name string) (*table.Table, error) {
	return s.backend.ReadParquet(ctx, s.key(name))
}

func (s *JobStore) Exists(ctx context.Context, name string) (bool, error) {
	return s.backend.Exists(ctx, s.key(name))
}

func (s *JobStore) List(ctx context.Context) ([]string, error) {
	return s.backend.List(ctx, s.jobID)
}

func (s *JobStore) FullPath(name string) string {
	return s.backend.FullPath(s.key(name))
}
