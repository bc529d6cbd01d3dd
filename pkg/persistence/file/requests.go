package file

import (
	"context"
	"sync"
	"time"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

// RequestRepository stores approval requests as one JSON document each. The
// mutex makes the read-compare-write of the optimistic version check atomic
// within this process; the engine additionally serializes actions per request.
type RequestRepository struct {
	dir string
	mu  sync.Mutex
}

func (r *RequestRepository) Create(ctx context.Context, request *models.ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if documentExists(r.dir, request.ID) {
		return persistence.NewStoreError("Create", request.ID, persistence.ErrAlreadyExists)
	}

	request.Version = 1

	return writeDocument(r.dir, request.ID, request)
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	request := new(models.ApprovalRequest)
	if err := readDocument(r.dir, id, request, persistence.ErrRequestNotFound); err != nil {
		return nil, err
	}

	return request, nil
}

// Update persists the request only when the caller's version matches the
// stored version, then bumps it. Stale writers get ErrVersionConflict.
func (r *RequestRepository) Update(ctx context.Context, request *models.ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := new(models.ApprovalRequest)
	if err := readDocument(r.dir, request.ID, current, persistence.ErrRequestNotFound); err != nil {
		return err
	}

	if current.Version != request.Version {
		return persistence.NewStoreError("Update", request.ID, persistence.ErrVersionConflict)
	}

	request.Version++

	return writeDocument(r.dir, request.ID, request)
}

func (r *RequestRepository) ListOverdue(ctx context.Context, now time.Time) ([]*models.ApprovalRequest, error) {
	requests, err := listDocuments[models.ApprovalRequest](r.dir)
	if err != nil {
		return nil, err
	}

	overdue := make([]*models.ApprovalRequest, 0)

	for _, request := range requests {
		if request.Overdue(now) {
			overdue = append(overdue, request)
		}
	}

	return overdue, nil
}

// ListActive returns every request not yet in a terminal status.
func (r *RequestRepository) ListActive(ctx context.Context) ([]*models.ApprovalRequest, error) {
	requests, err := listDocuments[models.ApprovalRequest](r.dir)
	if err != nil {
		return nil, err
	}

	active := make([]*models.ApprovalRequest, 0)

	for _, request := range requests {
		if !request.Status.Terminal() {
			active = append(active, request)
		}
	}

	return active, nil
}

func (r *RequestRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]*models.ApprovalRequest, error) {
	requests, err := listDocuments[models.ApprovalRequest](r.dir)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.ApprovalRequest, 0)

	for _, request := range requests {
		if !request.SubmittedAt.Before(start) && !request.SubmittedAt.After(end) {
			matched = append(matched, request)
		}
	}

	return matched, nil
}
