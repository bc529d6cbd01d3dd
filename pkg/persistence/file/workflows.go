package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

type WorkflowRepository struct {
	dir string
}

// ListActive returns active workflows sorted by descending priority, the
// order the matcher consumes them in.
func (r *WorkflowRepository) ListActive(ctx context.Context) ([]*models.ApprovalWorkflow, error) {
	workflows, err := listDocuments[models.ApprovalWorkflow](r.dir)
	if err != nil {
		return nil, err
	}

	active := make([]*models.ApprovalWorkflow, 0, len(workflows))

	for _, workflow := range workflows {
		if workflow.Active {
			active = append(active, workflow)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})

	return active, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.ApprovalWorkflow, error) {
	workflow := new(models.ApprovalWorkflow)
	if err := readDocument(r.dir, id, workflow, persistence.ErrWorkflowNotFound); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.ApprovalWorkflow) error {
	return writeDocument(r.dir, workflow.ID, workflow)
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	if !documentExists(r.dir, id) {
		return persistence.NewStoreError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return os.Remove(filepath.Join(r.dir, id+".json"))
}
