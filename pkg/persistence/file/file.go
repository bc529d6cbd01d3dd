// Package file provides file-based persistence for the approval engine. Each
// aggregate is one JSON document; writes go through a temp file and rename so
// a crashed write never leaves a torn document behind.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mandala/approvals/pkg/persistence"
)

const dirPerm = 0o755

// Persistence implements persistence.Persistence using the file system.
type Persistence struct {
	root         string
	requests     *RequestRepository
	workflows    *WorkflowRepository
	delegations  *DelegationRepository
	rules        *RuleRepository
	triggers     *TriggerRepository
	audit        *AuditRepository
	recon        *ReconciliationRepository
	transactions *TransactionRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix is stripped for symmetry with database URLs.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		requests:     &RequestRepository{dir: filepath.Join(cleanRoot, "requests")},
		workflows:    &WorkflowRepository{dir: filepath.Join(cleanRoot, "workflows")},
		delegations:  &DelegationRepository{dir: filepath.Join(cleanRoot, "delegations")},
		rules:        &RuleRepository{dir: filepath.Join(cleanRoot, "rules")},
		triggers:     &TriggerRepository{dir: filepath.Join(cleanRoot, "triggers")},
		audit:        &AuditRepository{dir: filepath.Join(cleanRoot, "audit")},
		recon:        &ReconciliationRepository{dir: filepath.Join(cleanRoot, "reconciliation")},
		transactions: &TransactionRepository{dir: filepath.Join(cleanRoot, "transactions")},
	}
}

func (p *Persistence) ApprovalRequests() persistence.ApprovalRequestRepository {
	return p.requests
}

func (p *Persistence) Workflows() persistence.WorkflowRepository {
	return p.workflows
}

func (p *Persistence) Delegations() persistence.DelegationRepository {
	return p.delegations
}

func (p *Persistence) AutomationRules() persistence.AutomationRuleRepository {
	return p.rules
}

func (p *Persistence) EscalationTriggers() persistence.EscalationTriggerRepository {
	return p.triggers
}

func (p *Persistence) Audit() persistence.AuditRepository {
	return p.audit
}

func (p *Persistence) Reconciliation() persistence.ReconciliationRepository {
	return p.recon
}

func (p *Persistence) Transactions() persistence.TransactionRepository {
	return p.transactions
}

// HealthCheck verifies the root directory exists, creating it when missing.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return os.MkdirAll(p.root, dirPerm)
}

// Close performs any necessary cleanup. Nothing to clean up for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// writeDocument marshals v and atomically replaces dir/id.json.
func writeDocument(dir, id string, v any) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	path := filepath.Join(dir, id+".json")

	tmp, err := os.CreateTemp(dir, id+".*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return err
	}

	return os.Rename(tmp.Name(), path)
}

// readDocument unmarshals dir/id.json into v, returning notFound when the
// document does not exist.
func readDocument(dir, id string, v any, notFound error) error {
	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound
		}

		return err
	}

	return json.Unmarshal(data, v)
}

// listDocuments decodes every .json document in dir, in lexicographic file
// name order. A missing directory is an empty collection, not an error.
func listDocuments[T any](dir string) ([]*T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, err
	}

	items := make([]*T, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		item := new(T)
		if err := json.Unmarshal(data, item); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", entry.Name(), err)
		}

		items = append(items, item)
	}

	return items, nil
}

func documentExists(dir, id string) bool {
	_, err := os.Stat(filepath.Join(dir, id+".json"))

	return err == nil
}
