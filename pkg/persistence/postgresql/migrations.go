package postgresql

// migrations returns the versioned schema for the approval engine. Columns
// outside the document exist only to serve the repository queries; the JSONB
// document stays the source of truth for every field.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS approval_requests (
				id TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				submitted_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deadline TIMESTAMP WITH TIME ZONE NOT NULL,
				version BIGINT NOT NULL,
				document JSONB NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_approval_requests_status ON approval_requests (status);
			CREATE INDEX IF NOT EXISTS idx_approval_requests_deadline ON approval_requests (deadline);
			CREATE INDEX IF NOT EXISTS idx_approval_requests_submitted_at ON approval_requests (submitted_at);

			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				active BOOLEAN NOT NULL,
				priority INTEGER NOT NULL,
				document JSONB NOT NULL
			);

			CREATE TABLE IF NOT EXISTS delegations (
				id TEXT PRIMARY KEY,
				to_user_id TEXT NOT NULL,
				start_date TIMESTAMP WITH TIME ZONE NOT NULL,
				end_date TIMESTAMP WITH TIME ZONE NOT NULL,
				active BOOLEAN NOT NULL,
				document JSONB NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_delegations_to_user_id ON delegations (to_user_id);

			CREATE TABLE IF NOT EXISTS automation_rules (
				id TEXT PRIMARY KEY,
				enabled BOOLEAN NOT NULL,
				priority INTEGER NOT NULL,
				document JSONB NOT NULL
			);

			CREATE TABLE IF NOT EXISTS escalation_triggers (
				id TEXT PRIMARY KEY,
				enabled BOOLEAN NOT NULL,
				document JSONB NOT NULL
			);

			CREATE TABLE IF NOT EXISTS audit_records (
				id TEXT PRIMARY KEY,
				entity_id TEXT NOT NULL,
				performed_by TEXT NOT NULL,
				change_type TEXT NOT NULL,
				performed_at TIMESTAMP WITH TIME ZONE NOT NULL,
				document JSONB NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_audit_records_entity_id ON audit_records (entity_id);
			CREATE INDEX IF NOT EXISTS idx_audit_records_performed_at ON audit_records (performed_at);

			CREATE TABLE IF NOT EXISTS reconciliation_runs (
				provider TEXT NOT NULL,
				date TEXT NOT NULL,
				document JSONB NOT NULL,
				PRIMARY KEY (provider, date)
			);

			CREATE TABLE IF NOT EXISTS reconciliation_entries (
				id TEXT PRIMARY KEY,
				provider TEXT NOT NULL,
				status TEXT NOT NULL,
				resolved_from TEXT NOT NULL DEFAULT '',
				document JSONB NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_reconciliation_entries_provider ON reconciliation_entries (provider);
			CREATE INDEX IF NOT EXISTS idx_reconciliation_entries_resolved_from ON reconciliation_entries (resolved_from);

			CREATE TABLE IF NOT EXISTS settlement_reports (
				id TEXT PRIMARY KEY,
				provider TEXT NOT NULL,
				settlement_date TIMESTAMP WITH TIME ZONE NOT NULL,
				document JSONB NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_settlement_reports_provider ON settlement_reports (provider);

			CREATE TABLE IF NOT EXISTS transactions (
				id TEXT PRIMARY KEY,
				provider TEXT NOT NULL,
				user_id TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				document JSONB NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_transactions_provider_created_at ON transactions (provider, created_at);
			CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions (user_id);
		`,
	}
}
