package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/laceai/lace-core/internal/corerr"
	"github.com/laceai/lace-core/internal/logging"
	"github.com/laceai/lace-core/pkg/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the production Event Store, grounded on the
// database/sql + modernc.org/sqlite + "CREATE TABLE IF NOT EXISTS" idiom
// used by haasonsaas-nexus's sqlitevec backend, generalized from a
// single vector table to a relational layout.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) a sqlite-backed Event Store at
// path and runs any pending migrations.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", corerr.ErrStorageUnavailable, path, err)
	}
	db.SetMaxOpenConns(1) // single-writer per process

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	var version int
	row := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&version); err != nil {
		// Table doesn't exist yet; start from zero.
		version = 0
	}

	for i := version; i < currentSchemaVersion; i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("%w: begin migration: %v", corerr.ErrStorageUnavailable, err)
		}
		if err := migrations[i](tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: migration %d: %v", corerr.ErrStorageUnavailable, i+1, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`, i+1, time.Now().UnixMilli()); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: record migration %d: %v", corerr.ErrStorageUnavailable, i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: commit migration %d: %v", corerr.ErrStorageUnavailable, i+1, err)
		}
		logging.With("component", "store").Info().Int("version", i+1).Msg("schema migration applied")
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func marshalJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSONMap(s string, out *map[string]any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), out)
}

// --- Projects ---

func (s *SQLiteStore) SaveProject(ctx context.Context, p *types.Project) error {
	cfg, err := marshalJSON(p.Configuration)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, working_directory, configuration, is_archived, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, description=excluded.description,
			working_directory=excluded.working_directory, configuration=excluded.configuration,
			is_archived=excluded.is_archived, last_used_at=excluded.last_used_at
	`, p.ID, p.Name, p.Description, p.WorkingDirectory, cfg, p.Archived, p.CreatedAt, p.LastUsedAt)
	if err != nil {
		return fmt.Errorf("%w: save project: %v", corerr.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) LoadProject(ctx context.Context, id string) (*types.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, working_directory, configuration, is_archived, created_at, last_used_at
		FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*types.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, working_directory, configuration, is_archived, created_at, last_used_at
		FROM projects ORDER BY last_used_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list projects: %v", corerr.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []*types.Project
	for rows.Next() {
		p, err := scanProjectRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *types.Project) error {
	return s.SaveProject(ctx, p)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM sessions WHERE project_id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	var sessionIDs []string
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			rows.Close()
			return fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
		}
		sessionIDs = append(sessionIDs, sid)
	}
	rows.Close()

	for _, sid := range sessionIDs {
		if err := deleteSessionCascadeTx(ctx, tx, sid); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: delete project: %v", corerr.ErrStorageUnavailable, err)
	}
	return tx.Commit()
}

func scanProject(row *sql.Row) (*types.Project, error) {
	p := &types.Project{}
	var cfg string
	var archived int
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.WorkingDirectory, &cfg, &archived, &p.CreatedAt, &p.LastUsedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, corerr.ErrProjectNotFound
		}
		return nil, fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	p.Archived = archived != 0
	if err := unmarshalJSONMap(cfg, &p.Configuration); err != nil {
		return nil, fmt.Errorf("%w: decode project config: %v", corerr.ErrStorageUnavailable, err)
	}
	return p, nil
}

func scanProjectRows(rows *sql.Rows) (*types.Project, error) {
	p := &types.Project{}
	var cfg string
	var archived int
	if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.WorkingDirectory, &cfg, &archived, &p.CreatedAt, &p.LastUsedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	p.Archived = archived != 0
	if err := unmarshalJSONMap(cfg, &p.Configuration); err != nil {
		return nil, fmt.Errorf("%w: decode project config: %v", corerr.ErrStorageUnavailable, err)
	}
	return p, nil
}

// --- Sessions ---

func (s *SQLiteStore) SaveSession(ctx context.Context, sess *types.Session) error {
	cfg, err := marshalJSON(sess.Configuration)
	if err != nil {
		return err
	}
	env, err := marshalJSON(sess.EnvironmentVariables)
	if err != nil {
		return err
	}
	policies, err := marshalJSON(sess.ToolPolicies)
	if err != nil {
		return err
	}
	allow, err := marshalJSON(sess.ToolAllowlist)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, project_id, name, description, configuration, environment_variables, tool_policies, tool_allowlist, working_directory, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, description=excluded.description, configuration=excluded.configuration,
			environment_variables=excluded.environment_variables, tool_policies=excluded.tool_policies,
			tool_allowlist=excluded.tool_allowlist, working_directory=excluded.working_directory,
			status=excluded.status, updated_at=excluded.updated_at
	`, sess.ID, sess.ProjectID, sess.Name, sess.Description, cfg, env, policies, allow, sess.WorkingDirectory, sess.Status, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: save session: %v", corerr.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) LoadSession(ctx context.Context, id string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, description, configuration, environment_variables, tool_policies, tool_allowlist, working_directory, status, created_at, updated_at
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (s *SQLiteStore) LoadSessionsByProject(ctx context.Context, projectID string) ([]*types.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, description, configuration, environment_variables, tool_policies, tool_allowlist, working_directory, status, created_at, updated_at
		FROM sessions WHERE project_id = ? ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []*types.Session
	for rows.Next() {
		sess, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *types.Session) error {
	return s.SaveSession(ctx, sess)
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()
	if err := deleteSessionCascadeTx(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteSessionCascadeTx(ctx context.Context, tx *sql.Tx, sessionID string) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM threads WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	var threadIDs []string
	for rows.Next() {
		var tid string
		if err := rows.Scan(&tid); err != nil {
			rows.Close()
			return fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
		}
		threadIDs = append(threadIDs, tid)
	}
	rows.Close()

	for _, tid := range threadIDs {
		if err := deleteThreadCascadeTx(ctx, tx, tid); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("%w: delete session: %v", corerr.ErrStorageUnavailable, err)
	}
	return nil
}

func scanSession(row *sql.Row) (*types.Session, error) {
	sess := &types.Session{}
	var cfg, env, policies, allow string
	if err := row.Scan(&sess.ID, &sess.ProjectID, &sess.Name, &sess.Description, &cfg, &env, &policies, &allow, &sess.WorkingDirectory, &sess.Status, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, corerr.ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	return decodeSessionJSON(sess, cfg, env, policies, allow)
}

func scanSessionRows(rows *sql.Rows) (*types.Session, error) {
	sess := &types.Session{}
	var cfg, env, policies, allow string
	if err := rows.Scan(&sess.ID, &sess.ProjectID, &sess.Name, &sess.Description, &cfg, &env, &policies, &allow, &sess.WorkingDirectory, &sess.Status, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	return decodeSessionJSON(sess, cfg, env, policies, allow)
}

func decodeSessionJSON(sess *types.Session, cfg, env, policies, allow string) (*types.Session, error) {
	if err := unmarshalJSONMap(cfg, &sess.Configuration); err != nil {
		return nil, fmt.Errorf("%w: decode session config: %v", corerr.ErrStorageUnavailable, err)
	}
	if env != "" {
		if err := json.Unmarshal([]byte(env), &sess.EnvironmentVariables); err != nil {
			return nil, fmt.Errorf("%w: decode session env: %v", corerr.ErrStorageUnavailable, err)
		}
	}
	if policies != "" {
		if err := json.Unmarshal([]byte(policies), &sess.ToolPolicies); err != nil {
			return nil, fmt.Errorf("%w: decode tool policies: %v", corerr.ErrStorageUnavailable, err)
		}
	}
	if allow != "" {
		if err := json.Unmarshal([]byte(allow), &sess.ToolAllowlist); err != nil {
			return nil, fmt.Errorf("%w: decode tool allowlist: %v", corerr.ErrStorageUnavailable, err)
		}
	}
	return sess, nil
}

// --- Threads ---

func (s *SQLiteStore) SaveThread(ctx context.Context, t *types.Thread) error {
	meta, err := marshalJSON(t.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO threads (id, session_id, project_id, created_at, updated_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at=excluded.updated_at, metadata=excluded.metadata
	`, t.ID, t.SessionID, t.ProjectID, t.CreatedAt, t.UpdatedAt, meta)
	if err != nil {
		return fmt.Errorf("%w: save thread: %v", corerr.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) LoadThread(ctx context.Context, id string) (*types.Thread, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, session_id, project_id, created_at, updated_at, metadata FROM threads WHERE id = ?`, id)
	t := &types.Thread{}
	var meta string
	if err := row.Scan(&t.ID, &t.SessionID, &t.ProjectID, &t.CreatedAt, &t.UpdatedAt, &meta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, corerr.ErrThreadNotFound
		}
		return nil, fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	if err := unmarshalJSONMap(meta, &t.Metadata); err != nil {
		return nil, fmt.Errorf("%w: decode thread metadata: %v", corerr.ErrStorageUnavailable, err)
	}
	return t, nil
}

func (s *SQLiteStore) DeleteThread(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()
	if err := deleteThreadCascadeTx(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteThreadCascadeTx(ctx context.Context, tx *sql.Tx, threadID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("%w: delete events: %v", corerr.ErrStorageUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, threadID); err != nil {
		return fmt.Errorf("%w: delete thread: %v", corerr.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) ListThreadsBySession(ctx context.Context, sessionID string) ([]*types.Thread, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, project_id, created_at, updated_at, metadata FROM threads WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []*types.Thread
	for rows.Next() {
		t := &types.Thread{}
		var meta string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.ProjectID, &t.CreatedAt, &t.UpdatedAt, &meta); err != nil {
			return nil, fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
		}
		if err := unmarshalJSONMap(meta, &t.Metadata); err != nil {
			return nil, fmt.Errorf("%w: decode thread metadata: %v", corerr.ErrStorageUnavailable, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Events ---

func (s *SQLiteStore) AppendEvent(ctx context.Context, threadID string, e *types.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM threads WHERE id = ?`, threadID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrThreadMissing
		}
		return fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO events (id, thread_id, type, timestamp, data) VALUES (?, ?, ?, ?, ?)
	`, e.ID, threadID, string(e.Type), e.Timestamp, string(e.Data)); err != nil {
		return fmt.Errorf("%w: append event: %v", corerr.ErrStorageUnavailable, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE threads SET updated_at = ? WHERE id = ?`, e.Timestamp, threadID); err != nil {
		return fmt.Errorf("%w: touch thread: %v", corerr.ErrStorageUnavailable, err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadEvents(ctx context.Context, threadID string) ([]*types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, type, timestamp, data FROM events
		WHERE thread_id = ? ORDER BY timestamp ASC, rowid ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []*types.Event
	for rows.Next() {
		e := &types.Event{}
		var typ, data string
		if err := rows.Scan(&e.ID, &e.ThreadID, &typ, &e.Timestamp, &data); err != nil {
			return nil, fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
		}
		e.Type = types.EventType(typ)
		e.Data = json.RawMessage(data)
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Approvals ---

func (s *SQLiteStore) GetPendingApprovals(ctx context.Context, threadIDs []string) ([]PendingApproval, error) {
	if len(threadIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]byte, 0, len(threadIDs)*2)
	args := make([]any, 0, len(threadIDs))
	for i, id := range threadIDs {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}

	query := `
		SELECT req.thread_id, json_extract(req.data, '$.callId') AS call_id, req.timestamp,
		       json_extract(call.data, '$.toolName'), json_extract(call.data, '$.arguments')
		FROM events req
		JOIN events call ON call.thread_id = req.thread_id
			AND call.type = 'TOOL_CALL'
			AND json_extract(call.data, '$.callId') = json_extract(req.data, '$.callId')
		WHERE req.type = 'TOOL_APPROVAL_REQUEST'
			AND req.thread_id IN (` + string(placeholders) + `)
			AND NOT EXISTS (
				SELECT 1 FROM events resp
				WHERE resp.thread_id = req.thread_id
					AND resp.type = 'TOOL_APPROVAL_RESPONSE'
					AND json_extract(resp.data, '$.callId') = json_extract(req.data, '$.callId')
			)
		ORDER BY req.timestamp ASC, req.rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: pending approvals: %v", corerr.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []PendingApproval
	for rows.Next() {
		var pa PendingApproval
		var argsJSON string
		if err := rows.Scan(&pa.ThreadID, &pa.CallID, &pa.RequestTimestamp, &pa.ToolName, &argsJSON); err != nil {
			return nil, fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
		}
		if argsJSON != "" {
			if err := json.Unmarshal([]byte(argsJSON), &pa.Arguments); err != nil {
				return nil, fmt.Errorf("%w: decode pending approval arguments: %v", corerr.ErrStorageUnavailable, err)
			}
		}
		out = append(out, pa)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetApprovalDecision(ctx context.Context, threadID, callID string) (*types.ApprovalDecision, error) {
	var decision string
	err := s.db.QueryRowContext(ctx, `
		SELECT json_extract(data, '$.decision') FROM events
		WHERE thread_id = ? AND type = 'TOOL_APPROVAL_RESPONSE' AND json_extract(data, '$.callId') = ?
	`, threadID, callID).Scan(&decision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", corerr.ErrStorageUnavailable, err)
	}
	d := types.ApprovalDecision(decision)
	return &d, nil
}
