package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const callFlowColumns = `id, name, description, calling_number, called_number, expected_result, steps, created_at, updated_at`

func scanCallFlow(row scanner) (CallFlow, error) {
	var f CallFlow
	var steps, createdAt, updatedAt string
	if err := row.Scan(&f.ID, &f.Name, &f.Description, &f.CallingNumber, &f.CalledNumber, &f.ExpectedResult,
		&steps, &createdAt, &updatedAt); err != nil {
		return CallFlow{}, err
	}
	if err := json.Unmarshal([]byte(steps), &f.Steps); err != nil {
		return CallFlow{}, fmt.Errorf("parsing steps of call flow %s: %w", f.ID, err)
	}
	if f.Steps == nil {
		f.Steps = []string{}
	}
	var err error
	if f.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return CallFlow{}, err
	}
	if f.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return CallFlow{}, err
	}
	return f, nil
}

func encodeSteps(steps []string) (string, error) {
	if steps == nil {
		steps = []string{}
	}
	b, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("encoding steps: %w", err)
	}
	return string(b), nil
}

func (s *Store) CreateCallFlow(f CallFlow) (CallFlow, error) {
	return createCallFlow(s.db, f)
}

func createCallFlow(q querier, f CallFlow) (CallFlow, error) {
	if f.Name == "" {
		return CallFlow{}, fmt.Errorf("%w: call flow name is required", ErrInvalid)
	}
	steps, err := encodeSteps(f.Steps)
	if err != nil {
		return CallFlow{}, err
	}
	now := time.Now().UTC().Truncate(time.Second)
	f.ID = newID(f.ID)
	f.CreatedAt, f.UpdatedAt = now, now
	if f.Steps == nil {
		f.Steps = []string{}
	}
	_, err = q.Exec(`INSERT INTO call_flows (`+callFlowColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Description, f.CallingNumber, f.CalledNumber, f.ExpectedResult, steps,
		formatTime(now), formatTime(now))
	if err != nil {
		return CallFlow{}, conflict(err, "call flow %q already exists", f.Name)
	}
	return f, nil
}

func (s *Store) GetCallFlow(id string) (CallFlow, error) {
	return getCallFlow(s.db, `id`, id)
}

func (s *Store) GetCallFlowByName(name string) (CallFlow, error) {
	return getCallFlow(s.db, `name`, name)
}

func getCallFlow(q querier, column, value string) (CallFlow, error) {
	f, err := scanCallFlow(q.QueryRow(`SELECT `+callFlowColumns+` FROM call_flows WHERE `+column+` = ?`, value))
	if err == sql.ErrNoRows {
		return CallFlow{}, ErrNotFound
	}
	return f, err
}

// ListCallFlows returns call flows ordered by name.
func (s *Store) ListCallFlows(limit int) ([]CallFlow, error) {
	rows, err := s.db.Query(`SELECT `+callFlowColumns+` FROM call_flows ORDER BY name ASC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CallFlow{}
	for rows.Next() {
		f, err := scanCallFlow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateCallFlow replaces every editable field of the flow with id.
func (s *Store) UpdateCallFlow(id string, f CallFlow) (CallFlow, error) {
	return updateCallFlow(s.db, id, f)
}

func updateCallFlow(q querier, id string, f CallFlow) (CallFlow, error) {
	if f.Name == "" {
		return CallFlow{}, fmt.Errorf("%w: call flow name is required", ErrInvalid)
	}
	steps, err := encodeSteps(f.Steps)
	if err != nil {
		return CallFlow{}, err
	}
	err = mustAffect(q.Exec(`
		UPDATE call_flows SET name = ?, description = ?, calling_number = ?, called_number = ?,
			expected_result = ?, steps = ?, updated_at = ?
		WHERE id = ?`,
		f.Name, f.Description, f.CallingNumber, f.CalledNumber, f.ExpectedResult, steps,
		formatTime(time.Now()), id))
	if err != nil {
		return CallFlow{}, conflict(err, "call flow %q already exists", f.Name)
	}
	return getCallFlow(q, `id`, id)
}

// upsertCallFlowByName inserts f or, when a flow with the same name exists,
// overwrites it keeping its id and created_at. The bool reports an insert.
func upsertCallFlowByName(q querier, f CallFlow) (CallFlow, bool, error) {
	existing, err := getCallFlow(q, `name`, f.Name)
	switch {
	case err == ErrNotFound:
		out, err := createCallFlow(q, f)
		return out, err == nil, err
	case err != nil:
		return CallFlow{}, false, err
	}
	out, err := updateCallFlow(q, existing.ID, f)
	return out, false, err
}

// UpsertCallFlows upserts every flow by name in one transaction. Either all
// flows are written or none are. created[i] reports whether fs[i] was new.
func (s *Store) UpsertCallFlows(fs []CallFlow) (created []bool, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning call flow import: %w", err)
	}
	defer tx.Rollback()

	created = make([]bool, len(fs))
	for i, f := range fs {
		if _, created[i], err = upsertCallFlowByName(tx, f); err != nil {
			return nil, fmt.Errorf("saving flow %q: %w", f.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing call flow import: %w", err)
	}
	return created, nil
}

func (s *Store) DeleteCallFlow(id string) error {
	return mustAffect(s.db.Exec(`DELETE FROM call_flows WHERE id = ?`, id))
}
