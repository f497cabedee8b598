package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const resultColumns = `id, call_flow_id, upload_id, outcome, notes, executed_by, executed_at`

// ValidOutcome reports whether o is pass, fail or blocked.
func ValidOutcome(o string) bool {
	switch o {
	case OutcomePass, OutcomeFail, OutcomeBlocked:
		return true
	}
	return false
}

func scanResult(row scanner) (Result, error) {
	var r Result
	var executedAt string
	if err := row.Scan(&r.ID, &r.CallFlowID, &r.UploadID, &r.Outcome, &r.Notes, &r.ExecutedBy, &executedAt); err != nil {
		return Result{}, err
	}
	var err error
	r.ExecutedAt, err = parseTime("executed_at", executedAt)
	return r, err
}

// CreateResult records a call flow execution. The call flow and upload ids
// are stored as given and not checked.
func (s *Store) CreateResult(r Result) (Result, error) {
	if !ValidOutcome(r.Outcome) {
		return Result{}, fmt.Errorf("%w: outcome %q must be pass, fail or blocked", ErrInvalid, r.Outcome)
	}
	r.ID = newID(r.ID)
	if r.ExecutedAt.IsZero() {
		r.ExecutedAt = time.Now().UTC().Truncate(time.Second)
	}
	_, err := s.db.Exec(`INSERT INTO results (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CallFlowID, r.UploadID, r.Outcome, r.Notes, r.ExecutedBy, formatTime(r.ExecutedAt))
	if err != nil {
		return Result{}, conflict(err, "result %s already exists", r.ID)
	}
	return r, nil
}

func (s *Store) GetResult(id string) (Result, error) {
	r, err := scanResult(s.db.QueryRow(`SELECT `+resultColumns+` FROM results WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Result{}, ErrNotFound
	}
	return r, err
}

// ListResults returns results newest first, for one call flow when
// callFlowID is set.
func (s *Store) ListResults(callFlowID string, limit int) ([]Result, error) {
	q := `SELECT ` + resultColumns + ` FROM results`
	args := []any{}
	if callFlowID != "" {
		q += ` WHERE call_flow_id = ?`
		args = append(args, callFlowID)
	}
	q += ` ORDER BY executed_at DESC LIMIT ?`
	args = append(args, clampLimit(limit))

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateResult changes the outcome and notes of a result.
func (s *Store) UpdateResult(id, outcome, notes string) error {
	if !ValidOutcome(outcome) {
		return fmt.Errorf("%w: outcome %q must be pass, fail or blocked", ErrInvalid, outcome)
	}
	return mustAffect(s.db.Exec(`UPDATE results SET outcome = ?, notes = ? WHERE id = ?`, outcome, notes, id))
}

func (s *Store) DeleteResult(id string) error {
	return mustAffect(s.db.Exec(`DELETE FROM results WHERE id = ?`, id))
}
