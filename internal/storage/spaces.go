package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const spaceColumns = `id, name, uri, call_id, passcode, owner_jid, synced_at`

func scanSpace(row scanner) (CMSSpace, error) {
	var sp CMSSpace
	var syncedAt string
	if err := row.Scan(&sp.ID, &sp.Name, &sp.URI, &sp.CallID, &sp.Passcode, &sp.OwnerJID, &syncedAt); err != nil {
		return CMSSpace{}, err
	}
	var err error
	sp.SyncedAt, err = parseTime("synced_at", syncedAt)
	return sp, err
}

// UpsertCMSSpace writes the local copy of a coSpace keyed by its CMS id.
func (s *Store) UpsertCMSSpace(sp CMSSpace) error {
	if sp.ID == "" {
		return fmt.Errorf("%w: coSpace id is required", ErrInvalid)
	}
	if sp.SyncedAt.IsZero() {
		sp.SyncedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO cms_spaces (`+spaceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, uri = excluded.uri, call_id = excluded.call_id,
			passcode = excluded.passcode, owner_jid = excluded.owner_jid, synced_at = excluded.synced_at`,
		sp.ID, sp.Name, sp.URI, sp.CallID, sp.Passcode, sp.OwnerJID, formatTime(sp.SyncedAt))
	return err
}

func (s *Store) GetCMSSpace(id string) (CMSSpace, error) {
	sp, err := scanSpace(s.db.QueryRow(`SELECT `+spaceColumns+` FROM cms_spaces WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return CMSSpace{}, ErrNotFound
	}
	return sp, err
}

// ListCMSSpaces returns mirrored coSpaces ordered by name.
func (s *Store) ListCMSSpaces(limit int) ([]CMSSpace, error) {
	rows, err := s.db.Query(`SELECT `+spaceColumns+` FROM cms_spaces ORDER BY name ASC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CMSSpace{}
	for rows.Next() {
		sp, err := scanSpace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCMSSpace(id string) error {
	return mustAffect(s.db.Exec(`DELETE FROM cms_spaces WHERE id = ?`, id))
}

// PruneCMSSpaces drops spaces not seen by a sync that started at before.
func (s *Store) PruneCMSSpaces(before time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM cms_spaces WHERE synced_at < ?`, formatTime(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
