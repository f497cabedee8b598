package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const uploadColumns = `id, filename, content_type, size, stored_path, description, preview, created_at`

func scanUpload(row scanner) (Upload, error) {
	var u Upload
	var createdAt string
	if err := row.Scan(&u.ID, &u.Filename, &u.ContentType, &u.Size, &u.StoredPath, &u.Description, &u.Preview, &createdAt); err != nil {
		return Upload{}, err
	}
	var err error
	u.CreatedAt, err = parseTime("created_at", createdAt)
	return u, err
}

// CreateUpload records a stored file. ID and CreatedAt are filled when empty.
func (s *Store) CreateUpload(u Upload) (Upload, error) {
	if u.Filename == "" || u.StoredPath == "" {
		return Upload{}, fmt.Errorf("%w: filename and stored path are required", ErrInvalid)
	}
	u.ID = newID(u.ID)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	_, err := s.db.Exec(`INSERT INTO uploads (`+uploadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Filename, u.ContentType, u.Size, u.StoredPath, u.Description, u.Preview, formatTime(u.CreatedAt))
	if err != nil {
		return Upload{}, err
	}
	return u, nil
}

func (s *Store) GetUpload(id string) (Upload, error) {
	u, err := scanUpload(s.db.QueryRow(`SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Upload{}, ErrNotFound
	}
	return u, err
}

// ListUploads returns uploads, newest first.
func (s *Store) ListUploads(limit int) ([]Upload, error) {
	rows, err := s.db.Query(`SELECT `+uploadColumns+` FROM uploads ORDER BY created_at DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Upload{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) UpdateUploadDescription(id, description string) error {
	return mustAffect(s.db.Exec(`UPDATE uploads SET description = ? WHERE id = ?`, description, id))
}

func (s *Store) SetUploadPreview(id, preview string) error {
	return mustAffect(s.db.Exec(`UPDATE uploads SET preview = ? WHERE id = ?`, preview, id))
}

// DeleteUpload removes the record and returns it so the caller can remove
// the stored file.
func (s *Store) DeleteUpload(id string) (Upload, error) {
	u, err := s.GetUpload(id)
	if err != nil {
		return Upload{}, err
	}
	if err := mustAffect(s.db.Exec(`DELETE FROM uploads WHERE id = ?`, id)); err != nil {
		return Upload{}, err
	}
	return u, nil
}
