package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const locationColumns = `id, name, site_code, address, timezone, device_pool, created_at`

func scanLocation(row scanner) (Location, error) {
	var l Location
	var createdAt string
	if err := row.Scan(&l.ID, &l.Name, &l.SiteCode, &l.Address, &l.Timezone, &l.DevicePool, &createdAt); err != nil {
		return Location{}, err
	}
	var err error
	l.CreatedAt, err = parseTime("created_at", createdAt)
	return l, err
}

func validateLocation(l Location) error {
	if l.Name == "" {
		return fmt.Errorf("%w: location name is required", ErrInvalid)
	}
	if l.Timezone != "" {
		if _, err := time.LoadLocation(l.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalid, l.Timezone)
		}
	}
	return nil
}

func (s *Store) CreateLocation(l Location) (Location, error) {
	if err := validateLocation(l); err != nil {
		return Location{}, err
	}
	l.ID = newID(l.ID)
	l.CreatedAt = time.Now().UTC().Truncate(time.Second)
	_, err := s.db.Exec(`INSERT INTO locations (`+locationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.SiteCode, l.Address, l.Timezone, l.DevicePool, formatTime(l.CreatedAt))
	if err != nil {
		return Location{}, conflict(err, "location %s already exists", l.ID)
	}
	return l, nil
}

func (s *Store) GetLocation(id string) (Location, error) {
	l, err := scanLocation(s.db.QueryRow(`SELECT `+locationColumns+` FROM locations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Location{}, ErrNotFound
	}
	return l, err
}

func (s *Store) ListLocations(limit int) ([]Location, error) {
	rows, err := s.db.Query(`SELECT `+locationColumns+` FROM locations ORDER BY name ASC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Location{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) UpdateLocation(id string, l Location) (Location, error) {
	if err := validateLocation(l); err != nil {
		return Location{}, err
	}
	err := mustAffect(s.db.Exec(`
		UPDATE locations SET name = ?, site_code = ?, address = ?, timezone = ?, device_pool = ?
		WHERE id = ?`,
		l.Name, l.SiteCode, l.Address, l.Timezone, l.DevicePool, id))
	if err != nil {
		return Location{}, err
	}
	return s.GetLocation(id)
}

func (s *Store) DeleteLocation(id string) error {
	return mustAffect(s.db.Exec(`DELETE FROM locations WHERE id = ?`, id))
}
