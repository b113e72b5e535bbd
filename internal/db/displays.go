package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

const displayColumns = `id, name, device_id, location, status, resolution, playlist_id, owner_id, last_active_at, total_active_minutes, created_at, updated_at`

func (s *pgStore) CreateDisplay(ctx context.Context, d model.Display) (model.Display, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = model.DisplayOffline
	}
	var out model.Display
	q := `
	INSERT INTO displays (id, name, device_id, location, status, resolution, playlist_id, owner_id, total_active_minutes, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, now(), now())
	RETURNING ` + displayColumns + `;`
	if err := s.db.GetContext(ctx, &out, q,
		d.ID, d.Name, d.DeviceID, d.Location, d.Status, d.Resolution, d.PlaylistID, d.OwnerID,
	); err != nil {
		log.Error().Err(err).Str("device_id", d.DeviceID).Msg("[db] CreateDisplay: failed to insert display")
		return model.Display{}, mapErr(err, "display")
	}
	return out, nil
}

func (s *pgStore) GetDisplayByID(ctx context.Context, id string) (model.Display, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var d model.Display
	if err := s.db.GetContext(ctx, &d, `SELECT `+displayColumns+` FROM displays WHERE id = $1;`, id); err != nil {
		return model.Display{}, mapErr(err, "display")
	}
	return d, nil
}

func (s *pgStore) GetDisplayByDeviceID(ctx context.Context, deviceID string) (model.Display, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var d model.Display
	if err := s.db.GetContext(ctx, &d, `SELECT `+displayColumns+` FROM displays WHERE device_id = $1;`, deviceID); err != nil {
		return model.Display{}, mapErr(err, "display")
	}
	return d, nil
}

func (s *pgStore) ListDisplays(ctx context.Context, f model.DisplayFilter) ([]model.Display, int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var fq filterQuery
	if f.OwnerID != "" {
		fq.add("owner_id = ?", f.OwnerID)
	}
	if f.Status != "" {
		fq.add("status = ?", f.Status)
	}
	if f.Search != "" {
		fq.add("(name ILIKE ? OR location ILIKE ? OR device_id ILIKE ?)", likePattern(f.Search))
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM displays`+fq.where(), fq.args...); err != nil {
		log.Error().Err(err).Msg("[db] ListDisplays: count failed")
		return nil, 0, mapErr(err, "displays")
	}

	var out []model.Display
	q := `SELECT ` + displayColumns + ` FROM displays` + fq.where()
	q += fq.page(f.Page, displaySorts)
	if err := s.db.SelectContext(ctx, &out, q, fq.args...); err != nil {
		log.Error().Err(err).Msg("[db] ListDisplays: select failed")
		return nil, 0, mapErr(err, "displays")
	}
	return out, total, nil
}

func (s *pgStore) SaveDisplay(ctx context.Context, d model.Display) (model.Display, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var out model.Display
	err := s.db.GetContext(ctx, &out, `
		UPDATE displays
		SET name = $2,
		device_id = $3,
		location = $4,
		status = $5,
		resolution = $6,
		playlist_id = $7,
		updated_at = $8
		WHERE id = $1
		RETURNING `+displayColumns+`;`,
		d.ID, d.Name, d.DeviceID, d.Location, d.Status, d.Resolution, d.PlaylistID, time.Now().UTC(),
	)
	if err != nil {
		log.Error().Err(err).Str("display_id", d.ID).Msg("[db] SaveDisplay: failed")
		return model.Display{}, mapErr(err, "display")
	}
	return out, nil
}

func (s *pgStore) DeleteDisplay(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM displays WHERE id = $1;`, id)
	if err != nil {
		log.Error().Err(err).Str("display_id", id).Msg("[db] DeleteDisplay: failed")
		return mapErr(err, "display")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapErr(sql.ErrNoRows, "display")
	}
	return nil
}

func (s *pgStore) RecordDisplayActivity(ctx context.Context, deviceID string, minutes int, at time.Time) (model.Display, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var d model.Display
	err := s.db.GetContext(ctx, &d, `
		UPDATE displays
		SET last_active_at = $2,
		total_active_minutes = total_active_minutes + $3,
		status = 'online',
		updated_at = $2
		WHERE device_id = $1
		RETURNING `+displayColumns+`;`,
		deviceID, at.UTC(), minutes,
	)
	if err != nil {
		if !isNotFound(err) {
			log.Error().Err(err).Str("device_id", deviceID).Msg("[db] RecordDisplayActivity: failed")
		}
		return model.Display{}, mapErr(err, "display")
	}
	return d, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
