package db

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

const playbackColumns = `id, device_id, asset_id, playlist_id, start_time, end_time, duration_seconds, logged_at`

// InsertPlaybackLogs inserts row by row inside one transaction; a row the
// database rejects is skipped and logged so the rest of the batch lands.
func (s *pgStore) InsertPlaybackLogs(ctx context.Context, entries []model.PlaybackLogEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}

	const q = `
	INSERT INTO playback_logs (device_id, asset_id, playlist_id, start_time, end_time, duration_seconds, logged_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7);`

	inserted := 0
	for i, e := range entries {
		loggedAt := e.LoggedAt
		if loggedAt.IsZero() {
			loggedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, `SAVEPOINT playback_row;`); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, q,
			e.DeviceID, e.AssetID, e.PlaylistID, e.StartTime.UTC(), e.EndTime.UTC(), e.DurationSeconds, loggedAt,
		); err != nil {
			log.Warn().Err(err).Int("index", i).Str("device_id", e.DeviceID).
				Msg("[db] InsertPlaybackLogs: row rejected")
			if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT playback_row;`); rbErr != nil {
				_ = tx.Rollback()
				return 0, rbErr
			}
			continue
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Msg("[db] InsertPlaybackLogs: commit failed")
		return 0, err
	}
	return inserted, nil
}

func (s *pgStore) ListPlaybackLogs(ctx context.Context, f model.PlaybackFilter) ([]model.PlaybackLogEntry, int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var fq filterQuery
	if f.DeviceID != "" {
		fq.add("device_id = ?", f.DeviceID)
	}
	if f.AssetID != "" {
		fq.add("asset_id = ?", f.AssetID)
	}
	if f.PlaylistID != "" {
		fq.add("playlist_id = ?", f.PlaylistID)
	}
	if !f.From.IsZero() {
		fq.add("start_time >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		fq.add("start_time < ?", f.To.UTC())
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM playback_logs`+fq.where(), fq.args...); err != nil {
		log.Error().Err(err).Msg("[db] ListPlaybackLogs: count failed")
		return nil, 0, mapErr(err, "playback logs")
	}

	q := `SELECT ` + playbackColumns + ` FROM playback_logs` + fq.where()
	if f.Page.Limit > 0 {
		p := model.Page{Page: f.Page.Page, Limit: f.Page.Limit, SortBy: "startTime"}.Normalize("startTime", "startTime")
		q += fq.page(p, map[string]string{"startTime": "start_time"})
	} else {
		q += ` ORDER BY start_time DESC, id DESC`
	}

	var out []model.PlaybackLogEntry
	if err := s.db.SelectContext(ctx, &out, q, fq.args...); err != nil {
		log.Error().Err(err).Msg("[db] ListPlaybackLogs: select failed")
		return nil, 0, mapErr(err, "playback logs")
	}
	return out, total, nil
}
