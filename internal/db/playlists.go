package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

const playlistColumns = `id, name, description, owner_id, status, campaign_ids, asset_ids, schedule, legacy_items, created_at, updated_at`

// playlistRow is the SQL shape of model.Playlist; id lists live in text[].
type playlistRow struct {
	ID          string            `db:"id"`
	Name        string            `db:"name"`
	Description *string           `db:"description"`
	OwnerID     string            `db:"owner_id"`
	Status      string            `db:"status"`
	CampaignIDs pq.StringArray    `db:"campaign_ids"`
	AssetIDs    pq.StringArray    `db:"asset_ids"`
	Schedule    *model.Schedule   `db:"schedule"`
	LegacyItems model.LegacyItems `db:"legacy_items"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
}

func (r playlistRow) toModel() model.Playlist {
	p := model.Playlist{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		OwnerID:     r.OwnerID,
		Status:      model.PlaylistStatus(r.Status),
		CampaignIDs: []string(r.CampaignIDs),
		AssetIDs:    []string(r.AssetIDs),
		Schedule:    r.Schedule,
		LegacyItems: r.LegacyItems,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if p.CampaignIDs == nil {
		p.CampaignIDs = []string{}
	}
	if p.AssetIDs == nil {
		p.AssetIDs = []string{}
	}
	return p
}

func (s *pgStore) CreatePlaylist(ctx context.Context, p model.Playlist) (model.Playlist, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = model.PlaylistActive
	}
	var row playlistRow
	q := `
    INSERT INTO playlists (id, name, description, owner_id, status, campaign_ids, asset_ids, schedule, legacy_items, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
    RETURNING ` + playlistColumns + `;`
	if err := s.db.GetContext(ctx, &row, q,
		p.ID, p.Name, p.Description, p.OwnerID, p.Status,
		pq.Array(nonNil(p.CampaignIDs)), pq.Array(nonNil(p.AssetIDs)), p.Schedule, p.LegacyItems,
	); err != nil {
		log.Error().Err(err).Str("owner_id", p.OwnerID).Msg("[db] CreatePlaylist: failed to insert playlist")
		return model.Playlist{}, mapErr(err, "playlist")
	}
	return row.toModel(), nil
}

func (s *pgStore) GetPlaylistByID(ctx context.Context, id string) (model.Playlist, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var row playlistRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+playlistColumns+` FROM playlists WHERE id = $1;`, id); err != nil {
		return model.Playlist{}, mapErr(err, "playlist")
	}
	return row.toModel(), nil
}

func (s *pgStore) ListPlaylists(ctx context.Context, f model.PlaylistFilter) ([]model.Playlist, int, error) {
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
		fq.add("(name ILIKE ? OR description ILIKE ?)", likePattern(f.Search))
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM playlists`+fq.where(), fq.args...); err != nil {
		log.Error().Err(err).Msg("[db] ListPlaylists: count failed")
		return nil, 0, mapErr(err, "playlists")
	}

	var rows []playlistRow
	q := `SELECT ` + playlistColumns + ` FROM playlists` + fq.where()
	q += fq.page(f.Page, playlistSorts)
	if err := s.db.SelectContext(ctx, &rows, q, fq.args...); err != nil {
		log.Error().Err(err).Msg("[db] ListPlaylists: failed to select playlists")
		return nil, 0, mapErr(err, "playlists")
	}
	out := make([]model.Playlist, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, total, nil
}

func (s *pgStore) SavePlaylist(ctx context.Context, p model.Playlist) (model.Playlist, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var row playlistRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE playlists
		SET
		name         = $2,
		description  = $3,
		status       = $4,
		campaign_ids = $5,
		asset_ids    = $6,
		schedule     = $7,
		legacy_items = $8,
		updated_at   = $9
		WHERE id = $1
		RETURNING `+playlistColumns+`;`,
		p.ID, p.Name, p.Description, p.Status,
		pq.Array(nonNil(p.CampaignIDs)), pq.Array(nonNil(p.AssetIDs)), p.Schedule, p.LegacyItems,
		time.Now().UTC(),
	)
	if err != nil {
		log.Error().Err(err).Str("playlist_id", p.ID).Msg("[db] SavePlaylist: failed to update playlist")
		return model.Playlist{}, mapErr(err, "playlist")
	}
	return row.toModel(), nil
}

func (s *pgStore) DeletePlaylist(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = $1;`, id)
	if err != nil {
		log.Error().Err(err).Str("playlist_id", id).Msg("[db] DeletePlaylist: failed")
		return mapErr(err, "playlist")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapErr(sql.ErrNoRows, "playlist")
	}
	return nil
}

func (s *pgStore) PlaylistsReferencing(ctx context.Context, campaignID, assetID string) ([]string, error) {
	if campaignID == "" && assetID == "" {
		return nil, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var ids []string
	const q = `
	SELECT id FROM playlists
	 WHERE ($1 <> '' AND $1 = ANY(campaign_ids))
	    OR ($2 <> '' AND $2 = ANY(asset_ids))
	 ORDER BY id;`
	if err := s.db.SelectContext(ctx, &ids, q, campaignID, assetID); err != nil {
		log.Error().Err(err).Str("campaign_id", campaignID).Str("asset_id", assetID).
			Msg("[db] PlaylistsReferencing: failed")
		return nil, mapErr(err, "playlists")
	}
	return ids, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
