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

const assetColumns = `id, name, media_type, url, thumbnail, duration_seconds, size_bytes, owner_id, campaign_id, created_at, updated_at`

func (s *pgStore) CreateAsset(ctx context.Context, a model.Asset) (model.Asset, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	var out model.Asset
	query := `
	INSERT INTO assets
	(id, name, media_type, url, thumbnail, duration_seconds, size_bytes, owner_id, campaign_id, created_at, updated_at)
	VALUES
	($1, $2,   $3,         $4,  $5,        $6,               $7,         $8,       $9,          clock_timestamp(), clock_timestamp())
	RETURNING ` + assetColumns + `;`

	if err := s.db.GetContext(ctx, &out, query,
		a.ID, a.Name, a.MediaType, a.URL, a.Thumbnail, a.DurationSeconds, a.SizeBytes, a.OwnerID, a.CampaignID,
	); err != nil {
		log.Error().Err(err).Str("owner_id", a.OwnerID).Msg("[db] CreateAsset: failed to insert asset")
		return model.Asset{}, mapErr(err, "asset")
	}
	return out, nil
}

func (s *pgStore) GetAssetByID(ctx context.Context, id string) (model.Asset, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var a model.Asset
	if err := s.db.GetContext(ctx, &a, `SELECT `+assetColumns+` FROM assets WHERE id = $1;`, id); err != nil {
		return model.Asset{}, mapErr(err, "asset")
	}
	return a, nil
}

func (s *pgStore) GetAssetsByIDs(ctx context.Context, ids []string) ([]model.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var out []model.Asset
	if err := s.db.SelectContext(ctx, &out, `SELECT `+assetColumns+` FROM assets WHERE id = ANY($1);`, pq.Array(ids)); err != nil {
		log.Error().Err(err).Int("ids", len(ids)).Msg("[db] GetAssetsByIDs: select failed")
		return nil, mapErr(err, "assets")
	}
	return out, nil
}

func (s *pgStore) ListAssets(ctx context.Context, f model.AssetFilter) ([]model.Asset, int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var fq filterQuery
	if f.OwnerID != "" {
		fq.add("owner_id = ?", f.OwnerID)
	}
	if f.CampaignID != "" {
		fq.add("campaign_id = ?", f.CampaignID)
	}
	if f.DirectOnly {
		fq.conds = append(fq.conds, "campaign_id IS NULL")
	}
	if f.MediaType != "" {
		fq.add("media_type = ?", f.MediaType)
	}
	if f.Search != "" {
		fq.add("name ILIKE ?", likePattern(f.Search))
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM assets`+fq.where(), fq.args...); err != nil {
		log.Error().Err(err).Msg("[db] ListAssets: count failed")
		return nil, 0, mapErr(err, "assets")
	}

	var out []model.Asset
	q := `SELECT ` + assetColumns + ` FROM assets` + fq.where()
	q += fq.page(f.Page, assetSorts)
	if err := s.db.SelectContext(ctx, &out, q, fq.args...); err != nil {
		log.Error().Err(err).Msg("[db] ListAssets: select failed")
		return nil, 0, mapErr(err, "assets")
	}
	return out, total, nil
}

func (s *pgStore) ListAssetsByCampaign(ctx context.Context, campaignID string) ([]model.Asset, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var out []model.Asset
	const q = `SELECT ` + assetColumns + ` FROM assets WHERE campaign_id = $1 ORDER BY created_at ASC, id ASC;`
	if err := s.db.SelectContext(ctx, &out, q, campaignID); err != nil {
		log.Error().Err(err).Str("campaign_id", campaignID).Msg("[db] ListAssetsByCampaign: select failed")
		return nil, mapErr(err, "campaign assets")
	}
	return out, nil
}

func (s *pgStore) CountAssetsByCampaign(ctx context.Context, campaignIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(campaignIDs))
	if len(campaignIDs) == 0 {
		return out, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rows []struct {
		CampaignID string `db:"campaign_id"`
		N          int    `db:"n"`
	}
	const q = `
	SELECT campaign_id, COUNT(*) AS n
	  FROM assets
	 WHERE campaign_id = ANY($1)
	 GROUP BY campaign_id;`
	if err := s.db.SelectContext(ctx, &rows, q, pq.Array(campaignIDs)); err != nil {
		log.Error().Err(err).Msg("[db] CountAssetsByCampaign: failed")
		return nil, mapErr(err, "asset counts")
	}
	for _, r := range rows {
		out[r.CampaignID] = r.N
	}
	return out, nil
}

func (s *pgStore) UpdateAsset(ctx context.Context, id string, u model.AssetUpdate) (model.Asset, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var a model.Asset
	err := s.db.GetContext(ctx, &a, `
		UPDATE assets
		SET
		name             = COALESCE($2, name),
		media_type       = COALESCE($3, media_type),
		url              = COALESCE($4, url),
		thumbnail        = COALESCE($5, thumbnail),
		duration_seconds = COALESCE($6, duration_seconds),
		campaign_id      = CASE WHEN $8 THEN NULL ELSE COALESCE($7, campaign_id) END,
		updated_at       = $9
		WHERE id = $1
		RETURNING `+assetColumns+`;`,
		id, u.Name, u.MediaType, u.URL, u.Thumbnail, u.DurationSeconds, u.CampaignID, u.ClearCampaign, time.Now().UTC(),
	)
	if err != nil {
		log.Error().Err(err).Str("asset_id", id).Msg("[db] UpdateAsset: failed")
		return model.Asset{}, mapErr(err, "asset")
	}
	return a, nil
}

func (s *pgStore) DeleteAsset(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1;`, id)
	if err != nil {
		log.Error().Err(err).Str("asset_id", id).Msg("[db] DeleteAsset: failed")
		return mapErr(err, "asset")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapErr(sql.ErrNoRows, "asset")
	}
	return nil
}
