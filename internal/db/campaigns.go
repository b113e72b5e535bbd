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

const campaignColumns = `id, name, description, owner_id, created_at, updated_at`

func (s *pgStore) CreateCampaign(ctx context.Context, c model.Campaign) (model.Campaign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	var out model.Campaign
	q := `
	INSERT INTO campaigns (id, name, description, owner_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, now(), now())
	RETURNING ` + campaignColumns + `;`
	if err := s.db.GetContext(ctx, &out, q, c.ID, c.Name, c.Description, c.OwnerID); err != nil {
		log.Error().Err(err).Str("owner_id", c.OwnerID).Msg("[db] CreateCampaign: failed to insert campaign")
		return model.Campaign{}, mapErr(err, "campaign")
	}
	return out, nil
}

func (s *pgStore) GetCampaignByID(ctx context.Context, id string) (model.Campaign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var c model.Campaign
	err := s.db.GetContext(ctx, &c, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1;`, id)
	if err != nil {
		return model.Campaign{}, mapErr(err, "campaign")
	}
	return c, nil
}

func (s *pgStore) GetCampaignsByIDs(ctx context.Context, ids []string) ([]model.Campaign, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var out []model.Campaign
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = ANY($1);`
	if err := s.db.SelectContext(ctx, &out, q, pq.Array(ids)); err != nil {
		log.Error().Err(err).Int("ids", len(ids)).Msg("[db] GetCampaignsByIDs: select failed")
		return nil, mapErr(err, "campaigns")
	}
	return out, nil
}

func (s *pgStore) ListCampaigns(ctx context.Context, f model.CampaignFilter) ([]model.Campaign, int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var fq filterQuery
	if f.OwnerID != "" {
		fq.add("owner_id = ?", f.OwnerID)
	}
	if f.Search != "" {
		fq.add("(name ILIKE ? OR description ILIKE ?)", likePattern(f.Search))
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM campaigns`+fq.where(), fq.args...); err != nil {
		log.Error().Err(err).Msg("[db] ListCampaigns: count failed")
		return nil, 0, mapErr(err, "campaigns")
	}

	var out []model.Campaign
	q := `SELECT ` + campaignColumns + ` FROM campaigns` + fq.where()
	q += fq.page(f.Page, campaignSorts)
	if err := s.db.SelectContext(ctx, &out, q, fq.args...); err != nil {
		log.Error().Err(err).Msg("[db] ListCampaigns: select failed")
		return nil, 0, mapErr(err, "campaigns")
	}
	return out, total, nil
}

func (s *pgStore) UpdateCampaign(ctx context.Context, id string, name, description *string) (model.Campaign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var c model.Campaign
	err := s.db.GetContext(ctx, &c, `
		UPDATE campaigns
		SET
		name        = COALESCE($2, name),
		description = COALESCE($3, description),
		updated_at  = $4
		WHERE id = $1
		RETURNING `+campaignColumns+`;`,
		id, name, description, time.Now().UTC(),
	)
	if err != nil {
		log.Error().Err(err).Str("campaign_id", id).Msg("[db] UpdateCampaign: failed")
		return model.Campaign{}, mapErr(err, "campaign")
	}
	return c, nil
}

func (s *pgStore) DeleteCampaign(ctx context.Context, id string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("[db] DeleteCampaign: rollback failed")
			}
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE campaign_id = $1;`, id)
	if err != nil {
		log.Error().Err(err).Str("campaign_id", id).Msg("[db] DeleteCampaign: failed to cascade assets")
		return 0, mapErr(err, "campaign assets")
	}
	removed, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1;`, id)
	if err != nil {
		log.Error().Err(err).Str("campaign_id", id).Msg("[db] DeleteCampaign: failed")
		return 0, mapErr(err, "campaign")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = mapErr(sql.ErrNoRows, "campaign")
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return int(removed), nil
}
