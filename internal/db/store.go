// exposes a Store interface that is passed to API calls w/ param requirements
package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

// Store is the storage port. Lookups of absent entities return an error
// wrapping apperr.ErrNotFound; uniqueness violations return an apperr
// conflict. No method enforces the capacity limits, see package capacity.
type Store interface {
	Ping(ctx context.Context) error

	// campaign functions
	CreateCampaign(ctx context.Context, c model.Campaign) (model.Campaign, error)
	GetCampaignByID(ctx context.Context, id string) (model.Campaign, error)
	GetCampaignsByIDs(ctx context.Context, ids []string) ([]model.Campaign, error)
	ListCampaigns(ctx context.Context, f model.CampaignFilter) ([]model.Campaign, int, error)
	UpdateCampaign(ctx context.Context, id string, name, description *string) (model.Campaign, error)
	// DeleteCampaign removes the campaign and its assets, returning how many
	// assets went with it.
	DeleteCampaign(ctx context.Context, id string) (int, error)

	// asset functions
	CreateAsset(ctx context.Context, a model.Asset) (model.Asset, error)
	GetAssetByID(ctx context.Context, id string) (model.Asset, error)
	GetAssetsByIDs(ctx context.Context, ids []string) ([]model.Asset, error)
	ListAssets(ctx context.Context, f model.AssetFilter) ([]model.Asset, int, error)
	// ListAssetsByCampaign returns a campaign's assets oldest first.
	ListAssetsByCampaign(ctx context.Context, campaignID string) ([]model.Asset, error)
	CountAssetsByCampaign(ctx context.Context, campaignIDs []string) (map[string]int, error)
	UpdateAsset(ctx context.Context, id string, u model.AssetUpdate) (model.Asset, error)
	DeleteAsset(ctx context.Context, id string) error

	// playlist functions
	CreatePlaylist(ctx context.Context, p model.Playlist) (model.Playlist, error)
	GetPlaylistByID(ctx context.Context, id string) (model.Playlist, error)
	ListPlaylists(ctx context.Context, f model.PlaylistFilter) ([]model.Playlist, int, error)
	// SavePlaylist overwrites every mutable field of an existing playlist.
	SavePlaylist(ctx context.Context, p model.Playlist) (model.Playlist, error)
	DeletePlaylist(ctx context.Context, id string) error
	// PlaylistsReferencing lists ids of playlists that reference the campaign
	// or the direct asset. Empty arguments are ignored.
	PlaylistsReferencing(ctx context.Context, campaignID, assetID string) ([]string, error)

	// display functions
	CreateDisplay(ctx context.Context, d model.Display) (model.Display, error)
	GetDisplayByID(ctx context.Context, id string) (model.Display, error)
	GetDisplayByDeviceID(ctx context.Context, deviceID string) (model.Display, error)
	ListDisplays(ctx context.Context, f model.DisplayFilter) ([]model.Display, int, error)
	SaveDisplay(ctx context.Context, d model.Display) (model.Display, error)
	DeleteDisplay(ctx context.Context, id string) error
	// RecordDisplayActivity bumps lastActiveAt, adds minutes to the running
	// total and marks the display online.
	RecordDisplayActivity(ctx context.Context, deviceID string, minutes int, at time.Time) (model.Display, error)

	// proof-of-play functions
	InsertPlaybackLogs(ctx context.Context, entries []model.PlaybackLogEntry) (int, error)
	// ListPlaybackLogs returns matching entries newest first. A zero
	// f.Page.Limit returns every match.
	ListPlaybackLogs(ctx context.Context, f model.PlaybackFilter) ([]model.PlaybackLogEntry, int, error)
}

type pgStore struct {
	db *sqlx.DB
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

func NewStore(conn *sqlx.DB) Store {
	return &pgStore{db: conn}
}

func (s *pgStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
