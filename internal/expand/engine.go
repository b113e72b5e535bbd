// Package expand resolves a playlist into the ordered, de-duplicated list of
// assets a player should show, and renders that list in the wire shapes the
// player firmware understands.
package expand

import (
	"context"
	"errors"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Nixie-Tech-LLC/marquee/internal/apperr"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

// ErrMissingTarget is wrapped by every error caused by an unusable target:
// no ids at all, an unknown device, or a device without a playlist.
var ErrMissingTarget = errors.New("missing playlist target")

// maxConcurrentLoads bounds the campaign-asset loads in flight per expansion.
const maxConcurrentLoads = 4

var (
	expansionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_expansions_total",
		Help: "Playlist expansions by result.",
	}, []string{"result"})

	droppedRefsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_expansion_dropped_refs_total",
		Help: "Stale campaign or asset references skipped during expansion.",
	}, []string{"kind"})
)

// Store is the read-only slice of db.Store the engine depends on.
type Store interface {
	GetPlaylistByID(ctx context.Context, id string) (model.Playlist, error)
	GetDisplayByDeviceID(ctx context.Context, deviceID string) (model.Display, error)
	GetCampaignsByIDs(ctx context.Context, ids []string) ([]model.Campaign, error)
	ListAssetsByCampaign(ctx context.Context, campaignID string) ([]model.Asset, error)
	GetAssetsByIDs(ctx context.Context, ids []string) ([]model.Asset, error)
}

// Target names the playlist to expand. PlaylistID wins when both are set.
type Target struct {
	PlaylistID string
	DeviceID   string
}

// Item is one emitted asset. Campaign is nil for direct and legacy assets.
type Item struct {
	Asset           model.Asset
	Campaign        *model.Campaign
	DurationSeconds int
}

// CampaignBlock summarizes one resolved campaign in expansion order.
type CampaignBlock struct {
	Campaign        model.Campaign
	AssetCount      int
	DurationSeconds int
}

// ExpandedPlaylist is the canonical expansion result all shapes render from.
type ExpandedPlaylist struct {
	Playlist  model.Playlist
	Items     []Item
	Campaigns []CampaignBlock
	// Legacy is set when the items came from the legacy fallback.
	Legacy bool
}

// TotalDurationSeconds sums the effective durations of every item.
func (e ExpandedPlaylist) TotalDurationSeconds() int {
	total := 0
	for _, it := range e.Items {
		total += it.DurationSeconds
	}
	return total
}

type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Expand resolves t into an ExpandedPlaylist. A missing playlist is a
// not-found error; stale campaign and asset references are skipped.
func (e *Engine) Expand(ctx context.Context, t Target) (ExpandedPlaylist, error) {
	playlistID, err := e.resolveTarget(ctx, t)
	if err != nil {
		expansionsTotal.WithLabelValues("missing_target").Inc()
		return ExpandedPlaylist{}, err
	}

	pl, err := e.store.GetPlaylistByID(ctx, playlistID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			expansionsTotal.WithLabelValues("not_found").Inc()
			return ExpandedPlaylist{}, apperr.Wrap(apperr.KindNotFound, err, "playlist %s not found", playlistID)
		}
		expansionsTotal.WithLabelValues("error").Inc()
		return ExpandedPlaylist{}, err
	}

	out := ExpandedPlaylist{Playlist: pl, Items: []Item{}, Campaigns: []CampaignBlock{}}
	if pl.Status == model.PlaylistInactive {
		expansionsTotal.WithLabelValues("inactive").Inc()
		return out, nil
	}

	seen := make(map[string]struct{})
	emit := func(a model.Asset, c *model.Campaign, duration int) bool {
		if _, dup := seen[a.ID]; dup {
			return false
		}
		seen[a.ID] = struct{}{}
		out.Items = append(out.Items, Item{Asset: a, Campaign: c, DurationSeconds: duration})
		return true
	}

	blocks, err := e.loadCampaignBlocks(ctx, pl)
	if err != nil {
		expansionsTotal.WithLabelValues("error").Inc()
		return ExpandedPlaylist{}, err
	}
	for _, b := range blocks {
		c := b.campaign
		summary := CampaignBlock{Campaign: c}
		for _, a := range b.assets {
			d := a.EffectiveDuration()
			if emit(a, &c, d) {
				summary.AssetCount++
				summary.DurationSeconds += d
			}
		}
		out.Campaigns = append(out.Campaigns, summary)
	}

	direct, err := e.loadAssets(ctx, pl.ID, pl.AssetIDs)
	if err != nil {
		expansionsTotal.WithLabelValues("error").Inc()
		return ExpandedPlaylist{}, err
	}
	for _, a := range direct {
		emit(a, nil, a.EffectiveDuration())
	}

	if len(out.Items) == 0 && len(pl.LegacyItems) > 0 {
		if err := e.expandLegacy(ctx, pl, emit); err != nil {
			expansionsTotal.WithLabelValues("error").Inc()
			return ExpandedPlaylist{}, err
		}
		out.Legacy = len(out.Items) > 0
	}

	expansionsTotal.WithLabelValues("ok").Inc()
	return out, nil
}

func (e *Engine) resolveTarget(ctx context.Context, t Target) (string, error) {
	if t.PlaylistID != "" {
		return t.PlaylistID, nil
	}
	if t.DeviceID == "" {
		return "", apperr.Wrap(apperr.KindValidation, ErrMissingTarget, "playlistId or deviceId is required")
	}
	d, err := e.store.GetDisplayByDeviceID(ctx, t.DeviceID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return "", apperr.Wrap(apperr.KindNotFound, ErrMissingTarget, "no display registered for device %s", t.DeviceID)
		}
		return "", err
	}
	if d.PlaylistID == nil || *d.PlaylistID == "" {
		return "", apperr.Wrap(apperr.KindNotFound, ErrMissingTarget, "device %s has no playlist assigned", t.DeviceID)
	}
	return *d.PlaylistID, nil
}

type campaignBlock struct {
	campaign model.Campaign
	assets   []model.Asset
}

// loadCampaignBlocks loads every referenced campaign's assets concurrently
// and returns them in campaignIds order, skipping campaigns that no longer
// exist.
func (e *Engine) loadCampaignBlocks(ctx context.Context, pl model.Playlist) ([]campaignBlock, error) {
	if len(pl.CampaignIDs) == 0 {
		return nil, nil
	}
	found, err := e.store.GetCampaignsByIDs(ctx, pl.CampaignIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Campaign, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	blocks := make([]*campaignBlock, len(pl.CampaignIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, id := range pl.CampaignIDs {
		c, ok := byID[id]
		if !ok {
			droppedRefsTotal.WithLabelValues("campaign").Inc()
			log.Warn().Str("playlist_id", pl.ID).Str("campaign_id", id).
				Msg("[expand] skipping missing campaign")
			continue
		}
		g.Go(func() error {
			assets, err := e.store.ListAssetsByCampaign(gctx, c.ID)
			if err != nil {
				return err
			}
			blocks[i] = &campaignBlock{campaign: c, assets: assets}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]campaignBlock, 0, len(blocks))
	for _, b := range blocks {
		if b != nil {
			out = append(out, *b)
		}
	}
	return out, nil
}

// loadAssets batch-loads ids and returns the found assets in ids order.
func (e *Engine) loadAssets(ctx context.Context, playlistID string, ids []string) ([]model.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := e.store.GetAssetsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Asset, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	out := make([]model.Asset, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			droppedRefsTotal.WithLabelValues("asset").Inc()
			log.Warn().Str("playlist_id", playlistID).Str("asset_id", id).
				Msg("[expand] skipping missing asset")
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (e *Engine) expandLegacy(ctx context.Context, pl model.Playlist, emit func(model.Asset, *model.Campaign, int) bool) error {
	items := append(model.LegacyItems(nil), pl.LegacyItems...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.AssetID)
	}
	assets, err := e.loadAssets(ctx, pl.ID, ids)
	if err != nil {
		return err
	}
	byID := make(map[string]model.Asset, len(assets))
	for _, a := range assets {
		byID[a.ID] = a
	}
	for _, it := range items {
		a, ok := byID[it.AssetID]
		if !ok {
			continue
		}
		d := a.EffectiveDuration()
		if it.DurationOverride != nil {
			d = max(*it.DurationOverride, 0)
		}
		emit(a, nil, d)
	}
	return nil
}
