package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Nixie-Tech-LLC/marquee/internal/apperr"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

// MemoryStore is an in-process Store used by tests and STORE_DRIVER=memory.
// It mirrors the PostgreSQL store's constraints: campaign names are unique
// per owner, device ids are globally unique, deleting a campaign removes
// its assets.
type MemoryStore struct {
	mu sync.RWMutex

	campaigns map[string]model.Campaign
	assets    map[string]model.Asset
	assetSeq  map[string]int64
	playlists map[string]model.Playlist
	displays  map[string]model.Display
	playback  []model.PlaybackLogEntry

	seq int64
	// Now is the clock used for timestamps.
	Now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns: make(map[string]model.Campaign),
		assets:    make(map[string]model.Asset),
		assetSeq:  make(map[string]int64),
		playlists: make(map[string]model.Playlist),
		displays:  make(map[string]model.Display),
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func strPtr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// paginate sorts items by the page's sort key and returns the requested
// window plus the total.
func paginate[T any](items []T, p model.Page, keys map[string]func(a, b T) bool) ([]T, int) {
	total := len(items)
	less, ok := keys[p.SortBy]
	if !ok {
		less, ok = keys["createdAt"]
	}
	if ok {
		sort.SliceStable(items, func(i, j int) bool {
			if p.SortOrder == "asc" {
				return less(items[i], items[j])
			}
			return less(items[j], items[i])
		})
	}
	if p.Limit <= 0 {
		return items, total
	}
	start := p.Offset()
	if start >= total {
		return []T{}, total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return items[start:end], total
}

// ---- campaigns

func (m *MemoryStore) campaignNameTaken(ownerID, name, exceptID string) bool {
	for _, c := range m.campaigns {
		if c.ID != exceptID && c.OwnerID == ownerID && c.Name == name {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CreateCampaign(ctx context.Context, c model.Campaign) (model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.campaignNameTaken(c.OwnerID, c.Name, "") {
		return model.Campaign{}, apperr.Conflict("campaign already exists")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = m.Now()
	c.UpdatedAt = c.CreatedAt
	m.campaigns[c.ID] = c
	return c, nil
}

func (m *MemoryStore) GetCampaignByID(ctx context.Context, id string) (model.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.campaigns[id]
	if !ok {
		return model.Campaign{}, notFound("campaign")
	}
	return c, nil
}

func (m *MemoryStore) GetCampaignsByIDs(ctx context.Context, ids []string) ([]model.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Campaign
	for _, id := range ids {
		if c, ok := m.campaigns[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

var memCampaignSorts = map[string]func(a, b model.Campaign) bool{
	"name":      func(a, b model.Campaign) bool { return a.Name < b.Name },
	"createdAt": func(a, b model.Campaign) bool { return a.CreatedAt.Before(b.CreatedAt) },
	"updatedAt": func(a, b model.Campaign) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
}

func (m *MemoryStore) ListCampaigns(ctx context.Context, f model.CampaignFilter) ([]model.Campaign, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Campaign
	for _, c := range m.campaigns {
		if f.OwnerID != "" && c.OwnerID != f.OwnerID {
			continue
		}
		if f.Search != "" && !containsFold(c.Name, f.Search) && !containsFold(strPtr(c.Description), f.Search) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	page, total := paginate(out, f.Page, memCampaignSorts)
	return page, total, nil
}

func (m *MemoryStore) UpdateCampaign(ctx context.Context, id string, name, description *string) (model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return model.Campaign{}, notFound("campaign")
	}
	if name != nil {
		if m.campaignNameTaken(c.OwnerID, *name, id) {
			return model.Campaign{}, apperr.Conflict("campaign already exists")
		}
		c.Name = *name
	}
	if description != nil {
		c.Description = description
	}
	c.UpdatedAt = m.Now()
	m.campaigns[id] = c
	return c, nil
}

func (m *MemoryStore) DeleteCampaign(ctx context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.campaigns[id]; !ok {
		return 0, notFound("campaign")
	}
	removed := 0
	for aid, a := range m.assets {
		if a.CampaignID != nil && *a.CampaignID == id {
			delete(m.assets, aid)
			delete(m.assetSeq, aid)
			removed++
		}
	}
	delete(m.campaigns, id)
	return removed, nil
}

// ---- assets

func (m *MemoryStore) CreateAsset(ctx context.Context, a model.Asset) (model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.CampaignID != nil {
		if _, ok := m.campaigns[*a.CampaignID]; !ok {
			return model.Asset{}, apperr.Validation("campaign %s does not exist", *a.CampaignID)
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = m.Now()
	a.UpdatedAt = a.CreatedAt
	m.seq++
	m.assets[a.ID] = a
	m.assetSeq[a.ID] = m.seq
	return a, nil
}

func (m *MemoryStore) GetAssetByID(ctx context.Context, id string) (model.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assets[id]
	if !ok {
		return model.Asset{}, notFound("asset")
	}
	return a, nil
}

func (m *MemoryStore) GetAssetsByIDs(ctx context.Context, ids []string) ([]model.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Asset
	for _, id := range ids {
		if a, ok := m.assets[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

var memAssetSorts = map[string]func(a, b model.Asset) bool{
	"name":      func(a, b model.Asset) bool { return a.Name < b.Name },
	"createdAt": func(a, b model.Asset) bool { return a.CreatedAt.Before(b.CreatedAt) },
	"updatedAt": func(a, b model.Asset) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
	"mediaType": func(a, b model.Asset) bool { return a.MediaType < b.MediaType },
}

func (m *MemoryStore) ListAssets(ctx context.Context, f model.AssetFilter) ([]model.Asset, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Asset
	for _, a := range m.assets {
		if f.OwnerID != "" && a.OwnerID != f.OwnerID {
			continue
		}
		if f.CampaignID != "" && strPtr(a.CampaignID) != f.CampaignID {
			continue
		}
		if f.DirectOnly && a.CampaignID != nil {
			continue
		}
		if f.MediaType != "" && a.MediaType != f.MediaType {
			continue
		}
		if f.Search != "" && !containsFold(a.Name, f.Search) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return m.assetSeq[out[i].ID] < m.assetSeq[out[j].ID] })
	page, total := paginate(out, f.Page, memAssetSorts)
	return page, total, nil
}

func (m *MemoryStore) ListAssetsByCampaign(ctx context.Context, campaignID string) ([]model.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Asset
	for _, a := range m.assets {
		if a.CampaignID != nil && *a.CampaignID == campaignID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return m.assetSeq[out[i].ID] < m.assetSeq[out[j].ID]
	})
	return out, nil
}

func (m *MemoryStore) CountAssetsByCampaign(ctx context.Context, campaignIDs []string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int, len(campaignIDs))
	want := make(map[string]bool, len(campaignIDs))
	for _, id := range campaignIDs {
		want[id] = true
	}
	for _, a := range m.assets {
		if a.CampaignID != nil && want[*a.CampaignID] {
			out[*a.CampaignID]++
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateAsset(ctx context.Context, id string, u model.AssetUpdate) (model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assets[id]
	if !ok {
		return model.Asset{}, notFound("asset")
	}
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.MediaType != nil {
		a.MediaType = *u.MediaType
	}
	if u.URL != nil {
		a.URL = *u.URL
	}
	if u.Thumbnail != nil {
		a.Thumbnail = u.Thumbnail
	}
	if u.DurationSeconds != nil {
		a.DurationSeconds = u.DurationSeconds
	}
	switch {
	case u.ClearCampaign:
		a.CampaignID = nil
	case u.CampaignID != nil:
		if _, ok := m.campaigns[*u.CampaignID]; !ok {
			return model.Asset{}, apperr.Validation("campaign %s does not exist", *u.CampaignID)
		}
		cid := *u.CampaignID
		a.CampaignID = &cid
	}
	a.UpdatedAt = m.Now()
	m.assets[id] = a
	return a, nil
}

func (m *MemoryStore) DeleteAsset(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.assets[id]; !ok {
		return notFound("asset")
	}
	delete(m.assets, id)
	delete(m.assetSeq, id)
	return nil
}

// ---- playlists

func clonePlaylist(p model.Playlist) model.Playlist {
	p.CampaignIDs = append([]string{}, p.CampaignIDs...)
	p.AssetIDs = append([]string{}, p.AssetIDs...)
	if p.LegacyItems != nil {
		p.LegacyItems = append(model.LegacyItems{}, p.LegacyItems...)
	}
	if p.Schedule != nil {
		s := *p.Schedule
		s.DaysOfWeek = append([]int(nil), s.DaysOfWeek...)
		p.Schedule = &s
	}
	return p
}

func (m *MemoryStore) CreatePlaylist(ctx context.Context, p model.Playlist) (model.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = model.PlaylistActive
	}
	p.CreatedAt = m.Now()
	p.UpdatedAt = p.CreatedAt
	p = clonePlaylist(p)
	m.playlists[p.ID] = p
	return clonePlaylist(p), nil
}

func (m *MemoryStore) GetPlaylistByID(ctx context.Context, id string) (model.Playlist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.playlists[id]
	if !ok {
		return model.Playlist{}, notFound("playlist")
	}
	return clonePlaylist(p), nil
}

var memPlaylistSorts = map[string]func(a, b model.Playlist) bool{
	"name":      func(a, b model.Playlist) bool { return a.Name < b.Name },
	"createdAt": func(a, b model.Playlist) bool { return a.CreatedAt.Before(b.CreatedAt) },
	"updatedAt": func(a, b model.Playlist) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
	"status":    func(a, b model.Playlist) bool { return a.Status < b.Status },
}

func (m *MemoryStore) ListPlaylists(ctx context.Context, f model.PlaylistFilter) ([]model.Playlist, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Playlist
	for _, p := range m.playlists {
		if f.OwnerID != "" && p.OwnerID != f.OwnerID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Search != "" && !containsFold(p.Name, f.Search) && !containsFold(strPtr(p.Description), f.Search) {
			continue
		}
		out = append(out, clonePlaylist(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	page, total := paginate(out, f.Page, memPlaylistSorts)
	return page, total, nil
}

func (m *MemoryStore) SavePlaylist(ctx context.Context, p model.Playlist) (model.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.playlists[p.ID]
	if !ok {
		return model.Playlist{}, notFound("playlist")
	}
	p.OwnerID = existing.OwnerID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = m.Now()
	p = clonePlaylist(p)
	m.playlists[p.ID] = p
	return clonePlaylist(p), nil
}

func (m *MemoryStore) DeletePlaylist(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.playlists[id]; !ok {
		return notFound("playlist")
	}
	delete(m.playlists, id)
	return nil
}

func (m *MemoryStore) PlaylistsReferencing(ctx context.Context, campaignID, assetID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for id, p := range m.playlists {
		if (campaignID != "" && contains(p.CampaignIDs, campaignID)) ||
			(assetID != "" && contains(p.AssetIDs, assetID)) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ---- displays

func (m *MemoryStore) deviceTaken(deviceID, exceptID string) bool {
	for _, d := range m.displays {
		if d.ID != exceptID && d.DeviceID == deviceID {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CreateDisplay(ctx context.Context, d model.Display) (model.Display, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deviceTaken(d.DeviceID, "") {
		return model.Display{}, apperr.Conflict("display already exists")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = model.DisplayOffline
	}
	d.TotalActiveMinutes = 0
	d.CreatedAt = m.Now()
	d.UpdatedAt = d.CreatedAt
	m.displays[d.ID] = d
	return d, nil
}

func (m *MemoryStore) GetDisplayByID(ctx context.Context, id string) (model.Display, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.displays[id]
	if !ok {
		return model.Display{}, notFound("display")
	}
	return d, nil
}

func (m *MemoryStore) GetDisplayByDeviceID(ctx context.Context, deviceID string) (model.Display, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.displays {
		if d.DeviceID == deviceID {
			return d, nil
		}
	}
	return model.Display{}, notFound("display")
}

var memDisplaySorts = map[string]func(a, b model.Display) bool{
	"name":      func(a, b model.Display) bool { return a.Name < b.Name },
	"createdAt": func(a, b model.Display) bool { return a.CreatedAt.Before(b.CreatedAt) },
	"status":    func(a, b model.Display) bool { return a.Status < b.Status },
	"lastActiveAt": func(a, b model.Display) bool {
		if a.LastActiveAt == nil || b.LastActiveAt == nil {
			return a.LastActiveAt == nil && b.LastActiveAt != nil
		}
		return a.LastActiveAt.Before(*b.LastActiveAt)
	},
}

func (m *MemoryStore) ListDisplays(ctx context.Context, f model.DisplayFilter) ([]model.Display, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Display
	for _, d := range m.displays {
		if f.OwnerID != "" && d.OwnerID != f.OwnerID {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.Search != "" && !containsFold(d.Name, f.Search) && !containsFold(d.Location, f.Search) &&
			!containsFold(d.DeviceID, f.Search) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	page, total := paginate(out, f.Page, memDisplaySorts)
	return page, total, nil
}

func (m *MemoryStore) SaveDisplay(ctx context.Context, d model.Display) (model.Display, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.displays[d.ID]
	if !ok {
		return model.Display{}, notFound("display")
	}
	if m.deviceTaken(d.DeviceID, d.ID) {
		return model.Display{}, apperr.Conflict("display already exists")
	}
	existing.Name = d.Name
	existing.DeviceID = d.DeviceID
	existing.Location = d.Location
	existing.Status = d.Status
	existing.Resolution = d.Resolution
	existing.PlaylistID = d.PlaylistID
	existing.UpdatedAt = m.Now()
	m.displays[d.ID] = existing
	return existing, nil
}

func (m *MemoryStore) DeleteDisplay(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.displays[id]; !ok {
		return notFound("display")
	}
	delete(m.displays, id)
	return nil
}

func (m *MemoryStore) RecordDisplayActivity(ctx context.Context, deviceID string, minutes int, at time.Time) (model.Display, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, d := range m.displays {
		if d.DeviceID != deviceID {
			continue
		}
		at = at.UTC()
		d.LastActiveAt = &at
		d.TotalActiveMinutes += minutes
		d.Status = model.DisplayOnline
		d.UpdatedAt = at
		m.displays[id] = d
		return d, nil
	}
	return model.Display{}, notFound("display")
}

// ---- playback

func (m *MemoryStore) InsertPlaybackLogs(ctx context.Context, entries []model.PlaybackLogEntry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		m.seq++
		e.ID = m.seq
		if e.LoggedAt.IsZero() {
			e.LoggedAt = m.Now()
		}
		m.playback = append(m.playback, e)
	}
	return len(entries), nil
}

func (m *MemoryStore) ListPlaybackLogs(ctx context.Context, f model.PlaybackFilter) ([]model.PlaybackLogEntry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.PlaybackLogEntry
	for _, e := range m.playback {
		if f.DeviceID != "" && e.DeviceID != f.DeviceID {
			continue
		}
		if f.AssetID != "" && e.AssetID != f.AssetID {
			continue
		}
		if f.PlaylistID != "" && strPtr(e.PlaylistID) != f.PlaylistID {
			continue
		}
		if !f.From.IsZero() && e.StartTime.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !e.StartTime.Before(f.To) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID > out[j].ID
	})
	p := f.Page
	if p.Limit > 0 {
		p = p.Normalize("startTime", "startTime")
	}
	p.SortBy = ""
	page, total := paginate(out, p, nil)
	return page, total, nil
}
