package expand

import (
	"strings"
	"unicode"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

type Shape string

const (
	ShapeNested Shape = "nested"
	ShapeFlat   Shape = "flat"
	ShapeStrict Shape = "strict"
)

// ParseShape accepts the three shape names in any casing.
func ParseShape(s string) (Shape, bool) {
	switch sh := Shape(strings.ToLower(strings.TrimSpace(s))); sh {
	case ShapeNested, ShapeFlat, ShapeStrict:
		return sh, true
	}
	return "", false
}

type NestedItem struct {
	AssetID         string  `json:"assetId"`
	Name            string  `json:"name"`
	CampaignID      *string `json:"campaignId"`
	CampaignName    *string `json:"campaignName"`
	MediaType       string  `json:"mediaType"`
	URL             string  `json:"url"`
	Thumbnail       *string `json:"thumbnail"`
	DurationSeconds int     `json:"durationSeconds"`
	SizeBytes       *int64  `json:"sizeBytes"`
	Order           int     `json:"order"`
}

type NestedCampaign struct {
	CampaignID      string `json:"campaignId"`
	Name            string `json:"name"`
	AssetCount      int    `json:"assetCount"`
	DurationSeconds int    `json:"durationSeconds"`
}

type NestedPlaylist struct {
	PlaylistID           string           `json:"playlistId"`
	Name                 string           `json:"name"`
	Status               string           `json:"status"`
	Items                []NestedItem     `json:"items"`
	Campaigns            []NestedCampaign `json:"campaigns"`
	TotalDurationSeconds int              `json:"totalDurationSeconds"`
}

type FlatItem struct {
	AssetID         string `json:"assetId"`
	MediaType       string `json:"mediaType"`
	URL             string `json:"url"`
	DurationSeconds int    `json:"durationSeconds"`
}

type FlatPlaylist struct {
	PlaylistID string     `json:"playlistId"`
	Items      []FlatItem `json:"items"`
}

// StrictItem is the player firmware format: lowercase media type, image
// and video only.
type StrictItem struct {
	AssetID         string `json:"assetId"`
	MediaType       string `json:"mediaType"`
	URL             string `json:"url"`
	DurationSeconds int    `json:"durationSeconds"`
}

type StrictPlaylist struct {
	PlaylistID string       `json:"playlistId"`
	Items      []StrictItem `json:"items"`
}

func clamp(d int) int {
	return max(d, 0)
}

func RenderNested(e ExpandedPlaylist) NestedPlaylist {
	out := NestedPlaylist{
		PlaylistID: e.Playlist.ID,
		Name:       e.Playlist.Name,
		Status:     string(e.Playlist.Status),
		Items:      make([]NestedItem, 0, len(e.Items)),
		Campaigns:  make([]NestedCampaign, 0, len(e.Campaigns)),
	}
	for i, it := range e.Items {
		ni := NestedItem{
			AssetID:         it.Asset.ID,
			Name:            it.Asset.Name,
			MediaType:       strings.ToUpper(string(it.Asset.MediaType)),
			URL:             it.Asset.URL,
			Thumbnail:       it.Asset.Thumbnail,
			DurationSeconds: clamp(it.DurationSeconds),
			SizeBytes:       it.Asset.SizeBytes,
			Order:           i,
		}
		if it.Campaign != nil {
			id, name := it.Campaign.ID, it.Campaign.Name
			ni.CampaignID, ni.CampaignName = &id, &name
		}
		out.Items = append(out.Items, ni)
		out.TotalDurationSeconds += ni.DurationSeconds
	}
	for _, b := range e.Campaigns {
		out.Campaigns = append(out.Campaigns, NestedCampaign{
			CampaignID:      b.Campaign.ID,
			Name:            b.Campaign.Name,
			AssetCount:      b.AssetCount,
			DurationSeconds: clamp(b.DurationSeconds),
		})
	}
	return out
}

func RenderFlat(e ExpandedPlaylist) FlatPlaylist {
	out := FlatPlaylist{PlaylistID: e.Playlist.ID, Items: make([]FlatItem, 0, len(e.Items))}
	for _, it := range e.Items {
		out.Items = append(out.Items, FlatItem{
			AssetID:         it.Asset.ID,
			MediaType:       strings.ToUpper(string(it.Asset.MediaType)),
			URL:             it.Asset.URL,
			DurationSeconds: clamp(it.DurationSeconds),
		})
	}
	return out
}

// RenderStrict keeps only image and video assets with a url. Urls that are
// not absolute http(s) are logged and passed through unchanged.
func RenderStrict(e ExpandedPlaylist) StrictPlaylist {
	out := StrictPlaylist{PlaylistID: e.Playlist.ID, Items: make([]StrictItem, 0, len(e.Items))}
	for _, it := range e.Items {
		var mt string
		switch it.Asset.MediaType {
		case model.MediaImage:
			mt = "image"
		case model.MediaVideo:
			mt = "video"
		default:
			continue
		}
		url := strings.TrimSpace(it.Asset.URL)
		if url == "" {
			continue
		}
		if !isAbsoluteHTTP(url) {
			log.Warn().Str("playlist_id", e.Playlist.ID).Str("asset_id", it.Asset.ID).Str("url", url).
				Msg("[expand] strict: asset url is not absolute")
		}
		out.Items = append(out.Items, StrictItem{
			AssetID:         it.Asset.ID,
			MediaType:       mt,
			URL:             it.Asset.URL,
			DurationSeconds: clamp(it.DurationSeconds),
		})
	}
	return out
}

func isAbsoluteHTTP(u string) bool {
	l := strings.ToLower(u)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Render dispatches to the adapter for shape. Unknown shapes render strict.
func Render(e ExpandedPlaylist, shape Shape) any {
	switch shape {
	case ShapeNested:
		return RenderNested(e)
	case ShapeFlat:
		return RenderFlat(e)
	default:
		return RenderStrict(e)
	}
}

// SnakeCase re-encodes v with every object key converted from camelCase
// to snake_case. Object keys come back sorted.
func SnakeCase(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return snakeKeys(generic), nil
}

func snakeKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[toSnake(k)] = snakeKeys(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = snakeKeys(t[i])
		}
		return t
	default:
		return v
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
