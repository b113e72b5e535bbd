package playback

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Nixie-Tech-LLC/marquee/internal/apperr"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

const (
	// DefaultWindow is the reporting range when no dates are given.
	DefaultWindow = 7 * 24 * time.Hour
	// TopN is the length of the dashboard leaderboards.
	TopN = 5
	// maxTimelineBuckets guards against absurd ranges at hourly granularity.
	maxTimelineBuckets = 24 * 366
)

type GroupBy string

const (
	GroupByAsset    GroupBy = "asset"
	GroupByDevice   GroupBy = "device"
	GroupByPlaylist GroupBy = "playlist"
	GroupByDay      GroupBy = "day"
)

func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(s)); g {
	case "":
		return GroupByAsset, nil
	case GroupByAsset, GroupByDevice, GroupByPlaylist, GroupByDay:
		return g, nil
	}
	return "", apperr.Validation("groupBy must be one of asset, device, playlist, day")
}

type Interval string

const (
	IntervalHour Interval = "hour"
	IntervalDay  Interval = "day"
)

func ParseInterval(s string) (Interval, error) {
	switch i := Interval(strings.ToLower(s)); i {
	case "":
		return IntervalDay, nil
	case IntervalHour, IntervalDay:
		return i, nil
	}
	return "", apperr.Validation("interval must be hour or day")
}

// Window is a half-open [From, To) reporting range.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ParseWindow reads startDate/endDate as RFC 3339 or YYYY-MM-DD. A date-only
// end covers that whole day. Missing bounds default to the last seven days.
func ParseWindow(startDate, endDate string, now time.Time) (Window, error) {
	w := Window{From: now.Add(-DefaultWindow), To: now}
	if endDate != "" {
		t, dateOnly, err := parseDate(endDate)
		if err != nil {
			return Window{}, apperr.Validation("invalid endDate %q", endDate)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		w.To = t
		if startDate == "" {
			w.From = t.Add(-DefaultWindow)
		}
	}
	if startDate != "" {
		t, _, err := parseDate(startDate)
		if err != nil {
			return Window{}, apperr.Validation("invalid startDate %q", startDate)
		}
		w.From = t
	}
	if !w.From.Before(w.To) {
		return Window{}, apperr.Validation("startDate must be before endDate")
	}
	return w, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	return t, true, err
}

type Reader interface {
	ListPlaybackLogs(ctx context.Context, f model.PlaybackFilter) ([]model.PlaybackLogEntry, int, error)
}

// Service loads the log window from the store and aggregates it in memory.
type Service struct {
	store Reader
}

func NewService(store Reader) *Service {
	return &Service{store: store}
}

// Load returns every entry matching f within w.
func (s *Service) Load(ctx context.Context, f model.PlaybackFilter, w Window) ([]model.PlaybackLogEntry, error) {
	f.From, f.To = w.From, w.To
	f.Page = model.Page{}
	entries, _, err := s.store.ListPlaybackLogs(ctx, f)
	return entries, err
}

// Logs returns one page of raw entries, newest first.
func (s *Service) Logs(ctx context.Context, f model.PlaybackFilter, w Window) ([]model.PlaybackLogEntry, int, error) {
	f.From, f.To = w.From, w.To
	return s.store.ListPlaybackLogs(ctx, f)
}

type ReportRow struct {
	Key                    string    `json:"key"`
	Plays                  int       `json:"plays"`
	TotalDurationSeconds   int       `json:"totalDurationSeconds"`
	AverageDurationSeconds float64   `json:"averageDurationSeconds"`
	FirstPlayedAt          time.Time `json:"firstPlayedAt"`
	LastPlayedAt           time.Time `json:"lastPlayedAt"`
}

func groupKey(e model.PlaybackLogEntry, g GroupBy) string {
	switch g {
	case GroupByDevice:
		return e.DeviceID
	case GroupByPlaylist:
		if e.PlaylistID == nil {
			return ""
		}
		return *e.PlaylistID
	case GroupByDay:
		return e.StartTime.UTC().Format(time.DateOnly)
	default:
		return e.AssetID
	}
}

// Report groups entries by g. Rows are sorted by plays, most first; day
// reports are sorted chronologically instead.
func Report(entries []model.PlaybackLogEntry, g GroupBy) []ReportRow {
	rows := make(map[string]*ReportRow)
	for _, e := range entries {
		k := groupKey(e, g)
		r, ok := rows[k]
		if !ok {
			r = &ReportRow{Key: k, FirstPlayedAt: e.StartTime, LastPlayedAt: e.StartTime}
			rows[k] = r
		}
		r.Plays++
		r.TotalDurationSeconds += e.DurationSeconds
		if e.StartTime.Before(r.FirstPlayedAt) {
			r.FirstPlayedAt = e.StartTime
		}
		if e.StartTime.After(r.LastPlayedAt) {
			r.LastPlayedAt = e.StartTime
		}
	}

	out := make([]ReportRow, 0, len(rows))
	for _, r := range rows {
		r.AverageDurationSeconds = average(r.TotalDurationSeconds, r.Plays)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if g == GroupByDay {
			return out[i].Key < out[j].Key
		}
		if out[i].Plays != out[j].Plays {
			return out[i].Plays > out[j].Plays
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func average(total, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(int(float64(total)/float64(n)*100+0.5)) / 100
}

type Stats struct {
	TotalPlays             int     `json:"totalPlays"`
	TotalDurationSeconds   int     `json:"totalDurationSeconds"`
	AverageDurationSeconds float64 `json:"averageDurationSeconds"`
	UniqueDevices          int     `json:"uniqueDevices"`
	UniqueAssets           int     `json:"uniqueAssets"`
	UniquePlaylists        int     `json:"uniquePlaylists"`
}

func ComputeStats(entries []model.PlaybackLogEntry) Stats {
	devices := map[string]struct{}{}
	assets := map[string]struct{}{}
	playlists := map[string]struct{}{}
	var s Stats
	for _, e := range entries {
		s.TotalPlays++
		s.TotalDurationSeconds += e.DurationSeconds
		devices[e.DeviceID] = struct{}{}
		assets[e.AssetID] = struct{}{}
		if e.PlaylistID != nil {
			playlists[*e.PlaylistID] = struct{}{}
		}
	}
	s.AverageDurationSeconds = average(s.TotalDurationSeconds, s.TotalPlays)
	s.UniqueDevices = len(devices)
	s.UniqueAssets = len(assets)
	s.UniquePlaylists = len(playlists)
	return s
}

type Dashboard struct {
	Window     Window      `json:"window"`
	Stats      Stats       `json:"stats"`
	TopAssets  []ReportRow `json:"topAssets"`
	TopDevices []ReportRow `json:"topDevices"`
}

func BuildDashboard(entries []model.PlaybackLogEntry, w Window) Dashboard {
	return Dashboard{
		Window:     w,
		Stats:      ComputeStats(entries),
		TopAssets:  top(Report(entries, GroupByAsset), TopN),
		TopDevices: top(Report(entries, GroupByDevice), TopN),
	}
}

func top(rows []ReportRow, n int) []ReportRow {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}

// AssetAnalysis describes how one asset performs across devices.
type AssetAnalysis struct {
	AssetID                string         `json:"assetId"`
	Plays                  int            `json:"plays"`
	TotalDurationSeconds   int            `json:"totalDurationSeconds"`
	AverageDurationSeconds float64        `json:"averageDurationSeconds"`
	Devices                int            `json:"devices"`
	PlaysPerDevice         map[string]int `json:"playsPerDevice"`
}

func Analyze(entries []model.PlaybackLogEntry) []AssetAnalysis {
	byAsset := make(map[string]*AssetAnalysis)
	for _, e := range entries {
		a, ok := byAsset[e.AssetID]
		if !ok {
			a = &AssetAnalysis{AssetID: e.AssetID, PlaysPerDevice: map[string]int{}}
			byAsset[e.AssetID] = a
		}
		a.Plays++
		a.TotalDurationSeconds += e.DurationSeconds
		a.PlaysPerDevice[e.DeviceID]++
	}
	out := make([]AssetAnalysis, 0, len(byAsset))
	for _, a := range byAsset {
		a.AverageDurationSeconds = average(a.TotalDurationSeconds, a.Plays)
		a.Devices = len(a.PlaysPerDevice)
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Plays != out[j].Plays {
			return out[i].Plays > out[j].Plays
		}
		return out[i].AssetID < out[j].AssetID
	})
	return out
}

type Bucket struct {
	Start                time.Time `json:"start"`
	Plays                int       `json:"plays"`
	TotalDurationSeconds int       `json:"totalDurationSeconds"`
}

// Timeline buckets entries by interval across w, including empty buckets.
func Timeline(entries []model.PlaybackLogEntry, w Window, interval Interval) ([]Bucket, error) {
	step := 24 * time.Hour
	if interval == IntervalHour {
		step = time.Hour
	}
	start := w.From.UTC().Truncate(step)
	n := int(w.To.Sub(start) / step)
	if w.To.Sub(start)%step != 0 {
		n++
	}
	if n > maxTimelineBuckets {
		return nil, apperr.Validation("range too large for %s buckets", interval)
	}

	buckets := make([]Bucket, n)
	for i := range buckets {
		buckets[i].Start = start.Add(time.Duration(i) * step)
	}
	for _, e := range entries {
		i := int(e.StartTime.UTC().Sub(start) / step)
		if i < 0 || i >= n {
			continue
		}
		buckets[i].Plays++
		buckets[i].TotalDurationSeconds += e.DurationSeconds
	}
	return buckets, nil
}
