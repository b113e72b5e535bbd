package packets

import "github.com/Nixie-Tech-LLC/marquee/internal/playback"

type ReportResponse struct {
	Window  playback.Window      `json:"window"`
	GroupBy playback.GroupBy     `json:"groupBy"`
	Rows    []playback.ReportRow `json:"rows"`
}

type StatsResponse struct {
	Window playback.Window `json:"window"`
	Stats  playback.Stats  `json:"stats"`
}

type AnalysisResponse struct {
	Window playback.Window          `json:"window"`
	Assets []playback.AssetAnalysis `json:"assets"`
}

type TimelineResponse struct {
	Window   playback.Window   `json:"window"`
	Interval playback.Interval `json:"interval"`
	Buckets  []playback.Bucket `json:"buckets"`
}
