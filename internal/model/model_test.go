package model_test

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

func TestRefUnmarshal(t *testing.T) {
	cases := map[string]string{
		`"abc"`:            "abc",
		`42`:               "42",
		`{"id":"c1"}`:      "c1",
		`{"_id":"c2"}`:     "c2",
		`{"id":7,"x":"y"}`: "7",
	}
	for in, want := range cases {
		var r model.Ref
		require.NoError(t, json.Unmarshal([]byte(in), &r), in)
		assert.Equal(t, want, r.ID(), in)
	}

	for _, in := range []string{`null`, `""`, `{}`, `{"name":"x"}`} {
		var r model.Ref
		assert.Error(t, r.UnmarshalJSON([]byte(in)), in)
	}

	var r model.Ref
	assert.Error(t, r.UnmarshalJSON([]byte(`true`)))
}

func TestRefMarshal(t *testing.T) {
	b, err := json.Marshal(model.IDRef("x9"))
	require.NoError(t, err)
	assert.JSONEq(t, `"x9"`, string(b))

	// populated objects collapse to their id
	var refs []model.Ref
	require.NoError(t, json.Unmarshal([]byte(`[{"_id":"c1","name":"Promo","assets":[]}]`), &refs))
	b, err = json.Marshal(refs)
	require.NoError(t, err)
	assert.JSONEq(t, `["c1"]`, string(b))
}

func TestRefIDs(t *testing.T) {
	var refs []model.Ref
	require.NoError(t, json.Unmarshal([]byte(`["b",{"id":"a"},"b",{"_id":"c"},"a"]`), &refs))
	assert.Equal(t, []string{"b", "a", "c"}, model.RefIDs(refs))
	assert.Empty(t, model.RefIDs(nil))
}

func TestParseMediaType(t *testing.T) {
	for in, want := range map[string]model.MediaType{
		"image":   model.MediaImage,
		" Video ": model.MediaVideo,
		"HTML":    model.MediaHTML,
		"url":     model.MediaURL,
	} {
		got, ok := model.ParseMediaType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := model.ParseMediaType("audio")
	assert.False(t, ok)
}

func TestMediaTypeFromMIME(t *testing.T) {
	mt, ok := model.MediaTypeFromMIME("image/png")
	assert.True(t, ok)
	assert.Equal(t, model.MediaImage, mt)

	mt, ok = model.MediaTypeFromMIME("VIDEO/MP4")
	assert.True(t, ok)
	assert.Equal(t, model.MediaVideo, mt)

	mt, ok = model.MediaTypeFromMIME("text/html; charset=utf-8")
	assert.True(t, ok)
	assert.Equal(t, model.MediaHTML, mt)

	_, ok = model.MediaTypeFromMIME("text/plain")
	assert.False(t, ok)
}

func TestEffectiveDuration(t *testing.T) {
	d := func(n int) *int { return &n }

	assert.Equal(t, model.DefaultImageDuration, model.Asset{MediaType: model.MediaImage}.EffectiveDuration())
	assert.Equal(t, model.DefaultImageDuration, model.Asset{MediaType: model.MediaHTML}.EffectiveDuration())
	assert.Equal(t, 0, model.Asset{MediaType: model.MediaVideo}.EffectiveDuration())
	assert.Equal(t, 30, model.Asset{MediaType: model.MediaVideo, DurationSeconds: d(30)}.EffectiveDuration())
	assert.Equal(t, 0, model.Asset{MediaType: model.MediaImage, DurationSeconds: d(0)}.EffectiveDuration())
	assert.Equal(t, 0, model.Asset{MediaType: model.MediaImage, DurationSeconds: d(-5)}.EffectiveDuration())

	c := "c1"
	assert.False(t, model.Asset{CampaignID: &c}.IsDirect())
	assert.True(t, model.Asset{}.IsDirect())
}

func TestScheduleValidate(t *testing.T) {
	var nilSchedule *model.Schedule
	assert.NoError(t, nilSchedule.Validate())

	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	end := start.Add(-24 * time.Hour)

	assert.NoError(t, (&model.Schedule{DaysOfWeek: []int{0, 6}, StartTime: "08:00", EndTime: "18:30"}).Validate())
	assert.Error(t, (&model.Schedule{DaysOfWeek: []int{7}}).Validate())
	assert.Error(t, (&model.Schedule{StartDate: &start, EndDate: &end}).Validate())
	assert.Error(t, (&model.Schedule{StartTime: "8am"}).Validate())
}

func TestScheduleColumnRoundTrip(t *testing.T) {
	in := model.Schedule{DaysOfWeek: []int{1, 2}, StartTime: "09:00"}
	v, err := in.Value()
	require.NoError(t, err)

	var out model.Schedule
	require.NoError(t, out.Scan([]byte(v.(string))))
	assert.Equal(t, in, out)

	assert.Error(t, out.Scan(42))
}

func TestLegacyItemDurationAlias(t *testing.T) {
	var items model.LegacyItems
	require.NoError(t, json.Unmarshal([]byte(`[
		{"assetId":"a1","duration":12,"order":1},
		{"assetId":"a2","durationOverride":5,"duration":99,"order":0},
		{"assetId":"a3","order":2}
	]`), &items))
	require.Len(t, items, 3)

	require.NotNil(t, items[0].DurationOverride)
	assert.Equal(t, 12, *items[0].DurationOverride)
	require.NotNil(t, items[1].DurationOverride)
	assert.Equal(t, 5, *items[1].DurationOverride)
	assert.Nil(t, items[2].DurationOverride)

	v, err := model.LegacyItems(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var scanned model.LegacyItems
	require.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)
}

func TestStatusValid(t *testing.T) {
	assert.True(t, model.PlaylistScheduled.Valid())
	assert.False(t, model.PlaylistStatus("paused").Valid())
	assert.True(t, model.DisplayOnline.Valid())
	assert.False(t, model.DisplayStatus("").Valid())
}

func TestPageNormalize(t *testing.T) {
	p := model.Page{Page: 0, Limit: 500, SortBy: "bogus", SortOrder: "ASC"}.Normalize("createdAt", "name", "createdAt")
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, model.MaxPageLimit, p.Limit)
	assert.Equal(t, "createdAt", p.SortBy)
	assert.Equal(t, "asc", p.SortOrder)

	p = model.Page{Page: 3, SortBy: "name"}.Normalize("createdAt", "name")
	assert.Equal(t, model.DefaultPageLimit, p.Limit)
	assert.Equal(t, "name", p.SortBy)
	assert.Equal(t, "desc", p.SortOrder)
	assert.Equal(t, 40, p.Offset())
}

func TestNewPagination(t *testing.T) {
	pg := model.NewPagination(model.Page{Page: 2, Limit: 10}, 25)
	assert.Equal(t, 3, pg.TotalPages)
	assert.True(t, pg.HasNextPage)
	assert.True(t, pg.HasPrevPage)

	pg = model.NewPagination(model.Page{Page: 1, Limit: 10}, 0)
	assert.Equal(t, 0, pg.TotalPages)
	assert.False(t, pg.HasNextPage)
	assert.False(t, pg.HasPrevPage)
}
