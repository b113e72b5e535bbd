package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

// filterQuery accumulates WHERE conditions with positional args. Every "?"
// in one condition refers to that condition's single argument.
type filterQuery struct {
	conds []string
	args  []any
}

func (q *filterQuery) add(cond string, arg any) {
	q.args = append(q.args, arg)
	q.conds = append(q.conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(q.args))))
}

func (q *filterQuery) where() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

// page appends ORDER BY / LIMIT / OFFSET. columns maps public sort keys to
// SQL columns; p must already be normalized.
func (q *filterQuery) page(p model.Page, columns map[string]string) string {
	col, ok := columns[p.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if p.SortOrder == "asc" {
		dir = "ASC"
	}
	q.args = append(q.args, p.Limit, p.Offset())
	n := len(q.args)
	return fmt.Sprintf(" ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d", col, dir, dir, n-1, n)
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

var (
	campaignSorts = map[string]string{"name": "name", "createdAt": "created_at", "updatedAt": "updated_at"}
	assetSorts    = map[string]string{"name": "name", "createdAt": "created_at", "updatedAt": "updated_at", "mediaType": "media_type"}
	playlistSorts = map[string]string{"name": "name", "createdAt": "created_at", "updatedAt": "updated_at", "status": "status"}
	displaySorts  = map[string]string{"name": "name", "createdAt": "created_at", "lastActiveAt": "last_active_at", "status": "status"}
)

// SortKeys lists the accepted sortBy values per entity.
func SortKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

var (
	CampaignSortKeys = SortKeys(campaignSorts)
	AssetSortKeys    = SortKeys(assetSorts)
	PlaylistSortKeys = SortKeys(playlistSorts)
	DisplaySortKeys  = SortKeys(displaySorts)
)
