// Package playback ingests proof-of-play records and aggregates them into
// reports.
package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/apperr"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

// MaxBatchSize caps the number of records accepted in one submission.
const MaxBatchSize = 1000

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type Writer interface {
	InsertPlaybackLogs(ctx context.Context, entries []model.PlaybackLogEntry) (int, error)
}

// IngestResult reports partial success explicitly.
type IngestResult struct {
	Inserted int `json:"inserted"`
	Total    int `json:"total"`
}

// DecodeEntries accepts either one record object or an array of them.
func DecodeEntries(raw []byte) ([]model.PlaybackLogEntry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, apperr.Validation("request body is empty")
	}
	if raw[0] == '[' {
		var entries []model.PlaybackLogEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, err, "malformed playback records")
		}
		return entries, nil
	}
	var e model.PlaybackLogEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "malformed playback record")
	}
	return []model.PlaybackLogEntry{e}, nil
}

// Validate checks every record and rejects the whole batch on the first
// invalid one.
func Validate(entries []model.PlaybackLogEntry) error {
	if len(entries) == 0 {
		return apperr.Validation("at least one playback record is required")
	}
	if len(entries) > MaxBatchSize {
		return apperr.Validation("at most %d playback records per request", MaxBatchSize)
	}
	for i := range entries {
		if err := validate.Struct(entries[i]); err != nil {
			return apperr.Wrap(apperr.KindValidation, err, "record %d: %s", i, describe(err))
		}
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

type Ingester struct {
	store Writer
	now   func() time.Time
}

func NewIngester(store Writer) *Ingester {
	return &Ingester{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Ingest validates the batch as a whole, then inserts record by record;
// rows the store rejects are skipped and reflected in the result.
func (i *Ingester) Ingest(ctx context.Context, entries []model.PlaybackLogEntry) (IngestResult, error) {
	if err := Validate(entries); err != nil {
		return IngestResult{}, err
	}
	now := i.now()
	for k := range entries {
		e := &entries[k]
		if e.DurationSeconds == 0 {
			e.DurationSeconds = int(e.EndTime.Sub(e.StartTime).Seconds())
		}
		e.LoggedAt = now
	}

	n, err := i.store.InsertPlaybackLogs(ctx, entries)
	if err != nil {
		return IngestResult{Total: len(entries)}, err
	}
	if n < len(entries) {
		log.Warn().Int("inserted", n).Int("total", len(entries)).Msg("[playback] ingest: some records were rejected")
	}
	return IngestResult{Inserted: n, Total: len(entries)}, nil
}
