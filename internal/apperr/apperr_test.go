package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("load playlist: %w", ErrNotFound)))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("wrapped: %w", Conflict("campaign is full"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, KindValidation.Status())
	assert.Equal(t, http.StatusConflict, KindConflict.Status())
	assert.Equal(t, http.StatusUnsupportedMediaType, KindUnsupportedMedia.Status())
	assert.Equal(t, http.StatusInternalServerError, KindInternal.Status())
}

func TestMessageHidesInternalDetail(t *testing.T) {
	assert.Equal(t, "internal server error", Message(errors.New("pq: connection refused")))
	assert.Equal(t, "name taken", Message(Wrap(KindConflict, errors.New("unique violation"), "name taken")))
}
