package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/apperr"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

// APIError is what a handler returns on failure. Detail is only sent to
// clients when error detail is enabled.
type APIError struct {
	Code    int
	Message string
	Detail  string
}

type HandlerFunc func(ctx *gin.Context) (any, *APIError)

// Response is the success envelope.
type Response struct {
	Success    bool              `json:"success"`
	Data       any               `json:"data"`
	Pagination *model.Pagination `json:"pagination,omitempty"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Result lets a handler pick the status code or attach pagination.
type Result struct {
	Status     int
	Data       any
	Pagination *model.Pagination
}

func Created(data any) Result { return Result{Status: http.StatusCreated, Data: data} }

func Paged(data any, p model.Pagination) Result {
	return Result{Status: http.StatusOK, Data: data, Pagination: &p}
}

var errorDetail atomic.Bool

// SetErrorDetail toggles the dev-only "error" field of failure responses.
func SetErrorDetail(on bool) { errorDetail.Store(on) }

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		if apiErr != nil {
			body := ErrorResponse{Success: false, Message: apiErr.Message}
			if errorDetail.Load() {
				body.Error = apiErr.Detail
			}
			ctx.JSON(apiErr.Code, body)
			return
		}
		// the handler wrote its own response (redirect, 304, raw body)
		if ctx.Writer.Written() {
			return
		}

		switch r := result.(type) {
		case Result:
			status := r.Status
			if status == 0 {
				status = http.StatusOK
			}
			ctx.JSON(status, Response{Success: true, Data: r.Data, Pagination: r.Pagination})
		default:
			ctx.JSON(http.StatusOK, Response{Success: true, Data: result})
		}
	}
}

// FromError maps any error onto the taxonomy's status code and a
// client-safe message.
func FromError(err error) *APIError {
	kind := apperr.KindOf(err)
	return &APIError{Code: kind.Status(), Message: apperr.Message(err), Detail: err.Error()}
}

// Fail logs err as "[area] op" and converts it. Client errors log at Warn.
func Fail(area, op string, err error) *APIError {
	apiErr := FromError(err)
	ev := log.Warn()
	if apiErr.Code >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Int("status", apiErr.Code).Msg("[" + area + "] " + op)
	return apiErr
}

// Lookup converts a failed fetch of one entity: absent entities become a
// plain "<what> not found", anything else goes through Fail.
func Lookup(area, what string, err error) *APIError {
	if apperr.KindOf(err) == apperr.KindNotFound {
		return &APIError{Code: http.StatusNotFound, Message: what + " not found", Detail: err.Error()}
	}
	return Fail(area, "get "+what, err)
}

func BadRequest(message string) *APIError {
	return &APIError{Code: http.StatusBadRequest, Message: message}
}

// BindJSON binds and validates the request body.
func BindJSON(ctx *gin.Context, dst any) *APIError {
	if err := ctx.ShouldBindJSON(dst); err != nil {
		return bindError(err)
	}
	return nil
}

// BindOptionalJSON is BindJSON for endpoints whose body may be absent. An
// empty body, chunked or not, leaves dst untouched.
func BindOptionalJSON(ctx *gin.Context, dst any) *APIError {
	if ctx.Request.Body == nil || ctx.Request.ContentLength == 0 {
		return nil
	}
	if err := ctx.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return bindError(err)
	}
	return nil
}

func bindError(err error) *APIError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &APIError{Code: http.StatusBadRequest, Message: "invalid field " + fe.Field() + ": " + fe.Tag(), Detail: err.Error()}
	}
	return &APIError{Code: http.StatusBadRequest, Message: "malformed request body", Detail: err.Error()}
}

// ParsePage reads page, limit, sortBy and sortOrder from the query string.
func ParsePage(ctx *gin.Context, defaultSort string, allowed ...string) model.Page {
	page, _ := strconv.Atoi(ctx.Query("page"))
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	return model.Page{
		Page:      page,
		Limit:     limit,
		SortBy:    ctx.Query("sortBy"),
		SortOrder: ctx.Query("sortOrder"),
	}.Normalize(defaultSort, allowed...)
}
