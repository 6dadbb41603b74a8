package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"syscall"

	"github.com/nebulahq/nebula/errs"
	"github.com/nebulahq/nebula/types"
	"github.com/nebulahq/nebula/validator"
)

type errRespBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func (h *Handler) respond(w http.ResponseWriter, v any, statusCode int) {
	b, err := json.Marshal(v)
	if err != nil {
		h.respondErr(w, fmt.Errorf("json marshal http response body: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write(b); err != nil && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, context.Canceled) {
		h.ErrorLogger.Error("write http response", "err", err)
	}
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	var v *validator.Validator
	if errors.As(err, &v) {
		h.respond(w, errRespBody{Error: "invalid input", Fields: v.Errors}, http.StatusBadRequest)
		return
	}

	statusCode := err2code(err)
	if statusCode == http.StatusInternalServerError {
		if !errors.Is(err, context.Canceled) {
			h.ErrorLogger.Error("internal error", "err", err)
		}
		h.respond(w, errRespBody{Error: "internal server error"}, http.StatusInternalServerError)
		return
	}

	var e *errs.Error
	if errors.As(err, &e) {
		h.respond(w, errRespBody{Error: e.Message}, statusCode)
		return
	}

	h.respond(w, errRespBody{Error: err.Error()}, statusCode)
}

func err2code(err error) int {
	var e *errs.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}

	switch e.Kind {
	case errs.KindInvalidArgument:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindAlreadyExists:
		return http.StatusConflict
	case errs.KindPermissionDenied:
		return http.StatusForbidden
	case errs.KindUnauthenticated:
		return http.StatusUnauthorized
	}

	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.NewInvalidArgumentError("Body", "invalid JSON request body")
	}

	return nil
}

func parsePageArgs(q url.Values) (types.PageArgs, error) {
	var pageArgs types.PageArgs

	if q.Has("first") {
		first, err := strconv.ParseUint(q.Get("first"), 10, 64)
		if err != nil {
			return pageArgs, errs.NewInvalidArgumentError("first", "invalid first page arg")
		}

		v := uint(first)
		pageArgs.First = &v
	}

	if q.Has("after") {
		after := q.Get("after")
		pageArgs.After = &after
	}

	if q.Has("last") {
		last, err := strconv.ParseUint(q.Get("last"), 10, 64)
		if err != nil {
			return pageArgs, errs.NewInvalidArgumentError("last", "invalid last page arg")
		}

		v := uint(last)
		pageArgs.Last = &v
	}

	if q.Has("before") {
		before := q.Get("before")
		pageArgs.Before = &before
	}

	return pageArgs, nil
}
