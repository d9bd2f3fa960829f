// Package tableapi exposes the simulator's record store over the same
// REST contract as the remote service: JSON request/response bodies
// under /api/now/v1/table/<name>, with results wrapped in a "result"
// envelope.
package tableapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/lewisgf/snowclient/internal/pkg/application/tables"
	"github.com/lewisgf/snowclient/internal/pkg/presentation/api/tableapi/auth"
	"github.com/lewisgf/snowclient/pkg/servicenow"
	snerrors "github.com/lewisgf/snowclient/pkg/servicenow/errors"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
)

func RegisterHandlers(ctx context.Context, r chi.Router, policies io.Reader, app tables.TableManager) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	r.Route("/api/now/v1/table", func(r chi.Router) {
		r.Get("/{tableName}", NewQueryRecordsHandler(app, authenticator))
		r.Post("/{tableName}", NewCreateRecordHandler(app, authenticator))

		r.Route("/{tableName}/{sysID}", func(r chi.Router) {
			r.Get("/", NewRetrieveRecordHandler(app, authenticator))
			r.Put("/", NewUpdateRecordHandler(app, authenticator))
			r.Delete("/", NewDeleteRecordHandler(app, authenticator))
		})
	})

	return nil
}

func NewQueryRecordsHandler(app tables.RecordQuerier, authenticator auth.Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		table := chi.URLParam(r, "tableName")

		if !checkAccess(ctx, w, r, authenticator, table) {
			return
		}

		filter := r.URL.Query().Get("sysparm_query")
		limit, err := parseLimit(r.URL.Query().Get("sysparm_limit"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		recs, err := app.QueryRecords(ctx, table, filter, limit)
		if err != nil {
			writeApplicationError(ctx, w, err)
			return
		}

		if fields := r.URL.Query().Get("sysparm_fields"); fields != "" {
			for idx := range recs {
				recs[idx] = selectFields(recs[idx], fields)
			}
		}

		w.Header().Set("X-Total-Count", strconv.Itoa(len(recs)))
		writeResult(w, http.StatusOK, recs)
	}
}

func NewCreateRecordHandler(app tables.RecordCreator, authenticator auth.Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		table := chi.URLParam(r, "tableName")

		if !checkAccess(ctx, w, r, authenticator, table) {
			return
		}

		record, ok := decodeRecord(w, r)
		if !ok {
			return
		}

		created, err := app.CreateRecord(ctx, table, record)
		if err != nil {
			writeApplicationError(ctx, w, err)
			return
		}

		if fields := r.URL.Query().Get("sysparm_fields"); fields != "" {
			created = selectFields(created, fields)
		}

		writeResult(w, http.StatusCreated, created)
	}
}

func NewRetrieveRecordHandler(app tables.RecordRetriever, authenticator auth.Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		table := chi.URLParam(r, "tableName")

		if !checkAccess(ctx, w, r, authenticator, table) {
			return
		}

		rec, err := app.RetrieveRecord(ctx, table, chi.URLParam(r, "sysID"))
		if err != nil {
			writeApplicationError(ctx, w, err)
			return
		}

		if fields := r.URL.Query().Get("sysparm_fields"); fields != "" {
			rec = selectFields(rec, fields)
		}

		writeResult(w, http.StatusOK, rec)
	}
}

func NewUpdateRecordHandler(app tables.RecordUpdater, authenticator auth.Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		table := chi.URLParam(r, "tableName")

		if !checkAccess(ctx, w, r, authenticator, table) {
			return
		}

		values, ok := decodeRecord(w, r)
		if !ok {
			return
		}

		updated, err := app.UpdateRecord(ctx, table, chi.URLParam(r, "sysID"), values)
		if err != nil {
			writeApplicationError(ctx, w, err)
			return
		}

		writeResult(w, http.StatusOK, updated)
	}
}

func NewDeleteRecordHandler(app tables.RecordDeleter, authenticator auth.Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		table := chi.URLParam(r, "tableName")

		if !checkAccess(ctx, w, r, authenticator, table) {
			return
		}

		err := app.DeleteRecord(ctx, table, chi.URLParam(r, "sysID"))
		if err != nil {
			writeApplicationError(ctx, w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func checkAccess(ctx context.Context, w http.ResponseWriter, r *http.Request, authenticator auth.Authenticator, table string) bool {
	err := authenticator.CheckAccess(ctx, r, table)
	if err == nil {
		return true
	}

	if errors.Is(err, auth.ErrNoCredentials) {
		writeError(w, http.StatusUnauthorized, "User Not Authenticated")
		return false
	}

	if errors.Is(err, auth.ErrAccessDenied) {
		writeError(w, http.StatusForbidden, "Insufficient rights")
		return false
	}

	logging.GetFromContext(ctx).Error("access check failed", "err", err.Error())
	writeError(w, http.StatusInternalServerError, "policy evaluation failed")
	return false
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (servicenow.Record, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return nil, false
	}

	record := servicenow.Record{}
	if err := json.Unmarshal(body, &record); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not a valid record")
		return nil, false
	}

	return record, true
}

func parseLimit(value string) (int, error) {
	if value == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(value)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("sysparm_limit must be a non-negative integer")
	}

	return limit, nil
}

func selectFields(rec servicenow.Record, fields string) servicenow.Record {
	selected := servicenow.Record{}
	for _, field := range strings.Split(fields, ",") {
		if value, ok := rec[field]; ok {
			selected[field] = value
		}
	}
	return selected
}

func writeApplicationError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, snerrors.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No Record found")
		return
	}

	if errors.Is(err, snerrors.ErrBadRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logging.GetFromContext(ctx).Error("request failed", "err", err.Error())
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeResult(w http.ResponseWriter, statusCode int, result any) {
	body, err := json.Marshal(map[string]any{"result": result})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to marshal response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	body, _ := json.Marshal(map[string]any{
		"error":  map[string]any{"message": message},
		"status": "failure",
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
}
