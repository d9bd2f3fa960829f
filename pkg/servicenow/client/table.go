package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lewisgf/snowclient/pkg/servicenow"
	"github.com/lewisgf/snowclient/pkg/servicenow/errors"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Table is a handle to a named table on the remote instance. All
// methods issue a single synchronous call and surface unexpected
// statuses as *errors.ServiceError.
type Table struct {
	client *Client
	name   string
	url    string
}

func (t *Table) Name() string {
	return t.name
}

type recordEnvelope struct {
	Result servicenow.Record `json:"result"`
}

type recordSetEnvelope struct {
	Result servicenow.RecordSet `json:"result"`
}

// Get retrieves a single record by identifier. A missing record is
// not an error: both return values are nil. With refLinks set, each
// reference field carries both the referenced sys_id and a URL.
func (t *Table) Get(ctx context.Context, sysID string, refLinks bool) (servicenow.Record, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-record",
		trace.WithAttributes(attribute.String(TraceAttributeTable, t.name)),
		trace.WithAttributes(attribute.String(TraceAttributeSysID, sysID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	params := url.Values{}
	params.Set("sysparm_exclude_reference_link", strconv.FormatBool(!refLinks))

	resp, respBody, err := t.client.call(ctx, http.MethodGet, t.url+"/"+url.PathEscape(sysID), params, nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		err = errors.NewServiceError(resp.StatusCode, resp.Header, respBody)
		return nil, err
	}

	envelope := recordEnvelope{}
	err = json.Unmarshal(respBody, &envelope)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal response: %s (%w)", err.Error(), errors.ErrBadResponse)
		return nil, err
	}

	return envelope.Result, nil
}

// Insert creates a single record and returns its assigned identifier.
func (t *Table) Insert(ctx context.Context, record servicenow.Record) (string, error) {
	rec, err := t.insert(ctx, record, servicenow.FieldSysID)
	if err != nil {
		return "", err
	}

	return rec.SysID(), nil
}

// InsertReturning creates a single record and returns a partial
// record holding the requested fields.
func (t *Table) InsertReturning(ctx context.Context, record servicenow.Record, fields ...string) (servicenow.Record, error) {
	return t.insert(ctx, record, strings.Join(fields, ","))
}

func (t *Table) insert(ctx context.Context, record servicenow.Record, returnFields string) (servicenow.Record, error) {
	var err error

	ctx, span := tracer.Start(ctx, "insert-record",
		trace.WithAttributes(attribute.String(TraceAttributeTable, t.name)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	body, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %s (%w)", err.Error(), errors.ErrInternal)
	}

	params := url.Values{}
	params.Set("sysparm_fields", returnFields)

	resp, respBody, err := t.client.call(ctx, http.MethodPost, t.url, params, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err = errors.NewServiceError(resp.StatusCode, resp.Header, respBody)
		return nil, err
	}

	envelope := recordEnvelope{}
	err = json.Unmarshal(respBody, &envelope)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal response: %s (%w)", err.Error(), errors.ErrBadResponse)
		return nil, err
	}

	return envelope.Result, nil
}

// Update replaces field values on a single record.
func (t *Table) Update(ctx context.Context, sysID string, values servicenow.Record) error {
	var err error

	ctx, span := tracer.Start(ctx, "update-record",
		trace.WithAttributes(attribute.String(TraceAttributeTable, t.name)),
		trace.WithAttributes(attribute.String(TraceAttributeSysID, sysID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	body, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal field values: %s (%w)", err.Error(), errors.ErrInternal)
	}

	resp, respBody, err := t.client.call(ctx, http.MethodPut, t.url+"/"+url.PathEscape(sysID), nil, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err = errors.NewServiceError(resp.StatusCode, resp.Header, respBody)
		return err
	}

	return nil
}

// Delete removes a single record.
func (t *Table) Delete(ctx context.Context, sysID string) error {
	var err error

	ctx, span := tracer.Start(ctx, "delete-record",
		trace.WithAttributes(attribute.String(TraceAttributeTable, t.name)),
		trace.WithAttributes(attribute.String(TraceAttributeSysID, sysID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	resp, respBody, err := t.client.call(ctx, http.MethodDelete, t.url+"/"+url.PathEscape(sysID), nil, nil)
	if err != nil {
		return err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err = errors.NewServiceError(resp.StatusCode, resp.Header, respBody)
		return err
	}

	return nil
}

// Choices returns the value to label mapping of a choice field on
// this table. Inactive choices are skipped unless includeInactive is
// set. A field with no choices at all fails with an error matching
// errors.ErrNotFound.
func (t *Table) Choices(ctx context.Context, element string, includeInactive bool) (map[string]string, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-choices",
		trace.WithAttributes(attribute.String(TraceAttributeTable, t.name)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	recs, err := t.client.Table(choiceTable).Query().
		Filter("name=" + t.name + "^element=" + element).
		Run(ctx)
	if err != nil {
		return nil, err
	}

	choices := map[string]string{}
	for _, rec := range recs {
		if !includeInactive && rec.StringValue("inactive") == "true" {
			continue
		}
		choices[rec.StringValue("value")] = rec.StringValue("label")
	}

	if len(choices) == 0 {
		err = errors.NewNotFoundError(
			fmt.Sprintf("no choices found for element %s on table %s", element, t.name),
		)
		return nil, err
	}

	return choices, nil
}

// Query creates a query builder bound to this table.
func (t *Table) Query() *Query {
	return &Query{table: t}
}
