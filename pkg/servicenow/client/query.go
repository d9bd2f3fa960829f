package client

import (
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

// Query accumulates restrictions for a table query. Builder methods
// return the query itself for chaining; zero values mean no
// restriction. State is consumed when Run is invoked.
type Query struct {
	table *Table

	filter   string
	fields   string
	limit    int
	refLinks bool
}

// Filter restricts which rows are returned using an encoded query
// expression, e.g. "active=true^priority=1". The expression is passed
// through opaquely; no client side validation is done.
func (q *Query) Filter(expr string) *Query {
	q.filter = expr
	return q
}

// Fields restricts which fields each returned row contains. With no
// fields, all fields are returned.
func (q *Query) Fields(fields ...string) *Query {
	q.fields = strings.Join(fields, ",")
	return q
}

// Limit caps the number of returned rows. Values below one mean no
// limit.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// RefLinks controls whether reference fields carry a link URL next to
// the referenced sys_id. Links are excluded by default.
func (q *Query) RefLinks(include bool) *Query {
	q.refLinks = include
	return q
}

// Run executes the query and returns the matching rows, an empty set
// when nothing matches.
func (q *Query) Run(ctx context.Context) (servicenow.RecordSet, error) {
	var err error

	ctx, span := tracer.Start(ctx, "query-records",
		trace.WithAttributes(attribute.String(TraceAttributeTable, q.table.name)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	params := url.Values{}
	if q.limit > 0 {
		params.Set("sysparm_limit", strconv.Itoa(q.limit))
	}
	if q.fields != "" {
		params.Set("sysparm_fields", q.fields)
	}
	if q.filter != "" {
		params.Set("sysparm_query", q.filter)
	}
	params.Set("sysparm_exclude_reference_link", strconv.FormatBool(!q.refLinks))

	resp, respBody, err := q.table.client.call(ctx, http.MethodGet, q.table.url, params, nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		err = errors.NewServiceError(resp.StatusCode, resp.Header, respBody)
		return nil, err
	}

	envelope := recordSetEnvelope{}
	err = json.Unmarshal(respBody, &envelope)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal response: %s (%w)", err.Error(), errors.ErrBadResponse)
		return nil, err
	}

	if envelope.Result == nil {
		return servicenow.RecordSet{}, nil
	}

	return envelope.Result, nil
}
