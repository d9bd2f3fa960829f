// Package client talks to the table REST API of a remote instance.
// A Client holds the instance base URL and credentials, hands out
// Table handles bound to named tables, and issues one synchronous
// HTTP call per operation.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/lewisgf/snowclient/pkg/servicenow"
	"github.com/lewisgf/snowclient/pkg/servicenow/errors"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

const (
	tableAPIPath = "/api/now/v1/table/"

	userTable   = "sys_user"
	choiceTable = "sys_choice"

	defaultDomainSuffix = ".service-now.com"
)

const (
	TraceAttributeTable string = "table"
	TraceAttributeSysID string = "sys-id"
)

var tracer = otel.Tracer("snowclient")

// Debug enables dumping of failed request/response pairs to the
// structured log found in the call context.
func Debug(enabled bool) func(*Client) {
	return func(c *Client) {
		c.debug = enabled
	}
}

// New creates a client for the given instance. The instance argument
// is either a bare instance name, which resolves to
// https://<name>.service-now.com, or a full URL. A single trailing
// slash is stripped.
func New(instance, username, password string, options ...func(*Client)) *Client {
	jar, _ := cookiejar.New(nil)

	c := &Client{
		baseURL:  normalizeInstanceURL(instance),
		username: username,
		password: password,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			// best effort session affinity; the API is stateless so
			// replayed cookies may or may not be honored
			Jar: jar,
		},
	}

	for _, option := range options {
		option(c)
	}

	return c
}

type Client struct {
	baseURL  string
	username string
	password string
	debug    bool

	httpClient *http.Client
}

func normalizeInstanceURL(instance string) string {
	base := instance

	if !strings.HasPrefix(base, "https://") && !strings.HasPrefix(base, "http://") {
		base = "https://" + base
	}

	base = strings.TrimSuffix(base, "/")

	if !strings.Contains(strings.TrimSuffix(instance, "/"), ".") {
		base += defaultDomainSuffix
	}

	return base
}

// BaseURL returns the normalized instance URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL joins the base URL and a path component with exactly one slash.
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		return c.baseURL + "/" + path
	}
	return c.baseURL + path
}

// RecordLink builds a browser URL to a specific record, using the
// record's class name and identifier. With menu set, the link is
// wrapped in the navigation frame.
func (c *Client) RecordLink(rec servicenow.Record, menu bool) string {
	table := rec.ClassName()
	sysID := rec.SysID()

	if menu {
		return c.URL("nav_to.do?uri=" + table + ".do?sys_id=" + sysID)
	}

	return c.URL(table + ".do?sys_id=" + sysID)
}

// Table returns a handle bound to the named table.
func (c *Client) Table(name string) *Table {
	return &Table{
		client: c,
		name:   name,
		url:    c.URL(tableAPIPath + name),
	}
}

// Connect verifies the stored credentials by looking up the client's
// own user record. Anything but exactly one match, including a failed
// query, fails with an error matching errors.ErrConnection.
func (c *Client) Connect(ctx context.Context) error {
	var err error

	ctx, span := tracer.Start(ctx, "connect")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	recs, err := c.Table(userTable).Query().Filter("user_name=" + c.username).Run(ctx)
	if err != nil || len(recs) != 1 {
		err = errors.NewConnectionError(c.baseURL, c.username)
		return err
	}

	return nil
}

func (c *Client) call(ctx context.Context, method, endpoint string, params url.Values, body io.Reader) (*http.Response, []byte, error) {
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal)
	}

	req.Header.Add("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %s (%w)", err.Error(), errors.ErrRequest)
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %s (%w)", err.Error(), errors.ErrBadResponse)
	}

	if c.debug {
		if resp.StatusCode >= http.StatusBadRequest {
			if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusNotFound {
				reqbytes, _ := httputil.DumpRequest(req, false)
				respbytes, _ := httputil.DumpResponse(resp, false)

				log := logging.GetFromContext(ctx)
				log.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
			}
		}
	}

	return resp, respBody, nil
}
