package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lewisgf/snowclient/internal/pkg/application/tables"
	"github.com/lewisgf/snowclient/internal/pkg/infrastructure/router"
	"github.com/lewisgf/snowclient/internal/pkg/presentation/api/tableapi"
	"github.com/lewisgf/snowclient/internal/pkg/presentation/api/tableapi/auth"
	"github.com/lewisgf/snowclient/pkg/servicenow"
	"github.com/lewisgf/snowclient/pkg/servicenow/client"
	snerrors "github.com/lewisgf/snowclient/pkg/servicenow/errors"

	"github.com/matryer/is"
)

func TestIntegrateConnect(t *testing.T) {
	is, ts, c := setupIntegrationTest(t)
	defer ts.Close()

	err := c.Connect(context.Background())
	is.NoErr(err)
}

func TestIntegrateConnectWithUnknownUserFails(t *testing.T) {
	is, ts, _ := setupIntegrationTest(t)
	defer ts.Close()

	c := client.New(ts.URL, "nobody", "secret")

	err := c.Connect(context.Background())
	is.True(errors.Is(err, snerrors.ErrConnection))
}

func TestIntegrateRecordRoundTrip(t *testing.T) {
	is, ts, c := setupIntegrationTest(t)
	defer ts.Close()

	ctx := context.Background()
	incidents := c.Table("incident")

	sysID, err := incidents.Insert(ctx, servicenow.Record{
		"short_description": "printer on fire",
		"priority":          "1",
	})
	is.NoErr(err)
	is.Equal(len(sysID), 32)

	rec, err := incidents.Get(ctx, sysID, false)
	is.NoErr(err)
	is.Equal(rec.StringValue("short_description"), "printer on fire")
	is.Equal(rec.ClassName(), "incident")

	err = incidents.Update(ctx, sysID, servicenow.Record{"priority": "3"})
	is.NoErr(err)

	rec, err = incidents.Get(ctx, sysID, false)
	is.NoErr(err)
	is.Equal(rec.StringValue("priority"), "3")

	err = incidents.Delete(ctx, sysID)
	is.NoErr(err)

	rec, err = incidents.Get(ctx, sysID, false)
	is.NoErr(err)
	is.True(rec == nil) // deleted records should no longer be found
}

func TestIntegrateQuery(t *testing.T) {
	is, ts, c := setupIntegrationTest(t)
	defer ts.Close()

	records, err := c.Table("sys_user").Query().
		Filter("active=true").
		Fields("user_name").
		Run(context.Background())

	is.NoErr(err)
	is.Equal(len(records), 2)

	for _, rec := range records {
		is.Equal(len(rec), 1) // only the requested field should be returned
	}
}

func TestIntegrateChoices(t *testing.T) {
	is, ts, c := setupIntegrationTest(t)
	defer ts.Close()

	choices, err := c.Table("incident").Choices(context.Background(), "priority", false)
	is.NoErr(err)
	is.Equal(len(choices), 2)

	choices, err = c.Table("incident").Choices(context.Background(), "priority", true)
	is.NoErr(err)
	is.Equal(len(choices), 3)
}

func setupIntegrationTest(t *testing.T) (*is.I, *httptest.Server, *client.Client) {
	is := is.New(t)

	cfg, err := tables.LoadConfiguration(bytes.NewBufferString(integrationSeed))
	is.NoErr(err)

	r := router.New("snowsim-test")
	err = tableapi.RegisterHandlers(context.Background(), r, strings.NewReader(auth.DefaultPolicy), tables.New(cfg))
	is.NoErr(err)

	ts := httptest.NewServer(r)

	return is, ts, client.New(ts.URL, "admin", "secret")
}

var integrationSeed string = `
tables:
  - name: sys_user
    records:
      - user_name: admin
        active: "true"
      - user_name: itil
        active: "true"
      - user_name: retired
        active: "false"
  - name: sys_choice
    records:
      - name: incident
        element: priority
        label: Critical
        value: "1"
        inactive: "false"
      - name: incident
        element: priority
        label: Moderate
        value: "3"
        inactive: "false"
      - name: incident
        element: priority
        label: Legacy
        value: "9"
        inactive: "true"
  - name: incident
    records: []
`
