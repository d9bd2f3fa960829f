package tableapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lewisgf/snowclient/internal/pkg/application/tables"
	"github.com/lewisgf/snowclient/internal/pkg/presentation/api/tableapi/auth"
	"github.com/lewisgf/snowclient/pkg/servicenow"

	"github.com/go-chi/chi/v5"
	"github.com/matryer/is"
)

func TestQueryRecordsReturnsEnvelopedResult(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, "alice", http.MethodGet, "/api/now/v1/table/incident?sysparm_query=active=true", nil)

	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(resp.Header.Get("X-Total-Count"), "2")

	recs := unmarshalRecordSet(is, body)
	is.Equal(len(recs), 2)
}

func TestQueryRecordsHonorsLimitAndFields(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, "alice", http.MethodGet, "/api/now/v1/table/incident?sysparm_limit=1&sysparm_fields=number", nil)

	is.Equal(resp.StatusCode, http.StatusOK)

	recs := unmarshalRecordSet(is, body)
	is.Equal(len(recs), 1)
	is.Equal(len(recs[0]), 1) // only the requested field should be present
	is.True(recs[0].StringValue("number") != "")
}

func TestQueryRecordsRejectsUnsupportedFilters(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, _ := newTestRequest(is, ts, "alice", http.MethodGet, "/api/now/v1/table/incident?sysparm_query=priority>1", nil)

	is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestCreateRecord(t *testing.T) {
	is, ts, app := setupTest(t)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, "alice", http.MethodPost, "/api/now/v1/table/incident", strings.NewReader(`{"short_description":"new incident"}`))

	is.Equal(resp.StatusCode, http.StatusCreated)

	created := unmarshalRecord(is, body)
	is.Equal(len(created.SysID()), 32)

	stored, err := app.RetrieveRecord(context.Background(), "incident", created.SysID())
	is.NoErr(err)
	is.Equal(stored.StringValue("short_description"), "new incident")
}

func TestCreateRecordReturnsOnlyRequestedFields(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, "alice", http.MethodPost, "/api/now/v1/table/incident?sysparm_fields=sys_id", strings.NewReader(`{"short_description":"x"}`))

	is.Equal(resp.StatusCode, http.StatusCreated)

	created := unmarshalRecord(is, body)
	is.Equal(len(created), 1)
	is.True(created.SysID() != "")
}

func TestCreateRecordWithBadBodyReturnsBadRequest(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, _ := newTestRequest(is, ts, "alice", http.MethodPost, "/api/now/v1/table/incident", strings.NewReader("this is not my json"))

	is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestRetrieveMissingRecordReturnsNotFound(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, "alice", http.MethodGet, "/api/now/v1/table/incident/nosuchid", nil)

	is.Equal(resp.StatusCode, http.StatusNotFound)
	is.True(strings.Contains(string(body), "No Record found"))
}

func TestUpdateRecord(t *testing.T) {
	is, ts, app := setupTest(t)
	defer ts.Close()

	created, _ := app.CreateRecord(context.Background(), "incident", servicenow.Record{"state": "1"})

	resp, body := newTestRequest(is, ts, "alice", http.MethodPut, "/api/now/v1/table/incident/"+created.SysID(), strings.NewReader(`{"state":"2"}`))

	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(unmarshalRecord(is, body).StringValue("state"), "2")
}

func TestDeleteRecord(t *testing.T) {
	is, ts, app := setupTest(t)
	defer ts.Close()

	created, _ := app.CreateRecord(context.Background(), "incident", servicenow.Record{})

	resp, _ := newTestRequest(is, ts, "alice", http.MethodDelete, "/api/now/v1/table/incident/"+created.SysID(), nil)
	is.Equal(resp.StatusCode, http.StatusNoContent)

	resp, _ = newTestRequest(is, ts, "alice", http.MethodGet, "/api/now/v1/table/incident/"+created.SysID(), nil)
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestRequestWithoutCredentialsIsUnauthorized(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/now/v1/table/incident", nil)
	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	is.Equal(resp.StatusCode, http.StatusUnauthorized)
}

func TestPolicyCanDenyTableAccess(t *testing.T) {
	is := is.New(t)

	policy := `package tableapi.authz

default allow = false

allow = response {
	input.user == "admin"
	response := {"user": input.user}
}
`

	r := chi.NewRouter()
	err := RegisterHandlers(context.Background(), r, strings.NewReader(policy), tables.New(nil))
	is.NoErr(err)

	ts := httptest.NewServer(r)
	defer ts.Close()

	resp, _ := newTestRequest(is, ts, "mallory", http.MethodGet, "/api/now/v1/table/incident", nil)

	is.Equal(resp.StatusCode, http.StatusForbidden)
}

func setupTest(t *testing.T) (*is.I, *httptest.Server, tables.TableManager) {
	is := is.New(t)

	cfg, err := tables.LoadConfiguration(bytes.NewBufferString(seedFile))
	is.NoErr(err)

	app := tables.New(cfg)

	r := chi.NewRouter()
	err = RegisterHandlers(context.Background(), r, strings.NewReader(auth.DefaultPolicy), app)
	is.NoErr(err)

	return is, httptest.NewServer(r), app
}

func newTestRequest(is *is.I, ts *httptest.Server, user, method, path string, body io.Reader) (*http.Response, []byte) {
	req, _ := http.NewRequest(method, ts.URL+path, body)
	req.SetBasicAuth(user, "secret")

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp, respBody
}

func unmarshalRecord(is *is.I, body []byte) servicenow.Record {
	envelope := struct {
		Result servicenow.Record `json:"result"`
	}{}
	is.NoErr(json.Unmarshal(body, &envelope))
	return envelope.Result
}

func unmarshalRecordSet(is *is.I, body []byte) servicenow.RecordSet {
	envelope := struct {
		Result servicenow.RecordSet `json:"result"`
	}{}
	is.NoErr(json.Unmarshal(body, &envelope))
	return envelope.Result
}

var seedFile string = `
tables:
  - name: incident
    records:
      - number: INC0010001
        active: "true"
        priority: "1"
      - number: INC0010002
        active: "true"
        priority: "3"
      - number: INC0010003
        active: "false"
        priority: "1"
`
