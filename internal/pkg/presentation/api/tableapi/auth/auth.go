// Package auth decides whether an authenticated user may perform an
// operation on a table, using a rego policy evaluated per request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/open-policy-agent/opa/rego"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("snowsim/tableapi/authz")

var ErrNoCredentials = errors.New("no credentials provided")
var ErrAccessDenied = errors.New("access denied")

// DefaultPolicy allows any authenticated caller to do anything. It is
// used when the simulator is started without a policy file.
const DefaultPolicy string = `package tableapi.authz

default allow = false

allow = response {
	input.user != ""
	response := {
		"user": input.user,
	}
}
`

type Authenticator interface {
	CheckAccess(ctx context.Context, r *http.Request, table string) error
}

type authenticatorImpl struct {
	preparedQuery rego.PreparedEvalQuery
}

func NewAuthenticator(ctx context.Context, policies io.Reader) (Authenticator, error) {

	module, err := io.ReadAll(policies)
	if err != nil {
		return nil, fmt.Errorf("unable to read authz policies: %s", err.Error())
	}

	impl := &authenticatorImpl{}

	impl.preparedQuery, err = rego.New(
		rego.Query("x = data.tableapi.authz.allow"),
		rego.Module("authz.rego", string(module)),
	).PrepareForEval(ctx)

	if err != nil {
		return nil, err
	}

	return impl, nil
}

func (a *authenticatorImpl) CheckAccess(ctx context.Context, r *http.Request, table string) error {
	var err error

	_, span := tracer.Start(ctx, "check-auth")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	user, _, ok := r.BasicAuth()
	if !ok || user == "" {
		err = ErrNoCredentials
		return err
	}

	path := strings.Split(r.URL.Path, "/")

	input := map[string]any{
		"method": r.Method,
		"path":   path[1:],
		"user":   user,
		"table":  table,
	}

	results, err := a.preparedQuery.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		err = fmt.Errorf("opa eval failed: %w", err)
		return err
	}

	if len(results) == 0 {
		err = fmt.Errorf("auth failed: opa query could not be satisfied")
		return err
	}

	binding := results[0].Bindings["x"]

	// a denied request evaluates to a single bool
	allowed, ok := binding.(bool)
	if ok && !allowed {
		err = ErrAccessDenied
		return err
	}

	// an allowed request evaluates to a result object
	_, ok = binding.(map[string]any)
	if !ok {
		err = errors.New("opa error: unexpected result type")
		return err
	}

	return nil
}
