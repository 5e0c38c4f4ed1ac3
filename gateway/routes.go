package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/service"
)

// Route maps one HTTP endpoint onto a NATS request subject. Path uses
// net/http 1.22 patterns, so "/api/v1/runs/{id}" captures the id segment.
type Route struct {
	// Method is the HTTP method (GET, POST, PUT, DELETE, PATCH).
	Method string

	// Path is the HTTP route pattern registered on the mux.
	Path string

	// Subject is the NATS request subject the route forwards to.
	Subject string

	// Timeout bounds the NATS request/reply exchange.
	Timeout time.Duration

	// Payload builds the NATS request payload from the HTTP request and its
	// already-read body. Nil passes the body through unchanged. A returned
	// error is treated as invalid input and answered with 400.
	Payload func(r *http.Request, body []byte) ([]byte, error)
}

// Timeout bounds accepted by Validate.
const (
	minRouteTimeout = 100 * time.Millisecond
	maxRouteTimeout = 30 * time.Second

	defaultRouteTimeout = 5 * time.Second
)

var validMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

// Validate checks the route and fills in the default timeout.
func (r *Route) Validate() error {
	if r.Path == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Route", "Validate",
			"path cannot be empty")
	}
	if !strings.HasPrefix(r.Path, "/") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Route", "Validate",
			fmt.Sprintf("path must start with '/': %s", r.Path))
	}

	if !validMethods[r.Method] {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Route", "Validate",
			fmt.Sprintf("invalid HTTP method: %q", r.Method))
	}

	if r.Subject == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Route", "Validate",
			"subject cannot be empty")
	}

	if r.Timeout == 0 {
		r.Timeout = defaultRouteTimeout
	}
	if r.Timeout < minRouteTimeout || r.Timeout > maxRouteTimeout {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Route", "Validate",
			fmt.Sprintf("timeout must be between %s and %s", minRouteTimeout, maxRouteTimeout))
	}

	return nil
}

// DefaultRoutes returns the REST surface for the simulation service. The
// simulate route gets a longer timeout: a full run with many compounds is
// slower than the catalog lookups.
func DefaultRoutes() []Route {
	return []Route{
		{
			Method:  http.MethodPost,
			Path:    "/api/v1/simulate",
			Subject: service.SubjectSimulate,
			Timeout: 15 * time.Second,
		},
		{
			Method:  http.MethodGet,
			Path:    "/api/v1/methods",
			Subject: service.SubjectMethodsList,
		},
		{
			Method:  http.MethodGet,
			Path:    "/api/v1/compounds",
			Subject: service.SubjectCompoundsList,
		},
		{
			Method:  http.MethodGet,
			Path:    "/api/v1/runs",
			Subject: service.SubjectRunsList,
			Payload: runsListPayload,
		},
		{
			Method:  http.MethodGet,
			Path:    "/api/v1/runs/{id}",
			Subject: service.SubjectRunsGet,
			Payload: runsGetPayload,
		},
	}
}

// runsListPayload translates the optional ?limit query parameter into a
// runs.list request. The service applies its own default when no payload is
// sent.
func runsListPayload(r *http.Request, _ []byte) ([]byte, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return nil, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Gateway", "runsListPayload",
			fmt.Sprintf("limit must be an integer, got %q", raw))
	}

	return json.Marshal(service.RunsListRequest{Limit: limit})
}

// runsGetPayload lifts the {id} path segment into a runs.get request.
func runsGetPayload(r *http.Request, _ []byte) ([]byte, error) {
	return json.Marshal(service.RunsGetRequest{ID: r.PathValue("id")})
}
