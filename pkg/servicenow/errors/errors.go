package errors

import (
	"fmt"
	"net/http"
)

var ErrBadRequest = fmt.Errorf("bad request")
var ErrBadResponse = fmt.Errorf("bad response")
var ErrConnection = fmt.Errorf("connection verification failed")
var ErrFormat = fmt.Errorf("invalid date/time format")
var ErrInternal = fmt.Errorf("internal error")
var ErrNotFound = fmt.Errorf("not found")
var ErrRequest = fmt.Errorf("request error")
var ErrService = fmt.Errorf("service error")
var ErrUnauthorized = fmt.Errorf("unauthorized")

type myError struct {
	msg    string
	target error
}

func (m myError) Error() string        { return m.msg }
func (m myError) Is(target error) bool { return target == m.target }

func NewBadRequestError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrBadRequest,
	}
}

func NewConnectionError(baseURL, username string) error {
	return &myError{
		msg:    fmt.Sprintf("unable to connect to %s as %s", baseURL, username),
		target: ErrConnection,
	}
}

func NewFormatError(input string) error {
	return &myError{
		msg:    fmt.Sprintf("invalid date/time format %q", input),
		target: ErrFormat,
	}
}

func NewNotFoundError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrNotFound,
	}
}

// maxBodyLen limits how much of a response body a ServiceError renders.
const maxBodyLen = 256

// ServiceError is returned when the remote service answers with an
// unexpected status code. It retains the status code, the response
// headers and the response body for diagnosis.
type ServiceError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func NewServiceError(statusCode int, header http.Header, body []byte) error {
	return &ServiceError{
		StatusCode: statusCode,
		Header:     header,
		Body:       body,
	}
}

func (e *ServiceError) Error() string {
	body := e.Body
	truncated := ""
	if len(body) > maxBodyLen {
		body = body[:maxBodyLen]
		truncated = "<<truncated>>"
	}
	return fmt.Sprintf("unexpected status code %d: %s%s", e.StatusCode, string(body), truncated)
}

func (e *ServiceError) Is(target error) bool {
	if target == ErrService {
		return true
	}
	if target == ErrUnauthorized {
		return e.StatusCode == http.StatusUnauthorized
	}
	if target == ErrNotFound {
		return e.StatusCode == http.StatusNotFound
	}
	return false
}
