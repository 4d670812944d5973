package deploysdk

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/imroc/req/v3"
)

var (
	// sdk common
	ErrNoServerURL      = errors.New("sdk: server url missing")
	ErrInvalidServerURL = errors.New("sdk: server url must be an absolute http(s) url")
	ErrNoToken          = errors.New("sdk: access token missing")

	// projects
	ErrNoProject = errors.New("sdk: project missing")

	// deployments
	ErrNoDeployment = errors.New("sdk: deployment id missing")
)

const (
	CodeUnknownError    = "E_UNKNOWN_ERR"
	CodeProjectNotFound = "projectNotFound"
	CodeUnauthorized    = "unauthorized"
)

// maxErrorBody bounds how much of a failed streaming response is read
const maxErrorBody = 64 * 1024

// APIError is the structured error body returned by the deploy API
// on any non-success response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Status is the HTTP status code of the response
	Status int `json:"-"`
	// XDenoRay is the diagnostic id the server attaches to every response
	XDenoRay string `json:"-"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
	if e.XDenoRay != "" {
		msg += fmt.Sprintf(" (x-deno-ray: %s)", e.XDenoRay)
	}
	return msg
}

// IsNotFound reports whether err carries a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// handleAPIError is a helper function that handles the common error pattern
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	// got a response, but api returned an error
	if resp.IsErrorState() {
		apiErr, ok := resp.ErrorResult().(*APIError)
		if !ok || apiErr.Code == "" {
			apiErr = &APIError{Code: CodeUnknownError, Message: fallbackMessage(resp.String(), resp.Status)}
		}
		apiErr.Status = resp.GetStatusCode()
		apiErr.XDenoRay = resp.GetHeader(HeaderDenoRay)
		return fmt.Errorf("%s: %w", operation, apiErr)
	}

	return nil
}

// handleStreamError builds the error of a failed streaming request. The
// client may already have decoded the body into the common error result;
// otherwise whatever is left of the body is decoded here.
func handleStreamError(resp *req.Response, operation string) error {
	defer resp.Body.Close()

	apiErr, ok := resp.ErrorResult().(*APIError)
	if !ok || apiErr.Code == "" {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if len(body) == 0 {
			// drained by the client, which keeps a copy
			body = resp.Bytes()
		}

		apiErr = &APIError{}
		if err := jsonUnmarshal(body, apiErr); err != nil || apiErr.Code == "" {
			apiErr = &APIError{Code: CodeUnknownError, Message: fallbackMessage(string(body), resp.Status)}
		}
	}
	apiErr.Status = resp.StatusCode
	apiErr.XDenoRay = resp.Header.Get(HeaderDenoRay)

	return fmt.Errorf("%s: %w", operation, apiErr)
}

func fallbackMessage(body, status string) string {
	if msg := strings.TrimSpace(body); msg != "" {
		return msg
	}
	return status
}
