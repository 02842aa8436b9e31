package outlook

import (
	"errors"
	"fmt"
	"net/http"

	abstractions "github.com/microsoft/kiota-abstractions-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
)

// APIError is a failed Graph request.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("graph: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("graph: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// IsTransient reports whether err is a throttling or server-side failure
// worth retrying.
func IsTransient(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
}

// IsRejected reports whether the service refused a request without acting
// on it: throttling and service unavailable.
func IsRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusTooManyRequests || apiErr.Status == http.StatusServiceUnavailable
}

func convertError(err error) error {
	if err == nil {
		return nil
	}
	var odataErr *odataerrors.ODataError
	if errors.As(err, &odataErr) {
		apiErr := &APIError{Status: odataErr.ResponseStatusCode}
		if main := odataErr.GetErrorEscaped(); main != nil {
			apiErr.Code = deref(main.GetCode())
			apiErr.Message = deref(main.GetMessage())
		}
		return apiErr
	}
	var generic *abstractions.ApiError
	if errors.As(err, &generic) {
		return &APIError{Status: generic.ResponseStatusCode, Message: generic.Message}
	}
	return err
}
