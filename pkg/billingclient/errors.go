package billingclient

import (
	"errors"
	"fmt"
)

type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("billing api error (%d): %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the billing API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}
