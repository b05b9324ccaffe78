package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error is the typed error surfaced by backend calls, devices and store operations.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`

	// ResetCredential is set when the configured API key must be re-selected
	// before credential-gated features are offered again.
	ResetCredential bool `json:"reset_credential,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrPermission     ErrorType = "permission_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrEmptyResult    ErrorType = "empty_result_error"
	ErrDevice         ErrorType = "device_error"
	ErrTimeout        ErrorType = "timeout_error"
	ErrAPI            ErrorType = "api_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

// NewEmptyResultError creates an error for a generation that produced no usable output.
func NewEmptyResultError(message string) *Error {
	return &Error{Type: ErrEmptyResult, Message: message}
}

// NewDeviceError wraps a microphone or speaker failure.
func NewDeviceError(message string, cause error) *Error {
	return &Error{Type: ErrDevice, Message: message, cause: cause}
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(message string, cause error) *Error {
	return &Error{Type: ErrTimeout, Message: message, cause: cause}
}

// NewAPIError wraps a transport or otherwise unclassified backend failure.
func NewAPIError(message string, cause error) *Error {
	return &Error{Type: ErrAPI, Message: message, cause: cause}
}

const (
	permissionMarker  = "resourcemanager.projects.get"
	entityNotFound    = "Requested entity was not found."
	invalidKeyMarker  = "api key not valid"
	permissionDetails = `
### Permission Denied
It looks like there's a permission issue with your Google Cloud project.
**Error Details:** You are missing the ` + "`resourcemanager.projects.get`" + ` permission.
**How to fix this:**
*   **Check IAM Roles:** Ensure your account has a role like "Project Viewer" or a custom role that includes the required permission for the selected project.
*   **Enable API:** Make sure the Gemini API is enabled in your Google Cloud project.
*   **Select a Different Project:** If you have access to other projects, you can try selecting a different one.
You can use the [Google Cloud IAM Troubleshooter](https://console.cloud.google.com/iam-admin/troubleshooter) to diagnose the issue further.
`
	invalidKeyDetails = `
### API Key Invalid
The API key you've selected is either invalid or the associated project could not be found.
Please select a valid project API key (set GEMINI_API_KEY) and try again.
`
)

// Classify maps any error to a *Error. Typed errors are returned unchanged;
// everything else is classified from its message text.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) && typed.Type != ErrAPI {
		return typed
	}

	msg := err.Error()
	if typed != nil && typed.cause != nil {
		msg += ": " + typed.cause.Error()
	}
	switch {
	case strings.Contains(msg, permissionMarker):
		return &Error{Type: ErrPermission, Message: msg, cause: err}
	case strings.Contains(msg, entityNotFound) || strings.Contains(strings.ToLower(msg), invalidKeyMarker):
		return &Error{Type: ErrAuthentication, Message: msg, ResetCredential: true, cause: err}
	}
	if typed != nil {
		return typed
	}
	return &Error{Type: ErrAPI, Message: msg, cause: err}
}

// FriendlyMarkdown renders a classified error as the markdown shown in place
// of a model reply. The second return value reports whether the credential
// flag must be reset.
func FriendlyMarkdown(err error) (string, bool) {
	ce := Classify(err)
	if ce == nil {
		return "", false
	}
	switch ce.Type {
	case ErrPermission:
		return permissionDetails, false
	case ErrAuthentication:
		return invalidKeyDetails, true
	}
	return "An unexpected error occurred.\n\n**Details:**\n```\n" + detailText(ce) + "\n```", false
}

func detailText(e *Error) string {
	if e.cause != nil && e.Type == ErrAPI {
		return e.cause.Error()
	}
	return e.Message
}
