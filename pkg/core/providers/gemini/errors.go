package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/vango-go/vai-studio/pkg/core"
)

// mapError converts SDK errors into *core.Error. The API message is kept
// verbatim so core.Classify can recognize permission and key problems, which
// arrive as NOT_FOUND or INVALID_ARGUMENT statuses.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		return core.Classify(core.NewAPIError(err.Error(), err))
	}

	msg := apiErr.Message
	if msg == "" {
		msg = err.Error()
	}
	e := core.NewAPIError(msg, err)
	e.Code = apiErr.Status
	return core.Classify(e)
}

// httpError builds an error for a failed plain HTTP call.
func httpError(resp *http.Response) error {
	e := core.NewAPIError(fmt.Sprintf("request failed with status %d", resp.StatusCode), nil)
	e.Code = http.StatusText(resp.StatusCode)
	return e
}
