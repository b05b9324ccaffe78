package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Type:    ErrInvalidRequest,
		Message: "title must not be empty",
	}

	expected := "invalid_request_error: title must not be empty"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestError_WithCode(t *testing.T) {
	err := &Error{
		Type:    ErrEmptyResult,
		Message: "no image",
		Code:    "SAFETY",
	}

	expected := "empty_result_error: no image (code: SAFETY)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		wantReset bool
	}{
		{
			name:     "permission",
			err:      errors.New("Permission denied on resource: missing resourcemanager.projects.get"),
			wantType: ErrPermission,
		},
		{
			name:      "entity not found",
			err:       errors.New("Requested entity was not found."),
			wantType:  ErrAuthentication,
			wantReset: true,
		},
		{
			name:      "invalid key any case",
			err:       fmt.Errorf("generate: %w", errors.New("API key not valid. Please pass a valid API key.")),
			wantType:  ErrAuthentication,
			wantReset: true,
		},
		{
			name:     "typed error passes through",
			err:      fmt.Errorf("turn: %w", NewEmptyResultError("no image")),
			wantType: ErrEmptyResult,
		},
		{
			name:      "api error with key marker is reclassified",
			err:       NewAPIError("call failed", errors.New("API key not valid")),
			wantType:  ErrAuthentication,
			wantReset: true,
		},
		{
			name:     "unknown",
			err:      errors.New("connection reset by peer"),
			wantType: ErrAPI,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tt.err)
			if got.Type != tt.wantType {
				t.Fatalf("Type=%v, want %v", got.Type, tt.wantType)
			}
			if tt.wantReset && !got.ResetCredential {
				t.Fatalf("ResetCredential=false, want true")
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Fatalf("Classify(nil)=%v, want nil", got)
	}
}

func TestFriendlyMarkdown(t *testing.T) {
	t.Parallel()

	msg, reset := FriendlyMarkdown(errors.New("missing resourcemanager.projects.get"))
	if !strings.Contains(msg, "### Permission Denied") || reset {
		t.Fatalf("permission message=%q reset=%v", msg, reset)
	}

	msg, reset = FriendlyMarkdown(errors.New("api key not valid"))
	if !strings.Contains(msg, "### API Key Invalid") || !reset {
		t.Fatalf("credential message=%q reset=%v", msg, reset)
	}

	msg, reset = FriendlyMarkdown(errors.New("dial tcp: i/o timeout"))
	want := "An unexpected error occurred.\n\n**Details:**\n```\ndial tcp: i/o timeout\n```"
	if msg != want || reset {
		t.Fatalf("fallback message=%q, want %q", msg, want)
	}

	msg, _ = FriendlyMarkdown(NewEmptyResultError("Image generation failed or returned no image data."))
	if !strings.Contains(msg, "Image generation failed or returned no image data.") {
		t.Fatalf("empty result message=%q", msg)
	}
}
