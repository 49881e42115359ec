package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TestCategorizeError verifies that CategorizeError maps errors to the correct ErrorCategory
// for metrics labeling, including status errors, wrapped errors, and message-based heuristics.
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"timeout context", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"canceled context", context.Canceled, ErrorCategoryTimeout},
		{"wrapped timeout", fmt.Errorf("request timeout: %w", context.DeadlineExceeded), ErrorCategoryTimeout},
		{"rejected 400", &StatusError{StatusCode: 400, kind: ErrUploadRejected}, ErrorCategoryRejected},
		{"rejected 401", &StatusError{StatusCode: 401, kind: ErrUploadRejected}, ErrorCategoryRejected},
		{"rate limited", &StatusError{StatusCode: 429, kind: ErrUploadRejected}, ErrorCategoryRateLimited},
		{"server error on post", &StatusError{StatusCode: 503, kind: ErrUploadRejected}, ErrorCategoryUpstream5xx},
		{"plain rejected sentinel", ErrUploadRejected, ErrorCategoryRejected},
		{"upstream failure", fmt.Errorf("fetch: %w", ErrUpstreamFailure), ErrorCategoryUpstream5xx},
		{"network in message", errors.New("http request failed: dial tcp: connection refused"), ErrorCategoryNetwork},
		{"parse in message", errors.New("parse response: invalid character"), ErrorCategoryParsing},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeError(tt.err)
			if got != tt.want {
				t.Errorf("CategorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}
