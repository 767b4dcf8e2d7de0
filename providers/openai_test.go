package providers

import (
	"errors"
	"testing"

	"github.com/ragflow-go/ragflow/flow"
)

func TestTranslateOpenAIError(t *testing.T) {
	cases := []struct {
		msg  string
		want error
	}{
		{"429 rate limit exceeded", flow.ErrRateLimited},
		{"request timeout", flow.ErrTimeout},
		{"503 service unavailable", flow.ErrServiceUnavailable},
		{"401 invalid api key authentication failed", flow.ErrAuthFailure},
		{"insufficient_quota: quota exceeded", flow.ErrQuotaExceeded},
		{"model gpt-9 not found", flow.ErrModelNotFound},
	}

	for _, c := range cases {
		got := translateOpenAIError(errors.New(c.msg))
		if !errors.Is(got, c.want) {
			t.Errorf("translateOpenAIError(%q) = %v, want wrapping %v", c.msg, got, c.want)
		}
	}
}

func TestTranslateOpenAIError_Nil(t *testing.T) {
	if translateOpenAIError(nil) != nil {
		t.Errorf("expected nil passthrough")
	}
}
