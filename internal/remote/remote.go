package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a remote generation failure. The kind decides
// whether the Retrier spends retry budget on the failure.
type ErrorKind string

const (
	ErrorKindRateLimited    ErrorKind = "rate-limited"
	ErrorKindTransient      ErrorKind = "transient"
	ErrorKindPolicyRejected ErrorKind = "policy-rejected"
	ErrorKindAuthFailed     ErrorKind = "auth-failed"
	ErrorKindInvalidInput   ErrorKind = "invalid-input"
)

type Error struct {
	Kind    ErrorKind
	Message string
}

func (remoteError *Error) Error() string {
	return fmt.Sprintf("remote API error (%s): %s", remoteError.Kind, remoteError.Message)
}

func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Retryable reports whether the error is worth another attempt:
// rate limits and transient conditions are, rejections are not.
func Retryable(err error) bool {
	var remoteError *Error

	if !errors.As(err, &remoteError) {
		return false
	}

	switch remoteError.Kind {
	case ErrorKindRateLimited, ErrorKindTransient:
		return true
	default:
		return false
	}
}

// KindOf extracts the error kind, if the error originated remotely.
func KindOf(err error) (ErrorKind, bool) {
	var remoteError *Error

	if !errors.As(err, &remoteError) {
		return "", false
	}

	return remoteError.Kind, true
}

// Image is a single generated image payload.
type Image struct {
	Data     []byte
	MIMEType string
}

// Request is a single outbound call to the generation API. The prompt
// is already optimized, source images (and the optional mask) travel
// as raw bytes.
type Request struct {
	Prompt         string
	SourceImages   [][]byte
	Mask           []byte
	CandidateCount int
}

type Result struct {
	Images  []Image
	CostUSD float64
	Tokens  int
	Latency time.Duration
}

// Client is the remote generative-image API, reduced to the single
// operation the orchestration layer needs.
type Client interface {
	Invoke(ctx context.Context, request Request) (*Result, error)
}
