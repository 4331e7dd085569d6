// Package errors provides error types and classification for the crawler.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrPoolExhausted is returned when no browser handle becomes available
// before the acquisition timeout elapses.
var ErrPoolExhausted = errors.New("browser pool exhausted")

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Transient represents per-URL fetch failures (DNS, connection, non-200).
	Transient
	// Timeout represents navigation or request timeouts.
	Timeout
	// Session represents failures indicating the backing browser
	// process/context is unusable, distinct from a per-page error.
	Session
	// BotDetection represents challenge pages served on 403/503.
	BotDetection
	// PoolExhausted represents browser pool acquisition timeouts.
	PoolExhausted
	// Cancelled represents context cancellation.
	Cancelled
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Transient:
		return "transient"
	case Timeout:
		return "timeout"
	case Session:
		return "session"
	case BotDetection:
		return "bot_detection"
	case PoolExhausted:
		return "pool_exhausted"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CrawlError represents a categorized crawl error.
type CrawlError struct {
	Type       ErrorType
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error on %s: %s: %v", e.Type, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error on %s: %s", e.Type, e.URL, e.Message)
}

// Unwrap returns the underlying error.
func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target by type.
func (e *CrawlError) Is(target error) bool {
	t, ok := target.(*CrawlError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// New creates a new CrawlError.
func New(errType ErrorType, url, message string, cause error) *CrawlError {
	return &CrawlError{
		Type:    errType,
		URL:     url,
		Message: message,
		Cause:   cause,
	}
}

// NewStatusError creates a transient error for a non-success HTTP status.
func NewStatusError(url string, statusCode int) *CrawlError {
	err := New(Transient, url, fmt.Sprintf("status %d", statusCode), nil)
	err.StatusCode = statusCode
	return err
}

// NewBotDetectionError creates a bot-detection error for a challenge page.
func NewBotDetectionError(url string, statusCode int) *CrawlError {
	err := New(BotDetection, url, "bot challenge page detected", nil)
	err.StatusCode = statusCode
	return err
}

// sessionMarkers are substrings of driver errors that indicate the
// underlying browser process or context is gone.
var sessionMarkers = []string{
	"target closed",
	"session closed",
	"browser has been closed",
	"context was destroyed",
	"websocket: close",
	"cdp connection",
}

// challengeMarkers are substrings of page content that identify common
// anti-bot challenge interstitials.
var challengeMarkers = []string{
	"cf-browser-verification",
	"cf-challenge",
	"checking your browser",
	"attention required",
	"access denied",
	"captcha",
	"are you a robot",
}

// Categorize determines the error type from a generic error.
func Categorize(err error, url string) *CrawlError {
	if err == nil {
		return nil
	}

	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr
	}

	if errors.Is(err, ErrPoolExhausted) {
		return New(PoolExhausted, url, "no handle available", err)
	}

	if errors.Is(err, context.Canceled) {
		return New(Cancelled, url, "operation cancelled", err)
	}

	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return New(Timeout, url, "navigation timed out", err)
	}

	if isSessionError(err) {
		return New(Session, url, "browser session failure", err)
	}

	if isNetworkError(err) {
		return New(Transient, url, "network failure", err)
	}

	return New(Unknown, url, err.Error(), err)
}

// DetectChallenge reports whether a response looks like an anti-bot
// challenge: a 403/503 status whose body carries challenge markup.
func DetectChallenge(statusCode int, html string) bool {
	if statusCode != 403 && statusCode != 503 {
		return false
	}
	lower := strings.ToLower(html)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsSession reports whether err indicates an unusable browser session.
func IsSession(err error) bool {
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.Type == Session
	}
	return isSessionError(err)
}

// IsBotDetection reports whether err is a bot-detection error.
func IsBotDetection(err error) bool {
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.Type == BotDetection
	}
	return false
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.Type
	}
	return Unknown
}

func isSessionError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range sessionMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp")
}
