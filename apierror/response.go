package apierror

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	maxMessageLen = 512

	// MaxRetryAfter bounds any back-off hint taken from upstream.
	MaxRetryAfter = 24 * time.Hour
)

// status is the subset of the Flume envelope needed to classify a response.
type status struct {
	Success  *bool    `json:"success"`
	Code     int      `json:"code"`
	Message  string   `json:"message"`
	HTTPCode int      `json:"http_code"`
	Detailed []string `json:"detailed"`
}

// Check classifies an upstream response whose body has already been read.
// It returns nil for a successful response. A 2xx whose envelope reports
// success=false is still an error, classified by the envelope's http_code.
func Check(endpoint string, resp *http.Response, body []byte, now time.Time) error {
	var env status
	decoded := json.Unmarshal(body, &env) == nil

	code := resp.StatusCode
	if code >= 200 && code < 300 {
		if !decoded || env.Success == nil || *env.Success {
			return nil
		}
		if env.HTTPCode != 0 {
			code = env.HTTPCode
		}
	}

	msg := message(env, decoded, body)
	switch code {
	case http.StatusUnauthorized:
		return &AuthenticationError{StatusCode: code, Message: msg}
	case http.StatusTooManyRequests:
		return &RateLimitError{
			Endpoint:   endpoint,
			StatusCode: code,
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), now),
			Message:    msg,
		}
	}
	return &APIError{Endpoint: endpoint, StatusCode: code, Code: env.Code, Message: msg}
}

// ParseRetryAfter understands both delta-seconds and HTTP-date values. The
// result is capped at MaxRetryAfter.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		if secs > int64(MaxRetryAfter/time.Second) {
			return MaxRetryAfter
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return min(d, MaxRetryAfter)
		}
	}
	return 0
}

func message(env status, decoded bool, body []byte) string {
	if decoded {
		parts := make([]string, 0, 1+len(env.Detailed))
		if env.Message != "" {
			parts = append(parts, env.Message)
		}
		parts = append(parts, env.Detailed...)
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen]
	}
	return msg
}
