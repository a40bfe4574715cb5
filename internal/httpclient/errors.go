package httpclient

import (
	"fmt"
	"net/url"
)

// ProviderHTTPError is returned when the remote endpoint answered with a non-success status.
type ProviderHTTPError struct {
	StatusCode int
	Body       []byte
	URL        string
}

func (e *ProviderHTTPError) Error() string {
	const max = 512
	body := string(e.Body)
	if len(body) > max {
		body = body[:max] + "..."
	}
	if body == "" {
		return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("upstream error: status %d from %s: %s", e.StatusCode, e.URL, body)
}

// TransportError is returned when no HTTP response was received at all.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// redactURL hides credentials some providers expect in the query string.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
