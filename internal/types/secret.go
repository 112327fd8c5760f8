package types

import (
	"encoding/json"
	"net/url"
)

// RedactedURL holds a store URL whose credentials must never reach logs or
// config dumps. Its printable forms keep the scheme, host and path so a dump
// still names the endpoint in play, while the password is masked. A value
// that is not URL-shaped is masked wholesale.
type RedactedURL struct {
	raw string
}

func NewRedactedURL(raw string) RedactedURL {
	return RedactedURL{raw: raw}
}

// Value returns the full URL, credentials included. Only connection code
// should call this.
func (u RedactedURL) Value() string {
	return u.raw
}

func (u RedactedURL) String() string {
	return u.Redacted()
}

// Redacted renders the URL for diagnostics with any password replaced by
// "xxxxx". Values without a scheme carry no structure to preserve and render
// as "[REDACTED]".
func (u RedactedURL) Redacted() string {
	if u.raw == "" {
		return ""
	}
	parsed, err := url.Parse(u.raw)
	if err != nil || parsed.Scheme == "" {
		return "[REDACTED]"
	}
	return parsed.Redacted()
}

func (u RedactedURL) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Redacted())
}

func (u *RedactedURL) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.raw = raw
	return nil
}

func (u RedactedURL) IsEmpty() bool {
	return u.raw == ""
}
