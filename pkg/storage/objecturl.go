// Package storage knows the shape of URLs handed out by the external object
// store holding uploaded images. Uploads themselves happen client-side; the
// API only ever sees the resulting URLs and must refuse anything that does not
// point into the expected bucket.
package storage

import (
	"net/url"
	"strings"
)

// URLValidator checks that submitted image URLs point into the configured
// object store.
type URLValidator struct {
	baseURL string
}

// NewURLValidator builds a validator for the given base URL. The base is
// normalised to always end with a slash so "bucket-a" never matches
// "bucket-ab".
func NewURLValidator(baseURL string) *URLValidator {
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &URLValidator{baseURL: baseURL}
}

// Valid reports whether raw is a well-formed https URL under the base with a
// non-empty object path.
func (v *URLValidator) Valid(raw string) bool {
	if raw == "" || v.baseURL == "" {
		return false
	}
	if !strings.HasPrefix(raw, v.baseURL) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "https" {
		return false
	}
	rest := strings.TrimPrefix(raw, v.baseURL)
	return rest != "" && !strings.HasPrefix(rest, "/")
}
