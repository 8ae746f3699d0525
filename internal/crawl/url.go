package crawl

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

// ErrInvalidURL is returned when a URL cannot be crawled.
var ErrInvalidURL = errors.New("invalid url")

// skipExtensions lists file extensions that are never worth rendering:
// binary assets, archives, media, and static resources.
var skipExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".ppt": {}, ".pptx": {}, ".zip": {}, ".rar": {}, ".tar": {},
	".gz": {}, ".7z": {}, ".jpg": {}, ".jpeg": {}, ".png": {},
	".gif": {}, ".svg": {}, ".webp": {}, ".ico": {}, ".mp3": {},
	".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".css": {},
	".js": {}, ".json": {}, ".xml": {},
}

// Normalize canonicalizes a URL for deduplication: the fragment is
// dropped, the host is lowercased, and a trailing slash is stripped
// unless the path is the root. Query strings are preserved because they
// can select distinct content.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	if u.Path != "/" {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	return u.String(), nil
}

// Resolve resolves a possibly relative href against base and normalizes
// the result.
func Resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return Normalize(base.ResolveReference(ref).String())
}

// Validator decides which URLs belong to the crawl.
type Validator struct {
	host string
}

// NewValidator creates a Validator scoped to the host of the seed URL.
func NewValidator(seed string) (*Validator, error) {
	u, err := url.Parse(seed)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	if u.Host == "" {
		return nil, ErrInvalidURL
	}
	return &Validator{host: strings.ToLower(u.Host)}, nil
}

// Host returns the host the validator is scoped to.
func (v *Validator) Host() string {
	return v.host
}

// Valid reports whether raw is an http(s) URL on the crawl's host with
// a crawlable extension.
func (v *Validator) Valid(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if strings.ToLower(u.Host) != v.host {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if _, skip := skipExtensions[ext]; skip {
		return false
	}
	return true
}

// SameHost reports whether raw is on the crawl's host, regardless of
// extension. Used to classify links as internal without deciding
// whether to crawl them.
func (v *Validator) SameHost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.ToLower(u.Host) == v.host
}
