package common

import (
	"net/url"
	"strings"
)

// idQueryParams are the only query parameters that survive canonicalization,
// checked in priority order.
var idQueryParams = []string{"jk", "jobid", "id", "job_id"}

// CanonicalURL reduces an apply URL to its dedup key.
//
// Indeed URLs with a jk= parameter collapse to "indeed_<id>" so the same
// posting reached through different Indeed entry points dedups to one key.
// Everything else reduces to host+path with identifying query parameters
// preserved and all tracking parameters dropped.
//
// Total function: unparseable input is returned trimmed and lowercased.
func CanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return strings.ToLower(trimmed)
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	query := u.Query()
	if strings.Contains(host, "indeed") {
		if jk := query.Get("jk"); jk != "" {
			return "indeed_" + strings.ToLower(jk)
		}
	}

	path := strings.TrimSuffix(u.Path, "/")
	canonical := host + path

	for _, param := range idQueryParams {
		if v := query.Get(param); v != "" {
			return canonical + "?" + param + "=" + strings.ToLower(v)
		}
	}

	return canonical
}
