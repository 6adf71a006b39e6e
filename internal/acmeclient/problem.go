package acmeclient

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mdacme/mdacme/internal/acmeerr"
	"github.com/mdacme/mdacme/internal/acmehttp"
	"github.com/mdacme/mdacme/internal/acmejson"
)

// problemTypeKind maps an RFC 7807 "type" field, after stripping the
// urn:ietf:params: and urn: prefixes, to an error kind (spec section
// 4.6's problem-type table).
var problemTypeKind = map[string]acmeerr.Kind{
	"acme:error:badcsr":                acmeerr.KindInvalidArgument,
	"acme:error:badsignaturealgorithm": acmeerr.KindInvalidArgument,
	"acme:error:malformed":             acmeerr.KindInvalidArgument,
	"acme:error:badrevocationreason":   acmeerr.KindInvalidArgument,

	"acme:error:badnonce":            acmeerr.KindGeneral,
	"acme:error:serverinternal":      acmeerr.KindGeneral,
	"acme:error:caa":                 acmeerr.KindGeneral,
	"acme:error:dns":                 acmeerr.KindGeneral,
	"acme:error:connection":          acmeerr.KindGeneral,
	"acme:error:tls":                 acmeerr.KindGeneral,
	"acme:error:incorrectresponse":   acmeerr.KindGeneral,
	"acme:error:unsupportedcontact":  acmeerr.KindGeneral,

	"acme:error:invalidcontact":       acmeerr.KindBadArgument,
	"acme:error:ratelimited":          acmeerr.KindBadArgument,
	"acme:error:rejectedidentifier":   acmeerr.KindBadArgument,
	"acme:error:unsupportedidentifier": acmeerr.KindBadArgument,

	"acme:error:unauthorized": acmeerr.KindAccessDenied,

	"acme:error:useractionrequired": acmeerr.KindRetryLater,
}

// mapProblemType resolves a raw RFC 7807 "type" URI to an error kind,
// defaulting unrecognized types to KindGeneral.
func mapProblemType(rawType string) acmeerr.Kind {
	t := strings.ToLower(strings.TrimSpace(rawType))
	t = strings.TrimPrefix(t, "urn:ietf:params:")
	t = strings.TrimPrefix(t, "urn:")
	if kind, ok := problemTypeKind[t]; ok {
		return kind
	}
	return acmeerr.KindGeneral
}

// statusKind is the fallback mapping for non-2xx responses that are not
// application/problem+json (spec section 4.6).
func statusKind(status int) acmeerr.Kind {
	switch status {
	case http.StatusBadRequest:
		return acmeerr.KindInvalidArgument
	case http.StatusForbidden:
		return acmeerr.KindAccessDenied
	case http.StatusNotFound:
		return acmeerr.KindNotFound
	default:
		return acmeerr.KindGeneral
	}
}

// mapErrorResponse turns a non-2xx ACME response into an *acmeerr.Error,
// preferring the RFC 7807 problem document when present and falling
// back to the bare status code otherwise. Retry-After, when present, is
// attached regardless of problem-document shape (SPEC_FULL section 12
// item 6).
func mapErrorResponse(resp *acmehttp.Response) error {
	retryAfter := parseRetryAfter(resp.HeaderGet(retryAfterKey))

	contentType := resp.HeaderGet("Content-Type")
	if strings.Contains(contentType, "application/problem+json") {
		container, err := acmejson.FromBytes(resp.Body)
		if err == nil {
			rawType, _ := container.GetString("type")
			detail, _ := container.GetString("detail")
			if detail == "" {
				detail = rawType
			}
			acmeErr := acmeerr.Newf(mapProblemType(rawType), "acme error (%s): %s", rawType, detail)
			acmeErr.RetryAfter = retryAfter
			return acmeErr
		}
	}

	acmeErr := acmeerr.Newf(statusKind(resp.StatusCode), "acme request failed with status %d", resp.StatusCode)
	acmeErr.RetryAfter = retryAfter
	return acmeErr
}

// parseRetryAfter accepts either a delta-seconds value or an HTTP-date,
// returning zero when absent or unparsable.
func parseRetryAfter(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0
		}
		return secs
	}
	if when, err := http.ParseTime(raw); err == nil {
		if d := time.Until(when); d > 0 {
			return int(d / time.Second)
		}
	}
	return 0
}
