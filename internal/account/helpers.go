package account

import (
	"encoding/json"
	"net/http"

	"github.com/mdacme/mdacme/internal/acmeerr"
	"github.com/mdacme/mdacme/internal/acmeutil"
)

func jsonMarshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "marshal request payload")
	}
	return data, nil
}

// linkHeaderTermsOfService extracts the terms-of-service relation from
// every Link header line a response carried (RFC 8288 allows repeated
// header fields), joining them the way net/http leaves them rather than
// assuming a single combined line.
func linkHeaderTermsOfService(header http.Header) (string, bool) {
	for _, line := range header.Values("Link") {
		if url, ok := acmeutil.LinkHeader(line, "terms-of-service"); ok {
			return url, true
		}
	}
	return "", false
}
