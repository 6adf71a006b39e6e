package acmeutil

import "strings"

// LinkHeader finds the URL of the first entry in an RFC 8288 Link header
// value whose rel parameter equals relation. Grounded on
// original_source/mod_md/md_util.c's md_link_find, which walks a
// comma-separated list of "<url>; rel=\"name\"" entries.
func LinkHeader(header, relation string) (string, bool) {
	for _, entry := range splitLinkEntries(header) {
		url, rel, ok := parseLinkEntry(entry)
		if !ok {
			continue
		}
		if strings.EqualFold(rel, relation) {
			return url, true
		}
	}
	return "", false
}

// splitLinkEntries splits a Link header on top-level commas, i.e. commas
// that are not inside the angle-bracketed URL reference.
func splitLinkEntries(header string) []string {
	var entries []string
	depth := 0
	start := 0
	for i, r := range header {
		switch r {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				entries = append(entries, header[start:i])
				start = i + 1
			}
		}
	}
	entries = append(entries, header[start:])
	return entries
}

func parseLinkEntry(entry string) (url, rel string, ok bool) {
	entry = strings.TrimSpace(entry)
	lt := strings.IndexByte(entry, '<')
	gt := strings.IndexByte(entry, '>')
	if lt < 0 || gt < 0 || gt < lt {
		return "", "", false
	}
	url = entry[lt+1 : gt]

	for _, param := range strings.Split(entry[gt+1:], ";") {
		param = strings.TrimSpace(param)
		name, value, found := strings.Cut(param, "=")
		if !found || !strings.EqualFold(strings.TrimSpace(name), "rel") {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		rel = value
		ok = true
		return
	}
	return url, "", false
}
