// Package acmejson implements the path-selector JSON container described
// in spec section 4.3, grounded on original_source/mod_md/md_json.c. It
// wraps a plain Go value tree (map[string]any / []any / scalars) rather
// than fixed structs, since both the account, MD and authz-set documents
// need ad-hoc get/set at arbitrary key paths, and no pack example pulls
// in a third-party path-selector JSON library for this.
package acmejson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mdacme/mdacme/internal/acmeerr"
)

// Format selects the serialization style.
type Format int

const (
	Compact Format = iota
	Indent
)

// Container wraps a JSON tree with path-selector accessors.
type Container struct {
	root any
}

// New returns an empty container backed by an empty object.
func New() *Container {
	return &Container{root: map[string]any{}}
}

// FromBytes parses buf into a Container.
func FromBytes(buf []byte) (*Container, error) {
	var root any
	if err := json.Unmarshal(buf, &root); err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "decode json")
	}
	return &Container{root: root}, nil
}

// FromResponse parses an HTTP response body into a Container, but only
// when the response is 2xx and declares a JSON content type (spec
// section 4.3: "only when the response is 2xx and declares
// application/json").
func FromResponse(resp *http.Response) (*Container, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, acmeerr.Newf(acmeerr.KindGeneral, "response status %d is not 2xx", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "json") {
		return nil, acmeerr.Newf(acmeerr.KindGeneral, "response content-type %q is not json", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "read response body")
	}
	return FromBytes(body)
}

// Serialize renders the container in the requested format.
func (c *Container) Serialize(format Format) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case Indent:
		data, err = json.MarshalIndent(c.root, "", "  ")
	default:
		data, err = json.Marshal(c.root)
	}
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "encode json")
	}
	return data, nil
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get returns the raw value at path, or (nil, false) if absent.
func (c *Container) Get(path string) (any, bool) {
	return navigate(c.root, splitPath(path))
}

func navigate(node any, keys []string) (any, bool) {
	if len(keys) == 0 {
		return node, node != nil
	}
	m, ok := node.(map[string]any)
	if !ok {
		return nil, false
	}
	child, ok := m[keys[0]]
	if !ok {
		return nil, false
	}
	return navigate(child, keys[1:])
}

// Set writes value at path, creating intermediate object nodes as
// needed (spec section 4.3: "created on write if absent; intermediate
// nodes are objects").
func (c *Container) Set(path string, value any) error {
	keys := splitPath(path)
	if len(keys) == 0 {
		return acmeerr.New(acmeerr.KindInvalidArgument, "empty path")
	}

	root, ok := c.root.(map[string]any)
	if !ok {
		root = map[string]any{}
		c.root = root
	}

	node := root
	for i, key := range keys[:len(keys)-1] {
		next, ok := node[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[key] = next
		}
		node = next
		_ = i
	}
	node[keys[len(keys)-1]] = value
	return nil
}

// Delete removes the value at path, if present; it is a no-op otherwise.
func (c *Container) Delete(path string) {
	keys := splitPath(path)
	if len(keys) == 0 {
		return
	}
	root, ok := c.root.(map[string]any)
	if !ok {
		return
	}
	node := root
	for _, key := range keys[:len(keys)-1] {
		next, ok := node[key].(map[string]any)
		if !ok {
			return
		}
		node = next
	}
	delete(node, keys[len(keys)-1])
}

// Clear resets the container to an empty object.
func (c *Container) Clear() {
	c.root = map[string]any{}
}

// GetString returns the string value at path.
func (c *Container) GetString(path string) (string, bool) {
	v, ok := c.Get(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetBool returns the bool value at path.
func (c *Container) GetBool(path string) (bool, bool) {
	v, ok := c.Get(path)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GetNumber returns the numeric value at path as a float64 (the type
// encoding/json always decodes JSON numbers to).
func (c *Container) GetNumber(path string) (float64, bool) {
	v, ok := c.Get(path)
	if !ok {
		return 0, false
	}
	n, ok := v.(float64)
	return n, ok
}

// GetStringArray returns the string array at path.
func (c *Container) GetStringArray(path string) ([]string, bool) {
	v, ok := c.Get(path)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// GetStringMap returns the string-to-string dictionary at path.
func (c *Container) GetStringMap(path string) (map[string]string, bool) {
	v, ok := c.Get(path)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		s, ok := val.(string)
		if !ok {
			return nil, false
		}
		out[k] = s
	}
	return out, true
}

// Unmarshal decodes the whole container into target, a convenience for
// callers that prefer a typed struct once the document is fully formed.
func (c *Container) Unmarshal(target any) error {
	data, err := c.Serialize(Compact)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, "unmarshal container")
	}
	return nil
}

// FromValue builds a Container from an already-typed Go value by
// round-tripping it through JSON, so typed documents (Account, MD,
// AuthzSet) can still be edited with path selectors.
func FromValue(value any) (*Container, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "marshal value")
	}
	return FromBytes(data)
}

// String implements fmt.Stringer for debugging/log output.
func (c *Container) String() string {
	data, err := c.Serialize(Compact)
	if err != nil {
		return fmt.Sprintf("<invalid json: %v>", err)
	}
	var buf bytes.Buffer
	buf.Write(data)
	return buf.String()
}
