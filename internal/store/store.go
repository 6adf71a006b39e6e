// Package store implements the content-addressed, group/name/aspect
// filesystem store of spec section 4.1, grounded on
// original_source/mod_md/md_store.c and on the teacher's atomic
// write-temp-then-rename idiom (internal/server/san_cert_manager.go's
// saveState). Every mutation is crash-safe: the temp file is created
// exclusively, retried with backoff on name collision, then renamed over
// the final path, so readers never observe a partial write.
package store

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/mdacme/mdacme/internal/acmecrypto"
	"github.com/mdacme/mdacme/internal/acmeerr"
	"github.com/mdacme/mdacme/internal/acmejson"
	"github.com/mdacme/mdacme/internal/acmeutil"
)

// Group is a store partition (spec section 3: "Groups: accounts,
// challenges, domains, staging").
type Group string

const (
	Accounts   Group = "accounts"
	Challenges Group = "challenges"
	Domains    Group = "domains"
	Staging    Group = "staging"
)

// VType names the typed value kinds. No store operation takes a VType:
// the concrete load/save API below is spelled out per-type (LoadJSON,
// SavePKey, ...) so call sites get compile-time checking rather than a
// runtime type switch, and Iterate hands back raw bytes.
type VType int

const (
	VText VType = iota
	VJSON
	VCert
	VPKey
	VChain
)

// maxCreateAttempts bounds the create-temp retry loop (spec section 4.1:
// "retry on collision up to a bounded count with backoff").
const maxCreateAttempts = 8

// Store is a filesystem-backed implementation of the group/name/aspect
// key-value space.
type Store struct {
	baseDir string
}

// Open returns a Store rooted at baseDir, creating it with owner-only
// permissions if missing.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "create store base directory")
	}
	return &Store{baseDir: baseDir}, nil
}

// BaseDir returns the store's filesystem root.
func (s *Store) BaseDir() string { return s.baseDir }

func (s *Store) dirPath(group Group, name string) (string, error) {
	if !acmeutil.SafeName(name) {
		return "", acmeerr.Newf(acmeerr.KindInvalidArgument, "unsafe store name %q", name)
	}
	return filepath.Join(s.baseDir, string(group), name), nil
}

func (s *Store) aspectPath(group Group, name, aspect string) (string, error) {
	if !acmeutil.SafeName(aspect) {
		return "", acmeerr.Newf(acmeerr.KindInvalidArgument, "unsafe aspect name %q", aspect)
	}
	dir, err := s.dirPath(group, name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, aspect), nil
}

// Exists reports whether (group, name, aspect) has a value on disk.
func (s *Store) Exists(group Group, name, aspect string) bool {
	path, err := s.aspectPath(group, name, aspect)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// loadRaw reads the bytes at (group, name, aspect), translating absence
// and permission failures to the spec's error taxonomy.
func (s *Store) loadRaw(group Group, name, aspect string) ([]byte, error) {
	path, err := s.aspectPath(group, name, aspect)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, acmeerr.NotFound(path)
		}
		if os.IsPermission(err) {
			return nil, acmeerr.Wrap(acmeerr.KindAccessDenied, err, path)
		}
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, path)
	}
	return data, nil
}

// saveOptions controls a single save call.
type saveOptions struct {
	createOnly bool
	perm       os.FileMode
}

// saveRaw atomically replaces (group, name, aspect) with data: create the
// parent directory if missing, write to a uniquely-named temporary
// sibling with O_EXCL (retried with backoff on name collision), then
// rename over the final path.
func (s *Store) saveRaw(group Group, name, aspect string, data []byte, opts saveOptions) error {
	dir, err := s.dirPath(group, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, "create store directory "+dir)
	}

	path, err := s.aspectPath(group, name, aspect)
	if err != nil {
		return err
	}

	if opts.createOnly {
		if _, err := os.Stat(path); err == nil {
			return acmeerr.Newf(acmeerr.KindAlreadyExists, "aspect already exists: %s", path)
		}
	}

	perm := opts.perm
	if perm == 0 {
		perm = 0o600
	}

	tempPath, err := s.writeTempWithRetry(dir, data, perm)
	if err != nil {
		return err
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return acmeerr.Wrap(acmeerr.KindGeneral, err, "rename into place "+path)
	}
	return nil
}

// writeTempWithRetry creates a uniquely-named temp file with O_EXCL in
// dir and writes data to it, retrying the name choice with exponential
// backoff up to maxCreateAttempts times on collision (spec section 4.1).
func (s *Store) writeTempWithRetry(dir string, data []byte, perm os.FileMode) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	result, err := backoff.Retry(context.Background(), func() (string, error) {
		tempPath := filepath.Join(dir, ".tmp-"+uuid.NewString())
		f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err != nil {
			if os.IsExist(err) {
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		defer f.Close()

		if _, err := f.Write(data); err != nil {
			os.Remove(tempPath)
			return "", backoff.Permanent(err)
		}
		return tempPath, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(maxCreateAttempts)))

	if err != nil {
		return "", acmeerr.Wrap(acmeerr.KindGeneral, err, "create temporary file in "+dir)
	}
	return result, nil
}

// Remove deletes (group, name, aspect). When force is false, a missing
// aspect is surfaced as NotFound; when true, it is treated as success.
func (s *Store) Remove(group Group, name, aspect string, force bool) error {
	path, err := s.aspectPath(group, name, aspect)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			if force {
				return nil
			}
			return acmeerr.NotFound(path)
		}
		return acmeerr.Wrap(acmeerr.KindGeneral, err, "remove "+path)
	}
	return nil
}

// Purge removes every aspect under (group, name).
func (s *Store) Purge(group Group, name string) error {
	dir, err := s.dirPath(group, name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, "purge "+dir)
	}
	return nil
}

// Names lists the entries of a group directory, e.g. every account id
// under Accounts, or every MD name under Domains.
func (s *Store) Names(group Group) ([]string, error) {
	dir := filepath.Join(s.baseDir, string(group))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "list "+dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// InspectResult is returned by an Iterate inspector to control iteration.
type InspectResult int

const (
	Continue InspectResult = iota
	Stop
)

// Iterate streams the aspect value for every name in group matching
// namePattern (a path.Match-style glob; spec section 12 item 2), calling
// inspect with each aspect's raw, undecoded bytes. Names without that
// aspect are skipped. Returning Stop halts iteration cleanly without
// error.
func (s *Store) Iterate(group Group, namePattern, aspect string, inspect func(name string, data []byte) (InspectResult, error)) error {
	names, err := s.Names(group)
	if err != nil {
		return err
	}
	for _, name := range names {
		if !acmeutil.MatchName(namePattern, name) {
			continue
		}
		data, err := s.loadRaw(group, name, aspect)
		if err != nil {
			if acmeerr.IsNotFound(err) {
				continue
			}
			return err
		}
		result, err := inspect(name, data)
		if err != nil {
			return err
		}
		if result == Stop {
			return nil
		}
	}
	return nil
}

// --- Typed accessors ---

// SaveText writes raw text (e.g. a challenge key authorization).
func (s *Store) SaveText(group Group, name, aspect, text string, createOnly bool) error {
	return s.saveRaw(group, name, aspect, []byte(text), saveOptions{createOnly: createOnly, perm: 0o600})
}

// LoadText reads raw text.
func (s *Store) LoadText(group Group, name, aspect string) (string, error) {
	data, err := s.loadRaw(group, name, aspect)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SaveJSON serializes value as indented JSON (spec section 6: "indented
// JSON") and writes it atomically.
func (s *Store) SaveJSON(group Group, name, aspect string, value any, createOnly bool) error {
	container, err := acmejson.FromValue(value)
	if err != nil {
		return err
	}
	data, err := container.Serialize(acmejson.Indent)
	if err != nil {
		return err
	}
	return s.saveRaw(group, name, aspect, data, saveOptions{createOnly: createOnly, perm: 0o600})
}

// LoadJSON decodes the JSON aspect into target.
func (s *Store) LoadJSON(group Group, name, aspect string, target any) error {
	data, err := s.loadRaw(group, name, aspect)
	if err != nil {
		return err
	}
	container, err := acmejson.FromBytes(data)
	if err != nil {
		return err
	}
	return container.Unmarshal(target)
}

// SavePKey PEM-encodes an RSA private key and writes it with owner-only
// permissions (spec section 4.2/4.1).
func (s *Store) SavePKey(group Group, name, aspect string, key *rsa.PrivateKey, createOnly bool) error {
	return s.saveRaw(group, name, aspect, acmecrypto.EncodePrivateKeyPEM(key), saveOptions{createOnly: createOnly, perm: 0o600})
}

// LoadPKey reads and decodes an RSA private key.
func (s *Store) LoadPKey(group Group, name, aspect string) (*rsa.PrivateKey, error) {
	data, err := s.loadRaw(group, name, aspect)
	if err != nil {
		return nil, err
	}
	key, err := acmecrypto.DecodePrivateKeyPEM(data)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "decode private key")
	}
	return key, nil
}

// SaveCert PEM-encodes a single DER certificate.
func (s *Store) SaveCert(group Group, name, aspect string, der []byte, createOnly bool) error {
	return s.saveRaw(group, name, aspect, acmecrypto.EncodeCertificatePEM(der), saveOptions{createOnly: createOnly, perm: 0o600})
}

// LoadCert reads and parses a single certificate.
func (s *Store) LoadCert(group Group, name, aspect string) (*x509.Certificate, error) {
	data, err := s.loadRaw(group, name, aspect)
	if err != nil {
		return nil, err
	}
	cert, err := acmecrypto.DecodeCertificatePEM(data)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "decode certificate")
	}
	return cert, nil
}

// SaveChain PEM-encodes a certificate chain.
func (s *Store) SaveChain(group Group, name, aspect string, chain [][]byte, createOnly bool) error {
	return s.saveRaw(group, name, aspect, acmecrypto.EncodeChainPEM(chain), saveOptions{createOnly: createOnly, perm: 0o600})
}

// LoadChain reads and parses a certificate chain, tolerating trailing
// non-PEM bytes as end-of-stream.
func (s *Store) LoadChain(group Group, name, aspect string) ([]*x509.Certificate, error) {
	data, err := s.loadRaw(group, name, aspect)
	if err != nil {
		return nil, err
	}
	chain, err := acmecrypto.DecodeChainPEM(data)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "decode chain")
	}
	return chain, nil
}

// Move relocates every aspect from (fromGroup, name) to (toGroup, name),
// used to promote a fully-verified staging credential set into the
// domains group (spec section 4.9 phase 8 "Promote").
func (s *Store) Move(fromGroup, toGroup Group, name string) error {
	fromDir, err := s.dirPath(fromGroup, name)
	if err != nil {
		return err
	}
	toDir, err := s.dirPath(toGroup, name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(toDir), 0o700); err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, "create destination group directory")
	}

	// Remove a stale destination first so the rename is a clean
	// replace rather than an error on a non-empty directory.
	os.RemoveAll(toDir)

	if err := os.Rename(fromDir, toDir); err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, "move "+fromDir+" to "+toDir)
	}
	return nil
}
