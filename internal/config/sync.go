package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mdacme/mdacme/internal/acmeerr"
	"github.com/mdacme/mdacme/internal/md"
)

// syncFile is the on-disk shape of a sync YAML document (SPEC_FULL.md
// §10.3).
type syncFile struct {
	Domains []syncEntry `yaml:"domains"`
}

type syncEntry struct {
	Name       string   `yaml:"name"`
	Domains    []string `yaml:"domains"`
	Contacts   []string `yaml:"contacts"`
	CAUrl      string   `yaml:"ca_url"`
	MustStaple bool     `yaml:"must_staple"`
}

// LoadSyncFile parses path into a list of MDs ready for
// registry.Registry.Sync. This is the only place YAML touches the tree;
// the registry and store never see it.
func LoadSyncFile(path string) ([]*md.MD, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, acmeerr.NotFound(path)
		}
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "read sync file "+path)
	}

	var doc syncFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindInvalidArgument, err, "parse sync file "+path)
	}

	mds := make([]*md.MD, 0, len(doc.Domains))
	for _, entry := range doc.Domains {
		m, err := md.New(entry.Name, entry.Domains, entry.Contacts)
		if err != nil {
			return nil, acmeerr.Wrap(acmeerr.KindInvalidArgument, err, fmt.Sprintf("sync entry %q", entry.Name))
		}
		m.CAUrl = entry.CAUrl
		m.MustStaple = entry.MustStaple
		mds = append(mds, m)
	}
	return mds, nil
}
