package boring

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Mapping renames agency-specific header columns onto the canonical set.
// Profiles are small YAML files:
//
//	columns:
//	  hole_no: boring_id
//	  lat_dd: latitude
//	  long_dd: longitude
type Mapping struct {
	Columns map[string]string `yaml:"columns"`
}

// LoadMapping reads a YAML column-mapping profile from disk.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boring: read mapping %s", path)
	}
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "boring: parse mapping %s", path)
	}
	return &m, nil
}

// Apply rewrites header names the profile knows about, case-insensitively;
// unknown names pass through unchanged. A nil mapping is a no-op.
func (m *Mapping) Apply(header []string) []string {
	if m == nil || len(m.Columns) == 0 {
		return header
	}
	lookup := make(map[string]string, len(m.Columns))
	for from, to := range m.Columns {
		lookup[strings.ToLower(strings.TrimSpace(from))] = to
	}
	out := make([]string, len(header))
	for i, col := range header {
		if to, ok := lookup[strings.ToLower(strings.TrimSpace(col))]; ok {
			out[i] = to
			continue
		}
		out[i] = col
	}
	return out
}
