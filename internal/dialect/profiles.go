package dialect

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// profileFile is the on-disk shape of a dialect profile file:
//
//	engines:
//	  spark: distributed_compute
//	  mssql: restricted_sql
type profileFile struct {
	Engines map[string]string `yaml:"engines"`
}

// LoadProfiles reads a YAML profile file and overlays it on the defaults.
// Entries in the file replace the built-in mapping for the same engine.
func LoadProfiles(path string) (Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles %s: %w", path, err)
	}

	profiles := DefaultProfiles()
	for engine, tag := range file.Engines {
		if engine == "" {
			return nil, fmt.Errorf("parse profiles %s: empty engine identifier", path)
		}
		d, err := Parse(tag)
		if err != nil {
			return nil, fmt.Errorf("parse profiles %s: engine %q: %w", path, engine, err)
		}
		profiles[engine] = d
	}

	return profiles, nil
}
