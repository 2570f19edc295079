package extraction

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/mnemex/pkg/types"
)

// profilesFile is the on-disk shape of an ExtractionConfig.ProfilesPath
// file: a named bundle of ExtractionProfile overrides (§4.16 step 6).
// Grounded on the teacher's internal/importer/markdown.go use of
// gopkg.in/yaml.v3 for front-matter-style structured config.
type profilesFile struct {
	Profiles map[string]types.ExtractionProfile `yaml:"profiles"`
}

// LoadProfiles reads a YAML file of named extraction profiles. A missing
// path is not an error — callers simply proceed with no named profiles.
func LoadProfiles(path string) (map[string]types.ExtractionProfile, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("extraction: reading profiles file %q: %w", path, err)
	}

	var pf profilesFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("extraction: parsing profiles file %q: %w", path, err)
	}
	for name, p := range pf.Profiles {
		p.Name = name
		pf.Profiles[name] = p
	}
	return pf.Profiles, nil
}
