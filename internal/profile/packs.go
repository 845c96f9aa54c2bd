// ABOUTME: Loads additional agent profiles from TOML pack files.
// ABOUTME: Packs extend the builtin registry without touching code.

package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// packFile is the on-disk shape of a profile pack.
type packFile struct {
	Profiles []packProfile `toml:"profiles"`
}

type packProfile struct {
	ID          string `toml:"id"`
	DisplayName string `toml:"display_name"`
	ShortName   string `toml:"short_name"`
	Description string `toml:"description"`
	RolePrompt  string `toml:"role_prompt"`
}

// LoadPacks reads every *.toml file in dir and returns the profiles they
// define, in filename order. A missing directory is not an error; a malformed
// pack or a profile without an ID is.
func LoadPacks(dir string) ([]Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading pack directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var profiles []Profile
	for _, name := range names {
		path := filepath.Join(dir, name)
		var pf packFile
		if _, err := toml.DecodeFile(path, &pf); err != nil {
			return nil, fmt.Errorf("parsing pack %s: %w", name, err)
		}
		for i, p := range pf.Profiles {
			if p.ID == "" {
				return nil, fmt.Errorf("pack %s: profile %d has no id", name, i)
			}
			prof := Profile{
				ID:          p.ID,
				DisplayName: p.DisplayName,
				ShortName:   p.ShortName,
				Description: p.Description,
				RolePrompt:  p.RolePrompt,
			}
			if prof.DisplayName == "" {
				prof.DisplayName = prof.ID
			}
			if prof.ShortName == "" {
				prof.ShortName = prof.DisplayName
			}
			profiles = append(profiles, prof)
		}
	}
	return profiles, nil
}
