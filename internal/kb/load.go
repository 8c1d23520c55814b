package kb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"finsight/internal/errors"
	"finsight/internal/logging"
)

// Registry file names searched under the data directory. Each may be
// JSON or YAML; JSON wins when both exist.
const (
	archetypesFile = "archetypes"
	keywordsFile   = "keywords"
	deviationsFile = "deviations"
	problemsFile   = "problems"
)

// keywordFile is the on-disk shape of the keyword registry: a map plus
// optional strong-signal combinations.
type keywordFile struct {
	Keywords      []KeywordEntry `json:"keywords" yaml:"keywords"`
	StrongSignals []StrongSignal `json:"strongSignals,omitempty" yaml:"strongSignals,omitempty"`
}

// Load reads all registries from dir and constructs the knowledge base.
// A missing registry file degrades to an empty registry with a warning
// so a partial system stays usable; only unreadable or unparseable
// files are errors.
func Load(dir string, logger *logging.Logger) (*KnowledgeBase, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	var missing []string

	var archetypes []Archetype
	if ok, err := loadRegistry(dir, archetypesFile, &archetypes); err != nil {
		return nil, err
	} else if !ok {
		missing = append(missing, archetypesFile)
	}

	var kwf keywordFile
	if ok, err := loadRegistry(dir, keywordsFile, &kwf); err != nil {
		return nil, err
	} else if !ok {
		missing = append(missing, keywordsFile)
	}

	var deviations []Deviation
	if ok, err := loadRegistry(dir, deviationsFile, &deviations); err != nil {
		return nil, err
	} else if !ok {
		missing = append(missing, deviationsFile)
	}

	var problems []Problem
	if ok, err := loadRegistry(dir, problemsFile, &problems); err != nil {
		return nil, err
	} else if !ok {
		missing = append(missing, problemsFile)
	}

	for _, name := range missing {
		logger.Warn("Registry file missing, continuing with empty registry", map[string]interface{}{
			"registry": name,
			"dir":      dir,
		})
	}

	k := New(archetypes, kwf.Keywords, kwf.StrongSignals, deviations, problems, Options{}, logger)
	k.Report.MissingFiles = missing
	return k, nil
}

// loadRegistry reads <dir>/<name>.json or <dir>/<name>.yaml into out.
// Returns false with no error when neither file exists.
func loadRegistry(dir, name string, out interface{}) (bool, error) {
	jsonPath := filepath.Join(dir, name+".json")
	if data, err := os.ReadFile(jsonPath); err == nil {
		if err := json.Unmarshal(data, out); err != nil {
			return false, errors.New(errors.RegistryInvalid,
				fmt.Sprintf("failed to parse %s", jsonPath), err)
		}
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, errors.New(errors.RegistryInvalid,
			fmt.Sprintf("failed to read %s", jsonPath), err)
	}

	for _, ext := range []string{".yaml", ".yml"} {
		yamlPath := filepath.Join(dir, name+ext)
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return false, errors.New(errors.RegistryInvalid,
				fmt.Sprintf("failed to read %s", yamlPath), err)
		}
		if err := yaml.Unmarshal(data, out); err != nil {
			return false, errors.New(errors.RegistryInvalid,
				fmt.Sprintf("failed to parse %s", yamlPath), err)
		}
		return true, nil
	}

	return false, nil
}

// NormalizeCode uppercases and trims an archetype or deviation code for
// set comparisons.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
