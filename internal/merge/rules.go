package merge

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/verdantlab/flora-cli/internal/model"
)

// rulesFile is the on-disk shape of a rules seed:
//
//	rules:
//	  - field: description
//	    strategy: longest
//	    priority: [permapeople, perenual]
type rulesFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Field    string   `yaml:"field"`
	Strategy string   `yaml:"strategy"`
	Priority []string `yaml:"priority,omitempty"`
}

var knownSources = map[string]bool{
	string(model.SourcePerenual):    true,
	string(model.SourcePermapeople): true,
}

// LoadRulesFile parses a YAML rules file. The import path is strict where the
// engine is lenient: unknown strategies, unknown priority sources, duplicate
// or missing field names are all rejected here rather than left to degrade at
// merge time. Fields without a binding are allowed; the engine skips them.
func LoadRulesFile(path string) ([]model.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "merge: read rules file %s", path)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "merge: parse rules file %s", path)
	}
	if len(f.Rules) == 0 {
		return nil, eris.Errorf("merge: rules file %s defines no rules", path)
	}

	seen := make(map[string]bool, len(f.Rules))
	rules := make([]model.Rule, 0, len(f.Rules))
	for i, spec := range f.Rules {
		if spec.Field == "" {
			return nil, eris.Errorf("merge: rules file %s: rule %d has no field", path, i)
		}
		if seen[spec.Field] {
			return nil, eris.Errorf("merge: rules file %s: duplicate rule for field %s", path, spec.Field)
		}
		seen[spec.Field] = true

		strategy := model.Strategy(spec.Strategy)
		if !strategy.Valid() {
			return nil, eris.Errorf("merge: rules file %s: field %s has unknown strategy %q", path, spec.Field, spec.Strategy)
		}
		for _, src := range spec.Priority {
			if !knownSources[src] {
				return nil, eris.Errorf("merge: rules file %s: field %s names unknown source %q", path, spec.Field, src)
			}
		}

		rules = append(rules, model.Rule{
			FieldName:      spec.Field,
			Strategy:       strategy,
			SourcePriority: spec.Priority,
		})
	}
	return rules, nil
}
