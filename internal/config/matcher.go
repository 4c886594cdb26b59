package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/podium-hq/podium/internal/normalize"
)

// MatcherConfig holds the data side of affiliation matching: the stopword
// list fed to the normalizer and the abbreviation synonym map expanded
// before token comparison.
type MatcherConfig struct {
	// Stopwords replaces the built-in generic-word list when non-empty.
	Stopwords []string `yaml:"stopwords"`

	// Synonyms maps an abbreviation (matched as a whole normalized token)
	// to the expansion tokens it stands for, e.g. "nyu" -> [new, york,
	// university]. Entries here are merged over the built-in defaults.
	Synonyms map[string][]string `yaml:"synonyms"`
}

// DefaultSynonyms cover abbreviations common enough to ship compiled in.
// Deployment-specific vocabularies belong in the YAML file.
var DefaultSynonyms = map[string][]string{
	"nyu":  {"new", "york", "university"},
	"mit":  {"massachusetts", "technology"},
	"ucla": {"california", "los", "angeles"},
	"lse":  {"london", "economics"},
	"eth":  {"zurich", "technology"},
	"cmu":  {"carnegie", "mellon"},
	"ucsd": {"california", "san", "diego"},
	"uw":   {"washington"},
	"un":   {"united", "nations"},
	"who":  {"world", "health", "organization"},
}

// LoadMatcherConfig reads a MatcherConfig from a YAML file. An empty path
// returns the built-in defaults. A missing or malformed file is an error;
// matcher data silently falling back would make merges depend on deploy
// accidents.
func LoadMatcherConfig(path string) (*MatcherConfig, error) {
	cfg := &MatcherConfig{
		Stopwords: normalize.DefaultStopwords,
		Synonyms:  make(map[string][]string, len(DefaultSynonyms)),
	}
	for abbr, expansion := range DefaultSynonyms {
		cfg.Synonyms[abbr] = expansion
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read matcher config %s: %w", path, err)
	}

	var file MatcherConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: parse matcher config %s: %w", path, err)
	}

	if len(file.Stopwords) > 0 {
		cfg.Stopwords = file.Stopwords
	}
	for abbr, expansion := range file.Synonyms {
		cfg.Synonyms[abbr] = expansion
	}

	return cfg, nil
}
