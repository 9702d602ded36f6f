// Package config holds memov's project-level configuration: embedding
// backend selection, chunking parameters, branch naming, and the default
// commit author identity.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/memovai/contextgit/internal/memerr"
)

// EmbeddingBackend names one of the pluggable embedding implementations.
type EmbeddingBackend string

const (
	EmbeddingDefault             EmbeddingBackend = "default"
	EmbeddingOpenAI              EmbeddingBackend = "openai"
	EmbeddingSentenceTransformer EmbeddingBackend = "sentence-transformers"
)

// Identity is the author/committer identity attached to every commit this
// engine writes, unless a caller overrides it per-call.
type Identity struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Config is the full project-level configuration, loaded from
// "<project>/.mem/config.yaml" when present.
type Config struct {
	Embedding struct {
		Backend EmbeddingBackend `yaml:"backend"`
	} `yaml:"embedding"`
	Chunking struct {
		Size    int `yaml:"size"`
		Overlap int `yaml:"overlap"`
	} `yaml:"chunking"`
	BranchPrefix string   `yaml:"branch_prefix"`
	Author       Identity `yaml:"author"`
}

// ConfigFileName is the name of the config file inside the control directory.
const ConfigFileName = "config.yaml"

// Default returns the built-in configuration used when no config.yaml is present.
func Default() *Config {
	cfg := &Config{
		BranchPrefix: "develop/",
	}
	cfg.Embedding.Backend = EmbeddingDefault
	cfg.Chunking.Size = 768
	cfg.Chunking.Overlap = 100
	cfg.Author = Identity{Name: "memov", Email: "memov@localhost"}
	return cfg
}

// Load reads "<controlDir>/config.yaml" if it exists, applying defaults for
// anything the file leaves zero-valued. A missing file is not an error: it
// simply yields Default().
func Load(controlDir string) (*Config, error) {
	path := filepath.Join(controlDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "reading config %s", path)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "parsing config YAML")
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = EmbeddingDefault
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 768
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 100
	}
	if cfg.BranchPrefix == "" {
		cfg.BranchPrefix = "develop/"
	}
	if cfg.Author.Name == "" {
		cfg.Author.Name = "memov"
	}
	if cfg.Author.Email == "" {
		cfg.Author.Email = "memov@localhost"
	}
	return cfg, nil
}

// Validate reports every configuration problem found, collecting rather
// than failing on the first one.
func Validate(cfg *Config) []error {
	var errs []error

	switch cfg.Embedding.Backend {
	case EmbeddingDefault, EmbeddingOpenAI, EmbeddingSentenceTransformer:
	default:
		errs = append(errs, memerr.New(memerr.Unknown, "embedding.backend: unknown backend %q", cfg.Embedding.Backend))
	}

	if cfg.Chunking.Size <= 0 {
		errs = append(errs, memerr.New(memerr.Unknown, "chunking.size must be positive"))
	}
	if cfg.Chunking.Overlap < 0 {
		errs = append(errs, memerr.New(memerr.Unknown, "chunking.overlap must not be negative"))
	}
	if cfg.Chunking.Overlap >= cfg.Chunking.Size {
		errs = append(errs, memerr.New(memerr.Unknown, "chunking.overlap must be smaller than chunking.size"))
	}

	return errs
}

// Save writes cfg to "<controlDir>/config.yaml".
func Save(controlDir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return memerr.Wrap(memerr.Unknown, err, "marshaling config")
	}
	path := filepath.Join(controlDir, ConfigFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return memerr.Wrap(memerr.Unknown, err, "writing config to %s", path)
	}
	return nil
}
