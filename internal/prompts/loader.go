// Package prompts loads the prompt configurations that drive structured extraction.
// A configuration file is named after the pipeline stage and holds one entry per
// section, e.g. s2_structured_info.yaml -> paper_information_extraction.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/markdave123-py/docpipe/internal/core"
)

//go:embed config/*.yaml
var defaultFiles embed.FS

// PromptConfig is one section of a prompt configuration file.
type PromptConfig struct {
	Model          string         `yaml:"model"`
	Temperature    *float32       `yaml:"temperature"`
	MaxTokens      int            `yaml:"max_tokens"`
	MaxInputTokens int            `yaml:"max_input_tokens"`
	SystemPrompt   string         `yaml:"system_prompt"`
	UserTemplate   string         `yaml:"user_template"`
	OutputSchema   map[string]any `yaml:"output_schema"`
	JSONSchema     map[string]any `yaml:"json_schema"`
	Table          string         `yaml:"table"`
	Columns        []core.Column  `yaml:"columns"`
}

// Store reads prompt files from a directory, or from the embedded defaults when
// no directory is configured. Parsed files are cached.
type Store struct {
	fsys   fs.FS
	origin string
	log    *slog.Logger

	mu    sync.RWMutex
	cache map[string]map[string]*PromptConfig
}

// NewStore returns a store over dir. An empty dir selects the embedded defaults.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{log: logger, cache: map[string]map[string]*PromptConfig{}}
	if dir == "" {
		sub, err := fs.Sub(defaultFiles, "config")
		if err != nil {
			return nil, err
		}
		s.fsys, s.origin = sub, "embedded:config"
		return s, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &core.ConfigError{Key: "PROMPT_CONFIG_DIR", Message: "cannot read " + dir, Cause: err}
	}
	if !info.IsDir() {
		return nil, core.NewConfigError("PROMPT_CONFIG_DIR", dir+" is not a directory")
	}
	s.fsys, s.origin = os.DirFS(dir), dir
	return s, nil
}

// Load returns the section of <stage>.yaml. A missing file or section is a
// configuration error and is logged with the path and cause.
func (s *Store) Load(stage, section string) (*PromptConfig, error) {
	file := stage + ".yaml"
	sections, err := s.loadFile(file)
	if err != nil {
		s.log.Error("prompts.load.failed", "path", path.Join(s.origin, file), "error", err)
		return nil, &core.ConfigError{Key: "PROMPT_STAGE", Message: "cannot load " + path.Join(s.origin, file), Cause: err}
	}
	cfg, ok := sections[section]
	if !ok || cfg == nil {
		err := fmt.Errorf("section %q not found in %s (have %v)", section, file, keys(sections))
		s.log.Error("prompts.load.failed", "path", path.Join(s.origin, file), "error", err)
		return nil, &core.ConfigError{Key: "PROMPT_SECTION", Message: "unknown section " + section, Cause: err}
	}
	return cfg, nil
}

// Sections lists the section names of <stage>.yaml.
func (s *Store) Sections(stage string) ([]string, error) {
	sections, err := s.loadFile(stage + ".yaml")
	if err != nil {
		return nil, err
	}
	return keys(sections), nil
}

// ClearCache drops every parsed file.
func (s *Store) ClearCache() {
	s.mu.Lock()
	s.cache = map[string]map[string]*PromptConfig{}
	s.mu.Unlock()
}

func (s *Store) loadFile(name string) (map[string]*PromptConfig, error) {
	s.mu.RLock()
	if sections, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return sections, nil
	}
	s.mu.RUnlock()

	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", core.ErrNotFound, name)
		}
		return nil, err
	}

	var sections map[string]*PromptConfig
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	for _, cfg := range sections {
		if cfg == nil {
			continue
		}
		cfg.OutputSchema = normalizeMap(cfg.OutputSchema)
		cfg.JSONSchema = normalizeMap(cfg.JSONSchema)
	}

	s.mu.Lock()
	s.cache[name] = sections
	s.mu.Unlock()
	s.log.Debug("prompts.file.loaded", "path", path.Join(s.origin, name), "sections", len(sections))
	return sections, nil
}

// normalizeMap converts the map[interface{}]interface{} values yaml.v2 produces
// for nested mappings into map[string]any so they encode as JSON.
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case map[string]any:
		return normalizeMap(t)
	case []interface{}:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

func keys(m map[string]*PromptConfig) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
