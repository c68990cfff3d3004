package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// promptFile is one versioned template on disk, named "<name>.yaml" by
// convention though the filename itself is never consulted.
type promptFile struct {
	Name    string `yaml:"name"`
	Version int    `yaml:"version"`
	System  string `yaml:"system"`
}

// PromptRegistry loads LLM system-prompt templates from versioned YAML
// files and serves them to LLMClient by name, with HotReload for picking up
// edits without a restart.
type PromptRegistry struct {
	dir       string
	mu        sync.RWMutex
	templates map[string]promptFile
}

// NewPromptRegistry loads every "*.yaml" file under dir. It fails fast if
// the directory is empty or any file is malformed, matching the fail-fast
// posture of a misconfigured prompt set.
func NewPromptRegistry(dir string) (*PromptRegistry, error) {
	r := &PromptRegistry{dir: dir}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PromptRegistry) reload() error {
	matches, err := filepath.Glob(filepath.Join(r.dir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("service.PromptRegistry: glob %s: %w", r.dir, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("service.PromptRegistry: no prompt templates found under %s", r.dir)
	}

	loaded := make(map[string]promptFile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("service.PromptRegistry: read %s: %w", path, err)
		}
		var pf promptFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return fmt.Errorf("service.PromptRegistry: parse %s: %w", path, err)
		}
		if pf.Name == "" {
			return fmt.Errorf("service.PromptRegistry: %s missing name field", path)
		}
		loaded[pf.Name] = pf
	}

	r.mu.Lock()
	r.templates = loaded
	r.mu.Unlock()
	return nil
}

// HotReload re-reads every template file, leaving the previously loaded set
// in place if the new set fails to parse.
func (r *PromptRegistry) HotReload() error {
	return r.reload()
}

// System returns the named template's system-prompt body and version.
func (r *PromptRegistry) System(name string) (system string, version int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pf, found := r.templates[name]
	if !found {
		return "", 0, false
	}
	return pf.System, pf.Version, true
}
