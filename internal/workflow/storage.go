package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"opsflow/pkg/logging"

	"gopkg.in/yaml.v3"
)

// WorkflowStorage holds the workflow definitions loaded from a directory of
// YAML files, one workflow per file.
type WorkflowStorage struct {
	mu         sync.RWMutex
	dir        string
	workflows  map[string]Workflow
	sources    map[string]string
	loadErrors []error
}

// NewWorkflowStorage creates a storage for dir and loads it. An empty dir
// yields an in-memory storage populated only through Add.
func NewWorkflowStorage(dir string) (*WorkflowStorage, error) {
	ws := &WorkflowStorage{
		dir:       dir,
		workflows: make(map[string]Workflow),
		sources:   make(map[string]string),
	}
	if dir == "" {
		return ws, nil
	}
	if err := ws.Load(); err != nil {
		return nil, err
	}
	return ws, nil
}

// Load (re)reads every *.yaml and *.yml file in the directory. A missing
// directory is not an error. Files that fail to parse or validate are skipped
// and reported through LoadErrors. An in-memory storage is left untouched.
func (ws *WorkflowStorage) Load() error {
	if ws.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(ws.dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read workflows directory %s: %w", ws.dir, err)
	}

	workflows := make(map[string]Workflow)
	sources := make(map[string]string)
	var loadErrors []error

	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		path := filepath.Join(ws.dir, entry.Name())

		wf, err := LoadFile(path)
		if err != nil {
			logging.Warn("WorkflowStorage", "Skipping %s: %v", path, err)
			loadErrors = append(loadErrors, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if previous, exists := sources[wf.ID]; exists {
			err := fmt.Errorf("%s: duplicate workflow id %q (already defined in %s)", path, wf.ID, previous)
			logging.Warn("WorkflowStorage", "Skipping %s: %v", path, err)
			loadErrors = append(loadErrors, err)
			continue
		}

		workflows[wf.ID] = wf
		sources[wf.ID] = path
		logging.Debug("WorkflowStorage", "Loaded workflow definition %s from %s", wf.ID, path)
	}

	ws.mu.Lock()
	ws.workflows = workflows
	ws.sources = sources
	ws.loadErrors = loadErrors
	ws.mu.Unlock()

	logging.Info("WorkflowStorage", "Loaded %d workflow definitions from %s (%d skipped)",
		len(workflows), ws.dir, len(loadErrors))
	return nil
}

// LoadErrors returns the problems found by the last Load.
func (ws *WorkflowStorage) LoadErrors() []error {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return append([]error(nil), ws.loadErrors...)
}

// Add validates wf and stores it in memory, replacing any workflow with the
// same id.
func (ws *WorkflowStorage) Add(wf Workflow) error {
	if err := wf.Validate(); err != nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.workflows[wf.ID] = wf.Copy()
	delete(ws.sources, wf.ID)
	return nil
}

// Get returns a copy of the workflow with the given id.
func (ws *WorkflowStorage) Get(id string) (Workflow, error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	wf, exists := ws.workflows[id]
	if !exists {
		return Workflow{}, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	return wf.Copy(), nil
}

// Source returns the file a workflow was loaded from, if any.
func (ws *WorkflowStorage) Source(id string) (string, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	path, ok := ws.sources[id]
	return path, ok
}

// List returns copies of all workflows sorted by id.
func (ws *WorkflowStorage) List() []Workflow {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	workflows := make([]Workflow, 0, len(ws.workflows))
	for _, wf := range ws.workflows {
		workflows = append(workflows, wf.Copy())
	}
	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].ID < workflows[j].ID
	})
	return workflows
}

// LoadFile parses and validates a single workflow file. "-" reads stdin.
func LoadFile(path string) (Workflow, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return Workflow{}, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML workflow definition and validates it. Unknown fields
// are rejected so typos in step keys do not silently drop settings.
func Parse(data []byte) (Workflow, error) {
	var wf Workflow
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&wf); err != nil {
		if errors.Is(err, io.EOF) {
			return Workflow{}, fmt.Errorf("%w: empty definition", ErrInvalidWorkflow)
		}
		return Workflow{}, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}
	if err := wf.Validate(); err != nil {
		return Workflow{}, err
	}
	return wf, nil
}

// Marshal encodes a workflow as YAML.
func Marshal(wf Workflow) ([]byte, error) {
	return yaml.Marshal(wf)
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
