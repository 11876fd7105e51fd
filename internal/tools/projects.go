package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/gofrs/flock"
)

// projectsFile is the single JSON document holding every project record.
const projectsFile = "projects.json"

// lockRetryInterval is how often a blocked flock acquisition retries.
const lockRetryInterval = 50 * time.Millisecond

// Project is one saved project record. Field names are part of the stored
// format; existing files must keep loading across releases.
type Project struct {
	Name      string   `json:"project_name"`
	Kind      string   `json:"project_type"`
	Board     string   `json:"board_model"`
	OS        string   `json:"os_info"`
	UserLevel string   `json:"user_level"`
	DocsURLs  []string `json:"official_docs_urls"`
	Notes     []string `json:"status_notes"`
}

// ProjectSummary is the abbreviated form returned by the list tool.
type ProjectSummary struct {
	Kind  string `json:"project_type"`
	Board string `json:"board_model"`
	OS    string `json:"os_info"`
}

// Projects persists project records as a JSON file under dir. All mutations
// are read-modify-write under a file lock so concurrent server processes do
// not lose updates.
type Projects struct {
	dir string
}

// NewProjects creates the store, making dir if needed.
func NewProjects(dir string) (*Projects, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating projects dir: %w", err)
	}
	return &Projects{dir: dir}, nil
}

func (p *Projects) path() string {
	return filepath.Join(p.dir, projectsFile)
}

// withLock runs fn while holding the projects file lock.
func (p *Projects) withLock(ctx context.Context, fn func() error) error {
	lock := flock.New(p.path() + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquiring projects lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("projects file is locked")
	}
	defer lock.Unlock() //nolint:errcheck

	return fn()
}

// loadAll reads every record. A missing file is an empty store.
func (p *Projects) loadAll() (map[string]*Project, error) {
	raw, err := os.ReadFile(p.path())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Project{}, nil
		}
		return nil, fmt.Errorf("reading projects file: %w", err)
	}
	projects := map[string]*Project{}
	if err := json.Unmarshal(raw, &projects); err != nil {
		return nil, fmt.Errorf("decoding projects file: %w", err)
	}
	return projects, nil
}

// saveAll writes the full record set atomically (temp file + rename).
func (p *Projects) saveAll(projects map[string]*Project) error {
	raw, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding projects: %w", err)
	}

	tmp, err := os.CreateTemp(p.dir, projectsFile+".*")
	if err != nil {
		return fmt.Errorf("creating temp projects file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing projects: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing projects file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing projects file: %w", err)
	}
	return nil
}

// List returns summaries keyed by project name.
func (p *Projects) List(ctx context.Context) (map[string]ProjectSummary, error) {
	var summaries map[string]ProjectSummary
	err := p.withLock(ctx, func() error {
		all, err := p.loadAll()
		if err != nil {
			return err
		}
		summaries = make(map[string]ProjectSummary, len(all))
		for name, rec := range all {
			summaries[name] = ProjectSummary{Kind: rec.Kind, Board: rec.Board, OS: rec.OS}
		}
		return nil
	})
	return summaries, err
}

// Get returns the full record for name, or (nil, names-of-known-projects).
func (p *Projects) Get(ctx context.Context, name string) (*Project, []string, error) {
	var rec *Project
	var known []string
	err := p.withLock(ctx, func() error {
		all, err := p.loadAll()
		if err != nil {
			return err
		}
		if found, ok := all[name]; ok {
			rec = found
			return nil
		}
		known = make([]string, 0, len(all))
		for n := range all {
			known = append(known, n)
		}
		sort.Strings(known)
		return nil
	})
	return rec, known, err
}

// Save creates or fully replaces a record, preserving accumulated notes.
func (p *Projects) Save(ctx context.Context, rec Project) error {
	return p.withLock(ctx, func() error {
		all, err := p.loadAll()
		if err != nil {
			return err
		}
		if rec.UserLevel == "" {
			rec.UserLevel = "beginner"
		}
		if rec.DocsURLs == nil {
			rec.DocsURLs = []string{}
		}
		rec.Notes = []string{}
		if prev, ok := all[rec.Name]; ok {
			rec.Notes = prev.Notes
		}
		all[rec.Name] = &rec
		return p.saveAll(all)
	})
}

// AddNote appends a status note to an existing project and returns the
// updated note list. ok is false when the project does not exist.
func (p *Projects) AddNote(ctx context.Context, name, note string) (notes []string, ok bool, err error) {
	err = p.withLock(ctx, func() error {
		all, err := p.loadAll()
		if err != nil {
			return err
		}
		rec, found := all[name]
		if !found {
			return nil
		}
		rec.Notes = append(rec.Notes, note)
		if err := p.saveAll(all); err != nil {
			return err
		}
		notes = rec.Notes
		ok = true
		return nil
	})
	return notes, ok, err
}

// ListProjectsInput is intentionally empty; the tool takes no arguments.
type ListProjectsInput struct{}

// GetProjectInput identifies the project to look up.
type GetProjectInput struct {
	Name string `json:"project_name" jsonschema_description:"The name of the project to look up"`
}

// SaveProjectInput creates or fully updates a project record.
type SaveProjectInput struct {
	Name      string   `json:"project_name" jsonschema_description:"A short recognisable name for the project"`
	Kind      string   `json:"project_type" jsonschema_description:"Either 'microcontroller' or 'sbc' (single-board computer)"`
	Board     string   `json:"board_model" jsonschema_description:"Board model, e.g. 'ESP32-S3', 'Raspberry Pi 4'"`
	OS        string   `json:"os_info,omitempty" jsonschema_description:"Operating system / RTOS, e.g. 'FreeRTOS', 'Armbian'"`
	UserLevel string   `json:"user_level,omitempty" jsonschema_description:"'beginner' or 'expert'"`
	DocsURLs  []string `json:"official_docs_urls,omitempty" jsonschema_description:"Official documentation / reference URLs"`
}

// AddProjectNoteInput appends a free-text status note to a project.
type AddProjectNoteInput struct {
	Name string `json:"project_name" jsonschema_description:"Target project name"`
	Note string `json:"note" jsonschema_description:"Free-text status note, e.g. 'WiFi configured'"`
}

// ListProjects returns a summary of every saved project.
func (k *Kit) ListProjects(tctx *ai.ToolContext, _ ListProjectsInput) (string, error) {
	summaries, err := k.projects.List(tctx.Context)
	if err != nil {
		k.logger.Warn("listing projects", "error", err)
		return errorPayload(err), nil
	}
	if len(summaries) == 0 {
		return toJSON(map[string]any{
			"message":  "No projects saved yet.",
			"projects": map[string]ProjectSummary{},
		}), nil
	}
	return toJSON(map[string]any{"projects": summaries}), nil
}

// GetProject returns the full record for one project.
func (k *Kit) GetProject(tctx *ai.ToolContext, input GetProjectInput) (string, error) {
	rec, known, err := k.projects.Get(tctx.Context, input.Name)
	if err != nil {
		k.logger.Warn("loading project", "project", input.Name, "error", err)
		return errorPayload(err), nil
	}
	if rec == nil {
		return toJSON(map[string]any{
			"error":     fmt.Sprintf("Project %q not found.", input.Name),
			"available": known,
		}), nil
	}
	return toJSON(rec), nil
}

// SaveProject creates or fully updates a project record.
func (k *Kit) SaveProject(tctx *ai.ToolContext, input SaveProjectInput) (string, error) {
	if input.Name == "" {
		return toJSON(map[string]string{"error": "project_name is required"}), nil
	}
	rec := Project{
		Name:      input.Name,
		Kind:      input.Kind,
		Board:     input.Board,
		OS:        input.OS,
		UserLevel: input.UserLevel,
		DocsURLs:  input.DocsURLs,
	}
	if err := k.projects.Save(tctx.Context, rec); err != nil {
		k.logger.Warn("saving project", "project", input.Name, "error", err)
		return errorPayload(err), nil
	}
	k.logger.Info("project saved", "project", input.Name)
	return toJSON(map[string]string{
		"message": fmt.Sprintf("Project %q saved successfully.", input.Name),
	}), nil
}

// AddProjectNote appends a status note to a project's history.
func (k *Kit) AddProjectNote(tctx *ai.ToolContext, input AddProjectNoteInput) (string, error) {
	notes, ok, err := k.projects.AddNote(tctx.Context, input.Name, input.Note)
	if err != nil {
		k.logger.Warn("adding project note", "project", input.Name, "error", err)
		return errorPayload(err), nil
	}
	if !ok {
		return toJSON(map[string]string{
			"error": fmt.Sprintf("Project %q not found.", input.Name),
		}), nil
	}
	return toJSON(map[string]any{
		"message":      "Note added.",
		"status_notes": notes,
	}), nil
}

// toJSON renders a tool payload. Marshal failures degrade to an error
// payload rather than failing the turn.
func toJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return errorPayload(err)
	}
	return string(raw)
}
