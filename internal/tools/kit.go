package tools

import (
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/ferrite-ai/ferrite/internal/log"
	"github.com/ferrite-ai/ferrite/internal/security"
)

// Registered tool names. The registry here is the single source of truth;
// the transport attributes events by these names.
const (
	ToolListProjects   = "list_projects"
	ToolGetProject     = "get_project"
	ToolSaveProject    = "save_project"
	ToolAddProjectNote = "add_project_note"
	ToolReadFile       = "read_file"
	ToolSendForm       = "send_form"
)

// Config holds the dependencies for a tool Kit.
type Config struct {
	// ProjectsDir is where project records are persisted.
	ProjectsDir string
	// PathVal validates paths for read_file. Required.
	PathVal *security.Path
	// Logger is required; use log.NewNop() in tests.
	Logger log.Logger
}

// Kit owns the built-in tools and their shared dependencies.
type Kit struct {
	projects *Projects
	pathVal  *security.Path
	logger   log.Logger
}

// NewKit creates the tool kit.
func NewKit(cfg Config) (*Kit, error) {
	if cfg.PathVal == nil {
		return nil, fmt.Errorf("tools: path validator is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("tools: logger is required")
	}
	projects, err := NewProjects(cfg.ProjectsDir)
	if err != nil {
		return nil, err
	}
	return &Kit{
		projects: projects,
		pathVal:  cfg.PathVal,
		logger:   cfg.Logger.With("component", "tools"),
	}, nil
}

// Register defines every built-in tool on g and returns their refs for
// prompt execution.
func (k *Kit) Register(g *genkit.Genkit) ([]ai.ToolRef, error) {
	if g == nil {
		return nil, fmt.Errorf("tools: genkit instance is required")
	}

	tools := []ai.Tool{
		genkit.DefineTool(g, ToolListProjects,
			"List all saved projects with their type, board model and OS. "+
				"Call this at the start of a conversation to recall known hardware projects.",
			WithEvents(ToolListProjects, k.ListProjects)),

		genkit.DefineTool(g, ToolGetProject,
			"Retrieve the full saved record for one project: board model, OS, "+
				"user level, documentation URLs and status notes.",
			WithEvents(ToolGetProject, k.GetProject)),

		genkit.DefineTool(g, ToolSaveProject,
			"Create or fully update a project record so its hardware details "+
				"persist across conversations. Existing status notes are preserved.",
			WithEvents(ToolSaveProject, k.SaveProject)),

		genkit.DefineTool(g, ToolAddProjectNote,
			"Append a status note to a project's history. Use this to record "+
				"milestones, issues or configuration changes.",
			WithEvents(ToolAddProjectNote, k.AddProjectNote)),

		genkit.DefineTool(g, ToolReadFile,
			"Read the content of a single text file from the user's workspace. "+
				"Paths are validated; files over 256 KB are refused.",
			WithEvents(ToolReadFile, k.ReadFile)),

		genkit.DefineTool(g, ToolSendForm,
			"Display an interactive form to the user inside the chat panel. "+
				"Use buttons for pause/resume of long-running tasks and text fields "+
				"to collect structured data (paths, addresses, choices). "+
				"Treat the return value as confirmation the form was shown; the "+
				"user's reply arrives as their next message.",
			k.SendForm), // manages its own lifecycle events
	}

	refs := make([]ai.ToolRef, len(tools))
	for i, t := range tools {
		refs[i] = t
	}
	k.logger.Info("tools registered", "count", len(refs))
	return refs, nil
}
