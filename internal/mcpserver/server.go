// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the vault assistant as tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vaultchat/internal/assistant"
	"github.com/starford/vaultchat/internal/models"
	"github.com/starford/vaultchat/internal/synth"
)

const noteFormatURI = "vaultchat://note-format"

// Assistant is the part of *assistant.Service the tools use.
type Assistant interface {
	Search(ctx context.Context, term string) (string, error)
	Analyze(ctx context.Context) (assistant.Analysis, error)
	Notes(ctx context.Context, q models.SelectionQuery) []models.Note
	ReadNote(ctx context.Context, path string) (*assistant.NoteDetail, error)
	OpenSession(ctx context.Context) (string, error)
	Chat(ctx context.Context, id, msg string) (string, error)
	Generate(ctx context.Context, topic, style string) (models.GeneratedNote, error)
	Save(ctx context.Context, note models.GeneratedNote, overwrite bool) (string, error)
}

// Server wraps the MCP server with vault tools.
type Server struct {
	mcp *server.MCPServer
	svc Assistant
}

// New creates a new MCP server with all tools registered.
func New(svc Assistant, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"vaultchat",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Answer a question using the notes whose content contains the query (case-insensitive substring match)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search term, also used as the question")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, optionally only those containing a term. Does not call the model."),
		mcp.WithString("query", mcp.Description("Optional filter term")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of notes (default 10)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("analyze_vault",
		mcp.WithDescription("Summarise the vault: main themes, organisation suggestions and connections between notes."),
	), s.analyzeVault)

	s.mcp.AddTool(mcp.NewTool("chat",
		mcp.WithDescription("Send a message in a conversation about the vault. Omit session_id to start a new conversation; "+
			"pass the returned session_id to continue it."),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message to send")),
		mcp.WithString("session_id", mcp.Description("Existing conversation id")),
	), s.chat)

	s.mcp.AddTool(mcp.NewTool("generate_note",
		mcp.WithDescription("Draft a new note on a topic using similar notes as context. "+
			"The draft is only written to the vault when save is true."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Topic of the note, also its title")),
		mcp.WithString("style", mcp.Description("Writing style (default: detailed)")),
		mcp.WithBoolean("save", mcp.Description("Write the draft into the vault")),
		mcp.WithBoolean("overwrite", mcp.Description("Replace an existing note with the same name")),
	), s.generateNote)

	s.mcp.AddTool(mcp.NewTool("save_note",
		mcp.WithDescription("Write a note into the vault with generated front matter. "+
			"Read the format first via get_note_contract or the "+noteFormatURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title; sanitized into the file name")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Markdown body without front matter")),
		mcp.WithString("tags", mcp.Description("Comma separated extra tags")),
		mcp.WithBoolean("overwrite", mcp.Description("Replace an existing note with the same name")),
	), s.saveNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format vaultchat reads and writes."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(noteFormatURI, "Note Format",
			mcp.WithResourceDescription("Markdown note format written by vaultchat."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := s.svc.Search(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(answer), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes := s.svc.Notes(ctx, models.SelectionQuery{
		Term:  req.GetString("query", ""),
		Limit: req.GetInt("limit", 0),
	})
	if len(notes) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	paths := make([]string, len(notes))
	for i, n := range notes {
		paths[i] = n.RelativePath
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.ReadNote(ctx, path)
	if err != nil {
		return mcp.NewToolResultError("not found: " + path), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) analyzeVault(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Analyze(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) chat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	msg, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id := req.GetString("session_id", "")
	if id == "" {
		if id, err = s.svc.OpenSession(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	reply, err := s.svc.Chat(ctx, id, msg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{"session_id": id, "reply": reply}), nil
}

func (s *Server) generateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic, err := req.RequireString("topic")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.Generate(ctx, topic, req.GetString("style", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := struct {
		Note models.GeneratedNote `json:"note"`
		Path string               `json:"path,omitempty"`
	}{Note: note}
	if req.GetBool("save", false) {
		if out.Path, err = s.svc.Save(ctx, note, req.GetBool("overwrite", false)); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return jsonResult(out), nil
}

func (s *Server) saveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := req.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tags := []string{synth.GeneratedTag}
	seen := map[string]bool{synth.GeneratedTag: true}
	for _, t := range strings.Split(req.GetString("tags", ""), ",") {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t != "" && !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}

	path, err := s.svc.Save(ctx, models.GeneratedNote{Title: title, Body: body, Tags: tags}, req.GetBool("overwrite", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("saved: " + path), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      noteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
