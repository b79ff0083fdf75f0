// Package mcpserver exposes an editor session as MCP tools over stdio, so an
// LLM client can act as the tree view: load a category, drag nodes around,
// annotate them and save the layout.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/matcluster/internal/drag"
	"github.com/starford/matcluster/internal/editor"
	"github.com/starford/matcluster/internal/tree"
)

// Server wraps the MCP server with the editor tools.
type Server struct {
	mcp     *server.MCPServer
	session *editor.Session

	mu     sync.Mutex
	scroll float64
}

// New creates a new MCP server bound to session. Use Scroll as the
// session's scroll callback so the accumulated offset shows up in status.
func New(session *editor.Session) *Server {
	s := &Server{session: session}

	s.mcp = server.NewMCPServer(
		"matcluster",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the sub-categories a tree can be loaded for."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("load_tree",
		mcp.WithDescription("Load the classification tree of a category, replacing the current one and clearing undo history."),
		mcp.WithString("category", mcp.Description("Sub-category to load; empty or All for every material")),
	), s.loadTree)

	s.mcp.AddTool(mcp.NewTool("show_tree",
		mcp.WithDescription("Show the current tree as an indented outline. Each line is '- name [type] (id)'."),
	), s.showTree)

	s.mcp.AddTool(mcp.NewTool("move_node",
		mcp.WithDescription("Move a node before, after or inside another node."),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Id of the node to move")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Id of the drop target")),
		mcp.WithString("position", mcp.Required(), mcp.Enum("before", "after", "inside")),
	), s.moveNode)

	s.mcp.AddTool(mcp.NewTool("rename_node",
		mcp.WithDescription("Rename a material or a childless group."),
		mcp.WithString("id", mcp.Required()),
		mcp.WithString("name", mcp.Required()),
	), s.renameNode)

	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last move or rename. Annotations are not affected."),
	), s.undo)

	s.mcp.AddTool(mcp.NewTool("drag_start",
		mcp.WithDescription("Start dragging a node."),
		mcp.WithString("id", mcp.Required()),
	), s.dragStart)

	s.mcp.AddTool(mcp.NewTool("drag_over",
		mcp.WithDescription("Hover the dragged node over a target. The pointer position within the target box selects before, inside or after."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the hovered node")),
		mcp.WithNumber("pointer_y", mcp.Required()),
		mcp.WithNumber("top", mcp.Required(), mcp.Description("Top edge of the hovered row")),
		mcp.WithNumber("height", mcp.Required(), mcp.Description("Height of the hovered row")),
	), s.dragOver)

	s.mcp.AddTool(mcp.NewTool("drag_pointer",
		mcp.WithDescription("Report the pointer position relative to the viewport; near an edge the view auto-scrolls."),
		mcp.WithNumber("pointer_y", mcp.Required()),
		mcp.WithNumber("viewport_top", mcp.Required()),
		mcp.WithNumber("viewport_height", mcp.Required()),
	), s.dragPointer)

	s.mcp.AddTool(mcp.NewTool("drag_end",
		mcp.WithDescription("Drop the dragged node on the last hovered target."),
	), s.dragEnd)

	s.mcp.AddTool(mcp.NewTool("drag_cancel",
		mcp.WithDescription("Abandon the current drag."),
	), s.dragCancel)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Attach a note to a node."),
		mcp.WithString("node_id", mcp.Required()),
		mcp.WithString("text", mcp.Required()),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("add_question",
		mcp.WithDescription("Attach a question to a node. A question without an answer is open."),
		mcp.WithString("node_id", mcp.Required()),
		mcp.WithString("question", mcp.Required()),
		mcp.WithString("answer", mcp.Description("Optional answer")),
	), s.addQuestion)

	s.mcp.AddTool(mcp.NewTool("answer_question",
		mcp.WithDescription("Answer a question annotation. An empty answer reopens it."),
		mcp.WithNumber("annotation_id", mcp.Required()),
		mcp.WithString("answer"),
	), s.answerQuestion)

	s.mcp.AddTool(mcp.NewTool("remove_annotation",
		mcp.WithDescription("Remove an annotation."),
		mcp.WithNumber("annotation_id", mcp.Required()),
	), s.removeAnnotation)

	s.mcp.AddTool(mcp.NewTool("refresh_annotations",
		mcp.WithDescription("Reload the annotations of a node from the store."),
		mcp.WithString("node_id", mcp.Required()),
	), s.refreshAnnotations)

	s.mcp.AddTool(mcp.NewTool("save_layout",
		mcp.WithDescription("Save the current arrangement. The last save wins."),
	), s.saveLayout)

	s.mcp.AddTool(mcp.NewTool("status",
		mcp.WithDescription("Show the loaded category, undo and drag state, and recent status messages."),
	), s.status)

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

// Scroll accumulates auto-scroll frames.
func (s *Server) Scroll(delta float64) {
	s.mu.Lock()
	s.scroll += delta
	s.mu.Unlock()
}

func (s *Server) scrollOffset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scroll
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func annotationID(req mcp.CallToolRequest) (int64, error) {
	v, err := req.RequireFloat("annotation_id")
	if err != nil {
		return 0, err
	}
	if v <= 0 || v != math.Trunc(v) {
		return 0, fmt.Errorf("annotation_id must be a positive integer")
	}
	return int64(v), nil
}

func (s *Server) listCategories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := s.session.Categories(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(cats) == 0 {
		return mcp.NewToolResultText("no categories"), nil
	}
	return mcp.NewToolResultText(strings.Join(cats, "\n")), nil
}

func (s *Server) loadTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.session.Load(ctx, req.GetString("category", "")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.session.Render()), nil
}

func (s *Server) showTree(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.session.Render()), nil
}

func (s *Server) moveNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("position")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pos, err := tree.ParsePosition(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.session.Move(source, target, pos) {
		return mcp.NewToolResultError(fmt.Sprintf("move rejected: %s %s %s", source, pos, target)), nil
	}
	return mcp.NewToolResultText(s.session.Render()), nil
}

func (s *Server) renameNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.session.Rename(id, name) {
		return mcp.NewToolResultError(fmt.Sprintf("rename rejected: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("renamed: %s", id)), nil
}

func (s *Server) undo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.session.Undo() {
		return mcp.NewToolResultText("nothing to undo"), nil
	}
	return mcp.NewToolResultText(s.session.Render()), nil
}

func (s *Server) dragStart(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.session.Drag().Start(id) {
		return mcp.NewToolResultError(fmt.Sprintf("cannot drag: %s", id)), nil
	}
	return jsonResult(s.session.Drag().State()), nil
}

func (s *Server) dragOver(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := req.RequireFloat("pointer_y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	box := drag.Box{Top: req.GetFloat("top", 0), Height: req.GetFloat("height", 0)}
	if !s.session.Drag().Over(id, y, box) {
		return mcp.NewToolResultError("no drag in progress or hovering the dragged node"), nil
	}
	return jsonResult(s.session.Drag().State()), nil
}

func (s *Server) dragPointer(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	y, err := req.RequireFloat("pointer_y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	vp := drag.Viewport{Top: req.GetFloat("viewport_top", 0), Height: req.GetFloat("viewport_height", 0)}
	v := s.session.Drag().Pointer(y, vp)
	return mcp.NewToolResultText("velocity: " + strconv.FormatFloat(v, 'f', -1, 64)), nil
}

func (s *Server) dragEnd(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.session.Drag().End() {
		return mcp.NewToolResultText("dropped: no change"), nil
	}
	return mcp.NewToolResultText(s.session.Render()), nil
}

func (s *Server) dragCancel(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.session.Drag().Cancel()
	return mcp.NewToolResultText("drag cancelled"), nil
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.session.AddNote(ctx, nodeID, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(a), nil
}

func (s *Server) addQuestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.session.AddQuestion(ctx, nodeID, question, req.GetString("answer", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(a), nil
}

func (s *Server) answerQuestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := annotationID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.session.Answer(ctx, id, req.GetString("answer", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(a), nil
}

func (s *Server) removeAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := annotationID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.session.RemoveAnnotation(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed: %d", id)), nil
}

func (s *Server) refreshAnnotations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	anns, err := s.session.RefreshAnnotations(ctx, nodeID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(anns), nil
}

func (s *Server) saveLayout(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	meta, err := s.session.SaveLayout(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(meta), nil
}

type statusView struct {
	Category     string               `json:"category"`
	Nodes        int                  `json:"nodes"`
	CanUndo      bool                 `json:"can_undo"`
	Drag         drag.State           `json:"drag"`
	ScrollOffset float64              `json:"scroll_offset"`
	Last         *editor.StatusEntry  `json:"last,omitempty"`
	Messages     []editor.StatusEntry `json:"messages"`
}

func (s *Server) status(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes := 0
	tree.Walk(s.session.Snapshot(), func(_, _ *tree.Node) bool {
		nodes++
		return true
	})
	view := statusView{
		Category:     s.session.Category(),
		Nodes:        nodes,
		CanUndo:      s.session.CanUndo(),
		Drag:         s.session.Drag().State(),
		ScrollOffset: s.scrollOffset(),
		Messages:     s.session.Status(),
	}
	if last, ok := s.session.LastStatus(); ok {
		view.Last = &last
	}
	return jsonResult(view), nil
}
