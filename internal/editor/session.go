// Package editor composes the tree, undo history, drag controller and
// annotation service into one session that a view drives.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/matcluster/internal/annotation"
	"github.com/starford/matcluster/internal/drag"
	"github.com/starford/matcluster/internal/models"
	"github.com/starford/matcluster/internal/tree"
	"github.com/starford/matcluster/internal/undo"
)

// ErrUnknownNode is returned when an operation names a node or annotation
// that is not in the current tree.
var ErrUnknownNode = errors.New("editor: unknown node")

// TreeSource is the remote classification source.
type TreeSource interface {
	LoadTree(ctx context.Context, category string) (*tree.Node, error)
	SaveLayout(ctx context.Context, category string, root *tree.Node) (models.LayoutMetadata, error)
	Categories(ctx context.Context) ([]string, error)
}

// Config tunes a session.
type Config struct {
	UndoLimit  int
	StatusSize int
	Scroll     drag.ScrollConfig
}

// Session is the editor state container. Mutations are serialized by an
// internal lock that is never held across network calls.
type Session struct {
	source TreeSource
	notes  *annotation.Service
	status *StatusLog
	logger *slog.Logger
	drag   *drag.Controller

	mu         sync.Mutex
	store      *tree.Store
	history    *undo.History[*tree.Node]
	category   string
	generation uint64
}

// NewSession creates a session. scroll receives auto-scroll frames during a
// drag and may be nil.
func NewSession(source TreeSource, store annotation.Store, cfg Config, logger *slog.Logger, scroll drag.ScrollFunc) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		source:  source,
		notes:   annotation.NewService(store, logger),
		status:  NewStatusLog(cfg.StatusSize, logger),
		logger:  logger,
		store:   tree.NewStore(),
		history: undo.New[*tree.Node](cfg.UndoLimit),
	}
	s.drag = drag.New(s, cfg.Scroll, scroll)
	return s
}

// Close stops background work owned by the session.
func (s *Session) Close() {
	s.drag.Cancel()
	s.drag.Close()
}

// Load replaces the tree with the source's snapshot for category and starts
// a new undo baseline. In-flight annotation results for the previous tree
// are discarded when they arrive.
func (s *Session) Load(ctx context.Context, category string) error {
	root, err := s.source.LoadTree(ctx, category)
	if err != nil {
		s.status.Errorf("load %q failed: %v", category, err)
		return fmt.Errorf("editor: load: %w", err)
	}

	s.mu.Lock()
	if err := s.store.Load(root); err != nil {
		s.mu.Unlock()
		s.status.Errorf("load %q rejected: %v", category, err)
		return fmt.Errorf("editor: load: %w", err)
	}
	s.history.Clear()
	s.category = category
	s.generation++
	n := s.store.Len()
	s.mu.Unlock()

	s.drag.Cancel()
	s.status.Infof("loaded %q (%d nodes)", displayCategory(category), n)
	return nil
}

// Reload loads the current category again.
func (s *Session) Reload(ctx context.Context) error {
	return s.Load(ctx, s.Category())
}

// Category returns the category of the loaded tree.
func (s *Session) Category() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.category
}

// Categories returns the known category filters.
func (s *Session) Categories(ctx context.Context) ([]string, error) {
	cats, err := s.source.Categories(ctx)
	if err != nil {
		s.status.Errorf("list categories failed: %v", err)
		return nil, fmt.Errorf("editor: categories: %w", err)
	}
	return cats, nil
}

// RootID implements drag.Tree.
func (s *Session) RootID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.RootID()
}

// Has implements drag.Tree.
func (s *Session) Has(id string) bool {
	_, ok := s.Lookup(id)
	return ok
}

// Move relocates a node and records the prior tree for undo. Rejected moves
// leave both the tree and the history untouched.
func (s *Session) Move(sourceID, targetID string, pos tree.Position) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.store.Serialize()
	if !s.store.Move(sourceID, targetID, pos) {
		return false
	}
	s.history.Push(prev)
	return true
}

// Rename sets the name of a leaf-like node: a material or any childless
// node other than the root.
func (s *Session) Rename(id, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.store.Lookup(id)
	if !ok || !renamable(info, s.store.RootID()) {
		return false
	}
	prev := s.store.Serialize()
	if !s.store.Rename(id, name) {
		return false
	}
	s.history.Push(prev)
	return true
}

func renamable(info tree.Info, rootID string) bool {
	if info.Key.Type == models.TypeMaterial {
		return true
	}
	return info.ID != rootID && info.ChildCount == 0
}

// Undo restores the tree as it was before the last move or rename.
// Annotations keep their current state. It reports false when there is
// nothing to undo.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.store.RestoreShape(prev)
	return true
}

// CanUndo reports whether Undo would change the tree.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

// Drag returns the drag controller bound to this session.
func (s *Session) Drag() *drag.Controller {
	return s.drag
}

// Snapshot returns a deep copy of the current tree.
func (s *Session) Snapshot() *tree.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Serialize()
}

// Render returns the text outline of the current tree.
func (s *Session) Render() string {
	return tree.Render(s.Snapshot())
}

// Lookup returns a summary of one node.
func (s *Session) Lookup(id string) (tree.Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Lookup(id)
}

// Status returns the retained status messages, oldest first.
func (s *Session) Status() []StatusEntry {
	return s.status.Entries()
}

// LastStatus returns the most recent status message, if any.
func (s *Session) LastStatus() (StatusEntry, bool) {
	return s.status.Last()
}

// SaveLayout pushes the current tree to the source as the new baseline.
// Nothing detects a concurrent save from another session; the last write
// wins.
func (s *Session) SaveLayout(ctx context.Context) (models.LayoutMetadata, error) {
	s.mu.Lock()
	root := s.store.Serialize()
	category := s.category
	s.mu.Unlock()

	meta, err := s.source.SaveLayout(ctx, category, root)
	if err != nil {
		s.status.Errorf("save layout failed: %v", err)
		return models.LayoutMetadata{}, fmt.Errorf("editor: save layout: %w", err)
	}
	s.status.Infof("layout saved for %q", displayCategory(category))
	return meta, nil
}

// AddNote attaches a note to a node once the store confirms it.
func (s *Session) AddNote(ctx context.Context, nodeID, text string) (models.Annotation, error) {
	return s.add(ctx, nodeID, annotation.Draft{Kind: models.KindNote, Text: text})
}

// AddQuestion attaches a question, optionally already answered.
func (s *Session) AddQuestion(ctx context.Context, nodeID, question, answer string) (models.Annotation, error) {
	return s.add(ctx, nodeID, annotation.Draft{Kind: models.KindQuestion, Text: question, Answer: answer})
}

func (s *Session) add(ctx context.Context, nodeID string, d annotation.Draft) (models.Annotation, error) {
	target, bound, err := s.bind(nodeID)
	if err != nil {
		return models.Annotation{}, err
	}
	sub, err := s.notes.Add(ctx, bound, target, d)
	if err != nil {
		s.status.Errorf("add %s to %q failed: %v", d.Kind, nodeID, err)
		return models.Annotation{}, err
	}
	return sub.Annotation, nil
}

// RemoveAnnotation drops an annotation locally and then remotely. A remote
// failure is reported but the local removal is kept.
func (s *Session) RemoveAnnotation(ctx context.Context, annotationID int64) error {
	target, bound, err := s.bindAnnotation(annotationID)
	if err != nil {
		return err
	}
	if err := s.notes.Remove(ctx, bound, target, annotationID); err != nil {
		s.status.Errorf("remove annotation %d failed: %v", annotationID, err)
		return err
	}
	return nil
}

// Answer records the answer to a question annotation.
func (s *Session) Answer(ctx context.Context, annotationID int64, answer string) (models.Annotation, error) {
	target, bound, err := s.bindAnnotation(annotationID)
	if err != nil {
		return models.Annotation{}, err
	}
	a, err := s.notes.Answer(ctx, bound, target, annotationID, answer)
	if err != nil {
		s.status.Errorf("answer %d failed: %v", annotationID, err)
		return models.Annotation{}, err
	}
	return a, nil
}

// RefreshAnnotations replaces a node's cached annotations with the store's.
func (s *Session) RefreshAnnotations(ctx context.Context, nodeID string) ([]models.Annotation, error) {
	target, bound, err := s.bind(nodeID)
	if err != nil {
		return nil, err
	}
	anns, err := s.notes.Refresh(ctx, bound, target)
	if err != nil {
		s.status.Errorf("refresh annotations of %q failed: %v", nodeID, err)
		return nil, err
	}
	return anns, nil
}

func (s *Session) bind(nodeID string) (annotation.Node, *generationTree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.store.Lookup(nodeID)
	if !ok {
		return annotation.Node{}, nil, fmt.Errorf("%w: %q", ErrUnknownNode, nodeID)
	}
	return annotation.Node{ID: info.ID, Key: info.Key}, &generationTree{s: s, gen: s.generation}, nil
}

func (s *Session) bindAnnotation(annotationID int64) (annotation.Node, *generationTree, error) {
	s.mu.Lock()
	nodeID, ok := s.store.FindAnnotation(annotationID)
	s.mu.Unlock()
	if !ok {
		return annotation.Node{}, nil, fmt.Errorf("%w: no node holds annotation %d", ErrUnknownNode, annotationID)
	}
	return s.bind(nodeID)
}

// generationTree applies annotation results to the session's tree only while
// the tree they were issued against is still loaded.
type generationTree struct {
	s   *Session
	gen uint64
}

func (g *generationTree) apply(fn func(*tree.Store) bool) bool {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if g.s.generation != g.gen {
		return false
	}
	return fn(g.s.store)
}

func (g *generationTree) AttachAnnotation(nodeID string, a models.Annotation) bool {
	return g.apply(func(st *tree.Store) bool { return st.AttachAnnotation(nodeID, a) })
}

func (g *generationTree) RemoveAnnotation(nodeID string, annotationID int64) bool {
	return g.apply(func(st *tree.Store) bool { return st.RemoveAnnotation(nodeID, annotationID) })
}

func (g *generationTree) UpdateAnnotation(nodeID string, a models.Annotation) bool {
	return g.apply(func(st *tree.Store) bool { return st.UpdateAnnotation(nodeID, a) })
}

func (g *generationTree) SetAnnotations(nodeID string, anns []models.Annotation) bool {
	return g.apply(func(st *tree.Store) bool { return st.SetAnnotations(nodeID, anns) })
}

func displayCategory(c string) string {
	if c == "" {
		return "All"
	}
	return c
}
