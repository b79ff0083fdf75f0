package tree

import (
	"fmt"
	"strings"

	"github.com/starford/matcluster/internal/models"
)

// Position is the placement of a moved node relative to its target.
type Position string

// Positions. PositionNone means no placement has been resolved.
const (
	PositionNone   Position = ""
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
	PositionInside Position = "inside"
)

// ParsePosition converts s into a Position.
func ParsePosition(s string) (Position, error) {
	switch p := Position(strings.ToLower(strings.TrimSpace(s))); p {
	case PositionBefore, PositionAfter, PositionInside:
		return p, nil
	}
	return PositionNone, fmt.Errorf("tree: unknown position %q", s)
}

// RootID is the id of the placeholder root used before the first load.
const RootID = "root"

// Info is a read-only summary of one node.
type Info struct {
	ID              string
	Name            string
	Key             models.NodeKey
	ParentID        string
	ChildCount      int
	Annotations     []models.Annotation
	Comment         string
	HasOpenQuestion bool
}

// Store owns the canonical in-memory tree. It performs no I/O and is not
// safe for concurrent use; callers serialize access.
type Store struct {
	root *Node
}

// NewStore returns a store holding an empty placeholder root.
func NewStore() *Store {
	return &Store{root: &Node{
		ID:       RootID,
		Name:     "Material Clusters",
		Type:     models.TypeRoot,
		Children: []*Node{},
	}}
}

// Load replaces the whole tree with a copy of snapshot.
func (s *Store) Load(snapshot *Node) error {
	if err := Validate(snapshot); err != nil {
		return err
	}
	s.root = normalize(Clone(snapshot))
	return nil
}

// normalize recomputes derived fields across a freshly copied tree.
func normalize(n *Node) *Node {
	n.Comment, n.HasOpenQuestion = Summarize(n.Annotations)
	if n.Children == nil {
		n.Children = []*Node{}
	}
	for _, c := range n.Children {
		normalize(c)
	}
	return n
}

// Serialize returns a deep copy of the current tree.
func (s *Store) Serialize() *Node {
	return Clone(s.root)
}

// Restore replaces the current tree with a copy of a previously serialized one.
func (s *Store) Restore(snapshot *Node) {
	if snapshot == nil {
		return
	}
	s.root = Clone(snapshot)
}

// RestoreShape restores the structure and names of snapshot while keeping
// the annotations currently cached for each node id. Ids do not change
// between loads, so a node's annotations follow it back to its old place.
func (s *Store) RestoreShape(snapshot *Node) {
	if snapshot == nil {
		return
	}
	current := make(map[string][]models.Annotation)
	Walk(s.root, func(n, _ *Node) bool {
		if len(n.Annotations) > 0 {
			current[n.ID] = n.Annotations
		}
		return true
	})
	root := Clone(snapshot)
	Walk(root, func(n, _ *Node) bool {
		n.Annotations = append([]models.Annotation(nil), current[n.ID]...)
		n.Comment, n.HasOpenQuestion = Summarize(n.Annotations)
		return true
	})
	s.root = root
}

// RootID returns the id of the current root.
func (s *Store) RootID() string {
	return s.root.ID
}

// Len returns the number of nodes in the tree.
func (s *Store) Len() int {
	n := 0
	Walk(s.root, func(*Node, *Node) bool {
		n++
		return true
	})
	return n
}

// Lookup returns a summary of the node with the given id.
func (s *Store) Lookup(id string) (Info, bool) {
	var info Info
	found := false
	Walk(s.root, func(n, parent *Node) bool {
		if n.ID != id {
			return true
		}
		info = Info{
			ID:              n.ID,
			Name:            n.Name,
			Key:             n.Key(),
			ChildCount:      len(n.Children),
			Annotations:     append([]models.Annotation(nil), n.Annotations...),
			Comment:         n.Comment,
			HasOpenQuestion: n.HasOpenQuestion,
		}
		if parent != nil {
			info.ParentID = parent.ID
		}
		found = true
		return false
	})
	return info, found
}

// Contains reports whether id lies inside the subtree rooted at ancestorID,
// the ancestor itself included.
func (s *Store) Contains(ancestorID, id string) bool {
	ancestor := Find(s.root, ancestorID)
	return ancestor != nil && Find(ancestor, id) != nil
}

// FindAnnotation returns the id of the node holding the annotation.
func (s *Store) FindAnnotation(annotationID int64) (string, bool) {
	nodeID := ""
	Walk(s.root, func(n, _ *Node) bool {
		for _, a := range n.Annotations {
			if a.ID == annotationID {
				nodeID = n.ID
				return false
			}
		}
		return true
	})
	return nodeID, nodeID != ""
}

// Move relocates the subtree rooted at sourceID relative to targetID. It
// reports whether the tree changed. Moving the root, moving a node onto
// itself or into its own subtree, unknown ids, and before/after the root are
// all rejected without touching the tree.
func (s *Store) Move(sourceID, targetID string, pos Position) bool {
	if sourceID == targetID || sourceID == s.root.ID {
		return false
	}
	switch pos {
	case PositionBefore, PositionAfter:
		if targetID == s.root.ID {
			return false
		}
	case PositionInside:
	default:
		return false
	}
	src := Find(s.root, sourceID)
	if src == nil || Find(s.root, targetID) == nil || s.Contains(sourceID, targetID) {
		return false
	}

	detached, ok := without(s.root, sourceID)
	if !ok {
		return false
	}
	moved, ok := with(detached, src, targetID, pos)
	if !ok {
		return false
	}
	s.root = moved
	return true
}

// without returns a copy of n with the child identified by id removed,
// sharing every subtree off the path to it.
func without(n *Node, id string) (*Node, bool) {
	for i, c := range n.Children {
		if c.ID == id {
			cp := *n
			cp.Children = make([]*Node, 0, len(n.Children)-1)
			cp.Children = append(cp.Children, n.Children[:i]...)
			cp.Children = append(cp.Children, n.Children[i+1:]...)
			return &cp, true
		}
		if next, ok := without(c, id); ok {
			return replaceChild(n, i, next), true
		}
	}
	return n, false
}

// with returns a copy of n with sub placed relative to targetID.
func with(n, sub *Node, targetID string, pos Position) (*Node, bool) {
	if pos == PositionInside && n.ID == targetID {
		cp := *n
		cp.Children = make([]*Node, 0, len(n.Children)+1)
		cp.Children = append(cp.Children, n.Children...)
		cp.Children = append(cp.Children, sub)
		return &cp, true
	}
	for i, c := range n.Children {
		if pos != PositionInside && c.ID == targetID {
			at := i
			if pos == PositionAfter {
				at = i + 1
			}
			cp := *n
			cp.Children = make([]*Node, 0, len(n.Children)+1)
			cp.Children = append(cp.Children, n.Children[:at]...)
			cp.Children = append(cp.Children, sub)
			cp.Children = append(cp.Children, n.Children[at:]...)
			return &cp, true
		}
		if next, ok := with(c, sub, targetID, pos); ok {
			return replaceChild(n, i, next), true
		}
	}
	return n, false
}

func replaceChild(n *Node, i int, child *Node) *Node {
	cp := *n
	cp.Children = append([]*Node(nil), n.Children...)
	cp.Children[i] = child
	return &cp
}

// update rebuilds the path to id, replacing that node with fn's result.
func update(n *Node, id string, fn func(*Node) *Node) (*Node, bool) {
	if n.ID == id {
		return fn(n), true
	}
	for i, c := range n.Children {
		if next, ok := update(c, id, fn); ok {
			return replaceChild(n, i, next), true
		}
	}
	return n, false
}

// Rename sets the display name of a node. Empty and unchanged names are
// ignored.
func (s *Store) Rename(id, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	n := Find(s.root, id)
	if n == nil || n.Name == name {
		return false
	}
	s.root, _ = update(s.root, id, func(n *Node) *Node {
		cp := *n
		cp.Name = name
		return &cp
	})
	return true
}

// AttachAnnotation appends a to the node's annotations.
func (s *Store) AttachAnnotation(id string, a models.Annotation) bool {
	return s.editAnnotations(id, func(anns []models.Annotation) ([]models.Annotation, bool) {
		out := make([]models.Annotation, 0, len(anns)+1)
		out = append(out, anns...)
		return append(out, a), true
	})
}

// RemoveAnnotation drops the annotation with the given id from the node.
func (s *Store) RemoveAnnotation(id string, annotationID int64) bool {
	return s.editAnnotations(id, func(anns []models.Annotation) ([]models.Annotation, bool) {
		out := make([]models.Annotation, 0, len(anns))
		for _, a := range anns {
			if a.ID != annotationID {
				out = append(out, a)
			}
		}
		return out, len(out) != len(anns)
	})
}

// UpdateAnnotation replaces the node's annotation that has a.ID.
func (s *Store) UpdateAnnotation(id string, a models.Annotation) bool {
	return s.editAnnotations(id, func(anns []models.Annotation) ([]models.Annotation, bool) {
		out := append([]models.Annotation(nil), anns...)
		for i := range out {
			if out[i].ID == a.ID {
				out[i] = a
				return out, true
			}
		}
		return anns, false
	})
}

// SetAnnotations replaces the node's whole annotation list.
func (s *Store) SetAnnotations(id string, anns []models.Annotation) bool {
	return s.editAnnotations(id, func([]models.Annotation) ([]models.Annotation, bool) {
		return append([]models.Annotation(nil), anns...), true
	})
}

func (s *Store) editAnnotations(id string, fn func([]models.Annotation) ([]models.Annotation, bool)) bool {
	n := Find(s.root, id)
	if n == nil {
		return false
	}
	next, changed := fn(n.Annotations)
	if !changed {
		return false
	}
	s.root, _ = update(s.root, id, func(n *Node) *Node {
		return n.withAnnotations(next)
	})
	return true
}
