// Package tree holds the classification tree and its structural operations.
//
// Nodes held by a Store are never mutated in place: every operation rebuilds
// the path from the root to the changed node and shares the untouched
// subtrees with the previous version.
package tree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/starford/matcluster/internal/models"
)

// ErrInvalidTree is returned when a snapshot breaks a structural invariant.
var ErrInvalidTree = errors.New("tree: invalid snapshot")

// Node is one element of the classification tree.
type Node struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Type            models.BusinessType `json:"type"`
	Identifier      string              `json:"identifier"`
	Count           int                 `json:"count,omitempty"`
	Children        []*Node             `json:"children"`
	Annotations     []models.Annotation `json:"annotations,omitempty"`
	Comment         string              `json:"comment,omitempty"`
	HasOpenQuestion bool                `json:"has_open_question,omitempty"`
}

// Key returns the business identity of the node.
func (n *Node) Key() models.NodeKey {
	return models.NodeKey{Type: n.Type, Identifier: n.Identifier}
}

// Summarize computes the derived comment and open-question flag for a list
// of annotations.
func Summarize(anns []models.Annotation) (comment string, open bool) {
	for _, a := range anns {
		if a.Open() {
			open = true
			break
		}
	}
	switch len(anns) {
	case 0:
		return "", open
	case 1:
		return anns[0].Text(), open
	default:
		return fmt.Sprintf("%d annotations", len(anns)), open
	}
}

// withAnnotations returns a shallow copy of n carrying anns and the matching
// derived fields.
func (n *Node) withAnnotations(anns []models.Annotation) *Node {
	cp := *n
	cp.Annotations = anns
	cp.Comment, cp.HasOpenQuestion = Summarize(anns)
	return &cp
}

// Clone returns a deep copy of the subtree rooted at n.
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Annotations != nil {
		cp.Annotations = append([]models.Annotation(nil), n.Annotations...)
	}
	cp.Children = make([]*Node, len(n.Children))
	for i, c := range n.Children {
		cp.Children[i] = Clone(c)
	}
	return &cp
}

// Walk calls fn for n and every descendant in depth-first pre-order. parent
// is nil for n itself. Walking stops early when fn returns false.
func Walk(n *Node, fn func(node, parent *Node) bool) {
	walk(n, nil, fn)
}

func walk(n, parent *Node, fn func(node, parent *Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n, parent) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, n, fn) {
			return false
		}
	}
	return true
}

// Find returns the node with the given id inside the subtree rooted at n.
func Find(n *Node, id string) *Node {
	var found *Node
	Walk(n, func(node, _ *Node) bool {
		if node.ID == id {
			found = node
			return false
		}
		return true
	})
	return found
}

// Validate checks that the subtree is finite, acyclic and that ids are
// non-empty and unique.
func Validate(root *Node) error {
	if root == nil {
		return fmt.Errorf("%w: nil root", ErrInvalidTree)
	}
	seen := make(map[string]struct{})
	onPath := make(map[*Node]struct{})
	var check func(n *Node) error
	check = func(n *Node) error {
		if n == nil {
			return fmt.Errorf("%w: nil child", ErrInvalidTree)
		}
		if _, ok := onPath[n]; ok {
			return fmt.Errorf("%w: cycle at %q", ErrInvalidTree, n.ID)
		}
		if n.ID == "" {
			return fmt.Errorf("%w: empty id", ErrInvalidTree)
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidTree, n.ID)
		}
		seen[n.ID] = struct{}{}
		onPath[n] = struct{}{}
		for _, c := range n.Children {
			if err := check(c); err != nil {
				return err
			}
		}
		delete(onPath, n)
		return nil
	}
	return check(root)
}

// Render writes an indented outline of the subtree, one node per line.
func Render(root *Node) string {
	var b strings.Builder
	var render func(n *Node, depth int)
	render = func(n *Node, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(&b, "- %s [%s] (%s)", n.Name, n.Type, n.ID)
		if n.Count > 1 {
			fmt.Fprintf(&b, " x%d", n.Count)
		}
		if n.HasOpenQuestion {
			b.WriteString(" !")
		}
		if n.Comment != "" {
			fmt.Fprintf(&b, " // %s", n.Comment)
		}
		b.WriteByte('\n')
		for _, c := range n.Children {
			render(c, depth+1)
		}
	}
	if root != nil {
		render(root, 0)
	}
	return b.String()
}
