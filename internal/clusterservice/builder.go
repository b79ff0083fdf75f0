package clusterservice

import (
	"fmt"
	"strconv"

	"github.com/starford/matcluster/internal/models"
	"github.com/starford/matcluster/internal/tree"
)

// Placeholder names for materials missing a grouping attribute.
const (
	UnknownBrand  = "Unknown Brand"
	Uncategorized = "Uncategorized"
)

// AllCategories is the filter value that selects every material.
const AllCategories = "All"

// normalizeCategory maps the "All" filter to the empty category.
func normalizeCategory(c string) string {
	if c == AllCategories {
		return ""
	}
	return c
}

// RootName returns the display name of the root for a category.
func RootName(category string) string {
	if category == "" {
		category = AllCategories
	}
	return "Material Clusters - " + category
}

func newRoot(category string) *tree.Node {
	return &tree.Node{
		ID:         tree.RootID,
		Name:       RootName(category),
		Type:       models.TypeRoot,
		Identifier: tree.RootID,
		Children:   []*tree.Node{},
	}
}

// childNamed returns the child of parent with the given type and identifier.
func childNamed(parent *tree.Node, typ models.BusinessType, identifier string) *tree.Node {
	for _, c := range parent.Children {
		if c.Type == typ && c.Identifier == identifier {
			return c
		}
	}
	return nil
}

func ensureChild(parent *tree.Node, typ models.BusinessType, name string) *tree.Node {
	if c := childNamed(parent, typ, name); c != nil {
		return c
	}
	c := &tree.Node{Name: name, Type: typ, Identifier: name, Children: []*tree.Node{}}
	parent.Children = append(parent.Children, c)
	return c
}

// Skeleton groups materials brand → sub-category → material. Materials that
// share a description under one sub-category collapse into a single leaf
// whose Count is the number of catalog rows it stands for; the leaf keeps
// the id of the first row. Ids are left empty for AssignIDs.
func Skeleton(category string, mats []models.Material) *tree.Node {
	root := newRoot(category)
	for _, m := range mats {
		brand := m.Brand
		if brand == "" {
			brand = UnknownBrand
		}
		sub := m.SubCategory
		if sub == "" {
			sub = Uncategorized
		}
		group := ensureChild(ensureChild(root, models.TypeBrand, brand), models.TypeIntermediate, sub)

		if leaf := leafNamed(group, m.Description); leaf != nil {
			leaf.Count++
			continue
		}
		group.Children = append(group.Children, &tree.Node{
			Name:       m.Description,
			Type:       models.TypeMaterial,
			Identifier: strconv.FormatInt(m.ID, 10),
			Count:      1,
			Children:   []*tree.Node{},
		})
	}
	return root
}

func leafNamed(parent *tree.Node, name string) *tree.Node {
	for _, c := range parent.Children {
		if c.Type == models.TypeMaterial && c.Name == name {
			return c
		}
	}
	return nil
}

// Overlay applies a saved arrangement to a freshly built skeleton. The saved
// structure, order and names win. Materials that are no longer in the
// skeleton are dropped; materials the saved tree does not know are placed
// under their skeleton brand and sub-category wherever the saved tree keeps
// them. Missing groups are created at the end of their parent.
func Overlay(saved, skeleton *tree.Node) *tree.Node {
	current := make(map[string]*tree.Node)
	tree.Walk(skeleton, func(n, _ *tree.Node) bool {
		if n.Type == models.TypeMaterial {
			current[n.Identifier] = n
		}
		return true
	})

	out := tree.Clone(saved)
	out.ID = tree.RootID
	out.Name = skeleton.Name
	out.Type = models.TypeRoot
	out.Identifier = tree.RootID

	placed := make(map[string]bool, len(current))
	prune(out, current, placed)

	var place func(n *tree.Node, ancestors []*tree.Node)
	place = func(n *tree.Node, ancestors []*tree.Node) {
		if n.Type != models.TypeMaterial {
			ancestors = append(ancestors[:len(ancestors):len(ancestors)], n)
			for _, c := range n.Children {
				place(c, ancestors)
			}
			return
		}
		if placed[n.Identifier] {
			return
		}
		parent := out
		for _, anc := range ancestors {
			if g := findGroup(parent, anc.Type, anc.Identifier); g != nil {
				parent = g
				continue
			}
			parent = ensureChild(parent, anc.Type, anc.Identifier)
		}
		leaf := tree.Clone(n)
		leaf.Children = []*tree.Node{}
		parent.Children = append(parent.Children, leaf)
		placed[n.Identifier] = true
	}
	for _, c := range skeleton.Children {
		place(c, nil)
	}
	return out
}

// findGroup returns the first descendant of n, in pre-order, with the given
// type and identifier.
func findGroup(n *tree.Node, typ models.BusinessType, identifier string) *tree.Node {
	var found *tree.Node
	tree.Walk(n, func(c, parent *tree.Node) bool {
		if parent != nil && c.Type == typ && c.Identifier == identifier {
			found = c
			return false
		}
		return true
	})
	return found
}

// prune drops stale and duplicate materials below n and refreshes the
// counts of the ones that remain.
func prune(n *tree.Node, current map[string]*tree.Node, placed map[string]bool) {
	kept := n.Children[:0]
	for _, c := range n.Children {
		if c.Type == models.TypeMaterial {
			skel, ok := current[c.Identifier]
			if !ok || placed[c.Identifier] {
				continue
			}
			placed[c.Identifier] = true
			c.Count = skel.Count
		}
		prune(c, current, placed)
		kept = append(kept, c)
	}
	n.Children = kept
}

// Decorate attaches annotations by business identity and recomputes the
// derived fields of every node.
func Decorate(root *tree.Node, anns map[models.NodeKey][]models.Annotation) {
	tree.Walk(root, func(n, _ *tree.Node) bool {
		n.Annotations = anns[n.Key()]
		n.Comment, n.HasOpenQuestion = tree.Summarize(n.Annotations)
		return true
	})
}

// Strip removes annotations and derived fields, leaving the arrangement.
func Strip(root *tree.Node) {
	tree.Walk(root, func(n, _ *tree.Node) bool {
		n.Annotations = nil
		n.Comment = ""
		n.HasOpenQuestion = false
		return true
	})
}

// AssignIDs gives every node a path id "<parent id>::<type>-<identifier>".
// The root is always "root". Clashes get a "~2", "~3", ... suffix.
func AssignIDs(root *tree.Node) {
	root.ID = tree.RootID
	used := map[string]struct{}{root.ID: {}}
	var assign func(n *tree.Node)
	assign = func(n *tree.Node) {
		for _, c := range n.Children {
			base := fmt.Sprintf("%s::%s-%s", n.ID, c.Type, c.Identifier)
			id := base
			for k := 2; ; k++ {
				if _, taken := used[id]; !taken {
					break
				}
				id = fmt.Sprintf("%s~%d", base, k)
			}
			used[id] = struct{}{}
			c.ID = id
			assign(c)
		}
	}
	assign(root)
}
