package tree

import (
	"reflect"
	"strings"
	"testing"

	"github.com/starford/matcluster/internal/models"
)

func node(id string, typ models.BusinessType, children ...*Node) *Node {
	if children == nil {
		children = []*Node{}
	}
	return &Node{ID: id, Name: id, Type: typ, Identifier: id, Children: children}
}

func mat(id string) *Node { return node(id, models.TypeMaterial) }

func testStore(t *testing.T, root *Node) *Store {
	t.Helper()
	s := NewStore()
	if err := s.Load(root); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func childIDs(t *testing.T, s *Store, id string) []string {
	t.Helper()
	n := Find(s.Serialize(), id)
	if n == nil {
		t.Fatalf("node %q not found", id)
	}
	ids := make([]string, len(n.Children))
	for i, c := range n.Children {
		ids[i] = c.ID
	}
	return ids
}

func TestMoveBeforeSibling(t *testing.T) {
	s := testStore(t, node("root", models.TypeRoot,
		node("acme", models.TypeBrand, mat("m1"), mat("m2"))))

	if !s.Move("m2", "m1", PositionBefore) {
		t.Fatal("move rejected")
	}
	if got := childIDs(t, s, "acme"); !reflect.DeepEqual(got, []string{"m2", "m1"}) {
		t.Errorf("acme children = %v, want [m2 m1]", got)
	}
}

func TestMoveBeforeKeepsOtherOrder(t *testing.T) {
	s := testStore(t, node("root", models.TypeRoot,
		node("p", models.TypeBrand, mat("a"), mat("b"), mat("c"), mat("d"))))

	s.Move("d", "b", PositionBefore)
	if got := childIDs(t, s, "p"); !reflect.DeepEqual(got, []string{"a", "d", "b", "c"}) {
		t.Errorf("children = %v", got)
	}
	s.Move("a", "c", PositionAfter)
	if got := childIDs(t, s, "p"); !reflect.DeepEqual(got, []string{"d", "b", "c", "a"}) {
		t.Errorf("children = %v", got)
	}
}

func TestMoveInsideAppendsLast(t *testing.T) {
	s := testStore(t, node("root", models.TypeRoot,
		node("x", models.TypeBrand, mat("a"), mat("b")),
		node("y", models.TypeBrand)))

	if !s.Move("a", "y", PositionInside) {
		t.Fatal("move rejected")
	}
	if got := childIDs(t, s, "x"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("x children = %v, want [b]", got)
	}
	if got := childIDs(t, s, "y"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("y children = %v, want [a]", got)
	}

	s.Move("b", "y", PositionInside)
	if got := childIDs(t, s, "y"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("y children = %v, want [a b]", got)
	}
}

func TestMoveCarriesSubtree(t *testing.T) {
	s := testStore(t, node("root", models.TypeRoot,
		node("x", models.TypeBrand, node("g", models.TypeIntermediate, mat("a"))),
		node("y", models.TypeBrand)))

	if !s.Move("g", "y", PositionInside) {
		t.Fatal("move rejected")
	}
	if !s.Contains("y", "a") {
		t.Error("material did not travel with its group")
	}
	if s.Len() != 5 {
		t.Errorf("Len = %d, want 5", s.Len())
	}
}

func TestMoveIntoDescendantRejected(t *testing.T) {
	root := node("root", models.TypeRoot,
		node("x", models.TypeBrand, node("g", models.TypeIntermediate, mat("a"))))
	s := testStore(t, root)
	before := s.Serialize()

	for _, target := range []string{"g", "a"} {
		for _, pos := range []Position{PositionBefore, PositionAfter, PositionInside} {
			if s.Move("x", target, pos) {
				t.Errorf("move x -> %s (%s) accepted", target, pos)
			}
		}
	}
	if !reflect.DeepEqual(before, s.Serialize()) {
		t.Error("tree changed after rejected moves")
	}
}

func TestMoveRootAndSelfRejected(t *testing.T) {
	s := testStore(t, node("root", models.TypeRoot, node("x", models.TypeBrand, mat("a"))))
	before := s.Serialize()

	if s.Move("root", "a", PositionInside) {
		t.Error("moving root accepted")
	}
	if s.Move("a", "a", PositionBefore) {
		t.Error("self move accepted")
	}
	if s.Move("a", "root", PositionBefore) {
		t.Error("placing before root accepted")
	}
	if s.Move("a", "missing", PositionInside) || s.Move("missing", "x", PositionInside) {
		t.Error("move with unknown id accepted")
	}
	if s.Move("a", "x", Position("sideways")) {
		t.Error("unknown position accepted")
	}
	if !reflect.DeepEqual(before, s.Serialize()) {
		t.Error("tree changed")
	}
}

func TestMoveSharesUntouchedSubtrees(t *testing.T) {
	s := testStore(t, node("root", models.TypeRoot,
		node("x", models.TypeBrand, mat("a"), mat("b")),
		node("z", models.TypeBrand, mat("c"))))
	z := s.root.Children[1]

	s.Move("b", "a", PositionBefore)
	if s.root.Children[1] != z {
		t.Error("untouched subtree was copied")
	}
}

func TestSerializeIsDeepCopy(t *testing.T) {
	s := testStore(t, node("root", models.TypeRoot, node("x", models.TypeBrand, mat("a"))))
	snap := s.Serialize()
	snap.Children[0].Name = "changed"
	snap.Children[0].Children = nil

	if info, _ := s.Lookup("x"); info.Name != "x" || info.ChildCount != 1 {
		t.Errorf("store affected by snapshot mutation: %+v", info)
	}

	s.Restore(snap)
	snap.Children[0].Name = "again"
	if info, _ := s.Lookup("x"); info.Name != "changed" {
		t.Errorf("restore did not copy: name = %q", info.Name)
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	s := NewStore()
	err := s.Load(node("root", models.TypeRoot, mat("a"), mat("a")))
	if err == nil {
		t.Fatal("expected error")
	}
	if s.RootID() != RootID || s.Len() != 1 {
		t.Error("store changed after failed load")
	}
}

func TestRename(t *testing.T) {
	s := testStore(t, node("root", models.TypeRoot, mat("a")))

	if s.Rename("a", "  ") {
		t.Error("empty name accepted")
	}
	if s.Rename("a", "a") {
		t.Error("unchanged name accepted")
	}
	if s.Rename("nope", "x") {
		t.Error("unknown id accepted")
	}
	if !s.Rename("a", " Citric acid ") {
		t.Fatal("rename rejected")
	}
	if info, _ := s.Lookup("a"); info.Name != "Citric acid" {
		t.Errorf("name = %q", info.Name)
	}
}

func TestAnnotationsDeriveFields(t *testing.T) {
	s := testStore(t, node("root", models.TypeRoot, mat("a")))

	s.AttachAnnotation("a", models.Annotation{ID: 1, Kind: models.KindQuestion, Question: "Which grade?"})
	info, _ := s.Lookup("a")
	if !info.HasOpenQuestion {
		t.Error("open question not flagged")
	}
	if info.Comment != "Q: Which grade?" {
		t.Errorf("comment = %q", info.Comment)
	}

	s.UpdateAnnotation("a", models.Annotation{ID: 1, Kind: models.KindQuestion, Question: "Which grade?", Answer: "Food"})
	info, _ = s.Lookup("a")
	if info.HasOpenQuestion {
		t.Error("answered question still open")
	}

	s.AttachAnnotation("a", models.Annotation{ID: 2, Kind: models.KindNote, Content: "check supplier"})
	info, _ = s.Lookup("a")
	if info.Comment != "2 annotations" {
		t.Errorf("comment = %q, want count", info.Comment)
	}

	s.RemoveAnnotation("a", 1)
	info, _ = s.Lookup("a")
	if info.Comment != "check supplier" {
		t.Errorf("comment = %q, want lone note text", info.Comment)
	}
	if s.RemoveAnnotation("a", 99) {
		t.Error("removing unknown annotation reported a change")
	}

	s.SetAnnotations("a", nil)
	info, _ = s.Lookup("a")
	if info.Comment != "" || info.HasOpenQuestion {
		t.Errorf("derived fields not cleared: %+v", info)
	}
}

func TestAnnotationsKeepShape(t *testing.T) {
	s := testStore(t, node("root", models.TypeRoot, node("x", models.TypeBrand, mat("a"), mat("b"))))
	s.AttachAnnotation("x", models.Annotation{ID: 5, Kind: models.KindNote, Content: "n"})

	if got := childIDs(t, s, "x"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("children = %v", got)
	}
	if id, ok := s.FindAnnotation(5); !ok || id != "x" {
		t.Errorf("FindAnnotation = %q, %v", id, ok)
	}
}

func TestLoadRecomputesDerived(t *testing.T) {
	root := node("root", models.TypeRoot, mat("a"))
	root.Children[0].Annotations = []models.Annotation{{ID: 1, Kind: models.KindNote, Content: "hi"}}
	root.Children[0].Comment = "stale"
	root.Children[0].HasOpenQuestion = true

	s := testStore(t, root)
	info, _ := s.Lookup("a")
	if info.Comment != "hi" || info.HasOpenQuestion {
		t.Errorf("derived = %q/%v", info.Comment, info.HasOpenQuestion)
	}
}

func TestParsePosition(t *testing.T) {
	if p, err := ParsePosition(" Inside "); err != nil || p != PositionInside {
		t.Errorf("ParsePosition = %q, %v", p, err)
	}
	if _, err := ParsePosition("over"); err == nil {
		t.Error("expected error")
	}
}

func TestRender(t *testing.T) {
	s := testStore(t, node("root", models.TypeRoot, node("x", models.TypeBrand, mat("a"))))
	out := Render(s.Serialize())
	if !strings.Contains(out, "    - a [material] (a)") {
		t.Errorf("unexpected render:\n%s", out)
	}
}

func TestRestoreShapeKeepsAnnotations(t *testing.T) {
	s := testStore(t, node("root", models.TypeRoot,
		node("x", models.TypeBrand, mat("a")),
		node("y", models.TypeBrand)))
	before := s.Serialize()

	s.Move("a", "y", PositionInside)
	s.AttachAnnotation("a", models.Annotation{ID: 4, Kind: models.KindNote, Content: "keep"})
	s.RestoreShape(before)

	if got := childIDs(t, s, "x"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("x children = %v, want [a]", got)
	}
	info, _ := s.Lookup("a")
	if len(info.Annotations) != 1 || info.Comment != "keep" {
		t.Errorf("annotations lost on restore: %+v", info)
	}
	if len(Find(before, "a").Annotations) != 0 {
		t.Error("snapshot was modified")
	}
}
