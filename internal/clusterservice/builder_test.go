package clusterservice

import (
	"reflect"
	"testing"

	"github.com/starford/matcluster/internal/models"
	"github.com/starford/matcluster/internal/tree"
)

func names(n *tree.Node) []string {
	out := make([]string, len(n.Children))
	for i, c := range n.Children {
		out[i] = c.Name
	}
	return out
}

func testMaterials() []models.Material {
	return []models.Material{
		{ID: 1, Description: "Citric acid", Brand: "Acme", SubCategory: "Acids"},
		{ID: 2, Description: "Acetic acid", Brand: "Acme", SubCategory: "Acids"},
		{ID: 3, Description: "Citric acid", Brand: "Acme", SubCategory: "Acids"},
		{ID: 4, Description: "Soda ash", Brand: "", SubCategory: ""},
	}
}

func TestSkeletonGroupsAndMerges(t *testing.T) {
	root := Skeleton("", testMaterials())
	if root.Name != "Material Clusters - All" || root.Type != models.TypeRoot {
		t.Errorf("root = %+v", root)
	}
	if got := names(root); !reflect.DeepEqual(got, []string{"Acme", UnknownBrand}) {
		t.Fatalf("brands = %v", got)
	}
	acids := root.Children[0].Children[0]
	if acids.Type != models.TypeIntermediate || acids.Name != "Acids" {
		t.Fatalf("intermediate = %+v", acids)
	}
	if got := names(acids); !reflect.DeepEqual(got, []string{"Citric acid", "Acetic acid"}) {
		t.Errorf("leaves = %v", got)
	}
	citric := acids.Children[0]
	if citric.Count != 2 || citric.Identifier != "1" {
		t.Errorf("merged leaf = %+v", citric)
	}
	if root.Children[1].Children[0].Name != Uncategorized {
		t.Errorf("missing sub-category not grouped as %q", Uncategorized)
	}
}

func TestAssignIDs(t *testing.T) {
	root := Skeleton("Acids", testMaterials()[:2])
	dup := &tree.Node{Name: "Acme", Type: models.TypeBrand, Identifier: "Acme", Children: []*tree.Node{}}
	root.Children = append(root.Children, dup)
	AssignIDs(root)

	if err := tree.Validate(root); err != nil {
		t.Fatalf("ids not unique: %v", err)
	}
	acme := root.Children[0]
	if acme.ID != "root::brand-Acme" {
		t.Errorf("brand id = %q", acme.ID)
	}
	if leaf := acme.Children[0].Children[0]; leaf.ID != "root::brand-Acme::intermediate-Acids::material-1" {
		t.Errorf("leaf id = %q", leaf.ID)
	}
	if dup.ID != "root::brand-Acme~2" {
		t.Errorf("duplicate id = %q", dup.ID)
	}
}

func TestOverlayKeepsArrangement(t *testing.T) {
	skel := Skeleton("", testMaterials()[:2])
	AssignIDs(skel)

	// The user moved Acetic acid to a new group and renamed it.
	saved := tree.Clone(skel)
	acids := saved.Children[0].Children[0]
	acetic := acids.Children[1]
	acetic.Name = "Vinegar base"
	acids.Children = acids.Children[:1]
	saved.Children = append(saved.Children, &tree.Node{
		ID: "g", Name: "Review", Type: models.TypeBrand, Identifier: "Review",
		Children: []*tree.Node{acetic},
	})

	out := Overlay(saved, Skeleton("", testMaterials()))
	if got := names(out); !reflect.DeepEqual(got, []string{"Acme", "Review", UnknownBrand}) {
		t.Fatalf("top level = %v", got)
	}
	if got := names(out.Children[1]); !reflect.DeepEqual(got, []string{"Vinegar base"}) {
		t.Errorf("review = %v", got)
	}
	if out.Children[0].Children[0].Children[0].Count != 2 {
		t.Error("count not refreshed from catalog")
	}
	if got := names(out.Children[2].Children[0]); !reflect.DeepEqual(got, []string{"Soda ash"}) {
		t.Errorf("new material placement = %v", got)
	}
}

func TestOverlayDropsRemovedMaterials(t *testing.T) {
	saved := Skeleton("", testMaterials())
	out := Overlay(saved, Skeleton("", testMaterials()[1:2]))

	var leaves []string
	tree.Walk(out, func(n, _ *tree.Node) bool {
		if n.Type == models.TypeMaterial {
			leaves = append(leaves, n.Identifier)
		}
		return true
	})
	if !reflect.DeepEqual(leaves, []string{"2"}) {
		t.Errorf("leaves = %v, want [2]", leaves)
	}
	if len(out.Children) != 2 {
		t.Errorf("saved groups should survive even when empty, got %v", names(out))
	}
}

func TestDecorateAndStrip(t *testing.T) {
	root := Skeleton("", testMaterials()[:1])
	key := models.NodeKey{Type: models.TypeMaterial, Identifier: "1"}
	Decorate(root, map[models.NodeKey][]models.Annotation{
		key: {{ID: 1, Kind: models.KindQuestion, Question: "Grade?"}},
	})
	leaf := root.Children[0].Children[0].Children[0]
	if leaf.Comment != "Q: Grade?" || !leaf.HasOpenQuestion {
		t.Errorf("decorated leaf = %+v", leaf)
	}
	Strip(root)
	if leaf.Annotations != nil || leaf.Comment != "" || leaf.HasOpenQuestion {
		t.Errorf("stripped leaf = %+v", leaf)
	}
}

func TestOverlayFindsNestedBrand(t *testing.T) {
	mats := []models.Material{
		{ID: 1, Description: "Citric acid", Brand: "Acme", SubCategory: "Acids"},
		{ID: 2, Description: "Lye", Brand: "Beta", SubCategory: "Bases"},
	}
	skel := Skeleton("", mats)
	AssignIDs(skel)

	s := tree.NewStore()
	if err := s.Load(skel); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Move("root::brand-Acme", "root::brand-Beta", tree.PositionInside) {
		t.Fatal("move refused")
	}
	saved := s.Serialize()

	mats = append(mats, models.Material{ID: 3, Description: "Malic acid", Brand: "Acme", SubCategory: "Acids"})
	out := Overlay(saved, Skeleton("", mats))

	var brands []*tree.Node
	tree.Walk(out, func(n, _ *tree.Node) bool {
		if n.Type == models.TypeBrand && n.Identifier == "Acme" {
			brands = append(brands, n)
		}
		return true
	})
	if len(brands) != 1 {
		t.Fatalf("brand Acme appears %d times", len(brands))
	}
	if got := names(out); !reflect.DeepEqual(got, []string{"Beta"}) {
		t.Errorf("top level = %v", got)
	}
	acids := brands[0].Children[0]
	if got := names(acids); !reflect.DeepEqual(got, []string{"Citric acid", "Malic acid"}) {
		t.Errorf("acids = %v", got)
	}
}
