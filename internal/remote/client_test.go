package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/matcluster/internal/api"
	"github.com/starford/matcluster/internal/apperr"
	"github.com/starford/matcluster/internal/clusterservice"
	"github.com/starford/matcluster/internal/editor"
	"github.com/starford/matcluster/internal/models"
	"github.com/starford/matcluster/internal/testutil"
	"github.com/starford/matcluster/internal/tree"
)

// testServer runs the real API over a seeded catalog.
func testServer(t *testing.T, token string) string {
	t.Helper()
	db := testutil.TestDB(t)
	_, store := testutil.TestLayouts(t)
	testutil.SeedMaterials(t, db,
		[3]string{"Citric acid", "Acme", "Acids"},
		[3]string{"Acetic acid", "Acme", "Acids"},
		[3]string{"Soda ash", "Bolt", "Bases"},
	)
	svc := clusterservice.NewService(db, store, nil, testutil.Logger())

	r := chi.NewRouter()
	r.Mount("/api", api.NewRouter(svc, token != "", token, nil))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestTreeAndCategories(t *testing.T) {
	c := New(testServer(t, "tok"), "tok", time.Second, testutil.Logger())
	ctx := context.Background()

	cats, err := c.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 2 {
		t.Errorf("categories = %v", cats)
	}

	root, err := c.LoadTree(ctx, "Bases")
	if err != nil {
		t.Fatalf("LoadTree: %v", err)
	}
	if root.Name != "Material Clusters - Bases" || len(root.Children) != 1 {
		t.Errorf("tree = %s", tree.Render(root))
	}

	meta, err := c.SaveLayout(ctx, "Bases", root)
	if err != nil {
		t.Fatalf("SaveLayout: %v", err)
	}
	if meta.Category != "Bases" || meta.Revision == "" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestUnauthorized(t *testing.T) {
	c := New(testServer(t, "tok"), "wrong", time.Second, testutil.Logger())

	_, err := c.Categories(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized || se.Message != "unauthorized" {
		t.Fatalf("err = %v", err)
	}
}

func TestAnnotationStore(t *testing.T) {
	c := New(testServer(t, ""), "", time.Second, testutil.Logger())
	ctx := context.Background()
	key := models.NodeKey{Type: models.TypeMaterial, Identifier: "2"}

	created, err := c.Create(ctx, key, models.Annotation{Kind: models.KindQuestion, Question: "Same as 1?"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 || !created.Open() {
		t.Fatalf("created = %+v", created)
	}

	updated, err := c.UpdateAnswer(ctx, created.ID, "yes")
	if err != nil || updated.Open() {
		t.Fatalf("UpdateAnswer = %+v, %v", updated, err)
	}

	list, err := c.List(ctx, key)
	if err != nil || len(list) != 1 || list[0].Answer != "yes" {
		t.Fatalf("List = %+v, %v", list, err)
	}

	if err := c.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Delete(ctx, created.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
	if _, err := c.Create(ctx, key, models.Annotation{Kind: models.KindNote}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("empty note = %v, want ErrInvalid", err)
	}
}

func TestSessionOverHTTP(t *testing.T) {
	c := New(testServer(t, ""), "", time.Second, testutil.Logger())
	ctx := context.Background()
	s := editor.NewSession(c, c, editor.Config{}, testutil.Logger(), nil)
	defer s.Close()

	if err := s.Load(ctx, "Acids"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	root := s.Snapshot()
	brand := root.Children[0]
	group := brand.Children[0]
	leaf := group.Children[1]
	if !s.Move(leaf.ID, group.ID, tree.PositionBefore) {
		t.Fatal("move rejected")
	}
	if _, err := s.AddNote(ctx, leaf.ID, "check supplier"); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if _, err := s.SaveLayout(ctx); err != nil {
		t.Fatalf("SaveLayout: %v", err)
	}

	if err := s.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	moved := s.Snapshot().Children[0].Children[0]
	if moved.Name != leaf.Name || moved.Comment != "check supplier" {
		t.Errorf("after reload first child = %q %q\n%s", moved.Name, moved.Comment, s.Render())
	}
}

