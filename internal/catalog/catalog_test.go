package catalog

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/matcluster/internal/apperr"
	"github.com/starford/matcluster/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "matcluster-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"materials", "annotations", "layouts"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestMaterialsAndCategories(t *testing.T) {
	db := testDB(t)
	n, err := db.InsertMaterials([]models.Material{
		{Description: "Citric acid", Brand: "Acme", SubCategory: "Acids"},
		{Description: "Soda ash", Brand: "Bolt", SubCategory: "Bases"},
		{Description: "Acetic acid", Brand: "Acme", SubCategory: "Acids"},
		{Description: "Loose item"},
	})
	if err != nil || n != 4 {
		t.Fatalf("InsertMaterials = %d, %v", n, err)
	}

	all, err := db.ListMaterials("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].ID == 0 || all[0].CreatedAt.IsZero() {
		t.Errorf("all = %+v", all)
	}
	acids, _ := db.ListMaterials("Acids")
	if len(acids) != 2 || acids[1].Description != "Acetic acid" {
		t.Errorf("acids = %+v", acids)
	}

	cats, err := db.Categories()
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 || cats[0] != "Acids" || cats[1] != "Bases" {
		t.Errorf("categories = %v", cats)
	}
}

func TestAnnotationLifecycle(t *testing.T) {
	db := testDB(t)
	key := models.NodeKey{Type: models.TypeMaterial, Identifier: "12"}
	other := models.NodeKey{Type: models.TypeBrand, Identifier: "Acme"}

	q, err := db.CreateAnnotation(key, models.Annotation{Kind: models.KindQuestion, Question: "Food grade?"})
	if err != nil {
		t.Fatalf("CreateAnnotation: %v", err)
	}
	if q.ID == 0 || q.CreatedAt.IsZero() {
		t.Errorf("created = %+v", q)
	}
	note, _ := db.CreateAnnotation(key, models.Annotation{Kind: models.KindNote, Content: "check MSDS", CreatedAt: q.CreatedAt.Add(time.Second)})
	_, _ = db.CreateAnnotation(other, models.Annotation{Kind: models.KindNote, Content: "brand note"})

	list, err := db.ListAnnotations(key)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != q.ID || list[1].ID != note.ID {
		t.Fatalf("list = %+v", list)
	}

	answered, err := db.UpdateAnswer(q.ID, "yes")
	if err != nil {
		t.Fatalf("UpdateAnswer: %v", err)
	}
	if answered.Answer != "yes" || answered.Open() {
		t.Errorf("answered = %+v", answered)
	}
	if _, err := db.UpdateAnswer(note.ID, "x"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("answer on note err = %v", err)
	}

	grouped, _ := db.AllAnnotations()
	if len(grouped[key]) != 2 || len(grouped[other]) != 1 {
		t.Errorf("grouped = %+v", grouped)
	}

	if err := db.DeleteAnnotation(q.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteAnnotation(q.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
	if _, _, err := db.GetAnnotation(q.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get deleted err = %v", err)
	}
	if _, err := db.UpdateAnswer(999, "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("answer missing err = %v", err)
	}
}

func TestLayoutIndex(t *testing.T) {
	db := testDB(t)
	if _, err := db.LayoutByCategory("Acids"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("empty index err = %v", err)
	}
	now := time.Now()
	_ = db.UpsertLayout(LayoutRow{File: "acids.json", Category: "Acids", Checksum: "1", UpdatedAt: now})
	_ = db.UpsertLayout(LayoutRow{File: "acids.json", Category: "Acids", Checksum: "2", UpdatedAt: now.Add(time.Second)})

	row, err := db.LayoutByCategory("Acids")
	if err != nil {
		t.Fatal(err)
	}
	if row.File != "acids.json" || row.Checksum != "2" {
		t.Errorf("row = %+v", row)
	}
	cs, _ := db.LayoutChecksums()
	if len(cs) != 1 || cs["acids.json"] != "2" {
		t.Errorf("checksums = %v", cs)
	}
	_ = db.DeleteLayout("acids.json")
	if _, err := db.LayoutByCategory("Acids"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}
}
