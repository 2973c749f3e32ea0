package firestore

import (
	"testing"

	"github.com/wokecoffee/site/internal/repositories"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestBuildProductUpdatesOmitsAbsentFields(t *testing.T) {
	updates := buildProductUpdates(repositories.ProductUpdate{
		Name:        strPtr("  Ethiopia Natural "),
		Price:       floatPtr(18.5),
		Description: strPtr("Washed blueberry bomb"),
	})

	if len(updates) != 3 {
		t.Fatalf("expected 3 updates, got %d", len(updates))
	}
	for _, u := range updates {
		if u.Path == "imageUrl" {
			t.Fatalf("imageUrl must not appear when no new image was supplied")
		}
	}
	if updates[0].Path != "name" || updates[0].Value != "Ethiopia Natural" {
		t.Fatalf("name update not normalised: %+v", updates[0])
	}
}

func TestBuildProductUpdatesIncludesImageWhenSet(t *testing.T) {
	updates := buildProductUpdates(repositories.ProductUpdate{
		ImageURL: strPtr("https://cdn.example.com/products/v60.jpg"),
	})

	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0].Path != "imageUrl" {
		t.Fatalf("expected imageUrl update, got %q", updates[0].Path)
	}
}

func TestBuildProductUpdatesEmpty(t *testing.T) {
	if updates := buildProductUpdates(repositories.ProductUpdate{}); len(updates) != 0 {
		t.Fatalf("expected no updates, got %v", updates)
	}
}
