package menu

import (
	"reflect"
	"testing"

	"makan-backend/internal/models"
)

func catalog(ids ...uint) []models.MenuItem {
	items := make([]models.MenuItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, models.MenuItem{ID: id})
	}
	return items
}

func ids(items []models.MenuItem) []uint {
	out := []uint{}
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestResolveDayItems(t *testing.T) {
	full := catalog(10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 11, 12)

	tests := []struct {
		name    string
		catalog []models.MenuItem
		index   int
		want    []uint
	}{
		{"senin", full, 0, []uint{1, 2}},
		{"rabu", full, 2, []uint{5, 6}},
		{"jumat ignores items past ten", full, 4, []uint{9, 10}},
		{"short catalog gives one item", catalog(1, 2, 3), 1, []uint{3}},
		{"short catalog gives nothing", catalog(1, 2, 3), 2, []uint{}},
		{"empty catalog", nil, 0, []uint{}},
		{"index out of range", full, 5, []uint{}},
		{"negative index", full, -1, []uint{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(ResolveDayItems(tt.catalog, tt.index))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}

	if full[0].ID != 10 {
		t.Fatalf("input catalog must not be reordered")
	}
}

func TestResolveDayItemsIsStable(t *testing.T) {
	full := catalog(3, 1, 2, 4, 5, 6, 7, 8, 9, 10)
	first := ids(ResolveDayItems(full, 1))
	for i := 0; i < 10; i++ {
		if got := ids(ResolveDayItems(full, 1)); !reflect.DeepEqual(got, first) {
			t.Fatalf("iteration %d: got %v want %v", i, got, first)
		}
	}
	if !Contains(ResolveDayItems(full, 1), 4) || Contains(ResolveDayItems(full, 1), 5) {
		t.Fatalf("Contains mismatch")
	}
}

func TestParseAllergens(t *testing.T) {
	got := ParseAllergens(" Udang, telur|KACANG,, udang ")
	want := []string{"udang", "telur", "kacang"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if NormalizeAllergens("Telur|Susu") != "telur, susu" {
		t.Fatalf("unexpected normalized form")
	}
	if len(ParseAllergens("  ")) != 0 {
		t.Fatalf("blank input should give no tokens")
	}
}

func TestIsBlocked(t *testing.T) {
	tests := []struct {
		student, item string
		want          bool
	}{
		{"udang", "udang, telur", true},
		{"udang", "telur", false},
		{"Udang ", "UDANG|susu", true},
		{"", "udang", false},
		{"kacang", "", false},
		{"kacang tanah", "kacang", false},
	}
	for _, tt := range tests {
		if got := IsBlocked(tt.student, tt.item); got != tt.want {
			t.Errorf("IsBlocked(%q, %q) = %v, want %v", tt.student, tt.item, got, tt.want)
		}
	}
	if got := Conflicts("telur, udang", "udang|telur|susu"); !reflect.DeepEqual(got, []string{"udang", "telur"}) {
		t.Fatalf("Conflicts: got %v", got)
	}
}
