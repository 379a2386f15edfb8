package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"makan-backend/internal/models"
	"makan-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

func newRosterApp(t *testing.T) *fiber.App {
	t.Helper()
	mem, err := store.NewMemory(store.MemoryOptions{})
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	seed := []models.Student{
		{RFIDNumber: "RF-1", Name: "Budi", Email: "budi@sekolah.id", School: "SDN 1"},
		{RFIDNumber: "RF-2", Name: "Sari", Email: "sari@sekolah.id", School: "SDN 2"},
		{RFIDNumber: "RF-3", Name: "Tono", Email: "tono@sekolah.id", School: "sdn 1"},
	}
	for i := range seed {
		if err := mem.CreateStudent(context.Background(), &seed[i]); err != nil {
			t.Fatalf("CreateStudent: %v", err)
		}
	}

	app := fiber.New()
	app.Get("/students", ListStudentsHandler(mem))
	app.Get("/students/rfid/:rfid", StudentByRFIDHandler(mem))
	return app
}

func TestListStudentsFiltersBySchool(t *testing.T) {
	app := newRosterApp(t)

	tests := []struct {
		path string
		want []string
	}{
		{"/students", []string{"Budi", "Sari", "Tono"}},
		{"/students?school=SDN%201", []string{"Budi", "Tono"}},
		{"/students?school=SMP%209", []string{}},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil), -1)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		var got []StudentResponse
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("%s: got %d students, want %d", tt.path, len(got), len(tt.want))
		}
		for i, name := range tt.want {
			if got[i].Name != name {
				t.Fatalf("%s: [%d] = %s, want %s", tt.path, i, got[i].Name, name)
			}
		}
	}
}

func TestStudentByRFID(t *testing.T) {
	app := newRosterApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/students/rfid/RF-2", nil), -1)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var got StudentResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Email != "sari@sekolah.id" {
		t.Fatalf("got %+v", got)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/students/rfid/RF-404", nil), -1)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("unknown rfid: status %d", resp.StatusCode)
	}
}
