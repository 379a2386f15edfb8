package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiskStoreSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "menu-images")
	st := NewDiskStore(dir, "/uploads/")

	url, err := st.Save(context.Background(), "soto.png", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if url != "/uploads/soto.png" {
		t.Fatalf("url = %q", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, "soto.png"))
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("stored %q, %v", data, err)
	}
}

func TestDiskStoreRejectsPaths(t *testing.T) {
	st := NewDiskStore(t.TempDir(), "/uploads")
	for _, name := range []string{"../escape.png", "a/b.png", ""} {
		if _, err := st.Save(context.Background(), name, "", strings.NewReader("x")); err == nil {
			t.Errorf("%q: expected error", name)
		}
	}
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), S3Options{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestNewS3StorePublicURL(t *testing.T) {
	st, err := NewS3Store(context.Background(), S3Options{
		Endpoint:      "http://localhost:9000",
		AccessKey:     "minio",
		SecretKey:     "minio-secret",
		Bucket:        "makan",
		PublicBaseURL: "https://cdn.sekolah.id/",
	})
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}
	if st.baseURL != "https://cdn.sekolah.id" || st.bucket != "makan" {
		t.Fatalf("store %+v", st)
	}
}
