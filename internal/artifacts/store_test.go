package artifacts_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"newsflow/internal/artifacts"
)

func TestWriteReadExists(t *testing.T) {
	store, err := artifacts.Open(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	exists, err := store.Exists("42", "Downloaded")
	if err != nil || exists {
		t.Fatalf("Exists before write = %v, %v", exists, err)
	}
	if _, err := store.Read("42", "Downloaded"); !errors.Is(err, artifacts.ErrArtifactMissing) {
		t.Fatalf("expected ErrArtifactMissing, got %v", err)
	}

	if err := store.Write("42", "Downloaded", []byte("<html>hi</html>")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	exists, err = store.Exists("42", "Downloaded")
	if err != nil || !exists {
		t.Fatalf("Exists after write = %v, %v", exists, err)
	}
	data, err := store.Read("42", "Downloaded")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "<html>hi</html>" {
		t.Fatalf("unexpected content %q", data)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), "Downloaded_42.html")); err != nil {
		t.Fatalf("expected historical file name on disk: %v", err)
	}
}

func TestFileNamesPerStage(t *testing.T) {
	tests := map[string]string{
		"Downloaded": "Downloaded_7.html",
		"Extracted":  "Extracted_7.html",
		"Translated": "Translated_7.html",
		"Published":  "Published_7.json",
	}
	for stage, want := range tests {
		if got := artifacts.FileName("7", stage); got != want {
			t.Fatalf("FileName(7, %s) = %q, want %q", stage, got, want)
		}
	}
}

func TestRejectsUnsafeKeys(t *testing.T) {
	store, err := artifacts.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cases := []struct{ id, stage string }{
		{"", "Downloaded"},
		{"42", ""},
		{"../etc", "Downloaded"},
		{"a/b", "Downloaded"},
		{"42", "Down_loaded"},
	}
	for _, tc := range cases {
		if err := store.Write(tc.id, tc.stage, []byte("x")); !errors.Is(err, artifacts.ErrInvalidKey) {
			t.Fatalf("Write(%q, %q) = %v, want ErrInvalidKey", tc.id, tc.stage, err)
		}
	}
}

func TestListReturnsOnlyMatchingItem(t *testing.T) {
	store, err := artifacts.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, stage := range []string{"Extracted", "Downloaded"} {
		if err := store.Write("42", stage, []byte(stage)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := store.Write("420", "Downloaded", []byte("other")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := store.List("42")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	if entries[0].Stage != "Downloaded" || entries[1].Stage != "Extracted" {
		t.Fatalf("unexpected order: %+v", entries)
	}
	if entries[0].Size != int64(len("Downloaded")) {
		t.Fatalf("unexpected size: %d", entries[0].Size)
	}
}
