package netns

import (
	"os"
	"testing"
)

func TestListMissingDirectoryIsEmpty(t *testing.T) {
	names, err := List("/this/path/should/not/exist")
	if err != nil {
		t.Fatalf("List returned error for missing dir: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("got %d names, want 0", len(names))
	}
}

func TestListReturnsPlaceholderNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"red", "blue"} {
		f, err := os.Create(dir + "/" + name)
		if err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
	names, err := List(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Fatalf("got %d names, want 2", len(names))
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(dir + "/existing")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	err = Create(dir, "existing")
	if err != ErrAlreadyExists {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
}

func TestDeleteMissingNamespaceFails(t *testing.T) {
	dir := t.TempDir()
	if err := Delete(dir, "ghost"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
