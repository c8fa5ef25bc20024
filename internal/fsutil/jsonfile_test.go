package fsutil

import (
	"strings"
	"testing"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteJSON_ReadJSON(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := WriteJSON(mfs, "/store/doc.json", doc{Name: "kari", Count: 3}, 2); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if mfs.Exists("/store/doc.json.tmp") {
		t.Error("temporary file should not survive a successful write")
	}

	raw, _ := mfs.ReadFile("/store/doc.json")
	if !strings.Contains(string(raw), "\n  \"name\"") {
		t.Errorf("expected indented output, got %s", raw)
	}

	var got doc
	if err := ReadJSON(mfs, "/store/doc.json", &got); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got.Name != "kari" || got.Count != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestWriteJSON_Minified(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := WriteJSON(mfs, "/m.json", doc{Name: "x"}, 0); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	raw, _ := mfs.ReadFile("/m.json")
	if string(raw) != `{"name":"x","count":0}` {
		t.Errorf("got %s", raw)
	}
}

func TestReadJSON_RejectsUnknownFields(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/bad.json", []byte(`{"name":"x","extra":1}`), 0644)

	var got doc
	err := ReadJSON(mfs, "/bad.json", &got)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !strings.Contains(err.Error(), "extra") {
		t.Errorf("error %q should name the unknown field", err)
	}
}
