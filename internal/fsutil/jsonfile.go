package fsutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
)

// ReadJSON decodes the named file into v, rejecting fields v does not declare.
func ReadJSON(fsys FileSystem, name string, v interface{}) error {
	data, err := fsys.ReadFile(name)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(name), err)
	}
	return nil
}

// WriteJSON encodes v and replaces the named file through a temporary
// sibling, so readers never observe a partially written document.
// indent of zero writes minified JSON.
func WriteJSON(fsys FileSystem, name string, v interface{}, indent int) error {
	var (
		data []byte
		err  error
	)
	if indent > 0 {
		data, err = json.MarshalIndent(v, "", string(bytes.Repeat([]byte(" "), indent)))
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(name), err)
	}

	if err := fsys.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filepath.Base(name), err)
	}
	tmp := name + ".tmp"
	if err := fsys.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(name), err)
	}
	if err := fsys.Rename(tmp, name); err != nil {
		_ = fsys.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(name), err)
	}
	return nil
}
