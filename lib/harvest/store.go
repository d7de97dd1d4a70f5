package harvest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Load reads a persisted JSON collection. An absent or empty file yields
// the given default; a file that exists but fails to decode is an error,
// because continuing would risk overwriting a snapshot the operator still
// needs.
func Load[T any](path string, def T) (T, error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	if len(contents) == 0 {
		return def, nil
	}

	out := def
	err = json.Unmarshal(contents, &out)
	if err != nil {
		return def, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

// Save serializes a collection as pretty-printed UTF-8 JSON and replaces
// the file in one write. With backup set, a pre-existing file is renamed to
// a .bak sibling first, so a crash mid-write never destroys both the
// previous and the current snapshot.
func Save(path string, value any, backup bool) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	err := enc.Encode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if backup {
		_, statErr := os.Stat(path)
		if statErr == nil {
			err = os.Rename(path, path+".bak")
			if err != nil {
				return fmt.Errorf("rotate backup for %s: %w", path, err)
			}
		}
	}

	err = os.WriteFile(path, buf.Bytes(), 0644)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
