package thesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSON backup export/import. The backup is the produced file format:
// {meta, intro, chapters, conclusions, bib, version}. Import tolerates
// partial backups (missing top-level fields keep their current values) and
// legacy chapter shapes; malformed input returns an error and leaves the
// current document untouched.

// backupSchema validates the coarse shape of an imported backup before any
// fields are applied. Unknown fields are allowed; everything is optional so
// partial backups validate.
const backupSchema = `{
  "type": "object",
  "properties": {
    "meta": {"type": "object"},
    "intro": {"type": "string"},
    "chapters": {"type": "array", "items": {"type": "object"}},
    "conclusions": {"type": "string"},
    "bib": {"type": "string"},
    "version": {"type": "integer"}
  }
}`

var (
	backupSchemaOnce     sync.Once
	compiledBackupSchema *jsonschema.Schema
	backupSchemaErr      error
)

func compileBackupSchema() (*jsonschema.Schema, error) {
	backupSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("backup.json", strings.NewReader(backupSchema)); err != nil {
			backupSchemaErr = fmt.Errorf("failed to load backup schema: %w", err)
			return
		}
		compiledBackupSchema, backupSchemaErr = compiler.Compile("backup.json")
	})
	return compiledBackupSchema, backupSchemaErr
}

// backup is the exported wire shape.
type backup struct {
	Meta        Meta      `json:"meta"`
	Intro       string    `json:"intro"`
	Chapters    []Chapter `json:"chapters"`
	Conclusions string    `json:"conclusions"`
	Bib         string    `json:"bib"`
	Version     int       `json:"version"`
}

// ExportBackup serializes the document as an indented JSON backup.
func ExportBackup(doc Document) ([]byte, error) {
	b := backup{
		Meta:        doc.Meta,
		Intro:       doc.Intro,
		Chapters:    doc.Chapters,
		Conclusions: doc.Conclusions,
		Bib:         doc.Bib,
		Version:     BackupVersion,
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportBackup applies a backup onto the current document. Fields absent from
// the backup are left at their current values. Chapters pass through legacy
// migration so old backups restore cleanly. On any validation or decoding
// failure the current document is returned unchanged alongside the error.
func ImportBackup(current Document, data []byte) (Document, error) {
	schema, err := compileBackupSchema()
	if err != nil {
		return current, err
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return current, fmt.Errorf("invalid backup JSON: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return current, fmt.Errorf("backup does not match expected shape: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return current, fmt.Errorf("invalid backup JSON: %w", err)
	}

	out := current.clone()
	if msg, ok := fields["meta"]; ok {
		if err := json.Unmarshal(msg, &out.Meta); err != nil {
			return current, fmt.Errorf("invalid backup meta: %w", err)
		}
	}
	if msg, ok := fields["intro"]; ok {
		if err := json.Unmarshal(msg, &out.Intro); err != nil {
			return current, fmt.Errorf("invalid backup intro: %w", err)
		}
	}
	if msg, ok := fields["conclusions"]; ok {
		if err := json.Unmarshal(msg, &out.Conclusions); err != nil {
			return current, fmt.Errorf("invalid backup conclusions: %w", err)
		}
	}
	if msg, ok := fields["bib"]; ok {
		if err := json.Unmarshal(msg, &out.Bib); err != nil {
			return current, fmt.Errorf("invalid backup bib: %w", err)
		}
	}
	if msg, ok := fields["chapters"]; ok {
		var legacy []LegacyChapter
		if err := json.Unmarshal(msg, &legacy); err != nil {
			return current, fmt.Errorf("invalid backup chapters: %w", err)
		}
		out.Chapters = nil
		for i, lc := range legacy {
			out.Chapters = append(out.Chapters, MigrateChapter(lc, i+1))
		}
	}
	return out, nil
}
