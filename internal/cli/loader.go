package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tourcatalog/internal/schema"
)

// batchExts lists the file extensions accepted as batch files.
var batchExts = map[string]bool{".json": true, ".jsonl": true, ".yaml": true, ".yml": true}

// LoadError reports a batch file that could not be read or parsed.
type LoadError struct {
	Code    string
	Path    string
	Line    int // 1-based line for JSONL files, 0 otherwise
	Message string
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", e.Path, e.Line, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
}

// LoadRecords reads a batch file. The format follows the extension:
//   - .jsonl: one JSON object per line; blank lines and lines starting with # are skipped
//   - .yaml, .yml: a sequence of mappings or a single mapping
//   - anything else: a JSON array of objects or a single JSON object
//
// Elements that are not objects are returned as nil records so the validator
// reports them by index.
func LoadRecords(path string) ([]schema.Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "file not found"}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Path: path, Message: err.Error()}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		return parseJSONL(path, data)
	case ".yaml", ".yml":
		return parseYAML(path, data)
	default:
		return parseJSON(path, data)
	}
}

func parseJSON(path string, data []byte) ([]schema.Record, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Path: path, Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	recs, err := toRecords(v)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Path: path, Message: err.Error()}
	}
	return recs, nil
}

func parseJSONL(path string, data []byte) ([]schema.Record, error) {
	var recs []schema.Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		v, err := decodeJSON([]byte(text))
		if err != nil {
			return nil, &LoadError{Code: ErrCodeParseFailed, Path: path, Line: line, Message: fmt.Sprintf("invalid JSON: %v", err)}
		}
		rec, _ := v.(map[string]any)
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Path: path, Line: line + 1, Message: err.Error()}
	}
	return recs, nil
}

func parseYAML(path string, data []byte) ([]schema.Record, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Path: path, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if v == nil {
		return []schema.Record{}, nil
	}
	recs, err := toRecords(normalizeYAML(v))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Path: path, Message: err.Error()}
	}
	return recs, nil
}

// decodeJSON decodes exactly one JSON value, keeping numbers as json.Number.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

func toRecords(v any) ([]schema.Record, error) {
	switch t := v.(type) {
	case []any:
		recs := make([]schema.Record, len(t))
		for i, item := range t {
			recs[i], _ = item.(map[string]any)
		}
		return recs, nil
	case map[string]any:
		return []schema.Record{t}, nil
	default:
		return nil, fmt.Errorf("expected a list of products or a single product, got %T", v)
	}
}

// normalizeYAML converts decoded YAML into the shapes JSON decoding produces.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeYAML(item)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, item := range t {
			m[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return m
	case []any:
		for i, item := range t {
			t[i] = normalizeYAML(item)
		}
		return t
	case time.Time:
		return t.Format(schema.DateLayout)
	default:
		return v
	}
}

// FindBatchFiles returns the batch files directly inside dir, sorted by name.
func FindBatchFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !batchExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
