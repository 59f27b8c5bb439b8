package cli

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRecords_JSONArray(t *testing.T) {
	path := writeBatch(t, t.TempDir(), "batch.json", `[{"product_id": "A", "price": 10.50}, 42]`)

	recs, err := LoadRecords(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0]["product_id"])
	assert.Equal(t, json.Number("10.50"), recs[0]["price"], "numbers keep their literal form")
	assert.Nil(t, recs[1], "non-object elements become nil records")
}

func TestLoadRecords_JSONObject(t *testing.T) {
	path := writeBatch(t, t.TempDir(), "single.json", `{"product_id": "ONE"}`)

	recs, err := LoadRecords(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ONE", recs[0]["product_id"])
}

func TestLoadRecords_JSONErrors(t *testing.T) {
	tests := map[string]string{
		"syntax":   `[{"product_id": }]`,
		"scalar":   `"just a string"`,
		"trailing": `{"product_id": "A"} {"product_id": "B"}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadRecords(writeBatch(t, t.TempDir(), "bad.json", content))
			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, ErrCodeParseFailed, le.Code)
		})
	}
}

func TestLoadRecords_JSONL(t *testing.T) {
	content := "# exported 2025-06-01\n" +
		`{"product_id": "L1"}` + "\n" +
		"\n" +
		`   {"product_id": "L2"}   ` + "\n" +
		"   # trailing comment\n"
	recs, err := LoadRecords(writeBatch(t, t.TempDir(), "batch.jsonl", content))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "L2", recs[1]["product_id"])
}

func TestLoadRecords_JSONLReportsLine(t *testing.T) {
	content := `{"product_id": "L1"}` + "\n# note\n" + `{"product_id": ` + "\n"
	_, err := LoadRecords(writeBatch(t, t.TempDir(), "batch.jsonl", content))

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 3, le.Line)
	assert.Contains(t, err.Error(), "batch.jsonl:3:")
}

func TestLoadRecords_YAML(t *testing.T) {
	content := `
- product_id: Y1
  product_name: Ferrari World
  duration_hours: 4
  pricing:
    - tier_name: Adult
      price_aed: 345.5
      validity_start: 2025-01-01
  inclusions:
    - Park entry
- product_id: Y2
`
	recs, err := LoadRecords(writeBatch(t, t.TempDir(), "batch.yml", content))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Ferrari World", recs[0]["product_name"])

	tier := recs[0]["pricing"].([]any)[0].(map[string]any)
	assert.Equal(t, "2025-01-01", tier["validity_start"])
	assert.Equal(t, 345.5, tier["price_aed"])
}

func TestLoadRecords_YAMLSingleMappingAndEmpty(t *testing.T) {
	recs, err := LoadRecords(writeBatch(t, t.TempDir(), "one.yaml", "product_id: SOLO\n"))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	recs, err = LoadRecords(writeBatch(t, t.TempDir(), "empty.yaml", ""))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestLoadRecords_NotFound(t *testing.T) {
	_, err := LoadRecords(filepath.Join(t.TempDir(), "nope.json"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestFindBatchFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.json", "c.JSONL", "README.md", "d.yml"} {
		writeBatch(t, dir, name, "")
	}

	files, err := FindBatchFiles(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"a.json", "b.yaml", "c.JSONL", "d.yml"}, names)
}
