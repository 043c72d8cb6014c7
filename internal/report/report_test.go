package report

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/dreqtest"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/mapping"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/metadata"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/query"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/table"
)

var testProvenance = Provenance{
	Version:    dreqtest.Version,
	File:       "dreq_release_export.json",
	SHA256:     "abc123",
	APIVersion: "0.0.0-test",
}

func consolidatedSet(t *testing.T) *table.Set {
	t.Helper()
	spec, err := mapping.DefaultSpec()
	require.NoError(t, err)
	m, err := mapping.NewEngine(spec, nil)
	require.NoError(t, err)
	u, err := m.Consolidate(dreqtest.Partitioned(), dreqtest.Version)
	require.NoError(t, err)
	s, err := table.FromUnified(u, nil)
	require.NoError(t, err)
	return s
}

func requested(t *testing.T, cutoff string) *query.Result {
	t.Helper()
	e, err := query.NewEngine(consolidatedSet(t), query.Context{})
	require.NoError(t, err)
	res, err := e.RequestedVariables(query.AllOpportunities(), cutoff, false)
	require.NoError(t, err)
	return res
}

func catalog(t *testing.T) *metadata.Catalog {
	t.Helper()
	c, err := metadata.Resolve(consolidatedSet(t), query.Context{Version: dreqtest.Version}, metadata.Options{})
	require.NoError(t, err)
	return c
}

func TestNewProvenance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "..", "content.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data := []byte(`{"Data Request v1.2":{}}`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p, err := NewProvenance(path, "v1.2", "1.0")
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), p.SHA256)
	assert.Equal(t, "content.json", p.File)

	_, err = NewProvenance("", "v1.2", "1.0")
	assert.Error(t, err)
	_, err = NewProvenance(path, "", "1.0")
	assert.Error(t, err)
	_, err = NewProvenance(path, "v1.2", "")
	assert.Error(t, err)
	_, err = NewProvenance(filepath.Join(t.TempDir(), "missing.json"), "v1.2", "1.0")
	assert.True(t, Error.Has(err))
}

func TestWriteRequested(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRequested(&buf, requested(t, "high"), testProvenance))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "{\n    \"Header\": {\n        \"Description\": "), out)
	headerKeys := []string{
		`"Description"`, `"Opportunities supported"`, `"Priority levels supported"`,
		`"Experiments included"`, `"dreq content version"`, `"dreq content file"`,
		`"dreq content sha256 hash"`, `"dreq api version"`, `"experiment"`,
	}
	last := -1
	for _, k := range headerKeys {
		i := strings.Index(out, k)
		require.Greater(t, i, last, "key %s out of order", k)
		last = i
	}

	var doc struct {
		Header struct {
			Opportunities []string `json:"Opportunities supported"`
			Priorities    []string `json:"Priority levels supported"`
			Experiments   []string `json:"Experiments included"`
			Hash          string   `json:"dreq content sha256 hash"`
		}
		Experiment map[string]map[string][]string `json:"experiment"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, []string{"O1", "O2"}, doc.Header.Opportunities)
	assert.Equal(t, []string{"Core", "High"}, doc.Header.Priorities)
	assert.Equal(t, []string{"A", "B"}, doc.Header.Experiments)
	assert.Equal(t, "abc123", doc.Header.Hash)
	assert.Equal(t, map[string][]string{
		"Core": {"Amon.ps"},
		"High": {"Amon.tas"},
	}, doc.Experiment["B"], "levels below the cutoff are dropped")
}

func TestRequestedRejectsLevelsBelowCutoff(t *testing.T) {
	res := requested(t, "low")
	res.Priorities = []string{query.Core, query.High}
	_, err := Requested(res, testProvenance)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported priority Low")
}

func TestWriteRequestedEmpty(t *testing.T) {
	res := &query.Result{Version: "v1.2", Priorities: query.PriorityLevels, Experiments: map[string]*query.Request{}}

	var buf bytes.Buffer
	require.NoError(t, WriteRequested(&buf, res, testProvenance))
	assert.Contains(t, buf.String(), `"Opportunities supported": []`)
	assert.Contains(t, buf.String(), `"experiment": {}`)

	buf.Reset()
	require.NoError(t, WriteSummary(&buf, res))
	assert.Equal(t, "no opportunities selected, nothing was requested\n", buf.String())
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, requested(t, "low")))
	assert.Equal(t,
		"For data request version v1.2, number of requested variables found by experiment:\n"+
			"  A : Core=1, High=1, Medium=0, Low=0, TOTAL=2\n"+
			"  B : Core=1, High=1, Medium=0, Low=1, TOTAL=3\n",
		buf.String())
}

func TestColumns(t *testing.T) {
	cols := Columns(catalog(t))
	require.GreaterOrEqual(t, len(cols), 4)
	assert.Equal(t, []string{CompoundNameColumn, metadata.AttrStandardName, metadata.AttrStandardNameProposed, metadata.AttrFrequency}, cols[:4])
	assert.Contains(t, cols, metadata.AttrTable)
}

func TestWriteMetadataJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMetadataJSON(&buf, catalog(t), testProvenance))

	var doc struct {
		Header map[string]any               `json:"Header"`
		Vars   map[string]map[string]string `json:"Compound Name"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, float64(3), doc.Header["no. of variables"])
	assert.Equal(t, dreqtest.Version, doc.Header["dreq content version"])
	assert.Equal(t, "air_temperature", doc.Vars["Amon.tas"][metadata.AttrStandardName])
	assert.Less(t, strings.Index(buf.String(), `"Amon.pr"`), strings.Index(buf.String(), `"Amon.tas"`))
}

func TestWriteMetadataFiles(t *testing.T) {
	dir := t.TempDir()
	cat := catalog(t)

	t.Run("csv", func(t *testing.T) {
		path := filepath.Join(dir, "vars.csv")
		require.NoError(t, WriteMetadataFile(path, cat, testProvenance))
		f, err := os.Open(path)
		require.NoError(t, err)
		defer func() { _ = f.Close() }()

		rows, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, Columns(cat), rows[0])
		assert.Equal(t, "Amon.pr", rows[1][0])
		assert.Equal(t, "precipitation_flux", rows[1][1])
		assert.Equal(t, "", rows[1][2])
		assert.Equal(t, "surface_air_pressure", rows[2][2])
	})

	t.Run("xlsx", func(t *testing.T) {
		path := filepath.Join(dir, "nested", "vars.xlsx")
		require.NoError(t, WriteMetadataFile(path, cat, testProvenance))
		f, err := excelize.OpenFile(path)
		require.NoError(t, err)
		defer func() { _ = f.Close() }()

		assert.Equal(t, []string{SheetName}, f.GetSheetList())
		rows, err := f.GetRows(SheetName)
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, CompoundNameColumn, rows[0][0])
		assert.Equal(t, "Amon.tas", rows[3][0])
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "vars.JSON")
		require.NoError(t, WriteMetadataFile(path, cat, testProvenance))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, json.Valid(data))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		err := WriteMetadataFile(filepath.Join(dir, "vars.txt"), cat, testProvenance)
		require.Error(t, err)
		assert.True(t, Error.Has(err))
	})

	t.Run("requested must be json", func(t *testing.T) {
		err := WriteRequestedFile(filepath.Join(dir, "req.csv"), requested(t, "low"), testProvenance)
		require.Error(t, err)
	})
}
