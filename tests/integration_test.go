package tests

import (
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/dreqtest"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/mapping"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/metadata"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/query"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/report"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/store"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/table"
)

// testFixture bundles the stages of a full run over the synthetic export:
// the raw export on disk, its consolidation, and the cached copy.
type testFixture struct {
	dir      string
	rawPath  string
	unified  *export.Unified
	logs     *observer.ObservedLogs
	log      *zap.Logger
	provPath string
}

// setup writes the partitioned fixture to disk, reads it back, consolidates
// it with the embedded mapping rules and saves the result to a SQLite cache.
func setup(t *testing.T) *testFixture {
	t.Helper()
	dir := t.TempDir()
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	data, err := json.Marshal(dreqtest.Partitioned())
	require.NoError(t, err)
	rawPath := filepath.Join(dir, "dreq_raw_export.json")
	require.NoError(t, os.WriteFile(rawPath, data, 0o644))

	content, err := export.Load(rawPath)
	require.NoError(t, err)
	require.Equal(t, export.ShapePartitioned, content.Shape())

	spec, err := mapping.DefaultSpec()
	require.NoError(t, err)
	eng, err := mapping.NewEngine(spec, log)
	require.NoError(t, err)
	u, err := eng.Consolidate(content, dreqtest.Version)
	require.NoError(t, err)

	cache := filepath.Join(dir, "dreq.db")
	require.NoError(t, store.Save(cache, u))

	return &testFixture{dir: dir, rawPath: rawPath, unified: u, logs: logs, log: log, provPath: cache}
}

func (f *testFixture) set(t *testing.T) *table.Set {
	t.Helper()
	u, err := store.Load(f.provPath)
	require.NoError(t, err)
	s, err := table.FromUnified(u, f.log)
	require.NoError(t, err)
	return s
}

func TestEndToEnd(t *testing.T) {
	f := setup(t)

	t.Run("filtered records are gone", func(t *testing.T) {
		s := f.set(t)
		for _, id := range dreqtest.Filtered {
			for _, name := range s.Names() {
				tbl, _ := s.Table(name)
				_, err := tbl.Record(id)
				assert.Error(t, err, "%s still in %s", id, name)
			}
		}
		assert.NotZero(t, f.logs.FilterMessage("filtered records in total").Len())
	})

	t.Run("requested variables", func(t *testing.T) {
		e, err := query.NewEngine(f.set(t), query.Context{Log: f.log})
		require.NoError(t, err)
		res, err := e.RequestedVariables(query.AllOpportunities(), "Low", true)
		require.NoError(t, err)

		prov, err := report.NewProvenance(f.rawPath, res.Version, "test")
		require.NoError(t, err)
		out := filepath.Join(f.dir, "requested.json")
		require.NoError(t, report.WriteRequestedFile(out, res, prov))

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		var doc struct {
			Header     map[string]any                 `json:"Header"`
			Experiment map[string]map[string][]string `json:"experiment"`
		}
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, "dreq_raw_export.json", doc.Header["dreq content file"])
		assert.Equal(t, map[string][]string{
			"Core":   {"Amon.ps"},
			"High":   {"Amon.tas"},
			"Medium": {},
			"Low":    {"Amon.pr"},
		}, doc.Experiment["B"])
		assert.Equal(t, []string{"Amon.ps"}, doc.Experiment["A"]["Core"])
	})

	t.Run("metadata of every requested variable", func(t *testing.T) {
		s := f.set(t)
		cat, err := metadata.Resolve(s, query.Context{}, metadata.Options{})
		require.NoError(t, err)

		e, err := query.NewEngine(s, query.Context{})
		require.NoError(t, err)
		res, err := e.RequestedVariables(query.AllOpportunities(), "Low", false)
		require.NoError(t, err)
		for _, name := range res.ExperimentNames() {
			for _, p := range query.PriorityLevels {
				for _, v := range res.Experiments[name].Vars(p) {
					_, ok := cat.Get(v)
					assert.True(t, ok, "%s requested by %s has no metadata", v, name)
				}
			}
		}
	})

	t.Run("cache matches fresh consolidation", func(t *testing.T) {
		cached, err := store.Load(f.provPath)
		require.NoError(t, err)
		want, err := json.Marshal(f.unified)
		require.NoError(t, err)
		got, err := json.Marshal(cached)
		require.NoError(t, err)
		assert.JSONEq(t, string(want), string(got))
	})

	t.Run("release round trip", func(t *testing.T) {
		data, err := json.Marshal(f.unified.Content())
		require.NoError(t, err)
		content, err := export.Parse(data)
		require.NoError(t, err)

		spec, err := mapping.DefaultSpec()
		require.NoError(t, err)
		eng, err := mapping.NewEngine(spec, nil)
		require.NoError(t, err)
		again, err := eng.Consolidate(content, "")
		require.NoError(t, err)
		assert.Equal(t, dreqtest.Version, again.Version)
		assert.Equal(t, f.unified.Base.Names(), again.Base.Names())
	})
}

func consolidateSynthetic(t testing.TB, opts dreqtest.SyntheticOptions, seed uint64) *export.Unified {
	t.Helper()
	content := dreqtest.Synthetic(opts, rand.New(rand.NewPCG(seed, 1)))
	spec, err := mapping.DefaultSpec()
	require.NoError(t, err)
	eng, err := mapping.NewEngine(spec, nil)
	require.NoError(t, err)
	u, err := eng.Consolidate(content, dreqtest.Version)
	require.NoError(t, err)
	return u
}

func TestSyntheticExport(t *testing.T) {
	opts := dreqtest.SyntheticOptions{
		Opportunities:        5,
		Experiments:          12,
		Variables:            60,
		GroupsPerOpportunity: 3,
		VariablesPerGroup:    10,
		CoreVariables:        4,
	}
	u := consolidateSynthetic(t, opts, 7)

	s, err := table.FromUnified(u, nil)
	require.NoError(t, err)
	cat, err := metadata.Resolve(s, query.Context{}, metadata.Options{})
	require.NoError(t, err)
	assert.Equal(t, opts.Variables, cat.Len())

	e, err := query.NewEngine(s, query.Context{})
	require.NoError(t, err)
	assert.Len(t, e.Opportunities(), opts.Opportunities)
	res, err := e.RequestedVariables(query.AllOpportunities(), "Low", true)
	require.NoError(t, err)
	require.False(t, res.Empty())
	for _, name := range res.ExperimentNames() {
		req := res.Experiments[name]
		require.NoError(t, req.Check())
		assert.Len(t, req.Vars(query.Core), opts.CoreVariables, name)
	}
}

func BenchmarkRequestedVariables(b *testing.B) {
	u := consolidateSynthetic(b, dreqtest.DefaultSyntheticOptions(), 42)
	base, err := table.FromUnified(u, nil)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e, err := query.NewEngine(base.Clone(), query.Context{})
		if err != nil {
			b.Fatal(err)
		}
		if _, err := e.RequestedVariables(query.AllOpportunities(), "Low", true); err != nil {
			b.Fatal(err)
		}
	}
}
