package table

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/dreqtest"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"
)

func sample() *export.Unified {
	return dreqtest.Unified("v1.2",
		dreqtest.Table("tblExp", "Experiment").
			Fields("Experiment", "Note").
			Link("Experiment Groups", "tblEG").
			Rec("recExpA", "Experiment", "A", "Experiment Groups", dreqtest.Links("recEG1", "recGone")).
			Rec("recExpB", "Experiment", "B", "Experiment Groups", dreqtest.Links("recGone")).
			Rec("recEmpty"),
		dreqtest.Table("tblEG", "Experiment Group").
			Fields("Name", "Tags").
			Link("Experiments", "tblExp").
			Link("Elsewhere", "tblMissing").
			Rec("recEG1",
				"Name", "eg",
				"Tags", dreqtest.List("x", "y"),
				"Experiments", dreqtest.Links("recExpA", "recExpB"),
				"Elsewhere", dreqtest.Links("recX"),
				"Undeclared (extra)", "kept"),
	)
}

func TestAttrName(t *testing.T) {
	tests := map[string]string{
		"Title of opportunity":                   "title_of_opportunity",
		" CMIP6 Compound Name ":                  "cmip6_compound_name",
		"Modelling Realm - Primary":              "modelling_realm___primary",
		"Status (from Opportunities)":            "status_from_opportunities",
		"ESM-BCV 1.4":                            "esm_bcv_1_4",
		"Unique list of experiments, by # group": "unique_list_of_experiments_by___group",
	}
	for in, want := range tests {
		assert.Equal(t, want, AttrName(in), in)
	}
}

func TestFromUnified(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s, err := FromUnified(sample(), zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, "v1.2", s.Version)

	t.Run("table names are normalised", func(t *testing.T) {
		assert.Equal(t, []string{"Experiments", "Experiment Group"}, s.Names())
		assert.False(t, s.Has("Experiment"))
		expts, err := s.Table("Experiments")
		require.NoError(t, err)
		assert.Equal(t, "tblExp", expts.ID)

		byID, ok := s.TableByID("tblExp")
		require.True(t, ok)
		assert.Same(t, expts, byID)
	})

	t.Run("empty records are skipped", func(t *testing.T) {
		expts, _ := s.Table("Experiments")
		assert.Equal(t, []string{"recExpA", "recExpB"}, expts.IDs())
	})

	t.Run("link attributes hold links", func(t *testing.T) {
		eg, _ := s.Table("Experiment Group")
		rec, err := eg.Record("recEG1")
		require.NoError(t, err)
		links := rec.Links("experiments")
		require.Len(t, links, 2)
		assert.Equal(t, Link{TableID: "tblExp", Table: "Experiments", RecordID: "recExpA"}, links[0])

		target, err := s.Resolve(links[1])
		require.NoError(t, err)
		assert.Equal(t, "B", target.String("experiment"))

		assert.Equal(t, "x, y", rec.String("tags"))
		assert.Equal(t, []string{"x", "y"}, rec.Strings("tags"))
		assert.Equal(t, "kept", rec.String("undeclared_extra"))
		f, ok := eg.Field("experiments")
		require.True(t, ok)
		assert.Equal(t, "Experiments", f.LinkedTable)
	})

	t.Run("dangling links are pruned", func(t *testing.T) {
		expts, _ := s.Table("Experiments")
		a, _ := expts.Record("recExpA")
		assert.Equal(t, []string{"recEG1"}, a.Strings("experiment_groups"))

		b, _ := expts.Record("recExpB")
		assert.False(t, b.Has("experiment_groups"), "attribute left without links is removed")

		eg, _ := s.Table("Experiment Group")
		rec, _ := eg.Record("recEG1")
		assert.False(t, rec.Has("elsewhere"))

		assert.NotZero(t, logs.FilterMessage("pruned dangling links").Len())
	})
}

func TestFromUnifiedErrors(t *testing.T) {
	t.Run("duplicate table identifier", func(t *testing.T) {
		u := dreqtest.Unified("v1.2",
			dreqtest.Table("tblA", "A"),
			dreqtest.Table("tblA", "B"))
		_, err := FromUnified(u, nil)
		require.Error(t, err)
		assert.True(t, Error.Has(err))
	})

	t.Run("canonical name already taken", func(t *testing.T) {
		u := dreqtest.Unified("v1.2",
			dreqtest.Table("tblA", "Variable"),
			dreqtest.Table("tblB", "Variables"))
		_, err := FromUnified(u, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"Variable" to "Variables"`)
	})

	t.Run("fields sharing an attribute", func(t *testing.T) {
		u := dreqtest.Unified("v1.2",
			dreqtest.Table("tblA", "A").Fields("Name", "name"))
		_, err := FromUnified(u, nil)
		require.Error(t, err)
	})
}

func TestRecordNotFound(t *testing.T) {
	s, err := FromUnified(sample(), nil)
	require.NoError(t, err)

	_, err = s.Table("Nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	expts, _ := s.Table("Experiments")
	_, err = expts.Record("recNope")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Resolve(Link{TableID: "tblNope", RecordID: "recExpA"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRenameAttr(t *testing.T) {
	s, err := FromUnified(sample(), nil)
	require.NoError(t, err)
	expts, _ := s.Table("Experiments")

	require.NoError(t, expts.RenameAttr("experiment", "name"))
	a, _ := expts.Record("recExpA")
	assert.Equal(t, "A", a.String("name"))
	assert.False(t, a.Has("experiment"))
	assert.True(t, expts.HasAttr("name"))

	require.NoError(t, expts.RenameAttr("missing", "whatever"))
	require.Error(t, expts.RenameAttr("name", "note"))
}

func TestRenameTableUpdatesLinks(t *testing.T) {
	s, err := FromUnified(sample(), nil)
	require.NoError(t, err)

	require.NoError(t, s.RenameTable("Experiments", "Runs"))
	eg, _ := s.Table("Experiment Group")
	rec, _ := eg.Record("recEG1")
	assert.Equal(t, "Runs", rec.Links("experiments")[0].Table)
	f, _ := eg.Field("experiments")
	assert.Equal(t, "Runs", f.LinkedTable)

	require.Error(t, s.RenameTable("Runs", "Experiment Group"))
	require.NoError(t, s.RenameTable("Absent", "Other"))
}

func TestCloneIsIndependent(t *testing.T) {
	s, err := FromUnified(sample(), nil)
	require.NoError(t, err)
	c := s.Clone()

	expts, _ := c.Table("Experiments")
	require.True(t, expts.DeleteRecord("recExpA"))
	eg, _ := c.Table("Experiment Group")
	rec, _ := eg.Record("recEG1")
	rec.Links("experiments")[0].RecordID = "changed"
	rec.Set("name", "renamed")

	orig, _ := s.Table("Experiments")
	assert.Equal(t, []string{"recExpA", "recExpB"}, orig.IDs())
	origEG, _ := s.Table("Experiment Group")
	origRec, _ := origEG.Record("recEG1")
	assert.Equal(t, "recExpA", origRec.Links("experiments")[0].RecordID)
	assert.Equal(t, "eg", origRec.String("name"))
}
