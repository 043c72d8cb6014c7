package cmd

import (
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/api"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/mapping"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/report"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/store"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/table"
)

func (a *app) mappingSpec() (*api.MappingSpec, error) {
	if a.cfg.Mapping == "" {
		return mapping.DefaultSpec()
	}
	a.log.Info("using mapping spec file", zap.String("path", a.cfg.Mapping))
	return mapping.LoadSpecFile(a.cfg.Mapping)
}

// useCache reports whether the cache file can stand in for the export: it
// exists, is newer than the export, and holds the requested version.
func (a *app) useCache() bool {
	c := a.cfg
	if c.Cache == "" {
		return false
	}
	cached, err := os.Stat(c.Cache)
	if err != nil {
		return false
	}
	if c.Export != "" {
		src, err := os.Stat(c.Export)
		if err == nil && src.ModTime().After(cached.ModTime()) {
			a.log.Info("export is newer than the cache", zap.String("cache", c.Cache))
			return false
		}
	}
	if c.Version != "" {
		meta, err := store.Meta(c.Cache)
		if err != nil || meta["version"] != c.Version {
			a.log.Info("cache holds another content version",
				zap.String("cache", c.Cache),
				zap.String("cached", meta["version"]),
				zap.String("requested", c.Version))
			return false
		}
	}
	return true
}

// loadUnified returns the consolidated export and the path of the file it
// came from.
func (a *app) loadUnified() (*export.Unified, string, error) {
	c := a.cfg
	if a.useCache() {
		u, err := store.Load(c.Cache)
		if err == nil {
			a.log.Info("loaded consolidated export from cache",
				zap.String("cache", c.Cache),
				zap.String("version", u.Version))
			return u, c.Cache, nil
		}
		if c.Export == "" {
			return nil, "", err
		}
		a.log.Warn("ignoring unreadable cache", zap.String("cache", c.Cache), zap.Error(err))
	}
	if c.Export == "" {
		return nil, "", errors.New("no data request content: set --export (or --cache)")
	}

	content, err := export.Load(c.Export)
	if err != nil {
		return nil, "", err
	}
	if content.Shape() == export.ShapePartitioned && c.Version == "" {
		return nil, "", errors.New("consolidating a partitioned export needs a content version (--dreq-version)")
	}
	spec, err := a.mappingSpec()
	if err != nil {
		return nil, "", err
	}
	eng, err := mapping.NewEngine(spec, a.log)
	if err != nil {
		return nil, "", err
	}
	u, err := eng.Consolidate(content, c.Version)
	if err != nil {
		return nil, "", err
	}
	a.log.Info("consolidated export",
		zap.String("export", c.Export),
		zap.Stringer("shape", content.Shape()),
		zap.String("version", u.Version),
		zap.Int("tables", u.Base.Len()))

	if c.Cache != "" {
		if err := store.Save(c.Cache, u); err != nil {
			a.log.Warn("could not write cache", zap.String("cache", c.Cache), zap.Error(err))
		} else {
			a.log.Info("wrote cache", zap.String("cache", c.Cache))
		}
	}
	return u, c.Export, nil
}

// loadSet builds the table set queried by the request and metadata commands.
func (a *app) loadSet() (*table.Set, report.Provenance, error) {
	u, path, err := a.loadUnified()
	if err != nil {
		return nil, report.Provenance{}, err
	}
	prov, err := report.NewProvenance(path, u.Version, Version)
	if err != nil {
		return nil, report.Provenance{}, err
	}
	set, err := table.FromUnified(u, a.log)
	if err != nil {
		return nil, report.Provenance{}, err
	}
	return set, prov, nil
}
