package glcache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/soypat/glprog/featkey"
	"github.com/soypat/glprog/glbuild"
	"gopkg.in/yaml.v3"
)

// document is the persisted cache. Stage sources are stored before preprocessing so
// records can be recompiled for any context they are accepted by.
type document struct {
	Version  int      `yaml:"version"`
	Programs []record `yaml:"programs"`
}

type record struct {
	Key         string          `yaml:"key"`
	Flags       string          `yaml:"flags,omitempty"`
	Context     string          `yaml:"context"`
	Features    []featureRecord `yaml:"features,omitempty"`
	Vertex      string          `yaml:"vertex,omitempty"`
	TessControl string          `yaml:"tessControl,omitempty"`
	TessEval    string          `yaml:"tessEval,omitempty"`
	Geometry    string          `yaml:"geometry,omitempty"`
	Fragment    string          `yaml:"fragment,omitempty"`
}

type featureRecord struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
}

func (r *record) sources() (src glbuild.Sources) {
	src[glbuild.StageVertex] = r.Vertex
	src[glbuild.StageTessControl] = r.TessControl
	src[glbuild.StageTessEval] = r.TessEval
	src[glbuild.StageGeometry] = r.Geometry
	src[glbuild.StageFragment] = r.Fragment
	return src
}

func (r *record) setSources(src glbuild.Sources) {
	r.Vertex = src[glbuild.StageVertex]
	r.TessControl = src[glbuild.StageTessControl]
	r.TessEval = src[glbuild.StageTessEval]
	r.Geometry = src[glbuild.StageGeometry]
	r.Fragment = src[glbuild.StageFragment]
}

func (r *record) featureSet() featkey.FeatureSet {
	if len(r.Features) == 0 {
		return nil
	}
	set := make(featkey.FeatureSet, len(r.Features))
	for i, f := range r.Features {
		set[i] = featkey.Feature{Name: f.Name, Enabled: f.Enabled}
	}
	return set
}

func (r *record) matches(key programKey, ct ContextType) bool {
	return r.Key == key.name && r.featureSet().Hash() == key.features && r.Context == ct.String()
}

// SetShaderCachePersistenceEnabled enables persistence to the document at path. An
// existing document is read and every record accepted by the running context is
// recompiled. A record is accepted when its context type intersects the running
// context type and is fully contained in it. Rejected records are kept in the document.
//
// A document with a different [CacheVersion], or one that cannot be decoded, is
// discarded as a whole and overwritten on the next compile. Records that fail to
// recompile are dropped. Persistence may only be enabled once. Programs compiled
// before it is enabled are not recorded.
func (c *Cache) SetShaderCachePersistenceEnabled(path string) error {
	if c.path != "" {
		return fmt.Errorf("glcache: persistence already enabled at %q", c.path)
	} else if path == "" {
		return errors.New("glcache: empty persistence path")
	}
	c.path = path
	log := Logger()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info("persisted cache not found, starting empty", "path", path)
		return nil
	} else if err != nil {
		return fmt.Errorf("glcache: reading persisted cache: %w", err)
	}
	var doc document
	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		log.Warn("discarding undecodable persisted cache", "path", path, "err", err)
		return nil
	}
	if doc.Version != CacheVersion {
		log.Warn("discarding persisted cache with mismatched version", "path", path, "version", doc.Version, "want", CacheVersion)
		return nil
	}
	c.records = doc.Programs
	loaded, dropped := 0, 0
	kept := c.records[:0]
	for i := range c.records {
		rec := c.records[i]
		ok, err := c.loadRecord(&rec)
		if err != nil {
			dropped++
			continue
		}
		if ok {
			loaded++
		}
		kept = append(kept, rec)
	}
	c.records = kept
	log.Info("persisted cache enabled", "path", path, "loaded", loaded, "dropped", dropped, "records", len(c.records))
	if dropped > 0 {
		if err := c.writeDocument(); err != nil {
			log.Warn("writing persisted cache", "path", path, "err", err)
		}
	}
	return nil
}

// loadRecord recompiles rec if the running context accepts it. A nil error with
// loaded false means the record was skipped but remains valid.
func (c *Cache) loadRecord(rec *record) (loaded bool, err error) {
	ct, err := ParseContextType(rec.Context)
	if err != nil {
		Logger().Warn("persisted record with bad context type", "key", rec.Key, "err", err)
		return false, err
	}
	if !c.ctx.accepts(ct) || c.compileDisabled {
		return false, nil
	}
	flags, err := glbuild.ParseCacheFlags(rec.Flags)
	if err != nil {
		Logger().Warn("persisted record with bad flags", "key", rec.Key, "err", err)
		return false, err
	}
	_, err = c.ForceCompileProgram(rec.Key, rec.sources(), flags, rec.featureSet(), false, true)
	if err != nil {
		return false, err
	}
	return true, nil
}

// PersistencePath returns the path given to SetShaderCachePersistenceEnabled.
func (c *Cache) PersistencePath() string { return c.path }

// Records returns the number of records in the persisted document.
func (c *Cache) Records() int { return len(c.records) }

// putRecord adds or replaces the record of a program compiled for the running context.
func (c *Cache) putRecord(name string, src glbuild.Sources, flags glbuild.CacheFlags, set featkey.FeatureSet) {
	key := makeKey(name, set)
	idx := -1
	for i := range c.records {
		if c.records[i].matches(key, c.ctx) {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.records = append(c.records, record{})
		idx = len(c.records) - 1
	}
	rec := &c.records[idx]
	*rec = record{Key: name, Flags: flags.String(), Context: c.ctx.String()}
	for _, f := range set {
		rec.Features = append(rec.Features, featureRecord{Name: f.Name, Enabled: f.Enabled})
	}
	rec.setSources(src)
}

// writeDocument writes the persisted document atomically by renaming a temporary file
// written next to the destination.
func (c *Cache) writeDocument() error {
	data, err := yaml.Marshal(&document{Version: CacheVersion, Programs: c.records})
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.path)
	fp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp*")
	if err != nil {
		return err
	}
	tmp := fp.Name()
	_, err = fp.Write(data)
	if err == nil {
		err = fp.Sync()
	}
	if errClose := fp.Close(); err == nil {
		err = errClose
	}
	if err == nil {
		err = os.Rename(tmp, c.path)
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	Logger().Debug("persisted cache written", "path", c.path, "records", len(c.records))
	return nil
}
