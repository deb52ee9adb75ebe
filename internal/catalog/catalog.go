package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/afero"

	"github.com/remp2020/crm-segment-module/internal/criteria"
	"github.com/remp2020/crm-segment-module/internal/params"
)

//go:embed schema.cue
var schemaCUE string

//go:embed default.cue
var defaultCUE string

// Catalog is a set of table declarations loaded from CUE.
type Catalog struct {
	Tables []Table
}

// Table declares the fields and criteria of one table.
type Table struct {
	Name          string
	DefaultFields []string
	Fields        []string
	Criteria      []*Criterion
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return compile(map[string][]byte{"default.cue": []byte(defaultCUE)})
}

// Load reads every .cue file under dir from the OS filesystem.
func Load(dir string) (*Catalog, error) {
	return LoadFS(afero.NewOsFs(), dir)
}

// LoadFS reads every .cue file under dir from fsys. Files are unified,
// so a table may be spread across several files.
func LoadFS(fsys afero.Fs, dir string) (*Catalog, error) {
	info, err := fsys.Stat(dir)
	if err != nil {
		return nil, &LoadError{Field: "dir", Message: fmt.Sprintf("catalog directory not found: %s", dir)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Field: "dir", Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files := make(map[string][]byte)
	err = afero.Walk(fsys, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".cue" {
			return nil
		}
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		files[path] = data
		return nil
	})
	if err != nil {
		return nil, &LoadError{Field: "dir", Message: fmt.Sprintf("scanning %s: %v", dir, err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Field: "dir", Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}
	return compile(files)
}

// Register adds every table of the catalog to s.
func (c *Catalog) Register(s *criteria.Storage) {
	for _, t := range c.Tables {
		s.SetDefaultFields(t.Name, t.DefaultFields)
		s.SetFields(t.Name, t.Fields)
		for _, crit := range t.Criteria {
			s.Register(t.Name, crit.key, crit)
		}
	}
}

func compile(files map[string][]byte) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fv := ctx.CompileBytes(files[name], cue.Filename(name))
		if err := fv.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		v = v.Unify(fv)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	cat := &Catalog{}
	tables := v.LookupPath(cue.ParsePath("table"))
	if !tables.Exists() {
		return cat, nil
	}
	iter, err := tables.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		t, err := parseTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		cat.Tables = append(cat.Tables, t)
	}
	return cat, nil
}

func parseTable(name string, v cue.Value) (Table, error) {
	t := Table{Name: name}
	if err := v.LookupPath(cue.ParsePath("default_fields")).Decode(&t.DefaultFields); err != nil {
		return Table{}, formatCUEError(err)
	}
	if err := v.LookupPath(cue.ParsePath("fields")).Decode(&t.Fields); err != nil {
		return Table{}, formatCUEError(err)
	}

	iter, err := v.LookupPath(cue.ParsePath("criteria")).Fields()
	if err != nil {
		return Table{}, formatCUEError(err)
	}
	for iter.Next() {
		c, err := parseCriterion(iter.Label(), iter.Value())
		if err != nil {
			return Table{}, err
		}
		t.Criteria = append(t.Criteria, c)
	}
	return t, nil
}

func parseCriterion(key string, v cue.Value) (*Criterion, error) {
	c := &Criterion{key: key}

	var err error
	if c.label, err = v.LookupPath(cue.ParsePath("label")).String(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.LookupPath(cue.ParsePath("fields")).Decode(&c.fields); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := v.LookupPath(cue.ParsePath("params")).Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		p, err := parseParam(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		c.params = append(c.params, p)
	}

	joinVal := v.LookupPath(cue.ParsePath("join"))
	join, err := joinVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if c.join, err = parseTemplate(key+".join", join); err != nil {
		return nil, &LoadError{Field: "join", Message: fmt.Sprintf("criterion %s: %v", key, err), Pos: joinVal.Pos()}
	}

	titleVal := v.LookupPath(cue.ParsePath("title"))
	title, err := titleVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if c.title, err = parseTemplate(key+".title", title); err != nil {
		return nil, &LoadError{Field: "title", Message: fmt.Sprintf("criterion %s: %v", key, err), Pos: titleVal.Pos()}
	}
	return c, nil
}

func parseParam(key string, v cue.Value) (params.Param, error) {
	def := params.Definition{Key: key}

	typ, err := v.LookupPath(cue.ParsePath("type")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if def.Label, err = v.LookupPath(cue.ParsePath("label")).String(); err != nil {
		return nil, formatCUEError(err)
	}
	if def.Help, err = v.LookupPath(cue.ParsePath("help")).String(); err != nil {
		return nil, formatCUEError(err)
	}
	if def.Group, err = v.LookupPath(cue.ParsePath("group")).String(); err != nil {
		return nil, formatCUEError(err)
	}
	if def.Required, err = v.LookupPath(cue.ParsePath("required")).Bool(); err != nil {
		return nil, formatCUEError(err)
	}

	if dv := v.LookupPath(cue.ParsePath("default")); dv.Exists() && dv.IsConcrete() {
		data, err := dv.MarshalJSON()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if err := json.Unmarshal(data, &def.Default); err != nil {
			return nil, &LoadError{Field: "default", Message: fmt.Sprintf("param %s: %v", key, err), Pos: dv.Pos()}
		}
	}

	options, err := parseOptions(v.LookupPath(cue.ParsePath("options")))
	if err != nil {
		return nil, err
	}

	switch params.Type(typ) {
	case params.TypeString:
		return params.NewStringParam(def), nil
	case params.TypeNumber:
		return params.NewNumberParam(def), nil
	case params.TypeDecimal:
		return params.NewDecimalParam(def), nil
	case params.TypeBoolean:
		return params.NewBooleanParam(def), nil
	case params.TypeDateTime:
		return params.NewDateTimeParam(def), nil
	case params.TypeStringArray:
		return params.NewStringArrayParam(def, options), nil
	case params.TypeNumberArray:
		var numeric map[int64]string
		if options != nil {
			numeric = make(map[int64]string, len(options))
			for k, label := range options {
				n, err := strconv.ParseInt(k, 10, 64)
				if err != nil {
					return nil, &LoadError{Field: "options", Message: fmt.Sprintf("param %s: option %q is not a number", key, k), Pos: v.Pos()}
				}
				numeric[n] = label
			}
		}
		return params.NewNumberArrayParam(def, numeric), nil
	default:
		return nil, &LoadError{Field: "type", Message: fmt.Sprintf("param %s: unknown type %q", key, typ), Pos: v.Pos()}
	}
}

// parseOptions returns nil when no options are declared, so the param
// accepts any value.
func parseOptions(v cue.Value) (map[string]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	options := make(map[string]string)
	for iter.Next() {
		label, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		options[iter.Selector().Unquoted()] = label
	}
	if len(options) == 0 {
		return nil, nil
	}
	return options, nil
}
