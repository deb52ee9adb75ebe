package catalog

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/remp2020/crm-segment-module/internal/params"
)

const sqlDateTime = "2006-01-02 15:04:05"

// Criterion is a criteria.Criteria declared in a catalog file.
type Criterion struct {
	key    string
	label  string
	params []params.Param
	join   *template.Template
	title  *template.Template
	fields []string
}

// Key returns the registry key.
func (c *Criterion) Key() string {
	return c.key
}

func (c *Criterion) Label() string {
	return c.label
}

func (c *Criterion) Params(context.Context) ([]params.Param, error) {
	return c.params, nil
}

func (c *Criterion) Join(bag *params.Bag) (string, error) {
	return c.render(c.join, bag)
}

func (c *Criterion) Title(bag *params.Bag) (string, error) {
	return c.render(c.title, bag)
}

func (c *Criterion) Fields() []string {
	return c.fields
}

// render executes tmpl with every declared param; unbound ones are nil.
func (c *Criterion) render(tmpl *template.Template, bag *params.Bag) (string, error) {
	data := make(map[string]any, len(c.params))
	for _, p := range c.params {
		data[p.Key()] = nil
		if bag.Has(p.Key()) {
			v, err := bag.Value(p.Key())
			if err != nil {
				return "", err
			}
			data[p.Key()] = v
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

var funcs = template.FuncMap{
	"escaped": escaped,
	"quote":   quote,
	"title":   title,
}

func parseTemplate(name, text string) (*template.Template, error) {
	return template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
}

// escaped renders a bound value as a SQL literal, or a list of literals
// for arrays.
func escaped(v any) (string, error) {
	switch v := v.(type) {
	case params.String:
		return params.Quote(string(v)), nil
	case params.Number:
		return strconv.FormatInt(int64(v), 10), nil
	case params.Decimal:
		return v.Amount.String(), nil
	case params.Boolean:
		if v {
			return "1", nil
		}
		return "0", nil
	case params.DateTime:
		return params.Quote(v.Time.UTC().Format(sqlDateTime)), nil
	case params.StringArray:
		return v.EscapedString(","), nil
	case params.NumberArray:
		return v.EscapedString(","), nil
	case string:
		return params.Quote(v), nil
	default:
		return "", fmt.Errorf("cannot escape %T", v)
	}
}

// quote renders any value as a quoted SQL string.
func quote(v any) string {
	return params.Quote(display(v))
}

// title renders a bound value for generated names.
func title(v any) string {
	return display(v)
}

func display(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case params.String:
		return string(v)
	case params.Number:
		return strconv.FormatInt(int64(v), 10)
	case params.Decimal:
		return v.Amount.String()
	case params.Boolean:
		return strconv.FormatBool(bool(v))
	case params.DateTime:
		return v.Time.UTC().Format(sqlDateTime)
	case params.StringArray:
		return v.Title(", ")
	case params.NumberArray:
		return v.Title(", ")
	default:
		return fmt.Sprint(v)
	}
}
