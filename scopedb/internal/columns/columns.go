// Package columns derives column/value lists for SQL statements from the
// db struct tags of a record type.
package columns

import (
	"reflect"
	"strings"

	"github.com/jswidler/tenantscope/errors"
)

type column struct {
	name string
	val  any
}

type Columns struct {
	cs []column
}

// Of lists the tagged fields of a record.  Fields without a db tag, or
// tagged db:"-", are not persisted and are skipped.
func Of(record any) (Columns, error) {
	v := reflect.ValueOf(record)
	for k := v.Kind(); k == reflect.Ptr || k == reflect.Interface; {
		v = v.Elem()
		k = v.Kind()
	}
	if v.Kind() != reflect.Struct {
		return Columns{}, errors.Newf("cannot derive db columns from %T", record)
	}

	var l []column
	for i := 0; i < v.NumField(); i++ {
		tag := v.Type().Field(i).Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		l = append(l, column{tag, v.Field(i).Interface()})
	}
	return Columns{l}, nil
}

func (c Columns) Names() []string {
	names := make([]string, 0, len(c.cs))
	for i := range c.cs {
		names = append(names, c.cs[i].name)
	}
	return names
}

// List returns the column names quoted and comma separated, for interpolation
// into a statement.  The names come from struct tags, not user input.
func (c Columns) List() string {
	if len(c.cs) == 0 {
		return ""
	}
	return `"` + strings.Join(c.Names(), `", "`) + `"`
}

// Placeholders returns one ? bindvar per column, comma separated.
func (c Columns) Placeholders() string {
	if len(c.cs) == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(c.cs)), ", ")
}

func (c Columns) Get(name string) (any, bool) {
	for i := range c.cs {
		if c.cs[i].name == name {
			return c.cs[i].val, true
		}
	}
	return nil, false
}

func (c Columns) Set(name string, value any) {
	for i := range c.cs {
		if c.cs[i].name == name {
			c.cs[i].val = value
			return
		}
	}
}

func (c *Columns) Remove(name string) {
	for i := range c.cs {
		if c.cs[i].name == name {
			c.cs = append(c.cs[:i:i], c.cs[i+1:]...)
			return
		}
	}
}

func (c Columns) Values() []any {
	vals := make([]any, 0, len(c.cs))
	for i := range c.cs {
		vals = append(vals, c.cs[i].val)
	}
	return vals
}
