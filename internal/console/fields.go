package console

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/me/mdconsole/pkg/model"
	"github.com/mitchellh/mapstructure"
)

var idListType = reflect.TypeOf(model.IDList{})

// applySets assigns field=value pairs to rec, addressing fields by their
// wire names. The record's own id is not assignable.
func applySets[T model.Record](rec *T, e model.Entity, sets []string) error {
	if len(sets) == 0 {
		return nil
	}
	input := make(map[string]any, len(sets))
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("invalid --set %q: want field=value", s)
		}
		if key == e.Name+"Id" {
			return fmt.Errorf("%s cannot be changed", key)
		}
		input[key] = strings.TrimSpace(value)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           rec,
		DecodeHook:       idListHook,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("set %s fields: %w (fields: %s)", e.Name, err, strings.Join(fieldNames[T](e), ", "))
	}
	return nil
}

// idListHook parses comma-joined user ids the same way the wire does.
func idListHook(from, to reflect.Type, data any) (any, error) {
	if to != idListType || from.Kind() != reflect.String {
		return data, nil
	}
	return model.IDList(model.ParseIDList(data.(string))), nil
}

// fieldNames lists the assignable wire names of T.
func fieldNames[T model.Record](e model.Entity) []string {
	var zero T
	t := reflect.TypeOf(zero)
	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous || !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" || name == e.Name+"Id" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
