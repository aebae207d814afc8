// Package envcfg fills `env`-tagged structs from the environment, applies their
// `default` tags and validates the result.
package envcfg

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"uploader/internal/val"
)

// Load populates dst, a pointer to a struct, from getenv. Nested structs without an
// env tag are walked. Empty values count as unset so defaults still apply. Slices
// are read as comma separated lists.
func Load(getenv func(string) string, dst any) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("envcfg: want pointer to struct, got %T", dst)
	}
	if err := fromEnv(v.Elem(), getenv); err != nil {
		return err
	}
	if err := defaults.Set(dst); err != nil {
		return fmt.Errorf("config defaults: %w", err)
	}
	if err := val.Struct(dst); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func fromEnv(v reflect.Value, getenv func(string) string) error {
	t := v.Type()
	for i := range t.NumField() {
		field, sf := v.Field(i), t.Field(i)
		if !sf.IsExported() {
			continue
		}
		key := sf.Tag.Get("env")

		if key == "" {
			if sf.Type.Kind() == reflect.Struct {
				if err := fromEnv(field, getenv); err != nil {
					return err
				}
			}
			continue
		}

		raw := strings.TrimSpace(getenv(key))
		if raw == "" {
			continue
		}

		switch sf.Type.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Slice:
			parts := strings.Split(raw, ",")
			items := reflect.MakeSlice(sf.Type, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					items = reflect.Append(items, reflect.ValueOf(p).Convert(sf.Type.Elem()))
				}
			}
			field.Set(items)
		default:
			// yaml.v3 parses ints, bools and durations like "2s"
			if err := yaml.Unmarshal([]byte(raw), field.Addr().Interface()); err != nil {
				return fmt.Errorf("config %s: %w", key, err)
			}
		}
	}
	return nil
}
