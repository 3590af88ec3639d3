package tui

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/charmbracelet/huh"
)

// AddRuleInput is the add-rule form.
type AddRuleInput struct {
	Service string `tui:"title=Service,options=@services"`
	Type    string `tui:"title=Type,options=@types"`
	Text    string `tui:"title=Rule,desc=Rule text in the chosen encoding"`
}

// LoginInput is the password prompt.
type LoginInput struct {
	Password string `tui:"title=Password,type=password,validate=required"`
}

// Options feeds select fields whose tag names a source with "options=@name".
type Options map[string][]string

// AutoForm generates a huh.Form from a struct pointer using reflection.
// It parses the `tui:"..."` tag to configure field properties. Only string
// fields are supported: a field with options becomes a select, anything
// else a text input.
func AutoForm(v any, sources Options) *huh.Form {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		panic("AutoForm requires a pointer to a struct")
	}

	el := val.Elem()
	t := el.Type()
	var fields []huh.Field

	for i := 0; i < el.NumField(); i++ {
		field := el.Field(i)
		fieldType := t.Field(i)
		tag := fieldType.Tag.Get("tui")
		if tag == "" || field.Kind() != reflect.String {
			continue
		}

		props := parseTag(tag)
		title := props["title"]
		if title == "" {
			title = fieldType.Name
		}
		desc := props["desc"]
		target := field.Addr().Interface().(*string)

		if optsStr, ok := props["options"]; ok {
			sel := huh.NewSelect[string]().
				Title(title).
				Description(desc).
				Options(selectOptions(optsStr, sources)...).
				Value(target)
			fields = append(fields, sel)
			continue
		}

		input := huh.NewInput().
			Title(title).
			Description(desc).
			Value(target)
		if props["type"] == "password" {
			input.EchoMode(huh.EchoModePassword)
		}
		if vKey, ok := props["validate"]; ok {
			if validator, exists := Validators[vKey]; exists {
				input.Validate(validator)
			}
		}
		fields = append(fields, input)
	}

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithTheme(huh.ThemeBase16())
}

// selectOptions resolves "a|b|c" or "@source". Entries may be "Label:Value".
func selectOptions(list string, sources Options) []huh.Option[string] {
	var values []string
	if name, ok := strings.CutPrefix(list, "@"); ok {
		values = sources[name]
	} else {
		values = strings.Split(list, "|")
	}

	opts := make([]huh.Option[string], 0, len(values))
	for _, o := range values {
		label, value, found := strings.Cut(o, ":")
		if !found {
			value = o
		}
		opts = append(opts, huh.NewOption(strings.TrimSpace(label), strings.TrimSpace(value)))
	}
	return opts
}

// Helper to parse "key=val,key2=val2"
func parseTag(tag string) map[string]string {
	res := make(map[string]string)
	for _, part := range strings.Split(tag, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 {
			res[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	return res
}

// Validator Registry
var Validators = map[string]func(string) error{
	"required": func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("this field is required")
		}
		return nil
	},
}
