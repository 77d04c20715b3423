package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/versa-dev/versa/internal/jsonc"
)

// Alias maps an import prefix to a project directory, e.g. "@/*" -> "/src/*".
// A trailing "*" on both sides is stripped: Prefix "@/" and Target "/src/".
type Alias struct {
	Key      string
	Prefix   string
	Target   string
	Wildcard bool
}

// AliasTable is an ordered list of aliases, in configuration order.
type AliasTable []Alias

// Match returns the alias matching the specifier. The longest prefix wins;
// between prefixes of the same length the earlier entry wins.
func (t AliasTable) Match(specifier string) (Alias, bool) {
	var (
		best  Alias
		found bool
	)
	for _, a := range t {
		if !a.matches(specifier) {
			continue
		}
		if !found || len(a.Prefix) > len(best.Prefix) {
			best = a
			found = true
		}
	}
	return best, found
}

func (a Alias) matches(specifier string) bool {
	if a.Wildcard {
		return strings.HasPrefix(specifier, a.Prefix)
	}
	return specifier == a.Prefix || strings.HasPrefix(specifier, a.Prefix+"/")
}

// Apply substitutes the alias prefix of the specifier with the alias target.
func (a Alias) Apply(specifier string) string {
	rest := strings.TrimPrefix(specifier, a.Prefix)
	if !a.Wildcard && rest != "" {
		return strings.TrimSuffix(a.Target, "/") + rest
	}
	return a.Target + rest
}

// NewAlias creates an alias from a configuration entry such as "@/*": "/src/*".
func NewAlias(key string, target string) (Alias, error) {
	if key == "" || key == "*" {
		return Alias{}, fmt.Errorf("invalid alias key %q", key)
	}
	if target == "" {
		return Alias{}, fmt.Errorf("alias %q has an empty target", key)
	}
	keyWildcard := strings.HasSuffix(key, "*")
	targetWildcard := strings.HasSuffix(target, "*")
	if keyWildcard != targetWildcard {
		return Alias{}, fmt.Errorf("alias %q: wildcard must appear in both key and target", key)
	}
	if strings.Count(key, "*") > 1 || strings.Count(target, "*") > 1 {
		return Alias{}, fmt.Errorf("alias %q: only a single trailing wildcard is supported", key)
	}
	return Alias{
		Key:      key,
		Prefix:   strings.TrimSuffix(key, "*"),
		Target:   strings.TrimSuffix(target, "*"),
		Wildcard: keyWildcard,
	}, nil
}

// ParseAliasJSON parses an alias table from a JSON(C) object. Values are either
// a string or a non-empty array of strings (the tsconfig `paths` form, of which
// the first element is used). Key order is preserved.
func ParseAliasJSON(data []byte) (AliasTable, error) {
	var obj jsonc.Object
	if err := obj.UnmarshalJSON(jsonc.Strip(data)); err != nil {
		return nil, &ConfigError{Source: "alias", Err: err}
	}
	table := make(AliasTable, 0, obj.Len())
	for _, key := range obj.Keys() {
		v, _ := obj.Get(key)
		target, err := aliasTarget(v)
		if err != nil {
			return nil, &ConfigError{Source: "alias", Err: fmt.Errorf("%q: %w", key, err)}
		}
		alias, err := NewAlias(key, target)
		if err != nil {
			return nil, &ConfigError{Source: "alias", Err: err}
		}
		table = append(table, alias)
	}
	return table, nil
}

func aliasTarget(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s, nil
			}
		}
	}
	return "", errors.New("alias target must be a string or an array of strings")
}

// ConfigError reports configuration that is not valid structured data.
// It is fatal for a whole resolution pass.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s config: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
