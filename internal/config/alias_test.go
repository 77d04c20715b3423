package config

import (
	"errors"
	"testing"
)

func TestAliasTableMatch(t *testing.T) {
	table, err := ParseAliasJSON([]byte(`{
		"@/*": "/src/*",
		"@/components/*": "/src/ui/*",
		"~": "/src",
		"~lib/*": "/lib/*",
	}`))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		specifier string
		key       string
		result    string
		ok        bool
	}{
		{"@/utils/helper.ts", "@/*", "/src/utils/helper.ts", true},
		{"@/components/Button.vue", "@/components/*", "/src/ui/Button.vue", true},
		{"~", "~", "/src", true},
		{"~/main.ts", "~", "/src/main.ts", true},
		{"~lib/a", "~lib/*", "/lib/a", true},
		{"~other", "", "", false},
		{"vue", "", "", false},
		{"./local", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.specifier, func(t *testing.T) {
			a, ok := table.Match(tt.specifier)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if !ok {
				return
			}
			if a.Key != tt.key {
				t.Errorf("expected key %q, got %q", tt.key, a.Key)
			}
			if got := a.Apply(tt.specifier); got != tt.result {
				t.Errorf("expected %q, got %q", tt.result, got)
			}
		})
	}
}

func TestAliasTableMatchTieKeepsOrder(t *testing.T) {
	table := AliasTable{
		{Key: "#a/*", Prefix: "#a/", Target: "/first/", Wildcard: true},
		{Key: "#a/*", Prefix: "#a/", Target: "/second/", Wildcard: true},
	}
	a, ok := table.Match("#a/x")
	if !ok || a.Target != "/first/" {
		t.Fatalf("expected the first entry to win, got %+v", a)
	}
}

func TestParseAliasJSONTsconfigPaths(t *testing.T) {
	table, err := ParseAliasJSON([]byte(`{
		// tsconfig style
		"@/*": ["./src/*", "./other/*"]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 1 || table[0].Target != "./src/" || !table[0].Wildcard {
		t.Fatalf("unexpected table: %+v", table)
	}
}

func TestParseAliasJSONErrors(t *testing.T) {
	for _, input := range []string{
		`{"@/*": `,
		`["@/*"]`,
		`{"@/*": 1}`,
		`{"@/*": "/src"}`,
		`{"": "/src"}`,
	} {
		_, err := ParseAliasJSON([]byte(input))
		var cerr *ConfigError
		if !errors.As(err, &cerr) {
			t.Errorf("%s: expected a ConfigError, got %v", input, err)
		}
	}
}
