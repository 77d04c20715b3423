package hmr

import (
	"context"
	"testing"

	"github.com/versa-dev/versa/internal/config"
	"github.com/versa-dev/versa/internal/jsparser"
	"github.com/versa-dev/versa/internal/resolver"
)

func parse(t *testing.T, filename string, src string) *jsparser.Module {
	t.Helper()
	mod, err := jsparser.Parse(context.Background(), filename, []byte(src))
	if err != nil {
		t.Fatalf("parse %s: %v", filename, err)
	}
	return mod
}

func newConfig(aliasJSON string, distRoot string) *config.TransformConfig {
	return config.New(config.Options{
		AliasJSON:   []byte(aliasJSON),
		ProjectRoot: ".",
		DistRoot:    distRoot,
	})
}

func newResolver(cfg *config.TransformConfig) *resolver.Resolver {
	return resolver.New(cfg)
}
