package config

import (
	"path/filepath"
	"strings"
)

const (
	// DefaultCoreDefinitionRatio is the minimum share of import/export nodes among
	// the top-level nodes of a file for it to count as a re-export aggregator.
	DefaultCoreDefinitionRatio = 0.7
	// DefaultCoreDefinitionMinNodes is the minimum number of top-level nodes a file
	// must have before the aggregator ratio is computed at all.
	DefaultCoreDefinitionMinNodes = 2
	// DefaultSourceRoot is the source directory that the dist root mirrors.
	DefaultSourceRoot = "src"
)

// Options holds the inputs of a TransformConfig.
type Options struct {
	// AliasJSON is a raw alias table (a JSON object). It takes precedence over
	// Aliases. A malformed table is reported by TransformConfig.Aliases.
	AliasJSON              []byte
	Aliases                AliasTable
	ProjectRoot            string
	SourceRoot             string
	DistRoot               string
	Production             bool
	CoreDefinitionRatio    float64
	CoreDefinitionMinNodes int
}

// TransformConfig is the immutable configuration passed into every transform
// entry point. It is built once by the caller and safe for concurrent use.
type TransformConfig struct {
	aliases      AliasTable
	aliasErr     error
	projectRoot  string
	sourceRoot   string
	distRoot     string
	production   bool
	coreRatio    float64
	coreMinNodes int
}

// New creates a TransformConfig. It never fails: an invalid alias table is
// recorded and returned by Aliases, so that a resolution pass can report it.
func New(opts Options) *TransformConfig {
	c := &TransformConfig{
		projectRoot:  opts.ProjectRoot,
		sourceRoot:   strings.Trim(filepath.ToSlash(opts.SourceRoot), "/"),
		distRoot:     strings.Trim(filepath.ToSlash(opts.DistRoot), "/"),
		production:   opts.Production,
		coreRatio:    opts.CoreDefinitionRatio,
		coreMinNodes: opts.CoreDefinitionMinNodes,
	}
	if opts.AliasJSON != nil {
		c.aliases, c.aliasErr = ParseAliasJSON(opts.AliasJSON)
	} else {
		c.aliases = append(AliasTable(nil), opts.Aliases...)
	}
	if c.projectRoot == "" {
		c.projectRoot = "."
	}
	if c.sourceRoot == "" {
		c.sourceRoot = DefaultSourceRoot
	}
	if c.coreRatio <= 0 {
		c.coreRatio = DefaultCoreDefinitionRatio
	}
	if c.coreMinNodes <= 0 {
		c.coreMinNodes = DefaultCoreDefinitionMinNodes
	}
	return c
}

// Aliases returns the alias table, or the ConfigError recorded when the table
// could not be parsed.
func (c *TransformConfig) Aliases() (AliasTable, error) {
	if c.aliasErr != nil {
		return nil, c.aliasErr
	}
	return c.aliases, nil
}

// ProjectRoot is the directory holding `node_modules` and the web root.
func (c *TransformConfig) ProjectRoot() string { return c.projectRoot }

// SourceRoot is the source directory, relative to the project root.
func (c *TransformConfig) SourceRoot() string { return c.sourceRoot }

// DistRoot is the output directory, relative to the project root.
func (c *TransformConfig) DistRoot() string { return c.distRoot }

// Production reports whether output targets production.
func (c *TransformConfig) Production() bool { return c.production }

// CoreDefinitionRatio returns the aggregator ratio threshold.
func (c *TransformConfig) CoreDefinitionRatio() float64 { return c.coreRatio }

// CoreDefinitionMinNodes returns the aggregator minimum node count.
func (c *TransformConfig) CoreDefinitionMinNodes() int { return c.coreMinNodes }
