package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/versa-dev/versa/internal/jsonc"
)

// configFiles are looked up in the project root, in this order.
var configFiles = []string{"versa.json", "versa.jsonc", "versa.toml"}

// File represents the project configuration file.
type File struct {
	SourceRoot string          `json:"sourceRoot" toml:"sourceRoot"`
	DistRoot   string          `json:"distRoot" toml:"distRoot"`
	Production bool            `json:"production" toml:"production"`
	Port       uint16          `json:"port" toml:"port"`
	LogLevel   string          `json:"logLevel" toml:"logLevel"`
	LogFile    string          `json:"logFile" toml:"logFile"`
	Include    []string        `json:"include" toml:"include"`
	Exclude    []string        `json:"exclude" toml:"exclude"`
	Alias      json.RawMessage `json:"alias" toml:"-"`
	// Path is the file the configuration was read from, empty for defaults.
	Path string `json:"-" toml:"-"`
}

// Load reads the project configuration from dir, then applies the `.env` file
// and the VERSA_* environment variables on top of it. A missing configuration
// file is not an error.
func Load(dir string) (*File, error) {
	f := &File{}
	for _, name := range configFiles {
		filename := filepath.Join(dir, name)
		data, err := os.ReadFile(filename)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("fail to read config file: %w", err)
		}
		if strings.HasSuffix(name, ".toml") {
			err = decodeTOML(data, f)
		} else {
			err = jsonc.Unmarshal(data, f)
		}
		if err != nil {
			return nil, &ConfigError{Source: name, Err: err}
		}
		f.Path = filename
		break
	}
	if f.Alias == nil {
		alias, err := tsconfigPaths(dir)
		if err != nil {
			return nil, err
		}
		f.Alias = alias
	}
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	f.applyEnv()
	normalizeFile(f)
	return f, nil
}

// Options converts the file into TransformConfig options rooted at dir.
func (f *File) Options(dir string) Options {
	opts := Options{
		ProjectRoot: dir,
		SourceRoot:  f.SourceRoot,
		DistRoot:    f.DistRoot,
		Production:  f.Production,
	}
	if len(f.Alias) > 0 {
		opts.AliasJSON = f.Alias
	}
	return opts
}

func (f *File) applyEnv() {
	if v := os.Getenv("VERSA_ALIAS"); v != "" {
		f.Alias = json.RawMessage(v)
	}
	if v := os.Getenv("VERSA_SOURCE"); v != "" {
		f.SourceRoot = v
	}
	if v := os.Getenv("VERSA_DIST"); v != "" {
		f.DistRoot = v
	}
	if v := os.Getenv("VERSA_PRODUCTION"); v != "" {
		f.Production, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("VERSA_PORT"); v != "" {
		if p, e := strconv.Atoi(v); e == nil && p > 0 && p < 65536 {
			f.Port = uint16(p)
		}
	}
	if v := os.Getenv("VERSA_LOG_LEVEL"); v != "" {
		f.LogLevel = v
	}
}

func normalizeFile(f *File) {
	if f.SourceRoot == "" {
		f.SourceRoot = DefaultSourceRoot
	}
	if f.DistRoot == "" {
		f.DistRoot = "dist"
	}
	if f.Port == 0 {
		f.Port = 3000
	}
	if f.LogLevel == "" {
		f.LogLevel = "info"
	}
	if len(f.Include) == 0 {
		f.Include = []string{"**.js", "**.mjs", "**.ts", "**.mts"}
	}
	if len(f.Exclude) == 0 {
		f.Exclude = []string{"**.d.ts", "**/node_modules/**"}
	}
}

// decodeTOML decodes a TOML config. The `[alias]` table is re-encoded as a JSON
// object in definition order, so it goes through the same parser as JSON.
func decodeTOML(data []byte, f *File) error {
	var raw struct {
		Alias map[string]any `toml:"alias"`
	}
	if _, err := toml.Decode(string(data), f); err != nil {
		return err
	}
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return err
	}
	if raw.Alias == nil {
		return nil
	}
	var buf strings.Builder
	buf.WriteByte('{')
	n := 0
	for _, key := range md.Keys() {
		if len(key) != 2 || key[0] != "alias" {
			continue
		}
		k, err := json.Marshal(key[1])
		if err != nil {
			return err
		}
		v, err := json.Marshal(raw.Alias[key[1]])
		if err != nil {
			return err
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		n++
	}
	buf.WriteByte('}')
	f.Alias = json.RawMessage(buf.String())
	return nil
}

// tsconfigPaths reads `compilerOptions.paths` from tsconfig.json, rebased on
// `compilerOptions.baseUrl` as a web-root path.
func tsconfigPaths(dir string) (json.RawMessage, error) {
	data, err := os.ReadFile(filepath.Join(dir, "tsconfig.json"))
	if err != nil {
		return nil, nil
	}
	var tsconfig struct {
		CompilerOptions struct {
			BaseURL string          `json:"baseUrl"`
			Paths   json.RawMessage `json:"paths"`
		} `json:"compilerOptions"`
	}
	if err := jsonc.Unmarshal(data, &tsconfig); err != nil {
		return nil, &ConfigError{Source: "tsconfig.json", Err: err}
	}
	paths := tsconfig.CompilerOptions.Paths
	if len(paths) == 0 {
		return nil, nil
	}
	table, err := ParseAliasJSON(paths)
	if err != nil {
		return nil, err
	}
	base := "/" + strings.Trim(filepath.ToSlash(filepath.Clean(tsconfig.CompilerOptions.BaseURL)), "./")
	var buf strings.Builder
	buf.WriteByte('{')
	for i, a := range table {
		target := a.Target
		if !strings.HasPrefix(target, "/") {
			target = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(target, "./")
		}
		if a.Wildcard {
			target += "*"
		}
		k, _ := json.Marshal(a.Key)
		v, _ := json.Marshal(target)
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return json.RawMessage(buf.String()), nil
}
