package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/kiln/internal/ctxlog"
	"github.com/vk/kiln/internal/fsutil"
)

// File is the schema of a kiln configuration. A configuration may be split
// over several .hcl files in one directory; they are merged before decoding.
type File struct {
	Project        *ProjectBlock      `hcl:"project,block"`
	PropertiesExpr hcl.Expression     `hcl:"properties,optional"`
	Managed        map[string]string  `hcl:"managed,optional"`
	Dependencies   *DependenciesBlock `hcl:"dependencies,block"`
	Cache          *CacheBlock        `hcl:"cache,block"`
	Resolver       *ResolverBlock     `hcl:"resolver,block"`
	Repositories   []*RepositoryBlock `hcl:"repository,block"`

	// Properties holds PropertiesExpr evaluated in declaration order.
	Properties []Property
}

// Property is one entry of the properties map.
type Property struct {
	Name  string
	Value string
}

// ProjectBlock names the project being built.
type ProjectBlock struct {
	Group    string `hcl:"group"`
	Artifact string `hcl:"artifact"`
	Version  string `hcl:"version"`
}

// DependenciesBlock lists coordinate strings per scope.
type DependenciesBlock struct {
	Compile  []string `hcl:"compile,optional"`
	Provided []string `hcl:"provided,optional"`
	Runtime  []string `hcl:"runtime,optional"`
	Test     []string `hcl:"test,optional"`
	System   []string `hcl:"system,optional"`
	Build    []string `hcl:"build,optional"`
}

// CacheBlock configures the primary and secondary cache roots. Setting
// secondary to "" disables the secondary root.
type CacheBlock struct {
	Root            string  `hcl:"root,optional"`
	Layout          string  `hcl:"layout,optional"`
	Secondary       *string `hcl:"secondary,optional"`
	SecondaryLayout string  `hcl:"secondary_layout,optional"`
}

// ResolverBlock tunes the dependency walk.
type ResolverBlock struct {
	Workers      int    `hcl:"workers,optional"`
	FetchTimeout string `hcl:"fetch_timeout,optional"`
	Offline      bool   `hcl:"offline,optional"`
}

// RepositoryBlock declares a remote repository: either an HTTP url or an s3
// block.
type RepositoryBlock struct {
	Name string   `hcl:"name,label"`
	URL  string   `hcl:"url,optional"`
	S3   *S3Block `hcl:"s3,block"`
}

// S3Block locates a repository stored in an S3 compatible bucket.
type S3Block struct {
	Endpoint  string `hcl:"endpoint"`
	Bucket    string `hcl:"bucket"`
	Prefix    string `hcl:"prefix,optional"`
	Region    string `hcl:"region,optional"`
	AccessKey string `hcl:"access_key,optional"`
	SecretKey string `hcl:"secret_key,optional"`
	UseSSL    *bool  `hcl:"use_ssl,optional"`
}

// Decode parses and merges the HCL files at paths. env is exposed to
// expressions as env.NAME.
func Decode(ctx context.Context, paths []string, env map[string]string) (*File, error) {
	logger := ctxlog.FromContext(ctx)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no configuration files given")
	}

	parser := hclparse.NewParser()
	files := make([]*hcl.File, 0, len(paths))
	for _, path := range paths {
		f, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
		}
		files = append(files, f)
	}
	logger.Debug("Parsed configuration files.", "count", len(files))

	var out File
	body := hcl.MergeFiles(files)
	ectx := evalContext(env)
	if diags := gohcl.DecodeBody(body, ectx, &out); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode configuration: %w", diags)
	}
	props, diags := decodeProperties(out.PropertiesExpr, ectx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode properties: %w", diags)
	}
	out.Properties = props
	return &out, nil
}

// decodeProperties walks a properties map literal in source order. A missing
// or null attribute decodes to no properties.
func decodeProperties(expr hcl.Expression, ectx *hcl.EvalContext) ([]Property, hcl.Diagnostics) {
	if expr == nil {
		return nil, nil
	}
	pairs, diags := hcl.ExprMap(expr)
	if diags.HasErrors() {
		if v, vdiags := expr.Value(ectx); !vdiags.HasErrors() && v.IsNull() {
			return nil, nil
		}
		return nil, diags
	}
	props := make([]Property, 0, len(pairs))
	seen := make(map[string]bool, len(pairs))
	for _, pair := range pairs {
		var name, value string
		diags = append(diags, gohcl.DecodeExpression(pair.Key, ectx, &name)...)
		diags = append(diags, gohcl.DecodeExpression(pair.Value, ectx, &value)...)
		if diags.HasErrors() {
			return nil, diags
		}
		if seen[name] {
			return nil, append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate property",
				Detail:   fmt.Sprintf("Property %q is declared more than once.", name),
				Subject:  pair.Key.Range().Ptr(),
			})
		}
		seen[name] = true
		props = append(props, Property{Name: name, Value: value})
	}
	return props, diags
}

// DecodePath decodes path, which is either one .hcl file or a directory whose
// .hcl files are merged in lexical order.
func DecodePath(ctx context.Context, path string, env map[string]string) (*File, error) {
	paths, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to find configuration at %s: %w", path, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %s", path)
	}
	return Decode(ctx, paths, env)
}

func evalContext(env map[string]string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(env))
	for k, v := range env {
		if hclsyntaxIdentifier(k) {
			vars[k] = cty.StringVal(v)
		}
	}
	envVal := cty.EmptyObjectVal
	if len(vars) > 0 {
		envVal = cty.ObjectVal(vars)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": envVal},
	}
}

// hclsyntaxIdentifier reports whether name can be written as env.NAME.
func hclsyntaxIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r == '-' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
