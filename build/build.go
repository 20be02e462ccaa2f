// Package build runs the basalt pipeline: parse, check, generate, optimize
// and split. The CLI and the language server drive the compiler through it.
package build

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tliron/commonlog"

	"github.com/neverUsedGithub/basalt/catalogue"
	"github.com/neverUsedGithub/basalt/codegen"
	"github.com/neverUsedGithub/basalt/compiler"
	"github.com/neverUsedGithub/basalt/df"
	"github.com/neverUsedGithub/basalt/manifest"
	"github.com/neverUsedGithub/basalt/optimizer"
	"github.com/neverUsedGithub/basalt/splitter"
	"github.com/neverUsedGithub/basalt/typecheck"
)

var log = commonlog.GetLogger("basalt.build")

// Options configures one compilation.
type Options struct {
	Mode      compiler.Mode
	Catalogue *catalogue.Catalogue // nil means catalogue.Builtin()
	Optimize  bool
	Budget    int
	Costs     splitter.Costs
}

// DefaultOptions compiles strictly with the built-in catalogue, the
// optimizer on and the default plot size.
func DefaultOptions() Options {
	return Options{
		Mode:     compiler.Strict,
		Optimize: true,
		Budget:   manifest.DefaultSize,
		Costs:    splitter.DefaultCosts,
	}
}

// Output is everything one compilation produced.
type Output struct {
	Program *compiler.Program
	Checked *typecheck.Result
	// Generated holds the rows as the code generator emitted them.
	Generated []*df.Row
	// Rows holds the final rows, optimized and split.
	Rows  []*df.Row
	Stats optimizer.Stats
	// Diagnostics holds every diagnostic of a tolerant compilation.
	Diagnostics compiler.Diagnostics
}

// Compile runs the whole pipeline over src. Strict compilations return the
// first diagnostic as the error. Tolerant compilations collect every
// diagnostic in the output and stop before code generation if there were
// any, returning them combined as the error.
func Compile(src *compiler.Source, opts Options) (*Output, error) {
	cat := opts.Catalogue
	if cat == nil {
		cat = catalogue.Builtin()
	}
	start := time.Now()
	out := &Output{}

	prog, diags := compiler.Parse(src, opts.Mode)
	out.Program = prog
	out.Diagnostics = append(out.Diagnostics, diags...)
	if prog == nil || (opts.Mode == compiler.Strict && len(diags) > 0) {
		return out, firstOrAll(out.Diagnostics)
	}

	res, err := typecheck.Check(prog, cat, opts.Mode)
	out.Checked = res
	if err != nil {
		return out, err
	}
	out.Diagnostics = append(out.Diagnostics, res.Diagnostics...)
	if len(out.Diagnostics) > 0 {
		return out, out.Diagnostics.Err()
	}

	rows, err := codegen.Generate(prog, res)
	if err != nil {
		return out, err
	}
	out.Generated = rows

	if opts.Optimize {
		rows, out.Stats = optimizer.New(cat).Optimize(rows)
	}

	split, err := splitter.New(opts.Budget, opts.Costs)
	if err != nil {
		return out, err
	}
	out.Rows = split.Split(rows)

	log.Infof("compiled %s into %d rows (%d generated) in %s", src.Path, len(out.Rows), len(out.Generated), time.Since(start))
	return out, nil
}

func firstOrAll(ds compiler.Diagnostics) error {
	switch len(ds) {
	case 0:
		return nil
	case 1:
		return ds[0]
	}
	return ds.Err()
}

// Check parses and checks src tolerantly and returns every diagnostic.
// The result is nil only when the source could not be parsed at all.
func Check(src *compiler.Source, cat *catalogue.Catalogue) (*typecheck.Result, compiler.Diagnostics) {
	if cat == nil {
		cat = catalogue.Builtin()
	}
	prog, diags := compiler.Parse(src, compiler.Tolerant)
	if prog == nil {
		return nil, diags
	}
	res, err := typecheck.Check(prog, cat, compiler.Tolerant)
	if err != nil {
		// tolerant checks never unwind
		return nil, append(diags, compiler.Errorf(compiler.KindInternal, prog.Span(), "%v", err))
	}
	return res, append(diags, res.Diagnostics...)
}

// ProjectOptions derives compile options from a manifest, loading the
// project's catalogue.
func ProjectOptions(m *manifest.Manifest) (Options, error) {
	mode, err := compiler.ParseMode(m.Build.Mode)
	if err != nil {
		return Options{}, fmt.Errorf("build: %w", err)
	}
	opts := Options{
		Mode:     mode,
		Optimize: m.Optimize(),
		Budget:   m.Plot.Size,
		Costs:    splitter.Costs{Block: m.Cost.Block, Bracket: m.Cost.Bracket},
	}
	if path := m.CataloguePath(); path != "" {
		cat, err := catalogue.Load(path)
		if err != nil {
			return Options{}, fmt.Errorf("build: %w", err)
		}
		opts.Catalogue = cat
	}
	return opts, nil
}

// LoadSource reads a source file.
func LoadSource(path string) (*compiler.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return compiler.NewSource(path, string(data)), nil
}

// CompileProject compiles the project's entry file. The source is returned
// alongside so callers can format diagnostics.
func CompileProject(m *manifest.Manifest) (*Output, *compiler.Source, error) {
	opts, err := ProjectOptions(m)
	if err != nil {
		return nil, nil, err
	}
	src, err := LoadSource(m.EntryPath())
	if err != nil {
		return nil, nil, err
	}
	out, err := Compile(src, opts)
	return out, src, err
}

// WriteArtifact writes the canonical CBOR snapshot of out's rows to the
// project's output path and returns the number of bytes written.
func WriteArtifact(m *manifest.Manifest, out *Output) (int, error) {
	data, err := df.MarshalSnapshot(df.NewSnapshot(m.Project.Name, out.Rows))
	if err != nil {
		return 0, fmt.Errorf("build: encode artifact: %w", err)
	}
	path := m.OutputPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("build: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("build: %w", err)
	}
	log.Infof("wrote %s (%s)", path, humanize.Bytes(uint64(len(data))))
	return len(data), nil
}

// ReadArtifact loads the rows of a build artifact.
func ReadArtifact(path string) (*df.Snapshot, []*df.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	snap, err := df.UnmarshalSnapshot(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	rows, err := snap.Decode()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, rows, nil
}
