package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/neverUsedGithub/basalt/build"
	"github.com/neverUsedGithub/basalt/compiler"
	"github.com/neverUsedGithub/basalt/df"
	"github.com/neverUsedGithub/basalt/manifest"
)

// compileFlags are shared by the commands that compile a single input.
type compileFlags struct {
	tolerant   bool
	noOptimize bool
	budget     int
}

func (f *compileFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.tolerant, "tolerant", false, "Report every error instead of stopping at the first")
	cmd.Flags().BoolVar(&f.noOptimize, "no-optimize", false, "Skip the optimizer")
	cmd.Flags().IntVar(&f.budget, "budget", 0, "Plot size budget per row (default from the project or 50)")
}

// compile compiles a .basalt file, or the project governing a directory.
// Flags override the project's settings.
func (f *compileFlags) compile(cmd *cobra.Command, arg string) (*build.Output, error) {
	var (
		src  *compiler.Source
		opts = build.DefaultOptions()
		err  error
	)

	dir := arg
	if strings.HasSuffix(arg, ".basalt") {
		dir = filepath.Dir(arg)
		if src, err = build.LoadSource(arg); err != nil {
			return nil, err
		}
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	switch {
	case m != nil:
		if opts, err = build.ProjectOptions(m); err != nil {
			return nil, err
		}
		if src == nil {
			if src, err = build.LoadSource(m.EntryPath()); err != nil {
				return nil, err
			}
		}
	case src == nil:
		return nil, fmt.Errorf("%s is neither a .basalt file nor inside a project", arg)
	}

	if f.tolerant {
		opts.Mode = compiler.Tolerant
	}
	if f.noOptimize {
		opts.Optimize = false
	}
	if f.budget > 0 {
		opts.Budget = f.budget
	}

	out, err := build.Compile(src, opts)
	return out, report(cmd, src, out, err)
}

func argOr(args []string, def string) string {
	if len(args) > 0 {
		return args[0]
	}
	return def
}

func newBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build [dir]",
		Short: "Compile a project into its build artifact",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadProject(argOr(args, "."))
			if err != nil {
				return err
			}
			out, src, err := build.CompileProject(m)
			if err := report(cmd, src, out, err); err != nil {
				return err
			}
			n, err := build.WriteArtifact(m, out)
			if err != nil {
				return err
			}
			fp, err := df.Fingerprint(out.Rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Built %s: %d rows, %s, %s\n",
				m.Project.Name, len(out.Rows), humanize.Bytes(uint64(n)), fp[:12])
			return nil
		},
	}
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Type check a file and report every error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := build.LoadSource(args[0])
			if err != nil {
				return err
			}
			_, diags := build.Check(src, nil)
			if len(diags) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", src.Path)
				return nil
			}
			fmt.Fprintln(cmd.ErrOrStderr(), src.FormatAll(diags))
			fmt.Fprintf(cmd.ErrOrStderr(), "\n%s\n", humanize.Plural(len(diags), "error", "errors"))
			return errReported
		},
	}
}

func newDumpCommand() *cobra.Command {
	var flags compileFlags
	var generated bool
	cmd := &cobra.Command{
		Use:   "dump [file|dir]",
		Short: "Print the compiled rows as trees",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := flags.compile(cmd, argOr(args, "."))
			if err != nil {
				return err
			}
			rows := out.Rows
			if generated {
				rows = out.Generated
			}
			fmt.Fprint(cmd.OutOrStdout(), df.DumpAll(rows))
			if !generated {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s from %d generated, optimizer: %d changes in %d sweeps\n",
					humanize.Plural(len(out.Rows), "row", "rows"), len(out.Generated), out.Stats.Changes, out.Stats.Sweeps)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&generated, "generated", false, "Print the rows before optimizing and splitting")
	return cmd
}

func newTemplateCommand() *cobra.Command {
	var flags compileFlags
	cmd := &cobra.Command{
		Use:   "template [file|dir]",
		Short: "Print one template code per compiled row",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := flags.compile(cmd, argOr(args, "."))
			if err != nil {
				return err
			}
			codes, err := df.EncodeTemplates(out.Rows)
			if err != nil {
				return err
			}
			for _, code := range codes {
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <code|artifact>",
		Short: "Print a template code or a build artifact as trees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				snap, rows, err := build.ReadArtifact(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s", snap.Name, df.DumpAll(rows))
				return nil
			}
			row, err := df.DecodeTemplate(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), df.Dump(row))
			return nil
		},
	}
}
