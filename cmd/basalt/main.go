// Basalt CLI - compiles basalt programs into DiamondFire code templates
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/neverUsedGithub/basalt/build"
	"github.com/neverUsedGithub/basalt/compiler"
	"github.com/neverUsedGithub/basalt/manifest"

	_ "github.com/tliron/commonlog/simple"
)

var verbosity int

// errReported marks failures whose details were already printed.
var errReported = errors.New("compilation failed")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "basalt",
		Short:         "Compile basalt programs into DiamondFire code templates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			commonlog.Configure(verbosity, nil)
		},
	}
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (repeatable)")

	root.AddCommand(
		newInitCommand(),
		newBuildCommand(),
		newCheckCommand(),
		newDumpCommand(),
		newTemplateCommand(),
		newDecodeCommand(),
		newUploadCommand(),
		newLSPCommand(),
	)
	return root
}

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init <name> [dir]",
		Short: "Create a new project",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, dir := args[0], args[0]
			if len(args) == 2 {
				dir = args[1]
			}
			if err := manifest.Init(dir, name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s in %s\n", name, dir)
			return nil
		},
	}
}

// loadProject finds the manifest governing dir.
func loadProject(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("no %s found in %s or its parents", manifest.FileName, dir)
	}
	return m, nil
}

// report prints the diagnostics behind a failed compilation.
func report(cmd *cobra.Command, src *compiler.Source, out *build.Output, err error) error {
	if err == nil {
		return nil
	}
	var diags compiler.Diagnostics
	var d *compiler.Diagnostic
	switch {
	case out != nil && len(out.Diagnostics) > 0:
		diags = out.Diagnostics
	case errors.As(err, &d):
		diags = compiler.Diagnostics{d}
	}
	if src == nil || len(diags) == 0 {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), src.FormatAll(diags))
	return errReported
}
