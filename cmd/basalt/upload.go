package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/neverUsedGithub/basalt/build"
	"github.com/neverUsedGithub/basalt/catalogue"
	"github.com/neverUsedGithub/basalt/codeclient"
	"github.com/neverUsedGithub/basalt/df"
	"github.com/neverUsedGithub/basalt/manifest"
	"github.com/neverUsedGithub/basalt/server"
)

func newUploadCommand() *cobra.Command {
	var (
		url     string
		mode    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "upload [dir]",
		Short: "Compile a project and place it on the plot through CodeClient",
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
			codes, err := df.EncodeTemplates(out.Rows)
			if err != nil {
				return err
			}

			if url == "" {
				url = m.CodeClient.URL
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			fmt.Fprintf(cmd.OutOrStdout(), "Connecting to %s, confirm in game if asked\n", url)
			client, err := codeclient.Dial(ctx, url, codeclient.Options{TokenFile: m.CodeClient.TokenFile})
			if err != nil {
				return err
			}
			defer client.Close()

			if mode != "" {
				if err := client.SetMode(ctx, codeclient.ModeDev); err != nil {
					return err
				}
			}
			if err := client.Place(ctx, codes); err != nil {
				return err
			}
			if mode != "" && mode != codeclient.ModeDev {
				if err := client.SetMode(ctx, mode); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Placed %d templates\n", len(codes))
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "CodeClient websocket address (default from the project)")
	cmd.Flags().StringVar(&mode, "mode", codeclient.ModePlay, "Mode to switch to after placing: play, dev, build, or empty to stay")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Give up after this long")
	return cmd
}

func newLSPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Run the language server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cat *catalogue.Catalogue
			m, err := manifest.FindAndLoad(".")
			if err != nil {
				return err
			}
			if m != nil && m.CataloguePath() != "" {
				if cat, err = catalogue.Load(m.CataloguePath()); err != nil {
					return err
				}
			}
			return server.NewLSP(cat).Run()
		},
	}
}
