// MIT License

// Copyright (c) 2018 Akhil Indurti

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:

// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.

// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// This CLI utility formats market commentary, serves the public site
// and manages its posts.
//
// Usage:
//   slayer [command]
//
// Available Commands:
//   blocks      Dump the block tree of a post body
//   export      Write every post to an xz-compressed backup
//   help        Help about any command
//   html        HTML output generator for post bodies
//   import      Restore posts from a backup
//   post        Create, edit, inspect and delete posts
//   preview     Render a post body for the terminal
//   serve       Serve the public site
//
// Flags:
//   -c, --config string   path to slayer.toml (default "slayer.toml")
//       --debug           enable debug logging
//   -h, --help            help for slayer
//
// Use "slayer [command] --help" for more information about a command.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"slayer.id/slayer/ast"
	"slayer.id/slayer/gen/ansi"
	"slayer.id/slayer/gen/html"
	"slayer.id/slayer/parser"
)

func prefix(msg string, err error) error {
	return errors.New(msg + err.Error())
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	e := &env{}
	rootCmd := &cobra.Command{
		Use:   "slayer",
		Short: "formatting, publishing and serving for market commentary",
		Long: `This CLI utility formats market commentary, serves the public site
and manages its posts.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&e.configPath, "config", "c", "slayer.toml", "path to slayer.toml")
	rootCmd.PersistentFlags().BoolVar(&e.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		htmlCmd(),
		blocksCmd(),
		previewCmd(),
		serveCmd(e),
		postCmd(e),
		exportCmd(e),
		importCmd(e),
	)
	return rootCmd
}

// readDoc parses the file named by args, or standard input.
func readDoc(cmd *cobra.Command, args []string) (*ast.Document, error) {
	var src io.Reader = cmd.InOrStdin()
	if len(args) != 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		src = f
	}
	return parser.Parse(src)
}

func htmlCmd() *cobra.Command {
	var outputfile, filter string
	var timeout time.Duration
	prefixHTML := "(HTML) "
	htmlCmd := &cobra.Command{
		Use:   "html [input] [-o output]",
		Short: "HTML output generator for post bodies",
		Long: `This command formats a post body and converts it to HTML.
Each line becomes one block: a heading, quote, list item, paragraph
or spacer. Text is escaped, and links are labelled with their host.
A filter command, split according to the Bourne shell's word-splitting
rules, may post-process the generated HTML.

If no input file is specified, input is read from
standard input. Similarly, if no output argument is
specified, output is written to standard output.`,
		Args:                  cobra.MaximumNArgs(1),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDoc(cmd, args)
			if err != nil {
				return prefix(prefixHTML, err)
			}
			out := cmd.OutOrStdout()
			if len(outputfile) != 0 {
				f, err := os.Create(outputfile)
				if err != nil {
					return prefix(prefixHTML, err)
				}
				defer f.Close()
				out = f
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > -1 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			g := html.GenContext(ctx, doc)
			g.Stdout = out
			g.Stderr = cmd.ErrOrStderr()
			g.Filter = filter
			if err := g.Run(); err != nil {
				return prefix(prefixHTML, err)
			}
			return nil
		},
	}
	htmlCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		if err != nil {
			return prefix(prefixHTML, err)
		}
		return nil
	})
	// pflag includes the argument type when it unquotes its usage.
	// To prevent this behavior we prefix the usage with backquotes ``.
	htmlCmd.Flags().StringVarP(&outputfile, "output", "o", "", "``name of the output file")
	htmlCmd.Flags().DurationVarP(&timeout, "timeout", "t", -1, "``timeout used to halt generator for long-running filters")
	htmlCmd.Flags().StringVarP(&filter, "filter", "f", "", "``command the generated HTML is piped through")
	// Set string version of default value to be zero-value to prevent it from being printed by FlagUsages.
	htmlCmd.Flags().Lookup("timeout").DefValue = "0"
	return htmlCmd
}

func blocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocks [input]",
		Short: "Dump the block tree of a post body",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDoc(cmd, args)
			if err != nil {
				return prefix("(BLOCKS) ", err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), litter.Sdump(doc.Blocks)+"\n")
			return err
		},
	}
}

func previewCmd() *cobra.Command {
	var width int
	var style string
	previewCmd := &cobra.Command{
		Use:   "preview [input] [-w width] [--style name]",
		Short: "Render a post body for the terminal",
		Long: `This command renders a post body the way a reader would see it,
styled for the terminal.

Styles are glamour's standard styles (dark, light, notty, ...) or
"auto" to pick one from the terminal's background.`,
		Args:                  cobra.MaximumNArgs(1),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDoc(cmd, args)
			if err != nil {
				return prefix("(PREVIEW) ", err)
			}
			out, err := ansi.Render(doc, ansi.WithWidth(width), ansi.WithStyle(style))
			if err != nil {
				return prefix("(PREVIEW) ", err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	previewCmd.Flags().IntVarP(&width, "width", "w", 80, "``wrap width in columns")
	previewCmd.Flags().StringVar(&style, "style", "auto", "``glamour style name")
	return previewCmd
}
