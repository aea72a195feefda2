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

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"slayer.id/slayer/ast"
	"slayer.id/slayer/gen/ansi"
	"slayer.id/slayer/internal/admin"
	"slayer.id/slayer/internal/backup"
	"slayer.id/slayer/internal/blob"
	"slayer.id/slayer/internal/config"
	"slayer.id/slayer/internal/logging"
	"slayer.id/slayer/internal/site"
	"slayer.id/slayer/internal/store"
	"slayer.id/slayer/parser"
)

// env carries the persistent flags to the commands that need configuration.
type env struct {
	configPath string
	debug      bool

	cfg *config.Config
	log *slog.Logger
}

func (e *env) load(cmd *cobra.Command) error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if e.debug {
		level = "debug"
	}
	log, err := logging.New(logging.Config{Level: level, Format: cfg.Log.Format, Out: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	e.cfg, e.log = cfg, log
	log.Debug("config loaded", "path", e.configPath, "database", cfg.Database.Path)
	return nil
}

func (e *env) open(cmd *cobra.Command) (*store.Store, error) {
	if err := e.load(cmd); err != nil {
		return nil, err
	}
	return store.Open(e.cfg.Database.Path)
}

func (e *env) editor(cmd *cobra.Command) (*admin.Editor, *store.Store, error) {
	s, err := e.open(cmd)
	if err != nil {
		return nil, nil, err
	}
	fs, err := blob.NewFS(e.cfg.Media.Dir, e.cfg.Media.BaseURL)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return &admin.Editor{Posts: s, Blobs: fs, Log: e.log}, s, nil
}

// prefixed tags the errors of a command's run function with msg.
func prefixed(msg string, run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := run(cmd, args); err != nil {
			return prefix(msg, err)
		}
		return nil
	}
}

func serveCmd(e *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the public site",
		Args:  cobra.NoArgs,
		RunE: prefixed("(SERVE) ", func(cmd *cobra.Command, _ []string) error {
			s, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			fs, err := blob.NewFS(e.cfg.Media.Dir, e.cfg.Media.BaseURL)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = e.cfg.Server.Addr
			}
			srv := site.New(site.Deps{Posts: s, Media: fs, Origin: e.cfg.Server.Origin, Log: e.log})
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, addr, nil)
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func postCmd(e *env) *cobra.Command {
	c := &cobra.Command{
		Use:   "post",
		Short: "Create, edit, inspect and delete posts",
	}
	c.AddCommand(
		postListCmd(e),
		postSearchCmd(e),
		postShowCmd(e),
		postCreateCmd(e),
		postUpdateCmd(e),
		postDeleteCmd(e),
	)
	return c
}

func postListCmd(e *env) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		Args:  cobra.NoArgs,
		RunE: prefixed("(POST LIST) ", func(cmd *cobra.Command, _ []string) error {
			s, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			posts, err := s.List(cmd.Context(), store.Category(category))
			if err != nil {
				return err
			}
			return printPosts(cmd.OutOrStdout(), posts)
		}),
	}
	cmd.Flags().StringVar(&category, "category", "all", "news, btc, alt or all")
	return cmd
}

func postSearchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find posts whose title or content contains the query",
		Args:  cobra.ExactArgs(1),
		RunE: prefixed("(POST SEARCH) ", func(cmd *cobra.Command, args []string) error {
			s, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			posts, err := s.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printPosts(cmd.OutOrStdout(), posts)
		}),
	}
}

func printPosts(w io.Writer, posts []store.Post) error {
	if len(posts) == 0 {
		_, err := fmt.Fprintln(w, "(no posts found)")
		return err
	}
	rows := make([][]string, len(posts))
	for i, p := range posts {
		rows[i] = []string{
			p.ID,
			string(p.Category),
			p.CreatedAt.Format("2006-01-02 15:04"),
			p.Title,
			fmt.Sprintf("%d/%d/%d", p.Reactions.Bullish, p.Reactions.Bearish, p.Reactions.Rocket),
		}
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("ID", "CATEGORY", "PUBLISHED", "TITLE", "BULL/BEAR/ROCKET").
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func postShowCmd(e *env) *cobra.Command {
	var raw bool
	var style string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a post as readers see it",
		Args:  cobra.ExactArgs(1),
		RunE: prefixed("(POST SHOW) ", func(cmd *cobra.Command, args []string) error {
			s, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			p, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if raw {
				_, err = io.WriteString(out, p.Content)
				return err
			}
			header := lipgloss.NewStyle().Bold(true)
			fmt.Fprintln(out, header.Render(p.Title))
			stamp := p.CreatedAt.Format("2 January 2006")
			if p.Edited() {
				stamp += " (updated)"
			}
			fmt.Fprintf(out, "%s · %s · bullish %d · bearish %d · rocket %d\n",
				strings.ToUpper(string(p.Category)), stamp,
				p.Reactions.Bullish, p.Reactions.Bearish, p.Reactions.Rocket)
			if p.ImageURL != "" {
				fmt.Fprintln(out, p.ImageURL)
			}
			body, err := ansi.Render(&ast.Document{Blocks: parser.Format(p.Content)}, ansi.WithStyle(style))
			if err != nil {
				return err
			}
			_, err = io.WriteString(out, body)
			return err
		}),
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the unformatted content")
	cmd.Flags().StringVar(&style, "style", "auto", "glamour style name")
	return cmd
}

// draftFlags are the editable fields shared by create and update.
type draftFlags struct {
	title, category, contentFile, image string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "post title")
	cmd.Flags().StringVar(&f.category, "category", "", "news, btc or alt")
	cmd.Flags().StringVar(&f.contentFile, "content", "", `file holding the post body ("-" for standard input)`)
	cmd.Flags().StringVar(&f.image, "image", "", "image file to upload as the cover")
}

// apply copies the flags the user set onto d and opens the image upload.
// The returned close func releases the image file.
func (f *draftFlags) apply(cmd *cobra.Command, d *admin.Draft) (*admin.Upload, func(), error) {
	fl := cmd.Flags()
	if fl.Changed("title") {
		d.Title = f.title
	}
	if fl.Changed("category") {
		d.Category = store.Category(f.category)
	}
	if fl.Changed("content") {
		var src io.Reader = cmd.InOrStdin()
		if f.contentFile != "-" {
			file, err := os.Open(f.contentFile)
			if err != nil {
				return nil, nil, err
			}
			defer file.Close()
			src = file
		}
		b, err := io.ReadAll(src)
		if err != nil {
			return nil, nil, err
		}
		d.Content = string(b)
	}
	if f.image == "" {
		return nil, func() {}, nil
	}
	img, err := os.Open(f.image)
	if err != nil {
		return nil, nil, err
	}
	return &admin.Upload{Name: f.image, Body: img}, func() { img.Close() }, nil
}

func postCreateCmd(e *env) *cobra.Command {
	var f draftFlags
	cmd := &cobra.Command{
		Use:   "create --title <title> --category <category> [--content file] [--image file]",
		Short: "Publish a new post",
		Args:  cobra.NoArgs,
		RunE: prefixed("(POST CREATE) ", func(cmd *cobra.Command, _ []string) error {
			ed, s, err := e.editor(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			var d admin.Draft
			up, done, err := f.apply(cmd, &d)
			if err != nil {
				return err
			}
			defer done()
			p, err := ed.Submit(cmd.Context(), d, up)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", p.ID)
			return nil
		}),
	}
	f.register(cmd)
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("category")
	return cmd
}

func postUpdateCmd(e *env) *cobra.Command {
	var f draftFlags
	var clearImage bool
	cmd := &cobra.Command{
		Use:   "update <id> [--title t] [--category c] [--content file] [--image file]",
		Short: "Edit an existing post",
		Args:  cobra.ExactArgs(1),
		RunE: prefixed("(POST UPDATE) ", func(cmd *cobra.Command, args []string) error {
			ed, s, err := e.editor(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			d, err := ed.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if clearImage {
				d.ImageURL = ""
			}
			up, done, err := f.apply(cmd, &d)
			if err != nil {
				return err
			}
			defer done()
			p, err := ed.Submit(cmd.Context(), d, up)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", p.ID)
			return nil
		}),
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&clearImage, "clear-image", false, "remove the cover image")
	return cmd
}

func postDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: prefixed("(POST DELETE) ", func(cmd *cobra.Command, args []string) error {
			ed, s, err := e.editor(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := ed.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	}
}

func exportCmd(e *env) *cobra.Command {
	var outputfile string
	cmd := &cobra.Command{
		Use:   "export [-o output]",
		Short: "Write every post to an xz-compressed backup",
		Args:  cobra.NoArgs,
		RunE: prefixed("(EXPORT) ", func(cmd *cobra.Command, _ []string) error {
			s, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			if outputfile == "" {
				n, err := backup.Export(cmd.Context(), cmd.OutOrStdout(), s)
				if err != nil {
					return err
				}
				e.log.Info("export finished", "posts", n)
				return nil
			}
			f, err := os.Create(outputfile)
			if err != nil {
				return err
			}
			n, err := backup.Export(cmd.Context(), f, s)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			e.log.Info("export finished", "posts", n, "file", outputfile)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&outputfile, "output", "o", "", "backup file (default standard output)")
	return cmd
}

func importCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import [input]",
		Short: "Restore posts from a backup",
		Args:  cobra.MaximumNArgs(1),
		RunE: prefixed("(IMPORT) ", func(cmd *cobra.Command, args []string) error {
			s, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			var in io.Reader = cmd.InOrStdin()
			if len(args) != 0 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			n, err := backup.Import(cmd.Context(), in, s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d posts\n", n)
			return nil
		}),
	}
}
