package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fwessels/macroexp/internal/expand"
	"github.com/fwessels/macroexp/internal/macro"
	"github.com/fwessels/macroexp/internal/render"
	"github.com/fwessels/macroexp/internal/scanner"
	"github.com/fwessels/macroexp/internal/session"
	"github.com/fwessels/macroexp/internal/setting"
	"github.com/fwessels/macroexp/internal/store"
	"github.com/fwessels/macroexp/internal/suggest"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// table is what the subcommands read definitions from.
type table interface {
	session.Table
	macro.NameLister
}

func tableFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "source",
			Aliases: []string{"s"},
			Usage:   "Read definitions from these files or directories",
		},
		&cli.StringFlag{
			Name:  "db",
			Usage: "Read definitions from an index created by the index command",
		},
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "Skip files and directories matching these patterns while scanning",
		},
	}
}

func newApp() *cli.App {
	app := &cli.App{
		Name:  "macroexp",
		Usage: "Show how C/C++ macros expand",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load settings from an INI file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (panic, fatal, error, warn, info, debug, trace)",
			},
		},
		Commands: []*cli.Command{
			cmdExpand(),
			cmdIndex(),
			cmdDefs(),
			cmdSuggest(),
		},
		// main reports errors and picks the exit code
		ExitErrHandler: func(*cli.Context, error) {},
	}
	app.Before = func(c *cli.Context) error {
		logrus.SetOutput(c.App.ErrWriter)
		return nil
	}
	return app
}

// loadSettings reads the config file if one was given and applies the
// global flags on top of it.
func loadSettings(c *cli.Context) (setting.Settings, error) {
	s := setting.Default()
	if path := c.String("config"); path != "" {
		var err error
		if s, err = setting.LoadFile(path); err != nil {
			return s, err
		}
	}
	if lvl := c.String("log-level"); lvl != "" {
		parsed, err := logrus.ParseLevel(lvl)
		if err != nil {
			return s, errors.Wrap(err, "--log-level")
		}
		s.Log = parsed
	}
	logrus.SetLevel(s.Log)
	return s, nil
}

// openTable scans --source paths into memory, or opens the --db index.
func openTable(c *cli.Context, s setting.Settings) (table, func(), error) {
	sources := c.StringSlice("source")
	if len(sources) > 0 {
		excludes := append(append([]string(nil), s.Index.Exclude...), c.StringSlice("exclude")...)
		sc, err := scanner.New(excludes, s.Index.Jobs)
		if err != nil {
			return nil, nil, err
		}
		files, err := sc.ScanPaths(sources)
		if err != nil {
			return nil, nil, err
		}
		set := macro.NewSet()
		if _, err := sc.Index(c.Context, files, set); err != nil {
			return nil, nil, err
		}
		return set, func() {}, nil
	}

	dir := c.String("db")
	if dir == "" && c.String("config") != "" {
		dir = s.Index.DBPath
	}
	if dir == "" {
		return nil, nil, errors.New("no definitions: pass --source or --db")
	}
	db, err := store.Open(dir)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("closing index")
		}
	}, nil
}

func cmdExpand() *cli.Command {
	return &cli.Command{
		Name:      "expand",
		Usage:     "Expand a macro step by step",
		ArgsUsage: "NAME [ARG...]",
		Flags: append(tableFlags(),
			&cli.StringFlag{
				Name:  "mode",
				Usage: "single-macro (one step per invocation) or single-layer (one step group per nesting level)",
			},
			&cli.IntFlag{
				Name:  "max-depth",
				Usage: "Expansion depth cap, 5 to 100",
			},
			&cli.BoolFlag{
				Name:  "strip-parens",
				Usage: "Remove redundant parentheses from the result",
			},
			&cli.BoolFlag{
				Name:  "text",
				Usage: "Expand the arguments as one piece of source text instead of a macro invocation",
			},
			&cli.IntFlag{
				Name:  "select",
				Value: -1,
				Usage: "Expand the n-th definition of NAME (see defs); kept in the index with --db",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output JSON",
			},
		),
		Action: runExpand,
	}
}

func runExpand(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("expand: missing macro name", 2)
	}
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	if c.IsSet("mode") {
		if s.Expand.Mode, err = expand.ParseMode(c.String("mode")); err != nil {
			return err
		}
	}
	if c.IsSet("max-depth") {
		s.Expand.MaxDepth = c.Int("max-depth")
	}
	if c.IsSet("strip-parens") {
		s.Expand.StripParens = c.Bool("strip-parens")
	}
	if err := s.Validate(); err != nil {
		return err
	}

	tbl, closeTable, err := openTable(c, s)
	if err != nil {
		return err
	}
	defer closeTable()

	sess, err := session.New(tbl, s.ExpandConfig(), s.Expand.CacheSize)
	if err != nil {
		return err
	}
	args := c.Args().Slice()
	if n := c.Int("select"); n >= 0 && !c.Bool("text") {
		if err := sess.SetActive(args[0], n); err != nil {
			return err
		}
	}

	var res *expand.Result
	if c.Bool("text") {
		res, err = sess.ExpandText(c.Context, strings.Join(args, " "))
	} else {
		var macroArgs []string
		if len(args) > 1 {
			macroArgs = args[1:]
		}
		res, err = sess.Expand(c.Context, args[0], macroArgs)
	}
	if err != nil {
		return err
	}

	if err := render.NewReporter(c.App.Writer, c.Bool("json")).Report(res); err != nil {
		return err
	}
	if res.HasErrors {
		return cli.Exit("", 1)
	}
	return nil
}

func cmdIndex() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "Store the definitions of a source tree for later expansions",
		ArgsUsage: "PATH...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Usage: "Index directory (defaults to [index] DB_PATH)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Skip files and directories matching these patterns",
			},
			&cli.IntFlag{
				Name:  "jobs",
				Usage: "Number of files extracted in parallel (0: one per CPU)",
			},
		},
		Action: runIndex,
	}
}

func runIndex(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("index: missing source path", 2)
	}
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	if c.IsSet("jobs") {
		s.Index.Jobs = c.Int("jobs")
	}
	dir := s.Index.DBPath
	if c.IsSet("db") {
		dir = c.String("db")
	}

	excludes := append(append([]string(nil), s.Index.Exclude...), c.StringSlice("exclude")...)
	sc, err := scanner.New(excludes, s.Index.Jobs)
	if err != nil {
		return err
	}
	files, err := sc.ScanPaths(c.Args().Slice())
	if err != nil {
		return err
	}

	db, err := store.Open(dir)
	if err != nil {
		return err
	}
	defer db.Close()

	sum, err := sc.Index(c.Context, files, db)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "indexed %s file(s), %s: %s definition(s), %s type(s), %s failure(s)\n",
		humanize.Comma(int64(sum.Files)), humanize.Bytes(uint64(sum.Bytes)),
		humanize.Comma(int64(sum.Definitions)), humanize.Comma(int64(sum.Types)), humanize.Comma(int64(sum.Failures)))
	fmt.Fprintf(c.App.Writer, "%s now holds %s definition(s) of %s name(s)\n",
		dir, humanize.Comma(int64(db.Len())), humanize.Comma(int64(len(db.Names()))))
	return nil
}

func cmdDefs() *cli.Command {
	return &cli.Command{
		Name:      "defs",
		Usage:     "List every definition of a macro",
		ArgsUsage: "NAME",
		Flags: append(tableFlags(), &cli.BoolFlag{
			Name:  "json",
			Usage: "Output JSON",
		}),
		Action: runDefs,
	}
}

func runDefs(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("defs: expected one macro name", 2)
	}
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	tbl, closeTable, err := openTable(c, s)
	if err != nil {
		return err
	}
	defer closeTable()

	name := c.Args().First()
	list := render.DefinitionList{Name: name, Definitions: tbl.Lookup(name), Active: -1}
	if active, ok := tbl.Active(name); ok {
		for i, d := range list.Definitions {
			if d.Location == active.Location && d.Body == active.Body {
				list.Active = i
			}
		}
	}
	if src, ok := tbl.(macro.ParseFailureSource); ok {
		list.Failures = src.ParseFailures(name)
	}
	return render.NewReporter(c.App.Writer, c.Bool("json")).ReportDefinitions(list)
}

func cmdSuggest() *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "List defined names similar to NAME",
		ArgsUsage: "NAME",
		Flags: append(tableFlags(), &cli.BoolFlag{
			Name:  "json",
			Usage: "Output JSON",
		}),
		Action: runSuggest,
	}
}

func runSuggest(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("suggest: expected one name", 2)
	}
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	tbl, closeTable, err := openTable(c, s)
	if err != nil {
		return err
	}
	defer closeTable()

	name := c.Args().First()
	candidates := append(tbl.Names(), s.Expand.Symbols...)
	return render.NewReporter(c.App.Writer, c.Bool("json")).ReportSuggestions(name, suggest.Suggest(name, candidates))
}

// exitCode maps an error returned by the app to a process exit code.
func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}

func main() {
	err := newApp().Run(os.Args)
	if err == nil {
		return
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(os.Stderr, "Error:", msg)
	}
	os.Exit(exitCode(err))
}
