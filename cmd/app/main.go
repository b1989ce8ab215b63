package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/marginalia/internal"
	"github.com/starford/marginalia/internal/export"
	"github.com/starford/marginalia/internal/highlights"
	"github.com/starford/marginalia/internal/inbox"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/parser"
	"github.com/starford/marginalia/internal/pipeline"
	pkgconfig "github.com/starford/marginalia/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	cfg.Suggest.APIKey = cmd.String("api-key")
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// readInput reads the file named by the first argument, or stdin when there
// is none or it is "-".
func readInput(cmd *cli.Command) ([]byte, error) {
	name := cmd.Args().First()
	if name == "" || name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

// request builds a conversion request from the input and flags. Input may
// carry its metadata as YAML front matter, as inbox files do; flags win.
func request(cmd *cli.Command) (pipeline.Request, error) {
	if cmd.Bool("sample") {
		return pipeline.Request{Source: pipeline.SampleSource, Text: pipeline.SampleText}, nil
	}
	data, err := readInput(cmd)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("read input: %w", err)
	}

	var f inbox.File
	text := string(data)
	if body, err := parser.Decode(data, &f); err == nil {
		text = body
	}
	src := f.SourceMetadata
	for flag, field := range map[string]*string{
		"title":      &src.Title,
		"author-bio": &src.AuthorBio,
		"year":       &src.Year,
		"publisher":  &src.Publisher,
		"link":       &src.Link,
		"citation":   &src.Citation,
		"summary":    &src.Summary,
	} {
		if v := cmd.String(flag); v != "" {
			*field = v
		}
	}
	if v := cmd.StringSlice("author"); len(v) > 0 {
		src.Authors = v
	}
	if v := cmd.StringSlice("tag"); len(v) > 0 {
		src.Tags = v
	}
	if v := cmd.String("source-format"); v != "" {
		src.Format = models.Format(v)
	}

	modeName := f.Mode
	if v := cmd.String("mode"); v != "" {
		modeName = v
	}
	mode, err := pipeline.ParseMode(modeName)
	if err != nil {
		return pipeline.Request{}, err
	}
	settings := pipeline.Settings{Mode: mode}
	if cmd.IsSet("taxonomy") {
		settings.Taxonomy = pipeline.Bool(cmd.Bool("taxonomy"))
	}
	if cmd.IsSet("summarize") {
		settings.Summarize = pipeline.Bool(cmd.Bool("summarize"))
	}
	return pipeline.Request{Source: src, Text: text, Settings: settings}, nil
}

func convert(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	req, err := request(cmd)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	outPath := cmd.String("out")
	if format == export.FormatZip && outPath == "" {
		outPath = export.BundleName(req.Source.Title, format)
	}
	if outPath != "" && outPath != "-" && format != export.FormatDir {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	res, paths, err := internal.Convert(ctx, req, format, w,
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	if res.Report.Tagging == pipeline.TaggingPartial || res.Report.Canceled {
		fmt.Fprintf(os.Stderr, "warning: %d of %d quotes fell back to keyword tags\n",
			res.Report.Fallback+res.Report.Untouched, res.Report.Quotes)
	}
	return nil
}

func extract(_ context.Context, cmd *cli.Command) error {
	data, err := readInput(cmd)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	out, err := json.MarshalIndent(highlights.Extract(string(data)), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Bool("inbox") {
		cfg.Inbox.Enabled = true
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:  "marginalia",
		Usage: "Turn Kindle highlight exports into linked Markdown notes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Anthropic API key; enables the batch and item modes",
				Sources: cli.EnvVars("ANTHROPIC_API_KEY"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "convert",
				Usage:     "Convert a highlight export into notes",
				ArgsUsage: "[file]",
				Action:    convert,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Source title"},
					&cli.StringSliceFlag{Name: "author", Aliases: []string{"a"}, Usage: "Author name (repeatable)"},
					&cli.StringFlag{Name: "author-bio", Usage: "Bio for the first author"},
					&cli.StringFlag{Name: "year", Usage: "Publication year"},
					&cli.StringFlag{Name: "publisher", Usage: "Publisher"},
					&cli.StringFlag{Name: "link", Usage: "URL of the source"},
					&cli.StringFlag{Name: "citation", Usage: "Citation; generated when empty"},
					&cli.StringFlag{Name: "summary", Usage: "Summary for the source note"},
					&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Source tag (repeatable)"},
					&cli.StringFlag{Name: "source-format", Usage: "book, article, essay, report, podcast, video or other"},
					&cli.StringFlag{Name: "mode", Usage: "Tagging mode: " + strings.Join([]string{
						string(pipeline.ModeBatch), string(pipeline.ModeItem),
						string(pipeline.ModeKeywords), string(pipeline.ModeNone),
					}, ", ")},
					&cli.BoolFlag{Name: "taxonomy", Usage: "Build a shared tag vocabulary first"},
					&cli.BoolFlag{Name: "summarize", Usage: "Ask for a source summary when none is given"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "dir", Usage: "json, csv, zip or dir"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file for json, csv and zip (default stdout; zip defaults to <title>-highlights.zip)"},
					&cli.BoolFlag{Name: "sample", Usage: "Convert built-in sample highlights"},
				},
			},
			{
				Name:      "extract",
				Usage:     "Print the quotes found in a highlight export as JSON",
				ArgsUsage: "[file]",
				Action:    extract,
			},
			{
				Name:   "serve",
				Usage:  "Start the HTTP API",
				Action: serve,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "inbox", Usage: "Watch the inbox directory", Sources: cli.EnvVars("MARGINALIA_INBOX")},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
