// Command bookctl ingests audiobooks into the library: it arranges a
// raw source directory into the canonical numbered layout and registers
// the author and book rows.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"audiobookd/internal/arrange"
	"audiobookd/internal/config"
	"audiobookd/internal/ingest"
	"audiobookd/pkg/store"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

func addCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Arrange a source directory into the library and register the book",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   config.ConfigPath,
			},
			&cli.StringFlag{Name: "author", Aliases: []string{"a"}, Usage: "Author name", Required: true},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Book name", Required: true},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Source directory of audio files", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			st, err := store.NewGormStore(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			book, err := ingest.New(st, cfg.BooksDir).CreateBook(cmd.String("author"), cmd.String("name"), cmd.String("path"))
			if err != nil {
				return fmt.Errorf("ingest book: %w", err)
			}
			logger.Info("book added", "name", book.Name, "id", book.ID, "chapters", book.Chapters, "folder", book.FileFolder)
			return nil
		},
	}
}

func arrangeCommand() *cli.Command {
	return &cli.Command{
		Name:  "arrange",
		Usage: "Arrange a source directory into numbered chapter files without touching the store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "src", Usage: "Source directory", Required: true},
			&cli.StringFlag{Name: "dst", Usage: "Target directory", Required: true},
			&cli.BoolFlag{Name: "include-unnumbered", Usage: "Append files without a digit run after the numbered ones"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			count, err := arrange.ArrangeWith(cmd.String("src"), cmd.String("dst"), arrange.Options{
				IncludeUnnumbered: cmd.Bool("include-unnumbered"),
			})
			if err != nil {
				return fmt.Errorf("arrange: %w", err)
			}
			logger.Info("arranged", "files", count, "dst", cmd.String("dst"))
			return nil
		},
	}
}

func main() {
	app := &cli.Command{
		Name:  "bookctl",
		Usage: "Manage the audiobook library",
		Commands: []*cli.Command{
			addCommand(),
			arrangeCommand(),
		},
	}
	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("bookctl: %v", err)
	}
}
