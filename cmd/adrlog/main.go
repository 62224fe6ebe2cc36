// Package main provides adrlog, a decision-record store served over MCP
// with a small CLI for local inspection.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/pflag"

	"github.com/adrlog/adrlog/internal/config"
	"github.com/adrlog/adrlog/internal/mcp"
	"github.com/adrlog/adrlog/internal/record"
	"github.com/adrlog/adrlog/internal/store"
)

const version = "0.1.0"

const usage = `adrlog - decision records on disk, served over MCP

Usage:
  adrlog [command] [flags]

Commands:
  serve   Serve the record store over MCP on stdio (default)
  new     Create a record interactively
  ls      List records
  show    Print a record's document

Flags:
      --dir string      base directory for records (overrides config)
      --config string   explicit config file path
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("adrlog", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	dirFlag := flags.String("dir", "", "base directory for records")
	configFlag := flags.String("config", "", "explicit config file path")
	statusFlag := flags.String("status", "", "status filter for ls")
	fromFlag := flags.String("from", "", "inclusive lower date bound for ls (YYYY-MM-DD)")
	toFlag := flags.String("to", "", "inclusive upper date bound for ls (YYYY-MM-DD)")
	pageFlag := flags.Int("page", 1, "page number for ls")
	helpFlag := flags.BoolP("help", "h", false, "show usage")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	if *helpFlag {
		fmt.Fprint(stdout, usage)

		return 0
	}

	workDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "adrlog: %v\n", err)

		return 1
	}

	cfg, err := config.Load(workDir, *configFlag, config.Overrides{Dir: *dirFlag})
	if err != nil {
		fmt.Fprintf(stderr, "adrlog: %v\n", err)

		return 1
	}

	st, err := store.OpenWithTimeout(cfg.Dir, cfg.LockTimeout())
	if err != nil {
		fmt.Fprintf(stderr, "adrlog: %v\n", err)

		return 1
	}

	command := "serve"
	rest := flags.Args()

	if len(rest) > 0 {
		command = rest[0]
		rest = rest[1:]
	}

	switch command {
	case "serve":
		err = serve(st)
	case "new":
		err = newRecord(st, stdout)
	case "ls":
		err = list(st, stdout, *statusFlag, *fromFlag, *toFlag, *pageFlag)
	case "show":
		err = show(st, stdout, rest)
	default:
		fmt.Fprintf(stderr, "adrlog: unknown command %q\n\n%s", command, usage)

		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "adrlog: %v\n", err)

		return 1
	}

	return 0
}

// serve runs the MCP server on stdio until interrupted. Stdout belongs to
// the protocol; anything human-facing goes to stderr.
func serve(st *store.Store) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return mcp.NewServer(st, version).Run(ctx)
}

// newRecord prompts for the record's fields and creates it.
func newRecord(st *store.Store, stdout io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	prompt := func(label string) (string, error) {
		value, err := line.Prompt(label + "> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return "", errors.New("aborted")
			}

			return "", fmt.Errorf("reading input: %w", err)
		}

		return strings.TrimSpace(value), nil
	}

	promptList := func(label string) ([]string, error) {
		value, err := prompt(label + " (comma-separated, empty to skip)")
		if err != nil {
			return nil, err
		}

		if value == "" {
			return nil, nil
		}

		parts := strings.Split(value, ",")
		items := make([]string, 0, len(parts))

		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				items = append(items, trimmed)
			}
		}

		return items, nil
	}

	id, err := prompt("id")
	if err != nil {
		return err
	}

	if err := record.ValidateID(id); err != nil {
		return err
	}

	title, err := prompt("title")
	if err != nil {
		return err
	}

	contextText, err := prompt("context")
	if err != nil {
		return err
	}

	decision, err := prompt("decision")
	if err != nil {
		return err
	}

	rationale, err := prompt("rationale")
	if err != nil {
		return err
	}

	assumptions, err := promptList("assumptions")
	if err != nil {
		return err
	}

	expected, err := promptList("acceptance criteria")
	if err != nil {
		return err
	}

	rec, err := st.Create(store.CreateParams{
		ID:             id,
		Title:          title,
		Context:        contextText,
		Decision:       decision,
		Rationale:      rationale,
		Assumptions:    assumptions,
		ExpectedResult: expected,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "created %s (#%d) at %s\n", rec.ID, rec.Sequence, st.DocumentPath(rec.ID))

	return nil
}

// list prints one line per record, newest first.
func list(st *store.Store, stdout io.Writer, status, from, to string, page int) error {
	q := store.ListQuery{From: from, To: to, Page: page}

	if status != "" {
		parsed, err := record.ParseStatus(status)
		if err != nil {
			return err
		}

		q.Status = parsed
	}

	result, err := st.List(q)
	if err != nil {
		return err
	}

	for _, item := range result.Items {
		fmt.Fprintf(stdout, "%4d  %-10s  %s  %-24s  %s\n",
			item.Sequence, item.Status.Display(), item.Date, item.ID, item.Title)
	}

	p := result.Pagination
	if p.TotalPages > 1 {
		fmt.Fprintf(stdout, "page %d/%d (%d records)\n", p.Page, p.TotalPages, p.TotalItems)
	}

	return nil
}

// show prints the raw document of one record.
func show(st *store.Store, stdout io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: adrlog show <id>")
	}

	doc, err := st.Document(args[0])
	if err != nil {
		return err
	}

	_, err = stdout.Write(doc)

	return err
}
