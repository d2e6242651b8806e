package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leaptrack/internal/cli/output"
	"github.com/spf13/cobra"
)

const (
	replPrompt         = "index> "
	replContinuePrompt = "   ...> "
)

// dotCommand is a REPL meta command. Arguments are the whitespace-separated
// words after the command name.
type dotCommand struct {
	usage string
	help  string
	run   func(ctx context.Context, r *output.Renderer, db *sql.DB, args []string) error
}

var dotCommands = map[string]dotCommand{
	".tables": {
		usage: ".tables",
		help:  "List index tables",
		run: func(ctx context.Context, r *output.Renderer, db *sql.DB, _ []string) error {
			return listIndexTables(ctx, r, db)
		},
	},
	".schema": {
		usage: ".schema <table>",
		help:  "Show the columns of a table",
		run: func(ctx context.Context, r *output.Renderer, db *sql.DB, args []string) error {
			if len(args) != 1 {
				return errUsage
			}
			return describeIndexTable(ctx, r, db, args[0])
		},
	},
	".runs": {
		usage: ".runs [n]",
		help:  "Show the n most recent runs (default 10)",
		run: func(ctx context.Context, r *output.Renderer, db *sql.DB, args []string) error {
			limit := 10
			if len(args) > 0 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return errUsage
				}
				limit = n
			}
			return runIndexQuery(ctx, r, db, `
				SELECT r.timestamp, r.dir, COUNT(a.id) AS artifacts
				FROM runs r LEFT JOIN artifacts a ON a.run_id = r.id
				GROUP BY r.id
				ORDER BY r.started_at DESC
				LIMIT ?`, limit)
		},
	},
	".artifacts": {
		usage: ".artifacts [prefix]",
		help:  "Show the artifacts of the latest run, optionally by prefix",
		run: func(ctx context.Context, r *output.Renderer, db *sql.DB, args []string) error {
			if len(args) > 1 {
				return errUsage
			}
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return runIndexQuery(ctx, r, db, `
				SELECT a.step, a.kind, a.prefix, a.hash, a.path
				FROM artifacts a
				WHERE a.run_id = (SELECT id FROM runs ORDER BY started_at DESC LIMIT 1)
				AND (? = '' OR a.prefix = ?)
				ORDER BY a.step`, prefix, prefix)
		},
	},
	".clear": {
		usage: ".clear",
		help:  "Clear the screen",
		run: func(_ context.Context, r *output.Renderer, _ *sql.DB, _ []string) error {
			_, err := fmt.Fprint(r.Writer(), "\033[H\033[2J")
			return err
		},
	},
}

// Help and quit are handled by handleDotCommand itself.
var dotCommandOrder = []string{".tables", ".schema", ".runs", ".artifacts", ".clear"}

var errUsage = errors.New("usage")

func runIndexREPL(cmd *cobra.Command, cmdCtx *CommandContext) error {
	ctx := cmd.Context()
	statePath := cmdCtx.Cfg.StatePath

	db, err := openIndexReadOnly(statePath)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer func() { _ = db.Close() }()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(statePath), "index_history"),
		AutoComplete:    newTableCompleter(ctx, db),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to start readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r := cmdCtx.Renderer
	r.Printf("Artifact index %s\n", statePath)
	r.Println("End SQL with ';'. Type .help for commands.")

	var pending []string
	for ctx.Err() == nil {
		if len(pending) == 0 {
			rl.SetPrompt(replPrompt)
		} else {
			rl.SetPrompt(replContinuePrompt)
		}

		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			pending = pending[:0]
			continue
		case err != nil:
			// io.EOF on Ctrl-D.
			return nil
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case len(pending) == 0 && strings.HasPrefix(line, "."):
			if handleDotCommand(ctx, r, db, line) {
				return nil
			}
			continue
		}

		pending = append(pending, line)
		if !strings.HasSuffix(line, ";") {
			continue
		}
		query := strings.TrimSuffix(strings.Join(pending, " "), ";")
		pending = pending[:0]

		if err := runIndexQuery(ctx, r, db, query); err != nil {
			_, _ = fmt.Fprintf(r.ErrWriter(), "Error: %v\n", err)
		}
	}
	return ctx.Err()
}

// handleDotCommand runs one meta command line and reports whether the REPL
// should exit.
func handleDotCommand(ctx context.Context, r *output.Renderer, db *sql.DB, line string) bool {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(r.Writer())
		return false
	}

	dc, ok := dotCommands[name]
	if !ok {
		_, _ = fmt.Fprintf(r.ErrWriter(), "Unknown command: %s (type .help for commands)\n", name)
		return false
	}
	if err := dc.run(ctx, r, db, args); errors.Is(err, errUsage) {
		_, _ = fmt.Fprintf(r.ErrWriter(), "Usage: %s\n", dc.usage)
	} else if err != nil {
		_, _ = fmt.Fprintf(r.ErrWriter(), "Error: %v\n", err)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Commands:")
	for _, name := range dotCommandOrder {
		dc := dotCommands[name]
		_, _ = fmt.Fprintf(w, "  %-22s %s\n", dc.usage, dc.help)
	}
	_, _ = fmt.Fprintf(w, "  %-22s %s\n", ".help", "Show this message")
	_, _ = fmt.Fprintf(w, "  %-22s %s\n", ".quit", "Leave the shell (also .exit, Ctrl-D)")
}

// newTableCompleter completes index table names and meta commands. Table
// lookup failures leave only the meta commands.
func newTableCompleter(ctx context.Context, db *sql.DB) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface

	if rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table'
		AND name NOT LIKE 'sqlite_%'
		AND name NOT LIKE 'goose_%'
		ORDER BY name`); err == nil {
		for rows.Next() {
			var name string
			if rows.Scan(&name) == nil {
				items = append(items, readline.PcItem(name))
			}
		}
		_ = rows.Close()
	}

	for _, name := range dotCommandOrder {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem(".help"), readline.PcItem(".quit"), readline.PcItem(".exit"))
	return readline.NewPrefixCompleter(items...)
}
