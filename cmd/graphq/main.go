package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/KimNorgaard/go-graph"
	"github.com/KimNorgaard/go-graph/graphio"
)

const (
	appName     = "graphq"
	historyFile = ".graphq_history"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "fmt":
		os.Exit(cmdFmt(os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl(os.Args[2:]))
	case "dump":
		os.Exit(cmdDump(os.Args[2:]))
	case "-h", "--help", "help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Printf(`Usage:
  %s fmt [--check] [--indent n] [file ...]   Format documents in place (stdin to stdout without files)
  %s repl <file>                             Browse a document interactively
  %s dump <file>                             Print the node outline of a document

Files ending in .gz or .zst are compressed; compressed input is detected automatically.
`, appName, appName, appName)
}

func cmdFmt(args []string) int {
	fs := flag.NewFlagSet("fmt", flag.ContinueOnError)
	check := fs.Bool("check", false, "check format; exit 1 if any file would change")
	indent := fs.Int("indent", 2, "spaces per nesting level")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	opts := []graph.Option{graph.WithLogger(logger), graph.Indent(*indent)}

	if fs.NArg() == 0 {
		src, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			return 1
		}
		out, err := graph.Format(src, opts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: <stdin>: %v\n", appName, err)
			return 1
		}
		if *check {
			if !bytes.Equal(src, out) {
				fmt.Println("<stdin>")
				return 1
			}
			return 0
		}
		_, _ = os.Stdout.Write(out)
		return 0
	}

	status := 0
	for _, path := range fs.Args() {
		changed, err := formatFile(path, *check, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s: %v\n", appName, path, err)
			status = 1
			continue
		}
		if changed && *check {
			fmt.Println(path)
			status = 1
		}
	}
	return status
}

// formatFile formats the document at path and reports whether it changed. In
// check mode the file is left alone.
func formatFile(path string, check bool, opts []graph.Option) (bool, error) {
	src, err := graphio.ReadFile(path)
	if err != nil {
		return false, err
	}
	out, err := graph.Format(src, opts...)
	if err != nil {
		return false, err
	}
	if bytes.Equal(src, out) {
		return false, nil
	}
	if check {
		return true, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return true, err
	}
	return true, graphio.WriteFile(path, out, info.Mode().Perm())
}

func cmdDump(args []string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s dump <file>\n", appName)
		return 2
	}
	l, err := graphio.LoadFile(args[0], graph.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	fmt.Print(l.String())
	return 0
}

func cmdRepl(args []string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s repl <file>\n", appName)
		return 2
	}
	l, err := graphio.LoadFile(args[0], graph.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	s := newSession(l)

	fmt.Printf("%s: browsing %s. Type help for commands, Ctrl+D exits.\n", appName, args[0])

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(s.complete)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		line, err := ln.Prompt(s.prompt())
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			fmt.Println()
			return 0
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if s.exec(line, os.Stdout) {
			return 0
		}
	}
}
