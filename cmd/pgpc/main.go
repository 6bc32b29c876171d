package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	diag "github.com/coreman2200/funtimes-pgp/internal/diagnostics"
)

type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands = []command{
	{"build", "build [-o dir] [-j n] scene.yaml...   compile scenes to .pgp files", runBuild},
	{"send", "send [-backend b] [-port p] [-baud n] file   compile or load a stream and send it", runSend},
	{"dump", "dump [-lines] file.pgp                 list the frames of a stream", runDump},
	{"ports", "ports                                  list serial ports", runPorts},
	{"patterns", "patterns                               list built-in generators and presets", runPatterns},
	{"console", "console [-backend b] [-port p] [-baud n]  interactive device console", runConsole},
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pgpc <command> [flags] [args]")
	for _, c := range commands {
		fmt.Fprintln(os.Stderr, "  "+c.usage)
	}
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	for _, c := range commands {
		if c.name != os.Args[1] {
			continue
		}
		if err := c.run(os.Args[2:]); err != nil {
			report(err)
			os.Exit(1)
		}
		return
	}
	usage()
	os.Exit(2)
}

// report prints err the way the daemon's diagnostics stream does.
func report(err error) {
	for _, d := range diag.FromError(err) {
		ev := log.Error()
		if d.Severity == diag.Warn {
			ev = log.Warn()
		}
		ev = ev.Str("code", d.Code)
		if d.Detail != "" {
			ev = ev.Str("detail", d.Detail)
		}
		if len(d.SuggestedFixes) > 0 {
			ev = ev.Strs("fix", d.SuggestedFixes)
		}
		ev.Msg(d.Summary)
	}
}

func warn(ws []string) {
	for _, d := range diag.FromWarnings(ws) {
		log.Warn().Str("code", d.Code).Msg(d.Summary)
	}
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}
