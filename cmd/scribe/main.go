package main

import (
	"fmt"
	"os"

	"github.com/mediscribe/scribe/internal/config"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// envFile is read from the working directory when present.
const envFile = ".env"

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___  ___ _ __(_) |__   ___
  / __|/ __| '__| | '_ \ / _ \
  \__ \ (__| |  | | |_) |  __/
  |___/\___|_|  |_|_.__/ \___|

  Clinical visit documentation assistant

  Usage: scribe <command> [options]
         scribe serve
         scribe --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before loading config
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid config: %v\n", err)
		os.Exit(1)
	}

	args := os.Args
	// No args + piped stdin → MCP server, the way MCP clients launch us
	if len(args) < 2 {
		args = append(args, "mcp")
	}

	app := newCLIApp(cfg)
	if err := app.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
