package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/livefir/livetree/cmd/livetree/commands"

	_ "github.com/tliron/commonlog/simple"
)

// Version information (can be overridden at build time with -ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "serve":
		err = commands.Serve(args)
	case "sessions":
		err = commands.Sessions(args)
	case "replay":
		err = commands.Replay(args)
	case "render":
		err = commands.Render(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("livetree version %s\n", version)
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	revision := commit
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && revision == "unknown" {
			revision = setting.Value
		}
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	fmt.Printf("commit: %s\n", revision)
	fmt.Printf("go: %s\n", info.GoVersion)
}

func printUsage() {
	fmt.Println("livetree demo server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  livetree serve [--addr :8080] [--app page] [--codec cbor|json] [--config file] [--journal file]")
	fmt.Println("  livetree render [--app page] [--config file]      Print the server-side rendered HTML")
	fmt.Println("  livetree sessions --journal file                  List recorded sessions")
	fmt.Println("  livetree replay --journal file <session>          Rebuild a recorded session and print its HTML")
	fmt.Println("  livetree version                                  Show version information")
	fmt.Println()
	fmt.Println("Apps: counter, todos, page")
}
