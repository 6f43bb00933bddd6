package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/openpep/pepd/internal/clientcli"
	"github.com/openpep/pepd/internal/healthcli"
	"github.com/openpep/pepd/internal/serverd"
	"github.com/openpep/pepd/internal/vmlauncher"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	args := os.Args
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}

	switch args[1] {
	case "--version":
		printVersion()
	case "serve":
		runSubcommand(serverd.Main, args[2:])
	case "client":
		runSubcommand(clientcli.Main, args[2:])
	case "health":
		runSubcommand(healthcli.Main, args[2:])
	case "launch-vm":
		runSubcommand(vmlauncher.Main, args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func runSubcommand(fn func([]string) error, args []string) {
	if err := fn(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pepd <serve|client|health|launch-vm|--version> [flags]")
}

func printVersion() {
	shortHash := commit
	if len(shortHash) > 7 {
		shortHash = shortHash[:7]
	}
	fmt.Printf("version: %s\n", version)
	fmt.Printf("git hash: %s\n", shortHash)
	fmt.Printf("build date: %s\n", buildDate)
}
