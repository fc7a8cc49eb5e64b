// Command openr runs a Store process, grounded on devicedb's
// cmd/devicedb command-registration pattern: a small set of
// subcommands dispatched by name, each parsing its own flag set.
package main

import (
	"fmt"
	"os"
)

type command struct {
	name        string
	description string
	run         func(args []string) error
}

var commands = []command{
	startCommand,
	statusCommand,
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	name := os.Args[1]

	for _, cmd := range commands {
		if cmd.name == name {
			if err := cmd.run(os.Args[2:]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}

			return
		}
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
	usage()
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: openr <command> [flags]")
	fmt.Fprintln(os.Stderr, "commands:")

	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", cmd.name, cmd.description)
	}
}
