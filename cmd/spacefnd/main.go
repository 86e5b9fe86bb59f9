// spacefnd - input-event remapping daemon.
//
// A single designated key (typically space) is given a dual role: tapped
// alone it types normally; held while another key is pressed it activates a
// remapping layer. The daemon grabs the physical keyboard, classifies
// events through the disambiguation engine, and emits the result through a
// virtual device. A Paused property on the session bus disables the
// behavior; spacefnctl toggles it.
package main

import (
	"fmt"
	"os"
)

const version = "1.0.0"

func main() {
	confPath := ""

	args := os.Args[1:]
	switch len(args) {
	case 0:
		// Config discovered under XDG paths.
	case 1:
		switch args[0] {
		case "-v", "--version":
			fmt.Printf("spacefnd %s\n", version)
			return
		default:
			usage()
			os.Exit(1)
		}
	case 2:
		if args[0] != "-c" {
			usage()
			os.Exit(1)
		}
		confPath = args[1]
	default:
		usage()
		os.Exit(1)
	}

	if err := run(confPath); err != nil {
		fmt.Fprintf(os.Stderr, "spacefnd: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `spacefnd - mod-tap key remapping daemon

Usage: spacefnd [OPTION]...

Options:
  -c <file>      use a custom configuration file
  -v, --version  output version information and exit
  -h, --help     display this help and exit

Without -c the configuration is read from
$XDG_CONFIG_HOME/spacefnd/conf.toml (created on first run).`)
}
