// Package main starts the camslice viewer.
package main

import "flag"

// main is the entrypoint for the camslice viewer.
func main() {
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	if err := run(*debug); err != nil {
		logFatal(err)
	}
}
