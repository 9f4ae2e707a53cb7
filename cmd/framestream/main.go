// Package main starts the framestream development backend.
package main

import "flag"

// main is the entrypoint for the framestream backend.
func main() {
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	if err := run(*debug); err != nil {
		logFatal(err)
	}
}
