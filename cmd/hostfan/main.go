// Package main is the entry point for hostfan.
package main

import (
	"errors"
	"os"
)

func main() {
	err := Execute()
	switch {
	case err == nil:
	case errors.Is(err, ErrHostFailures):
		os.Exit(2)
	default:
		os.Exit(1)
	}
}
