// Package tlog holds the scanner's ambient logging helpers: a
// V/Vf/Errorf trio kept at package scope.
package tlog

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Verbose gates V/Vf output; main sets it from --verbose.
var Verbose bool

// V prints msg to the log only when Verbose is set.
func V(msg string) {
	if Verbose {
		log.Print(msg)
	}
}

// Vf prints a formatted message to the log only when Verbose is set.
func Vf(format string, parts ...interface{}) {
	if Verbose {
		log.Printf(format, parts...)
	}
}

var errorColor = color.New(color.FgRed, color.Bold)

// Errorf writes a bold red "tsunami: <message>" line to stderr via the
// configured color writer.
func Errorf(format string, parts ...interface{}) {
	if !strings.HasSuffix(format, "\n") {
		format += "\n"
	}
	errorColor.Fprintf(os.Stderr, "tsunami: "+format, parts...)
}

// Fatal prints a single "tsunami: <error>" line to stderr; cmd/tsunami
// calls it once before exiting non-zero on a fatal error.
func Fatal(err error) {
	errorColor.Fprintln(os.Stderr, fmt.Sprintf("tsunami: %v", err))
}
