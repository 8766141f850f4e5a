package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type checkOutcome int

const (
	outcomeInfo checkOutcome = iota
	outcomePass
	outcomeFail
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiBlue  = "\x1b[34m"
)

const checkLabelWidth = 22

func renderCheckLine(label string, outcome checkOutcome, detail string, colorize bool) string {
	tag := "INFO"
	color := ansiBlue
	switch outcome {
	case outcomePass:
		tag, color = "OK", ansiGreen
	case outcomeFail:
		tag, color = "FAIL", ansiRed
	}
	line := fmt.Sprintf("  %-*s [%s]", checkLabelWidth, label+":", tag)
	if detail = strings.TrimSpace(detail); detail != "" {
		line += " " + detail
	}
	if colorize {
		return color + line + ansiReset
	}
	return line
}

func renderHeading(title string, colorize bool) string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	if colorize {
		return ansiBlue + line + ansiReset
	}
	return line
}

func passFail(ok bool) checkOutcome {
	if ok {
		return outcomePass
	}
	return outcomeFail
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
