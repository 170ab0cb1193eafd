package comm

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

var settings = &struct {
	noProgress bool
	quiet      bool
	verbose    bool
	json       bool
	panic      bool
}{}

var (
	stdout   io.Writer = os.Stdout
	sendLock sync.Mutex
)

// Configure sets all logging options in one go
func Configure(noProgress, quiet, verbose, json, panic bool) {
	settings.noProgress = noProgress
	settings.quiet = quiet
	settings.verbose = verbose
	settings.json = json
	settings.panic = panic
}

// JsonEnabled returns true if machine-readable JSON-lines output was requested
func JsonEnabled() bool {
	return settings.json
}

// SetOutput redirects JSON and table output, mostly useful for tests
func SetOutput(w io.Writer) {
	sendLock.Lock()
	defer sendLock.Unlock()
	stdout = w
}

type JsonMessage map[string]interface{}

// Opf prints a formatted string informing the user on what operation we're doing
func Opf(format string, args ...interface{}) {
	Logf("%s %s", theme.OpSign, fmt.Sprintf(format, args...))
}

// Statf prints a formatted string informing the user how fast the operation went
func Statf(format string, args ...interface{}) {
	Logf("%s %s", theme.StatSign, fmt.Sprintf(format, args...))
}

// Log sends an informational message to the client
func Log(msg string) {
	Logl("info", msg)
}

// Logf sends a formatted informational message to the client
func Logf(format string, args ...interface{}) {
	Loglf("info", format, args...)
}

// Notice prints a box with important info in it.
// Don't abuse it or people will stop reading it.
func Notice(header string, lines []string) {
	if settings.json {
		Logf("notice: %s", header)
		for _, line := range lines {
			Logf("notice: %s", line)
		}
		return
	}

	Table([]string{header}, func(table *tablewriter.Table) {
		table.SetColWidth(60)
		for _, line := range lines {
			table.Append([]string{line})
		}
	})
}

// Table renders a table on stdout, outside of JSON mode
func Table(header []string, fill func(table *tablewriter.Table)) {
	EndProgress()

	sendLock.Lock()
	defer sendLock.Unlock()

	table := tablewriter.NewWriter(stdout)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(header)
	fill(table)
	table.Render()
}

// Warn lets the user know about a problem that's non-critical
func Warn(msg string) {
	Logl("warning", msg)
}

// Warnf is a formatted variant of Warn
func Warnf(format string, args ...interface{}) {
	Loglf("warning", format, args...)
}

// Debug messages are like Info messages, but printed only when verbose
func Debug(msg string) {
	Logl("debug", msg)
}

// Debugf is a formatted variant of Debug
func Debugf(format string, args ...interface{}) {
	Loglf("debug", format, args...)
}

// Logl logs a message of a given level
func Logl(level string, msg string) {
	send("log", JsonMessage{
		"message": msg,
		"level":   level,
	})
}

// Loglf logs a formatted message of a given level
func Loglf(level string, format string, args ...interface{}) {
	Logl(level, fmt.Sprintf(format, args...))
}

// Die exits with a non-zero exit code after giving a reason to the client
func Die(msg string) {
	send("error", JsonMessage{
		"message": msg,
	})
}

// Dief is a formatted variant of Die
func Dief(format string, args ...interface{}) {
	Die(fmt.Sprintf(format, args...))
}

// Result sends a result, only in JSON mode
func Result(value interface{}) {
	send("result", JsonMessage{
		"value": value,
	})
}

type printerFunc func()

// ResultOrPrint sends value in JSON mode, calls p otherwise
func ResultOrPrint(value interface{}, p printerFunc) {
	if settings.json {
		Result(value)
	} else {
		p()
	}
}

// Object sends an arbitrary typed message, only in JSON mode
func Object(msgType string, obj JsonMessage) {
	send(msgType, obj)
}

func send(msgType string, obj JsonMessage) {
	if settings.json {
		obj["type"] = msgType
		obj["time"] = time.Now().UTC().Unix()
		if msgType == "log" && obj["level"] == "debug" {
			if settings.quiet || !settings.verbose {
				return
			}
		}

		sendJSON(obj)
		if msgType == "error" {
			exit()
		}
		return
	}

	switch msgType {
	case "log":
		switch obj["level"] {
		case "info":
			if !settings.quiet {
				printLine(fmt.Sprintf("%v", obj["message"]))
			}
		case "debug":
			if !settings.quiet && settings.verbose {
				printLine(fmt.Sprintf("%v", obj["message"]))
			}
		case "warning":
			printLine(color.YellowString("%s: %s", obj["level"], obj["message"]))
		default:
			printLine(color.RedString("%s: %s", obj["level"], obj["message"]))
		}
	case "error":
		EndProgress()
		printLine(color.RedString("%v", obj["message"]))
		exit()
	case "result", "progress":
		// only meaningful in json mode
	default:
		printLine(fmt.Sprintf("%s %v", msgType, obj))
	}
}

func printLine(line string) {
	PauseProgress()
	log.Println(line)
	ResumeProgress()
}

func exit() {
	if settings.panic {
		panic("comm: fatal error")
	}
	os.Exit(1)
}

func sendJSON(obj JsonMessage) {
	sendLock.Lock()
	defer sendLock.Unlock()

	payload, err := json.Marshal(obj)
	if err != nil {
		payload, _ = json.Marshal(JsonMessage{
			"type":    "log",
			"level":   "error",
			"message": fmt.Sprintf("could not marshal %s message: %s", obj["type"], err.Error()),
		})
	}
	fmt.Fprintln(stdout, string(payload))
}
