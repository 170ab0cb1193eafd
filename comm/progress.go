package comm

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cheggaaa/pb"
	humanize "github.com/dustin/go-humanize"
	"github.com/oaiba/oblauncher/progress"
)

// ProgressTheme contains all the characters we need to show progress
type ProgressTheme struct {
	BarStart string
	BarEnd   string
	Current  string
	Empty    string
	OpSign   string
	StatSign string
}

var themes = map[string]*ProgressTheme{
	"unicode": {"▐", "▌", "▓", "░", "•", "✓"},
	"ascii":   {"|", "|", "#", "-", ">", "<"},
	"cp437":   {"▐", "▌", "█", "░", "∙", "√"},
}

func (th *ProgressTheme) apply(bar *pb.ProgressBar) {
	bar.BarStart = th.BarStart
	bar.BarEnd = th.BarEnd
	bar.Current = th.Current
	bar.CurrentN = th.Current
	bar.Empty = th.Empty
}

func getCharset() string {
	if runtime.GOOS == "windows" && os.Getenv("OS") != "CYGWIN" {
		return "cp437"
	}

	var utf8 = ".UTF-8"
	if strings.Contains(os.Getenv("LC_ALL"), utf8) ||
		os.Getenv("LC_CTYPE") == "UTF-8" ||
		strings.Contains(os.Getenv("LANG"), utf8) {
		return "unicode"
	}

	return "ascii"
}

var theme = themes[getCharset()]

// GetTheme returns the theme used to show progress
func GetTheme() *ProgressTheme {
	return theme
}

const (
	maxLabelLength = 40
	// percentages, to the 1/100th
	barTotal    = 100 * 100
	refreshRate = 125 * time.Millisecond
)

var (
	progressLock sync.Mutex
	progressOut  io.Writer = os.Stderr

	counter   *progress.Counter
	bar       *pb.ProgressBar
	label     string
	paused    bool
	lastDrawn time.Time

	lastJsonPrintTime    time.Time
	maxJsonPrintDuration = 500 * time.Millisecond
)

func progressVisible() bool {
	return !settings.noProgress && !settings.quiet && !settings.json
}

// ProgressLabel sets the string printed next to the progress indicator
func ProgressLabel(newLabel string) {
	progressLock.Lock()
	defer progressLock.Unlock()

	if len(newLabel) > maxLabelLength {
		newLabel = fmt.Sprintf("...%s", newLabel[len(newLabel)-(maxLabelLength-3):])
	}
	label = newLabel
}

// StartProgress begins a period in which progress is regularly printed
func StartProgress() {
	StartProgressWithTotalBytes(0)
}

// StartProgressWithTotalBytes begins a period in which progress is regularly printed,
// and bps (bytes per second) is estimated from the total size given
func StartProgressWithTotalBytes(totalBytes int64) {
	progressLock.Lock()
	defer progressLock.Unlock()

	if counter != nil {
		// Already in-progress
		return
	}

	counter = progress.NewCounter()
	counter.SetTotalBytes(totalBytes)
	counter.Start()

	// speed and ETA come from the counter, the bar only draws
	bar = pb.New64(barTotal)
	bar.ShowCounters = false
	bar.ShowSpeed = false
	bar.ShowTimeLeft = false
	bar.ShowFinalTime = false
	bar.ManualUpdate = true
	if progressVisible() {
		bar.Output = progressOut
	} else {
		bar.NotPrint = true
	}
	bar.SetMaxWidth(80)
	theme.apply(bar)
	bar.Start()

	paused = false
	lastDrawn = time.Time{}
}

// PauseProgress temporarily stops printing the progress bar
func PauseProgress() {
	progressLock.Lock()
	defer progressLock.Unlock()

	if bar == nil || paused {
		return
	}
	paused = true
	erase()
}

// ResumeProgress resumes printing the progress bar after PauseProgress was called
func ResumeProgress() {
	progressLock.Lock()
	defer progressLock.Unlock()

	if bar == nil {
		return
	}
	paused = false
	draw()
}

// Progress sets the completion of a task whose progress is being printed
// It only has an effect if StartProgress was already called.
func Progress(alpha float64) {
	progressLock.Lock()

	if counter == nil {
		progressLock.Unlock()
		return
	}

	counter.SetProgress(alpha)
	bar.Set64(int64(counter.Progress() * barTotal))
	if time.Since(lastDrawn) > refreshRate {
		draw()
	}

	var msg JsonMessage
	if settings.json {
		if lastJsonPrintTime.IsZero() || time.Since(lastJsonPrintTime) > maxJsonPrintDuration {
			lastJsonPrintTime = time.Now()
			msg = JsonMessage{
				"progress":   counter.Progress(),
				"percentage": counter.Progress() * 100.0,
				"eta":        counter.ETA().Seconds(),
				"bps":        counter.BPS(),
			}
		}
	}
	progressLock.Unlock()

	if msg != nil {
		send("progress", msg)
	}
}

// EndProgress stops refreshing the progress bar.
func EndProgress() {
	progressLock.Lock()
	defer progressLock.Unlock()

	if counter == nil {
		return
	}

	bar.Set64(barTotal)
	bar.Postfix("")
	if paused {
		bar.Output = nil
		bar.NotPrint = true
	}
	bar.Finish()

	bar = nil
	counter = nil
	label = ""
}

// caller must hold progressLock
func draw() {
	if paused || bar == nil {
		return
	}

	lastDrawn = time.Now()
	bar.Postfix(barPostfix(counter, label))
	bar.Update()
}

// caller must hold progressLock
func erase() {
	if bar == nil || bar.Output == nil {
		return
	}
	fmt.Fprintf(progressOut, "\r%s\r", strings.Repeat(" ", 80))
}

func barPostfix(c *progress.Counter, label string) string {
	var sb strings.Builder
	if bps := c.BPS(); bps > 0 {
		sb.WriteString(fmt.Sprintf(" @ %s/s", humanize.IBytes(uint64(bps))))
	}
	if eta := c.ETA(); eta > 0 {
		sb.WriteString(fmt.Sprintf(" %s left", eta.Round(time.Second)))
	}
	if label != "" {
		sb.WriteString(" ")
		sb.WriteString(label)
	}
	return sb.String()
}
