// Package progress reports scan progress to the terminal.
//
// Reporting is advisory only: implementations must never influence control
// flow or the content of the scan result. The collector is handed a Reporter
// and calls it at the three milestones the scan exposes; passing Nop
// silences all output.
package progress

import "github.com/pterm/pterm"

// Reporter receives scan progress milestones.
type Reporter interface {
	// RegionsDiscovered is called once with the number of regions the scan
	// will cover.
	RegionsDiscovered(n int)

	// TablesDiscovered is called once, before metric collection begins,
	// with the total number of provisioned tables found across all regions.
	TablesDiscovered(n int)

	// TableCollected is called once per table as its metrics are folded
	// into the aggregate.
	TableCollected()

	// Done is called after the last region pipeline has been aggregated.
	Done()
}

// Nop is a Reporter that discards all progress events.
var Nop Reporter = nopReporter{}

type nopReporter struct{}

func (nopReporter) RegionsDiscovered(int) {}
func (nopReporter) TablesDiscovered(int)  {}
func (nopReporter) TableCollected()       {}
func (nopReporter) Done()                 {}

// Terminal renders progress with a pterm progress bar on stderr-adjacent
// terminal output. Construct with NewTerminal; the zero value is unusable.
type Terminal struct {
	bar *pterm.ProgressbarPrinter
}

// NewTerminal returns a terminal Reporter.
func NewTerminal() *Terminal {
	return &Terminal{}
}

func (t *Terminal) RegionsDiscovered(n int) {
	pterm.Info.Printfln("Scanning %d regions for provisioned tables...", n)
}

func (t *Terminal) TablesDiscovered(n int) {
	pterm.Info.Printfln("Found %d provisioned tables across all regions.", n)
	if n == 0 {
		return
	}
	bar, err := pterm.DefaultProgressbar.
		WithTotal(n).
		WithTitle("Collecting metrics").
		WithShowElapsedTime(true).
		WithShowCount(true).
		Start()
	if err != nil {
		return
	}
	t.bar = bar
}

func (t *Terminal) TableCollected() {
	if t.bar != nil {
		t.bar.Increment()
	}
}

func (t *Terminal) Done() {
	if t.bar != nil {
		t.bar.Stop()
		t.bar = nil
	}
}
