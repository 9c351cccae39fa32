// Package trace records scheduling plans so they can be compared across
// hosts and printed.
package trace

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/dudk/split"
	"github.com/dudk/split/event"
)

// Entry is a recorded sub-block.
type Entry struct {
	Block  int
	Start  int
	End    int
	Events []event.Event
}

// Len returns number of frames of the sub-block.
func (e Entry) Len() int {
	return e.End - e.Start
}

func (e Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "block %d [%d, %d)", e.Block, e.Start, e.End)
	for _, ev := range e.Events {
		fmt.Fprintf(&b, " %d:%d:%v", ev.Offset(), ev.Seq(), ev.Kind())
		fmt.Fprintf(&b, "/%02x", ev.Message().Bytes())
	}
	return b.String()
}

// Recorder is a split.Observer that records every sub-block. Blocks are
// numbered from zero, a new block starts with a sub-block at frame zero.
// It allocates and is meant for tests and offline planning only.
type Recorder struct {
	block   int
	entries []Entry
}

// Observe implements split.Observer.
func (r *Recorder) Observe(sb split.SubBlock) {
	if sb.Start == 0 && len(r.entries) > 0 {
		r.block++
	}
	r.entries = append(r.entries, Entry{
		Block:  r.block,
		Start:  sb.Start,
		End:    sb.End,
		Events: append([]event.Event(nil), sb.Events...),
	})
}

// Entries returns recorded sub-blocks.
func (r *Recorder) Entries() []Entry {
	return r.entries
}

// Reset clears recorded entries.
func (r *Recorder) Reset() {
	r.block = 0
	r.entries = nil
}

// Lines returns one text line per recorded sub-block.
func (r *Recorder) Lines() []string {
	lines := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		lines = append(lines, e.String())
	}
	return lines
}

func (r *Recorder) String() string {
	return strings.Join(r.Lines(), "\n")
}

// Diff returns unified diff of two recorded plans. It returns empty string
// if plans are identical.
func Diff(nameA string, a *Recorder, nameB string, b *Recorder) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withNewlines(a.Lines()),
		B:        withNewlines(b.Lines()),
		FromFile: nameA,
		ToFile:   nameB,
		Context:  2,
	})
}

func withNewlines(lines []string) []string {
	result := make([]string, len(lines))
	for i := range lines {
		result[i] = lines[i] + "\n"
	}
	return result
}

// Dump returns a detailed dump of recorded entries.
func Dump(r *Recorder) string {
	cfg := spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}
	return cfg.Sdump(r.entries)
}
