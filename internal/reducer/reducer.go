// Package reducer owns the per-page reduction run: it walks the discovered
// segments in document order, swaps each one's text for sanitized reduced
// content, and can restore the page exactly, including halfway through a
// cancelled run.
package reducer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hyperifyio/reduct/internal/client"
	"github.com/hyperifyio/reduct/internal/page"
	"github.com/hyperifyio/reduct/internal/sanitize"
	"github.com/hyperifyio/reduct/internal/segment"
)

// State is the run state of one page. Exactly one run may be active at a
// time; a second start is rejected rather than queued.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCancelling
	StateReduced
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	case StateReduced:
		return "reduced"
	}
	return "unknown"
}

// ErrInvalidState is returned when an operation is not legal from the
// current state. The page is left untouched.
var ErrInvalidState = errors.New("operation not valid in current state")

// ErrCancelled is returned by Start after a cancelled run has been
// restored. Partial reduction is an accepted outcome, not a failure.
var ErrCancelled = errors.New("reduction cancelled")

// ReductionService is the single external call the orchestrator depends on.
// *client.Client satisfies it.
type ReductionService interface {
	Reduce(ctx context.Context, req client.ReductionRequest) (client.ReductionResponse, error)
}

// Progress is a fire-and-forget notification emitted after each segment.
type Progress struct {
	Processed int
	Total     int
	Note      string
}

// Options parameterize one run. Level is the target output size as a
// percentage of the original; Prompt optionally replaces the server's
// default instruction.
type Options struct {
	Level  int
	Prompt string
}

// Status is a side-effect-free snapshot of the orchestrator.
type Status struct {
	State     State
	Processed int
	Total     int
}

// Reduced reports whether the page currently shows reduced content.
func (s Status) Reduced() bool { return s.State == StateReduced }

// Orchestrator drives reduction for exactly one page. It is the page's sole
// mutator; the only cross-goroutine entry points are Cancel and Status.
type Orchestrator struct {
	// OnProgress, when set, receives a notification after every segment.
	// It must tolerate being called from the Start goroutine.
	OnProgress func(Progress)
	Logger     zerolog.Logger

	pg  *page.Page
	svc ReductionService

	mu        sync.Mutex
	state     State
	cancelled bool
	processed int
	total     int
	originals map[*html.Node]string
}

// New binds an orchestrator to a page and a reduction service.
func New(pg *page.Page, svc ReductionService) *Orchestrator {
	return &Orchestrator{
		pg:     pg,
		svc:    svc,
		Logger: zerolog.Nop(),
		state:  StateIdle,
	}
}

// Start runs one full reduction pass. Valid only from idle. The loop is
// sequential: one in-flight call at a time, segments strictly in document
// order, cancellation honored at segment boundaries. A per-segment failure
// is logged and skipped; the segment keeps its original text. On a
// cancelled run the page is restored and ErrCancelled is returned.
func (o *Orchestrator) Start(ctx context.Context, opts Options) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return fmt.Errorf("start while %s: %w", o.state, ErrInvalidState)
	}
	o.state = StateRunning
	o.cancelled = false
	o.processed = 0
	o.total = 0
	o.originals = make(map[*html.Node]string)
	o.mu.Unlock()

	// Read phase: the full work list is computed before any mutation, and
	// the write phase only ever touches the tree through these references.
	segs := segment.Collect(o.pg.Body())

	o.mu.Lock()
	o.total = len(segs)
	o.mu.Unlock()

	o.report(0, len(segs), fmt.Sprintf("found %d segments", len(segs)))

	for _, seg := range segs {
		if o.cancelRequested() {
			o.Logger.Info().Int("processed", o.snapshotProcessed()).Msg("cancellation requested; stopping at segment boundary")
			break
		}
		o.reduceSegment(ctx, seg, opts)
	}

	o.mu.Lock()
	cancelled := o.cancelled
	o.mu.Unlock()

	if cancelled {
		if err := o.finishCancelled(); err != nil {
			return err
		}
		return ErrCancelled
	}

	o.mu.Lock()
	o.state = StateReduced
	o.mu.Unlock()
	o.report(o.snapshotProcessed(), len(segs), "reduction complete")
	return nil
}

// reduceSegment performs capture, the external call, sanitization, and the
// DOM swap for one segment. Any failure leaves the segment untouched so it
// never ends up with no visible content.
func (o *Orchestrator) reduceSegment(ctx context.Context, seg segment.Segment, opts Options) {
	// Capture originals before the first mutation. Entries are never
	// overwritten within a run.
	o.mu.Lock()
	for _, tn := range seg.Nodes {
		if _, ok := o.originals[tn]; !ok {
			o.originals[tn] = tn.Data
		}
	}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.processed++
		processed, total := o.processed, o.total
		o.mu.Unlock()
		o.report(processed, total, fmt.Sprintf("processed %d of %d", processed, total))
	}()

	resp, err := o.svc.Reduce(ctx, client.ReductionRequest{
		Text:           seg.Text,
		ReductionLevel: opts.Level,
		Prompt:         opts.Prompt,
	})
	if err != nil {
		if ctx.Err() != nil {
			// The surrounding context is gone; treat it as a cancellation
			// request so the loop stops at this boundary.
			o.requestCancel()
		}
		o.Logger.Warn().Err(err).Msg("segment reduction failed; skipping")
		return
	}
	if strings.TrimSpace(resp.ReducedText) == "" {
		o.Logger.Warn().Msg("segment reduction returned no content; skipping")
		return
	}

	safe := sanitize.Clean(resp.ReducedText)
	frag, err := buildFragment(safe)
	if err != nil || frag == nil {
		o.Logger.Warn().Err(err).Msg("segment produced no usable content; skipping")
		return
	}

	for _, tn := range seg.Nodes {
		tn.Data = ""
	}
	insertFragment(seg.Container, frag)
}

// phrasingOnly lists segment containers that cannot hold a div. An HTML
// parser auto-closes them at the fragment, so the serialized document
// would re-parse to a different tree than the one in memory.
var phrasingOnly = map[string]struct{}{
	"p": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
}

// insertFragment places frag inside the container, or as its following
// sibling when the container only admits phrasing content.
func insertFragment(container, frag *html.Node) {
	if _, ok := phrasingOnly[strings.ToLower(container.Data)]; ok && container.Parent != nil {
		container.Parent.InsertBefore(frag, container.NextSibling)
		return
	}
	container.AppendChild(frag)
}

// buildFragment parses sanitized HTML into a marked container element.
// It returns nil when the content carries no visible text.
func buildFragment(safe string) (*html.Node, error) {
	ctxNode := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(safe), ctxNode)
	if err != nil {
		return nil, fmt.Errorf("parse reduced fragment: %w", err)
	}
	frag := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr:     []html.Attribute{{Key: "class", Val: page.FragmentClass}},
	}
	for _, n := range nodes {
		frag.AppendChild(n)
	}
	if strings.TrimSpace(nodeText(frag)) == "" {
		return nil, nil
	}
	return frag, nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// Cancel requests a cooperative stop. It takes effect at the next segment
// boundary; an in-flight call for the current segment is allowed to finish.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateRunning {
		return fmt.Errorf("cancel while %s: %w", o.state, ErrInvalidState)
	}
	o.state = StateCancelling
	o.cancelled = true
	return nil
}

// Restore removes every inserted fragment and writes the captured original
// content back into each text node still attached to the document, then
// returns to idle. It is valid only once a run has finished; a cancelling
// run restores itself at the segment boundary and must not be raced here,
// or the in-flight segment would mutate the page after the originals map
// is gone. Calling it when already idle is a no-op.
func (o *Orchestrator) Restore() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case StateIdle:
		return nil
	case StateRunning, StateCancelling:
		return fmt.Errorf("restore while %s: %w", o.state, ErrInvalidState)
	}
	o.restoreLocked()
	return nil
}

func (o *Orchestrator) restoreLocked() {
	removed := o.pg.RemoveFragments()
	restored := 0
	for tn, original := range o.originals {
		if o.pg.Attached(tn) {
			tn.Data = original
			restored++
		}
	}
	o.Logger.Info().Int("fragments", removed).Int("textNodes", restored).Msg("page restored")
	o.originals = nil
	o.cancelled = false
	o.processed = 0
	o.total = 0
	o.state = StateIdle
}

// finishCancelled is the internal completion of a cancelled run.
func (o *Orchestrator) finishCancelled() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateCancelling {
		return fmt.Errorf("finish cancelled while %s: %w", o.state, ErrInvalidState)
	}
	o.restoreLocked()
	return nil
}

// Status returns a snapshot without side effects.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{State: o.state, Processed: o.processed, Total: o.total}
}

func (o *Orchestrator) cancelRequested() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled
}

func (o *Orchestrator) requestCancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateRunning {
		o.state = StateCancelling
		o.cancelled = true
	}
}

func (o *Orchestrator) snapshotProcessed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.processed
}

// report notifies the progress listener, if any. Delivery is best effort;
// a missing listener is fine.
func (o *Orchestrator) report(processed, total int, note string) {
	o.Logger.Debug().Int("processed", processed).Int("total", total).Msg(note)
	if o.OnProgress != nil {
		o.OnProgress(Progress{Processed: processed, Total: total, Note: note})
	}
}
