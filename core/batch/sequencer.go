// Package batch drives spreadsheet rows through classification, rendering
// and optional delivery, strictly one row at a time.
package batch

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"markmailer/core/classify"
	"markmailer/core/logger"
	"markmailer/core/sheet"
)

// MailMode selects where rendered documents are delivered.
type MailMode int

const (
	// MailOff generates PDFs only.
	MailOff MailMode = iota
	// MailCoordinator sends every email to the coordinator (test mode).
	MailCoordinator
	// MailStudents sends each email to the student's own address.
	MailStudents
)

// Renderer produces one document artifact from a student row and the
// max-marks row, returning the artifact path.
type Renderer interface {
	Render(row, maxMarks sheet.Row) (string, error)
}

// Dispatcher delivers one artifact per processed row. The sequencer owns the
// dispatcher and closes it once, after the last row.
type Dispatcher interface {
	Send(to, artifact, studentNumber string) error
	Close() error
}

// Default pacing. The short pause keeps filesystem writes from overlapping;
// the long one respects SMTP provider rate limits.
const (
	DefaultRenderDelay = 100 * time.Millisecond
	DefaultSendDelay   = 5 * time.Second
)

// Sequencer processes candidate student rows in ascending order. All batch
// state lives here; nothing is shared or global.
type Sequencer struct {
	rows     []sheet.Row
	maxMarks sheet.Row
	cols     sheet.ColumnMap
	filter   map[string]struct{}
	mode     MailMode

	renderer    Renderer
	dispatcher  Dispatcher
	coordinator string
	log         logger.Logger
	progress    io.Writer

	// StartRow is the 1-based sheet position of the first candidate row,
	// used only for log messages.
	StartRow    int
	RenderDelay time.Duration
	SendDelay   time.Duration
}

// Options carries the collaborators and inputs of one batch run.
type Options struct {
	Rows        []sheet.Row
	MaxMarks    sheet.Row
	Columns     sheet.ColumnMap
	Filter      map[string]struct{}
	Mode        MailMode
	Renderer    Renderer
	Dispatcher  Dispatcher
	Coordinator string
	Logger      logger.Logger
	Progress    io.Writer
	StartRow    int
}

// New builds a Sequencer with default pacing.
func New(opts Options) (*Sequencer, error) {
	if opts.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if opts.Progress == nil {
		return nil, fmt.Errorf("progress writer is required")
	}
	if opts.Mode != MailOff && opts.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required when mailing")
	}
	if opts.Mode == MailCoordinator && opts.Coordinator == "" {
		return nil, fmt.Errorf("coordinator address is required in test mail mode")
	}
	return &Sequencer{
		rows:        opts.Rows,
		maxMarks:    opts.MaxMarks,
		cols:        opts.Columns,
		filter:      opts.Filter,
		mode:        opts.Mode,
		renderer:    opts.Renderer,
		dispatcher:  opts.Dispatcher,
		coordinator: opts.Coordinator,
		log:         opts.Logger,
		progress:    opts.Progress,
		StartRow:    opts.StartRow,
		RenderDelay: DefaultRenderDelay,
		SendDelay:   DefaultSendDelay,
	}, nil
}

// Summary reports the outcome of a completed batch.
type Summary struct {
	Processed int
	Line      string
}

// Run processes every row in order and emits the summary line. The held
// delivery channel is released exactly once, after the last row. Per-row
// failures never halt the batch; only context cancellation does.
func (s *Sequencer) Run(ctx context.Context) (Summary, error) {
	defer func() {
		if s.dispatcher != nil {
			if err := s.dispatcher.Close(); err != nil {
				s.log.Errorf("close delivery channel: %v", err)
			}
		}
	}()

	var processed int
	var totals []float64
	for i, row := range s.rows {
		if err := ctx.Err(); err != nil {
			return Summary{Processed: processed}, err
		}
		position := s.StartRow + i
		res := classify.Classify(row, s.cols, s.filter, s.mode != MailOff)
		switch res.Kind {
		case classify.Ignore:
			continue
		case classify.SkipInvalid:
			s.reportSkip(position, res.Reason, "x")
			continue
		case classify.SkipFiltered:
			s.reportSkip(position, res.Reason, "S")
			continue
		}

		artifact, err := s.renderer.Render(row, s.maxMarks)
		if err != nil {
			s.log.Errorf("row %d: render failed: %v", position, err)
			continue
		}
		if s.mode == MailOff {
			fmt.Fprint(s.progress, ".")
			processed++
			totals = s.recordTotal(totals, row)
			s.pause(ctx, s.RenderDelay)
			continue
		}

		to := row.Cell(s.cols.Email)
		if s.mode == MailCoordinator {
			to = s.coordinator
		}
		number := strings.TrimSpace(row.Cell(s.cols.StudentNumber))
		if err := s.dispatcher.Send(to, artifact, number); err != nil {
			s.log.Errorf("row %d: send to %s failed: %v", position, to, err)
		} else {
			s.log.Infof("row %d: sent feedback for %s to %s", position, number, to)
			processed++
			totals = s.recordTotal(totals, row)
		}
		s.pause(ctx, s.SendDelay)
	}

	sum := Summary{Processed: processed, Line: s.summaryLine(processed)}
	if s.mode == MailOff {
		fmt.Fprintf(s.progress, "\n%s\n", sum.Line)
	} else {
		s.log.Infof("%s", sum.Line)
	}
	s.reportStats(totals)
	return sum, nil
}

func (s *Sequencer) reportSkip(position int, reason, mark string) {
	if s.mode != MailOff {
		s.log.Warnf("row %d skipped: %s", position, reason)
		return
	}
	fmt.Fprint(s.progress, mark)
}

func (s *Sequencer) recordTotal(totals []float64, row sheet.Row) []float64 {
	raw := strings.TrimSpace(row.Cell(s.cols.Total))
	total, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.log.Debugf("unparsable total %q", raw)
		return totals
	}
	return append(totals, total)
}

func (s *Sequencer) reportStats(totals []float64) {
	if len(totals) == 0 {
		return
	}
	mean := stat.Mean(totals, nil)
	sd := 0.0
	if len(totals) > 1 {
		sd = stat.StdDev(totals, nil)
	}
	s.log.Infof("marks: n=%d mean=%.2f stddev=%.2f", len(totals), mean, sd)
}

func (s *Sequencer) summaryLine(n int) string {
	noun := "students"
	if n == 1 {
		noun = "student"
	}
	switch s.mode {
	case MailStudents:
		return fmt.Sprintf("Sent email to %d %s.", n, noun)
	case MailCoordinator:
		return fmt.Sprintf("Sent test emails relating to %d %s.", n, noun)
	default:
		return fmt.Sprintf("Generated PDFs for %d %s.", n, noun)
	}
}

func (s *Sequencer) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
