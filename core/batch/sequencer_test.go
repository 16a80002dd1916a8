package batch

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markmailer/core/classify"
	"markmailer/core/sheet"
	"markmailer/infra/logger"
)

var testCols = sheet.ColumnMap{
	FirstName:     0,
	LastName:      1,
	StudentNumber: 2,
	Email:         3,
	Criteria:      []int{4},
	Total:         5,
	Feedback:      6,
}

var maxMarks = sheet.Row{"", "", "", "", "10", "10", ""}

func studentRow(first, last, number, email, total string) sheet.Row {
	return sheet.Row{first, last, number, email, "8", total, "Good work."}
}

type mockRenderer struct {
	rendered []sheet.Row
	failOn   map[int]bool
}

func (m *mockRenderer) Render(row, _ sheet.Row) (string, error) {
	call := len(m.rendered)
	m.rendered = append(m.rendered, row)
	if m.failOn[call] {
		return "", fmt.Errorf("disk full")
	}
	return fmt.Sprintf("artifact-%d.pdf", call), nil
}

type sendCall struct {
	to, artifact, number string
}

type mockDispatcher struct {
	sends  []sendCall
	failOn map[int]bool
	closed int
}

func (m *mockDispatcher) Send(to, artifact, number string) error {
	call := len(m.sends)
	m.sends = append(m.sends, sendCall{to, artifact, number})
	if m.failOn[call] {
		return fmt.Errorf("550 rejected")
	}
	return nil
}

func (m *mockDispatcher) Close() error {
	m.closed++
	return nil
}

func newTestSequencer(t *testing.T, opts Options) (*Sequencer, *bytes.Buffer) {
	t.Helper()
	var progress bytes.Buffer
	opts.Columns = testCols
	opts.MaxMarks = maxMarks
	opts.Logger = logger.NopLogger{}
	opts.Progress = &progress
	opts.StartRow = 3
	seq, err := New(opts)
	require.NoError(t, err)
	seq.RenderDelay = 0
	seq.SendDelay = 0
	return seq, &progress
}

func TestRunPDFOnly(t *testing.T) {
	// One valid row, one wholly blank row, one malformed student number.
	rows := []sheet.Row{
		studentRow("Alice", "Nguyen", "12345", "alice@example.com", "8"),
		{"", "", "", "", "", "", ""},
		studentRow("Bob", "Li", "99", "bob@example.com", "5"),
	}
	renderer := &mockRenderer{}
	seq, progress := newTestSequencer(t, Options{Rows: rows, Mode: MailOff, Renderer: renderer})

	sum, err := seq.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, "Generated PDFs for 1 student.", sum.Line)
	require.Len(t, renderer.rendered, 1)
	assert.Equal(t, "12345", renderer.rendered[0].Cell(testCols.StudentNumber))
	assert.Equal(t, ".x\nGenerated PDFs for 1 student.\n", progress.String())
}

func TestRunFilteredProgressMark(t *testing.T) {
	rows := []sheet.Row{
		studentRow("Alice", "Nguyen", "12345", "alice@example.com", "8"),
		studentRow("Bob", "Li", "12346", "bob@example.com", "7"),
	}
	renderer := &mockRenderer{}
	seq, progress := newTestSequencer(t, Options{
		Rows:     rows,
		Mode:     MailOff,
		Renderer: renderer,
		Filter:   classify.ParseIDFilter("12346"),
	})

	sum, err := seq.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, "S.\nGenerated PDFs for 1 student.\n", progress.String())
}

func TestRunCoordinatorMode(t *testing.T) {
	rows := []sheet.Row{
		studentRow("Alice", "Nguyen", "12345", "alice@example.com", "8"),
		studentRow("Bob", "Li", "12346", "bob@example.com", "7"),
	}
	renderer := &mockRenderer{}
	dispatcher := &mockDispatcher{failOn: map[int]bool{1: true}}
	seq, _ := newTestSequencer(t, Options{
		Rows:        rows,
		Mode:        MailCoordinator,
		Renderer:    renderer,
		Dispatcher:  dispatcher,
		Coordinator: "coord@example.edu",
	})

	sum, err := seq.Run(context.Background())
	require.NoError(t, err)
	// The failed send is logged, not counted, and does not halt the batch.
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, "Sent test emails relating to 1 student.", sum.Line)
	require.Len(t, dispatcher.sends, 2)
	for _, call := range dispatcher.sends {
		assert.Equal(t, "coord@example.edu", call.to)
	}
	assert.Equal(t, 1, dispatcher.closed)
}

func TestRunStudentMode(t *testing.T) {
	rows := []sheet.Row{
		studentRow("Alice", "Nguyen", "12345", "alice@example.com", "8"),
		studentRow("Cara", "Moss", "12347", "no-at-sign", "6"),
	}
	renderer := &mockRenderer{}
	dispatcher := &mockDispatcher{}
	seq, _ := newTestSequencer(t, Options{
		Rows:       rows,
		Mode:       MailStudents,
		Renderer:   renderer,
		Dispatcher: dispatcher,
	})

	sum, err := seq.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Sent email to 1 student.", sum.Line)
	// The bad address is skipped before rendering.
	require.Len(t, renderer.rendered, 1)
	require.Len(t, dispatcher.sends, 1)
	assert.Equal(t, "alice@example.com", dispatcher.sends[0].to)
	assert.Equal(t, "12345", dispatcher.sends[0].number)
	assert.Equal(t, 1, dispatcher.closed)
}

func TestRunRenderFailureContinues(t *testing.T) {
	rows := []sheet.Row{
		studentRow("Alice", "Nguyen", "12345", "alice@example.com", "8"),
		studentRow("Bob", "Li", "12346", "bob@example.com", "7"),
	}
	renderer := &mockRenderer{failOn: map[int]bool{0: true}}
	seq, _ := newTestSequencer(t, Options{Rows: rows, Mode: MailOff, Renderer: renderer})

	sum, err := seq.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Len(t, renderer.rendered, 2)
}

func TestRunCancelledContext(t *testing.T) {
	rows := []sheet.Row{studentRow("Alice", "Nguyen", "12345", "a@b.c", "8")}
	dispatcher := &mockDispatcher{}
	seq, _ := newTestSequencer(t, Options{
		Rows: rows, Mode: MailStudents,
		Renderer: &mockRenderer{}, Dispatcher: dispatcher,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := seq.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	// The channel is still released on early exit.
	assert.Equal(t, 1, dispatcher.closed)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	_, err = New(Options{Renderer: &mockRenderer{}, Logger: logger.NopLogger{}, Progress: &bytes.Buffer{}, Mode: MailStudents})
	assert.Error(t, err)
	_, err = New(Options{Renderer: &mockRenderer{}, Logger: logger.NopLogger{}, Progress: &bytes.Buffer{}, Mode: MailCoordinator, Dispatcher: &mockDispatcher{}})
	assert.Error(t, err)
}
