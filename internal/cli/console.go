package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/okian/plusolver/internal/adapters/mq/worker"
	"github.com/okian/plusolver/internal/domain/model"
)

const barWidth = 20

var (
	stageStyle = lipgloss.NewStyle().Bold(true).Width(18)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
	keyStyle   = lipgloss.NewStyle().Bold(true).PaddingRight(2)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)
)

// Console renders progress events for a terminal. It is a worker.Sink.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	last    *model.AttemptResult
	failure string
	closed  bool
}

var _ worker.Sink = (*Console)(nil)

// NewConsole writes to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Send implements worker.Sink.
func (c *Console) Send(_ context.Context, e worker.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Stage {
	case model.StageClosed:
		c.closed = true
		return nil
	case model.StageError:
		c.failure = e.Error
		if c.failure == "" {
			c.failure = e.Message
		}
	}
	if e.Result != nil {
		res := *e.Result
		c.last = &res
	}

	_, err := fmt.Fprintf(c.out, "%s %s %s\n", stageStyle.Render(string(e.Stage)), bar(e.Progress), styleFor(e.Stage).Render(e.Message))
	return err
}

// Finish prints the summary of the last result and reports whether the run
// ended in an error.
func (c *Console) Finish() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last != nil {
		fmt.Fprintln(c.out, Summary(*c.last))
	}
	switch {
	case c.failure != "":
		return fmt.Errorf("%w: %s", ErrRunFailed, c.failure)
	case c.last == nil:
		return ErrNoResult
	}
	return nil
}

// Last returns the most recent attempt result seen.
func (c *Console) Last() (model.AttemptResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return model.AttemptResult{}, false
	}
	return *c.last, true
}

func styleFor(s model.Stage) lipgloss.Style {
	switch s {
	case model.StageFinal:
		return okStyle
	case model.StageRetrying:
		return warnStyle
	case model.StageError:
		return errStyle
	default:
		return lipgloss.NewStyle()
	}
}

func bar(progress int) string {
	progress = max(0, min(100, progress))
	filled := progress * barWidth / 100
	return dimStyle.Render("["+strings.Repeat("#", filled)+strings.Repeat(".", barWidth-filled)+"]") +
		fmt.Sprintf(" %3d%%", progress)
}

// Summary renders an attempt result as a bordered key/value table.
func Summary(r model.AttemptResult) string {
	rows := [][2]string{
		{"Final result", num(r.FinalResult)},
		{"User knowledge", strconv.FormatFloat(r.UserKnowledge, 'f', 2, 64) + "%"},
		{"Correct", fmt.Sprintf("%d / %d", r.CorrectItems, r.TotalItems)},
		{"Average score", strconv.FormatFloat(r.AverageScore, 'f', 2, 64)},
		{"Points", num(r.TotalUserPoints) + " / " + num(r.MaxPoints) + " (required " + num(r.RequiredPoints) + ")"},
		{"Ranking in store", num(r.Ranking)},
		{"Gold plus", num(r.EarnedGoldPlus) + " earned, " + num(r.TotalGoldPlus) + " total"},
	}
	if r.IntegrityGaps > 0 {
		rows = append(rows, [2]string{"Integrity gaps", warnStyle.Render(strconv.Itoa(r.IntegrityGaps))})
	}
	if r.Attempt > 0 {
		rows = append(rows, [2]string{"Attempts", strconv.Itoa(r.Attempt)})
	}

	keys := make([]string, len(rows))
	vals := make([]string, len(rows))
	for i, row := range rows {
		keys[i] = keyStyle.Render(row[0])
		vals[i] = row[1]
	}
	table := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.JoinVertical(lipgloss.Left, keys...),
		lipgloss.JoinVertical(lipgloss.Left, vals...),
	)
	return boxStyle.Render(table)
}

func num(n *model.Number) string {
	if n == nil {
		return "-"
	}
	return strconv.FormatFloat(n.Float64(), 'f', -1, 64)
}
