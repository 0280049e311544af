package cli

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// fileResult is the outcome of indexing one file.
type fileResult struct {
	Filename string
	Chunks   int
	Err      error
}

// fileDoneMsg carries one finished file from the upload goroutine.
type fileDoneMsg fileResult

// ingestProgressModel is the bubbletea model for a multi-file ingest.
type ingestProgressModel struct {
	progress progress.Model
	theme    Theme
	results  chan fileResult

	total    int
	done     int
	chunks   int
	failures []string
	finished bool
	quitting bool
}

// newIngestProgressModel creates a progress model for total files.
func newIngestProgressModel(total int, results chan fileResult) ingestProgressModel {
	prog := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
	)

	return ingestProgressModel{
		progress: prog,
		theme:    defaultTheme,
		results:  results,
		total:    total,
	}
}

// Init starts draining the upload results.
func (m ingestProgressModel) Init() tea.Cmd {
	return waitForFile(m.results)
}

// Update handles messages and returns the updated model.
func (m ingestProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case fileDoneMsg:
		m.done++
		if msg.Err != nil {
			m.failures = append(m.failures, fmt.Sprintf("%s: %v", msg.Filename, msg.Err))
		} else {
			m.chunks += msg.Chunks
		}

		if m.done >= m.total {
			m.finished = true
			return m, tea.Quit
		}
		return m, waitForFile(m.results)
	}

	return m, nil
}

// View renders the progress display.
func (m ingestProgressModel) View() string {
	if m.finished || m.quitting {
		return m.finalView()
	}

	var pct float64
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}

	status := m.theme.statusStyle().Render("[indexing]")
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d files", m.done, m.total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to abort")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

// finalView renders the completion message.
func (m ingestProgressModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render(
			fmt.Sprintf("\nAborted after %d/%d files.\n", m.done, m.total))
	}

	var output string
	if len(m.failures) == 0 {
		output = m.theme.completedStyle().Render("✓ Completed") + "\n\n"
	} else {
		output = m.theme.errorStyle().Render("✗ Completed with failures") + "\n\n"
	}
	output += fmt.Sprintf("  Files indexed:  %d\n", m.done-len(m.failures))
	output += fmt.Sprintf("  Chunks created: %d\n", m.chunks)
	if len(m.failures) > 0 {
		output += m.theme.errorStyle().Render(fmt.Sprintf("\nFailures (%d):\n", len(m.failures)))
		for _, e := range m.failures {
			output += fmt.Sprintf("  • %s\n", e)
		}
	}
	return output
}

// waitForFile delivers the next finished file to the Update loop.
func waitForFile(results chan fileResult) tea.Cmd {
	return func() tea.Msg {
		return fileDoneMsg(<-results)
	}
}

// runIngestProgress renders a progress bar while upload is called for every
// file in order. The channel is buffered so an aborted run never strands
// the upload goroutine.
func runIngestProgress(files []string, upload func(path string) (int, error)) error {
	results := make(chan fileResult, len(files))
	go func() {
		for _, f := range files {
			chunks, err := upload(f)
			results <- fileResult{Filename: f, Chunks: chunks, Err: err}
		}
	}()

	p := tea.NewProgram(newIngestProgressModel(len(files), results))
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(ingestProgressModel); ok {
		if m.quitting {
			return fmt.Errorf("ingest aborted after %d/%d files", m.done, m.total)
		}
		if len(m.failures) > 0 {
			return fmt.Errorf("%d of %d files failed", len(m.failures), m.total)
		}
	}
	return nil
}
