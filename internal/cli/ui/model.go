// --- START OF FINAL REVISED FILE internal/cli/ui/model.go ---
package ui

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stackvity/dicom-extractor/internal/cli/hooks"
	"github.com/stackvity/dicom-extractor/pkg/extractor"
)

const (
	// header, counters, section title, footer
	chromeHeight = 4
	// MaxRecentFailures bounds the failure list kept in memory.
	MaxRecentFailures = 200

	phaseStarting   = "Starting..."
	phaseScanning   = "Scanning..."
	phaseExtracting = "Extracting..."
	phaseStopping   = "Stopping..."
	phaseComplete   = "Complete"
	phaseCancelled  = "Cancelled"
)

// Counts is the live tally shown under the header. Update runs on the
// program goroutine, so no locking is needed.
type Counts struct {
	Discovered int
	InFlight   int
	Succeeded  int
	Cached     int
	Failed     int
	Unreadable int
}

// Model is the bubbletea model for a running extraction.
type Model struct {
	failures    list.Model
	spinner     spinner.Model
	width       int
	height      int
	initialized bool

	version    string
	counts     Counts
	phase      string
	fatalError string
	quitting   bool
	done       bool
	startTime  time.Time
	items      []list.Item

	// cancel stops the run when the user quits; raw mode swallows SIGINT.
	cancel func()
}

// failureItem is one entry of the recent-failures list.
type failureItem struct {
	path       string
	message    string
	unreadable bool
}

func (i failureItem) FilterValue() string { return i.path }

func (i failureItem) Title() string {
	if i.unreadable {
		return StatusStyleUnreadable.Render("[dir]") + " " + i.path
	}
	return StatusStyleFailed.Render("[✗]") + " " + filepath.Base(i.path) + "  " + filepath.Dir(i.path)
}

func (i failureItem) Description() string { return i.message }

// NewModel builds the initial model. cancel may be nil.
func NewModel(version string, cancel func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StatusStyleProcessing

	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorSelectedFg).
		Background(ColorSelectedBg).
		Bold(true).
		Padding(0, 0, 0, 1)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorSelectedDescFg).
		Background(ColorSelectedBg).
		Padding(0, 0, 0, 1)
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.Foreground(ColorNormalFg).Padding(0, 0, 0, 1)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.Foreground(ColorNormalDescFg).Padding(0, 0, 0, 1)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	if version == "" {
		version = "dev"
	}
	return Model{
		failures:  l,
		spinner:   s,
		version:   version,
		phase:     phaseStarting,
		startTime: time.Now(),
		cancel:    cancel,
	}
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Counts returns the current tally.
func (m *Model) Counts() Counts { return m.counts }

// Update handles key input, window resizes and hook messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.failures.SetSize(m.width, max(1, m.height-chromeHeight))
		m.initialized = true

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.quitting {
				return m, nil
			}
			m.quitting = true
			if !m.done {
				m.phase = phaseStopping
				if m.cancel != nil {
					m.cancel()
				}
			}
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.failures, cmd = m.failures.Update(msg)
		cmds = append(cmds, cmd)

	case spinner.TickMsg:
		if m.quitting || m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case hooks.FileDiscoveredMsg:
		m.counts.Discovered++
		if m.phase == phaseStarting {
			m.phase = phaseScanning
		}

	case hooks.FileStatusUpdateMsg:
		cmds = append(cmds, m.applyStatus(msg))

	case hooks.RunCompleteMsg:
		m.applyReport(msg.Report)
		return m, tea.Quit
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) applyStatus(msg hooks.FileStatusUpdateMsg) tea.Cmd {
	switch msg.Status {
	case extractor.StatusProcessing:
		m.counts.InFlight++
		if m.phase == phaseStarting || m.phase == phaseScanning {
			m.phase = phaseExtracting
		}
		return nil
	case extractor.StatusSuccess:
		m.counts.Succeeded++
	case extractor.StatusCached:
		m.counts.Succeeded++
		m.counts.Cached++
	case extractor.StatusFailed:
		m.counts.Failed++
	case extractor.StatusUnreadable:
		m.counts.Unreadable++
		return m.pushFailure(failureItem{path: msg.Path, message: msg.Message, unreadable: true})
	default:
		return nil
	}
	if m.counts.InFlight > 0 {
		m.counts.InFlight--
	}
	if msg.Status == extractor.StatusFailed {
		return m.pushFailure(failureItem{path: msg.Path, message: msg.Message})
	}
	return nil
}

func (m *Model) pushFailure(item failureItem) tea.Cmd {
	m.items = append([]list.Item{item}, m.items...)
	if len(m.items) > MaxRecentFailures {
		m.items = m.items[:MaxRecentFailures]
	}
	return m.failures.SetItems(m.items)
}

// applyReport replaces the live tally with the report's final counts.
func (m *Model) applyReport(r extractor.Report) {
	s := r.Summary
	m.done = true
	m.counts = Counts{
		Discovered: s.DiscoveredCount,
		Succeeded:  s.SucceededCount,
		Cached:     s.CachedCount,
		Failed:     s.FailedCount,
		Unreadable: s.DiscoveryErrors,
	}
	m.phase = phaseComplete
	if s.Cancelled {
		m.phase = phaseCancelled
	}
	if s.FatalErrorOccurred {
		m.fatalError = "Fatal error: " + s.FatalError
	}
}

// View renders header, counters, the failure list and the footer.
func (m *Model) View() string {
	if m.quitting && !m.done {
		return "Stopping, finishing in-flight files...\n"
	}
	if !m.initialized {
		return "Initializing..."
	}

	left := fmt.Sprintf("DICOM Extractor %s", m.version)
	right := m.phase
	if !m.done {
		right = m.spinner.View() + " " + m.phase
	}
	header := HeaderStyle.Width(m.width).Render(spread(m.width-2, left, right))

	counters := CountersStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top,
		fmt.Sprintf("Discovered: %d  ", m.counts.Discovered),
		StatusStyleProcessing.Render(fmt.Sprintf("In flight: %d  ", m.counts.InFlight)),
		StatusStyleSuccess.Render(fmt.Sprintf("Succeeded: %d  ", m.counts.Succeeded)),
		StatusStyleCached.Render(fmt.Sprintf("Cached: %d  ", m.counts.Cached)),
		StatusStyleFailed.Render(fmt.Sprintf("Failed: %d  ", m.counts.Failed)),
		StatusStyleUnreadable.Render(fmt.Sprintf("Unreadable dirs: %d", m.counts.Unreadable)),
	))

	title := SectionStyle.Render("Recent failures")
	body := m.failures.View()
	if len(m.items) == 0 {
		body = CountersStyle.Foreground(ColorNormalDescFg).Render("none")
	}

	elapsed := time.Since(m.startTime).Round(time.Second)
	footer := FooterStyle.Width(m.width).Render(spread(m.width-2, "Elapsed: "+elapsed.String(), "q: stop"))

	parts := []string{header, counters, title, body}
	if m.fatalError != "" {
		parts = append(parts, StatusStyleFailed.Render(m.fatalError))
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// spread places left and right at the edges of a line of the given width.
func spread(width int, left, right string) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, lipgloss.PlaceHorizontal(gap, lipgloss.Center, " "), right)
}

// --- END OF FINAL REVISED FILE internal/cli/ui/model.go ---
