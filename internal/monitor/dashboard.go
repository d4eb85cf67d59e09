package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
)

// Model represents the BubbleTea dashboard model
type Model struct {
	serverURL  string
	client     *MetricsClient
	interval   time.Duration
	lastUpdate time.Time
	metrics    MetricsSnapshot
	err        error
	quitting   bool

	// Progress bars
	memoryProgress  progress.Model
	requestProgress progress.Model
	refusalProgress progress.Model
}

// MetricsSnapshot holds one poll of the daemon plus derived history.
type MetricsSnapshot struct {
	Uptime      int64
	Goroutines  int
	MemoryMB    float64
	At          time.Time
	IndexLoaded bool
	Generation  string
	Entries     int
	Model       string
	Dimension   int

	// Cumulative counters since daemon start
	Retrievals float64
	Errors     float64
	Accepted   float64
	Refused    float64

	MeanTopDistance float64
	MeanQuery       float64
	Threshold       float64

	// Derived from consecutive polls
	RequestRate float64

	// Historical data for sparklines (last N points)
	RateHistory     []float64
	LatencyHistory  []float64
	DistanceHistory []float64
	MemoryHistory   []float64

	// Peak values for progress bars
	RatePeak  float64
	MemoryMax float64
}

// RefusalRatio is the share of gate decisions that refused.
func (s MetricsSnapshot) RefusalRatio() float64 {
	total := s.Accepted + s.Refused
	if total == 0 {
		return 0
	}
	return s.Refused / total
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a new dashboard model polling serverURL.
func NewModel(serverURL string, interval time.Duration) Model {
	memProg := progress.New(
		progress.WithGradient("#00ff00", "#ffff00"),
		progress.WithWidth(40),
	)
	reqProg := progress.New(
		progress.WithGradient("#00ffff", "#ff00ff"),
		progress.WithWidth(40),
	)
	refProg := progress.New(
		progress.WithGradient("#00ff00", "#ff0000"),
		progress.WithWidth(40),
	)

	return Model{
		serverURL:       serverURL,
		client:          NewMetricsClient(serverURL),
		interval:        interval,
		memoryProgress:  memProg,
		requestProgress: reqProg,
		refusalProgress: refProg,
		metrics: MetricsSnapshot{
			RateHistory:     make([]float64, 0, historySize),
			LatencyHistory:  make([]float64, 0, historySize),
			DistanceHistory: make([]float64, 0, historySize),
			MemoryHistory:   make([]float64, 0, historySize),
			RatePeak:        1.0,   // avoids division by zero
			MemoryMax:       512.0, // MB
		},
	}
}

// getStatusBadge returns the overall daemon status badge.
func getStatusBadge(s MetricsSnapshot) string {
	switch {
	case !s.IndexLoaded:
		return warningStyle.Render("⚠ NO INDEX")
	case s.Retrievals > 0 && s.Errors/s.Retrievals > 0.1:
		return errorStyle.Render("✗ ERRORS")
	default:
		return healthyStyle.Render("✓ HEALTHY")
	}
}

// getDistanceBadge compares the mean top distance to the refusal threshold.
func getDistanceBadge(distance, threshold float64) string {
	if threshold <= 0 || distance < threshold*0.75 {
		return healthyStyle.Render("[✓]")
	} else if distance <= threshold {
		return warningStyle.Render("[⚠]")
	}
	return errorStyle.Render("[✗]")
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}

	return sparklineStyle.Render(spark.View())
}

// Message types
type tickMsg time.Time
type metricsMsg MetricsSnapshot
type errMsg error

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchMetrics(m.client),
	)
}

// tick creates a tick command for auto-refresh
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchMetrics polls the daemon once.
func fetchMetrics(client *MetricsClient) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		snap, err := client.Snapshot(ctx)
		if err != nil {
			return errMsg(err)
		}
		return metricsMsg(snap)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchMetrics(m.client)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchMetrics(m.client),
		)

	case metricsMsg:
		next := MetricsSnapshot(msg)
		prev := m.metrics

		// Counters reset when the daemon restarts.
		if !prev.At.IsZero() && next.At.After(prev.At) && next.Retrievals >= prev.Retrievals {
			minutes := next.At.Sub(prev.At).Minutes()
			next.RequestRate = (next.Retrievals - prev.Retrievals) / minutes
		}

		next.RateHistory = appendToHistory(prev.RateHistory, next.RequestRate)
		next.LatencyHistory = appendToHistory(prev.LatencyHistory, next.MeanQuery*1000)
		next.DistanceHistory = appendToHistory(prev.DistanceHistory, next.MeanTopDistance)
		next.MemoryHistory = appendToHistory(prev.MemoryHistory, next.MemoryMB)

		next.RatePeak = prev.RatePeak
		if next.RequestRate > next.RatePeak {
			next.RatePeak = next.RequestRate
		}
		next.MemoryMax = prev.MemoryMax

		m.metrics = next
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	header := headerStyle.Render("specrag Monitor")

	var content string
	content += "\n"
	content += errorStyle.Render("⚠ Cannot connect to specragd") + "\n"
	content += "\n"
	content += dimStyle.Render("URL: ") + valueStyle.Render(m.serverURL) + "\n"
	content += dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += dimStyle.Render("Start the daemon with: specragd -config <file>") + "\n"
	content += "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	return containerStyle.Render(header + "\n" + content)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func (m Model) renderDashboard() string {
	var content string
	s := m.metrics

	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}

	content += headerStyle.Render(" specrag Monitor ") + "\n"
	content += fmt.Sprintf("%s   %s   %s   %s",
		getStatusBadge(s),
		dimStyle.Render("Uptime:"),
		valueStyle.Render(FormatUptime(s.Uptime)),
		dimStyle.Render(lastUpdateStr)) + "\n"

	content += "\n" + sectionStyle.Render("┃ Retrieval") + "\n"
	content += labelStyle.Render("  Rate: ") +
		valueStyle.Render(FormatRate(s.RequestRate)) +
		"   " + createSparkline(s.RateHistory) + "\n"
	content += labelStyle.Render("  Query (mean): ") +
		valueStyle.Render(FormatQueryTime(s.MeanQuery)) +
		"   " + createSparkline(s.LatencyHistory) + "\n"
	content += labelStyle.Render("  Total: ") +
		valueStyle.Render(fmt.Sprintf("%.0f", s.Retrievals)) +
		dimStyle.Render(fmt.Sprintf("  (%.0f errors)", s.Errors)) + "\n"

	ratePercent := 0.0
	if s.RatePeak > 0 {
		ratePercent = clamp(s.RequestRate / s.RatePeak)
	}
	content += labelStyle.Render("  Load: ") +
		m.requestProgress.ViewAs(ratePercent) +
		" " + dimStyle.Render(fmt.Sprintf("%.0f%%", ratePercent*100)) + "\n"

	content += "\n" + sectionStyle.Render("┃ Confidence Gate") + "\n"
	content += labelStyle.Render("  Top distance (mean): ") +
		valueStyle.Render(FormatDistance(s.MeanTopDistance, s.Threshold)) +
		" " + getDistanceBadge(s.MeanTopDistance, s.Threshold) +
		"   " + createSparkline(s.DistanceHistory) + "\n"
	content += labelStyle.Render("  Refused: ") +
		m.refusalProgress.ViewAs(clamp(s.RefusalRatio())) +
		" " + dimStyle.Render(FormatRatio(s.Refused, s.Accepted+s.Refused)) + "\n"

	content += "\n" + sectionStyle.Render("┃ Index") + "\n"
	if s.IndexLoaded {
		content += labelStyle.Render("  Generation: ") + valueStyle.Render(s.Generation) + "\n"
		content += labelStyle.Render("  Entries: ") + valueStyle.Render(fmt.Sprintf("%d", s.Entries)) +
			labelStyle.Render("  Model: ") + valueStyle.Render(s.Model) +
			dimStyle.Render(fmt.Sprintf(" (%d dims)", s.Dimension)) + "\n"
	} else {
		content += "  " + warningStyle.Render("no index loaded") + "\n"
	}

	content += "\n" + sectionStyle.Render("┃ System") + "\n"
	memoryPercent := clamp(s.MemoryMB / s.MemoryMax)
	content += labelStyle.Render("  Memory: ") +
		m.memoryProgress.ViewAs(memoryPercent) +
		" " + dimStyle.Render(FormatMemoryMB(s.MemoryMB)) + "\n"
	content += labelStyle.Render("  Goroutines: ") +
		valueStyle.Render(fmt.Sprintf("%d", s.Goroutines)) + "\n"

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))

	content += "\n" + footer

	return containerStyle.Render(content)
}
