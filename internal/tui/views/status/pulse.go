package status

import (
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/swarmwatch/swarmwatch/internal/tui/theme"
)

const fps = 30

// FrameMsg advances the pulse animation by one frame.
type FrameMsg struct{}

// Pulse springs a value back and forth between 0 and 1 and renders it as
// a dot that fades along theme.PulseRamp.
type Pulse struct {
	spring harmonica.Spring
	pos    float64
	vel    float64
	target float64
}

func NewPulse() Pulse {
	return Pulse{
		spring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 0.5),
		target: 1,
	}
}

// Tick schedules the next frame.
func Tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{} })
}

// Step advances the spring one frame, reversing direction once the dot
// settles near either end.
func (p *Pulse) Step() {
	p.pos, p.vel = p.spring.Update(p.pos, p.vel, p.target)
	if math.Abs(p.pos-p.target) < 0.05 && math.Abs(p.vel) < 0.5 {
		p.target = 1 - p.target
	}
}

// Level returns the current position clamped to [0, 1].
func (p Pulse) Level() float64 {
	return min(max(p.pos, 0), 1)
}

func (p Pulse) View() string {
	last := len(theme.PulseRamp) - 1
	i := int(math.Round(p.Level() * float64(last)))
	return lipgloss.NewStyle().Foreground(theme.PulseRamp[i]).Render("●")
}
