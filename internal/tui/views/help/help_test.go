package help

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	"github.com/stretchr/testify/assert"
)

func TestMarkdown(t *testing.T) {
	md := Markdown([]key.Binding{
		key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop monitoring")),
		key.NewBinding(key.WithKeys("x")),
	})
	assert.Contains(t, md, "# swarmwatch")
	assert.Contains(t, md, "| `s` | stop monitoring |")
	assert.NotContains(t, md, "`x`")
}

func TestViewRenders(t *testing.T) {
	v := View([]key.Binding{
		key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	}, 80)
	assert.Contains(t, v, "esc: close")
	assert.Contains(t, v, "swarmwatch")
}
