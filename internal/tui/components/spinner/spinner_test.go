package spinner

import (
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestSpinner(t *testing.T) {
	t.Parallel()

	s := NewSpinner("Test spinner")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	// a second Stop must not block
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Stop blocked")
	}
}

func TestModelView(t *testing.T) {
	t.Parallel()

	s := NewThemedSpinner("Analizando Mensaje ...", lipgloss.Color("#0D9488"))
	assert.Contains(t, s.model.View(), "Analizando Mensaje ...")

	m, _ := s.model.Update(quitMsg{})
	assert.Empty(t, m.View())
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()

	s := NewSpinner("idle")
	s.Stop()
	s.Start()
	s.Stop()
}
