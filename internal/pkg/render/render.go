package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/room"
	"github.com/labstack/gommon/color"
)

// Printer writes the room view to a terminal. Colors are dropped when the
// output is not a terminal
type Printer struct {
	cl *color.Color
}

// NewPrinter creates a printer for w
func NewPrinter(w io.Writer) *Printer {
	cl := color.New()
	cl.SetOutput(w)
	return &Printer{cl: cl}
}

// Message prints one conversation line
func (p *Printer) Message(m api.Message) {
	switch m.Speaker {
	case api.SpeakerAI:
		p.cl.Printf("%s %s\n", p.cl.Cyan("Interviewer:"), m.Text)
	case api.SpeakerUser:
		p.cl.Printf("%s %s\n", p.cl.Green("You:"), m.Text)
	default:
		p.cl.Printf("%s\n", p.cl.Blue("* "+m.Text))
	}
}

// Transcript prints all messages
func (p *Printer) Transcript(msgs []api.Message) {
	for _, m := range msgs {
		p.Message(m)
	}
}

// Status prints the room state panel
func (p *Printer) Status(s room.Snapshot) {
	p.cl.Printf("State: %s  Turn: %s  Time: %s / %s\n", s.State, s.TurnID, clock(s.Elapsed), clock(s.Remaining))
	p.cl.Printf("Recording: %s  Results Ready: %s\n", yesNo(s.Recording), yesNo(s.ResultsReady))
	if s.ProcessingJobID != "" {
		p.cl.Printf("Processing job: %s\n", s.ProcessingJobID)
	}
	if s.StatusText != "" {
		p.cl.Printf("%s\n", p.cl.Yellow(s.StatusText))
	}
}

// Error prints an inline failure text
func (p *Printer) Error(err error) {
	if msg := api.UserMessage(err); msg != "" {
		p.cl.Printf("%s\n", p.cl.Red(msg))
	}
}

// Results prints the evaluation
func (p *Printer) Results(r *api.Results) {
	if r == nil {
		p.cl.Printf("%s\n", p.cl.Yellow("No results yet."))
		return
	}
	if o, ok := r.Overall(); ok {
		p.cl.Printf("Overall score: %s\n", p.cl.Green(fmt.Sprintf("%d/100", o)))
	}
	for _, s := range r.Scores {
		p.cl.Printf("  %-16s %s", s.Rubric, scoreBar(s))
		if s.Comment != "" {
			p.cl.Printf("  %s", p.cl.Blue(s.Comment))
		}
		p.cl.Printf("\n")
	}
	fb := r.FeedbackText
	if fb == "" {
		fb = "No detailed feedback available."
	}
	p.cl.Printf("Feedback: %s\n", fb)
	if r.AudioURL != "" {
		p.cl.Printf("Audio: %s\n", r.AudioURL)
	}
}

func scoreBar(s api.RubricScore) string {
	mx := s.MaxValue()
	n := int(mx)
	filled := int(s.Score + 0.5)
	if filled > n {
		filled = n
	}
	return fmt.Sprintf("%s%s %g/%g", strings.Repeat("#", filled), strings.Repeat(".", n-filled), s.Score, mx)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// WriteTranscript writes plain text transcript lines
func WriteTranscript(w io.Writer, msgs []api.Message) error {
	for _, m := range msgs {
		if _, err := fmt.Fprintf(w, "[%s] %s: %s\n", m.TS.UTC().Format(time.RFC3339), m.Speaker, m.Text); err != nil {
			return fmt.Errorf("can't write transcript: %w", err)
		}
	}
	return nil
}

// WriteJSON writes v as indented json
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("can't encode: %w", err)
	}
	return nil
}
