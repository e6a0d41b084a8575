package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/davidbz/starray/internal/domain"
)

// HelpText lists the interactive commands.
const HelpText = "Commands: /help, /provider, /session, /status, exit"

// Presenter renders CLI output. Colors are dropped automatically when the
// writer is not a terminal or NO_COLOR is set.
type Presenter struct {
	out    io.Writer
	styles styles
}

// StatusInfo is what the status command reports.
type StatusInfo struct {
	ConfigPath   string
	Provider     string
	Fallbacks    []string
	DefaultModel string
	DataDir      string
	Backend      string
}

// NewPresenter creates a presenter writing to w.
func NewPresenter(w io.Writer) *Presenter {
	return &Presenter{
		out:    w,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func (p *Presenter) println(s string) {
	fmt.Fprintln(p.out, s)
}

func (p *Presenter) field(name, value string) string {
	return p.styles.label.Render(name+":") + " " + value
}

// Intro prints the chat banner.
func (p *Presenter) Intro(provider, model, sessionID string) {
	p.println(p.styles.banner.Render("╔═════════════════════════════════════════════════════╗"))
	p.println(p.styles.title.Render("║                     StarRay CLI                     ║"))
	p.println(p.styles.banner.Render("╚═════════════════════════════════════════════════════╝"))
	p.println(p.styles.analyst.Render("Analyst") + " is active. Provider routing with fallback is enabled.")
	p.println(strings.Join([]string{
		p.field("Provider", provider),
		p.field("Model", model),
		p.field("Session", sessionID),
	}, "   "))
	p.println(p.styles.dim.Render(HelpText))
}

// Help prints the command list.
func (p *Presenter) Help() {
	p.println(p.styles.dim.Render(HelpText))
}

// Hint prints a dim one-line hint.
func (p *Presenter) Hint(text string) {
	p.println(p.styles.dim.Render(text))
}

// Prompt prints the input frame without a trailing newline.
func (p *Presenter) Prompt() {
	p.println(p.styles.input.Render("┌─ Input"))
	fmt.Fprint(p.out, p.styles.label.Render("│ "))
}

// Response prints one analyst reply with its routing metadata.
func (p *Presenter) Response(r *domain.RoutedResponse) {
	bar := p.styles.frame.Render("│")
	route := r.Provider + "/" + r.Model
	if r.FallbackUsed {
		route += " " + p.styles.warn.Render("(fallback)")
	}

	p.println(p.styles.analyst.Render("┌─ Analyst"))
	p.println(bar + " " + p.styles.dim.Render("[provider]") + " " + route)
	for _, line := range strings.Split(r.Content, "\n") {
		p.println(bar + " " + line)
	}
	p.println(p.styles.frame.Render("└────────"))
}

// Routing prints the provider and model orders.
func (p *Presenter) Routing(summary string) {
	p.println(summary)
}

// RoutingReport prints the output of the provider command.
func (p *Presenter) RoutingReport(configPath, summary string) {
	p.println(p.styles.ready.Render("Provider routing"))
	p.println(p.field("Config", configPath))
	p.println(summary)
}

// CurrentSession prints the active session id.
func (p *Presenter) CurrentSession(id string) {
	p.println(p.styles.warn.Render("Current session: " + id))
}

// Status prints the active provider and default model.
func (p *Presenter) Status(provider, model string) {
	p.println(p.field("Provider", provider) + "   " + p.field("Model", model))
}

// StatusReport prints the output of the status command.
func (p *Presenter) StatusReport(info StatusInfo) {
	fallbacks := strings.Join(info.Fallbacks, ", ")
	if fallbacks == "" {
		fallbacks = "(none)"
	}

	p.println(p.styles.ready.Render("Starray status: ready"))
	p.println(p.field("Config", info.ConfigPath))
	p.println(p.field("Provider", info.Provider))
	p.println(p.field("Provider fallbacks", fallbacks))
	p.println(p.field("Default model", info.DefaultModel))
	p.println(p.field("Data dir", info.DataDir))
	if info.Backend != "" {
		p.println(p.field("Storage", info.Backend))
	}
}

// Resumed announces a loaded session.
func (p *Presenter) Resumed(id string) {
	p.println(p.styles.warn.Render("Resumed session: " + id))
}

// Saved announces the final save.
func (p *Presenter) Saved(id string) {
	p.println(p.styles.ok.Render("Session saved: " + id))
}

// ResumeHint tells the user how to continue the session later.
func (p *Presenter) ResumeHint(id string) {
	p.println(p.styles.warn.Render("Resume with: starray --session-id " + id))
}

// Sessions lists stored sessions.
func (p *Presenter) Sessions(summaries []domain.SessionSummary) {
	if len(summaries) == 0 {
		p.println(p.styles.dim.Render("No sessions found."))
		return
	}

	for _, s := range summaries {
		fmt.Fprintf(p.out, "%s  %s  %s\n",
			s.ID,
			p.styles.dim.Render(s.CreatedAt),
			p.styles.label.Render(fmt.Sprintf("%d turns", s.Turns)))
	}
}

// Created announces a written config file.
func (p *Presenter) Created(path string) {
	p.println(p.styles.ok.Render("Created config: " + path))
	p.println(p.styles.dim.Render("Start chat with: starray"))
}

// Exists reports a config file init refused to overwrite.
func (p *Presenter) Exists(path string) {
	p.println(p.styles.warn.Render("Config already exists: " + path))
	p.println(p.styles.dim.Render("Use --force to overwrite."))
}

// Error prints err in red.
func (p *Presenter) Error(err error) {
	p.println(p.styles.err.Render(err.Error()))
}

// InitHint suggests creating a user config.
func (p *Presenter) InitHint() {
	p.println(p.styles.warn.Render("No user config found. Run: starray init"))
}

// Newline ends a line left open by Prompt.
func (p *Presenter) Newline() {
	fmt.Fprintln(p.out)
}
