package chatbot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
)

const helpText = `Commands:
  /help          show this help
  /history       print the conversation so far
  /suggest       repeat the last suggested follow-ups
  /new-session   save this conversation and start another
  /quit, /exit   leave`

// REPL is the interactive terminal front end for a ChatBot.
type REPL struct {
	bot      *ChatBot
	in       io.Reader
	out      io.Writer
	plain    bool
	renderer *glamour.TermRenderer

	header lipgloss.Style
	prompt lipgloss.Style
	muted  lipgloss.Style
	answer lipgloss.Style

	lastFollowUps []string
}

// NewREPL creates a REPL. With plain set, replies are printed unstyled,
// which suits pipes and tests.
func NewREPL(bot *ChatBot, in io.Reader, out io.Writer, plain bool) *REPL {
	r := &REPL{
		bot:   bot,
		in:    in,
		out:   out,
		plain: plain,
	}
	if plain {
		return r
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		bot.logger.Warn("markdown rendering disabled", "error", err)
	} else {
		r.renderer = renderer
	}

	accent := lipgloss.Color("#7D56F4")
	r.header = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(accent).Padding(0, 2).Bold(true)
	r.prompt = lipgloss.NewStyle().Foreground(accent).Bold(true)
	r.muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	r.answer = lipgloss.NewStyle().PaddingLeft(2).BorderLeft(true).BorderStyle(lipgloss.ThickBorder()).BorderForeground(accent)
	return r
}

func (r *REPL) style(s lipgloss.Style, text string) string {
	if r.plain {
		return text
	}
	return s.Render(text)
}

// Run reads lines until EOF or /quit. Each line is one turn.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, r.style(r.header, "Portfolio Chat"))
	fmt.Fprintln(r.out, r.style(r.muted, "Session: "+r.bot.SessionID()))
	fmt.Fprintln(r.out, r.style(r.muted, "Type /help for commands, /quit to exit"))
	fmt.Fprintln(r.out)

	scanner := bufio.NewScanner(r.in)
	for {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprint(r.out, r.style(r.prompt, "You: "))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := r.handleCommand(input)
			if err != nil {
				fmt.Fprintf(r.out, "Error: %v\n", err)
				r.bot.logger.Error("command error", "error", err)
			}
			if quit {
				break
			}
			continue
		}

		reply := r.bot.Send(ctx, input)
		r.lastFollowUps = reply.SuggestedFollowUps
		r.printReply(reply)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "failed to read input")
	}
	fmt.Fprintln(r.out, "Goodbye!")
	return nil
}

func (r *REPL) printReply(reply Reply) {
	text := reply.Text
	if r.renderer != nil {
		if rendered, err := r.renderer.Render(text); err == nil {
			text = strings.TrimRight(rendered, "\n")
		}
	}
	fmt.Fprintf(r.out, "%s\n%s\n", r.style(r.prompt, "Bot:"), r.style(r.answer, text))
	if reply.Source != SourceRemote {
		fmt.Fprintln(r.out, r.style(r.muted, "(answered from "+reply.Source+" knowledge)"))
	}
	r.printFollowUps()
	fmt.Fprintln(r.out)
}

func (r *REPL) printFollowUps() {
	if len(r.lastFollowUps) == 0 {
		return
	}
	fmt.Fprintln(r.out, r.style(r.muted, "You could ask:"))
	for _, q := range r.lastFollowUps {
		fmt.Fprintln(r.out, r.style(r.muted, "  - "+q))
	}
}

func (r *REPL) handleCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Fprintln(r.out, helpText)
		return false, nil

	case "/new-session":
		id := r.bot.NewSession()
		r.lastFollowUps = nil
		fmt.Fprintln(r.out, "Started new session:", id)
		return false, nil

	case "/history":
		history := r.bot.History()
		if len(history) == 0 {
			fmt.Fprintln(r.out, "No messages yet.")
			return false, nil
		}
		for _, m := range history {
			fmt.Fprintf(r.out, "[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Role, m.Content)
		}
		return false, nil

	case "/suggest":
		if len(r.lastFollowUps) == 0 {
			fmt.Fprintln(r.out, "No suggestions yet. Try saying hello.")
			return false, nil
		}
		r.printFollowUps()
		return false, nil

	default:
		return false, errors.Errorf("unknown command: %s (try /help)", parts[0])
	}
}
