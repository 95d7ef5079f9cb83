// Package render builds the chat messages the scheduler delivers.
package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"devhelper/internal/domain"
)

const summaryLimit = 100

var sourceEmoji = map[string]string{
	domain.SourceDevTo:      "👩‍💻",
	domain.SourceHackerNews: "🔥",
	domain.SourceReddit:     "🤖",
}

type Renderer struct {
	// CommandPrefix is prepended to command hints, e.g. "/" or "!".
	CommandPrefix string
	Location      *time.Location
}

func New(commandPrefix string, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{CommandPrefix: commandPrefix, Location: loc}
}

func (r *Renderer) FocusComplete(s *domain.Session) domain.Payload {
	return domain.Payload{
		Text: fmt.Sprintf(
			"🍅 Your %d minute focus session is complete! Take a break with %s or start a new session with %s.",
			s.FocusMinutes, r.command("pomodoro break"), r.command("pomodoro start"),
		),
		Edit: summary("🍅 Focus session complete", [][2]string{
			{"Status", "✅ Completed"},
			{"Duration", plural(s.FocusMinutes, "minute")},
			{"Suggested break", plural(s.BreakMinutes, "minute")},
		}),
	}
}

func (r *Renderer) BreakComplete(s *domain.Session) domain.Payload {
	return domain.Payload{
		Text: fmt.Sprintf(
			"☕ Your %d minute break is complete! Start a new focus session with %s.",
			s.BreakMinutes, r.command("pomodoro start"),
		),
		Edit: summary("☕ Break complete", [][2]string{
			{"Status", "✅ Completed"},
			{"Break", plural(s.BreakMinutes, "minute")},
			{"Previous focus", plural(s.FocusMinutes, "minute")},
		}),
	}
}

// BreakStarted only edits the timer message.
func (r *Renderer) BreakStarted(s *domain.Session) domain.Payload {
	return domain.Payload{
		Edit: summary("☕ Break started", [][2]string{
			{"Duration", plural(s.BreakMinutes, "minute")},
			{"Ends at", r.clock(s.EndTime)},
		}),
	}
}

func (r *Renderer) Cancelled(s *domain.Session) domain.Payload {
	return domain.Payload{
		Text: fmt.Sprintf("⏹ Pomodoro session cancelled. Start again with %s.", r.command("pomodoro start")),
		Edit: summary("⏹ Session cancelled", [][2]string{
			{"Status", "❌ Cancelled"},
			{"Focus", plural(s.FocusMinutes, "minute")},
			{"Break", plural(s.BreakMinutes, "minute")},
		}),
	}
}

// Digest renders a numbered list of items. No items renders an empty payload.
func (r *Renderer) Digest(sub *domain.Subscription, items []domain.Item) domain.Payload {
	if len(items) == 0 {
		return domain.Payload{}
	}

	title := "Daily"
	if sub.Frequency == domain.FrequencyWeekly {
		title = "Weekly"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🗞️ %s Dev News Digest\n", title)
	fmt.Fprintf(&b, "Here's your %s dev news digest!\n", sub.Frequency)
	for i, item := range items {
		emoji, ok := sourceEmoji[item.Source]
		if !ok {
			emoji = "📰"
		}
		fmt.Fprintf(&b, "\n%d. %s %s\n", i+1, emoji, item.Title)
		if item.Summary != "" {
			b.WriteString(truncate(item.Summary, summaryLimit))
			b.WriteByte('\n')
		}
		b.WriteString(item.URL)
		b.WriteByte('\n')
	}
	return domain.Payload{Text: strings.TrimRight(b.String(), "\n")}
}

func (r *Renderer) command(name string) string {
	return r.CommandPrefix + name
}

func (r *Renderer) clock(t time.Time) string {
	return t.In(r.Location).Format("15:04 MST")
}

func summary(title string, fields [][2]string) string {
	var b strings.Builder
	b.WriteString(title)
	for _, f := range fields {
		fmt.Fprintf(&b, "\n%s: %s", f[0], f[1])
	}
	return b.String()
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
