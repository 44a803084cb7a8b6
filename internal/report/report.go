// Package report renders lab session reports and stores them.
package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/ailab/internal/domain"
)

// Section headings in document order.
var Sections = []string{
	"1. Experiment Overview",
	"2. Experimental Procedure",
	"3. Dialogue Transcript",
	"4. Student Observations",
	"5. Computational Results",
	"6. Evaluation",
	"7. Conclusions",
}

// Input is everything a report is assembled from.
type Input struct {
	SessionID    string
	Scenario     domain.ExperimentScenario
	StudentName  string
	Transcript   []domain.AgentMessage
	Observations []domain.Observation
	Computations []domain.ComputationResult
	Feedback     string
	GeneratedAt  time.Time
}

// Document is a rendered report.
type Document struct {
	SessionID    string
	ScenarioID   string
	Title        string
	StudentName  string
	Filename     string
	Markdown     string
	Feedback     string
	MessageCount int
	GeneratedAt  time.Time
}

// Assemble renders in as markdown. It performs no I/O.
func Assemble(in Input) Document {
	s := in.Scenario
	ts := in.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST")

	var b strings.Builder
	fmt.Fprintf(&b, "# Laboratory Report: %s\n\n", s.Title)
	fmt.Fprintf(&b, "**Session ID:** `%s`  \n", in.SessionID)
	if in.StudentName != "" {
		fmt.Fprintf(&b, "**Student:** %s  \n", in.StudentName)
	}
	fmt.Fprintf(&b, "**Date:** %s\n\n---\n\n", ts)

	section(&b, 0)
	fmt.Fprintf(&b, "**Subject:** %s  \n", titleCase(string(s.Subject)))
	fmt.Fprintf(&b, "**Level:** %s  \n", titleCase(string(s.Level)))
	if s.DurationMinutes > 0 {
		fmt.Fprintf(&b, "**Duration:** %d minutes\n", s.DurationMinutes)
	}
	if s.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", s.Description)
	}
	bulletList(&b, "Learning Objectives", s.LearningObjectives)
	bulletList(&b, "Materials Used", s.Materials)
	bulletList(&b, "Safety Notes", s.SafetyNotes)

	section(&b, 1)
	for _, step := range s.Steps {
		fmt.Fprintf(&b, "### Step %d: %s\n", step.Number, step.Title)
		if step.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", step.Description)
		}
		if step.Instructions != "" {
			fmt.Fprintf(&b, "*Instructions:* %s\n\n", step.Instructions)
		}
		if step.ExpectedObservation != "" {
			fmt.Fprintf(&b, "*Expected observation:* %s\n\n", step.ExpectedObservation)
		}
	}

	section(&b, 2)
	if len(in.Transcript) == 0 {
		b.WriteString("*No conversation recorded*\n")
	}
	for _, msg := range in.Transcript {
		fmt.Fprintf(&b, "**%s** (%s):\n%s\n\n", msg.Sender, msg.Role, quote(msg.Content))
	}

	section(&b, 3)
	if len(in.Observations) == 0 {
		b.WriteString("*No observations recorded*\n")
	}
	for _, o := range in.Observations {
		fmt.Fprintf(&b, "- **%s**: %s\n", o.Key, o.Value)
	}

	section(&b, 4)
	if len(in.Computations) == 0 {
		b.WriteString("*No computations performed*\n")
	}
	for i, c := range in.Computations {
		fmt.Fprintf(&b, "### Computation %d: %s\n\n", i+1, c.Formula)
		fmt.Fprintf(&b, "**Query:**\n```\n%s\n```\n\n", c.Query)
		fmt.Fprintf(&b, "**Result:** %s  \n", c.Result)
		if c.NumericResult != nil {
			fmt.Fprintf(&b, "**Numeric Value:** %s\n", strconv.FormatFloat(*c.NumericResult, 'g', 10, 64))
		}
		if c.GraphSVG != "" {
			fmt.Fprintf(&b, "\n![%s](data:image/svg+xml;base64,%s)\n", c.Formula, c.GraphSVG)
		}
		b.WriteString("\n")
	}

	section(&b, 5)
	if strings.TrimSpace(in.Feedback) == "" {
		b.WriteString("*Evaluation not completed*\n")
	} else {
		fmt.Fprintf(&b, "%s\n", in.Feedback)
	}

	section(&b, 6)
	fmt.Fprintf(&b, "The %s session covered %d of %d steps", s.Title, stepsReached(in), s.TotalSteps())
	if len(in.Computations) > 0 {
		fmt.Fprintf(&b, " and produced %d computed result(s)", len(in.Computations))
	}
	b.WriteString(".\n")
	if len(s.LearningObjectives) > 0 {
		b.WriteString("Objectives addressed:\n")
		for _, o := range s.LearningObjectives {
			fmt.Fprintf(&b, "- %s\n", o)
		}
	}
	fmt.Fprintf(&b, "\n---\n\nSession ID: `%s`  \nGenerated: %s\n", in.SessionID, ts)

	return Document{
		SessionID:    in.SessionID,
		ScenarioID:   s.ID,
		Title:        s.Title,
		StudentName:  in.StudentName,
		Filename:     Filename(s.Title, in.SessionID),
		Markdown:     b.String(),
		Feedback:     in.Feedback,
		MessageCount: len(in.Transcript),
		GeneratedAt:  in.GeneratedAt,
	}
}

func section(b *strings.Builder, i int) {
	if i > 0 {
		b.WriteString("\n---\n\n")
	}
	fmt.Fprintf(b, "## %s\n\n", Sections[i])
}

func bulletList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func quote(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// stepsReached is the highest step recorded in partner metadata, at least 1.
func stepsReached(in Input) int {
	reached := 1
	for _, msg := range in.Transcript {
		if step, ok := msg.Metadata[domain.MetaStep].(int); ok && step > reached {
			reached = step
		}
	}
	return min(reached, in.Scenario.TotalSteps())
}

var unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}_.'()-]+`)

// Filename derives the report file name from the experiment title and
// session id. Spaces become underscores and path separators are removed.
func Filename(title, sessionID string) string {
	name := strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "report"
	}
	id := unsafeFilenameChars.ReplaceAllString(sessionID, "")
	return name + "_" + id + ".md"
}
