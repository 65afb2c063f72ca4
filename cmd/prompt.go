package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/teemow/agentleads/internal/agents"
)

// errInputClosed is returned when stdin ends before a prompt was answered.
var errInputClosed = errors.New("input closed before a choice was made")

// prompter asks the questions of the interactive run. Invalid answers are
// reported and the question is asked again.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// stdinIsTerminal reports whether prompts can be answered interactively.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (p *prompter) readLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(p.out)
			return "", errInputClosed
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ZIP asks for a 5-digit ZIP code.
func (p *prompter) ZIP() (string, error) {
	for {
		zip, err := p.readLine("\nEnter the ZIP code to scrape: ")
		if err != nil {
			return "", err
		}
		if agents.ValidZIP(zip) {
			return zip, nil
		}
		fmt.Fprintln(p.out, "Please enter a valid 5-digit ZIP code.")
	}
}

// AgentCount shows the agent count menu and returns the chosen target.
func (p *prompter) AgentCount() (int, error) {
	choices := agents.AgentCountChoices()

	fmt.Fprintln(p.out, "\nHow many agents would you like to scrape?")
	for _, c := range choices {
		fmt.Fprintf(p.out, "%d. %d agents\n", c, agents.AgentCountOptions[c])
	}

	n, err := p.choice(fmt.Sprintf("\nChoose option (1-%d): ", len(choices)), len(choices))
	if err != nil {
		return 0, err
	}
	return agents.AgentCountOptions[n], nil
}

// Enrichment shows the enrichment menu and returns the chosen level.
func (p *prompter) Enrichment() (agents.EnrichmentLevel, error) {
	count := agents.EnrichmentChoices()

	fmt.Fprintln(p.out, "\nEnrichment Levels Available:")
	for i := 1; i <= count; i++ {
		level, _ := agents.EnrichmentByChoice(i)
		fmt.Fprintf(p.out, "%d. %s\n", i, level.Description())
	}

	n, err := p.choice(fmt.Sprintf("\nChoose enrichment level (1-%d): ", count), count)
	if err != nil {
		return "", err
	}
	return agents.EnrichmentByChoice(n)
}

// YesNo asks a y/n question.
func (p *prompter) YesNo(question string) (bool, error) {
	for {
		answer, err := p.readLine("\n" + question + " (y/n): ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y":
			return true, nil
		case "n":
			return false, nil
		}
		fmt.Fprintln(p.out, "Invalid choice. Please choose from: y, n")
	}
}

// choice reads a number between 1 and max.
func (p *prompter) choice(prompt string, max int) (int, error) {
	for {
		answer, err := p.readLine(prompt)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err != nil {
			fmt.Fprintln(p.out, "Please enter a valid number.")
			continue
		}
		if n < 1 || n > max {
			fmt.Fprintf(p.out, "Please enter a number between 1 and %d.\n", max)
			continue
		}
		return n, nil
	}
}
