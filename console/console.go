// Package console holds the operator-facing presentation: the pair menu, the
// borrowed-funds confirmation and the single-line countdown. None of it carries
// workflow state.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"margin_bot/bot"
	"margin_bot/models"
)

// ExitToken ends the menu without selecting a pair
const ExitToken = "xxx"

// ErrExit is returned when the operator types the exit token
var ErrExit = errors.New("terminated by user")

// Console reads operator input and writes prompts
type Console struct {
	in  *bufio.Reader
	out io.Writer
}

func New(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// SelectPair shows the numbered pair menu until a valid choice or the exit token is entered
func (c *Console) SelectPair(pairs []models.TradingPair) (models.TradingPair, error) {
	fmt.Fprintln(c.out, "[Select Trading Pair]:")
	fmt.Fprintln(c.out, strings.Repeat("-", 50))
	for i, p := range pairs {
		fmt.Fprintf(c.out, "[ %2d ] %-12s Transfer: %s %s\n", i+1, p.DisplayName(), p.TransferAmount, p.TransferAsset)
	}
	fmt.Fprintln(c.out, strings.Repeat("-", 50))
	fmt.Fprintf(c.out, "[ %s ] Exit\n", ExitToken)
	fmt.Fprintln(c.out, strings.Repeat("-", 50))

	for {
		fmt.Fprintf(c.out, "[Input] Enter pair number or '%s' to exit: ", ExitToken)
		choice, err := c.readLine()
		if err != nil {
			return models.TradingPair{}, err
		}
		if choice == ExitToken {
			return models.TradingPair{}, ErrExit
		}
		n, err := strconv.Atoi(choice)
		if err != nil {
			fmt.Fprintf(c.out, "[Error] Please enter a valid number or '%s' to exit\n", ExitToken)
			continue
		}
		if n < 1 || n > len(pairs) {
			fmt.Fprintf(c.out, "[Error] Please enter a number between 1 and %d\n", len(pairs))
			continue
		}
		return pairs[n-1], nil
	}
}

// Confirm implements interfaces.Prompter; only "y" (any case) is a yes
func (c *Console) Confirm(question string) (bool, error) {
	fmt.Fprint(c.out, question)
	answer, err := c.readLine()
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, "y"), nil
}

var stageLabels = map[string]string{
	bot.StageManualClose: "[Progress] Time remaining",
	bot.StageHold:        "[Hold] Holding position",
	bot.StageSettle:      "[Step 4] Waiting before final remove",
	bot.StageLoopDelay:   "[Delay] Next loop in",
}

// Progress renders waits as a single rewritten line
func (c *Console) Progress(stage string, remaining time.Duration) {
	label, ok := stageLabels[stage]
	if !ok {
		label = stage
	}
	if remaining > 0 {
		fmt.Fprintf(c.out, "\r%s: %ds   ", label, int(remaining.Round(time.Second)/time.Second))
		return
	}
	fmt.Fprintf(c.out, "\r%s: done%s\n", label, strings.Repeat(" ", 10))
}
