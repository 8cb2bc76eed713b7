package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"folio/pkg/chat"
)

// exitInterrupted is the conventional status for a process stopped by SIGINT.
const exitInterrupted = 130

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask one question and stream the answer to stdout",
		Example: `  folio ask "What projects have you shipped?"
  folio ask --timeout 60 Tell me about your experience with Go`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runAsk,
	}
}

func (a *app) runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return chat.ErrEmptyQuestion
	}
	if err := a.setup(cmd, true); err != nil {
		return err
	}
	tr, err := a.transport()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := chat.NewSession(tr, chat.WithLogger(a.logger))
	defer session.Close()

	events, err := session.Send(ctx, question)
	if err != nil {
		return err
	}

	var printed string
	for ev := range events {
		switch ev.Kind {
		case chat.EventPartial:
			printed = a.printDelta(printed, ev.Text)
		case chat.EventComplete:
			a.printDelta(printed, ev.Text)
			fmt.Fprintln(a.out)
			return nil
		case chat.EventFailed:
			if printed != "" {
				fmt.Fprintln(a.out)
			}
			return &exitError{code: 1, msg: ev.Text}
		}
	}

	// Closed without a result: the turn was cancelled.
	if printed != "" {
		fmt.Fprintln(a.out)
	}
	a.logger.Info("ask_interrupted")
	return &exitError{code: exitInterrupted}
}

// printDelta writes what text adds to printed. Replies that do not extend
// the printed prefix start on a fresh line.
func (a *app) printDelta(printed, text string) string {
	if strings.HasPrefix(text, printed) {
		fmt.Fprint(a.out, text[len(printed):])
		return text
	}
	fmt.Fprint(a.out, "\n"+text)
	return text
}
