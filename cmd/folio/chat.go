package main

import (
	"errors"

	"github.com/spf13/cobra"

	"folio/pkg/chat"
	"folio/pkg/ui"
)

var errNoTerminal = errors.New("the interactive chat needs a terminal; use `folio ask <question>` instead")

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat (default)",
		Args:  cobra.NoArgs,
		RunE:  a.runChat,
	}
}

func (a *app) runChat(cmd *cobra.Command, _ []string) error {
	if !a.isTerminal() {
		return errNoTerminal
	}
	if err := a.setup(cmd, true); err != nil {
		return err
	}
	tr, err := a.transport()
	if err != nil {
		return err
	}

	assistant := a.cfg.Assistant
	session := chat.NewSession(tr,
		chat.WithWelcomeMessage(assistant.WelcomeMessage),
		chat.WithLogger(a.logger),
	)
	defer session.Close()

	model := ui.NewModel(session, ui.Options{
		BotName:     assistant.BotName,
		BotSubtitle: assistant.BotSubtitle,
		Suggestions: assistant.SuggestedQuestions,
		Context:     cmd.Context(),
		Logger:      a.logger,
	})

	a.logger.Info("chat_start", "chatflow_id", a.cfg.Flowise.ChatflowID)
	err = a.runProgram(cmd.Context(), model)
	a.logger.Info("chat_exit", "error", err)
	return err
}
