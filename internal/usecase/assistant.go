package usecase

import (
	"context"
	"errors"
	"strings"

	"eco_api/internal/apperrors"
	"eco_api/internal/assistant"
	"eco_api/internal/logger"
)

const maxPromptRunes = 2000

type Chatter interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

type AssistantUsecase struct {
	chat Chatter
}

func NewAssistantUsecase(chat Chatter) *AssistantUsecase {
	return &AssistantUsecase{chat: chat}
}

// Ask forwards a pet care question, capped at maxPromptRunes.
func (u *AssistantUsecase) Ask(ctx context.Context, prompt string) (string, error) {
	if r := []rune(prompt); len(r) > maxPromptRunes {
		prompt = string(r[:maxPromptRunes])
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", apperrors.InvalidRequest("empty prompt")
	}

	reply, err := u.chat.Chat(ctx, prompt)
	if errors.Is(err, assistant.ErrNotConfigured) {
		return "", apperrors.Wrap(err, apperrors.CodeServiceUnavailable, "assistant is not configured")
	}
	if err != nil {
		logger.FromContext(ctx).Warn("assistant request failed", "error", err)
		return "", apperrors.Wrap(err, apperrors.CodeUpstreamFailed, "assistant request failed")
	}
	return reply, nil
}
