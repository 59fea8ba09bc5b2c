package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"storyreel/internal/logging"
	"storyreel/internal/retry"
	"storyreel/internal/run"
	"storyreel/internal/services"
	"storyreel/internal/services/llm"
)

// Parse extracts the topic and search keywords from the raw input text.
type Parse struct {
	completion TextCompletion
	runner     *retry.Runner
	logger     *slog.Logger
}

// NewParse constructs the parse stage handler.
func NewParse(completion TextCompletion, runner *retry.Runner, logger *slog.Logger) *Parse {
	return &Parse{
		completion: completion,
		runner:     runner,
		logger:     logging.NewComponentLogger(logger, "parse"),
	}
}

func (p *Parse) Stage() run.Stage { return run.StageParse }

func (p *Parse) SetLogger(logger *slog.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

type parsePayload struct {
	Topic    string   `json:"topic"`
	Keywords []string `json:"keywords"`
}

func (p *Parse) Execute(ctx context.Context, state *run.State) error {
	input := strings.TrimSpace(state.InputText)
	if input == "" {
		return services.Wrap(services.ErrValidation, "parse", "input", "input text is empty", nil)
	}

	var content string
	err := p.runner.Do(ctx, "parse input", func(ctx context.Context) error {
		var callErr error
		content, callErr = p.completion.CompleteJSON(ctx, parseSystemPrompt, input)
		return callErr
	})
	if err != nil {
		return err
	}

	var payload parsePayload
	if err := llm.DecodeLLMJSON(content, &payload); err != nil {
		return services.Wrap(services.ErrFatalRemote, "parse", "decode", "malformed analysis payload", err)
	}

	payload.Topic = strings.TrimSpace(payload.Topic)
	if payload.Topic == "" {
		return services.Wrap(services.ErrFatalRemote, "parse", "decode", "analysis payload carried no topic", nil)
	}

	keywords := make([]string, 0, len(payload.Keywords))
	for _, keyword := range payload.Keywords {
		if trimmed := strings.TrimSpace(keyword); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}

	state.Topic = payload.Topic
	state.Keywords = keywords
	p.logger.Info("input parsed",
		logging.String("topic", payload.Topic),
		logging.String("keywords", fmt.Sprintf("%v", keywords)),
	)
	return nil
}
