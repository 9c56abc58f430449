package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"newsflow/internal/config"
	"newsflow/internal/logging"
	"newsflow/internal/queue"
	"newsflow/internal/services"
	"newsflow/internal/services/llm"
	"newsflow/internal/stage"
)

const stageName = "Translated"

const defaultPromptTemplate = `You are a professional news translator. Translate the HTML article supplied by the user into %s.
Keep the HTML structure, tags and attributes unchanged and translate only the human-readable text.
Do not summarize, omit or add content. Reply with the complete translated HTML document and nothing else.`

// Completer is the subset of the LLM client the translator needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Translator rewrites extracted articles into the target language.
type Translator struct {
	client Completer
	prompt string
	logger *slog.Logger
}

// New builds a Translator. An empty prompt falls back to the built-in
// instruction for targetLanguage.
func New(client Completer, prompt, targetLanguage string, logger *slog.Logger) *Translator {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		lang := strings.TrimSpace(targetLanguage)
		if lang == "" {
			lang = "Russian"
		}
		prompt = fmt.Sprintf(defaultPromptTemplate, lang)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Translator{client: client, prompt: prompt, logger: logging.NewComponentLogger(logger, "translator")}
}

// NewFromConfig wires an llm.Client from the llm config section.
func NewFromConfig(cfg config.LLM, logger *slog.Logger) *Translator {
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	})
	return New(client, cfg.Prompt, cfg.TargetLanguage, logger)
}

// Execute translates prior, the extracted HTML document.
func (t *Translator) Execute(ctx context.Context, item *queue.Item, prior []byte) ([]byte, error) {
	source := strings.TrimSpace(string(prior))
	if source == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "translate", "extracted document is empty", nil)
	}
	reply, err := t.client.Complete(ctx, t.prompt, source)
	if err != nil {
		return nil, err
	}
	document := ExtractHTML(reply)
	if !LooksLikeHTML(document) {
		logging.WithContext(ctx, t.logger).Debug("translation reply is not html",
			logging.Int("reply_chars", len(reply)),
			logging.String("reply_head", head(reply, 200)),
		)
		return nil, services.Wrap(services.ErrValidation, stageName, "translate", "model reply does not contain an html document", nil)
	}
	return []byte(document), nil
}

// HealthCheck pings the model endpoint.
func (t *Translator) HealthCheck(ctx context.Context) stage.Health {
	if err := t.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("translator", err.Error())
	}
	return stage.Healthy("translator")
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
