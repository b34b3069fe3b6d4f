package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/scout-responder/internal/ai"
	"github.com/spigell/scout-responder/internal/utils"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

const providerName = "gemini"

type jsonGenerator interface {
	GenerateJSON(ctx context.Context, system, message string) (string, error)
}

// Evaluator is the Gemini-backed evaluation oracle.
type Evaluator struct {
	generator jsonGenerator
	schema    *gojsonschema.Schema
	rubric    string
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var rubricPrompt string

const defaultMaxLogLength = 200

func NewEvaluator(generator jsonGenerator, logger *zap.Logger, maxLogLength int) (*Evaluator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(evaluationSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("load evaluation schema: %w", err)
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Evaluator{
		generator: generator,
		schema:    schema,
		rubric:    rubricPrompt,
		logger:    logger,
		maxLogLen: maxLogLength,
	}, nil
}

// Evaluate scores a raw profile. Every failure is returned as *ai.OracleError.
func (e *Evaluator) Evaluate(ctx context.Context, profile string) (*ai.Evaluation, error) {
	if strings.TrimSpace(profile) == "" {
		return nil, e.fail(fmt.Errorf("%w: empty profile", ai.ErrInvalidEvaluation))
	}

	message := buildMessage(profile)
	e.logger.Debug("gemini evaluation request",
		zap.Int("profile_length", utf8.RuneCountInString(profile)),
		zap.String("profile_preview", utils.TruncateForLog(profile, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateJSON(ctx, e.rubric, message)
	if err != nil {
		return nil, e.fail(err)
	}

	e.logger.Debug("gemini evaluation response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	evaluation, err := e.parse(raw)
	if err != nil {
		return nil, e.fail(err)
	}
	evaluation.Raw = raw
	return evaluation, nil
}

func (e *Evaluator) fail(err error) error {
	return &ai.OracleError{Provider: providerName, Err: err}
}

func buildMessage(profile string) string {
	return "## Candidate Profile\n" + profile
}

func (e *Evaluator) parse(raw string) (*ai.Evaluation, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: parse gemini response: %v", ai.ErrInvalidEvaluation, err)
	}

	result, err := e.schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validate gemini response: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", re.Field(), re.Description()))
		}
		return nil, fmt.Errorf("%w: %s", ai.ErrInvalidEvaluation, strings.Join(problems, "; "))
	}

	var evaluation ai.Evaluation
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &evaluation,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("%w: decode gemini response: %v", ai.ErrInvalidEvaluation, err)
	}

	if err := evaluation.Normalize(); err != nil {
		return nil, err
	}
	return &evaluation, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
