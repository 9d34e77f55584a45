package generation

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/testsmith/testsmith/internal/types"
)

var (
	//go:embed schema/summaries.json
	summariesSchemaJSON string
	//go:embed schema/code.json
	codeSchemaJSON string

	SummariesSchema = jsonschema.MustCompileString("summaries.json", summariesSchemaJSON)
	CodeSchema      = jsonschema.MustCompileString("code.json", codeSchemaJSON)
)

var (
	ErrNoJSON = errors.New("no JSON value in model output")

	jsonArrayPattern  = regexp.MustCompile(`(?s)\[.*\]`)
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

type (
	rawSummary struct {
		ID          any    `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		TestType    string `json:"testType"`
		Framework   string `json:"framework"`
		Priority    string `json:"priority"`
	}

	rawCode struct {
		Code              string `json:"code"`
		Filename          string `json:"filename"`
		Framework         string `json:"framework"`
		SetupInstructions string `json:"setupInstructions"`
	}
)

// extract the outermost JSON value matching pattern, validating it against schema
func extract(text string, pattern *regexp.Regexp, schema *jsonschema.Schema, out any) error {
	match := pattern.FindString(text)
	if match == "" {
		return ErrNoJSON
	}

	var v any
	if err := json.Unmarshal([]byte(match), &v); err != nil {
		return fmt.Errorf("failed to decode model output: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			errs := validationErr.BasicOutput().Errors
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				if e.Error != "" {
					msgs = append(msgs, fmt.Sprintf("%s: %s", e.InstanceLocation, e.Error))
				}
			}
			return fmt.Errorf("model output failed schema validation: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("failed to validate model output: %w", err)
	}

	if err := json.Unmarshal([]byte(match), out); err != nil {
		return fmt.Errorf("failed to decode model output: %w", err)
	}

	return nil
}

func parseSummaries(text string) ([]types.Summary, error) {
	var raw []rawSummary
	if err := extract(text, jsonArrayPattern, SummariesSchema, &raw); err != nil {
		return nil, err
	}

	summaries := make([]types.Summary, 0, len(raw))
	for _, r := range raw {
		summaries = append(summaries, types.Summary{
			ID:          idString(r.ID),
			Title:       strings.TrimSpace(r.Title),
			Description: strings.TrimSpace(r.Description),
			TestType:    types.TestType(strings.ToLower(strings.TrimSpace(r.TestType))),
			Framework:   strings.TrimSpace(r.Framework),
			Priority:    types.Priority(strings.ToLower(strings.TrimSpace(r.Priority))),
		})
	}

	return summaries, nil
}

func parseCode(text string) (rawCode, error) {
	var raw rawCode
	if err := extract(text, jsonObjectPattern, CodeSchema, &raw); err != nil {
		return rawCode{}, err
	}

	if strings.TrimSpace(raw.Code) == "" {
		return rawCode{}, errors.New("model output contained no code")
	}

	return raw, nil
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}
