package usecases

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/credential"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"
)

// Provider describes one OpenAI-compatible endpoint and the credential used for it.
type Provider struct {
	Name          string // used in metrics and errors
	BaseURL       string
	Model         string
	CredentialKey string
	Credentials   credential.Reader
	HTTPClient    *http.Client
}

// client builds an SDK client with the credential read at the point of use.
// Retries are disabled: every retry is a user decision.
func (p Provider) client(op string) (openai.Client, error) {
	key, ok, err := p.Credentials.Get(p.CredentialKey)
	if err != nil {
		return openai.Client{}, fmt.Errorf("reading %s credential: %w", p.Name, err)
	}
	if !ok {
		return openai.Client{}, meeting.Ef(meeting.MissingCredential, op, "%s is not set", p.CredentialKey)
	}

	base := p.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithBaseURL(base),
		option.WithMaxRetries(0),
	}
	if p.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(p.HTTPClient))
	}
	return openai.NewClient(opts...), nil
}

// classify maps an SDK failure onto the error taxonomy. Context errors are
// returned as they are.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &meeting.Error{
			Kind: meeting.ProviderRejected,
			Op:   op,
			Err:  &RejectedError{StatusCode: apiErr.StatusCode, Message: msg},
		}
	}
	return meeting.E(meeting.NetworkError, op, err)
}

// RejectedError keeps the provider's status and message.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// outcome is the metrics label for err.
func outcome(err error) string {
	if err == nil {
		return ""
	}
	if kind := meeting.KindOf(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// chatRequest is a single-shot JSON-mode completion.
type chatRequest struct {
	System    string
	User      string
	MaxTokens int64
}

// chatJSON asks for a JSON object and decodes it strictly into out. Unknown
// fields, missing fields and wrong types are all MalformedResponse.
func chatJSON(ctx context.Context, p Provider, op string, req chatRequest, out any) error {
	client, err := p.client(op)
	if err != nil {
		return err
	}

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(req.MaxTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return classify(op, err)
	}
	if len(resp.Choices) == 0 {
		return meeting.Ef(meeting.MalformedResponse, op, "reply has no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return meeting.Ef(meeting.MalformedResponse, op, "decoding reply: %w", err)
	}
	if dec.More() {
		return meeting.Ef(meeting.MalformedResponse, op, "trailing data after reply object")
	}
	if err := validate.Struct(out); err != nil {
		return meeting.Ef(meeting.MalformedResponse, op, "reply is missing fields: %w", err)
	}
	return nil
}
