package workflows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/tools"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/httpclient"
)

const helloMessage = "Hello from n8n MCP Bridge!"

func (t *Toolset) helloWorld(ctx context.Context, _ tools.Arguments) (any, error) {
	return helloMessage, nil
}

func (t *Toolset) listWorkflows(ctx context.Context, _ tools.Arguments) (any, error) {
	res, err := t.call(ctx, httpclient.RequestOptions{
		Method:     http.MethodGet,
		Path:       "/workflows",
		ExpectJSON: true,
	})
	if err != nil {
		return failure(ctx, "listing workflows", err), nil
	}
	if res.StatusCode != http.StatusOK {
		return statusFailure("listing workflows", res), nil
	}

	// n8n wraps the list in {"data": [...]}; older versions return the bare array.
	list := res.JSON()
	if !list.IsArray() {
		list = list.Get("data")
	}

	var b strings.Builder
	b.WriteString("Available n8n Workflows:\n")
	list.ForEach(func(_, wf gjson.Result) bool {
		fmt.Fprintf(&b, "- ID: %s, Name: %s\n", field(wf, "id"), field(wf, "name"))
		return true
	})
	return b.String(), nil
}

type triggerArgs struct {
	WorkflowID string `mapstructure:"workflowId"`
	Data       string `mapstructure:"data"`
}

func (t *Toolset) triggerWorkflow(ctx context.Context, args tools.Arguments) (any, error) {
	var in triggerArgs
	if err := args.Decode(&in); err != nil {
		return nil, err
	}

	var payload any
	if err := json.Unmarshal([]byte(in.Data), &payload); err != nil {
		return "Error: Invalid JSON in data parameter", nil
	}

	res, err := t.call(ctx, httpclient.RequestOptions{
		Method: http.MethodPost,
		Path:   "/workflows/" + url.PathEscape(in.WorkflowID) + "/execute",
		Body:   []byte(in.Data),
	})
	if err != nil {
		return failure(ctx, "triggering workflow", err), nil
	}
	if !created(res.StatusCode) {
		return statusFailure("triggering workflow", res), nil
	}
	return fmt.Sprintf("Workflow %s triggered successfully", in.WorkflowID), nil
}

func (t *Toolset) sendMessage(ctx context.Context, args tools.Arguments) (any, error) {
	res, err := t.call(ctx, httpclient.RequestOptions{
		Method:     http.MethodPost,
		Path:       t.opts.MessagesURL,
		Body:       map[string]string{"message": args.String("message")},
		ExpectJSON: true,
	})
	if err != nil {
		return failure(ctx, "sending message", err), nil
	}
	if res.StatusCode != http.StatusOK {
		return statusFailure("sending message", res), nil
	}
	if !res.IsJSON() {
		return failure(ctx, "sending message", &httpclient.TransportError{Cause: httpclient.ErrMalformedResponse}), nil
	}
	return "Message sent to n8n: " + compact(res.Body), nil
}

type analyzeArgs struct {
	Text       string `mapstructure:"text"`
	WorkflowID string `mapstructure:"workflowId"`
}

func (t *Toolset) analyzeText(ctx context.Context, args tools.Arguments) (any, error) {
	var in analyzeArgs
	if err := args.Decode(&in); err != nil {
		return nil, err
	}

	res, err := t.call(ctx, httpclient.RequestOptions{
		Method:     http.MethodPost,
		Path:       "/workflows/" + url.PathEscape(in.WorkflowID) + "/execute",
		Body:       map[string]string{"text": in.Text},
		ExpectJSON: true,
	})
	if err != nil {
		return failure(ctx, "analyzing text", err), nil
	}
	if !created(res.StatusCode) {
		return statusFailure("analyzing text", res), nil
	}
	if !res.IsJSON() {
		return failure(ctx, "analyzing text", &httpclient.TransportError{Cause: httpclient.ErrMalformedResponse}), nil
	}

	var out bytes.Buffer
	if err := json.Indent(&out, res.Body, "", "  "); err != nil {
		return failure(ctx, "analyzing text", err), nil
	}
	return "Analysis complete: " + out.String(), nil
}

func created(status int) bool {
	return status == http.StatusOK || status == http.StatusCreated
}

// failure renders an error from the backend call. Non-2xx responses keep the
// status and body; anything else is reported by cause.
func failure(ctx context.Context, action string, err error) string {
	var be *httpclient.BackendError
	if errors.As(err, &be) {
		return fmt.Sprintf("Error %s: %d - %s", action, be.StatusCode, be.Body)
	}
	log.Ctx(ctx).Error().Err(err).Msgf("error %s", action)
	return "Error: " + err.Error()
}

func statusFailure(action string, res *httpclient.Result) string {
	return fmt.Sprintf("Error %s: %d - %s", action, res.StatusCode, res.Text())
}

func field(v gjson.Result, name string) string {
	f := v.Get(name)
	if !f.Exists() || f.Type == gjson.Null {
		return "None"
	}
	return f.String()
}

func compact(body []byte) string {
	var out bytes.Buffer
	if err := json.Compact(&out, body); err != nil {
		return string(body)
	}
	return out.String()
}
