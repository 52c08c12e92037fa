// Package workflows implements the n8n tools exposed by the bridge. Each tool
// proxies one call to the n8n REST API and renders the outcome as text.
// Backend failures are reported inside the text result, never as faults.
package workflows

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/tools"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/httpclient"
)

const (
	ToolHelloWorld      = "helloWorld"
	ToolListWorkflows   = "listWorkflows"
	ToolTriggerWorkflow = "triggerWorkflow"
	ToolSendMessage     = "sendMessage"
	ToolAnalyzeText     = "analyzeText"
)

// Options tunes a Toolset.
type Options struct {
	MessagesURL   string        // target of sendMessage
	RetryAttempts uint          // attempts per backend call; transport failures only
	RetryDelay    time.Duration // base delay between attempts
}

// Toolset holds what the workflow tools share.
type Toolset struct {
	client httpclient.Caller
	opts   Options
}

func NewToolset(client httpclient.Caller, opts Options) *Toolset {
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 200 * time.Millisecond
	}
	return &Toolset{
		client: client,
		opts:   opts,
	}
}

// Register adds every workflow tool to reg. It stops at the first failure.
func (t *Toolset) Register(reg *tools.Registry) error {
	defs := []struct {
		name   string
		desc   string
		params []tools.ParamSpec
		h      tools.HandlerFunc
	}{
		{
			name: ToolHelloWorld,
			desc: "A simple test function that returns a greeting.",
			h:    t.helloWorld,
		},
		{
			name: ToolListWorkflows,
			desc: "Lists available workflows from n8n.",
			h:    t.listWorkflows,
		},
		{
			name: ToolTriggerWorkflow,
			desc: "Triggers an n8n workflow by its ID.",
			params: []tools.ParamSpec{
				{Name: "workflowId", Type: tools.TypeString, Required: true, Description: "The ID of the workflow to trigger"},
				{Name: "data", Type: tools.TypeString, Default: "{}", Description: "Optional JSON string with data to pass to the workflow"},
			},
			h: t.triggerWorkflow,
		},
		{
			name: ToolSendMessage,
			desc: "Sends a message to the n8n MCP API endpoint.",
			params: []tools.ParamSpec{
				{Name: "message", Type: tools.TypeString, Required: true, Description: "The message to send to n8n"},
			},
			h: t.sendMessage,
		},
		{
			name: ToolAnalyzeText,
			desc: "Analyzes text using a specific n8n workflow.",
			params: []tools.ParamSpec{
				{Name: "text", Type: tools.TypeString, Required: true, Description: "The text to analyze"},
				{Name: "workflowId", Type: tools.TypeString, Required: true, Description: "The ID of the workflow to use for analysis"},
			},
			h: t.analyzeText,
		},
	}

	for _, d := range defs {
		if err := reg.Register(d.name, d.desc, d.params, d.h); err != nil {
			return err
		}
	}
	return nil
}

// call runs one backend request, retrying transport failures when configured.
func (t *Toolset) call(ctx context.Context, opts httpclient.RequestOptions) (*httpclient.Result, error) {
	return retry.DoWithData(
		func() (*httpclient.Result, error) {
			return t.client.Call(ctx, opts)
		},
		retry.RetryIf(func(err error) bool {
			var te *httpclient.TransportError
			return errors.As(err, &te)
		}),
		retry.Context(ctx),
		retry.Attempts(t.opts.RetryAttempts),
		retry.Delay(t.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if n+1 >= t.opts.RetryAttempts {
				return
			}
			log.Ctx(ctx).Warn().Uint("attempt", n+1).Err(err).Str("path", opts.Path).Msg("retrying backend call")
		}),
	)
}
