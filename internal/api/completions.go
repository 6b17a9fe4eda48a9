package api

import (
	"context"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
)

// maxCompletionTokens bounds a single completion. Child agent outputs are
// prose deliverables, not tool transcripts, so one generous cap fits all calls.
const maxCompletionTokens = 8192

// Complete performs a single-shot Messages API call with the given system
// instructions and task input, returning the concatenated text content.
// An empty model selects the client default.
func (c *Client) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	resp, err := c.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.resolveModel(model),
		MaxTokens: maxCompletionTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("messages API: %w", err)
	}

	c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var text string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("empty completion from model %s", c.resolveModel(model))
	}
	return text, nil
}

// StreamComplete performs a streaming Messages API call, writing text deltas
// to sink as they arrive and returning the accumulated text. Used for the
// final verdict so the user sees output as it is produced; a nil sink
// degrades to an ordinary buffered call.
func (c *Client) StreamComplete(ctx context.Context, model, system, prompt string, sink io.Writer) (string, error) {
	stream := c.inner.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     c.resolveModel(model),
		MaxTokens: maxCompletionTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return "", fmt.Errorf("accumulate stream event: %w", err)
		}

		if variant, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if delta, ok := variant.Delta.AsAny().(anthropic.TextDelta); ok && sink != nil {
				fmt.Fprint(sink, delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("streaming messages API: %w", err)
	}

	c.tracker.Add(message.Usage.InputTokens, message.Usage.OutputTokens)

	var text string
	for _, block := range message.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}
	return text, nil
}
