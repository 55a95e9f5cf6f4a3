package anthropic

import (
	"context"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/flemzord/chatrelay/internal/provider"
)

const streamBufferSize = 16

// Stream sends a streaming request. Errors on connect are returned
// directly; mid-stream errors arrive via StreamChunk.Err.
func (a *Anthropic) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	stream := a.client.Messages.NewStreaming(ctx, convertRequest(req, &a.config, a.logger))

	// Read the first event here so auth and 4xx failures reach the caller.
	if !stream.Next() {
		err := stream.Err()
		_ = stream.Close() //nolint:errcheck // best-effort close
		if err != nil {
			return nil, mapError(err)
		}
		ch := make(chan provider.StreamChunk)
		close(ch)
		return ch, nil
	}

	first := stream.Current()
	ch := make(chan provider.StreamChunk, streamBufferSize)

	go func() {
		defer close(ch)
		defer func() { _ = stream.Close() }() //nolint:errcheck // best-effort close
		consume(ctx, stream, first, ch)
	}()

	return ch, nil
}

func consume(
	ctx context.Context,
	stream *ssestream.Stream[sdkanthropic.MessageStreamEventUnion],
	first sdkanthropic.MessageStreamEventUnion,
	ch chan<- provider.StreamChunk,
) {
	var inputTokens int64

	handle := func(event sdkanthropic.MessageStreamEventUnion) {
		switch ev := event.AsAny().(type) {
		case sdkanthropic.MessageStartEvent:
			inputTokens = ev.Message.Usage.InputTokens

		case sdkanthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(sdkanthropic.TextDelta); ok && delta.Text != "" {
				emit(ctx, ch, provider.StreamChunk{Content: delta.Text})
			}

		case sdkanthropic.MessageDeltaEvent:
			out := ev.Usage.OutputTokens
			emit(ctx, ch, provider.StreamChunk{
				FinishReason: convertStopReason(ev.Delta.StopReason),
				Usage: &provider.TokenUsage{
					PromptTokens:     int(inputTokens),
					CompletionTokens: int(out),
					TotalTokens:      int(inputTokens + out),
				},
			})
		}
	}

	handle(first)
	for stream.Next() {
		if ctx.Err() != nil {
			return
		}
		handle(stream.Current())
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		emit(ctx, ch, provider.StreamChunk{Err: mapError(err)})
	}
}

// emit sends chunk unless ctx ends first.
func emit(ctx context.Context, ch chan<- provider.StreamChunk, chunk provider.StreamChunk) {
	select {
	case ch <- chunk:
	case <-ctx.Done():
	}
}
