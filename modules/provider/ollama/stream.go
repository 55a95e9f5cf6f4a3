package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flemzord/chatrelay/internal/provider"
)

// parseNDJSONStream reads Ollama's newline-delimited JSON stream and emits
// StreamChunks on the returned channel. The channel is closed after the
// line marked done, on error, or when ctx ends.
func parseNDJSONStream(ctx context.Context, scanner *bufio.Scanner) <-chan provider.StreamChunk {
	ch := make(chan provider.StreamChunk, 16)

	go func() {
		defer close(ch)

		send := func(sc provider.StreamChunk) bool {
			select {
			case ch <- sc:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var msg chatResponse
			if err := json.Unmarshal(line, &msg); err != nil {
				send(provider.StreamChunk{Err: fmt.Errorf("%w: parse stream line: %w", provider.ErrBadResponse, err)})
				return
			}
			if msg.Error != "" {
				send(provider.StreamChunk{Err: fmt.Errorf("%w: %s", provider.ErrProviderDown, msg.Error)})
				return
			}

			sc := provider.StreamChunk{Content: msg.Message.Content}
			if msg.Done {
				sc.FinishReason = mapDoneReason(msg.DoneReason)
				u := usage(msg)
				sc.Usage = &u
			}
			if sc.Content != "" || msg.Done {
				if !send(sc) {
					return
				}
			}
			if msg.Done {
				return
			}
		}

		err := scanner.Err()
		switch {
		case ctx.Err() != nil:
			// Cancelled by the caller; the consumer checks its own context.
		case err != nil:
			send(provider.StreamChunk{Err: fmt.Errorf("%w: stream read error: %w", provider.ErrProviderDown, err)})
		default:
			send(provider.StreamChunk{Err: fmt.Errorf("%w: %w", provider.ErrBadResponse, errStreamTruncated)})
		}
	}()

	return ch
}

var errStreamTruncated = errors.New("stream ended before the final message")
