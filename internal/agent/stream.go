package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"

	"github.com/laceai/lace-core/internal/corerr"
	"github.com/laceai/lace-core/internal/provider"
	"github.com/laceai/lace-core/pkg/types"
)

const (
	// Provider-call retry parameters: exponential backoff with jitter so
	// a transient Provider failure doesn't retry in lockstep across
	// concurrent turns.
	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
	retryMaxElapsedTime  = 2 * time.Minute
	retryMaxAttempts     = 3
)

func newProviderRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = retryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, retryMaxAttempts), ctx)
}

// toolCallIntent is a Provider-requested tool call, fully assembled
// from its streamed deltas: a Provider returns tool intents as
// (toolName, arguments) and the Agent assigns the callId.
type toolCallIntent struct {
	ProviderID string // the Provider's own call id, not the Agent-minted callId
	Name       string
	Args       map[string]any
}

// callProvider invokes CreateCompletion with retry-with-jitter; a
// Provider error that survives retries is wrapped as
// corerr.ErrProviderError. This retry only covers transport-level
// stream setup failures — a turn that fails after that point is never
// retried automatically; a fresh RunTurn call is a new attempt.
func callProvider(ctx context.Context, prov provider.Provider, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	var stream *provider.CompletionStream
	op := func() error {
		s, err := prov.CreateCompletion(ctx, req)
		if err != nil {
			return err
		}
		stream = s
		return nil
	}
	if err := backoff.Retry(op, newProviderRetryBackoff(ctx)); err != nil {
		return nil, fmt.Errorf("%w: %s", corerr.ErrProviderError, err)
	}
	return stream, nil
}

// toolAccumulator folds Index-keyed streaming tool-call deltas into a
// single intent: the first delta for an index carries ID and
// Function.Name, every later delta for that index carries only a
// fragment of Function.Arguments to be concatenated as raw JSON text.
type toolAccumulator struct {
	id       string
	name     string
	argsJSON strings.Builder
}

// streamResponse drains a CompletionStream, accumulating assistant text
// and tool-call intents, honoring cancellation mid-stream. It always
// closes the stream before returning.
func streamResponse(stream *provider.CompletionStream, cancelCh <-chan struct{}, onChunk func(text string)) (text string, calls []toolCallIntent, usage *types.TokenUsage, err error) {
	defer stream.Close()

	byIndex := make(map[int]*toolAccumulator)
	var order []int

	for {
		type recvResult struct {
			msg *schema.Message
			err error
		}
		resultCh := make(chan recvResult, 1)
		go func() {
			msg, recvErr := stream.Recv()
			resultCh <- recvResult{msg, recvErr}
		}()

		var res recvResult
		select {
		case res = <-resultCh:
		case <-cancelCh:
			return text, nil, usage, corerr.ErrCancelled
		}

		if res.err != nil {
			if res.err == io.EOF {
				break
			}
			return text, nil, usage, fmt.Errorf("%w: %s", corerr.ErrProviderError, res.err)
		}

		msg := res.msg
		if msg.Content != "" {
			text += msg.Content
			if onChunk != nil {
				onChunk(msg.Content)
			}
		}

		for _, tc := range msg.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			acc, ok := byIndex[idx]
			if !ok {
				acc = &toolAccumulator{}
				byIndex[idx] = acc
				order = append(order, idx)
			}
			if tc.ID != "" {
				acc.id = tc.ID
			}
			if tc.Function.Name != "" {
				acc.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				acc.argsJSON.WriteString(tc.Function.Arguments)
			}
		}

		if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
			if usage == nil {
				usage = &types.TokenUsage{}
			}
			usage.Input = msg.ResponseMeta.Usage.PromptTokens
			usage.Output = msg.ResponseMeta.Usage.CompletionTokens
		}
	}

	for _, idx := range order {
		acc := byIndex[idx]
		if acc.name == "" {
			continue
		}
		var args map[string]any
		if acc.argsJSON.Len() > 0 {
			_ = json.Unmarshal([]byte(acc.argsJSON.String()), &args)
		}
		calls = append(calls, toolCallIntent{ProviderID: acc.id, Name: acc.name, Args: args})
	}

	return text, calls, usage, nil
}
