package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smallnest/taskwire/retry"
	"github.com/smallnest/taskwire/sse"
	"github.com/smallnest/taskwire/types"
)

// StreamHandler receives the events of one streaming session. Supplied per
// call, never shared across sessions. Exactly one of OnError/OnComplete
// fires per session; a cancelled session fires neither.
type StreamHandler struct {
	// OnMessage receives each well-formed data frame in arrival order.
	OnMessage func(payload json.RawMessage)
	// OnError fires once when the session fails terminally.
	OnError func(err error)
	// OnComplete fires once with the last seen identifiers after the
	// completion sentinel.
	OnComplete func(taskID, conversationID, messageID string)
}

// streamResult is the terminal outcome of one connect+decode cycle.
type streamResult struct {
	completed bool
	appErr    *types.APIError
	ids       types.LastSeen
}

// Stream opens a streaming call and runs it to a terminal state. Transient
// transport failures restart the whole session (decoding from byte zero)
// under the verb's retry policy, so a POST stream is never re-issued; 401
// triggers one refresh-and-replay per connect; cancelling ctx aborts
// silently within one read cycle.
func (c *Client) Stream(ctx context.Context, method, path string, body any, h StreamHandler) error {
	log := c.log.With(zap.String("stream_session", uuid.NewString()))

	policy := retry.ForMethod(method)
	if c.streamPolicy != nil {
		policy = *c.streamPolicy
	}

	var result streamResult
	_, err := retry.Do(ctx, policy, func() (struct{}, error) {
		r, err := c.runStreamOnce(ctx, method, path, body, h, log)
		result = r
		return struct{}{}, err
	})

	// A cancelled session fires no callbacks.
	if ctx.Err() != nil {
		log.Debug("stream session aborted")
		return ctx.Err()
	}

	if err != nil {
		log.Debug("stream session failed", zap.Error(err))
		if h.OnError != nil {
			h.OnError(err)
		}
		return err
	}

	if result.appErr != nil {
		log.Debug("stream session ended with application error",
			zap.Int("code", result.appErr.Code))
		if h.OnError != nil {
			h.OnError(result.appErr)
		}
		return result.appErr
	}

	log.Debug("stream session completed",
		zap.String("task_id", result.ids.TaskID),
		zap.String("conversation_id", result.ids.ConversationID),
		zap.String("message_id", result.ids.MessageID))
	if h.OnComplete != nil {
		h.OnComplete(result.ids.TaskID, result.ids.ConversationID, result.ids.MessageID)
	}
	return nil
}

// runStreamOnce performs one connect+decode cycle: attach credential,
// connect (refresh-and-replay once on 401), then pull bytes and dispatch
// decoded events until a terminal frame, a read failure, or cancellation.
func (c *Client) runStreamOnce(ctx context.Context, method, path string, body any, h StreamHandler, log *zap.Logger) (streamResult, error) {
	var res streamResult

	cred, err := c.credential(ctx)
	if err != nil {
		return res, err
	}

	resp, err := c.send(ctx, c.streamClient, method, path, body, cred, "text/event-stream")
	if err != nil {
		return res, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drainAndClose(resp.Body)
		cred, err = c.refresher.Refresh(ctx)
		if err != nil {
			return res, err
		}
		resp, err = c.send(ctx, c.streamClient, method, path, body, cred, "text/event-stream")
		if err != nil {
			return res, err
		}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return res, &types.AuthError{Op: "stream", Err: fmt.Errorf("unauthorized after credential refresh")}
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return res, &types.APIError{Code: resp.StatusCode, Message: string(msg)}
	}

	dec := sse.NewDecoder()

	// dispatch routes one event; reports whether it was terminal.
	dispatch := func(ev types.Event) bool {
		switch ev := ev.(type) {
		case types.DataEvent:
			if h.OnMessage != nil {
				h.OnMessage(ev.Payload)
			}
		case types.DecodeError:
			// Logged, never surfaced: a malformed frame must not lose
			// the rest of the stream.
			log.Warn("dropping malformed frame",
				zap.String("raw", ev.Raw), zap.Error(ev.Cause))
		case types.ApplicationError:
			res.appErr = &types.APIError{Code: ev.Code, Message: ev.Message}
			return true
		case types.Done:
			res.completed = true
			res.ids = dec.LastSeen()
			return true
		}
		return false
	}

	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(string(buf[:n])) {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				if dispatch(ev) {
					return res, nil
				}
			}
		}
		if readErr == nil {
			continue
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if readErr == io.EOF {
			// The last frame may arrive without a trailing newline.
			for _, ev := range dec.Flush() {
				if dispatch(ev) {
					return res, nil
				}
			}
			return res, fmt.Errorf("stream %s: %w", path, types.ErrAbruptClose)
		}
		return res, &types.TransportError{Op: "read " + path, Err: readErr}
	}
}
