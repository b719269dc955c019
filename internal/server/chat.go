package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"clarifyai/internal/auth"
	"clarifyai/internal/conversation"
	"clarifyai/internal/core"
)

type chatStreamRequest struct {
	ConversationID string         `json:"conversation_id"`
	Messages       []core.Message `json:"messages"`
}

type deltaEvent struct {
	Delta string `json:"delta"`
}

type doneEvent struct {
	ConversationID string `json:"conversation_id,omitempty"`
}

type errorEvent struct {
	Message string `json:"message"`
}

// ChatStream handles POST /v1/chat/stream.
// The reply is relayed as SSE: one data event per fragment, then a single
// "done" or "error" event. On done the turn is appended to the conversation.
func (h *Handler) ChatStream(c echo.Context) error {
	id, err := requireIdentity(c)
	if err != nil {
		return handleError(c, err)
	}

	var req chatStreamRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if err := core.ValidateMessages(req.Messages); err != nil {
		return handleError(c, err)
	}

	ctx := c.Request().Context()
	conv, err := h.resolveConversation(ctx, id, req.ConversationID)
	if err != nil {
		return handleError(c, err)
	}
	if conv != nil {
		ctx = core.WithConversationID(ctx, conv.ID)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	stream := &sseWriter{res: res}
	var reply strings.Builder

	h.relay.StreamChat(ctx, req.Messages, core.StreamCallbacks{
		OnDelta: func(text string) {
			reply.WriteString(text)
			stream.send("", deltaEvent{Delta: text})
		},
		OnDone: func() {
			convID, err := h.persistTurn(context.WithoutCancel(ctx), id, conv, req.Messages, reply.String())
			if err != nil {
				h.logger.Error("failed to save conversation turn",
					"request_id", core.GetRequestID(ctx), "error", err)
				stream.send("error", errorEvent{Message: "the reply could not be saved"})
				return
			}
			stream.send("done", doneEvent{ConversationID: convID})
		},
		OnError: func(message string) {
			stream.send("error", errorEvent{Message: message})
		},
	})

	if stream.err != nil {
		h.logger.Debug("client went away during stream", "request_id", core.GetRequestID(ctx), "error", stream.err)
	}
	return nil
}

// resolveConversation loads the conversation a turn continues. Conversations
// owned by someone else are reported as missing unless the caller is an admin.
func (h *Handler) resolveConversation(ctx context.Context, id *auth.Identity, conversationID string) (*conversation.Conversation, error) {
	if conversationID == "" {
		return nil, nil
	}
	if h.conversations == nil {
		return nil, core.NewInvalidRequestError("conversation persistence is not enabled", nil)
	}
	conv, err := h.conversations.Get(ctx, conversationID)
	if errors.Is(err, conversation.ErrNotFound) {
		return nil, core.NewNotFoundError("conversation not found")
	}
	if err != nil {
		return nil, err
	}
	if conv.OwnerID != id.Subject && !id.IsAdmin() {
		return nil, core.NewNotFoundError("conversation not found")
	}
	return conv, nil
}

// persistTurn appends the newest user message and the full reply, creating the
// conversation first when the turn did not name one.
func (h *Handler) persistTurn(ctx context.Context, id *auth.Identity, conv *conversation.Conversation, history []core.Message, reply string) (string, error) {
	if h.conversations == nil {
		return "", nil
	}

	if conv == nil {
		created, err := h.conversations.Create(ctx, id.Subject, conversation.DeriveTitle(firstUserMessage(history)))
		if err != nil {
			return "", fmt.Errorf("create conversation: %w", err)
		}
		conv = created
	}

	err := h.conversations.AppendMessages(ctx, conv.ID,
		history[len(history)-1],
		core.Message{Role: core.RoleAssistant, Content: reply},
	)
	if err != nil {
		return "", fmt.Errorf("append messages: %w", err)
	}
	return conv.ID, nil
}

func firstUserMessage(history []core.Message) string {
	for _, m := range history {
		if m.Role == core.RoleUser {
			return m.Content
		}
	}
	return ""
}

// sseWriter writes server-sent events and remembers the first write failure.
type sseWriter struct {
	res *echo.Response
	err error
}

func (s *sseWriter) send(event string, payload any) {
	if s.err != nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.err = err
		return
	}

	var b strings.Builder
	if event != "" {
		b.WriteString("event: ")
		b.WriteString(event)
		b.WriteByte('\n')
	}
	b.WriteString("data: ")
	b.Write(data)
	b.WriteString("\n\n")

	if _, err := s.res.Write([]byte(b.String())); err != nil {
		s.err = err
		return
	}
	s.res.Flush()
}
