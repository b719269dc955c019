package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"clarifyai/internal/conversation"
	"clarifyai/internal/core"
)

type conversationRequest struct {
	Title string `json:"title"`
}

type feedbackRequest struct {
	WasHelpful *bool `json:"was_helpful"`
}

type conversationResponse struct {
	*conversation.Conversation
	Messages []conversation.Message `json:"messages"`
}

func (h *Handler) conversationStore() (conversation.Store, error) {
	if h.conversations == nil {
		return nil, core.NewConfigurationError("", "conversation persistence is not enabled")
	}
	return h.conversations, nil
}

// ownedConversation loads :id and hides conversations the caller does not own.
func (h *Handler) ownedConversation(c echo.Context) (*conversation.Conversation, error) {
	store, err := h.conversationStore()
	if err != nil {
		return nil, err
	}
	id, err := requireIdentity(c)
	if err != nil {
		return nil, err
	}
	conv, err := store.Get(c.Request().Context(), c.Param("id"))
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

// ListConversations handles GET /v1/conversations
func (h *Handler) ListConversations(c echo.Context) error {
	store, err := h.conversationStore()
	if err != nil {
		return handleError(c, err)
	}
	id, err := requireIdentity(c)
	if err != nil {
		return handleError(c, err)
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 200 {
			return handleError(c, core.NewInvalidRequestError("limit must be between 1 and 200", err))
		}
	}

	list, err := store.List(c.Request().Context(), id.Subject, limit)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": list})
}

// CreateConversation handles POST /v1/conversations
func (h *Handler) CreateConversation(c echo.Context) error {
	store, err := h.conversationStore()
	if err != nil {
		return handleError(c, err)
	}
	id, err := requireIdentity(c)
	if err != nil {
		return handleError(c, err)
	}

	var req conversationRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}

	conv, err := store.Create(c.Request().Context(), id.Subject, req.Title)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusCreated, conv)
}

// GetConversation handles GET /v1/conversations/:id and includes the transcript.
func (h *Handler) GetConversation(c echo.Context) error {
	conv, err := h.ownedConversation(c)
	if err != nil {
		return handleError(c, err)
	}
	msgs, err := h.conversations.Messages(c.Request().Context(), conv.ID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, conversationResponse{Conversation: conv, Messages: msgs})
}

// RenameConversation handles PATCH /v1/conversations/:id
func (h *Handler) RenameConversation(c echo.Context) error {
	conv, err := h.ownedConversation(c)
	if err != nil {
		return handleError(c, err)
	}

	var req conversationRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}

	renamed, err := h.conversations.Rename(c.Request().Context(), conv.ID, req.Title)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, renamed)
}

// DeleteConversation handles DELETE /v1/conversations/:id
func (h *Handler) DeleteConversation(c echo.Context) error {
	conv, err := h.ownedConversation(c)
	if err != nil {
		return handleError(c, err)
	}
	if err := h.conversations.Delete(c.Request().Context(), conv.ID); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RateMessage handles PUT /v1/conversations/:id/messages/:message_id/feedback.
// Only the conversation owner may rate a reply; admins can read but not rate.
func (h *Handler) RateMessage(c echo.Context) error {
	conv, err := h.ownedConversation(c)
	if err != nil {
		return handleError(c, err)
	}
	id, err := requireIdentity(c)
	if err != nil {
		return handleError(c, err)
	}
	if conv.OwnerID != id.Subject {
		return handleError(c, core.NewForbiddenError("you can only rate replies in your own conversations"))
	}

	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if req.WasHelpful == nil {
		return handleError(c, core.NewInvalidRequestError("was_helpful is required", nil))
	}

	msg, err := h.conversations.SetFeedback(c.Request().Context(), conv.ID, c.Param("message_id"), *req.WasHelpful)
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		return handleError(c, core.NewNotFoundError("message not found"))
	case errors.Is(err, conversation.ErrNotAssistantMessage):
		return handleError(c, core.NewInvalidRequestError(err.Error(), err))
	case err != nil:
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, msg)
}
