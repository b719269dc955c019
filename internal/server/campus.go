package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/labstack/echo/v4"

	"clarifyai/internal/campus"
	"clarifyai/internal/core"
)

func (h *Handler) campusService() (*campus.Service, error) {
	if h.campus == nil {
		return nil, core.NewConfigurationError("", "campus content is not enabled")
	}
	return h.campus, nil
}

// writeCacheable writes body as JSON with an ETag and answers 304 when the
// client already holds the same representation.
func writeCacheable(c echo.Context, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return handleError(c, err)
	}
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(data))

	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set("ETag", etag)
	if match := c.Request().Header.Get("If-None-Match"); match == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSONBlob(http.StatusOK, data)
}

func queryLimit(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.NewInvalidRequestError("limit must be an integer", err)
	}
	if limit == 0 {
		return 0, core.NewInvalidRequestError("limit must be positive", nil)
	}
	return limit, nil
}

// ListFAQs handles GET /v1/faqs
func (h *Handler) ListFAQs(c echo.Context) error {
	svc, err := h.campusService()
	if err != nil {
		return handleError(c, err)
	}
	limit, err := queryLimit(c)
	if err != nil {
		return handleError(c, err)
	}
	faqs, err := svc.ListFAQs(c.Request().Context(), campus.FAQFilter{
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
		Limit:    limit,
	})
	if err != nil {
		return handleError(c, err)
	}
	return writeCacheable(c, map[string]interface{}{"data": faqs})
}

// GetFAQ handles GET /v1/faqs/:id and counts the view.
func (h *Handler) GetFAQ(c echo.Context) error {
	svc, err := h.campusService()
	if err != nil {
		return handleError(c, err)
	}
	faq, err := svc.ViewFAQ(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, faq)
}

// CreateFAQ handles POST /v1/faqs
func (h *Handler) CreateFAQ(c echo.Context) error {
	svc, err := h.campusService()
	if err != nil {
		return handleError(c, err)
	}
	var in campus.FAQInput
	if err := c.Bind(&in); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	faq, err := svc.CreateFAQ(c.Request().Context(), actor(c), in)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusCreated, faq)
}

// UpdateFAQ handles PUT /v1/faqs/:id
func (h *Handler) UpdateFAQ(c echo.Context) error {
	svc, err := h.campusService()
	if err != nil {
		return handleError(c, err)
	}
	var upd campus.FAQUpdate
	if err := c.Bind(&upd); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	faq, err := svc.UpdateFAQ(c.Request().Context(), actor(c), c.Param("id"), upd)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, faq)
}

// DeleteFAQ handles DELETE /v1/faqs/:id
func (h *Handler) DeleteFAQ(c echo.Context) error {
	svc, err := h.campusService()
	if err != nil {
		return handleError(c, err)
	}
	if err := svc.DeleteFAQ(c.Request().Context(), actor(c), c.Param("id")); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "FAQ deleted successfully"})
}

// ListAnnouncements handles GET /v1/announcements
func (h *Handler) ListAnnouncements(c echo.Context) error {
	svc, err := h.campusService()
	if err != nil {
		return handleError(c, err)
	}
	limit, err := queryLimit(c)
	if err != nil {
		return handleError(c, err)
	}
	upcoming := true
	if raw := c.QueryParam("upcoming_only"); raw != "" {
		upcoming, err = strconv.ParseBool(raw)
		if err != nil {
			return handleError(c, core.NewInvalidRequestError("upcoming_only must be a boolean", err))
		}
	}
	anns, err := svc.ListAnnouncements(c.Request().Context(), campus.AnnouncementFilter{
		UpcomingOnly: upcoming,
		Category:     c.QueryParam("category"),
		Limit:        limit,
	})
	if err != nil {
		return handleError(c, err)
	}
	return writeCacheable(c, map[string]interface{}{"data": anns})
}

// GetAnnouncement handles GET /v1/announcements/:id
func (h *Handler) GetAnnouncement(c echo.Context) error {
	svc, err := h.campusService()
	if err != nil {
		return handleError(c, err)
	}
	a, err := svc.GetAnnouncement(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// CreateAnnouncement handles POST /v1/announcements
func (h *Handler) CreateAnnouncement(c echo.Context) error {
	svc, err := h.campusService()
	if err != nil {
		return handleError(c, err)
	}
	var in campus.AnnouncementInput
	if err := c.Bind(&in); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	a, err := svc.CreateAnnouncement(c.Request().Context(), actor(c), in)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// UpdateAnnouncement handles PUT /v1/announcements/:id
func (h *Handler) UpdateAnnouncement(c echo.Context) error {
	svc, err := h.campusService()
	if err != nil {
		return handleError(c, err)
	}
	var upd campus.AnnouncementUpdate
	if err := c.Bind(&upd); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	a, err := svc.UpdateAnnouncement(c.Request().Context(), actor(c), c.Param("id"), upd)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// DeleteAnnouncement handles DELETE /v1/announcements/:id
func (h *Handler) DeleteAnnouncement(c echo.Context) error {
	svc, err := h.campusService()
	if err != nil {
		return handleError(c, err)
	}
	if err := svc.DeleteAnnouncement(c.Request().Context(), actor(c), c.Param("id")); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Announcement deleted successfully"})
}
