package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nhle/marketbell/internal/model"
	"github.com/nhle/marketbell/internal/store"
)

const maxListLimit = 100

type handlers struct {
	store store.Store
	log   logrus.FieldLogger
}

// list serves GET /notifications.
func (h *handlers) list(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.store.ListNotifications(c.Request.Context(), userID(c), filter)
	if err != nil {
		h.internal(c, err)
		return
	}
	for i := range items {
		items[i].TimeAgo = humanize.Time(items[i].CreatedAt)
	}
	respondJSON(c, http.StatusOK, "", items)
}

// unreadCount serves GET /notifications/unread-count.
func (h *handlers) unreadCount(c *gin.Context) {
	n, err := h.store.UnreadCount(c.Request.Context(), userID(c))
	if err != nil {
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusOK, countResponse{Success: true, Count: n})
}

// markRead serves PUT /notifications/:id/read.
func (h *handlers) markRead(c *gin.Context) {
	err := h.store.MarkRead(c.Request.Context(), userID(c), c.Param("id"))
	if h.mutationFailed(c, err) {
		return
	}
	respondJSON(c, http.StatusOK, "Notification marked as read", nil)
}

// markAllRead serves PUT /notifications/read-all.
func (h *handlers) markAllRead(c *gin.Context) {
	n, err := h.store.MarkAllRead(c.Request.Context(), userID(c))
	if err != nil {
		h.internal(c, err)
		return
	}
	respondJSON(c, http.StatusOK, strconv.FormatInt(n, 10)+" notifications marked as read", nil)
}

// remove serves DELETE /notifications/:id.
func (h *handlers) remove(c *gin.Context) {
	err := h.store.DeleteNotification(c.Request.Context(), userID(c), c.Param("id"))
	if h.mutationFailed(c, err) {
		return
	}
	respondJSON(c, http.StatusOK, "Notification deleted", nil)
}

// removeAll serves DELETE /notifications.
func (h *handlers) removeAll(c *gin.Context) {
	n, err := h.store.DeleteAll(c.Request.Context(), userID(c))
	if err != nil {
		h.internal(c, err)
		return
	}
	respondJSON(c, http.StatusOK, strconv.FormatInt(n, 10)+" notifications deleted", nil)
}

type createRequest struct {
	Type     model.NotificationType `json:"type" binding:"required"`
	Category model.Category         `json:"category"`
	Priority model.Priority         `json:"priority"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message" binding:"required"`
	Sender   *model.Sender          `json:"sender"`
	Data     json.RawMessage        `json:"data"`
}

// create serves POST /notifications. It exists so a developer can
// produce events for the signed-in user.
func (h *handlers) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Category != "" && !slices.Contains(model.Categories, req.Category) {
		respondError(c, http.StatusBadRequest, "unknown category "+string(req.Category))
		return
	}

	n, err := h.store.CreateNotification(c.Request.Context(), userID(c), model.Notification{
		Type:     req.Type,
		Category: req.Category,
		Priority: req.Priority,
		Title:    req.Title,
		Message:  req.Message,
		Sender:   req.Sender,
		Data:     req.Data,
	})
	if err != nil {
		h.internal(c, err)
		return
	}

	h.log.WithFields(logrus.Fields{"id": n.ID, "type": n.Type}).Info("notification created")
	n.TimeAgo = humanize.Time(n.CreatedAt)
	respondJSON(c, http.StatusCreated, "Notification created", n)
}

// mutationFailed writes the error response for a single-item mutation
// and reports whether one was written.
func (h *handlers) mutationFailed(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrNotFound):
		respondError(c, http.StatusNotFound, "Notification not found")
	default:
		h.internal(c, err)
	}
	return true
}

func (h *handlers) internal(c *gin.Context, err error) {
	h.log.WithError(err).WithField("path", c.FullPath()).Error("handling request")
	respondError(c, http.StatusInternalServerError, "Internal server error")
}

func parseFilter(c *gin.Context) (model.Filter, error) {
	var f model.Filter

	if raw, ok := c.GetQuery("isRead"); ok {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			return f, errors.New("isRead must be true or false")
		}
		f.IsRead = &read
	}

	if raw, ok := c.GetQuery("category"); ok {
		cat := model.Category(raw)
		if !slices.Contains(model.Categories, cat) {
			return f, errors.New("unknown category " + raw)
		}
		f.Category = &cat
	}

	if raw, ok := c.GetQuery("limit"); ok {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return f, errors.New("limit must be a positive integer")
		}
		f.Limit = min(limit, maxListLimit)
	}

	return f, nil
}
