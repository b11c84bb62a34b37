package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/avolkov/chanhub/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// ChannelHandlers provides HTTP handlers for channel directory endpoints.
type ChannelHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewChannelHandlers creates a new channel handlers instance.
func NewChannelHandlers(st store.Store, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{
		store: st,
		log:   logger,
	}
}

// CreateChannelRequest represents the create channel request body.
type CreateChannelRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=64"`
	IsPrivate bool   `json:"is_private"`
}

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
	CreatedBy *int64 `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at"`
}

// MessageResponse represents a message with its denormalized sender profile.
type MessageResponse struct {
	ID        int64           `json:"id"`
	ChannelID int64           `json:"channel_id"`
	SenderID  int64           `json:"sender_id"`
	Content   string          `json:"content"`
	CreatedAt string          `json:"created_at"`
	Sender    ProfileResponse `json:"sender"`
}

func channelResponse(ch *store.Channel) ChannelResponse {
	return ChannelResponse{
		ID:        ch.ID,
		Name:      ch.Name,
		IsPrivate: ch.IsPrivate,
		CreatedBy: ch.CreatedBy,
		CreatedAt: ch.CreatedAt.Format(time.RFC3339),
	}
}

// CreateChannel handles channel creation.
// POST /api/channels
func (h *ChannelHandlers) CreateChannel(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create channel request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	channel, err := h.store.CreateChannel(c.Request.Context(), req.Name, req.IsPrivate, uid)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "channel with this name already exists"})
			return
		}
		h.log.Error().Err(err).Str("channel_name", req.Name).Msg("failed to create channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	// The creator is the first member.
	if err := h.store.AddMember(c.Request.Context(), uid, channel.ID); err != nil {
		h.log.Warn().Err(err).Int64("channel_id", channel.ID).Msg("failed to add creator as member")
	}

	h.log.Info().Str("channel_name", channel.Name).Int64("channel_id", channel.ID).Int64("created_by", uid).Msg("channel created")
	c.JSON(http.StatusCreated, channelResponse(channel))
}

// ListChannels handles listing channels.
// GET /api/channels
func (h *ChannelHandlers) ListChannels(c *gin.Context) {
	channels, err := h.store.ListChannels(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list channels")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ChannelResponse, 0, len(channels))
	for _, ch := range channels {
		response = append(response, channelResponse(ch))
	}

	c.JSON(http.StatusOK, response)
}

// ListMembers handles listing the members of a channel.
// GET /api/channels/:id/members
func (h *ChannelHandlers) ListMembers(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid channel id"})
		return
	}

	if _, err := h.store.GetChannelByID(c.Request.Context(), channelID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
			return
		}
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to load channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	members, err := h.store.ListMembers(c.Request.Context(), channelID)
	if err != nil {
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to list members")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ProfileResponse, 0, len(members))
	for _, m := range members {
		response = append(response, profileResponse(m))
	}

	c.JSON(http.StatusOK, response)
}

// ListMessages handles message history pagination.
// GET /api/channels/:id/messages?limit=&before_id=
func (h *ChannelHandlers) ListMessages(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid channel id"})
		return
	}

	if _, err := h.store.GetChannelByID(c.Request.Context(), channelID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
			return
		}
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to load channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	var beforeID *int64
	if raw := c.Query("before_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before_id"})
			return
		}
		beforeID = &parsed
	}

	messages, err := h.store.ListMessages(c.Request.Context(), channelID, limit, beforeID)
	if err != nil {
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, MessageResponse{
			ID:        m.ID,
			ChannelID: m.ChannelID,
			SenderID:  m.SenderID,
			Content:   m.Content,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
			Sender:    profileResponse(&m.Sender),
		})
	}

	c.JSON(http.StatusOK, response)
}
