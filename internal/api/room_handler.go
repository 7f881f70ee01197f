package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/hokm-game/internal/errors"
	"github.com/wfunc/hokm-game/internal/game"
	"github.com/wfunc/hokm-game/internal/game/hokm"
	"github.com/wfunc/hokm-game/internal/middleware"
	"go.uber.org/zap"
)

// RoomHandler 房间处理器
type RoomHandler struct {
	rooms  *game.RoomService
	logger *zap.Logger
}

// NewRoomHandler 创建房间处理器
func NewRoomHandler(rooms *game.RoomService, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{
		rooms:  rooms,
		logger: logger,
	}
}

// CreateRoomRequest 创建房间请求
type CreateRoomRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// CreateRoomResponse 创建房间响应
type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

// JoinRoomRequest 入座请求
type JoinRoomRequest struct {
	Name string `json:"name" binding:"required"`
}

// StateResponse 房间状态响应
type StateResponse struct {
	Seq   uint64          `json:"seq,omitempty"`
	State *hokm.GameState `json:"state"`
}

// SwitchSeatRequest 换座请求
type SwitchSeatRequest struct {
	Seat int `json:"seat"`
}

// SetHokmRequest 选主请求
type SetHokmRequest struct {
	Suit string `json:"suit" binding:"required"`
}

// PlayCardRequest 出牌请求
type PlayCardRequest struct {
	CardID string `json:"card_id" binding:"required"`
}

// CreateRoom 创建房间
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errors.Newf(errors.ErrInvalidParam, "参数错误: %v", err))
		return
	}

	roomID, err := h.rooms.CreateRoom(c.Request.Context(), hokm.Mode(req.Mode))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(200, CreateRoomResponse{RoomID: roomID})
}

// JoinRoom 入座并获取会话令牌
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errors.Newf(errors.ErrInvalidParam, "参数错误: %v", err))
		return
	}

	result, err := h.rooms.JoinRoom(c.Request.Context(), c.Param("room_id"), req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(200, result)
}

// GetState 读取房间状态
func (h *RoomHandler) GetState(c *gin.Context) {
	st, seq, err := h.rooms.GetState(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(200, StateResponse{Seq: seq, State: st})
}

// SwitchSeat 大厅内换座
func (h *RoomHandler) SwitchSeat(c *gin.Context) {
	playerID, ok := middleware.GetPlayerID(c)
	if !ok {
		h.respondError(c, errors.New(errors.ErrTokenInvalid, "会话无效"))
		return
	}

	var req SwitchSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errors.Newf(errors.ErrInvalidParam, "参数错误: %v", err))
		return
	}

	st, err := h.rooms.SwitchSeat(c.Request.Context(), c.Param("room_id"), playerID, req.Seat)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(200, StateResponse{State: st})
}

// SetHokm Hakim选定主花色
func (h *RoomHandler) SetHokm(c *gin.Context) {
	playerID, ok := middleware.GetPlayerID(c)
	if !ok {
		h.respondError(c, errors.New(errors.ErrTokenInvalid, "会话无效"))
		return
	}

	var req SetHokmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errors.Newf(errors.ErrInvalidParam, "参数错误: %v", err))
		return
	}

	st, err := h.rooms.SetHokm(c.Request.Context(), c.Param("room_id"), playerID, hokm.Suit(req.Suit))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(200, StateResponse{State: st})
}

// PlayCard 出牌
func (h *RoomHandler) PlayCard(c *gin.Context) {
	playerID, ok := middleware.GetPlayerID(c)
	if !ok {
		h.respondError(c, errors.New(errors.ErrTokenInvalid, "会话无效"))
		return
	}

	var req PlayCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errors.Newf(errors.ErrInvalidParam, "参数错误: %v", err))
		return
	}

	st, err := h.rooms.PlayCard(c.Request.Context(), c.Param("room_id"), playerID, req.CardID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(200, StateResponse{State: st})
}

// LeaveRoom 离开房间
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	playerID, ok := middleware.GetPlayerID(c)
	if !ok {
		h.respondError(c, errors.New(errors.ErrTokenInvalid, "会话无效"))
		return
	}

	if err := h.rooms.LeaveRoom(c.Request.Context(), c.Param("room_id"), playerID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(200, gin.H{"message": "已离开房间"})
}

// respondError 按错误码映射HTTP状态
func (h *RoomHandler) respondError(c *gin.Context, err error) {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrUnknown, "内部错误")
	}

	status := appErr.HTTPStatus()
	if status >= 500 {
		h.logger.Error("请求处理失败",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}

	c.JSON(status, errors.NewErrorResponse(appErr, c.GetHeader("X-Request-ID")))
}
