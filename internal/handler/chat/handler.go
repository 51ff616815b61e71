package chat

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/catmaid/backend/internal/model/chat"
	"github.com/zhouzirui/catmaid/backend/internal/model/message"
	"github.com/zhouzirui/catmaid/backend/internal/service/history"
	statusService "github.com/zhouzirui/catmaid/backend/internal/service/status"
	"github.com/zhouzirui/catmaid/backend/internal/service/turn"
	"github.com/zhouzirui/catmaid/backend/pkg/utils"
)

const maxHistoryLimit = 100

// Handler 聊天服务的HTTP处理器
type Handler struct {
	turns        *turn.Processor
	statuses     *statusService.Service
	history      *history.Service
	historyLimit int
}

// New 创建聊天处理器
func New(turns *turn.Processor, statuses *statusService.Service, hist *history.Service, historyLimit int) *Handler {
	return &Handler{
		turns:        turns,
		statuses:     statuses,
		history:      hist,
		historyLimit: historyLimit,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/reset", h.handleReset)
	r.Get("/status/{userID}", h.handleStatus)
	r.Get("/history/{userID}", h.handleHistory)
}

type replyResponse struct {
	Reply string `json:"reply"`
}

// handleChat 处理一轮对话，失败时也返回角色化的回复
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID  string          `json:"userId"`
		Message json.RawMessage `json:"message"`
	}

	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := message.Decode(payload.Message)
	if err != nil {
		// 格式不支持的消息按空消息处理，由对话流程给出提示。
		in = message.Text("")
	}

	reply := h.turns.ProcessTurn(r.Context(), payload.UserID, in)
	utils.RespondJSON(w, http.StatusOK, replyResponse{Reply: reply})
}

// handleReset 重置用户的聊天记录与状态
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"userId"`
	}

	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply := h.turns.ResetUser(r.Context(), payload.UserID)
	utils.RespondJSON(w, http.StatusOK, replyResponse{Reply: reply})
}

type statusResponse struct {
	UserID    string `json:"userId"`
	Affection int    `json:"affection"`
	Stamina   int    `json:"stamina"`
	Mood      int    `json:"mood"`
	Max       int    `json:"max"`
}

// handleStatus 返回用户当前状态
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !turn.ValidUserID(userID) {
		utils.RespondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	st, err := h.statuses.Get(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load status")
		return
	}

	utils.RespondJSON(w, http.StatusOK, statusResponse{
		UserID:    st.UserID,
		Affection: st.Affection,
		Stamina:   st.Stamina,
		Mood:      st.Mood,
		Max:       h.statuses.Limits().Max,
	})
}

// handleHistory 返回最近的聊天记录，按时间正序
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !turn.ValidUserID(userID) {
		utils.RespondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	limit := h.historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.history.Recent(r.Context(), userID, limit)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if entries == nil {
		entries = []chat.Entry{}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"userId":  userID,
		"entries": entries,
	})
}
