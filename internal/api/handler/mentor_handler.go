package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"prepmate/internal/api/middleware"
	"prepmate/internal/app/service"
	"prepmate/internal/common"

	"github.com/go-chi/chi/v5"
)

type MentorHandler struct {
	mentorService *service.MentorService
}

func NewMentorHandler(ms *service.MentorService) *MentorHandler {
	return &MentorHandler{mentorService: ms}
}

func (h *MentorHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Post("/{topicKey}/messages", h.sendMessage)          // POST /api/v1/mentor/two-sum/messages
	r.Post("/{topicKey}/messages/stream", h.streamMessage) // POST /api/v1/mentor/two-sum/messages/stream
	r.Get("/{topicKey}/messages", h.getHistory)            // GET  /api/v1/mentor/two-sum/messages
	r.Delete("/{topicKey}/messages", h.clearHistory)       // DELETE /api/v1/mentor/two-sum/messages
}

type sendMessageRequest struct {
	Message       string `json:"message"`
	EditorContext string `json:"editor_context,omitempty"` // candidate's current code buffer
}

type sendMessageResponse struct {
	Reply string `json:"reply"`
}

func (h *MentorHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	topicKey := chi.URLParam(r, "topicKey")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	reply, err := h.mentorService.SendMessage(r.Context(), userID, topicKey, req.Message, req.EditorContext)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, sendMessageResponse{Reply: reply})
}

// streamMessage delivers the mentor reply as Server-Sent Events: one
// "data:" frame per fragment and a final "event: done" frame.
func (h *MentorHandler) streamMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	topicKey := chi.URLParam(r, "topicKey")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		common.RespondWithError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(chunk string) error {
		payload, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	_, err := h.mentorService.StreamMessage(r.Context(), userID, topicKey, req.Message, req.EditorContext, emit)
	if err != nil {
		// Headers are not sent yet only when validation failed before the
		// first write; otherwise the stream is already committed.
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	flusher.Flush()
}

func (h *MentorHandler) getHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	topicKey := chi.URLParam(r, "topicKey")

	turns, err := h.mentorService.History(r.Context(), userID, topicKey)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, turns)
}

func (h *MentorHandler) clearHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	topicKey := chi.URLParam(r, "topicKey")

	if err := h.mentorService.Clear(r.Context(), userID, topicKey); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
