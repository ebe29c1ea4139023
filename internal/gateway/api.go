// ABOUTME: REST fallback surface mirroring every live-channel operation 1:1
// ABOUTME: Same Ops dispatch, same error codes, same persisted effect

package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/2389/amity-gateway/internal/apperr"
	"github.com/2389/amity-gateway/internal/auth"
)

// httpStatusFor maps domain error codes to HTTP statuses.
func httpStatusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeInvalidState, apperr.CodeDuplicateRequest, apperr.CodeAlreadyFriends, apperr.CodeAlreadyProcessed:
		return http.StatusConflict
	case apperr.CodeBadRequest, apperr.CodeSelfReference, apperr.CodeEmptyContent:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// sendJSONError writes a structured error response with the stable code.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, code apperr.Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(code),
		"error": message,
	})
}

// sendDomainError converts a service error into its HTTP shape.
func (g *Gateway) sendDomainError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeStorage {
		g.logger.Error("storage failure", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, code, "internal error")
		return
	}
	g.sendJSONError(w, httpStatusFor(code), code, apperr.MessageOf(err))
}

// sendJSON writes a success payload.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// decodeBody parses a JSON request body into dst.
func (g *Gateway) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, apperr.CodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// actor returns the authenticated user id placed by the auth middleware.
func actor(r *http.Request) string {
	return auth.MustFromContext(r.Context()).UserID
}

// handleFriendshipRequest handles POST /api/friendships.
func (g *Gateway) handleFriendshipRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var p sendRequestPayload
	if !g.decodeBody(w, r, &p) {
		return
	}

	data, err := g.ops.SendFriendRequest(r.Context(), actor(r), p)
	if err != nil {
		g.sendDomainError(w, err)
		return
	}
	g.sendJSON(w, http.StatusCreated, data)
}

// handleFriendshipAction handles POST /api/friendships/{id}/{action} for
// accept, reject, and cancel.
func (g *Gateway) handleFriendshipAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	p := friendshipActionPayload{
		FriendshipID: r.PathValue("id"),
		UserID:       actor(r),
	}

	var (
		data any
		err  error
	)
	switch r.PathValue("action") {
	case "accept":
		data, err = g.ops.AcceptFriendRequest(r.Context(), actor(r), p)
	case "reject":
		data, err = g.ops.RejectFriendRequest(r.Context(), actor(r), p)
	case "cancel":
		data, err = g.ops.CancelFriendRequest(r.Context(), actor(r), p)
	default:
		g.sendJSONError(w, http.StatusNotFound, apperr.CodeNotFound, "unknown action")
		return
	}

	if err != nil {
		g.sendDomainError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, data)
}

// handleContacts handles GET /api/contacts: every other user with the
// viewer-relative friendship state.
func (g *Gateway) handleContacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	contacts, err := g.friendships.ListWithStatus(r.Context(), actor(r))
	if err != nil {
		g.sendDomainError(w, err)
		return
	}

	type contactResponse struct {
		User         UserView `json:"user"`
		Status       string   `json:"status"`
		FriendshipID string   `json:"friendship_id,omitempty"`
	}

	out := make([]contactResponse, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, contactResponse{
			User:         userView(c.User),
			Status:       string(c.Status),
			FriendshipID: c.FriendshipID,
		})
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"contacts": out})
}

// handleFriends handles GET /api/friends: accepted counterparts only.
func (g *Gateway) handleFriends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	friends, err := g.friendships.ListFriends(r.Context(), actor(r))
	if err != nil {
		g.sendDomainError(w, err)
		return
	}

	out := make([]UserView, 0, len(friends))
	for _, u := range friends {
		out = append(out, userView(u))
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"friends": out})
}

// handleMessages handles POST /api/messages (send).
func (g *Gateway) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var p sendMessagePayload
	if !g.decodeBody(w, r, &p) {
		return
	}

	data, err := g.ops.SendMessage(r.Context(), actor(r), p)
	if err != nil {
		g.sendDomainError(w, err)
		return
	}
	g.sendJSON(w, http.StatusCreated, data)
}

// handleMessageByID handles PUT and DELETE /api/messages/{id}.
func (g *Gateway) handleMessageByID(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("id")

	switch r.Method {
	case http.MethodPut:
		var body struct {
			Content string `json:"content"`
		}
		if !g.decodeBody(w, r, &body) {
			return
		}
		data, err := g.ops.UpdateMessage(r.Context(), actor(r), updateMessagePayload{
			MessageID: messageID,
			UserID:    actor(r),
			Content:   body.Content,
		})
		if err != nil {
			g.sendDomainError(w, err)
			return
		}
		g.sendJSON(w, http.StatusOK, data)

	case http.MethodDelete:
		data, err := g.ops.DeleteMessage(r.Context(), actor(r), messageActionPayload{
			MessageID: messageID,
			UserID:    actor(r),
		})
		if err != nil {
			g.sendDomainError(w, err)
			return
		}
		g.sendJSON(w, http.StatusOK, data)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleMarkRead handles POST /api/messages/{id}/read.
func (g *Gateway) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	data, err := g.ops.MarkMessageRead(r.Context(), actor(r), messageActionPayload{
		MessageID: r.PathValue("id"),
		UserID:    actor(r),
	})
	if err != nil {
		g.sendDomainError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, data)
}

// handleConversation handles GET /api/conversations/{userId} (fetch with
// read-on-open) and POST /api/conversations/{userId}/read (bulk sweep).
func (g *Gateway) handleConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	viewerID := actor(r)
	counterpartID := r.PathValue("userId")

	messages, marked, err := g.messaging.Conversation(r.Context(), viewerID, counterpartID, viewerID)
	if err != nil {
		g.sendDomainError(w, err)
		return
	}

	if marked > 0 {
		g.notifier.ConversationRead(counterpartID, viewerID)
	}

	out := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageView(m))
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"messages": out})
}

// handleConversationRead handles POST /api/conversations/{userId}/read.
func (g *Gateway) handleConversationRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	data, err := g.ops.MarkConversationRead(r.Context(), actor(r), conversationReadPayload{
		SenderID:   r.PathValue("userId"),
		ReceiverID: actor(r),
	})
	if err != nil {
		g.sendDomainError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, data)
}

// handleUnread handles GET /api/messages/unread with an optional ?from=
// filter for a single sender.
func (g *Gateway) handleUnread(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var (
		count int64
		err   error
	)
	if senderID := r.URL.Query().Get("from"); senderID != "" {
		count, err = g.messaging.UnreadCountFrom(r.Context(), actor(r), senderID)
	} else {
		count, err = g.messaging.UnreadCount(r.Context(), actor(r))
	}
	if err != nil {
		g.sendDomainError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]int64{"unread": count})
}
