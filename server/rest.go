package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"homechat/auth"
	"homechat/domain"
)

type contextKey string

const userIDKey contextKey = "user_id"

// corsMiddleware mirrors the browser-facing policy of the REST surface:
// echo the origin when it is allowed and short-circuit preflights.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.originAllowed(r) {
			if origin := r.Header.Get("Origin"); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth validates the bearer token and injects the caller identity
// into the request context for the chat handlers.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			respondError(w, http.StatusUnauthorized, "authorization token is missing")
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims, err := auth.ValidateToken(tokenStr)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerID(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

// handleHistory returns the conversation between the caller and another
// user, ascending by creation time, optionally scoped to one listing.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	otherUserID := r.URL.Query().Get("userId")
	if otherUserID == "" {
		respondError(w, http.StatusBadRequest, "userId is required")
		return
	}
	listingID := r.URL.Query().Get("listingId")

	messages, err := s.messages.History(callerID(r), otherUserID, listingID)
	if err != nil {
		s.log.Error("History fetch failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	if messages == nil {
		messages = []domain.StoredMessage{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type persistRequest struct {
	To          string `json:"to"`
	Body        string `json:"message"`
	ListingID   string `json:"listingId"`
	ListingName string `json:"listingName"`
}

// handlePersist is the durable-store write the sending client performs
// alongside the socket emit. It knows nothing about live delivery.
func (s *Server) handlePersist(w http.ResponseWriter, r *http.Request) {
	var req persistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" || req.Body == "" {
		respondError(w, http.StatusBadRequest, "recipient and message are required")
		return
	}
	if s.opts.MaxContentLength > 0 && len(req.Body) > s.opts.MaxContentLength {
		respondError(w, http.StatusBadRequest, "message is too long")
		return
	}

	stored, err := s.messages.StoreMessage(domain.StoredMessage{
		From:        callerID(r),
		To:          req.To,
		Body:        req.Body,
		ListingID:   req.ListingID,
		ListingName: req.ListingName,
	})
	if err != nil {
		s.log.Error("Persist failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save message")
		return
	}
	s.stats.MessagePersisted()
	respondJSON(w, http.StatusCreated, map[string]any{"message": stored})
}

// handleMarkRead flips every unread message from one sender to the
// caller and reports how many changed.
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	fromUserID := r.URL.Query().Get("from")
	if fromUserID == "" {
		respondError(w, http.StatusBadRequest, "from parameter is required")
		return
	}

	count, err := s.messages.MarkRead(fromUserID, callerID(r))
	if err != nil {
		s.log.Error("Mark read failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to mark messages as read")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.stats.GetLatest())
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
