package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"homechat/domain"
	"homechat/domain/event"
)

// The durable store is a separate collaborator with its own REST
// surface; the session talks to it over plain request/response, fully
// decoupled from the socket.

func (s *Session) restURL(path string) string {
	return strings.TrimSuffix(s.cfg.ServerURL, "/") + path
}

func (s *Session) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	return s.http.Do(req)
}

func (s *Session) fetchHistory(ctx context.Context, peerID, listingID string) ([]domain.StoredMessage, error) {
	query := url.Values{"userId": {peerID}}
	if listingID != "" {
		query.Set("listingId", listingID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.restURL("/api/chat/messages")+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history fetch: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Messages []domain.StoredMessage `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

func (s *Session) persist(ctx context.Context, send event.MessageSend) (domain.StoredMessage, error) {
	payload, err := json.Marshal(map[string]string{
		"to":          send.To,
		"message":     send.Body,
		"listingId":   send.ListingID,
		"listingName": send.ListingName,
	})
	if err != nil {
		return domain.StoredMessage{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.restURL("/api/chat/messages"), bytes.NewReader(payload))
	if err != nil {
		return domain.StoredMessage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.do(req)
	if err != nil {
		return domain.StoredMessage{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		return domain.StoredMessage{}, fmt.Errorf("persist: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Message domain.StoredMessage `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.StoredMessage{}, err
	}
	return body.Message, nil
}

func (s *Session) markRead(ctx context.Context, fromUserID string) (int, error) {
	query := url.Values{"from": {fromUserID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		s.restURL("/api/chat/read")+"?"+query.Encode(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("mark read: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.Count, nil
}
