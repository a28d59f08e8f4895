package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/ytreply/internal/model"
)

func TestChannelHandler_List(t *testing.T) {
	svc := &mockChannelService{
		listFn: func(ctx context.Context, userID string) ([]*model.Channel, error) {
			return []*model.Channel{
				{ID: "c1", ChannelID: "UC123", Title: "My channel", SubscriberCount: 1200, AutoReplyEnabled: true},
			}, nil
		},
	}
	h := NewChannelHandler(svc)

	w := httptest.NewRecorder()
	h.List(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/channels", nil), "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body []channelResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 || body[0].ChannelID != "UC123" || body[0].SubscriberCount != 1200 {
		t.Errorf("body = %+v", body)
	}
}

func TestChannelHandler_Connect_NotImplemented(t *testing.T) {
	svc := &mockChannelService{
		connectFn: func(ctx context.Context, userID string) error {
			return model.NewChannelConnectUnavailableError()
		},
	}
	h := NewChannelHandler(svc)

	w := httptest.NewRecorder()
	h.Connect(w, withUserID(httptest.NewRequest(http.MethodPost, "/api/channels/connect", nil), "user-1"))

	if w.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotImplemented)
	}
}

func TestChannelHandler_SetAutoReply(t *testing.T) {
	var gotID string
	var gotEnabled bool
	svc := &mockChannelService{
		setAutoReplyFn: func(ctx context.Context, userID, channelID string, enabled bool) error {
			gotID, gotEnabled = channelID, enabled
			return nil
		},
	}
	h := NewChannelHandler(svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/channels/c1/auto-reply", strings.NewReader(`{"enabled":true}`))
	req = withChiURLParam(withUserID(req, "user-1"), "id", "c1")
	w := httptest.NewRecorder()
	h.SetAutoReply(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotID != "c1" || !gotEnabled {
		t.Errorf("SetAutoReply(%q, %v), want (c1, true)", gotID, gotEnabled)
	}
}

func TestChannelHandler_Delete_NotFound(t *testing.T) {
	svc := &mockChannelService{
		deleteFn: func(ctx context.Context, userID, channelID string) error {
			return model.NewChannelNotFoundError(channelID)
		},
	}
	h := NewChannelHandler(svc)

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodDelete, "/api/channels/x", nil), "user-1"), "id", "x")
	w := httptest.NewRecorder()
	h.Delete(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
