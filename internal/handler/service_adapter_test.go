package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/ytreply/internal/model"
)

func TestSessionFinderAdapter_FindByID(t *testing.T) {
	session := &model.Session{ID: "sess-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	resolver := &mockSessionResolver{
		resolveFn: func(ctx context.Context, sessionID string) (*model.Session, *model.User, error) {
			switch sessionID {
			case "sess-1":
				return session, &model.User{ID: "user-1"}, nil
			case "broken":
				return nil, nil, errors.New("db")
			default:
				return nil, nil, nil
			}
		},
	}
	a := NewSessionFinderAdapter(resolver)

	got, err := a.FindByID(context.Background(), "sess-1")
	if err != nil || got != session {
		t.Errorf("FindByID(sess-1) = %v, %v", got, err)
	}

	got, err = a.FindByID(context.Background(), "unknown")
	if err != nil || got != nil {
		t.Errorf("FindByID(unknown) = %v, %v, want nil, nil", got, err)
	}

	if _, err := a.FindByID(context.Background(), "broken"); err == nil {
		t.Error("expected error to be propagated")
	}
}
