package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/concordhq/concord/internal/consensus"
	"github.com/concordhq/concord/internal/providers"
	"github.com/concordhq/concord/internal/realtime"
	"github.com/concordhq/concord/internal/storage"
	"github.com/concordhq/concord/internal/tools"
	"github.com/concordhq/concord/internal/toolloop"
	"github.com/concordhq/concord/pkg/models"
)

func newTestCoordinator() (*Coordinator, storage.StoreSet) {
	stores := storage.NewMemoryStores()
	registry := providers.NewRegistry(nil)
	toolReg := tools.NewRegistry()
	engine := consensus.New(registry, toolReg, func(a providers.Adapter) *toolloop.Loop {
		return toolloop.New(a, toolReg, tools.NewExecutor(toolReg, tools.DefaultExecutorConfig()), toolloop.DefaultConfig())
	}, consensus.NewJudge(registry))
	hub := realtime.NewHub()
	coord := New(stores, engine, hub, Config{GenerationTimeout: 2 * time.Second}, nil)
	return coord, stores
}

func TestPostUserMessageCreatesSessionWhenIDEmpty(t *testing.T) {
	coord, stores := newTestCoordinator()

	ack, err := coord.PostUserMessage(context.Background(), PostMessageInput{
		UserID:         "user-1",
		Text:           "hello there",
		SelectedModels: []string{"unknown-model"},
	})
	if err != nil {
		t.Fatalf("PostUserMessage() error = %v", err)
	}
	if !ack.SessionCreated {
		t.Fatal("expected a new session to be created")
	}
	if ack.SessionID == 0 {
		t.Fatal("expected a non-zero session id")
	}

	stored, err := stores.Sessions.Get(context.Background(), ack.SessionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Title != "hello there" {
		t.Fatalf("expected derived title, got %q", stored.Title)
	}
}

func TestPostUserMessageRejectsForeignSession(t *testing.T) {
	coord, stores := newTestCoordinator()

	owned := &models.ChatSession{UserID: "owner", Title: "t", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := stores.Sessions.Create(context.Background(), owned); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := coord.PostUserMessage(context.Background(), PostMessageInput{
		UserID:    "intruder",
		SessionID: fmt.Sprintf("%d", owned.ID),
		Text:      "hi",
	})
	if err == nil {
		t.Fatal("expected an ownership error")
	}
}

func TestPostUserMessageRejectsMalformedSessionID(t *testing.T) {
	coord, _ := newTestCoordinator()

	_, err := coord.PostUserMessage(context.Background(), PostMessageInput{
		UserID:    "user-1",
		SessionID: "42abc",
		Text:      "hi",
	})
	if err == nil {
		t.Fatal("expected InvalidSessionId error")
	}
}

func TestScheduleEnforcesDepthOneQueueAndRejectsThird(t *testing.T) {
	coord, _ := newTestCoordinator()

	var wg sync.WaitGroup
	release := make(chan struct{})
	started := make(chan struct{})

	wg.Add(1)
	err := coord.schedule(1, func() {
		close(started)
		<-release
		wg.Done()
	})
	if err != nil {
		t.Fatalf("first schedule() error = %v", err)
	}
	<-started

	if err := coord.schedule(1, func() {}); err != nil {
		t.Fatalf("second schedule() (queued) error = %v", err)
	}

	if err := coord.schedule(1, func() {}); err != ErrSessionBusy {
		t.Fatalf("expected ErrSessionBusy for third schedule(), got %v", err)
	}

	close(release)
	wg.Wait()
}

func TestPostUserMessageEmitsFailureMessageOnConsensusError(t *testing.T) {
	coord, stores := newTestCoordinator()

	ack, err := coord.PostUserMessage(context.Background(), PostMessageInput{
		UserID:         "user-1",
		Text:           "hi",
		SelectedModels: []string{"unknown-model"},
	})
	if err != nil {
		t.Fatalf("PostUserMessage() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		messages, err := stores.Messages.ListBySession(context.Background(), ack.SessionID, 0)
		if err != nil {
			t.Fatalf("ListBySession() error = %v", err)
		}
		if len(messages) >= 2 {
			if messages[1].Content != userVisibleFailureMessage {
				t.Fatalf("expected user-visible failure message, got %q", messages[1].Content)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for failure message to be persisted")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
