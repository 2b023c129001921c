package context

import (
	"strings"
	"testing"
	"time"

	"github.com/concordhq/concord/pkg/models"
)

func textPtr(s string) *string { return &s }

func TestBuildTruncatesHistoryToLastTen(t *testing.T) {
	history := make([]models.Message, 15)
	for i := range history {
		history[i] = models.Message{Role: models.RoleUser, Content: "msg"}
	}
	env := Build(BuildInput{History: history, UserMessage: "hi"})

	// 10 history + 1 user message.
	if len(env.Messages) != 11 {
		t.Fatalf("expected 11 messages, got %d", len(env.Messages))
	}
}

func TestBuildTruncatesLongMessageContent(t *testing.T) {
	long := strings.Repeat("x", maxMessageChars+100)
	history := []models.Message{{Role: models.RoleUser, Content: long}}
	env := Build(BuildInput{History: history, UserMessage: "hi"})

	if len(env.Messages[0].Content) > maxMessageChars+len(truncationSuffix) {
		t.Errorf("history message not truncated: len=%d", len(env.Messages[0].Content))
	}
	if !strings.HasSuffix(env.Messages[0].Content, truncationSuffix) {
		t.Error("expected truncation suffix")
	}
}

func TestBuildIncludesAttachedFileBoundedToLimit(t *testing.T) {
	long := strings.Repeat("a", maxAttachedFileChars+500)
	file := models.File{ID: "f1", Filename: "doc.txt", Processed: true, ExtractedText: textPtr(long)}
	env := Build(BuildInput{AttachedFiles: []models.File{file}, UserMessage: "hi"})

	if len(env.Messages) != 2 {
		t.Fatalf("expected attached-file section + user message, got %d", len(env.Messages))
	}
	if !strings.Contains(env.Messages[0].Content, "doc.txt") {
		t.Error("expected attached file section to reference filename")
	}
}

func TestBuildSkipsIneligibleFiles(t *testing.T) {
	file := models.File{ID: "f1", Filename: "unprocessed.txt", Processed: false}
	env := Build(BuildInput{AttachedFiles: []models.File{file}, UserMessage: "hi"})

	if len(env.Messages) != 1 {
		t.Fatalf("expected only the user message, got %d", len(env.Messages))
	}
}

func TestKnowledgeBaseSkipsAttachedFilesAndOrdersNewestFirst(t *testing.T) {
	now := time.Now()
	older := models.File{ID: "old", Filename: "old.txt", Processed: true, ExtractedText: textPtr("older content"), UploadedAt: now.Add(-time.Hour)}
	newer := models.File{ID: "new", Filename: "new.txt", Processed: true, ExtractedText: textPtr("newer content"), UploadedAt: now}
	attached := models.File{ID: "att", Filename: "attached.txt", Processed: true, ExtractedText: textPtr("attached content"), UploadedAt: now}

	env := Build(BuildInput{
		AttachedFiles: []models.File{attached},
		KnowledgeBase: []models.File{older, newer, attached},
		UserMessage:   "hi",
	})

	// attached section, newer KB section, older KB section, user message.
	if len(env.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(env.Messages))
	}
	if !strings.Contains(env.Messages[1].Content, "new.txt") {
		t.Errorf("expected newest KB file first, got %q", env.Messages[1].Content)
	}
	if !strings.Contains(env.Messages[2].Content, "old.txt") {
		t.Errorf("expected second KB section to be older file, got %q", env.Messages[2].Content)
	}
}

func TestKnowledgeBaseElidesWhenTotalExceedsCap(t *testing.T) {
	now := time.Now()
	var files []models.File
	for i := 0; i < 10; i++ {
		files = append(files, models.File{
			ID:            string(rune('a' + i)),
			Filename:      "f.txt",
			Processed:     true,
			ExtractedText: textPtr(strings.Repeat("x", maxKBFileChars)),
			UploadedAt:    now.Add(-time.Duration(i) * time.Minute),
		})
	}
	env := Build(BuildInput{KnowledgeBase: files, UserMessage: "hi"})

	found := false
	for _, m := range env.Messages {
		if strings.Contains(m.Content, "omitted") {
			found = true
		}
	}
	if !found {
		t.Error("expected an elision marker once the KB total cap is exceeded")
	}
}

func TestEnforceBudgetDropsOldestMessagesFirst(t *testing.T) {
	history := make([]models.Message, 5)
	for i := range history {
		history[i] = models.Message{Role: models.RoleUser, Content: strings.Repeat("x", 400)}
	}
	env := Build(BuildInput{History: history, UserMessage: "hi", ContextWindow: 100})

	// budget = 60 tokens = 240 chars; must have dropped messages.
	if len(env.Messages) >= 6 {
		t.Fatalf("expected budget enforcement to drop messages, got %d", len(env.Messages))
	}
	if len(env.Messages) == 0 {
		t.Fatal("expected at least the user message to survive")
	}
	if env.Messages[len(env.Messages)-1].Content != "hi" {
		t.Error("expected the newest (user) message to survive eviction")
	}
}

func TestEnforceBudgetNeverDropsAttachedFileContext(t *testing.T) {
	extracted := strings.Repeat("y", 2000)
	history := make([]models.Message, 5)
	for i := range history {
		history[i] = models.Message{Role: models.RoleUser, Content: strings.Repeat("x", 400)}
	}
	env := Build(BuildInput{
		History: history,
		AttachedFiles: []models.File{
			{ID: "f1", Filename: "notes.txt", Processed: true, ExtractedText: &extracted},
		},
		UserMessage:   "hi",
		ContextWindow: 100,
	})

	foundAttached := false
	for _, m := range env.Messages {
		if strings.Contains(m.Content, "Attached file notes.txt") {
			foundAttached = true
		}
	}
	if !foundAttached {
		t.Fatal("expected attached file context to survive history eviction")
	}
	if env.Messages[len(env.Messages)-1].Content != "hi" {
		t.Error("expected the current user message to survive eviction")
	}
}

func TestBuildWithZeroContextWindowSkipsBudgetCheck(t *testing.T) {
	history := make([]models.Message, 10)
	for i := range history {
		history[i] = models.Message{Role: models.RoleUser, Content: strings.Repeat("x", 400)}
	}
	env := Build(BuildInput{History: history, UserMessage: "hi"})
	if len(env.Messages) != 11 {
		t.Fatalf("expected no budget-based eviction, got %d messages", len(env.Messages))
	}
}
