// Package context implements Concord's Context Builder: it assembles the
// bounded provider Envelope for one consensus turn from recent session
// history, attached files, and eligible knowledge-base files.
package context

import (
	"sort"

	"github.com/concordhq/concord/internal/providers"
	"github.com/concordhq/concord/pkg/models"
)

const (
	// maxHistoryMessages caps how many of the most recent session messages
	// are included, each truncated to maxMessageChars.
	maxHistoryMessages = 10
	maxMessageChars     = 500

	// maxAttachedFileChars bounds an explicitly attached file's contribution.
	maxAttachedFileChars = 3000

	// maxKBFileChars and maxKBTotalChars bound automatic knowledge-base
	// injection: newest files first, skipping any id already attached.
	maxKBFileChars  = 3000
	maxKBTotalChars = 15000

	truncationSuffix = "…"
	elisionMarker    = "\n[…additional knowledge-base content omitted…]"
)

// BuildInput carries everything the builder needs to assemble one turn's
// Envelope.
type BuildInput struct {
	System        string
	History       []models.Message // chronological, oldest first
	UserMessage   string
	AttachedFiles []models.File // explicitly referenced this turn
	KnowledgeBase []models.File // all of the user's other eligible files, any order
	ContextWindow int           // model's token context window, for the budget check
}

// Build assembles a bounded Envelope from in. Oldest history is dropped
// first if the assembled envelope would exceed contextWindow*0.6 tokens
// (estimated at 4 chars/token).
func Build(in BuildInput) providers.Envelope {
	history := truncatedHistory(in.History)
	attachedIDs := make(map[string]bool, len(in.AttachedFiles))

	var sections []string
	for _, f := range in.AttachedFiles {
		attachedIDs[f.ID] = true
		if !f.Eligible() {
			continue
		}
		sections = append(sections, "Attached file "+f.Filename+":\n"+truncate(*f.ExtractedText, maxAttachedFileChars))
	}

	sections = append(sections, knowledgeBaseSections(in.KnowledgeBase, attachedIDs)...)

	messages := make([]providers.Message, 0, len(history)+len(sections)+1)
	for _, sec := range sections {
		messages = append(messages, providers.Message{Role: "user", Content: sec})
	}
	historyStart := len(messages)
	for _, m := range history {
		messages = append(messages, providers.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, providers.Message{Role: "user", Content: in.UserMessage})

	env := providers.Envelope{System: in.System, Messages: messages}
	return enforceBudget(env, in.ContextWindow, historyStart, len(history))
}

// truncatedHistory returns the last maxHistoryMessages entries of history,
// each truncated to maxMessageChars.
func truncatedHistory(history []models.Message) []models.Message {
	start := 0
	if len(history) > maxHistoryMessages {
		start = len(history) - maxHistoryMessages
	}
	out := make([]models.Message, 0, len(history)-start)
	for _, m := range history[start:] {
		m.Content = truncate(m.Content, maxMessageChars)
		out = append(out, m)
	}
	return out
}

// knowledgeBaseSections builds context sections from eligible KB files not
// already attached this turn, newest first, bounded per-file and in total.
func knowledgeBaseSections(files []models.File, attachedIDs map[string]bool) []string {
	eligible := make([]models.File, 0, len(files))
	for _, f := range files {
		if attachedIDs[f.ID] || !f.Eligible() {
			continue
		}
		eligible = append(eligible, f)
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].UploadedAt.After(eligible[j].UploadedAt) })

	var sections []string
	total := 0
	for _, f := range eligible {
		content := truncate(*f.ExtractedText, maxKBFileChars)
		if total+len(content) > maxKBTotalChars {
			sections = append(sections, elisionMarker)
			break
		}
		sections = append(sections, "Knowledge base file "+f.Filename+":\n"+content)
		total += len(content)
	}
	return sections
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + truncationSuffix
}

// enforceBudget drops history entries oldest-first, never touching attached
// or knowledge-base context or the current user message, until the
// envelope's estimated token count fits within contextWindow*0.6. historyAt
// is the index of the oldest history message in env.Messages and
// historyCount how many follow it. A contextWindow of 0 disables the check
// (e.g. when the caller hasn't resolved a model yet).
func enforceBudget(env providers.Envelope, contextWindow, historyAt, historyCount int) providers.Envelope {
	if contextWindow <= 0 {
		return env
	}
	budget := int(float64(contextWindow) * 0.6)
	for estimateTokens(env) > budget && historyCount > 0 {
		env.Messages = append(env.Messages[:historyAt], env.Messages[historyAt+1:]...)
		historyCount--
	}
	return env
}

// estimateTokens approximates token count at 4 characters per token.
func estimateTokens(env providers.Envelope) int {
	total := len(env.System)
	for _, m := range env.Messages {
		total += len(m.Content)
		for _, tc := range m.ToolCalls {
			total += len(tc.Name) + len(tc.Arguments)
		}
	}
	return total / 4
}
