package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"docchat/internal/ai"
	"docchat/internal/model"
	"docchat/internal/repository"
	"docchat/internal/retrieval"
)

const (
	maxSessionIDLen = 64

	groundingInstruction = "Use the documents below as context to answer the user's questions. " +
		"Answer naturally and do not cite or mention document file names."
	emptyCompletionReply = "The model returned an empty response."
)

// ConversationStore is the append-only message log the chat service writes to.
type ConversationStore interface {
	Append(ctx context.Context, sessionID, role, content string) (*model.Message, error)
	History(ctx context.Context, sessionID string) ([]model.Turn, error)
	ListSessions(ctx context.Context, cursor string, limit int) (*repository.SessionPage, error)
	DeleteBySessionID(ctx context.Context, sessionID string) error
}

// HistoryCache is a read-through copy of session histories. DeleteHistory
// must advance the session's generation; SetHistory must refuse a fill
// whose generation is no longer current.
type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID string) ([]model.Turn, bool, error)
	Generation(ctx context.Context, sessionID string) (int64, error)
	SetHistory(ctx context.Context, sessionID string, generation int64, turns []model.Turn) (bool, error)
	DeleteHistory(ctx context.Context, sessionID string) error
}

type ChatService struct {
	store        ConversationStore
	historyCache HistoryCache
	selector     retrieval.Selector
	completer    ai.Completer
	limits       PageLimits
	newID        func() string
	logger       *slog.Logger
}

type SendMessageInput struct {
	SessionID string
	Content   string
}

type SendMessageResult struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
}

// NewChatService wires the orchestrator. historyCache may be nil.
func NewChatService(
	store ConversationStore,
	historyCache HistoryCache,
	selector retrieval.Selector,
	completer ai.Completer,
	limits PageLimits,
) *ChatService {
	return &ChatService{
		store:        store,
		historyCache: historyCache,
		selector:     selector,
		completer:    completer,
		limits:       limits,
		newID:        uuid.NewString,
		logger:       slog.Default().With("component", "chat"),
	}
}

// SendMessage runs one chat turn. The user message is stored before the
// model is called, and the assistant reply is stored only when the call
// succeeds, so a failed completion leaves just the user message behind.
func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	sessionID, err := s.resolveSessionID(input.SessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Append(ctx, sessionID, model.RoleUser, content); err != nil {
		return nil, err
	}
	s.invalidate(ctx, sessionID)

	promptMessages, err := s.buildPromptMessages(ctx, sessionID, content)
	if err != nil {
		return nil, err
	}

	reply, err := s.completer.Complete(ctx, promptMessages)
	if err != nil {
		s.logger.Warn("completion failed", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = emptyCompletionReply
	}

	if _, err := s.store.Append(ctx, sessionID, model.RoleAssistant, reply); err != nil {
		return nil, err
	}
	s.invalidate(ctx, sessionID)

	return &SendMessageResult{SessionID: sessionID, Response: reply}, nil
}

// History returns the session's turns oldest first. An unknown session has
// an empty history.
func (s *ChatService) History(ctx context.Context, sessionID string) ([]model.Turn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || len(sessionID) > maxSessionIDLen {
		return nil, ErrInvalidInput
	}

	fillable := false
	var generation int64
	if s.historyCache != nil {
		if cached, hit, err := s.historyCache.GetHistory(ctx, sessionID); err == nil && hit {
			return cached, nil
		} else if err != nil {
			s.logger.Warn("history cache read failed", "session_id", sessionID, "error", err)
		}
		// The generation is read before the rows so a write that lands in
		// between makes the fill below a no-op.
		gen, err := s.historyCache.Generation(ctx, sessionID)
		if err != nil {
			s.logger.Warn("history cache generation read failed", "session_id", sessionID, "error", err)
		} else {
			generation, fillable = gen, true
		}
	}

	turns, err := s.store.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if fillable && len(turns) > 0 {
		stored, err := s.historyCache.SetHistory(ctx, sessionID, generation, turns)
		if err != nil {
			s.logger.Warn("history cache write failed", "session_id", sessionID, "error", err)
		} else if !stored {
			s.logger.Debug("history cache fill skipped after concurrent write", "session_id", sessionID)
		}
	}
	return turns, nil
}

func (s *ChatService) ListSessions(ctx context.Context, cursor string, limit int) (*repository.SessionPage, error) {
	return s.store.ListSessions(ctx, strings.TrimSpace(cursor), s.limits.clamp(limit))
}

// DeleteSession drops every message of the session. Deleting an unknown
// session succeeds.
func (s *ChatService) DeleteSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || len(sessionID) > maxSessionIDLen {
		return ErrInvalidInput
	}
	if err := s.store.DeleteBySessionID(ctx, sessionID); err != nil {
		return err
	}
	s.invalidate(ctx, sessionID)
	return nil
}

func (s *ChatService) resolveSessionID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return s.newID(), nil
	}
	if len(id) > maxSessionIDLen {
		return "", fmt.Errorf("%w: session id longer than %d bytes", ErrInvalidInput, maxSessionIDLen)
	}
	return id, nil
}

func (s *ChatService) invalidate(ctx context.Context, sessionID string) {
	if s.historyCache == nil {
		return
	}
	if err := s.historyCache.DeleteHistory(ctx, sessionID); err != nil {
		s.logger.Warn("history cache invalidate failed", "session_id", sessionID, "error", err)
	}
}

// buildPromptMessages reads the history from the store, which already holds
// the current user message as its last turn.
func (s *ChatService) buildPromptMessages(ctx context.Context, sessionID, query string) ([]ai.ChatMessage, error) {
	history, err := s.store.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	grounding, err := s.selector.Select(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select context failed: %w", err)
	}

	messages := make([]ai.ChatMessage, 0, len(history)+1)
	if strings.TrimSpace(grounding) != "" {
		messages = append(messages, ai.ChatMessage{
			Role:    model.RoleSystem,
			Content: groundingInstruction + "\n\n" + grounding,
		})
	}
	for _, turn := range history {
		role := turn.Role
		if role == "" {
			role = model.RoleUser
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: turn.Content})
	}
	return messages, nil
}
