package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/provider"
	"github.com/agentdeck/agentdeck/internal/retrieval"
	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/agentdeck/agentdeck/internal/tokens"
	"github.com/agentdeck/agentdeck/internal/usage"
)

// AgentStore loads agent profiles.
type AgentStore interface {
	Get(ctx context.Context, id int64) (*agent.Agent, error)
}

// SessionStore manages sessions and messages.
type SessionStore interface {
	Create(ctx context.Context, userID, visitorID string, agentID int64) (*session.Session, error)
	GetOwned(ctx context.Context, id uuid.UUID, userID, visitorID string) (*session.Session, error)
	AddMessage(ctx context.Context, sessionID uuid.UUID, role, content string) (*session.Message, error)
	Messages(ctx context.Context, sessionID uuid.UUID, limit int32) ([]session.Message, error)
	SetTitle(ctx context.Context, id uuid.UUID, title string) error
}

// UsageStore gates and settles token consumption.
type UsageStore interface {
	GateTokens(ctx context.Context, userID string, estimate int64) (*usage.Period, error)
	Charge(ctx context.Context, periodID int64, total int64, countMessage bool, records []usage.Record) error
}

// Searcher finds grounding chunks for a query.
type Searcher interface {
	Search(ctx context.Context, agentID int64, query string) ([]retrieval.Match, error)
}

// Engine runs chat turns.
// Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	agents    AgentStore
	sessions  SessionStore
	usage     UsageStore
	retriever Searcher
	completer provider.Completer
	maxTokens int
	history   int32
	logger    *slog.Logger
}

// NewEngine creates an Engine. maxTokens caps completion length;
// history is the number of prior messages sent to the model.
func NewEngine(agents AgentStore, sessions SessionStore, usageStore UsageStore,
	retriever Searcher, completer provider.Completer,
	maxTokens int, history int32, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	if history <= 0 {
		history = 20
	}
	return &Engine{
		agents:    agents,
		sessions:  sessions,
		usage:     usageStore,
		retriever: retriever,
		completer: completer,
		maxTokens: maxTokens,
		history:   history,
		logger:    logger,
	}
}

// HandleTurn runs one conversation turn end to end.
//
// Order is fixed: quota gate, session resolution, user message persisted,
// retrieval, completion, reply persisted, metering. The user message is
// written before any generation so a provider failure never loses what
// the user said. Retrieval failures degrade to an ungrounded reply;
// completion failures fall back to a canned reply. Guest turns skip the
// gate and the metering entirely.
func (e *Engine) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if req.UserID == "" && req.VisitorID == "" {
		return nil, ErrNoUser
	}
	metered := req.UserID != ""

	a, err := e.agents.Get(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	if !metered && !a.IsPublic() {
		return nil, fmt.Errorf("%w: agent %d", ErrAgentNotPublic, a.ID)
	}

	model := a.Model()
	inputCost := tokens.Estimate(req.Message, model)

	var period *usage.Period
	if metered {
		period, err = e.usage.GateTokens(ctx, req.UserID, inputCost)
		if err != nil {
			return nil, err
		}
	}

	sess, err := e.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}

	userMsg, err := e.sessions.AddMessage(ctx, sess.ID, session.RoleUser, req.Message)
	if err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}

	grounding, grounded := e.retrieve(ctx, a.ID, req.Message)
	reply := e.complete(ctx, a, sess, grounding, req.Message)

	replyMsg, err := e.sessions.AddMessage(ctx, sess.ID, session.RoleAssistant, reply)
	if err != nil {
		return nil, fmt.Errorf("persisting reply: %w", err)
	}

	result := &TurnResult{SessionID: sess.ID, Reply: reply, Grounded: grounded}

	if metered {
		outputCost := tokens.Estimate(reply, model)
		total := inputCost + outputCost
		records := []usage.Record{
			{
				UserID:        req.UserID,
				SessionID:     &sess.ID,
				AgentID:       &a.ID,
				MessageID:     &userMsg.ID,
				TokensUsed:    inputCost,
				ModelUsed:     model,
				OperationType: usage.OpChatInput,
			},
			{
				UserID:        req.UserID,
				SessionID:     &sess.ID,
				AgentID:       &a.ID,
				MessageID:     &replyMsg.ID,
				TokensUsed:    outputCost,
				ModelUsed:     model,
				OperationType: usage.OpChatOutput,
			},
		}
		if err := e.usage.Charge(ctx, period.ID, total, true, records); err != nil {
			return nil, fmt.Errorf("charging usage: %w", err)
		}
		result.TokensCharged = total
		result.RemainingTokens = tokens.Remaining(period.TokensUsed+total, period.TokensLimit)
	}

	e.maybeTitle(ctx, a, sess, req.Message)

	e.logger.Info("chat turn completed",
		"session_id", sess.ID,
		"agent_id", a.ID,
		"grounded", grounded,
		"tokens_charged", result.TokensCharged)
	return result, nil
}

// resolveSession reuses the caller's session or starts a new one.
func (e *Engine) resolveSession(ctx context.Context, req TurnRequest) (*session.Session, error) {
	if req.SessionID != nil {
		return e.sessions.GetOwned(ctx, *req.SessionID, req.UserID, req.VisitorID)
	}
	return e.sessions.Create(ctx, req.UserID, req.VisitorID, req.AgentID)
}

// retrieve searches for grounding context. Failures are logged and the
// turn continues ungrounded.
func (e *Engine) retrieve(ctx context.Context, agentID int64, message string) (string, bool) {
	matches, err := e.retriever.Search(ctx, agentID, message)
	if err != nil {
		e.logger.Warn("retrieval failed, continuing ungrounded",
			"agent_id", agentID, "error", err)
		return "", false
	}
	ctxBlock := retrieval.CombineContext(matches)
	return ctxBlock, ctxBlock != ""
}

// complete calls the completion model, falling back to a canned reply
// on failure or empty output.
func (e *Engine) complete(ctx context.Context, a *agent.Agent, sess *session.Session, grounding, message string) string {
	system := []string{fmt.Sprintf("You are %s, an expert in %s.", a.Name, expertiseOf(a))}
	if a.SystemPrompt != "" {
		system = append(system, a.SystemPrompt)
	}
	system = append(system, "Use the provided CONTEXT when relevant. If the context is not relevant, answer normally. Be concise and helpful.")

	contextBlock := "CONTEXT: (none relevant)"
	if grounding != "" {
		contextBlock = "CONTEXT:\n" + grounding
	}

	messages := []provider.Message{
		{Role: provider.RoleSystem, Content: strings.Join(system, "\n\n")},
		{Role: provider.RoleSystem, Content: contextBlock},
	}
	messages = append(messages, e.historyMessages(ctx, sess)...)
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: message})

	reply, err := e.completer.Complete(ctx, provider.CompletionRequest{
		Model:       a.Model(),
		Messages:    messages,
		Temperature: a.ProviderTemperature(),
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		e.logger.Warn("completion failed, using fallback reply",
			"agent_id", a.ID, "error", err)
		return fallbackReply(a, message)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return fallbackReply(a, message)
	}
	return reply
}

// historyMessages loads prior turns for the model, excluding the user
// message persisted moments ago (it is appended separately).
func (e *Engine) historyMessages(ctx context.Context, sess *session.Session) []provider.Message {
	if sess.MessageCount == 0 {
		return nil
	}
	msgs, err := e.sessions.Messages(ctx, sess.ID, 0)
	if err != nil {
		e.logger.Warn("loading history failed, continuing without it",
			"session_id", sess.ID, "error", err)
		return nil
	}
	if len(msgs) == 0 {
		return nil
	}
	// Drop this turn's own user message; it is appended separately.
	msgs = msgs[:len(msgs)-1]
	if int32(len(msgs)) > e.history {
		msgs = msgs[int32(len(msgs))-e.history:]
	}
	history := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, provider.Message{Role: m.Role, Content: m.Content})
	}
	return history
}

// Title generation constants.
const (
	titleGenerationTimeout = 5 * time.Second
	titleInputMaxRunes     = 500
	titleMaxTokens         = 30
)

var titlePrompt = fmt.Sprintf(`Generate a concise title (max %d characters) for a chat session based on this first message.
The title should capture the main topic or intent.
Return ONLY the title text, no quotes, no explanations, no punctuation at the end.

Message: %%s

Title:`, titleMaxLength)

// maybeTitle sets a title generated from the first user message, once.
// Title failures never fail the turn.
func (e *Engine) maybeTitle(ctx context.Context, a *agent.Agent, sess *session.Session, message string) {
	if sess.TitleGenerated {
		return
	}
	if err := e.sessions.SetTitle(ctx, sess.ID, e.generateTitle(ctx, a, message)); err != nil {
		e.logger.Warn("setting session title failed", "session_id", sess.ID, "error", err)
	}
}

// generateTitle asks the model for a short session title, falling back
// to word-boundary truncation of the message itself.
func (e *Engine) generateTitle(ctx context.Context, a *agent.Agent, message string) string {
	ctx, cancel := context.WithTimeout(ctx, titleGenerationTimeout)
	defer cancel()

	input := message
	if runes := []rune(input); len(runes) > titleInputMaxRunes {
		input = string(runes[:titleInputMaxRunes]) + "..."
	}

	title, err := e.completer.Complete(ctx, provider.CompletionRequest{
		Model:     a.Model(),
		Messages:  []provider.Message{{Role: provider.RoleUser, Content: fmt.Sprintf(titlePrompt, input)}},
		MaxTokens: titleMaxTokens,
	})
	if err != nil {
		e.logger.Debug("title generation failed, falling back to truncation", "error", err)
		return titleFromMessage(message)
	}

	title = strings.Trim(strings.TrimSpace(title), `"`)
	if title == "" {
		return titleFromMessage(message)
	}
	if runes := []rune(title); len(runes) > titleMaxLength {
		title = string(runes[:titleMaxLength-3]) + "..."
	}
	return title
}

func expertiseOf(a *agent.Agent) string {
	if a.TopicExpertise == "" {
		return "general knowledge"
	}
	return a.TopicExpertise
}
