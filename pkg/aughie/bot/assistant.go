// Package bot wires the conversation core together: state loading and
// repair, intent detection, permission-gated workflow execution, and
// the LLM fallback for plain conversation. One Assistant serves many
// sessions; turns within a session are serialized, sessions run
// independently.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jholhewres/aughie/pkg/aughie/access"
	"github.com/jholhewres/aughie/pkg/aughie/config"
	"github.com/jholhewres/aughie/pkg/aughie/state"
	"github.com/jholhewres/aughie/pkg/aughie/storage"
	"github.com/jholhewres/aughie/pkg/aughie/workflow"
)

// Completion is one generated reply plus the token usage the provider
// reported for it.
type Completion struct {
	Text       string
	TokensUsed int64
}

// LLM generates a conversational reply from a message history. It is
// consumed only for turns that match no workflow intent.
type LLM interface {
	Generate(ctx context.Context, history []state.HistoryRecord) (Completion, error)
}

// historyWindow bounds how much history the LLM sees per turn.
const historyWindow = 30

// workflowPermissions maps each workflow type to the permission its
// execution requires.
var workflowPermissions = map[string]access.Permission{
	workflow.TypeRepoJiraComparison: access.GitHubReadRepo,
	workflow.TypeListGitHubRepos:    access.GitHubReadRepo,
	workflow.TypeListJiraTickets:    access.JiraReadIssues,
	workflow.TypeCodeTicketAnalysis: access.GreptileSearchCodebase,
	workflow.TypeSearchCodebase:     access.GreptileSearchCodebase,
	workflow.TypeWebSearch:          access.PerplexitySearchWeb,
	workflow.TypeCreateJiraStory:    access.JiraCreateIssue,
}

// session pairs a loaded state with its turn lock and dirty flag.
type session struct {
	mu    sync.Mutex
	st    *state.State
	dirty bool
}

// Assistant is the conversation loop. It owns the session cache and
// delegates to the orchestrator, the permission manager, and the LLM.
type Assistant struct {
	cfg    *config.Config
	store  storage.Store
	llm    LLM
	orch   *workflow.Orchestrator
	perms  *access.Manager
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	users    map[string]*access.User
	emails   map[string]string
}

// NewAssistant builds an assistant. store may be nil for purely
// ephemeral sessions; llm may be nil, in which case non-workflow turns
// get a fixed notice instead of a generated reply.
func NewAssistant(cfg *config.Config, store storage.Store, executor workflow.ToolExecutor, llm LLM, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		cfg:      cfg,
		store:    store,
		llm:      llm,
		orch:     workflow.NewOrchestrator(executor, cfg.FallbackEmail, logger),
		perms:    access.NewManager(cfg.Security.RBACEnabled, logger),
		logger:   logger.With("component", "bot"),
		sessions: make(map[string]*session),
		users:    make(map[string]*access.User),
		emails:   make(map[string]string),
	}
}

// RegisterUser records a user's role and email for permission checks
// and {user_email} injection.
func (a *Assistant) RegisterUser(id, email string, role access.Role) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[id] = &access.User{ID: id, Role: role}
	a.emails[id] = email
}

// HandleMessage processes one user turn to completion: load and repair
// the session state, append the message, run a workflow when the text
// matches an intent the user may execute, otherwise fall back to the
// LLM. The reply is recorded in the state and the state checkpointed.
func (a *Assistant) HandleMessage(ctx context.Context, sessionID, userID, text string) (string, error) {
	sess, err := a.session(sessionID)
	if err != nil {
		return "", err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	start := time.Now()

	st := sess.st
	st.ResetTurnState()
	a.stampUser(st, userID)
	st.AddMessage(state.RoleUser, text)

	reply := a.respond(ctx, st, userID, text)

	st.AddMessage(state.RoleModel, reply)
	st.RecordTurnDuration(time.Since(start).Milliseconds())
	sess.dirty = true
	a.checkpoint(sessionID, sess)
	return reply, nil
}

func (a *Assistant) respond(ctx context.Context, st *state.State, userID, text string) string {
	wfType := workflow.DetectIntent(text)
	if wfType == "" {
		return a.converse(ctx, st)
	}

	user := a.user(userID)
	if required, ok := workflowPermissions[wfType]; ok && !a.perms.HasPermission(user, required) {
		a.logger.Info("workflow denied", "type", wfType, "user", userID)
		return "⛔ You don't have permission to run that. Ask an admin if you think you should."
	}

	wf := st.StartWorkflow(wfType)
	res, err := a.orch.ExecuteWorkflow(ctx, wfType, st, nil)
	if err != nil {
		// Registry and detector disagree only on a programming error.
		a.logger.Error("workflow dispatch failed", "type", wfType, "err", err)
		st.EndWorkflow(wf.WorkflowID, state.WorkflowFailed)
		return "Something went wrong starting that workflow."
	}

	endStatus := state.WorkflowCompleted
	if !res.Success {
		endStatus = state.WorkflowFailed
	}
	st.EndWorkflow(wf.WorkflowID, endStatus)

	for _, stepID := range res.StepsExecuted {
		sr := res.Results[stepID]
		st.AddScratchpadEntry(state.ScratchpadEntry{
			ToolName: sr.ToolName,
			Summary:  fmt.Sprintf("%s: success=%t", stepID, sr.Success),
		})
	}
	return res.Synthesis
}

func (a *Assistant) converse(ctx context.Context, st *state.State) string {
	if a.llm == nil {
		return "I can list your repos and tickets, search code and the web, and create Jira stories. What do you need?"
	}
	start := time.Now()
	comp, err := a.llm.Generate(ctx, st.MessageHistory(historyWindow))
	st.RecordLLMCall(time.Since(start).Milliseconds(), comp.TokensUsed)
	if err != nil {
		a.logger.Error("llm generation failed", "err", err)
		return "I couldn't generate a response just now. Please try again."
	}
	return comp.Text
}

// session returns the cached session, loading it from the store (via
// migration and repair) or creating a fresh state when nothing usable
// is stored.
func (a *Assistant) session(sessionID string) (*session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if sess, ok := a.sessions[sessionID]; ok {
		return sess, nil
	}

	st := a.loadState(sessionID)
	sess := &session{st: st}
	a.sessions[sessionID] = sess
	return sess, nil
}

func (a *Assistant) loadState(sessionID string) *state.State {
	if a.store != nil {
		stored, err := a.store.Read([]string{sessionID})
		if err != nil {
			a.logger.Error("state read failed, starting fresh", "session", sessionID, "err", err)
		} else if raw, ok := stored[sessionID]; ok {
			st := state.MigrateWithLogger(raw, a.logger)
			if valid, repairs := state.ValidateAndRepair(st); !valid {
				a.logger.Warn("state repaired on load", "session", sessionID, "repairs", len(repairs))
			}
			st.SetLogger(a.logger)
			return st
		}
	}

	st := state.NewWithSessionID(sessionID)
	st.SetLogger(a.logger)
	return st
}

func (a *Assistant) stampUser(st *state.State, userID string) {
	st.CurrentUserID = userID
	if userID == "" {
		return
	}
	user := a.user(userID)
	role := access.RoleDefault
	if user != nil {
		role = user.Role
	}
	st.CurrentUser = &state.UserRef{
		ID:    userID,
		Email: a.email(userID),
		Role:  string(role),
	}
}

func (a *Assistant) user(userID string) *access.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	if u, ok := a.users[userID]; ok {
		return u
	}
	if userID == "" {
		return nil
	}
	// Unregistered callers get the DEFAULT tier rather than silence.
	return &access.User{ID: userID, Role: access.RoleDefault}
}

func (a *Assistant) email(userID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.emails[userID]
}

// checkpoint writes one session through to the store. Failures are
// logged, never surfaced; the periodic checkpointer retries later.
func (a *Assistant) checkpoint(sessionID string, sess *session) {
	if a.store == nil {
		return
	}
	payload, err := json.Marshal(sess.st)
	if err != nil {
		a.logger.Error("state serialization failed", "session", sessionID, "err", err)
		return
	}
	if err := a.store.Write(map[string][]byte{sessionID: payload}); err != nil {
		a.logger.Error("state checkpoint failed", "session", sessionID, "err", err)
		return
	}
	sess.dirty = false
}

// Snapshot serializes every dirty session, for the periodic
// checkpointer. Sessions mid-turn are skipped this round rather than
// blocked on.
func (a *Assistant) Snapshot() (map[string][]byte, error) {
	a.mu.Lock()
	sessions := make(map[string]*session, len(a.sessions))
	for id, sess := range a.sessions {
		sessions[id] = sess
	}
	a.mu.Unlock()

	out := make(map[string][]byte)
	for id, sess := range sessions {
		if !sess.mu.TryLock() {
			continue
		}
		if sess.dirty {
			if payload, err := json.Marshal(sess.st); err == nil {
				out[id] = payload
				sess.dirty = false
			}
		}
		sess.mu.Unlock()
	}
	return out, nil
}

// ClearSession wipes a session's conversation while keeping its
// identity, and checkpoints the cleared state.
func (a *Assistant) ClearSession(sessionID string) error {
	sess, err := a.session(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.st.ClearChat()
	sess.dirty = true
	a.checkpoint(sessionID, sess)
	return nil
}
