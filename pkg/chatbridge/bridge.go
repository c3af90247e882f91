// Package chatbridge implements the chat-bridge façade: inbound slash
// commands, the two-step name/prompt state machine that creates a new
// project, and outbound status/approval messages.
//
// Inbound message handling and outbound notifications are no-ops when
// the bridge itself is unconfigured (no single pre-authorised chat id
// set) — a Bridge with no configured chat id is still a valid, inert
// value, the same discipline an optional notification service follows.
// Approve and Reject act on the Approval Oracle whether or not a chat id
// is configured.
package chatbridge

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ralph-build/orchestrator/pkg/approval"
	"github.com/ralph-build/orchestrator/pkg/store"
)

// Sender delivers outbound text to the single pre-authorised chat.
type Sender interface {
	Send(chatID, text string) error
}

// ProjectCreator is invoked once the two-step name/prompt state machine
// has both values — registry.createNewProject generalised to an
// interface so this package does not depend on pkg/registry.
type ProjectCreator interface {
	CreateProject(name, prompt string) (projectID string, err error)
}

type stage int

const (
	stageIdle stage = iota
	stageAwaitingName
	stageAwaitingPrompt
)

// pendingNew tracks the in-progress /new state machine.
type pendingNew struct {
	stage stage
	name  string
}

// Bridge is the chat-bridge façade. Only a single pre-authorised chat id
// is honoured; messages from any other id are ignored.
type Bridge struct {
	allowedChatID string
	sender        Sender
	store         *store.Store
	creator       ProjectCreator
	oracle        *approval.Oracle
	log           *slog.Logger

	mu             sync.Mutex
	pending        pendingNew
	currentProject string
}

// New returns a Bridge honouring only allowedChatID. If allowedChatID is
// empty the bridge is considered unconfigured and every inbound command
// is ignored.
func New(allowedChatID string, sender Sender, st *store.Store, creator ProjectCreator, oracle *approval.Oracle) *Bridge {
	return &Bridge{
		allowedChatID: allowedChatID,
		sender:        sender,
		store:         st,
		creator:       creator,
		oracle:        oracle,
		log:           slog.Default().With("component", "chatbridge"),
	}
}

// Configured reports whether a chat id has been authorised.
func (b *Bridge) Configured() bool { return b.allowedChatID != "" }

// HandleMessage processes one inbound message from chatID. Messages from
// any chat id other than the authorised one are silently ignored.
func (b *Bridge) HandleMessage(chatID, text string) {
	if !b.Configured() || chatID != b.allowedChatID {
		if b.Configured() {
			b.log.Warn("ignoring message from unauthorised chat", "chat_id", chatID)
		}
		return
	}

	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		b.handleCommand(chatID, text)
		return
	}
	b.handlePlainText(chatID, text)
}

func (b *Bridge) handleCommand(chatID, text string) {
	fields := strings.Fields(text)
	cmd := fields[0]
	arg := strings.TrimSpace(strings.TrimPrefix(text, cmd))

	switch cmd {
	case "/new":
		b.startNew(chatID, arg)
	case "/status":
		b.reportStatus(chatID)
	case "/current":
		b.reportCurrent(chatID)
	case "/projects":
		b.reportProjects(chatID)
	case "/help":
		b.reply(chatID, helpText)
	case "/approve", "/reject":
		approve := cmd == "/approve"
		switch {
		case !b.oracle.Resolve(approve):
			b.reply(chatID, "No approval is pending.")
		case approve:
			b.reply(chatID, "Approved.")
		default:
			b.reply(chatID, "Rejected.")
		}
	default:
		b.reply(chatID, "Unknown command. "+helpText)
	}
}

const helpText = `Commands:
/new [name] - start a new project (prompts for name/prompt if omitted)
/status - status of the current project
/current - show the current project id
/projects - list all projects
/help - this message`

func (b *Bridge) startNew(chatID, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if name == "" {
		b.pending = pendingNew{stage: stageAwaitingName}
		b.replyLocked(chatID, "What should the new project be called?")
		return
	}
	b.pending = pendingNew{stage: stageAwaitingPrompt, name: name}
	b.replyLocked(chatID, fmt.Sprintf("Got it — %s. What should it build?", name))
}

// handlePlainText feeds a non-command message into the /new state
// machine, if one is in progress.
func (b *Bridge) handlePlainText(chatID, text string) {
	b.mu.Lock()
	switch b.pending.stage {
	case stageAwaitingName:
		b.pending = pendingNew{stage: stageAwaitingPrompt, name: text}
		b.mu.Unlock()
		b.reply(chatID, "What should it build?")
		return
	case stageAwaitingPrompt:
		name := b.pending.name
		b.pending = pendingNew{}
		b.mu.Unlock()
		b.finishNew(chatID, name, text)
		return
	default:
		b.mu.Unlock()
	}
}

func (b *Bridge) finishNew(chatID, name, prompt string) {
	id, err := b.creator.CreateProject(name, prompt)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to create project %q: %v", name, err))
		return
	}
	b.mu.Lock()
	b.currentProject = id
	b.mu.Unlock()
	b.reply(chatID, fmt.Sprintf("Created project %q (%s).", name, id))
}

func (b *Bridge) reportStatus(chatID string) {
	b.mu.Lock()
	current := b.currentProject
	b.mu.Unlock()
	if current == "" {
		b.reply(chatID, "No current project. Use /new to start one.")
		return
	}
	proj, ok := b.store.GetProject(current)
	if !ok {
		b.reply(chatID, "Current project no longer exists.")
		return
	}
	b.reply(chatID, fmt.Sprintf("%s: status=%s iteration=%d", proj.ID, proj.Status, proj.Iteration))
}

func (b *Bridge) reportCurrent(chatID string) {
	b.mu.Lock()
	current := b.currentProject
	b.mu.Unlock()
	if current == "" {
		b.reply(chatID, "No current project.")
		return
	}
	b.reply(chatID, current)
}

func (b *Bridge) reportProjects(chatID string) {
	projects := b.store.GetProjects()
	if len(projects) == 0 {
		b.reply(chatID, "No projects yet.")
		return
	}
	var sb strings.Builder
	for _, p := range projects {
		fmt.Fprintf(&sb, "%s: %s\n", p.ID, p.Status)
	}
	b.reply(chatID, sb.String())
}

// NotifyStatus sends a status update to the authorised chat.
func (b *Bridge) NotifyStatus(text string) {
	if !b.Configured() {
		return
	}
	b.reply(b.allowedChatID, text)
}

// NotifyApprovalRequest sends a two-button approve/reject render. Caller
// passes the already-rendered text; the buttons themselves are a
// transport concern handled by Sender. Approve/Reject below route
// directly to the Approval Oracle.
func (b *Bridge) NotifyApprovalRequest(req approval.Request) {
	if !b.Configured() {
		return
	}
	b.reply(b.allowedChatID, fmt.Sprintf("Approval needed for %s / %s. Reply /approve or /reject.", req.Stage, req.Task))
}

// Approve resolves the single outstanding Approval Oracle request to true.
func (b *Bridge) Approve() bool { return b.oracle.Resolve(true) }

// Reject resolves the single outstanding Approval Oracle request to false.
func (b *Bridge) Reject() bool { return b.oracle.Resolve(false) }

func (b *Bridge) reply(chatID, text string) {
	if err := b.sender.Send(chatID, text); err != nil {
		b.log.Error("sending chat message failed", "error", err)
	}
}

func (b *Bridge) replyLocked(chatID, text string) {
	if err := b.sender.Send(chatID, text); err != nil {
		b.log.Error("sending chat message failed", "error", err)
	}
}
