// Package chat implements the client's conversation view: a fixed
// interval history poll with optimistic local echo of sent messages.
package chat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/kindra-app/kindra-client/pkg/logger"
	"github.com/kindra-app/kindra-client/pkg/metrics"
	"go.uber.org/zap"
)

// Message is a single chat message. Pending marks a locally echoed
// message the backend has not confirmed yet.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sent_at"`
	Pending        bool      `json:"-"`
}

// API is the slice of the HTTP client the chat layer uses
type API interface {
	Do(ctx context.Context, method, path string, body, out interface{}) error
}

// Poller keeps one conversation's history fresh by polling at a fixed
// interval. Switching conversations or cancelling the context stops
// the loop; this is the only explicit cancellation in the client.
type Poller struct {
	api      API
	interval time.Duration

	mu             sync.Mutex
	conversationID string
	messages       []Message
	pending        []Message
	cancel         context.CancelFunc
	onUpdate       func([]Message)
}

// NewPoller creates a Poller with the given poll interval
func NewPoller(apiClient API, interval time.Duration) *Poller {
	return &Poller{api: apiClient, interval: interval}
}

// OnUpdate registers a callback invoked with the full message list
// after every successful poll or send
func (p *Poller) OnUpdate(fn func([]Message)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = fn
}

// Watch starts polling the given conversation, stopping any previous
// loop first. The loop ends when ctx is cancelled or Stop is called.
func (p *Poller) Watch(ctx context.Context, conversationID string) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.conversationID = conversationID
	p.messages = nil
	p.pending = nil
	p.mu.Unlock()

	go p.loop(loopCtx, conversationID)
}

// Stop cancels the active polling loop, if any
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Messages returns the current view: confirmed history plus any
// pending local echoes
func (p *Poller) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

func (p *Poller) viewLocked() []Message {
	view := make([]Message, 0, len(p.messages)+len(p.pending))
	view = append(view, p.messages...)
	view = append(view, p.pending...)
	return view
}

// Send posts a message with an optimistic local echo. The echo shows
// immediately and is dropped either when the send fails or when a
// later poll returns the confirmed message.
func (p *Poller) Send(ctx context.Context, conversationID, senderID, body string) error {
	echo := Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		SentAt:         time.Now(),
		Pending:        true,
	}

	p.mu.Lock()
	p.pending = append(p.pending, echo)
	view := p.viewLocked()
	update := p.onUpdate
	p.mu.Unlock()
	if update != nil {
		update(view)
	}

	payload := map[string]string{"body": body}
	if err := p.api.Do(ctx, http.MethodPost, "/chats/"+conversationID+"/messages", payload, nil); err != nil {
		p.mu.Lock()
		p.pending = dropEcho(p.pending, echo)
		view = p.viewLocked()
		update = p.onUpdate
		p.mu.Unlock()
		if update != nil {
			update(view)
		}
		return err
	}
	return nil
}

func (p *Poller) loop(ctx context.Context, conversationID string) {
	// Immediate first fetch so the view isn't empty for a full interval
	p.fetch(ctx, conversationID)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetch(ctx, conversationID)
		}
	}
}

// fetch replaces the confirmed history wholesale; the last response to
// resolve wins. Pending echoes the backend now reports are dropped.
func (p *Poller) fetch(ctx context.Context, conversationID string) {
	var history []Message
	if err := p.api.Do(ctx, http.MethodGet, "/chats/"+conversationID+"/messages", nil, &history); err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.ChatPollTotal.WithLabelValues("error").Inc()
		logger.Warn("Chat history poll failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return
	}
	metrics.ChatPollTotal.WithLabelValues("success").Inc()

	p.mu.Lock()
	if p.conversationID != conversationID {
		// A stale response from a previous conversation; ignore it
		p.mu.Unlock()
		return
	}
	p.messages = history
	p.pending = confirmEchoes(p.pending, history)
	view := p.viewLocked()
	update := p.onUpdate
	p.mu.Unlock()

	if update != nil {
		update(view)
	}
}

func dropEcho(pending []Message, echo Message) []Message {
	out := pending[:0]
	for _, m := range pending {
		if m.Body == echo.Body && m.SentAt.Equal(echo.SentAt) {
			continue
		}
		out = append(out, m)
	}
	return out
}

type echoKey struct {
	sender, body string
}

// confirmEchoes removes pending echoes the confirmed history now
// contains. Matching is on sender and body together so another
// participant sending identical text cannot confirm our echo.
func confirmEchoes(pending, history []Message) []Message {
	if len(pending) == 0 {
		return pending
	}
	confirmed := make(map[echoKey]bool, len(history))
	for _, m := range history {
		confirmed[echoKey{m.SenderID, m.Body}] = true
	}
	out := pending[:0]
	for _, m := range pending {
		if confirmed[echoKey{m.SenderID, m.Body}] {
			continue
		}
		out = append(out, m)
	}
	return out
}
