package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/davidbz/starray/internal/observability"
)

// Conversation folds routed turns into a session and persists it.
type Conversation struct {
	analyst *AnalystService
	store   SessionStore
	session *Session
	events  EventPublisher
}

// NewConversation binds a session to the services that drive it.
// events may be nil.
func NewConversation(
	analyst *AnalystService,
	store SessionStore,
	session *Session,
	events EventPublisher,
) (*Conversation, error) {
	if analyst == nil {
		return nil, errors.New("analyst service cannot be nil")
	}
	if store == nil {
		return nil, errors.New("session store cannot be nil")
	}
	if session == nil {
		return nil, errors.New("session cannot be nil")
	}

	return &Conversation{
		analyst: analyst,
		store:   store,
		session: session,
		events:  events,
	}, nil
}

// Session returns the session being driven.
func (c *Conversation) Session() *Session {
	return c.session
}

// RouteSummary describes the routing orders used for each turn.
func (c *Conversation) RouteSummary() string {
	return c.analyst.RouteSummary()
}

// Turn routes userText, records both sides of the exchange and persists the session.
// Blank input is ignored and yields a nil response. A turn interrupted by ctx is
// not recorded and returns the context error.
func (c *Conversation) Turn(ctx context.Context, userText string) (*RoutedResponse, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, nil
	}

	ctx = observability.WithSessionID(ctx, c.session.ID)

	response := c.analyst.Respond(ctx, userText)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.session.Append(RoleUser, userText)
	c.session.Append(RoleAnalyst, response.Content)

	c.publish(ctx, "user", map[string]any{"text": userText})
	c.publish(ctx, "route", map[string]any{
		"provider": response.Provider,
		"model":    response.Model,
		"fallback": response.FallbackUsed,
		"failures": len(response.Attempts),
	})
	c.publish(ctx, "analyst", map[string]any{"text": response.Content})

	if err := c.Flush(ctx); err != nil {
		return response, err
	}

	return response, nil
}

// Flush persists the current session state.
func (c *Conversation) Flush(ctx context.Context) error {
	location, err := c.store.Save(ctx, c.session)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", c.session.ID, err)
	}

	observability.FromContext(ctx).Debug("session saved",
		zap.String("session_id", c.session.ID),
		zap.String("location", location))

	return nil
}

func (c *Conversation) publish(ctx context.Context, event string, data map[string]any) {
	if c.events == nil {
		return
	}
	c.events.Publish(ctx, event, data)
}
