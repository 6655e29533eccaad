package queries

import (
	"context"
	"log/slog"
	"strings"

	application "animevote/contexts/anime-voting/voting-engine/application"
	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	domainerrors "animevote/contexts/anime-voting/voting-engine/domain/errors"
	"animevote/contexts/anime-voting/voting-engine/domain/services"
	"animevote/contexts/anime-voting/voting-engine/ports"
)

type SessionQueries struct {
	Sessions ports.SessionRepository
	Logger   *slog.Logger
}

// ViewSession returns a session detail. Private sessions are only visible to
// their master and to admins.
func (q SessionQueries) ViewSession(ctx context.Context, sessionID string, actor entities.Actor) (entities.Session, error) {
	session, err := q.Sessions.GetSession(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return entities.Session{}, err
	}
	if !session.VisibleTo(actor) {
		application.ResolveLogger(q.Logger).Warn("private session view refused",
			"event", "voting_session_view_forbidden",
			"module", application.ModuleName,
			"layer", "application",
			"session_id", session.SessionID,
			"actor_id", actor.UserID,
		)
		return entities.Session{}, domainerrors.ErrSessionNotPublic
	}
	return session, nil
}

func (q SessionQueries) ListPublic(ctx context.Context) ([]entities.Session, error) {
	return q.Sessions.ListPublicSessions(ctx)
}

func (q SessionQueries) ListByMaster(ctx context.Context, actor entities.Actor) ([]entities.Session, error) {
	if !actor.Authenticated() {
		return nil, domainerrors.ErrInvalidActor
	}
	return q.Sessions.ListSessionsByMaster(ctx, strings.TrimSpace(actor.UserID))
}

// ListAll returns every session, public or not, and is reserved for admins.
func (q SessionQueries) ListAll(ctx context.Context, actor entities.Actor) ([]entities.Session, error) {
	if !actor.Authenticated() {
		return nil, domainerrors.ErrInvalidActor
	}
	if !services.Authorize(actor.Role, actor.UserID, "", entities.RoleAdmin) {
		return nil, domainerrors.ErrAdminRequired
	}
	return q.Sessions.ListSessions(ctx)
}
