package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "animevote/contexts/anime-voting/voting-engine/application"
	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	domainerrors "animevote/contexts/anime-voting/voting-engine/domain/errors"
	"animevote/contexts/anime-voting/voting-engine/domain/services"
	"animevote/contexts/anime-voting/voting-engine/ports"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
)

var validate = validator.New()

const (
	pendingReplayAttempts = 50
	pendingReplayInterval = 10 * time.Millisecond
)

// CreateSessionCommand carries optional flags as pointers so an omitted flag
// takes the session default rather than false.
type CreateSessionCommand struct {
	MasterID           string `validate:"required"`
	Title              string `validate:"required,max=100"`
	Description        string `validate:"max=1000"`
	IsPublic           *bool
	AllowMultipleVotes *bool
	MaxVotesPerUser    int `validate:"gte=0"`
	IdempotencyKey     string
}

type CreateSessionResult struct {
	Session  entities.Session
	Replayed bool
}

type AddItemCommand struct {
	SessionID string
	ActorID   string
	ActorRole entities.Role
	ItemID    string
}

// SessionUseCase owns session creation and item list growth.
type SessionUseCase struct {
	Sessions       ports.SessionRepository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Metrics        ports.Metrics
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// CreateSession validates and stores a new session owned by cmd.MasterID.
// With an idempotency key, a repeated identical request returns the session
// created the first time.
func (uc SessionUseCase) CreateSession(ctx context.Context, cmd CreateSessionCommand) (result CreateSessionResult, err error) {
	ctx, span := application.StartSpan(ctx, "SessionUseCase.CreateSession",
		attribute.String("master_id", strings.TrimSpace(cmd.MasterID)),
	)
	defer func() {
		uc.observe("create_session", err)
		application.EndSpan(span, err)
	}()

	logger := application.ResolveLogger(uc.Logger)
	cmd.MasterID = strings.TrimSpace(cmd.MasterID)
	cmd.Title = strings.TrimSpace(cmd.Title)
	cmd.Description = strings.TrimSpace(cmd.Description)
	cmd.IdempotencyKey = strings.TrimSpace(cmd.IdempotencyKey)
	logger.Info("session create processing started",
		"event", "voting_session_create_started",
		"module", application.ModuleName,
		"layer", "application",
		"master_id", cmd.MasterID,
	)
	if err := validate.Struct(cmd); err != nil {
		logger.Warn("session create validation failed",
			"event", "voting_session_create_validation_failed",
			"module", application.ModuleName,
			"layer", "application",
			"master_id", cmd.MasterID,
			"error", err.Error(),
		)
		if cmd.MasterID == "" {
			return CreateSessionResult{}, domainerrors.ErrInvalidActor
		}
		return CreateSessionResult{}, errors.Join(domainerrors.ErrInvalidSessionInput, err)
	}

	now := uc.now()
	requestHash := hashCreateSessionCommand(cmd)
	idempotent := cmd.IdempotencyKey != "" && uc.Idempotency != nil
	if idempotent {
		record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now)
		if err != nil {
			logger.Error("session create idempotency lookup failed",
				"event", "voting_session_create_idempotency_lookup_failed",
				"module", application.ModuleName,
				"layer", "application",
				"master_id", cmd.MasterID,
				"error", err.Error(),
			)
			return CreateSessionResult{}, err
		}
		if found {
			return uc.replay(ctx, record, requestHash)
		}
	}

	sessionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CreateSessionResult{}, err
	}
	if idempotent {
		record, reserved, err := uc.Idempotency.Reserve(ctx, ports.IdempotencyRecord{
			Key:         cmd.IdempotencyKey,
			RequestHash: requestHash,
			SessionID:   sessionID,
			ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
		}, now)
		if err != nil {
			return CreateSessionResult{}, err
		}
		if !reserved {
			return uc.replay(ctx, record, requestHash)
		}
	}

	session := entities.Session{
		SessionID:          sessionID,
		Title:              cmd.Title,
		Description:        cmd.Description,
		MasterID:           cmd.MasterID,
		IsPublic:           boolOrDefault(cmd.IsPublic, true),
		AllowMultipleVotes: boolOrDefault(cmd.AllowMultipleVotes, true),
		MaxVotesPerUser:    cmd.MaxVotesPerUser,
		Items:              []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if session.MaxVotesPerUser == 0 {
		session.MaxVotesPerUser = entities.DefaultMaxVotesPerUser
	}
	if err := uc.Sessions.CreateSession(ctx, session); err != nil {
		if idempotent {
			uc.release(ctx, cmd.IdempotencyKey)
		}
		return CreateSessionResult{}, err
	}
	appendEvent(ctx, uc.Outbox, uc.IDGen, uc.Logger, EventSessionCreated, session.SessionID, now, map[string]any{
		"session_id":           session.SessionID,
		"master_id":            session.MasterID,
		"title":                session.Title,
		"is_public":            session.IsPublic,
		"allow_multiple_votes": session.AllowMultipleVotes,
		"max_votes_per_user":   session.MaxVotesPerUser,
	})

	logger.Info("session created",
		"event", "voting_session_created",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", session.SessionID,
		"master_id", session.MasterID,
		"is_public", session.IsPublic,
		"max_votes_per_user", session.MaxVotesPerUser,
	)
	return CreateSessionResult{Session: session}, nil
}

// AddItem appends an external item to the session. Only the session master or
// an admin may do so.
func (uc SessionUseCase) AddItem(ctx context.Context, cmd AddItemCommand) (session entities.Session, err error) {
	ctx, span := application.StartSpan(ctx, "SessionUseCase.AddItem",
		attribute.String("session_id", strings.TrimSpace(cmd.SessionID)),
		attribute.String("actor_id", strings.TrimSpace(cmd.ActorID)),
	)
	defer func() {
		uc.observe("add_item", err)
		application.EndSpan(span, err)
	}()

	logger := application.ResolveLogger(uc.Logger)
	sessionID := strings.TrimSpace(cmd.SessionID)
	actorID := strings.TrimSpace(cmd.ActorID)
	itemID := entities.NormalizeItemID(cmd.ItemID)
	logger.Info("session item add processing started",
		"event", "voting_session_item_add_started",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", sessionID,
		"actor_id", actorID,
		"item_id", itemID,
	)
	if actorID == "" {
		return entities.Session{}, domainerrors.ErrInvalidActor
	}
	if itemID == "" {
		return entities.Session{}, domainerrors.ErrInvalidItemID
	}

	current, err := uc.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return entities.Session{}, err
	}
	if !services.Authorize(cmd.ActorRole, actorID, current.MasterID, entities.RoleAdmin) {
		logger.Warn("session item add forbidden",
			"event", "voting_session_item_add_forbidden",
			"module", application.ModuleName,
			"layer", "application",
			"session_id", sessionID,
			"actor_id", actorID,
			"actor_role", string(cmd.ActorRole),
		)
		return entities.Session{}, domainerrors.ErrForbiddenAction
	}

	now := uc.now()
	session, err = uc.Sessions.AppendSessionItem(ctx, sessionID, itemID, now)
	if err != nil {
		if errors.Is(err, domainerrors.ErrItemAlreadyPresent) {
			logger.Warn("session item already present",
				"event", "voting_session_item_duplicate",
				"module", application.ModuleName,
				"layer", "application",
				"session_id", sessionID,
				"item_id", itemID,
			)
		}
		return entities.Session{}, err
	}
	appendEvent(ctx, uc.Outbox, uc.IDGen, uc.Logger, EventSessionItemAdded, sessionID, now, map[string]any{
		"session_id": sessionID,
		"item_id":    itemID,
		"actor_id":   actorID,
		"position":   len(session.Items) - 1,
	})

	logger.Info("session item added",
		"event", "voting_session_item_added",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", sessionID,
		"item_id", itemID,
		"item_count", len(session.Items),
	)
	return session, nil
}

// replay answers a request whose key is already held. A holder still writing
// its session is polled until the session appears.
func (uc SessionUseCase) replay(ctx context.Context, record ports.IdempotencyRecord, requestHash string) (CreateSessionResult, error) {
	if record.RequestHash != requestHash {
		return CreateSessionResult{}, domainerrors.ErrIdempotencyConflict
	}
	session, err := uc.awaitSession(ctx, record.SessionID)
	if err != nil {
		return CreateSessionResult{}, err
	}
	application.ResolveLogger(uc.Logger).Info("session create replayed",
		"event", "voting_session_create_replayed",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", session.SessionID,
		"master_id", session.MasterID,
	)
	return CreateSessionResult{Session: session, Replayed: true}, nil
}

func (uc SessionUseCase) awaitSession(ctx context.Context, sessionID string) (entities.Session, error) {
	for attempt := 0; ; attempt++ {
		session, err := uc.Sessions.GetSession(ctx, sessionID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, domainerrors.ErrSessionNotFound) {
			return entities.Session{}, err
		}
		if attempt >= pendingReplayAttempts {
			return entities.Session{}, domainerrors.ErrIdempotencyInProgress
		}
		timer := time.NewTimer(pendingReplayInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return entities.Session{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (uc SessionUseCase) release(ctx context.Context, key string) {
	if err := uc.Idempotency.Release(context.WithoutCancel(ctx), key); err != nil {
		application.ResolveLogger(uc.Logger).Error("session create idempotency release failed",
			"event", "voting_session_create_idempotency_release_failed",
			"module", application.ModuleName,
			"layer", "application",
			"idempotency_key", key,
			"error", err.Error(),
		)
	}
}

func (uc SessionUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func (uc SessionUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func (uc SessionUseCase) observe(operation string, err error) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.ObserveSessionOperation(operation, operationStatus(err))
}

func operationStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domainerrors.ErrValidation):
		return "invalid"
	case errors.Is(err, domainerrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, domainerrors.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domainerrors.ErrConflict):
		return "conflict"
	case errors.Is(err, domainerrors.ErrLimitExceeded):
		return "limit_exceeded"
	default:
		return "error"
	}
}

func boolOrDefault(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func hashCreateSessionCommand(cmd CreateSessionCommand) string {
	payload := map[string]any{
		"master_id":            cmd.MasterID,
		"title":                cmd.Title,
		"description":          cmd.Description,
		"is_public":            boolOrDefault(cmd.IsPublic, true),
		"allow_multiple_votes": boolOrDefault(cmd.AllowMultipleVotes, true),
		"max_votes_per_user":   cmd.MaxVotesPerUser,
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
