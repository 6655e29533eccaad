package votingengine

import (
	"log/slog"
	"time"

	httpadapter "animevote/contexts/anime-voting/voting-engine/adapters/http"
	"animevote/contexts/anime-voting/voting-engine/adapters/memory"
	"animevote/contexts/anime-voting/voting-engine/application/commands"
	"animevote/contexts/anime-voting/voting-engine/application/queries"
	"animevote/contexts/anime-voting/voting-engine/application/workers"
	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	"animevote/contexts/anime-voting/voting-engine/ports"

	"golang.org/x/sync/singleflight"
)

type Module struct {
	Handler httpadapter.Handler
	Relay   workers.OutboxRelay
	Store   *memory.Store
}

type Dependencies struct {
	Sessions    ports.SessionRepository
	Votes       ports.VoteLedger
	Idempotency ports.IdempotencyStore
	Outbox      ports.OutboxRepository
	Publisher   ports.EventPublisher
	Catalog     ports.CatalogSearcher
	Metrics     ports.Metrics
	Clock       ports.Clock
	IDGen       ports.IDGenerator

	EnforceSessionItems bool
	IdempotencyTTL      time.Duration
	OutboxBatchSize     int
	Logger              *slog.Logger
}

func NewModule(deps Dependencies) Module {
	var outbox ports.OutboxWriter
	if deps.Outbox != nil {
		outbox = deps.Outbox
	}
	sessionUseCase := commands.SessionUseCase{
		Sessions:       deps.Sessions,
		Idempotency:    deps.Idempotency,
		Outbox:         outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		Metrics:        deps.Metrics,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	voteUseCase := commands.VoteUseCase{
		Sessions:            deps.Sessions,
		Votes:               deps.Votes,
		Outbox:              outbox,
		Clock:               deps.Clock,
		IDGen:               deps.IDGen,
		Metrics:             deps.Metrics,
		EnforceSessionItems: deps.EnforceSessionItems,
		Logger:              deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Sessions: sessionUseCase,
			Votes:    voteUseCase,
			SessionQueries: queries.SessionQueries{
				Sessions: deps.Sessions,
				Logger:   deps.Logger,
			},
			Stats: queries.StatsUseCase{
				Sessions: deps.Sessions,
				Votes:    deps.Votes,
				Metrics:  deps.Metrics,
				Flights:  &singleflight.Group{},
				Logger:   deps.Logger,
			},
			Users: queries.UserQueries{
				Sessions: deps.Sessions,
				Votes:    deps.Votes,
			},
			Catalog: queries.CatalogQueries{
				Catalog: deps.Catalog,
				Logger:  deps.Logger,
			},
			Logger: deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.OutboxBatchSize,
			Logger:    deps.Logger,
		},
	}
}

// NewInMemoryModule wires every port to one memory store. Catalog, Metrics
// and Publisher stay unset.
func NewInMemoryModule(seed []entities.Session, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Sessions:            store,
		Votes:               store,
		Idempotency:         store,
		Outbox:              store,
		Clock:               store,
		IDGen:               store,
		EnforceSessionItems: true,
		IdempotencyTTL:      7 * 24 * time.Hour,
		Logger:              logger,
	})
	module.Store = store
	return module
}
