package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/asoforge/asoforge/internal/logging"
	"github.com/asoforge/asoforge/internal/routing"
	"github.com/asoforge/asoforge/modules/ruleset/domain/ports"
	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
	"github.com/asoforge/asoforge/modules/ruleset/infrastructure/persistence"
	"github.com/asoforge/asoforge/modules/ruleset/services"
)

type invalidationPublisher interface {
	PublishInvalidation(scope types.Scope)
}

// Dependencies is the wired collaborator set the API handlers close
// over. WriteStore and Bus may be nil (overrides disabled, single
// instance); handlers degrade per endpoint.
type Dependencies struct {
	Log        *zap.Logger
	Resolver   *services.Resolver
	WriteStore ports.OverrideWriteStore
	Guard      *services.Guard
	Bus        invalidationPublisher
}

type HandlerOptions struct {
	Store         ports.OverrideStore
	WriteStore    ports.OverrideWriteStore
	Resolver      *services.Resolver
	Guard         *services.Guard
	Authorizer    authorizer
	Organizations OrganizationResolver
	Bus           invalidationPublisher
	Log           *zap.Logger
}

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	log := opts.Log
	if log == nil {
		l, err := logging.New(os.Getenv("LOG_LEVEL"))
		if err != nil {
			return nil, err
		}
		log = l
	}

	enabled := overridesEnabledFromEnv()

	store := opts.Store
	writeStore := opts.WriteStore
	if enabled && (store == nil || writeStore == nil) {
		pool, err := pgxpool.New(context.Background(), dbDSNFromEnv())
		if err != nil {
			return nil, err
		}
		pg := persistence.NewOverridePGStore(pool)
		if store == nil {
			store = pg
		}
		if writeStore == nil {
			writeStore = pg
		}
	}

	resolver := opts.Resolver
	if resolver == nil {
		r, err := services.NewResolver(services.ResolverOptions{
			Store:            store,
			Log:              log.Named("resolver"),
			OverridesEnabled: enabled,
		})
		if err != nil {
			return nil, err
		}
		resolver = r
	}

	guard := opts.Guard
	if guard == nil {
		g, err := loadGuard()
		if err != nil {
			return nil, err
		}
		guard = g
	}

	auth := opts.Authorizer
	if auth == nil {
		a, err := loadAuthorizer()
		if err != nil {
			return nil, err
		}
		auth = a
	}

	orgs := opts.Organizations
	if orgs == nil {
		m, err := loadOrganizations()
		if err != nil {
			return nil, err
		}
		orgs = staticOrganizationResolver{orgs: m}
	}

	bus := opts.Bus
	if bus == nil {
		b, err := NewInvalidationBusFromEnv(resolver, log.Named("invalidation"))
		if err != nil {
			return nil, err
		}
		if b != nil {
			go b.Run(context.Background())
			bus = b
		}
	}

	deps := &Dependencies{
		Log:        log,
		Resolver:   resolver,
		WriteStore: writeStore,
		Guard:      guard,
		Bus:        bus,
	}

	router := routing.NewRouter()

	router.HandleFunc(http.MethodGet, "/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	router.HandleFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	router.Handle(http.MethodGet, "/metrics", newMetricsHandler(resolver))

	router.HandleFunc(http.MethodPost, "/api/v1/overrides", func(w http.ResponseWriter, r *http.Request) {
		handleOverrideSubmitAPI(w, r, deps)
	})
	router.HandleFunc(http.MethodGet, "/api/v1/overrides", func(w http.ResponseWriter, r *http.Request) {
		handleOverrideListAPI(w, r, deps)
	})
	router.HandleFunc(http.MethodPost, "/api/v1/overrides/disable", func(w http.ResponseWriter, r *http.Request) {
		handleOverrideDisableAPI(w, r, deps)
	})
	router.HandleFunc(http.MethodPost, "/api/v1/audit/score", func(w http.ResponseWriter, r *http.Request) {
		handleAuditScoreAPI(w, r, deps)
	})
	router.HandleFunc(http.MethodGet, "/api/v1/catalog", handleCatalogAPI)
	router.HandleFunc(http.MethodPost, "/api/v1/cache/invalidate", func(w http.ResponseWriter, r *http.Request) {
		handleCacheInvalidateAPI(w, r, deps)
	})
	router.HandleFunc(http.MethodGet, "/api/v1/cache/stats", func(w http.ResponseWriter, r *http.Request) {
		handleCacheStatsAPI(w, r, deps)
	})

	return withOrganizationContext(orgs, withAuthz(auth, router)), nil
}

func MustNewHandler() http.Handler {
	h, err := NewHandler()
	if err != nil {
		panic(errors.New("server: failed to build handler: " + err.Error()))
	}
	return h
}

// overridesEnabledFromEnv reads the persisted-overrides toggle. Off
// means every request resolves against the compiled-in base ruleset and
// no database connection is made.
func overridesEnabledFromEnv() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("RULESET_OVERRIDES_ENABLED")))
	switch v {
	case "0", "false", "off", "no":
		return false
	default:
		return true
	}
}
