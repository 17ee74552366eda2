// Package server assembles services from whichever backends are configured
// and mounts them on a gin engine.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sitework/sitework/handlers"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/approval"
	"github.com/sitework/sitework/internal/cache"
	"github.com/sitework/sitework/internal/cleanup"
	"github.com/sitework/sitework/internal/config"
	"github.com/sitework/sitework/internal/crud"
	"github.com/sitework/sitework/internal/database"
	"github.com/sitework/sitework/internal/documents"
	"github.com/sitework/sitework/internal/files"
	"github.com/sitework/sitework/internal/models"
	"github.com/sitework/sitework/internal/notifications"
	"github.com/sitework/sitework/internal/postgres"
	"github.com/sitework/sitework/internal/profiles"
	"github.com/sitework/sitework/internal/reports"
	"github.com/sitework/sitework/internal/sessions"
	"github.com/sitework/sitework/internal/storage"
	"github.com/sitework/sitework/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
)

// Backends holds the connected external stores. Any of them may be nil, in
// which case the in-memory implementation is used for that concern.
type Backends struct {
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	Mongo    *mongo.Database
	Objects  storage.ObjectStore
}

// Services is everything the HTTP layer and the cleanup jobs need.
type Services struct {
	Profiles      *profiles.Service
	Sessions      *sessions.Service
	Blacklist     sessions.Blacklist
	Clients       *crud.Service[*models.Client]
	Suppliers     *crud.Service[*models.Supplier]
	Projects      *crud.Service[*models.Project]
	MaterialSpecs *crud.Service[*models.MaterialSpec]
	SiteReports   *crud.Service[*models.ConstructionReport]
	Approvals     *approval.Service
	Submitter     *documents.Submitter
	Notifications *notifications.Service
	Files         *files.Service
	Reports       *reports.Service
	Cleaner       *cleanup.Cleaner
	CleanupOpts   cleanup.Options
	Health        handlers.HealthFunc
	Objects       storage.ObjectStore
}

// Buckets returns the configured cleanup buckets, defaulting to the upload bucket.
func Buckets(cfg *config.Config) []string {
	if len(cfg.Cleanup.Buckets) > 0 {
		return cfg.Cleanup.Buckets
	}
	return []string{cfg.MinIO.Bucket}
}

// Build wires services over b.
func Build(ctx context.Context, cfg *config.Config, b Backends) (*Services, error) {
	s := &Services{}

	var c cache.Cache = cache.NewMemory()
	if cfg.Cache.UseRedis && b.Redis != nil {
		c = cache.NewRedis(b.Redis, "sitework:cache:")
	}
	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	if b.Redis != nil {
		s.Sessions = sessions.NewService(sessions.NewRedisRepository(b.Redis, "sitework:session:"), cfg.JWT.RefreshTokenTTL)
		s.Blacklist = sessions.NewRedisBlacklist(b.Redis)
	} else {
		logger.Warnf("redis not configured; sessions and revocations are kept in memory")
		s.Sessions = sessions.NewService(sessions.NewMemoryRepository(), cfg.JWT.RefreshTokenTTL)
		s.Blacklist = sessions.NewMemoryBlacklist()
	}

	if b.Mongo != nil {
		repo, err := notifications.NewMongoRepo(ctx, b.Mongo.Collection("notifications"))
		if err != nil {
			return nil, err
		}
		s.Notifications = notifications.NewService(repo)
	} else {
		s.Notifications = notifications.NewService(notifications.NewMemoryRepo())
	}

	s.Objects = b.Objects
	if s.Objects == nil {
		logger.Warnf("object storage not configured; uploads are kept in memory")
		s.Objects = storage.NewMemoryStore()
	}

	var (
		profileRepo profiles.Repository
		approvals   approval.Repository
		refs        interface {
			files.ReferenceStore
			cleanup.ReferenceChecker
		}
		reportStore reports.Store
		memRefs     *files.MemoryReferences
	)
	if pool := b.Postgres; pool != nil {
		profileRepo = postgres.NewProfileRepo(pool)
		s.Clients = crud.NewService[*models.Client]("clients", postgres.NewClientRepo(pool), crud.WithCache[*models.Client](c, ttl))
		s.Suppliers = crud.NewService[*models.Supplier]("suppliers", postgres.NewSupplierRepo(pool), crud.WithCache[*models.Supplier](c, ttl))
		s.Projects = crud.NewService[*models.Project]("projects", postgres.NewProjectRepo(pool), crud.WithCache[*models.Project](c, ttl))
		s.MaterialSpecs = crud.NewService[*models.MaterialSpec]("material_specs", postgres.NewMaterialSpecRepo(pool), crud.WithCache[*models.MaterialSpec](c, ttl))
		s.SiteReports = crud.NewService[*models.ConstructionReport]("construction_reports", postgres.NewConstructionReportRepo(pool), crud.WithCache[*models.ConstructionReport](c, ttl))
		approvals = postgres.NewApprovalRepo(pool)
		refs = postgres.NewFileReferences(pool)
		reportStore = postgres.NewReportStore(pool)
		s.Health = func(ctx context.Context) (*database.Health, error) { return database.CheckHealth(ctx, pool) }
	} else {
		logger.Warnf("postgres not configured; using in-memory repositories")
		profileRepo = profiles.NewMemoryRepo()
		clients := crud.NewMemoryRepo[*models.Client]("client", func(c *models.Client) string { return c.Name })
		suppliers := crud.NewMemoryRepo[*models.Supplier]("supplier", func(s *models.Supplier) string { return s.Name })
		projects := crud.NewMemoryRepo[*models.Project]("project", func(p *models.Project) string { return p.Code })
		specs := crud.NewMemoryRepo[*models.MaterialSpec]("material spec", nil)
		siteReports := crud.NewMemoryRepo[*models.ConstructionReport]("construction report", nil)
		s.Clients = crud.NewService[*models.Client]("clients", clients, crud.WithCache[*models.Client](c, ttl))
		s.Suppliers = crud.NewService[*models.Supplier]("suppliers", suppliers, crud.WithCache[*models.Supplier](c, ttl))
		s.Projects = crud.NewService[*models.Project]("projects", projects, crud.WithCache[*models.Project](c, ttl),
			crud.WithCheck(clientExists(s.Clients)))
		s.MaterialSpecs = crud.NewService[*models.MaterialSpec]("material_specs", specs, crud.WithCache[*models.MaterialSpec](c, ttl),
			crud.WithCheck(specProjectExists(s.Projects)))
		s.SiteReports = crud.NewService[*models.ConstructionReport]("construction_reports", siteReports, crud.WithCache[*models.ConstructionReport](c, ttl),
			crud.WithCheck(reportProjectExists(s.Projects)))
		mem := approval.NewMemoryRepo()
		approvals = mem
		memRefs = files.NewMemoryReferences(
			func(context.Context) ([]string, error) {
				var keys []string
				for _, m := range specs.All() {
					keys = append(keys, m.AttachmentKey)
				}
				return keys, nil
			},
			func(context.Context) ([]string, error) {
				var keys []string
				for _, r := range siteReports.All() {
					keys = append(keys, r.PhotoKeys...)
				}
				return keys, nil
			},
		)
		refs = memRefs
		reportStore = &reports.MemoryStore{Projects: projects, Suppliers: suppliers, Specs: specs, Reports: siteReports, Approvals: mem}
	}

	s.Profiles = profiles.NewService(profileRepo)
	linker := documents.NewLinker(s.MaterialSpecs, s.SiteReports)
	s.Approvals = approval.NewService(approvals, s.Notifications, linker)
	s.Submitter = documents.NewSubmitter(s.Approvals, linker)
	if memRefs != nil {
		memRefs.WithDocuments(linker)
	}
	s.Files = files.NewService(s.Objects, refs, Buckets(cfg)).WithDocuments(linker)
	s.Reports = reports.NewService(reportStore)
	s.Cleaner = cleanup.NewCleaner(s.Objects, refs)
	s.CleanupOpts = cleanup.Options{Buckets: Buckets(cfg), OlderThan: cfg.Cleanup.OlderThan, DryRun: cfg.Cleanup.DryRun}
	if b.Postgres == nil && b.Objects != nil {
		// rows that point into the store are not visible from here
		logger.Warnf("postgres not configured; cleanup of the object store only reports orphans")
		s.Cleaner.ReportOnly()
		s.CleanupOpts.DryRun = true
	}

	if cfg.Admin.Email != "" {
		p, created, err := s.Profiles.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name)
		if err != nil {
			return nil, fmt.Errorf("seed admin %s: %w", cfg.Admin.Email, err)
		}
		if created {
			logger.With(logger.Fields{"profile": p.ID, "email": p.Email}).Infof("admin profile created")
		}
	}
	return s, nil
}

// The memory backend has no foreign keys; these checks stand in for them.

func clientExists(clients *crud.Service[*models.Client]) crud.CheckFunc[*models.Project] {
	return func(ctx context.Context, _, next *models.Project) error {
		return mustExist(ctx, clients, next.ClientID, "clientId")
	}
}

func specProjectExists(projects *crud.Service[*models.Project]) crud.CheckFunc[*models.MaterialSpec] {
	return func(ctx context.Context, _, next *models.MaterialSpec) error {
		return mustExist(ctx, projects, next.ProjectID, "projectId")
	}
}

func reportProjectExists(projects *crud.Service[*models.Project]) crud.CheckFunc[*models.ConstructionReport] {
	return func(ctx context.Context, _, next *models.ConstructionReport) error {
		return mustExist(ctx, projects, next.ProjectID, "projectId")
	}
}

func mustExist[T crud.Entity](ctx context.Context, svc *crud.Service[T], id, field string) error {
	if _, err := svc.Get(ctx, id); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.Field(field, "does not exist")
		}
		return err
	}
	return nil
}
