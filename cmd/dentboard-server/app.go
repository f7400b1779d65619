package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dentboard/dentboard/internal/config"
	"github.com/dentboard/dentboard/internal/domain/auditevent"
	"github.com/dentboard/dentboard/internal/domain/board"
	"github.com/dentboard/dentboard/internal/domain/clinic"
	"github.com/dentboard/dentboard/internal/domain/identity"
	"github.com/dentboard/dentboard/internal/domain/scheduling"
	"github.com/dentboard/dentboard/internal/platform/availability"
	"github.com/dentboard/dentboard/internal/platform/blobstore"
	"github.com/dentboard/dentboard/internal/platform/db"
	"github.com/dentboard/dentboard/internal/platform/sandbox"
	"github.com/dentboard/dentboard/internal/platform/syncq"
	"github.com/dentboard/dentboard/internal/platform/websocket"
)

// app holds every component of the board. The server and the one-shot
// commands build it the same way.
type app struct {
	logger zerolog.Logger
	cfg    *config.Config
	pool   *pgxpool.Pool
	loc    *time.Location

	hub        *websocket.Hub
	syncQueue  *syncq.Queue
	auditQueue *syncq.Queue

	audit    *auditevent.Service
	clinic   *clinic.Service
	patients *identity.Directory
	files    *identity.FileService
	registry *scheduling.Registry
	blobs    blobstore.Store
	engine   *availability.Engine
	source   *board.Source
	builder  *board.Builder
	seeder   *sandbox.Seeder
}

// newApp wires the components. pool may be nil: the board then runs in
// local mode on memory repositories and emits no audit entries.
func newApp(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*app, error) {
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	a := &app{
		logger: logger,
		cfg:    cfg,
		pool:   pool,
		loc:    loc,
		hub:    websocket.NewHub(logger),
		// Audit inserts get their own worker so they never delay board writes.
		syncQueue:  syncq.New(logger.With().Str("queue", "sync").Logger()),
		auditQueue: syncq.New(logger.With().Str("queue", "audit").Logger()),
	}
	a.syncQueue.Start(ctx)
	a.auditQueue.Start(ctx)

	var (
		sink         auditevent.Sink = auditevent.NopSink{}
		auditRepo    auditevent.EntryRepository
		patientStore identity.PatientStore
		fileRepo     identity.FileRepository = identity.NewMemoryFileRepo()
		apptStore    scheduling.AppointmentStore
		dentists     clinic.DentistRepository  = clinic.NewMemoryDentistRepo()
		vacations    clinic.VacationRepository = clinic.NewMemoryVacationRepo()
		settings     clinic.SettingsRepository = clinic.NewMemorySettingsRepo()
		catalogs     clinic.CatalogRepository  = clinic.NewMemoryCatalogRepo()
	)
	if pool != nil {
		auditRepo = auditevent.NewEntryRepoPG(pool)
		patientStore = identity.NewPatientRepoPG(pool)
		fileRepo = identity.NewFileRepoPG(pool)
		apptStore = scheduling.NewAppointmentRepoPG(pool)
		dentists = clinic.NewDentistRepoPG(pool)
		vacations = clinic.NewVacationRepoPG(pool)
		settings = clinic.NewSettingsRepoPG(pool)
		catalogs = clinic.NewCatalogRepoPG(pool)
	}

	a.audit = auditevent.NewService(auditRepo, a.auditQueue, logger.With().Str("component", "audit").Logger())
	if auditRepo != nil {
		sink = a.audit
	}

	a.clinic = clinic.NewService(dentists, vacations, settings, catalogs, sink, logger, clinic.WithEvents(a.hub))
	a.patients = identity.NewDirectory(patientStore, sink, a.syncQueue, logger, identity.WithEvents(a.hub))
	a.registry = scheduling.NewRegistry(apptStore, a.patients, sink, a.syncQueue, logger,
		scheduling.WithLocation(loc), scheduling.WithEvents(a.hub))

	a.blobs, err = newBlobStore(cfg)
	if err != nil {
		return nil, err
	}
	a.files = identity.NewFileService(fileRepo, a.blobs, a.patients, sink, logger)

	a.engine = &availability.Engine{Now: time.Now, Location: loc}
	a.source = board.NewSource(a.registry, a.clinic)
	a.builder = board.NewBuilder(a.registry, a.clinic, a.engine)
	a.seeder = sandbox.NewSeeder(a.clinic, a.patients, a.registry)

	return a, nil
}

// load fills the in-memory collections from the store. A missing schema is
// reported with a hint; the board still comes up, empty.
func (a *app) load(ctx context.Context) {
	if err := a.patients.Load(ctx); err != nil {
		a.logger.Error().Err(err).Msg("load patients")
	}
	if err := a.registry.Load(ctx); err != nil {
		var lerr *scheduling.LoadError
		if errors.As(err, &lerr) && lerr.MissingSchema {
			a.logger.Error().Err(err).Msg("appointments table missing; run `dentboard-server migrate up`")
			return
		}
		a.logger.Error().Err(err).Msg("load appointments")
	}
}

// close drains both queues so every accepted write reaches the store.
func (a *app) close() {
	a.syncQueue.Close()
	a.auditQueue.Close()
}

func newBlobStore(cfg *config.Config) (blobstore.Store, error) {
	switch cfg.FileStore {
	case config.FileStoreLocal:
		s, err := blobstore.NewDiskStore(cfg.FileDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("file store: %w", err)
		}
		return s, nil
	case config.FileStoreSupabase:
		return blobstore.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.FileBucket), nil
	default:
		return blobstore.NewMemoryStore(cfg.PublicBaseURL), nil
	}
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if !cfg.HasBackend() {
		return nil, nil
	}
	return db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
	})
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
