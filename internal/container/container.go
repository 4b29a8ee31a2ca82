package container

import (
	"log/slog"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joshua-takyi/eventflow/internal/config"
	"github.com/joshua-takyi/eventflow/internal/helpers"
	"github.com/joshua-takyi/eventflow/internal/models"
	"github.com/joshua-takyi/eventflow/internal/notify"
	"github.com/joshua-takyi/eventflow/internal/services"
	"github.com/redis/go-redis/v9"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
)

// Clients are the connections the container wires services onto. Redis and
// Cloudinary are optional.
type Clients struct {
	Postgres        *pgxpool.Pool
	Supabase        *supabase.Client
	SupabaseService *supabase.Client
	MongoDB         *mongo.Client
	Redis           *redis.Client
	Cloudinary      *cloudinary.Cloudinary
}

// Container holds all application dependencies
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Clients Clients

	Store     models.Store
	Mongo     *models.MongodbRepo
	Directory models.Directory
	Tokens    *helpers.JWKSValidator

	UserService         *services.UserService
	AvailabilityService *services.AvailabilityService
	ApprovalService     *services.ApprovalService
	CompletionService   *services.CompletionService
	ImportService       *services.ImportService
	VenueService        *services.VenueService
	DocumentService     *services.DocumentService

	Notifier services.Notifier
	// Worker is nil when notifications are delivered inline.
	Worker *notify.Worker
	// Inline is set instead of Worker when there is no queue.
	Inline *notify.Inline
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, logger *slog.Logger, clients Clients) *Container {
	clock := services.Clock(time.Now)

	store := models.NewPostgresStore(clients.Postgres)
	supa := models.SupabaseNewRepo(clients.Supabase, clients.SupabaseService, cfg.SupabaseURL, cfg.SupabaseAnonKey)
	mongoRepo := models.MongodbNewRepo(clients.MongoDB, cfg.MongoDBDatabase)

	audit := services.NewMongoAuditSink(mongoRepo, clock, logger)
	deliverer := notify.NewDeliverer(supa, mongoRepo, logger)

	var (
		notifier services.Notifier
		worker   *notify.Worker
		inline   *notify.Inline
	)
	if clients.Redis != nil {
		notifier = notify.NewRedisQueue(clients.Redis, cfg.NotificationQueue)
		worker = notify.NewWorker(clients.Redis, cfg.NotificationQueue, deliverer, logger)
	} else {
		inline = notify.NewInline(deliverer, logger)
		notifier = inline
	}

	availability := services.NewAvailabilityService(store, cfg.Location())
	uploader := helpers.NewCloudinaryUploader(clients.Cloudinary, cfg.Cloudinary.Folder)

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Clients:   clients,
		Store:     store,
		Mongo:     mongoRepo,
		Directory: supa,
		Tokens:    helpers.NewJWKSValidator(cfg.SupabaseURL, cfg.IsDevelopment(), logger),

		UserService:         services.NewUserService(supa, supa),
		AvailabilityService: availability,
		ApprovalService:     services.NewApprovalService(store, availability, notifier, audit, clock, logger),
		CompletionService:   services.NewCompletionService(store, audit, clock, cfg.SystemActorID, logger),
		ImportService:       services.NewImportService(store, audit, clock, logger),
		VenueService:        services.NewVenueService(store, audit, clock, logger),
		DocumentService:     services.NewDocumentService(store, uploader, clock, logger),

		Notifier: notifier,
		Worker:   worker,
		Inline:   inline,
	}
}
