package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"staybook/internal/app/commands"
	adminapp "staybook/internal/app/handlers/admin"
	availabilityapp "staybook/internal/app/handlers/availability"
	bookingapp "staybook/internal/app/handlers/booking"
	meapp "staybook/internal/app/handlers/me"
	propertyapp "staybook/internal/app/handlers/properties"
	reviewapp "staybook/internal/app/handlers/reviews"
	"staybook/internal/app/middleware"
	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	authsvc "staybook/internal/app/services/auth"
	availabilitysvc "staybook/internal/app/services/availability"
	"staybook/internal/app/uow"
	domainauth "staybook/internal/domain/auth"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/clock"
	domainuser "staybook/internal/domain/user"
	"staybook/internal/infra/broker/kafka"
	"staybook/internal/infra/config"
	mongodb "staybook/internal/infra/db/mongo"
	ginserver "staybook/internal/infra/http/gin"
	infrainbox "staybook/internal/infra/inbox"
	memlock "staybook/internal/infra/locks/memory"
	redislock "staybook/internal/infra/locks/redis"
	"staybook/internal/infra/obs"
	infraoutbox "staybook/internal/infra/outbox"
	"staybook/internal/infra/security"
	"staybook/internal/infra/storage/memory"
	"staybook/internal/infra/storage/s3"
	"staybook/internal/infra/validation"
)

type application struct {
	logger   *slog.Logger
	metrics  *obs.Metrics
	handlers ginserver.Handlers
	health   obs.HealthHandlers

	commands   commands.Bus
	queries    queries.Bus
	properties domainproperty.Repository

	worker         *infraoutbox.Worker
	consumer       *kafka.Consumer
	consumerTopics []string

	closers []func(ctx context.Context) error
}

// stores groups the persistence backends selected by STORAGE.
type stores struct {
	factory     uow.UoWFactory
	properties  domainproperty.Repository
	users       domainuser.Repository
	sessions    domainauth.SessionStore
	idempotency middleware.IdempotencyStore
	outbox      appoutbox.Outbox
	relay       infraoutbox.Store
	wake        <-chan struct{}
	inbox       kafka.Inbox
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		logger:  logger,
		metrics: obs.NewMetrics(),
		health:  obs.HealthHandlers{Checks: map[string]obs.ReadinessCheck{}},
	}
	clk := clock.System{}

	st, err := app.openStores(ctx, cfg)
	if err != nil {
		app.close()
		return nil, err
	}
	app.properties = st.properties

	locker, err := app.openLocker(cfg)
	if err != nil {
		app.close()
		return nil, err
	}

	var uploader propertyapp.PhotoUploader
	if cfg.S3Enabled() {
		client, err := s3.NewClient(s3.Options{
			Endpoint:       cfg.S3Endpoint,
			PublicEndpoint: cfg.S3PublicEndpoint,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			Bucket:         cfg.S3Bucket,
			UseSSL:         cfg.S3UseSSL,
		}, logger)
		if err != nil {
			app.close()
			return nil, err
		}
		uploader = client
		app.health.Checks["s3"] = client.Ping
	}

	events := appoutbox.Publisher{Outbox: st.outbox, Encoder: appoutbox.JSONEventEncoder{}}
	resolver := availabilitysvc.Resolver{Observer: app.metrics}

	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()

	cascade := &bookingapp.CancelGuestBookingsHandler{UoWFactory: st.factory, Events: events, Clock: clk, Logger: logger}

	commands.RegisterHandler(commandBus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{UoWFactory: st.factory, Resolver: resolver, Events: events, Clock: clk, Logger: logger})
	commands.RegisterHandler(commandBus, bookingapp.UpdateBookingCommand{}.Key(), &bookingapp.UpdateBookingHandler{UoWFactory: st.factory, Resolver: resolver, Events: events, Clock: clk, Logger: logger})
	commands.RegisterHandler(commandBus, bookingapp.CancelBookingCommand{}.Key(), &bookingapp.CancelBookingHandler{UoWFactory: st.factory, Events: events, Clock: clk, Logger: logger})
	commands.RegisterHandler(commandBus, bookingapp.SetBookingStatusCommand{}.Key(), &bookingapp.SetBookingStatusHandler{UoWFactory: st.factory, Events: events, Clock: clk, Logger: logger})
	commands.RegisterHandler(commandBus, bookingapp.SweepCompletedBookingsCommand{}.Key(), &bookingapp.SweepCompletedBookingsHandler{UoWFactory: st.factory, Events: events, Clock: clk, Logger: logger})
	commands.RegisterHandler(commandBus, bookingapp.CancelGuestBookingsCommand{}.Key(), cascade)
	commands.RegisterHandler(commandBus, reviewapp.SubmitReviewCommand{}.Key(), &reviewapp.SubmitReviewHandler{UoWFactory: st.factory, Events: events, Clock: clk, Logger: logger})
	commands.RegisterHandler(commandBus, propertyapp.CreatePropertyCommand{}.Key(), &propertyapp.CreatePropertyHandler{UoWFactory: st.factory, Events: events, Clock: clk, Logger: logger})
	commands.RegisterHandler(commandBus, propertyapp.SetPropertyActiveCommand{}.Key(), &propertyapp.SetPropertyActiveHandler{UoWFactory: st.factory, Events: events, Clock: clk, Logger: logger})
	commands.RegisterHandler(commandBus, propertyapp.BlockDatesCommand{}.Key(), &propertyapp.BlockDatesHandler{UoWFactory: st.factory, Events: events, Clock: clk, Logger: logger})
	commands.RegisterHandler(commandBus, propertyapp.UnblockDatesCommand{}.Key(), &propertyapp.UnblockDatesHandler{UoWFactory: st.factory, Events: events, Clock: clk, Logger: logger})
	commands.RegisterHandler(commandBus, propertyapp.UploadPropertyPhotoCommand{}.Key(), &propertyapp.UploadPropertyPhotoHandler{UoWFactory: st.factory, Uploader: uploader, Events: events, Clock: clk, Logger: logger})
	commands.RegisterHandler(commandBus, adminapp.DeleteUserCommand{}.Key(), &adminapp.DeleteUserHandler{UoWFactory: st.factory, Users: st.users, Sessions: st.sessions, Cascade: cascade, Events: events, Clock: clk, Logger: logger})

	queries.RegisterHandler(queryBus, availabilityapp.CheckAvailabilityQuery{}.Key(), &availabilityapp.CheckAvailabilityHandler{UoWFactory: st.factory, Resolver: resolver, Logger: logger})
	queries.RegisterHandler(queryBus, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{UoWFactory: st.factory, Clock: clk})
	queries.RegisterHandler(queryBus, bookingapp.ListPropertyBookingsQuery{}.Key(), &bookingapp.ListPropertyBookingsHandler{UoWFactory: st.factory, Clock: clk})
	queries.RegisterHandler(queryBus, meapp.ListGuestBookingsQuery{}.Key(), &meapp.ListGuestBookingsHandler{UoWFactory: st.factory, Clock: clk, Logger: logger})
	queries.RegisterHandler(queryBus, reviewapp.CanReviewQuery{}.Key(), &reviewapp.CanReviewHandler{UoWFactory: st.factory, Clock: clk})
	queries.RegisterHandler(queryBus, reviewapp.ListReviewsQuery{}.Key(), &reviewapp.ListReviewsHandler{UoWFactory: st.factory})
	queries.RegisterHandler(queryBus, propertyapp.GetPropertyQuery{}.Key(), &propertyapp.GetPropertyHandler{UoWFactory: st.factory})
	queries.RegisterHandler(queryBus, propertyapp.ListHostPropertiesQuery{}.Key(), &propertyapp.ListHostPropertiesHandler{UoWFactory: st.factory})

	validator := validation.New()
	lockKeys := bookingapp.LockKeys{UoWFactory: st.factory}
	app.commands = middleware.ChainCommands(
		commandBus,
		middleware.Metrics(app.metrics),
		middleware.Validation(validator),
		middleware.Authorization(policies.RoleAuthorizer{}),
		middleware.Idempotency(st.idempotency, nil),
		middleware.ResourceLock(locker, lockKeys.Resolve),
		middleware.Transaction(st.factory, nil),
		middleware.OutboxFlush(st.outbox),
	)
	app.queries = middleware.ChainQueries(
		queryBus,
		middleware.QueryMetrics(app.metrics),
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(policies.RoleAuthorizer{}),
	)

	authService := &authsvc.Service{
		Users:      st.users,
		Sessions:   st.sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: cfg.SessionTTL,
		Clock:      clk,
		Logger:     logger,
		LoginHooks: []authsvc.LoginHook{
			authsvc.RoleGrantHook{Users: st.users, Role: domainuser.RoleAdmin, Emails: cfg.AdminEmails, Clock: clk, Logger: logger},
			bookingapp.CompletionSweepHook{Bus: app.commands, Logger: logger},
		},
	}

	app.handlers = ginserver.Handlers{
		Auth:           ginserver.AuthHandler{Service: authService, Logger: logger},
		Properties:     ginserver.PropertyHandler{Queries: app.queries, Logger: logger},
		Availability:   ginserver.AvailabilityHandler{Queries: app.queries, Logger: logger},
		Reviews:        ginserver.ReviewHandler{Commands: app.commands, Queries: app.queries, Logger: logger},
		Bookings:       ginserver.BookingHandler{Commands: app.commands, Queries: app.queries, Logger: logger},
		Me:             ginserver.MeHandler{Queries: app.queries, Logger: logger},
		Host:           ginserver.HostHandler{Commands: app.commands, Queries: app.queries, Logger: logger},
		Admin:          ginserver.AdminHandler{Commands: app.commands, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Service: authService, Logger: logger}.Handle,
		Metrics:        app.metrics.Handler(),
	}

	if err := app.wireBroker(cfg, st, clk); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (a *application) openStores(ctx context.Context, cfg config.Config) (stores, error) {
	if cfg.Storage == config.StorageMongo {
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return stores{}, fmt.Errorf("mongo connect: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.health.Checks["mongo"] = client.Ping
		if err := mongodb.EnsureIndexes(ctx, client.DB, cfg.IdempotencyTTL); err != nil {
			return stores{}, err
		}
		props := mongodb.NewPropertyRepository(client.DB)
		box := infraoutbox.NewMongoStore(client.DB)
		return stores{
			factory:     mongodb.Factory{DB: client.DB, Properties: props, Bookings: mongodb.NewBookingRepository(client.DB)},
			properties:  props,
			users:       mongodb.NewUserRepository(client.DB),
			sessions:    mongodb.NewSessionStore(client.DB),
			idempotency: mongodb.NewIdempotencyStore(client.DB),
			outbox:      box,
			relay:       box,
			inbox:       infrainbox.NewStore(client.DB, cfg.KafkaGroupID),
		}, nil
	}

	props := memory.NewPropertyRepository()
	box := memory.NewOutbox()
	return stores{
		factory:     memory.Factory{Properties: props, Bookings: memory.NewBookingRepository(), Outbox: box},
		properties:  props,
		users:       memory.NewUserRepository(),
		sessions:    memory.NewSessionStore(),
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		outbox:      box,
		relay:       box,
		wake:        box.Wake(),
		inbox:       memory.NewInbox(),
	}, nil
}

func (a *application) openLocker(cfg config.Config) (middleware.Locker, error) {
	if cfg.LockBackend != config.LockRedis {
		return memlock.NewLocker(cfg.LockWait), nil
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	locker := redislock.NewLocker(client, cfg.LockTTL, cfg.LockWait)
	a.health.Checks["redis"] = locker.Ping
	return locker, nil
}

// wireBroker sets up the outbox relay and, with Kafka configured, the
// user.deleted consumer. Without brokers events are relayed to the log.
func (a *application) wireBroker(cfg config.Config, st stores, clk clock.Clock) error {
	workerID, _ := os.Hostname()
	a.worker = &infraoutbox.Worker{
		Store:       st.relay,
		Producer:    infraoutbox.LogProducer{Logger: a.logger},
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		ID:          workerID,
		Backoff:     cfg.RetryBackoff,
		Wake:        st.wake,
		Clock:       clk,
		Logger:      a.logger,
	}
	if !cfg.KafkaEnabled() {
		a.logger.Info("kafka disabled, relaying events to the log")
		return nil
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
	a.worker.Producer = producer

	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, kafka.UserEventsHandler{
		Bus:    a.commands,
		Inbox:  st.inbox,
		Logger: a.logger,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return consumer.Close() })
	a.consumer = consumer
	a.consumerTopics = []string{infraoutbox.TopicFor(cfg.KafkaTopicPrefix, domainuser.DeletedEventName)}
	return nil
}

func (a *application) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && a.logger != nil {
			a.logger.Warn("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}
