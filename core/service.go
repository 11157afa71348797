package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	unitOfWork        UnitOfWork
	idempotencyStore  IdempotencyStore
	subscriptionStore SubscriptionStore
	deliveryStore     DeliveryStore
	orderStore        OrderStore
	memberStore       MemberStore
	noteStore         NoteStore
	messageStore      MessageStore
	ledger            *CommandLedger
	emitter           *EventEmitter
	guard             *OrderStatusGuard
	now               func() time.Time
	newID             func() string
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	UnitOfWork        UnitOfWork
	IdempotencyStore  IdempotencyStore
	SubscriptionStore SubscriptionStore
	DeliveryStore     DeliveryStore
	OrderStore        OrderStore
	MemberStore       MemberStore
	NoteStore         NoteStore
	MessageStore      MessageStore
	Ledger            *CommandLedger
	Emitter           *EventEmitter
	Guard             *OrderStatusGuard
	Now               func() time.Time
	NewID             func() string
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("relay", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("relay"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = utcNow
	}
	if builder.newID == nil {
		builder.newID = defaultNewID
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil {
		var stores StoreProvider
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			stores = built
		} else if direct, ok := builder.repositoryFactory.(StoreProvider); ok {
			stores = direct
		}
		if stores != nil {
			builder.fillStores(stores)
		}
	}
	if builder.unitOfWork == nil {
		builder.unitOfWork = NoopUnitOfWork{}
	}

	ledger := &CommandLedger{
		Store:      builder.idempotencyStore,
		UnitOfWork: builder.unitOfWork,
		Now:        builder.now,
		NewID:      builder.newID,
	}
	var emitter *EventEmitter
	if builder.subscriptionStore != nil && builder.deliveryStore != nil {
		emitter = &EventEmitter{
			Subscriptions: builder.subscriptionStore,
			Deliveries:    builder.deliveryStore,
			Now:           builder.now,
			NewID:         builder.newID,
		}
	}
	guard := &OrderStatusGuard{
		Orders:     builder.orderStore,
		UnitOfWork: builder.unitOfWork,
		Now:        builder.now,
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		unitOfWork:        builder.unitOfWork,
		idempotencyStore:  builder.idempotencyStore,
		subscriptionStore: builder.subscriptionStore,
		deliveryStore:     builder.deliveryStore,
		orderStore:        builder.orderStore,
		memberStore:       builder.memberStore,
		noteStore:         builder.noteStore,
		messageStore:      builder.messageStore,
		ledger:            ledger,
		emitter:           emitter,
		guard:             guard,
		now:               builder.now,
		newID:             builder.newID,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func (b *serviceBuilder) fillStores(stores StoreProvider) {
	if b.unitOfWork == nil {
		b.unitOfWork = stores.UnitOfWork()
	}
	if b.idempotencyStore == nil {
		b.idempotencyStore = stores.IdempotencyStore()
	}
	if b.subscriptionStore == nil {
		b.subscriptionStore = stores.SubscriptionStore()
	}
	if b.deliveryStore == nil {
		b.deliveryStore = stores.DeliveryStore()
	}
	if b.orderStore == nil {
		b.orderStore = stores.OrderStore()
	}
	if b.memberStore == nil {
		b.memberStore = stores.MemberStore()
	}
	if b.noteStore == nil {
		b.noteStore = stores.NoteStore()
	}
	if b.messageStore == nil {
		b.messageStore = stores.MessageStore()
	}
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		UnitOfWork:        s.unitOfWork,
		IdempotencyStore:  s.idempotencyStore,
		SubscriptionStore: s.subscriptionStore,
		DeliveryStore:     s.deliveryStore,
		OrderStore:        s.orderStore,
		MemberStore:       s.memberStore,
		NoteStore:         s.noteStore,
		MessageStore:      s.messageStore,
		Ledger:            s.ledger,
		Emitter:           s.emitter,
		Guard:             s.guard,
		Now:               s.now,
		NewID:             s.newID,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) clock() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return utcNow()
}

func (s *Service) nextID() string {
	if s != nil && s.newID != nil {
		return s.newID()
	}
	return defaultNewID()
}
