package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"recipehub/internal/cache"
	"recipehub/internal/config"
	"recipehub/internal/database"
	"recipehub/internal/handler"
	"recipehub/internal/queue"
	"recipehub/internal/redis"
	"recipehub/internal/repository"
	"recipehub/internal/repository/memory"
	"recipehub/internal/service"
	authmw "recipehub/internal/transport/http/middleware"
	"recipehub/internal/worker"
)

const shutdownTimeout = 15 * time.Second

type stores struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	users    repository.UserRepository
	close    func()
}

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Open the post store
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// 3. Redis is optional: without it pages are not cached and events are
	// handled inline.
	var (
		feedCache cache.FeedCache
		rdb       *redis.Client
	)
	if cfg.RedisURL != "" {
		rdb, err = redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		feedCache = cache.NewFeedCache(rdb.Client)
		log.Println("[Server] Redis connected, feed cache enabled")
	} else {
		log.Println("[Server] REDIS_URL not set, feed cache disabled")
	}

	// 4. Object storage
	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}

	// 5. Event handling
	var objects worker.ObjectDeleter
	if storage != nil {
		objects = storage
	}
	eventHandler := worker.NewHandler(feedCache, objects)

	var publisher queue.Publisher
	if rdb != nil {
		publisher = queue.NewPublisher(rdb.Client)
		manager := worker.NewManager(queue.NewConsumer(rdb.Client), eventHandler, worker.ManagerConfig{
			WorkerCount: cfg.WorkerCount,
		})
		if err := manager.Start(ctx); err != nil {
			return fmt.Errorf("failed to start workers: %w", err)
		}
		defer manager.Stop()
	} else {
		publisher = worker.NewInlinePublisher(eventHandler)
	}

	// 6. Auth
	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	// 7. Services and handlers
	postService := service.NewPostService(st.posts, st.users, service.NewMediaService(storage), publisher)
	feedService := service.NewFeedService(st.posts, feedCache)
	interactionService := service.NewInteractionService(st.posts)
	commentService := service.NewCommentService(st.posts, st.comments, st.users)
	profileService := service.NewProfileService(st.users)

	routerCfg := RouterConfig{
		PostHandler:        handler.NewPostHandler(postService, cfg.DebugErrors),
		FeedHandler:        handler.NewFeedHandler(feedService, cfg.DebugErrors),
		InteractionHandler: handler.NewInteractionHandler(interactionService, cfg.DebugErrors),
		CommentHandler:     handler.NewCommentHandler(commentService, cfg.DebugErrors),
		ProfileHandler:     handler.NewProfileHandler(profileService, cfg.DebugErrors),
		Verifier:           verifier,
	}
	if cfg.RateLimitRPS > 0 {
		routerCfg.RateLimiter = authmw.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	// 8. Serve until signalled
	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] Listening on %s store=%s auth=%s media=%s", srv.Addr, cfg.StoreDriver, cfg.AuthProvider, cfg.MediaProvider)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("[Server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Println("[Server] Using in-memory store, data is lost on restart")
		s := memory.NewStore()
		return &stores{posts: s.Posts(), comments: s.Comments(), users: s.Users(), close: func() {}}, nil

	case config.StoreMongo:
		client, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		db := client.Database(cfg.MongoDB)
		if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		return &stores{
			posts:    repository.NewMongoPostRepository(db),
			comments: repository.NewMongoCommentRepository(db),
			users:    repository.NewMongoUserRepository(db),
			close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					log.Printf("[Server] Mongo disconnect failed: %v", err)
				}
			},
		}, nil

	default:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
		return &stores{
			posts:    repository.NewPostRepository(db),
			comments: repository.NewCommentRepository(db),
			users:    repository.NewUserRepository(db),
			close:    func() { db.Close() },
		}, nil
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (service.Storage, error) {
	switch cfg.MediaProvider {
	case config.MediaCloudinary:
		s, err := service.NewCloudinaryStorage(cfg.CloudinaryURL)
		if err != nil {
			return nil, fmt.Errorf("failed to init cloudinary: %w", err)
		}
		return s, nil
	case config.MediaR2:
		s, err := service.NewR2Storage(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to init r2: %w", err)
		}
		return s, nil
	default:
		log.Println("[Server] MEDIA_PROVIDER=none, media uploads disabled")
		return nil, nil
	}
}

func newVerifier(ctx context.Context, cfg *config.Config) (authmw.TokenVerifier, error) {
	if cfg.AuthProvider == config.AuthFirebase {
		v, err := authmw.NewFirebaseVerifier(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	return authmw.NewJWTVerifier(cfg.JWTSecret), nil
}
