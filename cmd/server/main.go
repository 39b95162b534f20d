package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ProfessorNova/focusflow/internal/auth"
	"github.com/ProfessorNova/focusflow/internal/config"
	"github.com/ProfessorNova/focusflow/internal/database"
	"github.com/ProfessorNova/focusflow/internal/email"
	"github.com/ProfessorNova/focusflow/internal/logging"
	"github.com/ProfessorNova/focusflow/internal/server"
)

type stores struct {
	users         auth.UserStore
	sessions      auth.SessionStore
	resets        auth.PasswordResetStore
	verifications auth.EmailVerificationStore
	redis         *redis.Client
	close         func()
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Printf("storage: using in-memory stores, data is lost on restart")
		mem := auth.NewMemoryStore()
		return &stores{users: mem, sessions: mem, resets: mem, verifications: mem, close: func() {}}, nil
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		db.Close()
		_ = rdb.Close()
		return nil, err
	}

	repo := auth.NewUserRepository(db)
	return &stores{
		users:         repo,
		sessions:      &auth.RedisSessionStore{Redis: rdb},
		resets:        repo,
		verifications: repo,
		redis:         rdb,
		close: func() {
			_ = rdb.Close()
			db.Close()
		},
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logCloser, err := logging.Setup(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		log.Fatalf("log setup error: %v", err)
	}
	defer logCloser.Close()

	cipher, err := auth.NewCipherFromBase64(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("encryption key error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("storage error: %v", err)
	}
	defer st.close()

	var mailer auth.Mailer = email.LogSender{}
	if cfg.Email.Enabled() {
		mailer = email.NewSender(cfg.Email)
	} else {
		log.Printf("email: SMTP not configured, codes are written to the log")
	}

	users := auth.NewUserService(st.users, auth.NewPasswordHasher(cfg.PasswordHasher), cipher)
	sessions := auth.NewSessionManager(st.sessions, st.users)
	api := server.NewServer(cfg, server.Services{
		Users:         users,
		Sessions:      sessions,
		Resets:        auth.NewPasswordResetManager(st.resets, users, sessions, mailer),
		Verifications: auth.NewEmailVerificationManager(st.verifications, mailer),
		TwoFactor:     auth.NewTwoFactor(st.users, st.sessions, cipher, cfg.TOTPIssuer),
		Strength:      auth.NewPasswordStrengthChecker(cfg.PwnedPasswordsURL, cfg.PwnedFailOpen),
		Audit:         &auth.AuditLogger{Redis: st.redis, MaxLen: cfg.AuditMaxLen},
	})

	if rw, ok := logCloser.(*logging.RotatingFileWriter); ok {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		go func() {
			for range hup {
				if err := rw.Rotate(); err != nil {
					log.Printf("log rotate failed: %v", err)
				}
			}
		}()
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("Listening on %s (storage: %s)", addr, cfg.StorageDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
