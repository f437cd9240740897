package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"builderscentral/internal/api"
	"builderscentral/internal/config"
	"builderscentral/internal/db"
	"builderscentral/internal/events"
	"builderscentral/internal/identity"
	"builderscentral/internal/notify"
	"builderscentral/internal/service"
	"builderscentral/internal/store"
)

func main() {
	// Missing .env is fine; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	sqldb, err := db.Open(cfg)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer sqldb.Close()
	if err := db.ApplyMigrationFile(sqldb, "migrations/001_init.sql"); err != nil {
		log.Fatalf("migration: %v", err)
	}

	st := store.New(sqldb, cfg.DBDriver)
	sender := notify.NewSender(cfg)
	hub := events.NewHub()
	if cfg.EventsAMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.EventsAMQPURL, cfg.EventsAMQPExchange)
		if err != nil {
			log.Fatalf("amqp publisher: %v", err)
		}
		defer amqpPub.Close()
		hub = hub.WithAMQP(amqpPub)
	}

	svc := service.New(cfg, st, sender, hub)

	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword != "" {
		hash, err := identity.HashPassword(cfg.BootstrapAdminPassword)
		if err != nil {
			log.Fatalf("bootstrap admin hash: %v", err)
		}
		if err := svc.EnsureAdmin(context.Background(), cfg.BootstrapAdminEmail, hash, cfg.BootstrapAdminHandle); err != nil {
			log.Fatalf("bootstrap admin create: %v", err)
		}
	}

	verifier := identity.NewVerifier(cfg.IdentityJWTKey, cfg.IdentityTokenTTL)
	var provider *identity.Provider
	if cfg.IdentityMode == "builtin" {
		provider = identity.NewProvider(st, verifier, cfg.PasswordMinLength, cfg.PasswordMaxLength)
	}

	r := api.NewRouter(cfg, svc, provider, verifier)

	hsrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTPReadHeaderTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:       time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	log.Printf("listening on %s", cfg.ListenAddr)
	if err := hsrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server: %v", err)
	}
}
