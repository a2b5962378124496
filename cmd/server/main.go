package main

import (
	"context"
	"log"

	"golang.org/x/crypto/bcrypt"

	"github.com/imamnura/warung-enin-sub000/config"
	"github.com/imamnura/warung-enin-sub000/internal/database"
	"github.com/imamnura/warung-enin-sub000/internal/database/models"
	"github.com/imamnura/warung-enin-sub000/internal/notify"
	"github.com/imamnura/warung-enin-sub000/internal/repository"
	"github.com/imamnura/warung-enin-sub000/internal/services/order"
	"github.com/imamnura/warung-enin-sub000/internal/services/payment"
	"github.com/imamnura/warung-enin-sub000/internal/services/pricing"
	"github.com/imamnura/warung-enin-sub000/internal/services/promo"
	"github.com/imamnura/warung-enin-sub000/internal/storage"
)

func main() {
	cfg := config.LoadConfig()

	store, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("Failed to set up storage: %v", err)
	}

	dispatcher := buildDispatcher(cfg)
	if closer, ok := dispatcher.(*notify.RabbitDispatcher); ok {
		defer closer.Close()
	}

	settings, err := store.StoreSettings(context.Background())
	if err != nil {
		log.Fatalf("Failed to load store settings: %v", err)
	}

	promos := promo.NewValidator(store)
	calc := pricing.NewCalculator(pricing.FeesFromSettings(settings), promos)
	orders := order.NewService(store, calc, dispatcher)
	payments := payment.NewService(store, dispatcher)

	proofs, err := storage.NewDiskStore(cfg.Proof.Dir)
	if err != nil {
		log.Fatalf("Failed to set up proof storage: %v", err)
	}

	cache := config.NewRedisClient(cfg.Redis)

	r := buildRouter(cfg, store, orders, payments, promos, proofs, cache)

	addr := ":" + cfg.Port
	log.Printf("Starting server on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func buildStore(cfg config.Config) (repository.Store, error) {
	accounts := []database.SeedAccount{
		{Username: cfg.Seed.OperatorUsername, Password: cfg.Seed.OperatorPassword, Role: models.RoleOperator},
		{Username: cfg.Seed.CourierUsername, Password: cfg.Seed.CourierPassword, Role: models.RoleCourier},
	}

	if cfg.DB.DSN == "" {
		log.Println("DB_DSN not set, using in-memory storage")
		mem := repository.NewMemory()
		for _, acc := range accounts {
			hash, err := bcrypt.GenerateFromPassword([]byte(acc.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, err
			}
			u := models.User{Username: acc.Username, Password: string(hash), FullName: acc.Username, Role: acc.Role, IsActive: true}
			if err := mem.CreateUser(context.Background(), &u); err != nil {
				return nil, err
			}
		}
		return mem, nil
	}

	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	if err := database.Seed(db, accounts); err != nil {
		return nil, err
	}
	return repository.NewGorm(db), nil
}

func buildDispatcher(cfg config.Config) notify.Dispatcher {
	if cfg.Rabbit.URL == "" {
		log.Println("RABBITMQ_URL not set, notifications go to the log")
		return notify.LogDispatcher{}
	}
	d, err := notify.NewRabbitDispatcher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
	if err != nil {
		log.Printf("Failed to connect to RabbitMQ, notifications go to the log: %v", err)
		return notify.LogDispatcher{}
	}
	return d
}
