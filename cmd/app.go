package cmd

import (
	"coaching-billing/config"
	"coaching-billing/internal/billing/charge"
	"coaching-billing/internal/billing/lifecycle"
	"coaching-billing/internal/billing/pricing"
	"coaching-billing/internal/billing/profiles"
	"coaching-billing/internal/billing/reconcile"
	"coaching-billing/internal/billing/registry"
	"coaching-billing/internal/domain/env"
	stripeinfra "coaching-billing/internal/infra/stripe"

	"gorm.io/gorm"
)

// services is everything built on top of the database and the Stripe keys.
type services struct {
	stripe    *stripeinfra.Client
	connect   *stripeinfra.Connect
	registry  *registry.Registry
	pricing   *pricing.Lookup
	profiles  *profiles.Service
	lifecycle *lifecycle.Service
	charges   *charge.Engine
	reconcile *reconcile.Listener
}

func newServices(db *gorm.DB) *services {
	sc := stripeinfra.NewClient(map[env.Environment]string{
		env.Test: config.STRIPE_TEST_SECRET_KEY,
		env.Live: config.STRIPE_LIVE_SECRET_KEY,
	}, config.STRIPE_TIMEOUT)

	reg := registry.New(db)
	lookup := pricing.New(sc)
	prof := profiles.New(db, reg, sc)

	return &services{
		stripe: sc,
		connect: stripeinfra.NewConnect(
			map[env.Environment]string{
				env.Test: config.STRIPE_TEST_CONNECT_CLIENT_ID,
				env.Live: config.STRIPE_LIVE_CONNECT_CLIENT_ID,
			},
			map[env.Environment]string{
				env.Test: config.STRIPE_TEST_SECRET_KEY,
				env.Live: config.STRIPE_LIVE_SECRET_KEY,
			},
			config.STRIPE_CONNECT_REDIRECT_URL,
		),
		registry:  reg,
		pricing:   lookup,
		profiles:  prof,
		lifecycle: lifecycle.New(db),
		charges:   charge.New(db, reg, sc, lookup, prof),
		reconcile: reconcile.New(reg, sc),
	}
}
