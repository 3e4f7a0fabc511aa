package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coaching-billing/internal/domain/env"

	"golang.org/x/oauth2"
)

const (
	connectAuthURL  = "https://connect.stripe.com/oauth/authorize"
	connectTokenURL = "https://connect.stripe.com/oauth/token"
)

var ErrConnectNotConfigured = errors.New("stripe connect not configured for environment")

// Connect runs the Standard account OAuth flow, one client per environment.
// The platform secret key is the OAuth client secret.
type Connect struct {
	configs map[env.Environment]*oauth2.Config
}

func NewConnect(clientIDs, secretKeys map[env.Environment]string, redirectURL string) *Connect {
	return newConnect(clientIDs, secretKeys, redirectURL, oauth2.Endpoint{
		AuthURL:   connectAuthURL,
		TokenURL:  connectTokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	})
}

func newConnect(clientIDs, secretKeys map[env.Environment]string, redirectURL string, endpoint oauth2.Endpoint) *Connect {
	c := &Connect{configs: map[env.Environment]*oauth2.Config{}}
	for _, e := range env.All() {
		id, secret := strings.TrimSpace(clientIDs[e]), strings.TrimSpace(secretKeys[e])
		if id == "" || secret == "" {
			continue
		}
		c.configs[e] = &oauth2.Config{
			ClientID:     id,
			ClientSecret: secret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read_write"},
			Endpoint:     endpoint,
		}
	}
	return c
}

func (c *Connect) config(e env.Environment) (*oauth2.Config, error) {
	cfg, ok := c.configs[e]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectNotConfigured, e)
	}
	return cfg, nil
}

// AuthCodeURL is where the tenant admin is sent to connect their account.
func (c *Connect) AuthCodeURL(e env.Environment, state string) (string, error) {
	cfg, err := c.config(e)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("response_type", "code")), nil
}

// Exchange trades the authorization code for the connected account id.
func (c *Connect) Exchange(ctx context.Context, e env.Environment, code string) (string, error) {
	cfg, err := c.config(e)
	if err != nil {
		return "", err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("connect token exchange: %w", err)
	}
	accountID, _ := tok.Extra("stripe_user_id").(string)
	if accountID == "" {
		return "", errors.New("connect token response has no stripe_user_id")
	}
	return accountID, nil
}
