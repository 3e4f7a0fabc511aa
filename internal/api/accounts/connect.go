package accounts

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"coaching-billing/internal/app/http/middleware"
	"coaching-billing/internal/domain/env"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const (
	connectNonceCookie = "connect_nonce"
	connectStateTTL    = 10 * time.Minute
)

var errBadState = errors.New("invalid connect state")

type connectState struct {
	CompanyID uint   `json:"company_id"`
	Env       string `json:"env"`
	Nonce     string `json:"nonce"`
	jwt.RegisteredClaims
}

func randomNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (h *Handler) signState(tenantID uint, e env.Environment, nonce string) (string, error) {
	claims := connectState{
		CompanyID: tenantID,
		Env:       e.String(),
		Nonce:     nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(connectStateTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.stateSecret)
}

func (h *Handler) parseState(raw string) (*connectState, error) {
	var claims connectState
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return h.stateSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadState, err)
	}
	return &claims, nil
}

// GET /connect/start?env=
func (h *Handler) ConnectStart(c *gin.Context) {
	e, err := env.Parse(c.Query("env"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	nonce, err := randomNonce()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate state"})
		return
	}
	state, err := h.signState(middleware.TenantID(c), e, nonce)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign state"})
		return
	}
	authURL, err := h.connector.AuthCodeURL(e, state)
	if err != nil {
		writeError(c, err, e)
		return
	}

	c.SetCookie(connectNonceCookie, nonce, int(connectStateTTL.Seconds()), "/", "", false, true)
	// The frontend calls this with a bearer token, so it gets the URL rather
	// than a redirect.
	c.JSON(http.StatusOK, gin.H{"url": authURL})
}

func (h *Handler) redirectResult(c *gin.Context, e env.Environment, result string) {
	q := url.Values{}
	q.Set("connect", result)
	if e != "" {
		q.Set("env", e.String())
	}
	c.Redirect(http.StatusFound, h.appURL+"/settings/payments?"+q.Encode())
}

// GET /connect/callback
func (h *Handler) ConnectCallback(c *gin.Context) {
	state, err := h.parseState(c.Query("state"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	nonce, err := c.Cookie(connectNonceCookie)
	if err != nil || nonce != state.Nonce {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	c.SetCookie(connectNonceCookie, "", -1, "/", "", false, true)

	e, err := env.Parse(state.Env)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	if denied := c.Query("error"); denied != "" {
		log.Info().Uint("tenant_id", state.CompanyID).Str("env", e.String()).Str("reason", denied).Msg("Stripe Connect declined")
		h.redirectResult(c, e, "cancelled")
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	ctx := c.Request.Context()
	sub, err := h.connector.Exchange(ctx, e, code)
	if err != nil {
		log.Error().Err(err).Uint("tenant_id", state.CompanyID).Str("env", e.String()).Msg("Stripe Connect exchange failed")
		h.redirectResult(c, e, "error")
		return
	}
	if err := h.registry.SetSubAccount(ctx, state.CompanyID, e, sub); err != nil {
		log.Error().Err(err).Uint("tenant_id", state.CompanyID).Str("sub_account_id", sub).Msg("Storing connected account failed")
		h.redirectResult(c, e, "error")
		return
	}
	log.Info().Uint("tenant_id", state.CompanyID).Str("env", e.String()).Str("sub_account_id", sub).Msg("Stripe account connected")

	// Onboarding may still be incomplete; the webhook catches up later.
	if _, err := h.reconciler.RefreshTenant(ctx, state.CompanyID, e); err != nil {
		log.Warn().Err(err).Uint("tenant_id", state.CompanyID).Str("env", e.String()).Msg("Post-connect refresh failed")
	}
	h.redirectResult(c, e, "connected")
}
