package admin

import (
	"net/http"
	"strconv"
	"time"

	"coaching-billing/database"
	"coaching-billing/internal/app/http/middleware"
	"coaching-billing/internal/domain/billing"
	"coaching-billing/internal/domain/env"
	"coaching-billing/internal/domain/sessions"
	"coaching-billing/internal/domain/users"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type RevenueLine struct {
	Env           string `json:"env"`
	Currency      string `json:"currency"`
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amountDisplay"`
	Charges       int64  `json:"charges"`
}

type AdminStats struct {
	MembersByRole   map[string]int64 `json:"membersByRole"`
	SessionsByState map[string]int64 `json:"sessionsByStatus"`
	LockedSessions  int64            `json:"lockedSessions"`
	FailedCharges   int64            `json:"failedCharges30d"`
	Revenue         []RevenueLine    `json:"revenue"`
	RecentRevenue   []RevenueLine    `json:"revenue30d"`
}

type groupCount struct {
	Label string
	Count int64
}

func revenue(tenantID uint, since *time.Time) ([]RevenueLine, error) {
	type row struct {
		Env      string
		Currency string
		Total    int64
		Charges  int64
	}
	q := database.DB.Model(&billing.BillingRecord{}).
		Select("env, currency, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS charges").
		Where("company_id = ? AND outcome = ?", tenantID, billing.OutcomeSucceeded)
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	var rows []row
	if err := q.Group("env, currency").Order("env, currency").Scan(&rows).Error; err != nil {
		return nil, err
	}

	lines := make([]RevenueLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, RevenueLine{
			Env:           r.Env,
			Currency:      r.Currency,
			Amount:        r.Total,
			AmountDisplay: billing.FormatAmount(r.Total, r.Currency),
			Charges:       r.Charges,
		})
	}
	return lines, nil
}

// AdminDashboard summarizes the tenant: members, the session pipeline and
// money collected per environment.
func AdminDashboard(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	stats := AdminStats{
		MembersByRole:   map[string]int64{},
		SessionsByState: map[string]int64{},
	}

	var roles []groupCount
	if err := database.DB.Model(&users.User{}).
		Select("role AS label, COUNT(*) AS count").
		Where("company_id = ?", tenantID).
		Group("role").
		Scan(&roles).Error; err != nil {
		log.Error().Err(err).Uint("tenant_id", tenantID).Msg("dashboard members")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}
	for _, r := range roles {
		stats.MembersByRole[r.Label] = r.Count
	}

	var states []groupCount
	if err := database.DB.Model(&sessions.Session{}).
		Select("status AS label, COUNT(*) AS count").
		Where("company_id = ? AND archived = ?", tenantID, false).
		Group("status").
		Scan(&states).Error; err != nil {
		log.Error().Err(err).Uint("tenant_id", tenantID).Msg("dashboard sessions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}
	for _, s := range states {
		stats.SessionsByState[s.Label] = s.Count
	}

	database.DB.Model(&sessions.Session{}).
		Where("company_id = ? AND charge_lock IS NOT NULL", tenantID).
		Count(&stats.LockedSessions)

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	database.DB.Model(&billing.BillingRecord{}).
		Where("company_id = ? AND outcome = ? AND created_at >= ?", tenantID, billing.OutcomeFailed, thirtyDaysAgo).
		Count(&stats.FailedCharges)

	var err error
	if stats.Revenue, err = revenue(tenantID, nil); err != nil {
		log.Error().Err(err).Uint("tenant_id", tenantID).Msg("dashboard revenue")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}
	if stats.RecentRevenue, err = revenue(tenantID, &thirtyDaysAgo); err != nil {
		log.Error().Err(err).Uint("tenant_id", tenantID).Msg("dashboard revenue")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListLockedSessions is the operator's worklist: sessions whose charge
// outcome has to be checked against Stripe before the lock can be cleared.
func ListLockedSessions(c *gin.Context) {
	var list []sessions.Session
	if err := database.DB.
		Where("company_id = ? AND charge_lock IS NOT NULL", middleware.TenantID(c)).
		Order("charge_locked_at ASC").
		Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load sessions"})
		return
	}
	c.JSON(http.StatusOK, list)
}

type MemberDetails struct {
	ID              uint             `json:"id"`
	Name            string           `json:"name"`
	Lastname        string           `json:"lastname"`
	Email           string           `json:"email"`
	Role            string           `json:"role"`
	AuthProvider    string           `json:"authProvider"`
	PaymentProfiles map[string]bool  `json:"paymentProfiles,omitempty"`
	Sessions        map[string]int64 `json:"sessionsByStatus"`
	CreatedAt       time.Time        `json:"createdAt"`
}

func GetMemberDetails(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member id"})
		return
	}

	var u users.User
	if err := database.DB.Preload("Company").Where("id = ? AND company_id = ?", id, tenantID).First(&u).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	details := MemberDetails{
		ID:           u.ID,
		Name:         u.Name,
		Lastname:     u.Lastname,
		Email:        u.Email,
		Role:         u.Role,
		AuthProvider: u.AuthProvider,
		Sessions:     map[string]int64{},
		CreatedAt:    u.CreatedAt,
	}

	column := ""
	switch u.Role {
	case users.RoleClient:
		column = "client_id"
		details.PaymentProfiles = map[string]bool{}
		for _, e := range env.All() {
			details.PaymentProfiles[e.String()] = u.CustomerRef(e, u.Company.Account(e).SubAccountID) != ""
		}
	case users.RoleCoach:
		column = "coach_id"
	}
	if column != "" {
		var counts []groupCount
		if err := database.DB.Model(&sessions.Session{}).
			Select("status AS label, COUNT(*) AS count").
			Where("company_id = ? AND "+column+" = ?", tenantID, u.ID).
			Group("status").
			Scan(&counts).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load sessions"})
			return
		}
		for _, s := range counts {
			details.Sessions[s.Label] = s.Count
		}
	}

	c.JSON(http.StatusOK, details)
}
