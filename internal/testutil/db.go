// Package testutil holds helpers shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"coaching-billing/database"
	"coaching-billing/internal/domain/companies"
	"coaching-billing/internal/domain/env"
	"coaching-billing/internal/domain/sessions"
	"coaching-billing/internal/domain/users"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated SQLite database in a temp dir. A single connection
// serializes writers the way row locks do on postgres.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func CreateCompany(t *testing.T, db *gorm.DB, name string) *companies.Company {
	t.Helper()
	c := &companies.Company{Name: name}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}
	return c
}

// ConnectCompany stores a sub-account id and readiness flag for e.
func ConnectCompany(t *testing.T, db *gorm.DB, c *companies.Company, e env.Environment, subAccountID string, ready bool) {
	t.Helper()
	cols := companies.ColumnsFor(e)
	if err := db.Model(&companies.Company{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
		cols.AccountID: subAccountID,
		cols.Ready:     ready,
	}).Error; err != nil {
		t.Fatalf("connect company: %v", err)
	}
}

func CreateUser(t *testing.T, db *gorm.DB, companyID uint, role, email string) *users.User {
	t.Helper()
	u := &users.User{CompanyID: companyID, Name: role, Lastname: "Tester", Email: email, Role: role}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// SetCustomer stores a customer id for e as created under subAccountID.
func SetCustomer(t *testing.T, db *gorm.DB, u *users.User, e env.Environment, subAccountID, customerID string) {
	t.Helper()
	idCol, accountCol := users.CustomerColumns(e)
	if err := db.Model(&users.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
		idCol:      customerID,
		accountCol: subAccountID,
	}).Error; err != nil {
		t.Fatalf("set customer: %v", err)
	}
}

func CreateSession(t *testing.T, db *gorm.DB, companyID uint, coach, client *users.User, serviceType string, status sessions.Status) *sessions.Session {
	t.Helper()
	s := &sessions.Session{
		CompanyID:   companyID,
		CoachID:     coach.ID,
		CoachName:   coach.DisplayName(),
		ClientID:    client.ID,
		ClientName:  client.DisplayName(),
		ClientEmail: client.Email,
		ServiceType: serviceType,
		Status:      status,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}
