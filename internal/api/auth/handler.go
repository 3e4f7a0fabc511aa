package auth

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"coaching-billing/config"
	"coaching-billing/database"
	"coaching-billing/internal/app/http/middleware"
	"coaching-billing/internal/domain/companies"
	"coaching-billing/internal/domain/users"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func isPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter := false
	hasDigit := false
	for _, c := range password {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
			hasLetter = true
		case '0' <= c && c <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func isEmailValid(email string) bool {
	return emailPattern.MatchString(email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (*string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	s := string(hashed)
	return &s, nil
}

// Register onboards a company together with its first admin.
func Register(c *gin.Context) {
	var input struct {
		Company  string `json:"company" binding:"required"`
		Name     string `json:"name" binding:"required"`
		Lastname string `json:"lastname" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input.Email = normalizeEmail(input.Email)
	if !isPasswordStrong(input.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters long and contain both letters and numbers"})
		return
	}
	if !isEmailValid(input.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
		return
	}

	hashed, err := hashPassword(input.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	var admin users.User
	err = database.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		company := companies.Company{Name: strings.TrimSpace(input.Company)}
		if err := tx.Create(&company).Error; err != nil {
			return err
		}
		admin = users.User{
			CompanyID:    company.ID,
			Name:         input.Name,
			Lastname:     input.Lastname,
			Email:        input.Email,
			Password:     hashed,
			AuthProvider: "local",
			Role:         users.RoleAdmin,
		}
		return tx.Create(&admin).Error
	})
	if err != nil {
		log.Warn().Err(err).Str("email", input.Email).Msg("Registration failed")
		c.JSON(http.StatusConflict, gin.H{"error": "Email may already exist"})
		return
	}

	token, err := issueAppJWT(admin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}
	log.Info().Uint("tenant_id", admin.CompanyID).Uint("user_id", admin.ID).Msg("Company registered")
	c.JSON(http.StatusCreated, gin.H{"token": token, "companyId": admin.CompanyID, "userId": admin.ID})
}

func Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user users.User
	err := database.DB.Where("email = ?", normalizeEmail(input.Email)).First(&user).Error
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if user.Password == nil || *user.Password == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "This account uses Google sign-in"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	tokenString, err := issueAppJWT(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tokenString})
}

// AddMember lets an admin add a coach, client, billing user or admin to
// their company. Members without a password sign in with Google.
func AddMember(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required"`
		Lastname string `json:"lastname"`
		Email    string `json:"email" binding:"required,email"`
		Role     string `json:"role" binding:"required"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !users.ValidRole(input.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be one of admin, coach, client, billing"})
		return
	}
	input.Email = normalizeEmail(input.Email)
	if !isEmailValid(input.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
		return
	}

	member := users.User{
		CompanyID:    middleware.TenantID(c),
		Name:         input.Name,
		Lastname:     input.Lastname,
		Email:        input.Email,
		AuthProvider: "google",
		Role:         input.Role,
	}
	if input.Password != "" {
		if !isPasswordStrong(input.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters long and contain both letters and numbers"})
			return
		}
		hashed, err := hashPassword(input.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		member.Password = hashed
		member.AuthProvider = "local"
	}

	if err := database.DB.Create(&member).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email may already exist"})
		return
	}
	c.JSON(http.StatusCreated, MemberDTO{
		ID:       member.ID,
		Name:     member.Name,
		Lastname: member.Lastname,
		Email:    member.Email,
		Role:     member.Role,
	})
}

type MemberDTO struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Lastname string `json:"lastname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// ListMembers returns the company's members, optionally filtered by role.
func ListMembers(c *gin.Context) {
	q := database.DB.Where("company_id = ?", middleware.TenantID(c))
	if role := c.Query("role"); role != "" {
		if !users.ValidRole(role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
			return
		}
		q = q.Where("role = ?", role)
	}

	var list []users.User
	if err := q.Order("lastname ASC, name ASC").Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load members"})
		return
	}
	out := make([]MemberDTO, 0, len(list))
	for _, u := range list {
		out = append(out, MemberDTO{ID: u.ID, Name: u.Name, Lastname: u.Lastname, Email: u.Email, Role: u.Role})
	}
	c.JSON(http.StatusOK, out)
}

func ChangePassword(c *gin.Context) {
	userID := c.GetUint(middleware.KeyUserID)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var body struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if !isPasswordStrong(body.NewPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "New password must be at least 8 characters with letters and numbers"})
		return
	}

	var user users.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	if user.Password == nil || *user.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "This account does not have a password. Sign in with Google.",
		})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(body.OldPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Old password is incorrect"})
		return
	}

	hashed, err := hashPassword(body.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	if err := database.DB.Model(&users.User{}).Where("id = ?", user.ID).Update("password", *hashed).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// issueAppJWT signs the API token. company_id scopes every request.
func issueAppJWT(user users.User) (string, error) {
	if user.CompanyID == 0 {
		return "", errors.New("user has no company")
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    user.ID,
		"email":      user.Email,
		"role":       user.Role,
		"company_id": user.CompanyID,
		"exp":        time.Now().Add(24 * time.Hour).Unix(),
	})
	return t.SignedString([]byte(config.JWT_SECRET))
}
