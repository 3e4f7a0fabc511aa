package middleware

import (
	"net/http"

	"coaching-billing/database"
	"coaching-billing/internal/domain/users"

	"github.com/gin-gonic/gin"
)

// KeyUser holds the *users.User loaded by RequireActiveMember.
const KeyUser = "user"

// RequireActiveMember reloads the caller so removed members and role or
// company changes take effect before their token expires.
func RequireActiveMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint(KeyUserID)
		var user users.User

		if err := database.DB.First(&user, userID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Account not found",
			})
			return
		}

		if user.CompanyID != TenantID(c) || user.Role != c.GetString(KeyRole) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Token is out of date, please sign in again",
			})
			return
		}

		c.Set(KeyUser, &user)
		c.Next()
	}
}

// CurrentUser returns the member loaded by RequireActiveMember.
func CurrentUser(c *gin.Context) *users.User {
	if v, ok := c.Get(KeyUser); ok {
		if u, ok := v.(*users.User); ok {
			return u
		}
	}
	return nil
}
