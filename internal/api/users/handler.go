package users

import (
	"net/http"

	"coaching-billing/database"
	"coaching-billing/internal/app/http/middleware"
	"coaching-billing/internal/domain/users"

	"github.com/gin-gonic/gin"
)

func GetCurrentUser(c *gin.Context) {
	userID := c.GetUint(middleware.KeyUserID)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var user users.User
	if err := database.DB.
		Preload("Company").
		Where("id = ? AND company_id = ?", userID, middleware.TenantID(c)).
		First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, MeResponse{
		User:    BuildUserDTO(user),
		Company: BuildCompanyDTO(user.Company, user.Role),
		Access:  BuildAccessDTOs(user.Company, user.Role),
	})
}
