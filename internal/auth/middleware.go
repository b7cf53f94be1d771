package auth

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"voiceboard-backend/internal/models"
	"voiceboard-backend/internal/workspaces"
)

// Middleware authenticates requests with the identity provider's session
// token and maps the external account id to the local user record. An
// account the provisioning webhook never reached is provisioned lazily when
// the token carries an email.
func Middleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Allow OPTIONS requests to pass through for CORS preflight
		if c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No authorization token provided"})
			c.Abort()
			return
		}

		claims, err := ParseToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		if claims.ClerkID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		var user models.User
		if err := db.Where("clerk_id = ?", claims.ClerkID).First(&user).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
				c.Abort()
				return
			}
			if claims.Email == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
				c.Abort()
				return
			}

			// Provisioning webhook was missed; heal on first visit.
			log.Printf("Lazy-provisioning account %s", claims.ClerkID)
			provisioned, _, perr := workspaces.Provision(claims.ClerkID, claims.Email, claims.Name)
			if perr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to provision account"})
				c.Abort()
				return
			}
			user = *provisioned
		}

		c.Set("user_id", user.ID)
		c.Set("clerk_id", user.ClerkID)
		c.Set("email", user.Email)

		c.Next()
	}
}
