package workspaces

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"voiceboard-backend/internal/models"
	"voiceboard-backend/internal/secrets"
)

func sanitizeWorkspace(workspace *models.Workspace) gin.H {
	return gin.H{
		"id":          workspace.ID,
		"name":        workspace.Name,
		"slug":        workspace.Slug,
		"has_api_key": workspace.RetellAPIKey != "",
		"created_at":  workspace.CreatedAt,
		"updated_at":  workspace.UpdatedAt,
	}
}

// HandleGetWorkspace returns the caller's workspace
func HandleGetWorkspace(c *gin.Context) {
	userID := c.GetUint("user_id")

	workspace, err := ResolveForUser(userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "No workspace found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch workspace"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"workspace": sanitizeWorkspace(workspace)})
}

// HandleSetAPIKey stores the provider API key for the caller's workspace.
// Only the OWNER may set it; the key is encrypted before it touches the
// database and the ciphertext is never echoed back.
func HandleSetAPIKey(c *gin.Context) {
	userID := c.GetUint("user_id")

	var req struct {
		APIKey string `json:"api_key" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	membership, err := OwnedMembership(userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "No workspace found for user"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch workspace"})
		}
		return
	}

	encrypted, err := secrets.Encrypt(req.APIKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encrypt API key"})
		return
	}

	if err := SaveAPIKey(membership.WorkspaceID, encrypted); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save API key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key saved successfully"})
}

// HandleGetWorkspaceBySlug returns the public view of a workspace for the
// anonymous agent tester page.
func HandleGetWorkspaceBySlug(c *gin.Context) {
	slug := c.Param("slug")

	workspace, err := ResolveBySlug(slug)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Workspace not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch workspace"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"workspace": gin.H{
			"name": workspace.Name,
			"slug": workspace.Slug,
		},
	})
}
