package agents

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"voiceboard-backend/internal/database"
	"voiceboard-backend/internal/models"
	"voiceboard-backend/internal/retell"
	"voiceboard-backend/internal/secrets"
	"voiceboard-backend/internal/workspaces"
	"voiceboard-backend/pkg/utils"
)

var gateway = retell.NewClient()

// SetGateway swaps the provider client. Tests point it at a fake server.
func SetGateway(c *retell.Client) {
	gateway = c
}

func sanitizeAgent(agent models.Agent) gin.H {
	return gin.H{
		"id":              agent.ID,
		"retell_agent_id": agent.RetellAgentID,
		"name":            agent.Name,
		"status":          agent.Status,
		"config":          agent.Config,
		"created_at":      agent.CreatedAt,
		"updated_at":      agent.UpdatedAt,
	}
}

// resolveCredential resolves the caller's workspace and decrypts its
// provider credential. Every gateway-backed handler goes through here so a
// missing credential fails before any network I/O.
func resolveCredential(c *gin.Context) (*models.Workspace, string, bool) {
	userID := c.GetUint("user_id")

	workspace, err := workspaces.ResolveForUser(userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "No workspace found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch workspace"})
		}
		return nil, "", false
	}

	if workspace.RetellAPIKey == "" {
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "Retell API key not configured"})
		return nil, "", false
	}

	apiKey, err := secrets.Decrypt(workspace.RetellAPIKey)
	if err != nil {
		utils.HandleError(err, "decrypt workspace credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decrypt API key"})
		return nil, "", false
	}

	return workspace, apiKey, true
}

func respondProviderError(c *gin.Context, err error) {
	var providerErr *retell.ProviderError
	if errors.As(err, &providerErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": providerErr.Error()})
		return
	}
	if errors.Is(err, retell.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Retell API unreachable"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// normalizeAgentList accepts both raw shapes the provider returns for the
// list endpoint: a bare array, or an object wrapping one under "agents".
func normalizeAgentList(raw json.RawMessage) []json.RawMessage {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var wrapped struct {
		Agents []json.RawMessage `json:"agents"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Agents != nil {
		return wrapped.Agents
	}

	return []json.RawMessage{}
}

// HandleListRemoteAgents returns the provider's agents for the caller's
// workspace, normalized into a flat list.
func HandleListRemoteAgents(c *gin.Context) {
	_, apiKey, ok := resolveCredential(c)
	if !ok {
		return
	}

	raw, err := gateway.ListAgents(apiKey)
	if err != nil {
		respondProviderError(c, err)
		return
	}

	list := normalizeAgentList(raw)
	c.JSON(http.StatusOK, gin.H{
		"agents": list,
		"total":  len(list),
	})
}

// HandleGetRemoteAgent returns the raw remote representation of one agent.
func HandleGetRemoteAgent(c *gin.Context) {
	_, apiKey, ok := resolveCredential(c)
	if !ok {
		return
	}

	raw, err := gateway.GetAgent(apiKey, c.Param("id"))
	if err != nil {
		respondProviderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"agent": raw})
}

// HandleUpdateRemoteAgent patches the remote agent and writes the response
// through to the mirror. The two writes are sequential, not transactional:
// if the local write fails the remote still holds the new state and the
// mirror stays stale until the next successful update or import.
func HandleUpdateRemoteAgent(c *gin.Context) {
	workspace, apiKey, ok := resolveCredential(c)
	if !ok {
		return
	}

	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	agentID := c.Param("id")
	updated, err := gateway.UpdateAgent(apiKey, agentID, patch)
	if err != nil {
		respondProviderError(c, err)
		return
	}

	if err := SyncFromUpdate(workspace.ID, agentID, updated); err != nil {
		log.Printf("⚠️  Remote agent %s updated but mirror sync failed: %v", agentID, err)
		utils.CaptureSentryError(c, err, "agent mirror sync", map[string]interface{}{
			"agent_id": agentID,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Agent updated remotely but the local copy failed to sync"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"agent": updated})
}

// HandleGetLLM returns the language-model configuration linked to an agent.
func HandleGetLLM(c *gin.Context) {
	_, apiKey, ok := resolveCredential(c)
	if !ok {
		return
	}

	raw, err := gateway.GetLLM(apiKey, c.Param("id"))
	if err != nil {
		respondProviderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"llm": raw})
}

// HandleUpdateLLM patches a linked language-model configuration.
func HandleUpdateLLM(c *gin.Context) {
	_, apiKey, ok := resolveCredential(c)
	if !ok {
		return
	}

	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := gateway.UpdateLLM(apiKey, c.Param("id"), patch)
	if err != nil {
		respondProviderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"llm": updated})
}

// HandleImportAgent imports a remote agent into the caller's workspace. The
// gateway confirms the agent exists and its response seeds the mirror, so
// the snapshot is provider-authoritative. Importing twice is a no-op.
func HandleImportAgent(c *gin.Context) {
	workspace, apiKey, ok := resolveCredential(c)
	if !ok {
		return
	}

	var req struct {
		AgentID string `json:"agent_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	remote, err := gateway.GetAgent(apiKey, req.AgentID)
	if err != nil {
		respondProviderError(c, err)
		return
	}

	result, err := Import(workspace.ID, remote)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import agent"})
		return
	}

	message := "Agent imported successfully"
	if !result.Created {
		message = "Agent already imported"
	}

	c.JSON(http.StatusOK, gin.H{
		"created": result.Created,
		"message": message,
		"agent":   sanitizeAgent(result.Agent),
	})
}

// HandleListAgents returns the workspace's imported mirrors, newest first.
func HandleListAgents(c *gin.Context) {
	userID := c.GetUint("user_id")

	workspace, err := workspaces.ResolveForUser(userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "No workspace found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch workspace"})
		}
		return
	}

	mirrors, err := List(workspace.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch agents"})
		return
	}

	sanitized := make([]gin.H, len(mirrors))
	for i, agent := range mirrors {
		sanitized[i] = sanitizeAgent(agent)
	}

	c.JSON(http.StatusOK, gin.H{
		"agents": sanitized,
		"total":  len(mirrors),
	})
}

// HandleCreateWebCall requests a short-lived access token so the owner can
// test an agent from the dashboard.
func HandleCreateWebCall(c *gin.Context) {
	_, apiKey, ok := resolveCredential(c)
	if !ok {
		return
	}

	raw, err := gateway.CreateWebCall(apiKey, c.Param("id"))
	if err != nil {
		respondProviderError(c, err)
		return
	}

	c.JSON(http.StatusOK, raw)
}

// HandleGetPublicAgent returns the public view of an imported agent for the
// anonymous tester page, scoped to the workspace owning the slug.
func HandleGetPublicAgent(c *gin.Context) {
	workspace, err := workspaces.ResolveBySlug(c.Param("slug"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Workspace not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch workspace"})
		}
		return
	}

	var agent models.Agent
	if err := database.DB.Where("workspace_id = ? AND retell_agent_id = ?", workspace.ID, c.Param("agentId")).First(&agent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch agent"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"agent": gin.H{
			"retell_agent_id": agent.RetellAgentID,
			"name":            agent.Name,
		},
	})
}

// HandleCreatePublicWebCall hands an access token to an unauthenticated
// visitor. The workspace is resolved in reverse from the mirror's remote
// agent id; no identity resolution is involved, and an unknown id fails
// before any outbound call. Anyone holding a valid remote agent id gets a
// token.
func HandleCreatePublicWebCall(c *gin.Context) {
	agent, err := FindByRemoteID(c.Param("agentId"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch agent"})
		}
		return
	}

	var workspace models.Workspace
	if err := database.DB.First(&workspace, agent.WorkspaceID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch workspace"})
		return
	}

	if workspace.RetellAPIKey == "" {
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "Retell API key not configured"})
		return
	}

	apiKey, err := secrets.Decrypt(workspace.RetellAPIKey)
	if err != nil {
		utils.HandleError(err, "decrypt workspace credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decrypt API key"})
		return
	}

	raw, err := gateway.CreateWebCall(apiKey, agent.RetellAgentID)
	if err != nil {
		respondProviderError(c, err)
		return
	}

	c.JSON(http.StatusOK, raw)
}
