// Package agents keeps local mirrors of imported remote voice agents and
// exposes the dashboard's agent operations. The remote system is the source
// of truth; a mirror is a cache refreshed on import and successful update.
package agents

import (
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"voiceboard-backend/internal/database"
	"voiceboard-backend/internal/models"
)

const defaultAgentName = "Unnamed Agent"

// ImportResult reports whether a mirror row was created.
type ImportResult struct {
	Created bool
	Agent   models.Agent
}

// Import creates at most one mirror per (workspace, remote agent id). An
// existing row reports Created=false without mutation. Status is seeded
// "active" regardless of remote state and never re-synced afterwards.
func Import(workspaceID uint, remote json.RawMessage) (*ImportResult, error) {
	var fields struct {
		AgentID   string `json:"agent_id"`
		AgentName string `json:"agent_name"`
	}
	if err := json.Unmarshal(remote, &fields); err != nil {
		return nil, err
	}
	if fields.AgentID == "" {
		return nil, errors.New("remote payload missing agent_id")
	}

	var existing models.Agent
	err := database.DB.Where("workspace_id = ? AND retell_agent_id = ?", workspaceID, fields.AgentID).First(&existing).Error
	if err == nil {
		return &ImportResult{Created: false, Agent: existing}, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	name := fields.AgentName
	if name == "" {
		name = defaultAgentName
	}

	agent := models.Agent{
		WorkspaceID:   workspaceID,
		RetellAgentID: fields.AgentID,
		Name:          name,
		Status:        "active",
		Config:        models.JSON(remote),
	}
	if err := database.DB.Create(&agent).Error; err != nil {
		// A concurrent import may land first; the unique pair constraint
		// turns the race into one success and one "already imported".
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if lookupErr := database.DB.Where("workspace_id = ? AND retell_agent_id = ?", workspaceID, fields.AgentID).First(&existing).Error; lookupErr == nil {
				return &ImportResult{Created: false, Agent: existing}, nil
			}
		}
		return nil, err
	}

	return &ImportResult{Created: true, Agent: agent}, nil
}

// List returns a workspace's mirrors, newest first. Single fetch.
func List(workspaceID uint) ([]models.Agent, error) {
	var mirrors []models.Agent
	if err := database.DB.Where("workspace_id = ?", workspaceID).Order("created_at DESC").Find(&mirrors).Error; err != nil {
		return nil, err
	}
	return mirrors, nil
}

// SyncFromUpdate overwrites name and snapshot from a successful remote
// update. Status is local-only and untouched. A mirror that was never
// imported is a no-op.
func SyncFromUpdate(workspaceID uint, remoteAgentID string, updated json.RawMessage) error {
	name := models.JSON(updated).Lookup("agent_name")
	if name == "" {
		name = defaultAgentName
	}

	return database.DB.Model(&models.Agent{}).
		Where("workspace_id = ? AND retell_agent_id = ?", workspaceID, remoteAgentID).
		Updates(map[string]interface{}{
			"name":   name,
			"config": models.JSON(updated),
		}).Error
}

// FindByRemoteID resolves a mirror from a remote agent id alone. This backs
// the unauthenticated call-session path: remote id → mirror → workspace →
// credential, with no identity resolution involved.
func FindByRemoteID(remoteAgentID string) (*models.Agent, error) {
	var agent models.Agent
	if err := database.DB.Where("retell_agent_id = ?", remoteAgentID).First(&agent).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}
