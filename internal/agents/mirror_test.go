package agents

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"voiceboard-backend/internal/database"
	"voiceboard-backend/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Workspace{}, &models.WorkspaceMember{}, &models.Agent{}))

	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })

	return db
}

func remotePayload(id, name string) json.RawMessage {
	return json.RawMessage(`{"agent_id":"` + id + `","agent_name":"` + name + `","voice_id":"v1"}`)
}

func TestImportCreatesMirror(t *testing.T) {
	setupTestDB(t)

	result, err := Import(1, remotePayload("agent_1", "Support Bot"))
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, "agent_1", result.Agent.RetellAgentID)
	assert.Equal(t, "Support Bot", result.Agent.Name)
	assert.Equal(t, "active", result.Agent.Status)
	assert.Equal(t, "v1", result.Agent.Config.Lookup("voice_id"))
}

func TestImportIsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	first, err := Import(1, remotePayload("agent_1", "Support Bot"))
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := Import(1, remotePayload("agent_1", "Renamed Since"))
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Agent.ID, second.Agent.ID)
	// Existing mirror is not mutated by a repeat import
	assert.Equal(t, "Support Bot", second.Agent.Name)

	var count int64
	db.Model(&models.Agent{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestImportSameAgentTwoWorkspaces(t *testing.T) {
	db := setupTestDB(t)

	first, err := Import(1, remotePayload("agent_1", "Support Bot"))
	require.NoError(t, err)
	second, err := Import(2, remotePayload("agent_1", "Support Bot"))
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.True(t, second.Created)

	var count int64
	db.Model(&models.Agent{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestImportWithoutNameUsesDefault(t *testing.T) {
	setupTestDB(t)

	result, err := Import(1, json.RawMessage(`{"agent_id":"agent_x"}`))
	require.NoError(t, err)
	assert.Equal(t, "Unnamed Agent", result.Agent.Name)
}

func TestImportMissingAgentIDFails(t *testing.T) {
	setupTestDB(t)

	_, err := Import(1, json.RawMessage(`{"agent_name":"No ID"}`))
	assert.Error(t, err)
}

func TestListNewestFirst(t *testing.T) {
	db := setupTestDB(t)

	for _, id := range []string{"agent_a", "agent_b", "agent_c"} {
		_, err := Import(1, remotePayload(id, id))
		require.NoError(t, err)
	}
	// Force distinct timestamps; inserts can land in the same tick
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"agent_a", "agent_b", "agent_c"} {
		require.NoError(t, db.Model(&models.Agent{}).Where("retell_agent_id = ?", id).Update("created_at", base.Add(time.Duration(i)*time.Hour)).Error)
	}

	mirrors, err := List(1)
	require.NoError(t, err)
	require.Len(t, mirrors, 3)
	assert.Equal(t, "agent_c", mirrors[0].RetellAgentID)
	assert.Equal(t, "agent_a", mirrors[2].RetellAgentID)
}

func TestListScopedToWorkspace(t *testing.T) {
	setupTestDB(t)

	_, err := Import(1, remotePayload("agent_1", "Mine"))
	require.NoError(t, err)
	_, err = Import(2, remotePayload("agent_2", "Theirs"))
	require.NoError(t, err)

	mirrors, err := List(1)
	require.NoError(t, err)
	require.Len(t, mirrors, 1)
	assert.Equal(t, "agent_1", mirrors[0].RetellAgentID)
}

func TestSyncFromUpdateOverwritesNameAndSnapshotOnly(t *testing.T) {
	db := setupTestDB(t)

	_, err := Import(1, remotePayload("agent_1", "Old Name"))
	require.NoError(t, err)

	updated := json.RawMessage(`{"agent_id":"agent_1","agent_name":"New Name","voice_id":"v2"}`)
	require.NoError(t, SyncFromUpdate(1, "agent_1", updated))

	var agent models.Agent
	require.NoError(t, db.Where("retell_agent_id = ?", "agent_1").First(&agent).Error)
	assert.Equal(t, "New Name", agent.Name)
	assert.Equal(t, "v2", agent.Config.Lookup("voice_id"))
	assert.Equal(t, "active", agent.Status)
}

func TestSyncFromUpdateUnknownMirrorIsNoop(t *testing.T) {
	setupTestDB(t)

	err := SyncFromUpdate(1, "agent_never_imported", json.RawMessage(`{"agent_id":"agent_never_imported","agent_name":"Ghost"}`))
	assert.NoError(t, err)
}

func TestFindByRemoteID(t *testing.T) {
	setupTestDB(t)

	_, err := Import(7, remotePayload("agent_pub", "Public Bot"))
	require.NoError(t, err)

	agent, err := FindByRemoteID("agent_pub")
	require.NoError(t, err)
	assert.EqualValues(t, 7, agent.WorkspaceID)

	_, err = FindByRemoteID("agent_unknown")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
