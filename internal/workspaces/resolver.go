package workspaces

import (
	"crypto/rand"
	"log"
	"regexp"
	"strings"

	"voiceboard-backend/internal/database"
	"voiceboard-backend/internal/models"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

const slugSuffixLength = 5

// GenerateSlug builds a URL-safe slug from a workspace name plus a random
// suffix so two workspaces with the same name get distinct slugs.
func GenerateSlug(name string) string {
	base := strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if base == "" {
		base = "workspace"
	}
	return base + "-" + randomSuffix(slugSuffixLength)
}

func randomSuffix(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// Bytes at or above the largest multiple of len(alphabet) are rejected
	// so every character is equally likely.
	limit := byte(256 - 256%len(alphabet))
	out := make([]byte, 0, n)
	buf := make([]byte, 1)
	for len(out) < n {
		rand.Read(buf)
		if buf[0] >= limit {
			continue
		}
		out = append(out, alphabet[int(buf[0])%len(alphabet)])
	}
	return string(out)
}

// ResolveForUser maps an authenticated user to their workspace through the
// membership record. Workspaces created before slugs existed get one
// generated here; the single-column write is best effort and a failure is
// absorbed so the caller still receives the in-memory slug. Last writer
// wins until the write eventually commits.
func ResolveForUser(userID uint) (*models.Workspace, error) {
	var membership models.WorkspaceMember
	if err := database.DB.Where("user_id = ?", userID).Preload("Workspace").First(&membership).Error; err != nil {
		return nil, err
	}

	workspace := membership.Workspace
	if workspace.Slug == "" {
		slug := GenerateSlug(workspace.Name)
		if err := database.DB.Model(&models.Workspace{}).Where("id = ?", workspace.ID).UpdateColumn("slug", slug).Error; err != nil {
			log.Printf("⚠️  Failed to persist slug %q for workspace %d: %v", slug, workspace.ID, err)
		}
		workspace.Slug = slug
	}

	return &workspace, nil
}

// ResolveBySlug looks a workspace up by its public slug for anonymous paths.
func ResolveBySlug(slug string) (*models.Workspace, error) {
	var workspace models.Workspace
	if err := database.DB.Where("slug = ?", slug).First(&workspace).Error; err != nil {
		return nil, err
	}
	return &workspace, nil
}

// OwnedMembership returns the user's OWNER membership, if any.
func OwnedMembership(userID uint) (*models.WorkspaceMember, error) {
	var membership models.WorkspaceMember
	if err := database.DB.Where("user_id = ? AND role = ?", userID, "OWNER").First(&membership).Error; err != nil {
		return nil, err
	}
	return &membership, nil
}

// SaveAPIKey stores the already-encrypted provider credential with a narrow
// single-column update. No versioning; concurrent saves last-writer-win.
func SaveAPIKey(workspaceID uint, encryptedKey string) error {
	return database.DB.Model(&models.Workspace{}).Where("id = ?", workspaceID).UpdateColumn("retell_api_key", encryptedKey).Error
}

// Provision creates the local account record plus its default workspace and
// OWNER membership. Called from the identity webhook, or lazily on first
// authenticated visit when that event was missed.
func Provision(clerkID, email, name string) (*models.User, *models.Workspace, error) {
	user := models.User{ClerkID: clerkID, Email: email, Name: name}
	if err := database.DB.Create(&user).Error; err != nil {
		return nil, nil, err
	}

	displayName := strings.TrimSpace(name)
	if displayName == "" {
		displayName = "My"
	}
	workspaceName := displayName + "'s Workspace"

	workspace := models.Workspace{
		Name:    workspaceName,
		OwnerID: clerkID,
		Slug:    GenerateSlug(workspaceName),
	}
	if err := database.DB.Create(&workspace).Error; err != nil {
		return nil, nil, err
	}

	member := models.WorkspaceMember{
		WorkspaceID: workspace.ID,
		UserID:      user.ID,
		Role:        "OWNER",
	}
	if err := database.DB.Create(&member).Error; err != nil {
		return nil, nil, err
	}

	log.Printf("✅ Provisioned workspace %d for account %s", workspace.ID, clerkID)
	return &user, &workspace, nil
}
