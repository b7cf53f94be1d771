package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"voiceboard-backend/internal/database"
	"voiceboard-backend/internal/metrics"
	"voiceboard-backend/internal/models"
	"voiceboard-backend/internal/workspaces"
	"voiceboard-backend/pkg/utils"
)

const timestampTolerance = 5 * time.Minute

// HandleIdentityEvent receives signed account notifications from the
// identity provider and provisions a workspace on "user.created". The
// provider may redeliver events, so provisioning is idempotent per account.
func HandleIdentityEvent(c *gin.Context) {
	secret := os.Getenv("CLERK_WEBHOOK_SECRET")
	if secret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook secret not configured"})
		return
	}

	msgID := c.GetHeader("svix-id")
	timestamp := c.GetHeader("svix-timestamp")
	signature := c.GetHeader("svix-signature")
	if msgID == "" || timestamp == "" || signature == "" {
		metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing signature headers"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	if !verifySignature(secret, msgID, timestamp, signature, body) {
		log.Printf("⚠️  Rejected identity webhook %s from %s: signature verification failed", msgID, utils.GetClientIP(c))
		metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	var event struct {
		Type string `json:"type"`
		Data struct {
			ID             string `json:"id"`
			EmailAddresses []struct {
				EmailAddress string `json:"email_address"`
			} `json:"email_addresses"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	if event.Type != "user.created" {
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"message": "Event ignored"})
		return
	}

	var existing models.User
	if err := database.DB.Where("clerk_id = ?", event.Data.ID).First(&existing).Error; err == nil {
		metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
		c.JSON(http.StatusOK, gin.H{"message": "Account already provisioned"})
		return
	}

	email := ""
	if len(event.Data.EmailAddresses) > 0 {
		email = event.Data.EmailAddresses[0].EmailAddress
	}
	name := strings.TrimSpace(event.Data.FirstName + " " + event.Data.LastName)

	if _, _, err := workspaces.Provision(event.Data.ID, email, name); err != nil {
		log.Printf("⚠️  Failed to provision account %s from webhook: %v", event.Data.ID, err)
		utils.CaptureSentryError(c, err, "identity webhook provisioning", nil)
		metrics.WebhookEvents.WithLabelValues("failed").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to provision account"})
		return
	}

	metrics.WebhookEvents.WithLabelValues("provisioned").Inc()
	c.JSON(http.StatusOK, gin.H{"message": "Webhook received"})
}

// verifySignature checks the svix scheme: base64(HMAC-SHA256(key,
// "id.timestamp.body")) where the key is the base64 payload of a
// "whsec_"-prefixed secret. The signature header may list several
// space-separated "v1,<sig>" candidates; any match passes.
func verifySignature(secret, msgID, timestamp, signatureHeader string, body []byte) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := time.Since(time.Unix(ts, 0))
	if age > timestampTolerance || age < -timestampTolerance {
		return false
	}

	key := []byte(secret)
	if trimmed, ok := strings.CutPrefix(secret, "whsec_"); ok {
		if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
			key = decoded
		}
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID + "." + timestamp + "."))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, part := range strings.Fields(signatureHeader) {
		candidate := part
		if i := strings.IndexByte(part, ','); i >= 0 {
			candidate = part[i+1:]
		}
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return true
		}
	}
	return false
}
