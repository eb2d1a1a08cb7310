package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// accessFunc reads the payload of a secret version
type accessFunc func(ctx context.Context, versionName string) ([]byte, error)

// cacheEntry represents a cached secret with expiration
type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// GCPSecretManager reads secrets such as content provider API keys from
// Google Cloud Secret Manager
type GCPSecretManager struct {
	client    *secretmanager.Client
	access    accessFunc
	projectID string
	cache     map[string]*cacheEntry
	cacheMu   sync.RWMutex
	cacheTTL  time.Duration
}

// NewGCPSecretManager creates a new GCP Secret Manager client
func NewGCPSecretManager(ctx context.Context, projectID string) (*GCPSecretManager, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}

	sm := newManager(projectID, func(ctx context.Context, versionName string) ([]byte, error) {
		result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
			Name: versionName,
		})
		if err != nil {
			return nil, err
		}
		return result.Payload.Data, nil
	})
	sm.client = client
	return sm, nil
}

func newManager(projectID string, access accessFunc) *GCPSecretManager {
	return &GCPSecretManager{
		access:    access,
		projectID: projectID,
		cache:     make(map[string]*cacheEntry),
		cacheTTL:  5 * time.Minute,
	}
}

// Close closes the Secret Manager client
func (sm *GCPSecretManager) Close() error {
	if sm.client != nil {
		return sm.client.Close()
	}
	return nil
}

// BuildSecretName constructs the full resource name of a secret.
// Names that are already fully qualified are returned unchanged.
// Format: projects/{project}/secrets/{secret_id}
func (sm *GCPSecretManager) BuildSecretName(secretID string) string {
	if strings.HasPrefix(secretID, "projects/") {
		return secretID
	}
	return fmt.Sprintf("projects/%s/secrets/%s", sm.projectID, sanitizeSecretID(secretID))
}

// GetSecretValue retrieves the latest version of a secret as text
func (sm *GCPSecretManager) GetSecretValue(ctx context.Context, secretID string) (string, error) {
	secretName := sm.BuildSecretName(secretID)

	// Check cache first
	sm.cacheMu.RLock()
	if entry, ok := sm.cache[secretName]; ok && time.Now().Before(entry.expiresAt) {
		sm.cacheMu.RUnlock()
		return entry.value, nil
	}
	sm.cacheMu.RUnlock()

	data, err := sm.access(ctx, secretName+"/versions/latest")
	if err != nil {
		return "", fmt.Errorf("failed to access secret: %w", err)
	}
	value := strings.TrimSpace(string(data))

	// Cache the result
	sm.cacheMu.Lock()
	sm.cache[secretName] = &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(sm.cacheTTL),
	}
	sm.cacheMu.Unlock()

	return value, nil
}

// InvalidateCache removes a secret from the cache
func (sm *GCPSecretManager) InvalidateCache(secretID string) {
	sm.cacheMu.Lock()
	delete(sm.cache, sm.BuildSecretName(secretID))
	sm.cacheMu.Unlock()
}

// ClearCache removes all secrets from the cache
func (sm *GCPSecretManager) ClearCache() {
	sm.cacheMu.Lock()
	sm.cache = make(map[string]*cacheEntry)
	sm.cacheMu.Unlock()
}

// sanitizeSecretID removes or replaces invalid characters for GCP secret IDs
// Secret IDs can only contain alphanumeric characters, hyphens, and underscores
func sanitizeSecretID(input string) string {
	var result strings.Builder
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('-')
		}
	}
	return result.String()
}
