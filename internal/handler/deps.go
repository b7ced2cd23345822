package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"peercall/internal/app/db"
	"peercall/internal/app/signaling"
	"peercall/internal/app/storage"
	"peercall/internal/configs"
)

// AppDeps bundles the dependencies the HTTP layer needs. Everything is
// injected at construction; handlers hold no globals.
type AppDeps struct {
	Relay   *signaling.Relay
	Config  *configs.AppConfig
	Storage storage.StorageService
	DB      *db.Queries
}

// FullAssetURL resolves a stored object key to its public URL.
// An empty key resolves to an empty string.
func (d *AppDeps) FullAssetURL(key string) string {
	if key == "" {
		return ""
	}
	endpoint := strings.TrimSuffix(d.Config.S3Endpoint, "/")
	return fmt.Sprintf("%s/%s/%s", endpoint, d.Config.S3BucketName, key)
}

// newDetachedContext returns a short-lived context for background cleanup
// work that must outlive the originating request.
func newDetachedContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
