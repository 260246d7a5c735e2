package middleware

import (
	"github.com/Marcosotoladev/DhermicaApp-sub000/config"
	"github.com/Marcosotoladev/DhermicaApp-sub000/storage"
	"github.com/gin-gonic/gin"
)

const (
	ClinicKey     = "clinic"
	ImageStoreKey = "image_store"
)

// ClinicMiddleware makes the clinic configuration available through GetClinic.
func ClinicMiddleware(clinic *config.ClinicConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ClinicKey, clinic)
		c.Next()
	}
}

// GetClinic returns the request's clinic configuration, falling back to the
// built-in defaults.
func GetClinic(c *gin.Context) *config.ClinicConfig {
	if v, ok := c.Get(ClinicKey); ok {
		if clinic, ok := v.(*config.ClinicConfig); ok && clinic != nil {
			return clinic
		}
	}
	return config.DefaultClinicConfig()
}

func ImageStoreMiddleware(store storage.ImageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store != nil {
			c.Set(ImageStoreKey, store)
		}
		c.Next()
	}
}

// GetImageStore returns nil when no object storage is configured.
func GetImageStore(c *gin.Context) storage.ImageStore {
	v, ok := c.Get(ImageStoreKey)
	if !ok {
		return nil
	}
	store, _ := v.(storage.ImageStore)
	return store
}
