package filelink

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the HTTP router serving signed file links
func NewRouter(service *Service, logger *logrus.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/files", func(c *gin.Context) {
		path := c.Query("path")
		sig := c.Query("sig")
		expiresRaw := c.Query("expires")
		if path == "" || sig == "" || expiresRaw == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing signature parameters"})
			return
		}

		expires, err := strconv.ParseInt(expiresRaw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expires parameter"})
			return
		}

		abs, err := service.Validate(path, expires, sig, time.Now())
		if err != nil {
			logger.WithError(err).WithField("path", path).Warn("Rejected file link request")
			status := http.StatusForbidden
			if errors.Is(err, ErrNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": "invalid or expired link"})
			return
		}

		c.FileAttachment(abs, path)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	return router
}
