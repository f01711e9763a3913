// Package handlers maps HTTP routes onto the auth and diagnosis services.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/eye-diagnosis/internal/auth"
	"github.com/example/eye-diagnosis/internal/config"
	"github.com/example/eye-diagnosis/internal/diagnosis"
	"github.com/example/eye-diagnosis/internal/store"
)

// MaxUploadSize caps the /predict request body.
const MaxUploadSize = config.MaxUploadSize

// AuthService is the slice of the auth service the routes need.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (string, error)
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// DiagnosisService is the slice of the diagnosis service the routes need.
type DiagnosisService interface {
	Diagnose(ctx context.Context, uploads []diagnosis.Upload, patientID string) ([]diagnosis.ItemResult, error)
	History(ctx context.Context, patientID string) ([]store.HistoryRecord, error)
	Metrics(ctx context.Context) (*diagnosis.MetricsSummary, error)
	Health(ctx context.Context) error
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type historyItem struct {
	ID         string           `json:"_id"`
	PatientID  string           `json:"patient_id"`
	Filename   string           `json:"filename"`
	Prediction store.Prediction `json:"prediction"`
	Timestamp  string           `json:"timestamp"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router. jwtSecret signs
// the tokens issued at login; authRequired protects the diagnosis routes.
func RegisterRoutes(router *gin.Engine, authSvc AuthService, diagSvc DiagnosisService, jwtSecret string, authRequired gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		if err := diagSvc.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.POST("/signup", func(c *gin.Context) {
		var req signupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		userID, err := authSvc.Register(c.Request.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrValidation), errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrConflict):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "user_id": userID})
	})

	router.POST("/login", func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Username == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
			return
		}

		userID, err := authSvc.Authenticate(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		token, err := auth.IssueToken(jwtSecret, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Login successful", "user_id": userID, "token": token})
	})

	router.POST("/predict", limitBody, authRequired, func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
			return
		}

		headers := form.File["file"]
		uploads := make([]diagnosis.Upload, 0, len(headers))
		for _, fh := range headers {
			src, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open uploaded file"})
				return
			}
			data, err := io.ReadAll(src)
			src.Close()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
				return
			}
			uploads = append(uploads, diagnosis.Upload{Filename: fh.Filename, Data: data})
		}

		results, err := diagSvc.Diagnose(c.Request.Context(), uploads, c.PostForm("patient_id"))
		if err != nil {
			if errors.Is(err, diagnosis.ErrNoFiles) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, results)
	})

	router.GET("/patient_history/:patient_id", authRequired, func(c *gin.Context) {
		patientID := c.Param("patient_id")
		if patientID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Patient ID is required"})
			return
		}

		records, err := diagSvc.History(c.Request.Context(), patientID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
			return
		}

		items := make([]historyItem, 0, len(records))
		for _, rec := range records {
			items = append(items, historyItem{
				ID:         rec.ID.Hex(),
				PatientID:  rec.PatientID,
				Filename:   rec.Filename,
				Prediction: rec.Prediction,
				Timestamp:  rec.Timestamp.UTC().Format(time.RFC3339),
			})
		}
		c.JSON(http.StatusOK, items)
	})

	router.GET("/metrics", authRequired, func(c *gin.Context) {
		summary, err := diagSvc.Metrics(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

// limitBody caps the request body before multipart parsing touches it.
func limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)
	c.Next()
}
