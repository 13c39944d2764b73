package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/config"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/events"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/logger"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/middleware"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/models"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/utils"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	DB     *gorm.DB
	Cfg    *config.Config
	Events events.Publisher
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, publisher events.Publisher) *AuthHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &AuthHandler{DB: db, Cfg: cfg, Events: publisher}
}

// RegisterRequest represents the request body for practice registration.
type RegisterRequest struct {
	Username     string `json:"username" binding:"required,min=3,max=100"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	PracticeName string `json:"practice_name" binding:"max=255"`
}

// Register handles practice registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PracticeName: req.PracticeName,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password: "+err.Error())
		return
	}

	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).
			Where("username = ? OR email = ?", req.Username, req.Email).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return models.ErrUserExists
		}
		return tx.Create(&user).Error
	})
	if errors.Is(err, models.ErrUserExists) || errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.BadRequest(c, "User with this username or email already exists")
		return
	}
	if err != nil {
		utils.InternalServerError(c, "Failed to create user: "+err.Error())
		return
	}

	utils.Created(c, "User registered successfully", user.Sanitize())
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken string               `json:"access_token"`
	TokenType   string               `json:"token_type"`
	ExpiresAt   time.Time            `json:"expires_at"`
	User        models.UserSanitized `json:"user"`
}

// Login handles login with username and password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Invalid username or password")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid username or password")
		return
	}

	token, expiresAt, err := utils.GenerateAccessToken(&user, h.Cfg)
	if err != nil {
		utils.InternalServerError(c, "Failed to generate token: "+err.Error())
		return
	}

	utils.Success(c, "Login successful", LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt.UTC(),
		User:        user.Sanitize(),
	})
}

// GetProfile handles fetching the currently authenticated practice.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User profile not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// DeleteAccount removes the authenticated practice and all of its data.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	ctx := c.Request.Context()
	res, err := models.DeleteTenant(ctx, h.DB, tenantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.NotFound(c, "User profile not found")
		return
	}
	if err != nil {
		respondError(c, "delete account failed", err)
		return
	}

	publishCleared(c, h.Events, tenantID, res)
	utils.Success(c, "Account deleted", res)
}

func publishCleared(c *gin.Context, publisher events.Publisher, tenantID uint, res models.ClearResult) {
	ctx := c.Request.Context()
	err := publisher.Publish(ctx, events.Event{
		Type:           events.TypeTenantCleared,
		TenantID:       tenantID,
		RecordsDeleted: res.PatientsDeleted + res.PredictionsDeleted + res.PastAppointmentsDeleted,
		At:             time.Now().UTC(),
	})
	if err != nil {
		logger.FromContext(ctx).Warn("publish clear event failed", zap.Error(err))
	}
}
