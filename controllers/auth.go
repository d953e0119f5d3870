package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/telemed-health/telemed-api/db"
	"github.com/telemed-health/telemed-api/middleware"
	"github.com/telemed-health/telemed-api/models"
	"github.com/telemed-health/telemed-api/services"
	"github.com/telemed-health/telemed-api/utils"
)

const (
	noActiveAccountDetail = "No active account found with the given credentials"
	invalidTokenDetail    = "Token is invalid or expired"
)

// AuthController serves the OTP and password token endpoints.
type AuthController struct {
	OTP    *services.OTPService
	Tokens *services.TokenIssuer
	// ExposeCode returns the issued code in the request-otp response.
	ExposeCode bool
}

type requestOTPInput struct {
	Username string `json:"username" form:"username"`
}

type verifyOTPInput struct {
	Username string `json:"username" form:"username"`
	Code     string `json:"code" form:"code"`
}

type tokenInput struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type refreshInput struct {
	Refresh string `json:"refresh" form:"refresh"`
}

// RequestOTP godoc
// @Summary Issue a one-time password
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/auth/request-otp/ [post]
func (a *AuthController) RequestOTP(c *fiber.Ctx) error {
	input := new(requestOTPInput)
	if err := c.BodyParser(input); err != nil && len(c.Body()) > 0 {
		return utils.Detail(c, fiber.StatusBadRequest, "Cannot parse request body")
	}

	issued, err := a.OTP.RequestOTP(c.UserContext(), input.Username)
	if err != nil {
		return respondError(c, err)
	}

	resp := fiber.Map{"detail": "OTP sent"}
	if a.ExposeCode {
		resp["dev_otp"] = issued.Code
	}
	return c.JSON(resp)
}

// VerifyOTP godoc
// @Summary Exchange a one-time password for tokens
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} services.VerifyResult
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/auth/verify-otp/ [post]
func (a *AuthController) VerifyOTP(c *fiber.Ctx) error {
	input := new(verifyOTPInput)
	if err := c.BodyParser(input); err != nil && len(c.Body()) > 0 {
		return utils.Detail(c, fiber.StatusBadRequest, "Cannot parse request body")
	}

	result, err := a.OTP.VerifyOTP(c.UserContext(), input.Username, input.Code)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// ObtainToken checks a username/password pair and returns a token pair.
func (a *AuthController) ObtainToken(c *fiber.Ctx) error {
	input := new(tokenInput)
	if err := c.BodyParser(input); err != nil && len(c.Body()) > 0 {
		return utils.Detail(c, fiber.StatusBadRequest, "Cannot parse request body")
	}
	if input.Username == "" || input.Password == "" {
		return utils.Detail(c, fiber.StatusBadRequest, "username and password required")
	}

	var user models.User
	err := db.DB.WithContext(c.UserContext()).
		Where("username = ? AND is_active = ?", input.Username, true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.Detail(c, fiber.StatusUnauthorized, noActiveAccountDetail)
	}
	if err != nil {
		return respondError(c, services.Internal("failed to load user", err))
	}
	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)) != nil {
		return utils.Detail(c, fiber.StatusUnauthorized, noActiveAccountDetail)
	}

	pair, err := a.Tokens.Issue(&user)
	if err != nil {
		return respondError(c, services.Internal("failed to issue tokens", err))
	}
	return c.JSON(pair)
}

// RefreshToken exchanges a refresh token for a new access token.
func (a *AuthController) RefreshToken(c *fiber.Ctx) error {
	input := new(refreshInput)
	if err := c.BodyParser(input); err != nil && len(c.Body()) > 0 {
		return utils.Detail(c, fiber.StatusBadRequest, "Cannot parse request body")
	}
	if input.Refresh == "" {
		return utils.Detail(c, fiber.StatusBadRequest, "refresh is required")
	}

	access, err := a.Tokens.Refresh(input.Refresh)
	if err != nil {
		return utils.Detail(c, fiber.StatusUnauthorized, invalidTokenDetail)
	}
	return c.JSON(fiber.Map{"access": access})
}

// Me returns the authenticated user.
func (a *AuthController) Me(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Detail(c, fiber.StatusUnauthorized, "Authentication credentials were not provided.")
	}

	var user models.User
	err := db.DB.WithContext(c.UserContext()).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.Detail(c, fiber.StatusUnauthorized, "User not found")
	}
	if err != nil {
		return respondError(c, services.Internal("failed to load user", err))
	}
	return c.JSON(user)
}
