package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog/log"

	"github.com/telemed-health/telemed-api/services"
	"github.com/telemed-health/telemed-api/utils"
)

const (
	localUser   = "user"
	localUserID = "userID"
	localRole   = "role"
)

// Protected verifies the bearer access token and stores the caller's id and
// role in the request locals.
func Protected(secret []byte) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:    secret,
		SigningMethod: "HS256",
		ContextKey:    localUser,
		ErrorHandler:  jwtError,
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals(localUser).(*jwt.Token)
			if !ok {
				return invalidToken(c)
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return invalidToken(c)
			}
			if tt, _ := claims["token_type"].(string); tt != services.TokenTypeAccess {
				return invalidToken(c)
			}

			userID, err := extractUserID(claims)
			if err != nil {
				log.Debug().Err(err).Msg("token without usable user id")
				return invalidToken(c)
			}
			role, _ := claims["role"].(string)

			c.Locals(localUserID, userID)
			c.Locals(localRole, role)
			return c.Next()
		},
	})
}

// UserID returns the authenticated caller, if any.
func UserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(localUserID).(uint)
	return id, ok && id != 0
}

// extractUserID handles the numeric forms a decoded user_id claim can take.
func extractUserID(claims jwt.MapClaims) (uint, error) {
	idVal := claims["user_id"]
	if idVal == nil {
		return 0, fmt.Errorf("no user_id found in claims")
	}

	switch v := idVal.(type) {
	case float64:
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse user_id string: %w", err)
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported user_id type: %T", v)
	}
}

func jwtError(c *fiber.Ctx, err error) error {
	if strings.EqualFold(err.Error(), "missing or malformed JWT") {
		return utils.Detail(c, fiber.StatusUnauthorized, "Authentication credentials were not provided.")
	}
	return invalidToken(c)
}

func invalidToken(c *fiber.Ctx) error {
	return utils.Detail(c, fiber.StatusUnauthorized, "Given token not valid for any token type")
}
