package controllers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/telemed-health/telemed-api/db"
	"github.com/telemed-health/telemed-api/models"
	"github.com/telemed-health/telemed-api/services"
)

type userInput struct {
	Username  *string      `json:"username"`
	Email     *string      `json:"email"`
	FirstName *string      `json:"first_name"`
	LastName  *string      `json:"last_name"`
	Role      *models.Role `json:"role"`
	IsActive  *bool        `json:"is_active"`
	IsStaff   *bool        `json:"is_staff"`
	Password  *string      `json:"password"`
}

// GetAllUsers lists users for the admin interface.
//
// Query parameters: search (username or email substring), role, is_active,
// is_staff.
func GetAllUsers(c *fiber.Ctx) error {
	q := db.DB.WithContext(c.UserContext()).Order("id")

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}
	if role := c.Query("role"); role != "" {
		q = q.Where("role = ?", role)
	}
	for _, flag := range []string{"is_active", "is_staff"} {
		raw := c.Query(flag)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return respondError(c, services.Validation(flag+" must be true or false"))
		}
		q = q.Where(flag+" = ?", v)
	}

	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return respondError(c, services.Internal("failed to fetch users", err))
	}
	return c.JSON(users)
}

func GetUser(c *fiber.Ctx) error {
	user, err := loadUser(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

func CreateUser(c *fiber.Ctx) error {
	var input userInput
	if _, err := decodeBody(c, &input); err != nil {
		return respondError(c, err)
	}

	user := models.User{IsActive: true, Role: models.RolePatient}
	if err := applyUser(c.UserContext(), &user, input, false); err != nil {
		return respondError(c, err)
	}
	if err := db.DB.WithContext(c.UserContext()).Create(&user).Error; err != nil {
		return respondError(c, storeError("failed to create user", err))
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// UpdateUser handles PUT (partial=false) and PATCH (partial=true).
func UpdateUser(partial bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := loadUser(c)
		if err != nil {
			return respondError(c, err)
		}

		var input userInput
		if _, err := decodeBody(c, &input); err != nil {
			return respondError(c, err)
		}
		if err := applyUser(c.UserContext(), user, input, partial); err != nil {
			return respondError(c, err)
		}
		if err := db.DB.WithContext(c.UserContext()).Save(user).Error; err != nil {
			return respondError(c, storeError("failed to update user", err))
		}
		return c.JSON(user)
	}
}

// DeleteUser removes the user together with its patient or provider
// profile and their appointments. Audit entries keep a null actor.
func DeleteUser(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	res := db.DB.WithContext(c.UserContext()).Delete(&models.User{}, id)
	if res.Error != nil {
		return respondError(c, services.Internal("failed to delete user", res.Error))
	}
	if res.RowsAffected == 0 {
		return respondError(c, errNotFound)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func loadUser(c *fiber.Ctx) (*models.User, error) {
	id, err := idParam(c)
	if err != nil {
		return nil, err
	}
	var user models.User
	err = db.DB.WithContext(c.UserContext()).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, services.Internal("failed to fetch user", err)
	}
	return &user, nil
}

func applyUser(ctx context.Context, u *models.User, in userInput, partial bool) error {
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if name == "" {
			return services.Validation("username may not be blank")
		}
		var count int64
		q := db.DB.WithContext(ctx).Model(&models.User{}).Where("username = ?", name)
		if u.ID != 0 {
			q = q.Where("id <> ?", u.ID)
		}
		if err := q.Count(&count).Error; err != nil {
			return services.Internal("failed to check username", err)
		}
		if count > 0 {
			return services.Validation("A user with that username already exists.")
		}
		u.Username = name
	} else if !partial {
		return services.Validation("username is required")
	}

	if in.Role != nil {
		if !in.Role.Valid() {
			return services.Validation("role must be one of patient, provider, admin")
		}
		u.Role = *in.Role
	}
	setString(&u.Email, in.Email)
	setString(&u.FirstName, in.FirstName)
	setString(&u.LastName, in.LastName)
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if in.IsStaff != nil {
		u.IsStaff = *in.IsStaff
	}

	if in.Password != nil {
		if *in.Password == "" {
			u.Password = ""
			return nil
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return services.Internal("failed to hash password", err)
		}
		u.Password = string(hash)
	}
	return nil
}
