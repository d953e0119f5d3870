package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/telemed-health/telemed-api/db"
	"github.com/telemed-health/telemed-api/models"
	"github.com/telemed-health/telemed-api/services"
)

type providerInput struct {
	UserID        *uint   `json:"user_id"`
	Specialty     *string `json:"specialty"`
	LicenseNumber *string `json:"license_number"`
	ContactNumber *string `json:"contact_number"`
}

// GetAllProviders godoc
// @Summary List providers
// @Tags providers
// @Produce json
// @Success 200 {array} models.Provider
// @Router /api/providers/ [get]
func GetAllProviders(c *fiber.Ctx) error {
	q := db.DB.WithContext(c.UserContext()).Preload("User").Order("id")
	if specialty := c.Query("specialty"); specialty != "" {
		q = q.Where("specialty = ?", specialty)
	}

	var providers []models.Provider
	if err := q.Find(&providers).Error; err != nil {
		return respondError(c, services.Internal("failed to fetch providers", err))
	}
	return c.JSON(providers)
}

func GetProvider(c *fiber.Ctx) error {
	provider, err := loadProvider(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(provider)
}

func CreateProvider(c *fiber.Ctx) error {
	var input providerInput
	fields, err := decodeBody(c, &input)
	if err != nil {
		return respondError(c, err)
	}

	var provider models.Provider
	if err := applyProvider(c.UserContext(), &provider, input, fields, false); err != nil {
		return respondError(c, err)
	}
	if err := db.DB.WithContext(c.UserContext()).Omit(clause.Associations).Create(&provider).Error; err != nil {
		return respondError(c, storeError("failed to create provider", err))
	}
	return respondProvider(c, fiber.StatusCreated, provider.ID)
}

// UpdateProvider handles PUT (partial=false) and PATCH (partial=true).
func UpdateProvider(partial bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provider, err := loadProvider(c)
		if err != nil {
			return respondError(c, err)
		}

		var input providerInput
		fields, err := decodeBody(c, &input)
		if err != nil {
			return respondError(c, err)
		}
		if err := applyProvider(c.UserContext(), provider, input, fields, partial); err != nil {
			return respondError(c, err)
		}
		if err := db.DB.WithContext(c.UserContext()).Omit(clause.Associations).Save(provider).Error; err != nil {
			return respondError(c, storeError("failed to update provider", err))
		}
		return respondProvider(c, fiber.StatusOK, provider.ID)
	}
}

func DeleteProvider(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	res := db.DB.WithContext(c.UserContext()).Delete(&models.Provider{}, id)
	if res.Error != nil {
		return respondError(c, services.Internal("failed to delete provider", res.Error))
	}
	if res.RowsAffected == 0 {
		return respondError(c, errNotFound)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func loadProvider(c *fiber.Ctx) (*models.Provider, error) {
	id, err := idParam(c)
	if err != nil {
		return nil, err
	}
	var provider models.Provider
	err = db.DB.WithContext(c.UserContext()).Preload("User").First(&provider, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, services.Internal("failed to fetch provider", err)
	}
	return &provider, nil
}

func respondProvider(c *fiber.Ctx, status int, id uint) error {
	var provider models.Provider
	if err := db.DB.WithContext(c.UserContext()).Preload("User").First(&provider, id).Error; err != nil {
		return respondError(c, services.Internal("failed to fetch provider", err))
	}
	return c.Status(status).JSON(provider)
}

func applyProvider(ctx context.Context, p *models.Provider, in providerInput, fields map[string]bool, partial bool) error {
	if fields["user_id"] || !partial {
		userID, err := ownerRef(ctx, in.UserID, &models.Provider{}, p.ID, "provider")
		if err != nil {
			return err
		}
		p.UserID = userID
		p.User = models.User{}
	}
	setString(&p.Specialty, in.Specialty)
	setString(&p.LicenseNumber, in.LicenseNumber)
	setString(&p.ContactNumber, in.ContactNumber)
	return nil
}
