package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/telemed-health/telemed-api/services"
	"github.com/telemed-health/telemed-api/utils"
)

const notFoundDetail = "not found"

var errNotFound = services.NotFound(notFoundDetail)

// respondError writes err as a {detail} body. Internal failures are logged
// and replaced by their generic detail.
func respondError(c *fiber.Ctx, err error) error {
	e := services.AsError(err)
	if e.Kind == services.KindInternal {
		log.Error().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg(e.Detail)
	}
	return utils.Detail(c, e.Status(), e.Detail)
}

// idParam reads the :id path segment. Anything but a positive integer
// cannot name a row, so it is reported as not found.
func idParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errNotFound
	}
	return uint(id), nil
}

// decodeBody unmarshals a JSON object body into dst and returns the set of
// top-level keys the caller sent, so PATCH and explicit nulls can be told
// apart from absent fields.
func decodeBody(c *fiber.Ctx, dst any) (map[string]bool, error) {
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		return map[string]bool{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, services.Validation("request body must be a JSON object")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, services.Validation(fmt.Sprintf("%s has an invalid type", typeErr.Field))
		}
		return nil, services.Validation(err.Error())
	}

	present := make(map[string]bool, len(raw))
	for k := range raw {
		present[k] = true
	}
	return present, nil
}

// storeError maps constraint violations that slipped past validation to
// 400 and anything else to 500.
func storeError(detail string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return services.Validation(detail + ": duplicate value")
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return services.Validation(detail + ": related object does not exist")
	default:
		return services.Internal(detail, err)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
