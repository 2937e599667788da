package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/generic-avatar/internal/domain"
	"github.com/mansoorceksport/generic-avatar/internal/i18n"
)

// HeaderIsCustomAvatar tells clients whether the image was uploaded or generated
const HeaderIsCustomAvatar = "X-NC-IsCustomAvatar"

// messageKey maps every error the handlers can see to a stable message id.
// Anything unexpected gets the generic message.
func messageKey(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingFile):
		return i18n.MsgNoFile
	case errors.Is(err, domain.ErrInvalidFile):
		return i18n.MsgInvalidFile
	case errors.Is(err, domain.ErrFileTooLarge):
		return i18n.MsgFileTooBig
	case errors.Is(err, domain.ErrNotSquare):
		return i18n.MsgNotSquare
	default:
		return i18n.MsgContactAdm
	}
}

// errorResponse writes 400 {"data":{"message": ...}}
func errorResponse(c *fiber.Ctx, translator domain.Translator, err error) error {
	message := translator.T(c.Get(fiber.HeaderAcceptLanguage), messageKey(err))
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"data": fiber.Map{"message": message},
	})
}

func imageResponse(c *fiber.Ctx, result *domain.FetchResult) error {
	custom := "0"
	if result.IsCustom {
		custom = "1"
	}
	c.Set(fiber.HeaderContentType, result.Image.MimeType)
	c.Set(HeaderIsCustomAvatar, custom)
	return c.Status(fiber.StatusOK).Send(result.Image.Data)
}

func notFoundResponse(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{})
}

func emptyResponse(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{})
}

func successResponse(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "success"})
}

// WriteError writes the same 400 body the avatar handlers use.
// The app error handler uses it for bodies rejected before routing.
func WriteError(c *fiber.Ctx, translator domain.Translator, err error) error {
	return errorResponse(c, translator, err)
}
