package handler

import (
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/mansoorceksport/generic-avatar/internal/domain"
	"github.com/mansoorceksport/generic-avatar/internal/service"
)

// uploadField is the multipart field carrying the replacement image
const uploadField = "files"

// AvatarHandler handles the public generic avatar endpoints
type AvatarHandler struct {
	gateway    domain.AvatarGateway
	translator domain.Translator
}

// NewAvatarHandler creates a new avatar handler
func NewAvatarHandler(gateway domain.AvatarGateway, translator domain.Translator) *AvatarHandler {
	return &AvatarHandler{
		gateway:    gateway,
		translator: translator,
	}
}

// GetAvatar handles GET /avatar/:avatarType/:avatarId/:size
func (h *AvatarHandler) GetAvatar(c *fiber.Ctx) error {
	// a non-numeric size counts as 0 and falls back to the default size
	size, _ := strconv.Atoi(c.Params("size"))

	result, err := h.gateway.Fetch(c.UserContext(), avatarKey(c), size)
	if err != nil {
		return notFoundResponse(c)
	}
	return imageResponse(c, result)
}

// SetAvatar handles POST /avatar/:avatarType/:avatarId
func (h *AvatarHandler) SetAvatar(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		// not a multipart body, so no file either
		return errorResponse(c, h.translator, domain.ErrMissingFile)
	}
	// temp files backing large parts go away on every path below
	defer form.RemoveAll()

	headers := form.File[uploadField]
	files := make([]service.UploadedFile, 0, len(headers))
	for _, header := range headers {
		files = append(files, service.FromMultipart(header))
	}

	upload, err := service.ValidateUpload(files)
	if err != nil {
		return errorResponse(c, h.translator, err)
	}

	if err := h.gateway.Replace(c.UserContext(), avatarKey(c), upload); err != nil {
		return errorResponse(c, h.translator, err)
	}
	return successResponse(c)
}

// DeleteAvatar handles DELETE /avatar/:avatarType/:avatarId
func (h *AvatarHandler) DeleteAvatar(c *fiber.Ctx) error {
	if err := h.gateway.Delete(c.UserContext(), avatarKey(c)); err != nil {
		return errorResponse(c, h.translator, err)
	}
	return emptyResponse(c)
}

func avatarKey(c *fiber.Ctx) domain.AvatarKey {
	return domain.AvatarKey{
		Type: pathParam(c, "avatarType"),
		ID:   pathParam(c, "avatarId"),
	}
}

// pathParam returns the unescaped route parameter, raw if it cannot be unescaped.
// Params are only valid during the request, so the value is copied.
func pathParam(c *fiber.Ctx, name string) string {
	raw := utils.CopyString(c.Params(name))
	if value, err := url.PathUnescape(raw); err == nil {
		return value
	}
	return raw
}
