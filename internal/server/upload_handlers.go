package server

import (
	"path/filepath"

	"kollektiv/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// maxUploadBytes caps individual file uploads at 10 MB, matching the fiber
// body limit.
const maxUploadBytes = 10 << 20

// UploadFile stores a multipart file and returns its public URL. The stored
// name is a generated id; the original filename only contributes the
// extension.
func (s *Server) UploadFile(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "Multipart field file is required")
	}
	if header.Size > maxUploadBytes {
		return badRequest(c, "File is too large")
	}

	src, err := header.Open()
	if err != nil {
		return serviceError(c, models.NewInternalError(err))
	}
	defer src.Close()

	name := uuid.NewString() + filepath.Ext(header.Filename)
	handle, err := s.uploads.Put(c.UserContext(), name, src)
	if err != nil {
		return serviceError(c, models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"url":      s.uploads.URL(handle),
		"fileType": header.Header.Get("Content-Type"),
	})
}
