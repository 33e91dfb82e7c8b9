package appointments

import (
	"errors"
	"mime"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/casedesk/lawfirm-backend/internal/auth"
	"github.com/casedesk/lawfirm-backend/pkg/models"
)

// Upload Documents godoc
// @Summary      Upload case documents (PDF/PNG)
// @Description  Client (owner) uploads up to 10 files to object storage; only the object key is stored on the record
// @Tags         documents
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id     path      string   true  "appointment id (uuid)"
// @Param        files  formData  []file   true  "PDF/PNG (max 10)"
// @Success      201    {array}   map[string]any  "id, key, name, size"
// @Failure      400    {object}  models.ErrorResponse
// @Failure      403    {object}  models.ErrorResponse
// @Failure      500    {object}  models.ErrorResponse
// @Router       /appointments/{id}/documents [post]
func (h *Handler) UploadDocuments(c *fiber.Ctx) error {
	clientID := auth.MustUserID(c)
	apptID := c.Params("id")

	var appt models.Appointment
	if err := h.db.Where("id = ? AND client_id = ?", apptID, clientID).First(&appt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrForbidden
		}
		return fiber.ErrInternalServerError
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form required; use files[]")
	}
	files := form.File["files[]"]
	if len(files) == 0 {
		files = form.File["files"]
	}
	if len(files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "files are required (use key: files[])")
	}
	if len(files) > 10 {
		return fiber.NewError(fiber.StatusBadRequest, "max 10 files allowed")
	}

	results := make([]fiber.Map, 0, len(files))

	for _, fh := range files {
		res := fiber.Map{
			"name": fh.Filename,
			"size": fh.Size,
		}

		if fh.Size <= 0 {
			res["error"] = "empty file"
			results = append(results, res)
			continue
		}
		if fh.Size > 10*1024*1024 {
			res["error"] = "max 10MB per file"
			results = append(results, res)
			continue
		}

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = mime.TypeByExtension(filepath.Ext(fh.Filename))
		}
		switch ct {
		case "application/pdf", "image/png":
			// ok
		default:
			res["error"] = "only PDF or PNG are allowed"
			results = append(results, res)
			continue
		}

		f, err := fh.Open()
		if err != nil {
			res["error"] = "open failed"
			results = append(results, res)
			continue
		}
		defer f.Close()

		key := h.sb.MakeObjectKey(apptID, fh.Filename)

		if err := h.sb.Upload(key, f, ct, fh.Size); err != nil {
			res["error"] = "upload failed"
			results = append(results, res)
			continue
		}

		rec := models.AppointmentDocument{
			AppointmentID: appt.ID,
			Key:           key,
			Mime:          ct,
			Size:          int(fh.Size),
			OriginalName:  fh.Filename,
		}
		if err := h.db.Create(&rec).Error; err != nil {
			res["error"] = "database error"
			results = append(results, res)
			continue
		}

		res["id"] = rec.ID
		res["key"] = rec.Key
		results = append(results, res)
	}

	// 201 even when some items failed; callers inspect per-item "error".
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"results": results})
}

// Signed Download URL godoc
// @Summary      Get signed URL
// @Description  Owner client, the assigned lawyer, or an admin obtains a short-lived signed URL
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        docID  path string true "document id (uuid)"
// @Success      200  {object}  map[string]any  "url, expires_in, now"
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /documents/{docID}/signed-url [get]
func (h *Handler) SignedDownloadURL(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	role := auth.MustRole(c)
	docID := c.Params("docID")

	var doc models.AppointmentDocument
	if err := h.db.Preload("Appointment").First(&doc, "id = ?", docID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	allowed := false
	switch role {
	case string(models.RoleAdmin):
		allowed = true
	case string(models.RoleClient):
		allowed = doc.Appointment.ClientID.String() == userID
	case string(models.RoleLawyer):
		allowed = doc.Appointment.LawyerID != nil && doc.Appointment.LawyerID.String() == userID
	}
	if !allowed {
		return fiber.ErrForbidden
	}

	url, err := h.sb.SignedURL(doc.Key, 60) // seconds
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"url": url, "expires_in": 60, "now": time.Now().UTC()})
}
