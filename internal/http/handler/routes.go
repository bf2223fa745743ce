package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"idvault/internal/database"
	"idvault/internal/model"
	"idvault/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin: boundary validation and response shaping only, with
// the streaming and storage discipline living in the service layer.
func RegisterRoutes(app *fiber.App, db *sql.DB, objSvc service.ObjectService) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())
	app.Get("/check-connection", CheckConnection(db))

	app.Post("/upload", UploadImage(objSvc))
	app.Get("/images", ListImages(objSvc))
	app.Get("/image/:filename", ViewImage(objSvc))
	app.Get("/download/:filename", DownloadImage(objSvc))

	app.Get("/viewer", Viewer())
	app.Post("/submit", Submit())
}

// uploadResponse is the success body of POST /upload. Field names are the
// browser uploader's contract; it keys its 4-of-4 slot gating off fileId.
type uploadResponse struct {
	Success     bool                 `json:"success"`
	FileID      string               `json:"fileId"`
	Filename    string               `json:"filename"`
	ContentType string               `json:"contentType"`
	Size        int64                `json:"size"`
	Metadata    model.ObjectMetadata `json:"metadata"`
	ViewURL     string               `json:"viewUrl"`
	DownloadURL string               `json:"downloadUrl"`
}

// UploadImage handles POST /upload: one multipart file part under the
// field "image" plus a "type" form field tagging the document slot.
func UploadImage(objSvc service.ObjectService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("image")
		if err != nil {
			return writeUploadError(c, fiber.StatusBadRequest, "No file uploaded")
		}
		docType := c.FormValue("type")

		f, err := fh.Open()
		if err != nil {
			return writeUploadError(c, fiber.StatusBadRequest, "Cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		obj, err := objSvc.Ingest(c.UserContext(), f, fh.Filename, ct, docType)
		if err != nil {
			return writeUploadError(c, fiber.StatusInternalServerError, "Upload failed")
		}

		return c.JSON(uploadResponse{
			Success:     true,
			FileID:      obj.ID,
			Filename:    obj.Filename,
			ContentType: obj.ContentType,
			Size:        obj.Size,
			Metadata:    obj.Metadata,
			ViewURL:     "/image/" + obj.Filename,
			DownloadURL: "/download/" + obj.Filename,
		})
	}
}

// ListImages handles GET /images: metadata for every stored object,
// bytes excluded. Diagnostic surface, deliberately unpaginated.
func ListImages(objSvc service.ObjectService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		objs, err := objSvc.ListAll(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "Internal server error")
		}
		return c.JSON(objs)
	}
}

// ViewImage handles GET /image/:filename: streams the object's bytes
// inline with its stored content type. The response consumer's read rate
// governs how fast the store is drained; a client disconnect tears the
// stream down.
func ViewImage(objSvc service.ObjectService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return streamObject(c, objSvc, false)
	}
}

// DownloadImage handles GET /download/:filename: same stream as view plus
// an attachment disposition carrying the stored filename.
func DownloadImage(objSvc service.ObjectService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return streamObject(c, objSvc, true)
	}
}

func streamObject(c *fiber.Ctx, objSvc service.ObjectService, attachment bool) error {
	filename := c.Params("filename")

	rc, obj, err := objSvc.Open(c.UserContext(), filename)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return writeError(c, fiber.StatusNotFound, "File not found")
		}
		return writeError(c, fiber.StatusInternalServerError, "Internal server error")
	}

	c.Set(fiber.HeaderContentType, obj.ContentType)
	if attachment {
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", obj.Filename))
	}
	// SendStream hands the reader to the transport, which drains it at the
	// consumer's pace and closes it when done or on disconnect.
	return c.SendStream(rc, int(obj.Size))
}

// CheckConnection handles GET /check-connection: reports store readiness
// and the visible table names.
func CheckConnection(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			return c.JSON(fiber.Map{"connected": false, "collections": []string{}})
		}
		tables, err := database.ListTables(ctx, db)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "Internal server error")
		}
		return c.JSON(fiber.Map{"connected": true, "collections": tables})
	}
}

// HealthCheck reports dependency health: DB connectivity only.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "Dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness probe.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Submit handles POST /submit, the final acknowledgment after the client
// finished all its uploads. No server-side state is involved.
func Submit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Information collected successfully!",
		})
	}
}

// Viewer serves a small diagnostic HTML page rendering one <img> per
// stored object against the view endpoint.
func Viewer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		const html = `<!DOCTYPE html>
<html>
<head>
  <title>Image Viewer</title>
  <style>
    .image-container { margin: 20px; }
    img { max-width: 300px; margin: 10px; }
  </style>
</head>
<body>
  <div id="images" class="image-container"></div>
  <script>
    fetch('/images')
      .then(res => res.json())
      .then(files => {
        const container = document.getElementById('images');
        files.forEach(file => {
          const img = document.createElement('img');
          img.src = '/image/' + file.filename;
          container.appendChild(img);
        });
      });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	}
}
