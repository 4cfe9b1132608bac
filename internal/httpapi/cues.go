package httpapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/muvico/platform/internal/domain/presentations"
)

func registerCueRoutes(r *gin.RouterGroup, logger *zap.Logger, service presentations.Service, uploadLimit int64) {
	r.POST("/:id/cues", limitBody(uploadLimit), func(c *gin.Context) {
		input, closeFile, err := parseCueInput(c)
		if err != nil {
			respondFormError(c, logger, err)
			return
		}
		defer closeFile()

		p, cue, err := service.AddCue(c.Request.Context(), actor(c), c.Param("id"), input)
		if err != nil {
			respondServiceError(c, logger, "add cue", err)
			return
		}
		respondJSON(c, http.StatusCreated, gin.H{"cue": cue, "presentation": p})
	})

	r.PATCH("/:id/cues/:cueId", limitBody(uploadLimit), func(c *gin.Context) {
		update, closeFile, err := parseCueUpdate(c)
		if err != nil {
			respondFormError(c, logger, err)
			return
		}
		defer closeFile()

		p, err := service.UpdateCue(c.Request.Context(), actor(c), c.Param("id"), c.Param("cueId"), update)
		if err != nil {
			respondServiceError(c, logger, "update cue", err)
			return
		}
		respondJSON(c, http.StatusOK, p)
	})

	r.DELETE("/:id/cues/:cueId", func(c *gin.Context) {
		p, err := service.RemoveCue(c.Request.Context(), actor(c), c.Param("id"), c.Param("cueId"))
		if err != nil {
			respondServiceError(c, logger, "remove cue", err)
			return
		}
		respondJSON(c, http.StatusOK, p)
	})

	r.POST("/:id/cues/:cueId/copy", func(c *gin.Context) {
		var payload struct {
			Index  *int `json:"index"`
			Screen *int `json:"screen"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil || payload.Index == nil || payload.Screen == nil {
			respondError(c, http.StatusBadRequest, "index and screen are required")
			return
		}
		p, cue, err := service.CopyCue(c.Request.Context(), actor(c), c.Param("id"), c.Param("cueId"), *payload.Index, *payload.Screen)
		if err != nil {
			respondServiceError(c, logger, "copy cue", err)
			return
		}
		respondJSON(c, http.StatusCreated, gin.H{"cue": cue, "presentation": p})
	})

	r.GET("/:id/cues/:cueId/media", func(c *gin.Context) {
		url, err := service.MediaURL(c.Request.Context(), actor(c), c.Param("id"), c.Param("cueId"))
		if err != nil {
			respondServiceError(c, logger, "media url", err)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Redirect(http.StatusFound, url)
	})
}

// formError is a malformed request field.
type formError struct {
	field  string
	reason string
}

func (e *formError) Error() string {
	return e.field + " " + e.reason
}

func respondFormError(c *gin.Context, logger *zap.Logger, err error) {
	var ferr *formError
	if errors.As(err, &ferr) {
		respondError(c, http.StatusBadRequest, ferr.Error())
		return
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		respondError(c, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) || errors.Is(err, io.ErrUnexpectedEOF) {
		respondError(c, http.StatusBadRequest, "invalid multipart form")
		return
	}
	respondServiceError(c, logger, "read cue form", err)
}

// cueForm reads cue fields from a multipart or urlencoded body.
type cueForm struct {
	c *gin.Context
}

func (f cueForm) str(key string) (string, bool) {
	return f.c.GetPostForm(key)
}

func (f cueForm) integer(key string) (*int, error) {
	raw, ok := f.c.GetPostForm(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, &formError{field: key, reason: "must be an integer"}
	}
	return &n, nil
}

func (f cueForm) boolean(key string) (*bool, error) {
	raw, ok := f.c.GetPostForm(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "on" {
		v = "true"
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, &formError{field: key, reason: "must be a boolean"}
	}
	return &b, nil
}

// file opens the optional "file" part. The returned func closes it.
func (f cueForm) file() (*presentations.Upload, func(), error) {
	if f.c.Request.MultipartForm == nil {
		return nil, func() {}, nil
	}
	header, err := f.c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	return openUpload(header)
}

func openUpload(header *multipart.FileHeader) (*presentations.Upload, func(), error) {
	file, err := header.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &presentations.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, func() { _ = file.Close() }, nil
}

func parseCueInput(c *gin.Context) (presentations.CueInput, func(), error) {
	if err := parseForm(c); err != nil {
		return presentations.CueInput{}, func() {}, err
	}
	form := cueForm{c: c}

	index, err := form.integer("index")
	if err != nil {
		return presentations.CueInput{}, func() {}, err
	}
	screen, err := form.integer("screen")
	if err != nil {
		return presentations.CueInput{}, func() {}, err
	}
	if index == nil || screen == nil {
		return presentations.CueInput{}, func() {}, &formError{field: "index and screen", reason: "are required"}
	}
	loop, err := form.boolean("loop")
	if err != nil {
		return presentations.CueInput{}, func() {}, err
	}

	input := presentations.CueInput{Index: *index, Screen: *screen}
	input.Name, _ = form.str("name")
	input.Color, _ = form.str("color")
	if loop != nil {
		input.Loop = *loop
	}

	upload, closeFile, err := form.file()
	if err != nil {
		return presentations.CueInput{}, func() {}, err
	}
	input.File = upload
	return input, closeFile, nil
}

func parseCueUpdate(c *gin.Context) (presentations.CueUpdate, func(), error) {
	if c.ContentType() == binding.MIMEJSON {
		var payload struct {
			Name   *string `json:"name"`
			Index  *int    `json:"index"`
			Screen *int    `json:"screen"`
			Loop   *bool   `json:"loop"`
			Color  *string `json:"color"`
			Swap   bool    `json:"swap"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil {
			return presentations.CueUpdate{}, func() {}, &formError{field: "body", reason: "is not valid JSON"}
		}
		return presentations.CueUpdate{
			Name:   payload.Name,
			Index:  payload.Index,
			Screen: payload.Screen,
			Loop:   payload.Loop,
			Color:  payload.Color,
			Swap:   payload.Swap,
		}, func() {}, nil
	}

	if err := parseForm(c); err != nil {
		return presentations.CueUpdate{}, func() {}, err
	}
	form := cueForm{c: c}

	var update presentations.CueUpdate
	var err error
	if update.Index, err = form.integer("index"); err != nil {
		return presentations.CueUpdate{}, func() {}, err
	}
	if update.Screen, err = form.integer("screen"); err != nil {
		return presentations.CueUpdate{}, func() {}, err
	}
	if update.Loop, err = form.boolean("loop"); err != nil {
		return presentations.CueUpdate{}, func() {}, err
	}
	swap, err := form.boolean("swap")
	if err != nil {
		return presentations.CueUpdate{}, func() {}, err
	}
	update.Swap = swap != nil && *swap
	if v, ok := form.str("name"); ok {
		update.Name = &v
	}
	if v, ok := form.str("color"); ok {
		update.Color = &v
	}

	upload, closeFile, err := form.file()
	if err != nil {
		return presentations.CueUpdate{}, func() {}, err
	}
	update.File = upload
	return update, closeFile, nil
}

// parseForm parses multipart bodies and falls back to urlencoded ones.
func parseForm(c *gin.Context) error {
	if c.ContentType() == binding.MIMEMultipartPOSTForm {
		return c.Request.ParseMultipartForm(32 << 20)
	}
	return c.Request.ParseForm()
}
