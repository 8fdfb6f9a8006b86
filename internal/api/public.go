package api

import (
	stderrors "errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"business-directory/internal/common/errors"
	"business-directory/internal/intake"
	"business-directory/internal/storage"
	"business-directory/internal/store"

	"github.com/gin-gonic/gin"
)

// submit handles POST /api/submissions.
func (h *Handler) submit(c *gin.Context) {
	form := intake.Form{
		BusinessName:           c.PostForm("businessName"),
		Categories:             c.PostForm("categories"),
		BusinessType:           c.PostForm("businessType"),
		Cities:                 c.PostForm("cities"),
		Mobile:                 c.PostForm("mobile"),
		ShortDescription:       c.PostForm("shortDescription"),
		HasCertificate:         formBool(c.PostForm("hasCertificate")),
		CertificateDescription: c.PostForm("certificateDescription"),
		SocialLinks:            c.PostForm("socialLinks"),
		SubmitterEmail:         c.PostForm("submitterEmail"),
		SubmitterName:          c.PostForm("submitterName"),
		ClientKey:              c.ClientIP(),
	}

	upload, err := h.readImage(c)
	if err != nil {
		writeError(c, err)
		return
	}
	form.Image = upload

	sub, err := h.intake.Submit(c.Request.Context(), form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"submission": sub})
}

// readImage loads the profileImage part; a missing part is left to validation.
func (h *Handler) readImage(c *gin.Context) (*intake.Upload, error) {
	fileHeader, err := c.FormFile("profileImage")
	if err != nil {
		if stderrors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, errors.NewInvalidInputError("request must be multipart/form-data")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, errors.NewInvalidInputError("cannot open profileImage")
	}
	defer file.Close()

	// One byte past the limit is enough for intake to reject the upload.
	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		return nil, errors.NewInvalidInputError("cannot read profileImage")
	}
	return &intake.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// track handles GET /api/submissions/track/:trackingId.
func (h *Handler) track(c *gin.Context) {
	view, err := h.intake.Track(c.Request.Context(), c.Param("trackingId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// listBusinesses handles GET /api/businesses.
func (h *Handler) listBusinesses(c *gin.Context) {
	page, limit, err := pagination(c)
	if err != nil {
		writeError(c, err)
		return
	}

	f := store.BusinessFilter{
		Categories:    queryList(c, "categories"),
		Cities:        queryList(c, "cities"),
		BusinessTypes: queryList(c, "businessTypes"),
		Search:        strings.TrimSpace(c.Query("search")),
		Page:          page,
		Limit:         limit,
	}
	if v := c.Query("verified"); v != "" {
		verified, err := strconv.ParseBool(v)
		if err != nil {
			writeError(c, errors.NewInvalidInputError("verified must be true or false"))
			return
		}
		f.Verified = &verified
	}

	result, err := h.listing.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":      result.Items,
		"total":      result.Total,
		"page":       result.Page,
		"limit":      result.Limit,
		"totalPages": result.TotalPages(),
	})
}

// getBusiness handles GET /api/businesses/:id for either identifier.
func (h *Handler) getBusiness(c *gin.Context) {
	id := c.Param("id")
	b, err := h.businesses.GetByAnyID(c.Request.Context(), id)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			writeError(c, errors.NewBusinessNotFoundError(id))
			return
		}
		writeError(c, errors.NewStoreUnavailableError("api.getBusiness", err))
		return
	}
	c.JSON(http.StatusOK, b)
}

// getImage handles GET /api/images/:fileId.
func (h *Handler) getImage(c *gin.Context) {
	fileID := c.Param("fileId")
	rc, info, err := h.images.Open(c.Request.Context(), fileID)
	if err != nil {
		if stderrors.Is(err, storage.ErrImageNotFound) {
			writeError(c, errors.NewImageNotFoundError(fileID))
			return
		}
		writeError(c, errors.NewStoreUnavailableError("api.getImage", err))
		return
	}
	defer rc.Close()

	disposition := mime.FormatMediaType("inline", map[string]string{"filename": info.Filename})
	if disposition == "" {
		disposition = "inline"
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, rc, map[string]string{
		"Content-Disposition": disposition,
	})
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}

// queryList accepts both ?cities=a&cities=b and ?cities[]=a.
func queryList(c *gin.Context, key string) []string {
	values := append(c.QueryArray(key), c.QueryArray(key+"[]")...)
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func pagination(c *gin.Context) (int, int, error) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	limit, err := queryInt(c, "limit", store.DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	page, limit = store.NormalizePage(page, limit)
	return page, limit, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewInvalidInputError(key + " must be an integer")
	}
	return n, nil
}
