package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"parkvision-backend/internal/parking"
)

// maxImageBytes caps uploaded camera frames.
const maxImageBytes = 20 << 20

var errNoImage = errors.New("image is required")

// readImage returns the uploaded frame from the multipart "image" field or,
// for any other content type, the raw request body.
func readImage(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("image")
		if err != nil {
			return nil, errNoImage
		}
		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		if len(data) == 0 {
			return nil, errNoImage
		}
		return data, nil
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) == 0 {
		return nil, errNoImage
	}
	return data, nil
}

func (h *Handler) lotImage(c *gin.Context) (string, []byte, bool) {
	lotID := c.Param("lot_id")
	if !h.knownLot(lotID) {
		errorRes(c, http.StatusNotFound, "unknown lot")
		return "", nil, false
	}
	image, err := readImage(c)
	if err != nil {
		errorRes(c, http.StatusBadRequest, err.Error())
		return "", nil, false
	}
	return lotID, image, true
}

var entryStatus = map[parking.Outcome]int{
	parking.OutcomeAdmitted:       http.StatusCreated,
	parking.OutcomeAccessDenied:   http.StatusForbidden,
	parking.OutcomeDuplicateEntry: http.StatusConflict,
}

// PostEntry handles the POST /api/lots/{lot_id}/entry request.
func (h *Handler) PostEntry(c *gin.Context) {
	lotID, image, ok := h.lotImage(c)
	if !ok {
		return
	}

	result, err := h.orch.HandleEntry(c.Request.Context(), lotID, image)
	if err != nil {
		log.Printf("Entry at lot %s failed: %v", lotID, err)
		errorRes(c, http.StatusInternalServerError, "failed to process entry")
		return
	}

	code := entryStatus[result.Outcome]
	if result.Outcome == parking.OutcomeAdmitted {
		successRes(c, code, result)
		return
	}
	outcomeRes(c, code, string(result.Outcome), result)
}

// PostScan handles the POST /api/lots/{lot_id}/scan request.
func (h *Handler) PostScan(c *gin.Context) {
	lotID, image, ok := h.lotImage(c)
	if !ok {
		return
	}

	result, err := h.orch.ScanLot(c.Request.Context(), lotID, image)
	if err != nil {
		log.Printf("Scan of lot %s failed: %v", lotID, err)
		errorRes(c, http.StatusInternalServerError, "failed to process scan")
		return
	}
	successRes(c, http.StatusOK, result)
}

// PostExit handles the POST /api/exit request.
func (h *Handler) PostExit(c *gin.Context) {
	image, err := readImage(c)
	if err != nil {
		errorRes(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.orch.HandleExit(c.Request.Context(), image)
	if err != nil {
		log.Printf("Exit failed: %v", err)
		errorRes(c, http.StatusInternalServerError, "failed to process exit")
		return
	}

	if result.Outcome == parking.OutcomeUnknownVehicle {
		outcomeRes(c, http.StatusNotFound, string(result.Outcome), result)
		return
	}
	successRes(c, http.StatusOK, result)
}
