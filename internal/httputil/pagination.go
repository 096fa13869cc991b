package httputil

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/tokenvault/internal/errors"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

var (
	// ErrInvalidOffset is returned when the offset query parameter is not a non-negative integer.
	ErrInvalidOffset = apperrors.Wrap(apperrors.ErrInvalidInput, "offset must be a non-negative integer")

	// ErrInvalidLimit is returned when the limit query parameter is out of range.
	ErrInvalidLimit = apperrors.Wrap(apperrors.ErrInvalidInput, "limit must be between 1 and 100")
)

// Page is a parsed offset/limit pair.
type Page struct {
	Offset int
	Limit  int
}

// ParsePage reads the offset and limit query parameters, defaulting to 0 and 50.
func ParsePage(c *gin.Context) (Page, error) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return Page{}, ErrInvalidOffset
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit < 1 || limit > maxPageLimit {
		return Page{}, ErrInvalidLimit
	}

	return Page{Offset: offset, Limit: limit}, nil
}
