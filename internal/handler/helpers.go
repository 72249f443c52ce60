package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
)

// queryInt reads an optional integer query parameter. A value that is present
// but not an integer is a validation error.
func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("query parameter %s must be an integer", key))
	}
	return val, nil
}

// pageParams reads the page and limit query parameters shared by list routes.
func pageParams(c *gin.Context) (page, size int, err error) {
	if page, err = queryInt(c, "page", 1); err != nil {
		return 0, 0, err
	}
	if size, err = queryInt(c, "limit", 20); err != nil {
		return 0, 0, err
	}
	return page, size, nil
}

func bindError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body")
}
