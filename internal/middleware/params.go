package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/favor-exchange-api/internal/errors"
)

const contextKeyID = "path_id"

// RequireIDParam parses the :id path parameter. what names the resource in
// the error message.
func RequireIDParam(what string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil || id == 0 {
			apierrors.BadRequest(c, "Invalid "+what+" ID")
			c.Abort()
			return
		}

		c.Set(contextKeyID, id)
		c.Next()
	}
}

// GetIDParam returns the id parsed by RequireIDParam
func GetIDParam(c *gin.Context) uint64 {
	id, _ := c.Get(contextKeyID)
	v, _ := id.(uint64)
	return v
}
