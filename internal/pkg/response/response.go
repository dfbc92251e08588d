package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/xxxsen/mcatalog/internal/pkg/errcode"
	appErr "github.com/xxxsen/mcatalog/internal/pkg/errors"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}

// FromError maps a service error onto an error code; unknown errors become internal.
func FromError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, appErr.ErrUnauthorized):
		Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrNotFound):
		Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrDescriptorInvalid):
		Error(c, errcode.ErrImportInvalidDescriptor, err.Error())
	case errors.Is(err, appErr.ErrDescriptorTooLarge):
		Error(c, errcode.ErrImportTooLarge, "descriptor too large")
	case errors.Is(err, appErr.ErrEntriesMismatch):
		Error(c, errcode.ErrImportEntriesMismatch, err.Error())
	case errors.Is(err, appErr.ErrInvalid):
		Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrTooMany):
		Error(c, errcode.ErrTooMany, "too many requests")
	default:
		Error(c, errcode.ErrInternal, "internal error")
	}
}
