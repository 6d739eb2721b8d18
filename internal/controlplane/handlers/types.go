package handlers

import "github.com/gin-gonic/gin"

const (
	ErrCodeBadRequest    string = "ERR_BAD_REQUEST"
	ErrCodeNotFound      string = "ERR_NOT_FOUND"
	ErrCodeNotConfigured string = "ERR_NOT_CONFIGURED"
	ErrCodeSyncInFlight  string = "ERR_SYNC_IN_FLIGHT"
	ErrCodeSyncFailed    string = "ERR_SYNC_FAILED"
	ErrCodeNotConfirmed  string = "ERR_NOT_CONFIRMED"
	ErrCodeInvalidBottle string = "ERR_INVALID_BOTTLE"
	ErrCodeUnknownError  string = "ERR_UNKNOWN_ERROR"
)

type ControlPlaneError struct {
	ErrorCode string `json:"code"`
	Error     string `json:"error"`
}

func AbortWithError(c *gin.Context, status int, code string, err error) {
	c.Abort()
	c.Error(err) //nolint:errcheck
	c.PureJSON(status, ControlPlaneError{
		ErrorCode: code,
		Error:     err.Error(),
	})
}
