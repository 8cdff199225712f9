package fail

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Fail responds with a machine-readable error code and a human-readable
// message.
func Fail(c echo.Context, status int, code string, format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)

	zap.L().Warn(message)

	jsonResp := struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    code,
		Message: message,
	}

	return c.JSON(status, &jsonResp)
}
