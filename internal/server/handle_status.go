package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pictor-io/pictor/internal/server/fail"
)

func (server *Server) handleStatus(c echo.Context) error {
	historyLimit := 0

	if rawHistory := c.QueryParam("history"); rawHistory != "" {
		parsed, err := strconv.Atoi(rawHistory)
		if err != nil || parsed < 0 {
			return fail.Fail(c, http.StatusBadRequest, "invalid-request",
				"unparsable \"history\" query parameter %q", rawHistory)
		}

		historyLimit = parsed
	}

	detailed := true

	if rawDetailed := c.QueryParam("detailed"); rawDetailed != "" {
		parsed, err := strconv.ParseBool(rawDetailed)
		if err != nil {
			return fail.Fail(c, http.StatusBadRequest, "invalid-request",
				"unparsable \"detailed\" query parameter %q", rawDetailed)
		}

		detailed = parsed
	}

	status, err := server.orchestrator.Status(historyLimit, c.QueryParam("category"))
	if err != nil {
		return fail.Fail(c, http.StatusInternalServerError, "internal",
			"failed to collect status: %v", err)
	}

	// The non-detailed view carries counters only
	if !detailed {
		status.Store = nil
		status.History = nil
	}

	return c.JSON(http.StatusOK, status)
}

func (server *Server) handleReset(c echo.Context) error {
	server.orchestrator.ResetStats()

	return c.NoContent(http.StatusNoContent)
}

func (server *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
