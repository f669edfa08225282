package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shishobooks/shisho/pkg/convertworker"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/pathmodel"
)

// OperationTicket is returned by /api/convert/extract_meta: the client
// correlates it against the matching "operation_id" field on the SSE
// stream to learn when extraction finishes, per §4.11 step 3.
type OperationTicket struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
}

type extractMetaPayload struct {
	Path         string `json:"path"`
	ExtractCover bool   `json:"extract_cover"`
}

func registerConvertRoutes(g *echo.Group, deps *Deps, mw roleGater) {
	g.POST("/extract_meta", func(c echo.Context) error {
		payload := extractMetaPayload{}
		if err := c.Bind(&payload); err != nil {
			return errcodes.MalformedPayload()
		}

		path, err := pathmodel.NewValidPath(payload.Path)
		if err != nil {
			return errcodes.ValidationError("path is not a valid store-relative path")
		}

		ticket := OperationTicket{ID: uuid.NewString(), Created: time.Now().UTC()}
		deps.Worker.Submit(convertworker.ExtractMetaJob{
			OperationID:  ticket.ID,
			FilePath:     path,
			ExtractCover: payload.ExtractCover,
		})

		return errors.WithStack(c.JSON(http.StatusAccepted, ticket))
	}, mw.write())
}
