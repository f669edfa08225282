package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shishobooks/shisho/pkg/catalog/users"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/httpapi/paging"
	"github.com/shishobooks/shisho/pkg/models"
)

type userHandler struct {
	svc             *users.Service
	defaultPageSize int
}

type userCreatePayload struct {
	Email    string          `json:"email"`
	Name     string          `json:"name"`
	Password string          `json:"password"`
	Roles    models.RoleList `json:"roles"`
}

type userUpdatePayload struct {
	Name    string          `json:"name"`
	Roles   models.RoleList `json:"roles"`
	Version int64           `json:"version"`
}

func (h *userHandler) create(c echo.Context) error {
	payload := userCreatePayload{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	user, err := h.svc.Create(c.Request().Context(), users.CreateOptions{
		Email: payload.Email, Name: payload.Name, Password: payload.Password, Roles: payload.Roles,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusCreated, user))
}

func (h *userHandler) get(c echo.Context) error {
	id, err := paging.IDParam(c, "user")
	if err != nil {
		return err
	}
	user, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, user))
}

func (h *userHandler) update(c echo.Context) error {
	id, err := paging.IDParam(c, "user")
	if err != nil {
		return err
	}
	payload := userUpdatePayload{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	user, err := h.svc.Update(c.Request().Context(), users.UpdateOptions{ID: id, Version: payload.Version, Name: payload.Name, Roles: payload.Roles})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, user))
}

func (h *userHandler) changePassword(c echo.Context) error {
	id, err := paging.IDParam(c, "user")
	if err != nil {
		return err
	}
	payload := struct {
		Version     int64  `json:"version"`
		NewPassword string `json:"new_password"`
	}{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	user, err := h.svc.ChangePassword(c.Request().Context(), id, payload.Version, payload.NewPassword)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, user))
}

func (h *userHandler) delete(c echo.Context) error {
	id, err := paging.IDParam(c, "user")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return errors.WithStack(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *userHandler) list(c echo.Context) error {
	params, err := paging.Parse(c, h.defaultPageSize)
	if err != nil {
		return err
	}
	page, err := h.svc.List(c.Request().Context(), params)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, page))
}

func (h *userHandler) count(c echo.Context) error {
	params, err := paging.Parse(c, 1)
	if err != nil {
		return err
	}
	params.Limit = 1
	page, err := h.svc.List(c.Request().Context(), params)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]int{"count": page.Total}))
}

// registerUserRoutes requires Admin on every route: user management is
// destructive/privileged per §4.10's role-gate table, so there is no
// Trusted-level write tier here the way there is for catalog entities.
func registerUserRoutes(g *echo.Group, svc *users.Service, defaultPageSize int, mw roleGater) {
	h := &userHandler{svc: svc, defaultPageSize: defaultPageSize}
	g.POST("", h.create, mw.admin())
	g.GET("/count", h.count, mw.admin())
	g.GET("", h.list, mw.admin())
	g.GET("/:id", h.get, mw.admin())
	g.PUT("/:id", h.update, mw.admin())
	g.POST("/:id/password", h.changePassword, mw.admin())
	g.DELETE("/:id", h.delete, mw.admin())
}
