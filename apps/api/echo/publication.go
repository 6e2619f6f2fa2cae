package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/danielortegac/qlase/core/publication"
)

type publicationApi struct {
	*Deps
}

func registerPublicationAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps *Deps) {
	api := publicationApi{Deps: deps}

	pg := g.Group("/publications", authed...)
	pg.GET("", api.query)
	pg.POST("", api.upload)
	pg.GET("/:id", api.retrieve)
	pg.DELETE("/:id", api.destroy)
}

func (api *publicationApi) query(ctx echo.Context) error {
	filter := new(publication.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []publication.Publication{})
	}
	filter.Clean()

	pubs, err := api.PublicationSvc.Query(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying publications")
	}
	if pubs == nil {
		pubs = []publication.Publication{}
	}
	return ctx.JSON(http.StatusOK, pubs)
}

func (api *publicationApi) upload(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data publication.NewPublication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPublication")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	p, err := api.PublicationSvc.Upload(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "uploading publication")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *publicationApi) retrieve(ctx echo.Context) error {
	p, err := api.PublicationSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting publication")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *publicationApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.PublicationSvc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting publication")
	}
	return ctx.NoContent(http.StatusNoContent)
}
