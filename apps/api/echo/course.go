package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/danielortegac/qlase/core/course"
)

type courseApi struct {
	*Deps
}

func registerCourseAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps *Deps) {
	api := courseApi{Deps: deps}

	cg := g.Group("/courses", authed...)
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.POST("/rubric", api.generateRubric)

	// detail endpoints
	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/students", api.enroll)
	dg.DELETE("/students/:studentId", api.removeStudent)
	dg.POST("/materials", api.addMaterial)
	dg.POST("/recordings", api.addRecording)
	dg.POST("/assignments", api.createAssignment)

	ag := dg.Group("/assignments/:aid")
	ag.POST("/views", api.trackView)
	ag.POST("/submissions", api.submit)
	ag.GET("/submissions", api.roster)
	ag.GET("/submissions/me", api.myStatus)
	ag.PUT("/grades", api.saveGrades)
	ag.PUT("/grades/:studentId", api.gradeStudent)
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()

	courses, err := api.CourseSvc.Query(ctx.Request().Context(), actor, filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	c, err := api.CourseSvc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	c, err := api.CourseSvc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) update(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	c, err := api.CourseSvc.UpdateDetails(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.CourseSvc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.EnrollStudents
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollStudents")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	res, err := api.CourseSvc.EnrollStudents(ctx.Request().Context(), actor, ctx.Param("id"), data.Lines)
	if err != nil {
		return errors.Wrap(err, "enrolling students")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *courseApi) removeStudent(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.CourseSvc.RemoveStudent(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("studentId")); err != nil {
		return errors.Wrap(err, "removing student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) addMaterial(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	m, err := api.CourseSvc.AddMaterial(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding material")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *courseApi) addRecording(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.NewRecording
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecording")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	r, err := api.CourseSvc.AddRecording(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding recording")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *courseApi) createAssignment(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	a, err := api.CourseSvc.CreateAssignment(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *courseApi) generateRubric(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.GenerateRubric
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateRubric")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	items, err := api.CourseSvc.GenerateRubric(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "generating rubric")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *courseApi) trackView(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.CourseSvc.TrackView(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("aid")); err != nil {
		return errors.Wrap(err, "tracking view")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) submit(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.SubmitAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAssignment")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	sub, err := api.CourseSvc.Submit(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("aid"), data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *courseApi) roster(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	roster, err := api.CourseSvc.AssignmentRoster(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("aid"))
	if err != nil {
		return errors.Wrap(err, "getting roster")
	}
	return ctx.JSON(http.StatusOK, roster)
}

func (api *courseApi) myStatus(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	st, err := api.CourseSvc.MyStatus(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("aid"))
	if err != nil {
		return errors.Wrap(err, "getting submission status")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *courseApi) saveGrades(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.GradeSheet
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSheet")
	}

	roster, err := api.CourseSvc.SaveGrades(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("aid"), data)
	if err != nil {
		return errors.Wrap(err, "saving grades")
	}
	return ctx.JSON(http.StatusOK, roster)
}

func (api *courseApi) gradeStudent(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.GradeStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeStudent")
	}
	if err := api.Validate.Struct(&data); err != nil {
		return err
	}

	st, err := api.CourseSvc.GradeStudent(
		ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("aid"), ctx.Param("studentId"), data,
	)
	if err != nil {
		return errors.Wrap(err, "grading student")
	}
	return ctx.JSON(http.StatusOK, st)
}
