package api

import (
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"tracker-api/domain"
	"tracker-api/store"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, st Store, syncer Refresher, auth Authenticator, dedup Deduper, logger *log.Logger) {
	e.GET("/api/projects", listProjects(st, auth))
	e.POST("/api/projects", postProject(st, auth))
	e.PUT("/api/projects/:id", putProject(st, auth))
	e.DELETE("/api/projects/:id", deleteProject(st, auth))

	e.GET("/api/tasks", listTasks(st, auth))
	e.POST("/api/tasks", postTask(st, auth))
	e.PUT("/api/tasks/:id", putTask(st, auth))
	e.DELETE("/api/tasks/:id", deleteTask(st, auth))

	e.GET("/api/subtasks", listSubTasks(st, auth))
	e.POST("/api/subtasks", postSubTask(st, auth))
	e.PUT("/api/subtasks/:id", putSubTask(st, auth))
	e.DELETE("/api/subtasks/:id", deleteSubTask(st, auth))

	e.GET("/api/updates", listUpdates(st, auth))
	e.POST("/api/updates", postUpdate(st, auth, dedup))
	e.GET("/api/updates/direct", getDirectUpdates(st, auth))
	e.GET("/api/updates/related", getRelatedUpdates(st, auth, logger))

	e.GET("/api/users", listUsers(st, auth))

	e.POST("/api/refresh", postRefresh(syncer, auth))
	e.GET("/api/sync/status", getSyncStatus(syncer, auth))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// withAuth rejects the request with 401 unless the bearer token resolves to a
// user, then passes the user ID through to the wrapped handler.
func withAuth(auth Authenticator, next func(c echo.Context, userID string) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		return next(c, userID)
	}
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// storeError maps store failures onto HTTP status codes.
func storeError(c echo.Context, err error) error {
	switch {
	case store.IsValidation(err):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case store.IsNotFound(err):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func listProjects(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		return c.JSON(http.StatusOK, st.Projects())
	})
}

func listTasks(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		return c.JSON(http.StatusOK, st.Tasks())
	})
}

func listSubTasks(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		return c.JSON(http.StatusOK, st.SubTasks())
	})
}

func listUpdates(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		return c.JSON(http.StatusOK, st.Updates())
	})
}

func listUsers(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		return c.JSON(http.StatusOK, st.Users())
	})
}

func postProject(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		var p domain.Project
		if err := decodeBody(c, &p); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		created, err := st.AddProject(p)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusCreated, created)
	})
}

func putProject(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		var p domain.Project
		if err := decodeBody(c, &p); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		p.ID = c.Param("id")
		if err := st.UpdateProject(p); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	})
}

func deleteProject(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		if err := st.DeleteProject(c.Param("id")); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	})
}

func postTask(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		var t domain.Task
		if err := decodeBody(c, &t); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		created, err := st.AddTask(t)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusCreated, created)
	})
}

func putTask(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		var t domain.Task
		if err := decodeBody(c, &t); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		t.ID = c.Param("id")
		if err := st.UpdateTask(t); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	})
}

func deleteTask(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		if err := st.DeleteTask(c.Param("id")); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	})
}

func postSubTask(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		var sub domain.SubTask
		if err := decodeBody(c, &sub); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		created, err := st.AddSubTask(sub)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusCreated, created)
	})
}

func putSubTask(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		var sub domain.SubTask
		if err := decodeBody(c, &sub); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		sub.ID = c.Param("id")
		if err := st.UpdateSubTask(sub); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	})
}

func deleteSubTask(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		if err := st.DeleteSubTask(c.Param("id")); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	})
}

func postUpdate(st Store, auth Authenticator, dedup Deduper) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, userID string) error {
		var u domain.Update
		if err := decodeBody(c, &u); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if u.AuthorUserID == "" {
			u.AuthorUserID = userID
		}

		key := c.Request().Header.Get(headerIdempotencyKey)
		if key != "" && dedup != nil {
			added, err := dedup.Add(c.Request().Context(), userID, key)
			if err != nil {
				c.Logger().Error(err)
				return c.JSON(http.StatusInternalServerError, errorResponse{Error: "idempotency check failed"})
			}
			if !added {
				return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate update"})
			}
		}

		created, err := st.AddUpdate(u)
		if err != nil {
			if key != "" && dedup != nil {
				if rmErr := dedup.Remove(c.Request().Context(), userID, key); rmErr != nil {
					c.Logger().Error(rmErr)
				}
			}
			return storeError(c, err)
		}
		return c.JSON(http.StatusCreated, created)
	})
}

func rollupParams(c echo.Context) (domain.EntityType, string, bool) {
	et := domain.EntityType(c.QueryParam("entityType"))
	id := c.QueryParam("entityId")
	if !et.Valid() || id == "" {
		return "", "", false
	}
	return et, id, true
}

func getDirectUpdates(st Store, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		et, id, ok := rollupParams(c)
		if !ok {
			return c.String(http.StatusBadRequest, "invalid entityType or entityId")
		}
		return c.JSON(http.StatusOK, updatesResponse{Updates: st.UpdatesForEntity(et, id)})
	})
}

func getRelatedUpdates(st Store, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) (err error) {
		metrics, spanCtx := newRollupRequestMetrics(c.Request().Context(), logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		et, id, ok := rollupParams(c)
		if !ok {
			metrics.SetErrorStage("invalid_params")
			err = c.String(http.StatusBadRequest, "invalid entityType or entityId")
			return err
		}

		collectStart := time.Now()
		related := st.RelatedUpdates(et, id)
		metrics.ObserveCollect(time.Since(collectStart))
		metrics.SetUpdatesReturned(len(related))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, relatedUpdatesResponse{Updates: related})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	})
}

func postRefresh(syncer Refresher, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		if err := syncer.Refresh(c.Request().Context()); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
		}
		return c.NoContent(http.StatusNoContent)
	})
}

func getSyncStatus(syncer Refresher, auth Authenticator) echo.HandlerFunc {
	return withAuth(auth, func(c echo.Context, _ string) error {
		return c.JSON(http.StatusOK, syncer.Stats())
	})
}
