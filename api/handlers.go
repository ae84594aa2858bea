package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"board-dnd/dnd"
	"board-dnd/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, deduper Deduper, logger *log.Logger) *dnd.Registry {
	reg := newGestureRegistry(store, deduper, logger)

	e.Use(GzipRequestMiddleware(dropPayloadMaxSize))

	e.GET("/api/board", getBoard(reg, auth))
	e.POST("/api/drag/begin", postDragBegin(reg, auth))
	e.POST("/api/drag/hover-exit", postHoverExit(reg, auth))
	e.POST("/api/drag/cancel", postDragCancel(reg, auth))
	e.POST("/api/stacks/:stackID/hover", postHover(reg, auth))
	e.POST("/api/stacks/:stackID/drop", postDrop(reg, auth, logger))
	e.GET("/healthz", healthz(store))

	initCommitSender(store, deduper, logger)
	return reg
}

// newGestureRegistry builds the per-user engine registry. Committer hooks
// reconcile asynchronous delivery outcomes back into the owning engine under
// its registry lock.
func newGestureRegistry(store Storage, deduper Deduper, logger *log.Logger) *dnd.Registry {
	var reg *dnd.Registry
	loader := func(ctx context.Context, userID string) (*dnd.Board, error) {
		stacks, items, err := store.FetchBoard(ctx, userID)
		if err != nil {
			return nil, err
		}
		return dnd.NewBoard(stacks, items), nil
	}
	commits := func(userID string) dnd.Committer {
		return &queueCommitter{
			userID:  userID,
			store:   store,
			deduper: deduper,
			logger:  logger,
			confirm: func() {
				_ = reg.With(bg, userID, func(e *dnd.Engine) error {
					e.ConfirmCommit()
					return nil
				})
			},
			revert: func() {
				_ = reg.With(bg, userID, func(e *dnd.Engine) error {
					e.RevertOptimistic()
					return nil
				})
			},
		}
	}
	reg = dnd.NewRegistry(loader, commits, logger)
	return reg
}

func healthz(_ Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getBoard(reg *dnd.Registry, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var resp boardResponse
		err = reg.With(ctx, userID, func(e *dnd.Engine) error {
			resp.Stacks = e.Board().Stacks()
			resp.Items = e.Board().Items()
			return nil
		})
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to load board")
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func postDragBegin(reg *dnd.Registry, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req beginDragRequest
		if err := decodeBody(c.Request().Body, gestureBodyMaxSize, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.ItemID == "" {
			return c.String(http.StatusBadRequest, "missing itemId")
		}

		var payload domain.Payload
		err = reg.With(ctx, userID, func(e *dnd.Engine) error {
			p, beginErr := e.BeginDrag(req.ItemID)
			payload = p
			return beginErr
		})
		if err != nil {
			if errors.Is(err, dnd.ErrUnknownItem) {
				return c.String(http.StatusNotFound, "unknown item")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to begin drag")
		}
		return c.JSON(http.StatusOK, beginDragResponse{
			MediaType: domain.PayloadMediaType,
			Data:      payload.Data,
			Text:      payload.Text,
		})
	}
}

func postHover(reg *dnd.Registry, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req hoverRequest
		if err := decodeBody(c.Request().Body, gestureBodyMaxSize, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.TargetItemID == "" {
			return c.String(http.StatusBadRequest, "missing targetItemId")
		}

		var resp hoverResponse
		err = reg.With(ctx, userID, func(e *dnd.Engine) error {
			resp.Order, resp.Changed = e.HoverEnter(req.TargetItemID)
			return nil
		})
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to apply hover")
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func postHoverExit(reg *dnd.Registry, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		err = reg.With(ctx, userID, func(e *dnd.Engine) error {
			e.HoverExit()
			return nil
		})
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to apply hover exit")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func postDragCancel(reg *dnd.Registry, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		err = reg.With(ctx, userID, func(e *dnd.Engine) error {
			e.Cancel()
			return nil
		})
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to cancel drag")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func postDrop(reg *dnd.Registry, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newDropRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		destStackID := c.Param("stackID")
		metrics.SetDestination(destStackID)

		payload, readErr := io.ReadAll(io.LimitReader(c.Request().Body, dropPayloadMaxSize+1))
		if readErr != nil {
			metrics.SetErrorStage("read_payload")
			err = c.String(http.StatusBadRequest, "unreadable payload")
			return err
		}
		if len(payload) > dropPayloadMaxSize {
			metrics.SetErrorStage("payload_too_large")
			err = c.String(http.StatusRequestEntityTooLarge, "payload too large")
			return err
		}

		decodeStart := time.Now()
		if env, decErr := domain.DecodeEnvelope(payload); decErr == nil {
			metrics.SetCrossStack(env.OriginStackID != destStackID)
		}
		metrics.ObserveDecode(time.Since(decodeStart))

		applyStart := time.Now()
		var res dnd.DropResult
		withErr := reg.With(ctx, userID, func(e *dnd.Engine) error {
			res = e.Drop(ctx, destStackID, payload)
			return nil
		})
		metrics.ObserveApply(time.Since(applyStart))
		if withErr != nil {
			metrics.SetErrorStage("load_board")
			c.Logger().Error(withErr)
			err = c.String(http.StatusInternalServerError, "failed to load board")
			return err
		}

		metrics.SetAccepted(res.Accepted)
		metrics.SetDuplicate(res.AlreadyApplied)
		if res.Err != nil {
			// The one user-visible error class: the optimistic order the
			// user saw has been rolled back.
			metrics.SetErrorStage("commit")
			err = c.JSON(http.StatusInternalServerError, dropResponse{
				Accepted: false,
				Order:    res.Order,
				Error:    "commit failed",
			})
			return err
		}

		err = c.JSON(http.StatusOK, dropResponse{Accepted: res.Accepted, Order: res.Order})
		return err
	}
}

// decodeBody reads a small JSON body with unknown fields rejected.
func decodeBody(r io.Reader, maxSize int64, out any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(r, maxSize))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
