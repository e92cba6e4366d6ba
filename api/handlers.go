package api

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"lini/storage"
)

type okResponse struct {
	OK bool  `json:"ok"`
	ID int64 `json:"id,omitempty"`
}

type boardsResponse struct {
	Boards    []storage.Membership `json:"boards"`
	CSRFToken string               `json:"csrf_token"`
}

type createBoardRequest struct {
	Name string `json:"name"`
}

type joinRequest struct {
	JoinCode string `json:"join_code"`
}

type roleRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type reorderRequest struct {
	Order *[]int64 `json:"order"`
}

type cardCreateRequest struct {
	ListID int64  `json:"list_id"`
	Title  string `json:"title"`
}

type cardUpdateRequest struct {
	Title string `json:"title"`
	Desc  string `json:"desc"`
	Tag   string `json:"tag"`
}

type cardMoveRequest struct {
	CardID   *int64 `json:"card_id"`
	ToListID *int64 `json:"to_list_id"`
	ToIndex  *int   `json:"to_index"`
}

var storageErrors = []error{
	storage.ErrBoardNotFound,
	storage.ErrListNotFound,
	storage.ErrCardNotFound,
	storage.ErrNotFound,
	storage.ErrMissingFields,
	storage.ErrInvalidCode,
	storage.ErrBadRole,
	storage.ErrMemberNotFound,
	storage.ErrCreatorRole,
}

// fail answers with the wire code of a known storage error as 400 and with
// 500 for anything else.
func fail(c echo.Context, logger *log.Logger, err error) error {
	for _, known := range storageErrors {
		if errors.Is(err, known) {
			return c.String(http.StatusBadRequest, known.Error())
		}
	}
	stage(c, "storage")
	logger.WithFields(log.Fields{
		"route": c.Path(),
		"user":  userID(c),
		"error": err.Error(),
	}).Error("board.storage.failed")
	return c.String(http.StatusInternalServerError, "storage_error")
}

func ok(c echo.Context, id int64) error {
	return c.JSON(http.StatusOK, okResponse{OK: true, ID: id})
}

func badJSON(c echo.Context) error {
	return c.String(http.StatusBadRequest, "bad_json")
}

func listBoards(store Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		boards, err := store.Memberships(c.Request().Context(), userID(c))
		if err != nil {
			stage(c, "storage")
			return c.String(http.StatusInternalServerError, "storage_error")
		}
		if boards == nil {
			boards = []storage.Membership{}
		}
		return c.JSON(http.StatusOK, boardsResponse{Boards: boards, CSRFToken: csrfToken(c)})
	}
}

func createBoard(store Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createBoardRequest
		if err := decodeBody(c, &req); err != nil {
			return badJSON(c)
		}
		b, err := store.CreateBoard(c.Request().Context(), userID(c), req.Name)
		if err != nil {
			stage(c, "storage")
			return c.String(http.StatusInternalServerError, "storage_error")
		}
		return ok(c, b.ID)
	}
}

func joinBoard(store Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req joinRequest
		if err := decodeBody(c, &req); err != nil {
			return badJSON(c)
		}
		id, err := store.Join(c.Request().Context(), userID(c), req.JoinCode)
		if errors.Is(err, storage.ErrInvalidCode) {
			return c.String(http.StatusBadRequest, err.Error())
		}
		if err != nil {
			stage(c, "storage")
			return c.String(http.StatusInternalServerError, "storage_error")
		}
		return ok(c, id)
	}
}

func getSnapshot() echo.HandlerFunc {
	return func(c echo.Context) error {
		snap := boardOf(c).Snapshot(roleOf(c), c.QueryParam("q"))
		snap.CSRFToken = csrfToken(c)
		return c.JSON(http.StatusOK, snap)
	}
}

func exportBoard() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := sonic.ConfigStd.MarshalIndent(boardOf(c).Export(), "", "  ")
		if err != nil {
			stage(c, "encode")
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
	}
}

func resetBoard(store Store, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.Reset(c.Request().Context(), boardOf(c).ID); err != nil {
			return fail(c, logger, err)
		}
		return ok(c, 0)
	}
}

func setRole(store Store, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req roleRequest
		if err := decodeBody(c, &req); err != nil {
			return badJSON(c)
		}
		if req.UserID == "" {
			return c.String(http.StatusBadRequest, storage.ErrMissingFields.Error())
		}
		if err := store.SetRole(c.Request().Context(), boardOf(c).ID, req.UserID, req.Role); err != nil {
			return fail(c, logger, err)
		}
		return ok(c, 0)
	}
}

func createList(store Store, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req titleRequest
		if err := decodeBody(c, &req); err != nil {
			return badJSON(c)
		}
		id, err := store.CreateList(c.Request().Context(), boardOf(c).ID, req.Title)
		if err != nil {
			return fail(c, logger, err)
		}
		return ok(c, id)
	}
}

func renameList(store Store, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		listID, valid := pathID(c, "list")
		if !valid {
			return c.String(http.StatusBadRequest, storage.ErrListNotFound.Error())
		}
		var req titleRequest
		if err := decodeBody(c, &req); err != nil {
			return badJSON(c)
		}
		if err := store.RenameList(c.Request().Context(), boardOf(c).ID, listID, req.Title); err != nil {
			return fail(c, logger, err)
		}
		return ok(c, 0)
	}
}

func deleteList(store Store, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		listID, valid := pathID(c, "list")
		if !valid {
			return c.String(http.StatusBadRequest, storage.ErrListNotFound.Error())
		}
		if err := store.DeleteList(c.Request().Context(), boardOf(c).ID, listID); err != nil {
			return fail(c, logger, err)
		}
		return ok(c, 0)
	}
}

func reorderLists(store Store, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req reorderRequest
		if err := decodeBody(c, &req); err != nil || req.Order == nil {
			return c.String(http.StatusBadRequest, "bad_order")
		}
		if err := store.ReorderLists(c.Request().Context(), boardOf(c).ID, *req.Order); err != nil {
			return fail(c, logger, err)
		}
		return ok(c, 0)
	}
}

func createCard(store Store, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req cardCreateRequest
		if err := decodeBody(c, &req); err != nil {
			return badJSON(c)
		}
		id, err := store.CreateCard(c.Request().Context(), boardOf(c).ID, req.ListID, req.Title)
		if err != nil {
			return fail(c, logger, err)
		}
		return ok(c, id)
	}
}

func updateCard(store Store, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		cardID, valid := pathID(c, "card")
		if !valid {
			return c.String(http.StatusBadRequest, storage.ErrCardNotFound.Error())
		}
		var req cardUpdateRequest
		if err := decodeBody(c, &req); err != nil {
			return badJSON(c)
		}
		if err := store.UpdateCard(c.Request().Context(), boardOf(c).ID, cardID, req.Title, req.Desc, req.Tag); err != nil {
			return fail(c, logger, err)
		}
		return ok(c, 0)
	}
}

func deleteCard(store Store, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		cardID, valid := pathID(c, "card")
		if !valid {
			return c.String(http.StatusBadRequest, storage.ErrCardNotFound.Error())
		}
		if err := store.DeleteCard(c.Request().Context(), boardOf(c).ID, cardID); err != nil {
			return fail(c, logger, err)
		}
		return ok(c, 0)
	}
}

func moveCard(store Store, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req cardMoveRequest
		if err := decodeBody(c, &req); err != nil {
			return badJSON(c)
		}
		if req.CardID == nil || req.ToListID == nil || req.ToIndex == nil {
			return c.String(http.StatusBadRequest, storage.ErrMissingFields.Error())
		}
		if err := store.MoveCard(c.Request().Context(), boardOf(c).ID, *req.CardID, *req.ToListID, *req.ToIndex); err != nil {
			return fail(c, logger, err)
		}
		return ok(c, 0)
	}
}
