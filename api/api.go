// Package api is the board persistence service: an echo application that
// authenticates callers, checks their board role and applies commands to a
// store.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"lini/domain"
	"lini/perm"
	"lini/storage"
)

const (
	maxBodySize = 1 << 20

	// CSRFCookie holds the anti-forgery token; POSTs echo it in
	// HeaderCSRFToken.
	CSRFCookie      = "_csrf"
	HeaderCSRFToken = "X-CSRFToken"

	ctxUser  = "user"
	ctxBoard = "board"
	ctxRole  = "role"
	ctxCSRF  = "csrf"
)

// Store is the board storage the service needs.
type Store interface {
	Board(ctx context.Context, boardID int64) (storage.BoardState, error)
	Memberships(ctx context.Context, userID string) ([]storage.Membership, error)
	CreateBoard(ctx context.Context, userID, name string) (storage.BoardState, error)
	Join(ctx context.Context, userID, code string) (int64, error)
	SetRole(ctx context.Context, boardID int64, userID, role string) error
	CreateList(ctx context.Context, boardID int64, title string) (int64, error)
	RenameList(ctx context.Context, boardID, listID int64, title string) error
	DeleteList(ctx context.Context, boardID, listID int64) error
	ReorderLists(ctx context.Context, boardID int64, order []int64) error
	CreateCard(ctx context.Context, boardID, listID int64, title string) (int64, error)
	UpdateCard(ctx context.Context, boardID, cardID int64, title, desc, tag string) error
	DeleteCard(ctx context.Context, boardID, cardID int64) error
	MoveCard(ctx context.Context, boardID, cardID, toListID int64, toIndex int) error
	Reset(ctx context.Context, boardID int64) error
}

// Register wires every route on e and makes sonic its JSON serializer. A nil
// deduper accepts repeated commands.
func Register(e *echo.Echo, store Store, auth Authenticator, deduper Deduper, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e.JSONSerializer = sonicSerializer{}
	e.GET("/healthz", healthz)

	g := e.Group("/api", withMetrics(logger), authenticate(auth), CSRF())
	g.GET("/boards/", listBoards(store))
	g.POST("/boards/create/", createBoard(store))
	g.POST("/boards/join/", joinBoard(store))

	b := g.Group("/boards/:board", loadMember(store), idempotent(deduper))
	b.GET("/", getSnapshot())
	b.GET("/export/", exportBoard())
	b.POST("/reset/", resetBoard(store, logger), require(perm.Capabilities.Reset, "not_admin"))
	b.POST("/role/", setRole(store, logger), require(perm.Capabilities.ManageRoles, "not_admin"))

	lists := require(perm.Capabilities.ManageLists, "no_list_permission")
	b.POST("/list/create/", createList(store, logger), lists)
	b.POST("/list/reorder/", reorderLists(store, logger), lists)
	b.POST("/list/:list/rename/", renameList(store, logger), lists)
	b.POST("/list/:list/delete/", deleteList(store, logger), lists)

	cards := require(perm.Capabilities.ManageCards, "no_card_permission")
	b.POST("/card/create/", createCard(store, logger), cards)
	b.POST("/card/move/", moveCard(store, logger), cards)
	b.POST("/card/:card/update/", updateCard(store, logger), cards)
	b.POST("/card/:card/delete/", deleteCard(store, logger), cards)
}

// CSRF checks the anti-forgery token on unsafe methods and issues one on
// every request.
func CSRF() echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:" + HeaderCSRFToken,
		CookieName:     CSRFCookie,
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
		ContextKey:     ctxCSRF,
	})
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func authenticate(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				stage(c, "auth")
				return c.String(http.StatusUnauthorized, err.Error())
			}
			c.Set(ctxUser, userID)
			if m := metricsFrom(c); m != nil {
				m.SetUser(userID)
			}
			return next(c)
		}
	}
}

// loadMember resolves the board in the path and the caller's role on it.
func loadMember(store Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := strconv.ParseInt(c.Param("board"), 10, 64)
			if err != nil {
				return c.String(http.StatusNotFound, "not_found")
			}
			if m := metricsFrom(c); m != nil {
				m.SetBoard(id)
			}
			board, err := store.Board(c.Request().Context(), id)
			if errors.Is(err, storage.ErrBoardNotFound) {
				return c.String(http.StatusNotFound, "not_found")
			}
			if err != nil {
				stage(c, "storage")
				return c.String(http.StatusInternalServerError, err.Error())
			}
			role := board.RoleOf(userID(c))
			if role == domain.RoleNone {
				return c.String(http.StatusForbidden, "not_member")
			}
			if !perm.For(role).Read() {
				return c.String(http.StatusForbidden, "forbidden")
			}
			c.Set(ctxBoard, board)
			c.Set(ctxRole, role)
			return next(c)
		}
	}
}

// require rejects callers whose role lacks a capability with 403 code.
func require(can func(perm.Capabilities) bool, code string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !can(perm.For(roleOf(c))) {
				return c.String(http.StatusForbidden, code)
			}
			return next(c)
		}
	}
}

func userID(c echo.Context) string {
	id, _ := c.Get(ctxUser).(string)
	return id
}

func roleOf(c echo.Context) domain.Role {
	r, _ := c.Get(ctxRole).(domain.Role)
	return r
}

func boardOf(c echo.Context) storage.BoardState {
	b, _ := c.Get(ctxBoard).(storage.BoardState)
	return b
}

func csrfToken(c echo.Context) string {
	t, _ := c.Get(ctxCSRF).(string)
	return t
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(c echo.Context, v any) error {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	return sonic.ConfigStd.Unmarshal(data, v)
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil
}

type sonicSerializer struct{}

func (sonicSerializer) Serialize(c echo.Context, i any, indent string) error {
	var (
		data []byte
		err  error
	)
	if indent != "" {
		data, err = sonic.ConfigStd.MarshalIndent(i, "", indent)
	} else {
		data, err = sonic.ConfigStd.Marshal(i)
	}
	if err != nil {
		return err
	}
	_, err = c.Response().Write(data)
	return err
}

func (sonicSerializer) Deserialize(c echo.Context, i any) error {
	return sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(i)
}
