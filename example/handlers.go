package example

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/aggregate"
	"github.com/aneshas/streamstore/example/account"
)

// OpenAccountReq is the open account request body
type OpenAccountReq struct {
	Holder string `json:"holder"`
}

// AmountReq is the deposit and withdrawal request body
type AmountReq struct {
	Amount int `json:"amount"`
}

// AccountResp represents an account
type AccountResp struct {
	ID      string `json:"id"`
	Holder  string `json:"holder"`
	Balance int    `json:"balance"`
	Version int    `json:"version"`
}

// Register mounts account endpoints on e
func Register(e *echo.Echo, store *AccountStore) {
	h := handlers{
		store: store,
		exec:  aggregate.NewExecutor(store),
	}

	e.POST("/accounts", h.open)
	e.GET("/accounts/:id", h.get)
	e.POST("/accounts/:id/deposits", h.deposit)
	e.POST("/accounts/:id/withdrawals", h.withdraw)
}

type handlers struct {
	store *AccountStore
	exec  aggregate.Executor[*account.Account]
}

func (h handlers) open(c echo.Context) error {
	var req OpenAccountReq

	if err := c.Bind(&req); err != nil {
		return err
	}

	acc, err := account.New(account.NewID(), req.Holder)
	if err != nil {
		return err
	}

	if err := h.store.Save(ctx(c), acc); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, resp(acc))
}

func (h handlers) get(c echo.Context) error {
	var acc account.Account

	if err := h.store.ByID(ctx(c), c.Param("id"), &acc); err != nil {
		return httpErr(err)
	}

	return c.JSON(http.StatusOK, resp(&acc))
}

func (h handlers) deposit(c echo.Context) error {
	return h.amount(c, (*account.Account).Deposit)
}

func (h handlers) withdraw(c echo.Context) error {
	return h.amount(c, (*account.Account).Withdraw)
}

func (h handlers) amount(c echo.Context, f func(*account.Account, int) error) error {
	var req AmountReq

	if err := c.Bind(&req); err != nil {
		return err
	}

	var acc account.Account

	acc.SetID(account.ID(c.Param("id")))

	err := h.exec(ctx(c), &acc, func(context.Context) error {
		return f(&acc, req.Amount)
	})
	if err != nil {
		return httpErr(err)
	}

	return c.JSON(http.StatusOK, resp(&acc))
}

// ctx carries the request id as correlation id of saved events
func ctx(c echo.Context) context.Context {
	rctx := c.Request().Context()

	if id := c.Request().Header.Get(echo.HeaderXRequestID); id != "" {
		rctx = aggregate.CtxWithCorrelationID(rctx, id)
	}

	return rctx
}

func resp(acc *account.Account) AccountResp {
	return AccountResp{
		ID:      acc.StringID(),
		Holder:  acc.Holder,
		Balance: acc.Balance,
		Version: acc.Version(),
	}
}

func httpErr(err error) error {
	switch {
	case errors.Is(err, aggregate.ErrAggregateNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "account not found")

	case errors.Is(err, account.ErrInvalidAmount), errors.Is(err, account.ErrInsufficientFunds):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, streamstore.ErrWrongExpectedVersion):
		return echo.NewHTTPError(http.StatusConflict, "account was modified concurrently")

	default:
		return err
	}
}
