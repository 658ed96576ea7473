package main

import (
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/ambar"
	"github.com/aneshas/streamstore/ambar/echoambar"
	"github.com/aneshas/streamstore/example"
	"github.com/aneshas/streamstore/example/account"
)

func main() {
	e := echo.New()

	e.Use(middleware.BasicAuth(func(username, password string, c echo.Context) (bool, error) {
		if username == "user" && password == "pass" {
			return true, nil
		}

		return false, nil
	}))

	dec, err := example.NewEnvelopeCodec()
	if err != nil {
		log.Fatal(err)
	}

	hf := echoambar.Wrap(ambar.New(dec))

	e.POST("/projections/accounts/v1", hf(NewConsoleOutputProjection()))

	log.Fatal(e.Start(":8181"))
}

// NewConsoleOutputProjection constructs an example projection that outputs
// new accounts to the console. It might as well be to any kind of
// database, disk, memory etc...
func NewConsoleOutputProjection() streamstore.Projection {
	return func(data streamstore.RecordedEvent) error {
		switch evt := data.Event.Data.(type) {
		case account.NewAccountOpened:
			fmt.Printf("Account: #%s | Holder: <%s>\n", evt.AccountID, evt.Holder)

		case account.DepositMade:
			fmt.Printf("Deposited the amount of %d EUR\n", evt.Amount)

		case account.WithdrawalMade:
			fmt.Printf("Withdrew the amount of %d EUR\n", evt.Amount)

		default:
			fmt.Println("not interested in this event")
		}

		return nil
	}
}
