// Package example shows an account service built on top of the stream store
package example

import (
	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/aggregate"
	"github.com/aneshas/streamstore/codec"
	"github.com/aneshas/streamstore/envelope"
	"github.com/aneshas/streamstore/example/account"
	"github.com/aneshas/streamstore/mimetype"
)

// Codecs returns the registry of every account event (and aggregate meta)
func Codecs() *codec.Registry {
	return codec.NewRegistry().
		Add(
			codec.NewJSON().
				Register(aggregate.TypeOf(account.NewAccountOpened{}), account.NewAccountOpened{}).
				Register(aggregate.TypeOf(account.DepositMade{}), account.DepositMade{}).
				Register(aggregate.TypeOf(account.WithdrawalMade{}), account.WithdrawalMade{}),
		).
		Add(aggregate.MetaCodec())
}

// NewEnvelopeCodec constructs the json envelope codec used to persist and
// relay account events
func NewEnvelopeCodec() (*envelope.Codec, error) {
	return envelope.New(mimetype.ApplicationJSON, Codecs())
}

// AccountStore is the account repository
type AccountStore = aggregate.Store[*account.Account]

// NewAccountStore constructs new account repository. Accounts are stored in
// "account(id=<id>)" streams.
func NewAccountStore(eventStore streamstore.Store) *AccountStore {
	return aggregate.NewStore[*account.Account](
		eventStore,
		aggregate.WithStreamID(func(id string) streamstore.StreamID {
			return streamstore.NewStreamID("account", streamstore.Param{Key: "id", Value: id})
		}),
	)
}
