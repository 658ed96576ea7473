package aggregate

import (
	"context"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/codec"
)

// Event represents an uncommitted domain event
type Event struct {
	ID   streamstore.EventID
	Type codec.TypeName
	E    any
}

// MetaType is the type name Meta is stored under. It needs to be registered
// with a codec (see MetaCodec) for envelope backed stores.
const MetaType codec.TypeName = "AggregateMeta"

// Meta is attached to every event saved with a context carrying
// causation id, correlation id or arbitrary metadata
type Meta struct {
	CausationID   string            `json:"causation_id,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Values        map[string]string `json:"values,omitempty"`
}

// MetaCodec returns a json codec owning Meta
func MetaCodec() *codec.JSON {
	return codec.NewJSON().Register(MetaType, Meta{})
}

type ctxKey int

const (
	ctxMeta ctxKey = iota
	ctxCausationID
	ctxCorrelationID
)

// CtxWithMeta returns new context with meta data
func CtxWithMeta(ctx context.Context, meta map[string]string) context.Context {
	return context.WithValue(ctx, ctxMeta, meta)
}

// CtxWithCausationID returns new context with causation ID
func CtxWithCausationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxCausationID, id)
}

// CtxWithCorrelationID returns new context with correlation ID
func CtxWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxCorrelationID, id)
}

func metaFromCtx(ctx context.Context) (Meta, bool) {
	var meta Meta

	if v, ok := ctx.Value(ctxMeta).(map[string]string); ok {
		meta.Values = v
	}

	if v, ok := ctx.Value(ctxCausationID).(string); ok {
		meta.CausationID = v
	}

	if v, ok := ctx.Value(ctxCorrelationID).(string); ok {
		meta.CorrelationID = v
	}

	return meta, meta.CausationID != "" || meta.CorrelationID != "" || len(meta.Values) > 0
}
