// Package ambar projects events delivered by ambar (https://ambar.cloud)
// out of the sqlstore event table
package ambar

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/relvacode/iso8601"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/codec"
)

var (
	// ErrNoRetry is the error returned when we don't want to retry
	// projecting events in case of an error.
	// This is also the default behavior when an error is returned but this
	// error can be used if we also want to wrap the error eg. for logging
	ErrNoRetry = errors.New("no retry")

	// ErrKeepItGoing is the error returned when we want to keep projecting
	// events in case of an error
	ErrKeepItGoing = errors.New("keep it going")

	// ErrRetry is returned when the delivered record could not be
	// deserialized, ambar should deliver it again
	ErrRetry = errors.New("retry")
)

// SuccessResp is the success response
// https://docs.ambar.cloud/#Data%20Destinations
var SuccessResp = `{
  "result": {
    "success": {}
  }
}`

// RetryResp is the retry response
// https://docs.ambar.cloud/#Data%20Destinations
var RetryResp = `{
  "result": {
    "error": {
      "policy": "must_retry",
      "class": "must retry it",
      "description": "must retry it"
    }
  }
}`

// KeepGoingResp is the keep going response
// https://docs.ambar.cloud/#Data%20Destinations
var KeepGoingResp = `{
  "result": {
    "error": {
      "policy": "keep_going",
      "class": "keep it going",
      "description": "keep it going"
    }
  }
}`

var jsonAPI = sonic.ConfigStd

// Decoder decodes stored envelopes (implemented by *envelope.Codec)
type Decoder interface {
	Decode(data []byte) (streamstore.CommonEvent, error)
}

// New constructs a new Ambar projection handler
func New(dec Decoder) *Ambar {
	return &Ambar{dec: dec}
}

// Ambar is a projection handler for ambar events
type Ambar struct {
	dec Decoder
}

// Req is the ambar projection request
type Req struct {
	Payload Payload `json:"payload"`
}

// Payload is a single event table record
type Payload struct {
	Sequence      uint64  `json:"sequence"`
	ID            string  `json:"id"`
	StreamID      string  `json:"stream_id"`
	Generation    int     `json:"generation"`
	StreamVersion int64   `json:"stream_version"`
	Type          string  `json:"type"`
	ContentType   string  `json:"content_type"`
	Tenant        *string `json:"tenant"`
	Envelope      string  `json:"envelope"`
	Deleted       bool    `json:"deleted"`
	OccurredOn    string  `json:"occurred_on"`
}

// Project projects ambar event to provided projection.
// Records which can not be deserialized are reported with ErrRetry, events
// of unregistered types and events of deleted streams are skipped.
func (a *Ambar) Project(_ context.Context, projection streamstore.Projection, data []byte) error {
	var req Req

	if err := jsonAPI.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("%w: request: %v", ErrRetry, err)
	}

	p := req.Payload

	if p.Deleted {
		return nil
	}

	evt, err := a.dec.Decode([]byte(p.Envelope))
	if err != nil {
		if errors.Is(err, codec.ErrNoCodecFound) {
			return nil
		}

		return fmt.Errorf("%w: envelope: %v", ErrRetry, err)
	}

	stream, err := streamstore.ParseStreamID(p.StreamID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRetry, err)
	}

	occurredOn, err := iso8601.ParseString(p.OccurredOn)
	if err != nil {
		return fmt.Errorf("%w: occurred on: %v", ErrRetry, err)
	}

	return projection(streamstore.RecordedEvent{
		Stream:   stream,
		Number:   p.StreamVersion,
		Position: int64(p.Sequence) - 1,
		Created:  occurredOn,
		Event:    evt,
	})
}
