package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"

	"github.com/kilianp07/flexmarket/core/model"
	coremqtt "github.com/kilianp07/flexmarket/core/mqtt"
)

// Codec encodes and decodes MQTT payloads.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type cborCodec struct {
	enc cbor.EncMode
}

func (cborCodec) Name() string                       { return "cbor" }
func (c cborCodec) Marshal(v any) ([]byte, error)    { return c.enc.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

// NewCodec returns the codec registered under name. An empty name selects JSON.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return jsonCodec{}, nil
	case "cbor":
		enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
		if err != nil {
			return nil, err
		}
		return cborCodec{enc: enc}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// BidMessage is the wire form of a bid submission. The valuation travels as
// a decimal string so no precision is lost in transit.
type BidMessage struct {
	AggregatorID string           `json:"aggregator_id"`
	Items        []model.LineItem `json:"items"`
	Valuation    string           `json:"valuation"`
}

// Bid validates the message and builds the corresponding bid.
func (m BidMessage) Bid() (model.Bid, error) {
	v, err := decimal.NewFromString(m.Valuation)
	if err != nil {
		return model.Bid{}, fmt.Errorf("%w: valuation %q", coremqtt.ErrMalformedMessage, m.Valuation)
	}
	return model.NewBid(m.AggregatorID, m.Items, v)
}

// DecodeBid decodes a payload into a bid.
func DecodeBid(c Codec, payload []byte) (model.Bid, error) {
	var m BidMessage
	if err := c.Unmarshal(payload, &m); err != nil {
		return model.Bid{}, fmt.Errorf("%w: %v", coremqtt.ErrMalformedMessage, err)
	}
	return m.Bid()
}
