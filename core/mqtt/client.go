package mqtt

import (
	"context"

	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/core/wdp"
)

// BidHandler receives bids decoded from the bid topic. A returned error is
// logged by the transport and the message is dropped.
type BidHandler func(model.Bid) error

// BidSource delivers incoming bids to a handler until closed.
type BidSource interface {
	// OnBid sets the handler for subsequent messages.
	OnBid(h BidHandler)
}

// ResultPublisher publishes the outcome of a clearing round.
type ResultPublisher interface {
	PublishResult(ctx context.Context, res wdp.Result) error
}

// Client is the full transport used by the market service.
type Client interface {
	BidSource
	ResultPublisher
	Disconnect()
}
