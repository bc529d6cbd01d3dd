// Package gochannel backs the event bus with an in-process channel, the
// default for local development and tests.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// outputBuffer bounds undelivered notifications; the approval path never
// blocks on a slow subscriber.
const outputBuffer = 1000

// CreateChannel returns a publisher and subscriber over one shared GoChannel.
// Publishing never waits for subscriber acks, matching the fire-and-forget
// contract of the notifier.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            outputBuffer,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)

	return pubSub, pubSub, nil
}
