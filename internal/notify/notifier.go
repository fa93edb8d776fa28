// Package notify reports publish outcomes to an operator channel.
// Notification failures are logged, never propagated: the publish result on
// the record is the source of truth.
package notify

import "github.com/user/reelqueue-go/internal/model"

// Notifier receives publish outcome events
type Notifier interface {
	PublishSucceeded(upload *model.Upload)
	PublishFailed(upload *model.Upload, reason string)
}

type nopNotifier struct{}

// Nop is a Notifier that does nothing, used when no channel is configured
var Nop Notifier = nopNotifier{}

func (nopNotifier) PublishSucceeded(*model.Upload) {}

func (nopNotifier) PublishFailed(*model.Upload, string) {}
