// Package channel decides which delivery medium a notification uses.
package channel

import "github.com/shivbardolabs/ShipOS-sub002/internal/model"

// Resolve picks the target channel set for a dispatch. An explicit
// channel from the caller wins outright. Otherwise it derives from the
// customer's opt-ins and contact fields: both when email and SMS are
// viable, sms when only SMS is, and email as the documented fallback
// even without an explicit email opt-in.
func Resolve(explicit model.Channel, customer model.Customer) model.Channel {
	if explicit != "" {
		return explicit
	}

	wantsEmail := customer.NotifyEmail && customer.Email != ""
	wantsSMS := customer.NotifySMS && customer.Phone != ""

	switch {
	case wantsEmail && wantsSMS:
		return model.ChannelBoth
	case wantsSMS:
		return model.ChannelSMS
	default:
		return model.ChannelEmail
	}
}
