package template

import (
	"fmt"
	"strings"

	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
)

// Default returns a registry with producers for every built-in
// notification type.
func Default() *Registry {
	r := NewRegistry()
	r.Register(model.TypePackageArrival, packageArrival)
	r.Register(model.TypePackageReminder, packageReminder)
	r.Register(model.TypeMailReceived, mailReceived)
	r.Register(model.TypeIDExpiring, idExpiring)
	r.Register(model.TypeRenewalReminder, renewalReminder)
	r.Register(model.TypeShipmentUpdate, shipmentUpdate)
	r.Register(model.TypeWelcome, welcome)
	r.Register(model.TypeCustom, custom)
	return r
}

func plural(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}

// emailText wraps a message line into the plain-text email body.
func emailText(name, line, location string) string {
	return fmt.Sprintf("Hi %s,\n\n%s\n\n%s", name, line, location)
}

func packageArrival(d Data) Content {
	name := d.Str("customerName", "Customer")
	pmb := d.Str("pmbNumber", "PMB-0001")
	carrier := d.Str("carrier", "a carrier")
	location := d.Str("locationName", "your mailbox location")

	line := fmt.Sprintf("Hi %s, a new %s package has arrived at your mailbox %s. Please pick up at your convenience.",
		name, strings.ToUpper(carrier), pmb)
	return Content{
		EmailSubject: fmt.Sprintf("📦 New %s package at %s", strings.ToUpper(carrier), pmb),
		EmailBody:    emailText(name, line, location),
		SMSBody:      line,
	}
}

func packageReminder(d Data) Content {
	name := d.Str("customerName", "Customer")
	pmb := d.Str("pmbNumber", "PMB-0001")
	count := d.Int("packageCount", 1)
	location := d.Str("locationName", "your mailbox location")

	line := fmt.Sprintf("Hi %s, reminder: you have %d package%s waiting at %s. Please pick up soon to avoid storage fees.",
		name, count, plural(count), pmb)
	return Content{
		EmailSubject: fmt.Sprintf("⏰ %d package%s waiting at %s", count, plural(count), pmb),
		EmailBody:    emailText(name, line, location),
		SMSBody:      line,
	}
}

func mailReceived(d Data) Content {
	name := d.Str("customerName", "Customer")
	pmb := d.Str("pmbNumber", "PMB-0001")
	location := d.Str("locationName", "your mailbox location")

	line := fmt.Sprintf("Hi %s, new mail has been received at your mailbox %s. Contact your location for handling options.",
		name, pmb)
	return Content{
		EmailSubject: fmt.Sprintf("✉️ New mail received at %s", pmb),
		EmailBody:    emailText(name, line, location),
		SMSBody:      line,
	}
}

func idExpiring(d Data) Content {
	name := d.Str("customerName", "Customer")
	pmb := d.Str("pmbNumber", "PMB-0001")
	days := d.Int("daysUntilExpiry", 0)
	location := d.Str("locationName", "your mailbox location")

	expiry := fmt.Sprintf("expires in %d day%s", days, plural(days))
	if days <= 0 {
		expiry = "has expired"
	}
	line := fmt.Sprintf("Hi %s, your ID on file for %s %s. Please bring updated ID to your location.",
		name, pmb, expiry)
	return Content{
		EmailSubject: fmt.Sprintf("⚠️ ID expiration notice for %s", pmb),
		EmailBody:    emailText(name, line, location),
		SMSBody:      line,
	}
}

func renewalReminder(d Data) Content {
	name := d.Str("customerName", "Customer")
	pmb := d.Str("pmbNumber", "PMB-0001")
	renewalDate := d.Str("renewalDate", "soon")
	location := d.Str("locationName", "your mailbox location")

	line := fmt.Sprintf("Hi %s, your mailbox %s renewal is due on %s. Please renew to avoid service interruption.",
		name, pmb, renewalDate)
	return Content{
		EmailSubject: fmt.Sprintf("📋 Mailbox renewal reminder - %s", pmb),
		EmailBody:    emailText(name, line, location),
		SMSBody:      line,
	}
}

func shipmentUpdate(d Data) Content {
	name := d.Str("customerName", "Customer")
	pmb := d.Str("pmbNumber", "PMB-0001")
	carrier := d.Str("carrier", "")
	status := d.Str("status", "updated")
	location := d.Str("locationName", "your mailbox location")

	line := fmt.Sprintf("Hi %s, shipment update for %s: %s shipment is now %s.",
		name, pmb, strings.ToUpper(carrier), status)
	return Content{
		EmailSubject: fmt.Sprintf("🚚 Shipment update - %s %s", strings.ToUpper(carrier), status),
		EmailBody:    emailText(name, line, location),
		SMSBody:      line,
	}
}

func welcome(d Data) Content {
	name := d.Str("customerName", "Customer")
	pmb := d.Str("pmbNumber", "PMB-0001")
	location := d.Str("locationName", "your mailbox location")

	line := fmt.Sprintf("Welcome to ShipOS Pro, %s! Your mailbox %s is now active. You'll receive notifications for packages and mail.",
		name, pmb)
	return Content{
		EmailSubject: fmt.Sprintf("🎉 Welcome to ShipOS Pro - %s is ready!", pmb),
		EmailBody:    emailText(name, line, location),
		SMSBody:      line,
	}
}

// custom passes caller-supplied subject and body through verbatim.
// The orchestrator merges them into the data bag before resolution.
func custom(d Data) Content {
	subject := d.Str("subject", "")
	body := d.Str("body", "")
	return Content{
		EmailSubject: subject,
		EmailBody:    body,
		SMSBody:      body,
	}
}
