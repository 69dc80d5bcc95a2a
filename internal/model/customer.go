package model

// Customer holds the contact fields and notification preferences the
// engine reads. The customer record is owned by the platform's data
// store; the engine never mutates it.
type Customer struct {
	ID              string `db:"id" json:"id"`
	FirstName       string `db:"first_name" json:"first_name"`
	LastName        string `db:"last_name" json:"last_name"`
	Email           string `db:"email" json:"email"`
	Phone           string `db:"phone" json:"phone"`
	NotifyEmail     bool   `db:"notify_email" json:"notify_email"`
	NotifySMS       bool   `db:"notify_sms" json:"notify_sms"`
	PMBNumber       string `db:"pmb_number" json:"pmb_number"`
	LocationName    string `db:"location_name" json:"location_name"`
	LocationAddress string `db:"location_address" json:"location_address"`
}

// FullName returns the customer's display name.
func (c Customer) FullName() string {
	if c.FirstName == "" && c.LastName == "" {
		return ""
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}
