package domain

import "time"

// Reservation is the merged snapshot handed to the call-taking agent.
// Stage-one status fields are always present when Found; enrichment fields
// are best effort and may be empty.
type Reservation struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Pickup        string `json:"pickup"`
	Dropoff       string `json:"dropoff"`
	ScheduledTime string `json:"scheduled_time"`
	PassengerName string `json:"passenger_name,omitempty"`
	VehicleNumber string `json:"vehicle_number,omitempty"`
	DriverName    string `json:"driver_name,omitempty"`
	PaymentType   string `json:"payment_type,omitempty"`
	RawDetail     string `json:"raw_detail,omitempty"`
}

// LookupResult is the outcome of a reservation lookup. Note is a system
// note for the agent; it must never be voiced to the caller verbatim.
type LookupResult struct {
	Found       bool        `json:"found"`
	Reservation Reservation `json:"reservation"`
	Note        string      `json:"note,omitempty"`
}

// Account is a voucher account row from the dispatch backend.
type Account struct {
	ID           string `json:"id"`
	Company      string `json:"company"`
	Abbreviation string `json:"abbreviation,omitempty"`
}

// CallSession carries per-call context between telephony webhooks.
type CallSession struct {
	ID        string       `json:"id"`
	Tenant    string       `json:"tenant"`
	Phone     string       `json:"phone"`
	Result    LookupResult `json:"result"`
	CreatedAt time.Time    `json:"created_at"`
}

// CallLogEntry is one audited lookup. Phone is stored masked.
type CallLogEntry struct {
	ID         int64
	Tenant     string
	Phone      string
	Found      bool
	Note       string
	DurationMS int64
	CreatedAt  time.Time
}
