package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusInTransit  Status = "in_transit"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusDeclined   Status = "declined"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true, StatusDeclined: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusInTransit: true},
	StatusInTransit:  {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
	StatusDeclined:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

// ReleasesStock reports whether entering s hands reserved quantities back to inventory.
func (s Status) ReleasesStock() bool {
	return s == StatusCancelled || s == StatusDeclined
}

// SalesStatuses returns the statuses counted as realised revenue in reports.
func SalesStatuses() []Status {
	return []Status{StatusProcessing, StatusShipped, StatusInTransit, StatusDelivered}
}

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentOnline         PaymentMethod = "online_payment"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCashOnDelivery || m == PaymentOnline
}
