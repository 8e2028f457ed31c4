package pretix

// Identity is the ticketing provider's view of the logged-in user. Email is the
// correlation key for everything downstream.
type Identity struct {
	Email string
}

// Entitlement records whether the user's purchases grant access to the live stream
type Entitlement struct {
	Email     string
	HasTicket bool
}

// Order is a single order placed with the ticketing provider
type Order struct {
	Code      string     `json:"code"`
	Status    string     `json:"status"`
	Email     string     `json:"email"`
	Positions []Position `json:"positions"`
}

// Position is a line item within an order, identifying the product that was purchased
type Position struct {
	Id   int `json:"id"`
	Item int `json:"item"`
}

// userInfo is the payload returned from the OAuth2 userinfo endpoint
type userInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// orderPage is a single page of results from the order listing endpoint
type orderPage struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []Order `json:"results"`
}
