package progress

// Profile is the per-user investigator record. It exists mostly so the
// reward coupon survives outside the case document once a case is closed.
type Profile struct {
	UserID     string `json:"userId"`
	Name       string `json:"name,omitempty"`
	CouponCode string `json:"couponCode,omitempty"`
}
