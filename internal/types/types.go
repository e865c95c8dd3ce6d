// Package types holds the domain records shared between the scan pipeline,
// the collaborator services and the stores.
package types

import "time"

// UserCategory values accepted by the system.
const (
	CategoryStudent = "student"
	CategoryStaff   = "staff"
)

// BlockInfo describes an administrative block on a user account.
// A zero ExpiresAt means the block is indefinite.
type BlockInfo struct {
	Reason    string     `json:"reason,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	BlockedAt *time.Time `json:"blockedAt,omitempty"`
	BlockedBy string     `json:"blockedBy,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// User is a registered card holder.
type User struct {
	ID          string     `json:"id"`
	UID         string     `json:"uid"` // canonical uppercase hex card UID
	Name        string     `json:"name"`
	ClassOrYear string     `json:"classOrYear,omitempty"`
	Category    string     `json:"category"`
	Email       string     `json:"email,omitempty"`
	IsActive    bool       `json:"isActive"`
	IsBlocked   bool       `json:"isBlocked"`
	Block       BlockInfo  `json:"block,omitempty"`
	LastScanAt  *time.Time `json:"lastScanAt,omitempty"`
	ScanCount   int        `json:"scanCount"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Snapshot returns the subset of user fields that terminal clients render
// in scan results.
func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:          u.ID,
		UID:         u.UID,
		Name:        u.Name,
		ClassOrYear: u.ClassOrYear,
		Category:    u.Category,
		IsActive:    u.IsActive,
		IsBlocked:   u.IsBlocked,
		ScanCount:   u.ScanCount,
	}
}

// UserSnapshot is the user view embedded in scanResult events.
type UserSnapshot struct {
	ID          string `json:"id"`
	UID         string `json:"uid"`
	Name        string `json:"name"`
	ClassOrYear string `json:"classOrYear,omitempty"`
	Category    string `json:"category"`
	IsActive    bool   `json:"isActive"`
	IsBlocked   bool   `json:"isBlocked"`
	ScanCount   int    `json:"scanCount"`
	Status      string `json:"status,omitempty"` // denial reason on failed scans
}

// Reservation statuses. A reservation is "pending" for the scan pipeline
// while in any of the first three states; served and cancelled reservations
// are never shown at the counter.
const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationPrepared  = "prepared"
	ReservationServed    = "served"
	ReservationCancelled = "cancelled"
)

// Meal types.
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealSnack     = "snack"
)

// Reservation is a pre-ordered meal a student may redeem at the counter.
type Reservation struct {
	ID              string     `json:"id"`
	StudentID       string     `json:"studentId"`
	FoodID          string     `json:"foodId"`
	FoodName        string     `json:"foodName"`
	Date            time.Time  `json:"date"`
	Quantity        int        `json:"quantity"`
	MealType        string     `json:"mealType"`
	Status          string     `json:"status"`
	EstimatedCost   float64    `json:"estimatedCost"`
	ActualCost      *float64   `json:"actualCost,omitempty"`
	Instructions    string     `json:"instructions,omitempty"`
	AllergyNotes    string     `json:"allergyNotes,omitempty"`
	ServedAt        *time.Time `json:"servedAt,omitempty"`
	ServedByStation string     `json:"servedByStation,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// UnitPrice returns the per-item price to charge: the actual cost when the
// kitchen recorded one, the estimate otherwise.
func (r *Reservation) UnitPrice() float64 {
	if r.ActualCost != nil {
		return *r.ActualCost
	}
	return r.EstimatedCost
}

// Payment methods and statuses for purchases.
const (
	PaymentCash           = "cash"
	PaymentMonthlyBilling = "monthly_billing"

	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// PurchaseItem is one line of a purchase.
type PurchaseItem struct {
	FoodID   string  `json:"foodId"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Subtotal float64 `json:"subtotal"`
}

// Purchase records a completed sale or a fulfilled reservation.
type Purchase struct {
	ID            string         `json:"id"`
	UserID        string         `json:"userId"`
	UID           string         `json:"uid"`
	UserName      string         `json:"userName"`
	UserCategory  string         `json:"userCategory"`
	Items         []PurchaseItem `json:"items"`
	TotalAmount   float64        `json:"totalAmount"`
	Station       string         `json:"station"`
	ProcessedBy   string         `json:"processedBy"`
	Notes         string         `json:"notes,omitempty"`
	PaymentMethod string         `json:"paymentMethod"`
	PaymentStatus string         `json:"paymentStatus"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// AccessDecision is the outcome of validating a user's access.
type AccessDecision struct {
	CanAccess bool   `json:"canAccess"`
	Reason    string `json:"reason,omitempty"`  // short machine-ish reason, e.g. "Account is blocked"
	Message   string `json:"message,omitempty"` // human-readable explanation for the operator
}
