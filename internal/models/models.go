package models

import "time"

const (
	InvoiceStatusPending = "PENDING"
	InvoiceStatusPaid    = "PAID"
	InvoiceStatusExpired = "EXPIRED"
	InvoiceStatusError   = "ERROR"
)

const (
	InvoiceKindTopup    = "TOPUP"
	InvoiceKindPurchase = "PURCHASE"
)

const (
	ProviderCryptoPay  = "CRYPTOPAY"
	ProviderCrystalPay = "CRYSTALPAY"
	ProviderStars      = "STARS"
	ProviderBalance    = "BALANCE"
)

type User struct {
	ID           int64     `json:"id"`
	TelegramID   int64     `json:"telegramId"`
	Username     string    `json:"username,omitempty"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName,omitempty"`
	BalanceCents int64     `json:"balanceCents"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Plan struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Months      int    `json:"months"`
	PriceCents  int64  `json:"priceCents"`
	StarsPrice  int64  `json:"starsPrice"`
	Description string `json:"description,omitempty"`
}

type Credential struct {
	ID      int64  `json:"id"`
	PlanID  int    `json:"planId"`
	Region  string `json:"region"`
	Secret  string `json:"secret"`
	Claimed bool   `json:"claimed"`
}

type Order struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	PlanID       int       `json:"planId"`
	CredentialID int64     `json:"credentialId"`
	Region       string    `json:"region"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type Invoice struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"userId"`
	Kind        string    `json:"kind"`
	PlanID      *int      `json:"planId,omitempty"`
	Region      string    `json:"region,omitempty"`
	AmountCents int64     `json:"amountCents"`
	Provider    string    `json:"provider"`
	ExternalRef string    `json:"externalRef,omitempty"`
	PayURL      string    `json:"payUrl,omitempty"`
	Status      string    `json:"status"`
	Fulfilled   bool      `json:"fulfilled"`
	CreatedAt   time.Time `json:"createdAt"`
}

type PromoCode struct {
	Code            string     `json:"code"`
	AmountCents     int64      `json:"amountCents"`
	MaxActivations  *int       `json:"maxActivations,omitempty"`
	UsedActivations int        `json:"usedActivations"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	IsActive        bool       `json:"isActive"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type PromoCodeInput struct {
	Code           string     `json:"code"`
	AmountCents    int64      `json:"amountCents"`
	MaxActivations *int       `json:"maxActivations,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	IsActive       bool       `json:"isActive"`
}

// CredentialStat is the unclaimed inventory count for one plan and region.
type CredentialStat struct {
	PlanID    int    `json:"planId"`
	Region    string `json:"region"`
	Available int    `json:"available"`
}

type AdminStats struct {
	UsersCount          int   `json:"usersCount"`
	ActiveOrders        int   `json:"activeOrders"`
	RevenueCents        int64 `json:"revenueCents"`
	PromoCodesTotal     int   `json:"promoCodesTotal"`
	PromoActivations    int   `json:"promoActivations"`
	PromoGrantedCents   int64 `json:"promoGrantedCents"`
	UnfulfilledInvoices int   `json:"unfulfilledInvoices"`
}
