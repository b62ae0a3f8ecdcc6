package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	UnitPiece = "piece"
	UnitStrip = "strip"
	UnitBox   = "box"
)

const (
	CustomerGeneral = "general"
	CustomerDoctor  = "doctor"
	CustomerClinic  = "clinic"
)

const (
	PaymentCash         = "cash"
	PaymentCard         = "card"
	PaymentCredit       = "credit"
	PaymentBankTransfer = "bank_transfer"
)

const (
	SaleStatusCompleted = "completed"
	SaleStatusPending   = "pending"
	SaleStatusCancelled = "cancelled"
)

const (
	PrescriptionNo         = "no"
	PrescriptionYes        = "yes"
	PrescriptionControlled = "controlled"
)

// PriceContextPrescription selects the prescription price tier for a sale.
const PriceContextPrescription = "prescription"

type Manufacturer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type ManufacturerCreateRequest struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

type Supplier struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Address       string    `json:"address,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Address       string `json:"address"`
}

type Medicine struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	GenericName          string          `json:"generic_name,omitempty"`
	Form                 string          `json:"form"`
	Strength             string          `json:"strength,omitempty"`
	ManufacturerID       string          `json:"manufacturer_id"`
	GeneralPrice         decimal.Decimal `json:"general_price"`
	DoctorPrice          decimal.Decimal `json:"doctor_price"`
	PrescriptionPrice    decimal.Decimal `json:"prescription_price"`
	UnitsPerStrip        int             `json:"units_per_strip"`
	StripsPerBox         int             `json:"strips_per_box"`
	PrescriptionRequired string          `json:"prescription_required"`
	Description          string          `json:"description,omitempty"`
	UsageInstructions    string          `json:"usage_instructions,omitempty"`
	SideEffects          string          `json:"side_effects,omitempty"`
	Active               bool            `json:"active"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

type MedicineCreateRequest struct {
	Name                 string          `json:"name"`
	GenericName          string          `json:"generic_name"`
	Form                 string          `json:"form"`
	Strength             string          `json:"strength"`
	ManufacturerID       string          `json:"manufacturer_id"`
	GeneralPrice         decimal.Decimal `json:"general_price"`
	DoctorPrice          decimal.Decimal `json:"doctor_price"`
	PrescriptionPrice    decimal.Decimal `json:"prescription_price"`
	UnitsPerStrip        int             `json:"units_per_strip"`
	StripsPerBox         int             `json:"strips_per_box"`
	PrescriptionRequired string          `json:"prescription_required"`
	Description          string          `json:"description"`
	UsageInstructions    string          `json:"usage_instructions"`
	SideEffects          string          `json:"side_effects"`
}

type MedicineUpdateRequest struct {
	Name                 *string          `json:"name,omitempty"`
	GenericName          *string          `json:"generic_name,omitempty"`
	Form                 *string          `json:"form,omitempty"`
	Strength             *string          `json:"strength,omitempty"`
	GeneralPrice         *decimal.Decimal `json:"general_price,omitempty"`
	DoctorPrice          *decimal.Decimal `json:"doctor_price,omitempty"`
	PrescriptionPrice    *decimal.Decimal `json:"prescription_price,omitempty"`
	UnitsPerStrip        *int             `json:"units_per_strip,omitempty"`
	StripsPerBox         *int             `json:"strips_per_box,omitempty"`
	PrescriptionRequired *string          `json:"prescription_required,omitempty"`
	UsageInstructions    *string          `json:"usage_instructions,omitempty"`
	SideEffects          *string          `json:"side_effects,omitempty"`
	Active               *bool            `json:"active,omitempty"`
}

type MedicineFilter struct {
	Search          string
	Form            string
	ManufacturerID  string
	IncludeInactive bool
	Limit           int
}

type MedicineDetail struct {
	Medicine   Medicine `json:"medicine"`
	TotalStock int      `json:"total_stock"`
	Batches    []Batch  `json:"batches"`
}

type PriceQuote struct {
	MedicineID string          `json:"medicine_id"`
	Tier       string          `json:"tier"`
	UnitType   string          `json:"unit_type"`
	BasePrice  decimal.Decimal `json:"base_price"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Pieces     int             `json:"pieces"`
}

type Batch struct {
	ID              string          `json:"id"`
	BatchNumber     string          `json:"batch_number"`
	MedicineID      string          `json:"medicine_id"`
	MedicineName    string          `json:"medicine_name,omitempty"`
	SupplierID      string          `json:"supplier_id"`
	ManufactureDate *time.Time      `json:"manufacture_date,omitempty"`
	ExpiryDate      time.Time       `json:"expiry_date"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	InitialQuantity int             `json:"initial_quantity"`
	CurrentQuantity int             `json:"current_quantity"`
	IsConsignment   bool            `json:"is_consignment"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type BatchCreateRequest struct {
	BatchNumber     string          `json:"batch_number"`
	MedicineID      string          `json:"medicine_id"`
	SupplierID      string          `json:"supplier_id"`
	ManufactureDate string          `json:"manufacture_date,omitempty"`
	ExpiryDate      string          `json:"expiry_date"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	Quantity        int             `json:"quantity"`
	IsConsignment   bool            `json:"is_consignment"`
	Notes           string          `json:"notes"`
}

// BatchFilter narrows batch listings. Expiry bounds are inclusive dates.
type BatchFilter struct {
	MedicineIDs   []string
	InStockOnly   bool
	ExpiryFrom    *time.Time
	ExpiryTo      *time.Time
	Consignment   *bool
	OrderByExpiry bool
	Limit         int
}

type Customer struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Phone              string          `json:"phone,omitempty"`
	Email              string          `json:"email,omitempty"`
	Address            string          `json:"address,omitempty"`
	Type               string          `json:"type"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	CreditLimit        decimal.Decimal `json:"credit_limit"`
	CurrentBalance     decimal.Decimal `json:"current_balance"`
	Active             bool            `json:"active"`
	CreatedAt          time.Time       `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name               string          `json:"name"`
	Phone              string          `json:"phone"`
	Email              string          `json:"email"`
	Address            string          `json:"address"`
	Type               string          `json:"type"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	CreditLimit        decimal.Decimal `json:"credit_limit"`
}

type SaleItemRequest struct {
	MedicineID string          `json:"medicine_id"`
	BatchID    string          `json:"batch_id"`
	Quantity   int             `json:"quantity"`
	UnitType   string          `json:"unit_type"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type SaleRequest struct {
	CustomerID     string            `json:"customer_id,omitempty"`
	Items          []SaleItemRequest `json:"items"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	TaxAmount      decimal.Decimal   `json:"tax_amount"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	PaidAmount     decimal.Decimal   `json:"paid_amount"`
	ChangeAmount   *decimal.Decimal  `json:"change_amount,omitempty"`
	PaymentMethod  string            `json:"payment_method"`
	Notes          string            `json:"notes,omitempty"`
	PriceContext   string            `json:"price_context,omitempty"`
	ManagerPIN     string            `json:"manager_pin,omitempty"`
}

type SaleResponse struct {
	Success       bool   `json:"success"`
	SaleID        string `json:"sale_id"`
	InvoiceNumber string `json:"invoice_number"`
	Message       string `json:"message"`
}

// SaleDraft is a validated sale handed to the repository for the atomic commit.
// The repository assigns the invoice number, fills cost prices and pieces.
type SaleDraft struct {
	ID                   string
	CustomerID           string
	OperatorUsername     string
	Subtotal             decimal.Decimal
	DiscountAmount       decimal.Decimal
	TaxAmount            decimal.Decimal
	TotalAmount          decimal.Decimal
	PaidAmount           decimal.Decimal
	ChangeAmount         decimal.Decimal
	PaymentMethod        string
	Notes                string
	AllowOverCreditLimit bool
	CreatedAt            time.Time
	Items                []SaleItemRequest
}

type Sale struct {
	ID               string          `json:"id"`
	InvoiceNumber    string          `json:"invoice_number"`
	CustomerID       string          `json:"customer_id,omitempty"`
	CustomerName     string          `json:"customer_name,omitempty"`
	OperatorUsername string          `json:"operator_username"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaidAmount       decimal.Decimal `json:"paid_amount"`
	ChangeAmount     decimal.Decimal `json:"change_amount"`
	PaymentMethod    string          `json:"payment_method"`
	Status           string          `json:"status"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	Items            []SaleItem      `json:"items,omitempty"`
}

type SaleItem struct {
	ID           string          `json:"id"`
	SaleID       string          `json:"sale_id"`
	MedicineID   string          `json:"medicine_id"`
	MedicineName string          `json:"medicine_name,omitempty"`
	BatchID      string          `json:"batch_id"`
	Quantity     int             `json:"quantity"`
	UnitType     string          `json:"unit_type"`
	Pieces       int             `json:"pieces"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	CostPrice    decimal.Decimal `json:"cost_price"`
}

type SaleFilter struct {
	From       *time.Time
	To         *time.Time
	CustomerID string
	Status     string
	Limit      int
}

type POSMedicine struct {
	Medicine Medicine `json:"medicine"`
	Batches  []Batch  `json:"batches"`
}

type LowStockMedicine struct {
	MedicineID string `json:"medicine_id"`
	Name       string `json:"name"`
	Form       string `json:"form"`
	TotalStock int    `json:"total_stock"`
}

type InventoryStats struct {
	ActiveMedicines   int `json:"active_medicines"`
	TotalStock        int `json:"total_stock"`
	ExpiredBatches    int `json:"expired_batches"`
	NearExpiryBatches int `json:"near_expiry_batches"`
}

type SalesTotal struct {
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

type MonthlyRevenue struct {
	Month   string          `json:"month"`
	Label   string          `json:"label"`
	Revenue decimal.Decimal `json:"revenue"`
}

type Dashboard struct {
	Date              string             `json:"date"`
	ActiveMedicines   int                `json:"active_medicines"`
	TotalStock        int                `json:"total_stock"`
	TodaySales        SalesTotal         `json:"today_sales"`
	ExpiredBatches    int                `json:"expired_batches"`
	NearExpiryBatches int                `json:"near_expiry_batches"`
	RecentSales       []Sale             `json:"recent_sales"`
	LowStock          []LowStockMedicine `json:"low_stock"`
	ExpiringSoon      []Batch            `json:"expiring_soon"`
	MonthlyRevenue    []MonthlyRevenue   `json:"monthly_revenue"`
	GeneratedAt       time.Time          `json:"generated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type SaleEvent struct {
	Type          string          `json:"type"`
	SaleID        string          `json:"sale_id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    string          `json:"customer_id,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod string          `json:"payment_method"`
	BatchIDs      []string        `json:"batch_ids"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
