package core

import "pharmxchain/pkg/domain"

type (
	Role               = domain.Role
	EventType          = domain.EventType
	Medicine           = domain.Medicine
	Batch              = domain.Batch
	SupplyChainEvent   = domain.SupplyChainEvent
	HolderRef          = domain.HolderRef
	HolderStock        = domain.HolderStock
	MedicineHolding    = domain.MedicineHolding
	LowStockAlert      = domain.LowStockAlert
	EntityDetails      = domain.EntityDetails
	Directory          = domain.Directory
	PersistentStore    = domain.PersistentStore
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	RulesEngine        = domain.RulesEngine
	Result             = domain.Result
	Violation          = domain.Violation
	RuleViolationError = domain.RuleViolationError
)

const (
	RoleManufacturer = domain.RoleManufacturer
	RoleSupplier     = domain.RoleSupplier
	RolePharmacy     = domain.RolePharmacy
	RoleRegulator    = domain.RoleRegulator
	RoleNone         = domain.RoleNone
)

const (
	EventManufactured = domain.EventManufactured
	EventToSupplier   = domain.EventToSupplier
	EventToPharmacy   = domain.EventToPharmacy
	EventDispensed    = domain.EventDispensed
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)
