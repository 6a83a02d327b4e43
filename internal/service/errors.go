package service

import (
	"errors"

	"google.golang.org/grpc/codes"
)

// Code: машиночитаемый код ошибки ядра склада.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	CodeInvalidQuantity         Code = "INVALID_QTY"
	CodeInvalidReason           Code = "INVALID_REASON"
	CodeProductRequired         Code = "PRODUCT_REQUIRED"
	CodeLocationRequired        Code = "LOCATION_REQUIRED"
	CodeInventoryNotFound       Code = "INVENTORY_NOT_FOUND"
	CodeInsufficientAvailable   Code = "INSUFFICIENT_AVAILABLE"
	CodeInsufficientInventory   Code = "INSUFFICIENT_INVENTORY"
	CodeNegativeStock           Code = "NEGATIVE_STOCK"
	CodeReservedExceedsQuantity Code = "RESERVED_EXCEEDS_QUANTITY"
	CodeQuantityOverflow        Code = "QUANTITY_OVERFLOW"

	// Производственные заказы
	CodeOrderNotFound            Code = "ORDER_NOT_FOUND"
	CodeOrderCodeExists          Code = "ORDER_CODE_EXISTS"
	CodeOrderCodeRequired        Code = "ORDER_CODE_REQUIRED"
	CodeInvalidStatus            Code = "INVALID_STATUS"
	CodeInvalidTransition        Code = "INVALID_TRANSITION"
	CodeInvalidPriority          Code = "INVALID_PRIORITY"
	CodeWarehouseNotFound        Code = "WAREHOUSE_NOT_FOUND"
	CodeLocationNotFound         Code = "LOCATION_NOT_FOUND"
	CodeInvalidLocation          Code = "INVALID_LOCATION"
	CodeNoStockAtLocation        Code = "NO_STOCK_AT_LOCATION"
	CodeQuantityExceedsAvailable Code = "QUANTITY_EXCEEDS_AVAILABLE"
	CodeItemNotFound             Code = "ITEM_NOT_FOUND"
	CodeOrderLocked              Code = "ORDER_LOCKED"

	CodeConcurrentConflict Code = "CONCURRENT_CONFLICT"
)

// LedgerError: ожидаемый отказ операции. Транзакция, в которой он возник, откатывается целиком.
type LedgerError struct {
	Code    Code
	Message string
}

func (e *LedgerError) Error() string { return e.Message }

// Is сравнивает по коду, чтобы errors.Is(err, ErrNegativeStock) работал и для ошибок с уточнённым текстом.
func (e *LedgerError) Is(target error) bool {
	var t *LedgerError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newErr(code Code, msg string) *LedgerError {
	return &LedgerError{Code: code, Message: msg}
}

// withDetail сохраняет код сентинела, но уточняет текст (например, какой товар не прошёл проверку).
func withDetail(base *LedgerError, detail string) *LedgerError {
	return &LedgerError{Code: base.Code, Message: base.Message + ": " + detail}
}

var (
	ErrInvalidQuantity         = newErr(CodeInvalidQuantity, "quantity must be a finite number greater than zero")
	ErrInvalidReason           = newErr(CodeInvalidReason, "reason is required")
	ErrProductRequired         = newErr(CodeProductRequired, "product is required")
	ErrLocationRequired        = newErr(CodeLocationRequired, "location is required")
	ErrInventoryNotFound       = newErr(CodeInventoryNotFound, "inventory not found")
	ErrInsufficientAvailable   = newErr(CodeInsufficientAvailable, "insufficient available stock")
	ErrInsufficientInventory   = newErr(CodeInsufficientInventory, "insufficient inventory")
	ErrNegativeStock           = newErr(CodeNegativeStock, "resulting quantity cannot be negative")
	ErrReservedExceedsQuantity = newErr(CodeReservedExceedsQuantity, "reserved exceeds quantity")
	ErrQuantityOverflow        = newErr(CodeQuantityOverflow, "resulting quantity exceeds the storable maximum")

	ErrOrderNotFound            = newErr(CodeOrderNotFound, "production order not found")
	ErrOrderCodeExists          = newErr(CodeOrderCodeExists, "production order code already exists")
	ErrOrderCodeRequired        = newErr(CodeOrderCodeRequired, "production order code is required")
	ErrInvalidStatus            = newErr(CodeInvalidStatus, "unknown production order status")
	ErrInvalidTransition        = newErr(CodeInvalidTransition, "status transition not allowed")
	ErrInvalidPriority          = newErr(CodeInvalidPriority, "priority must be between 1 and 5")
	ErrWarehouseNotFound        = newErr(CodeWarehouseNotFound, "warehouse not found")
	ErrLocationNotFound         = newErr(CodeLocationNotFound, "location not found")
	ErrInvalidLocation          = newErr(CodeInvalidLocation, "location does not belong to the order warehouse")
	ErrNoStockAtLocation        = newErr(CodeNoStockAtLocation, "no available stock at location")
	ErrQuantityExceedsAvailable = newErr(CodeQuantityExceedsAvailable, "quantity exceeds available stock")
	ErrItemNotFound             = newErr(CodeItemNotFound, "production order item not found")
	ErrOrderLocked              = newErr(CodeOrderLocked, "items can only be changed while the order is DRAFT or OPEN")

	ErrConcurrentConflict = newErr(CodeConcurrentConflict, "concurrent update conflict, retries exhausted")
)

// GetCode возвращает CodeUnknown для всего, что не является LedgerError (отказ хранилища и т.п.).
func GetCode(err error) Code {
	var e *LedgerError
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsLedgerError отделяет ожидаемые отказы от неустранимых.
func IsLedgerError(err error) bool {
	var e *LedgerError
	return errors.As(err, &e)
}

func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalidQuantity,
		CodeInvalidReason,
		CodeProductRequired,
		CodeLocationRequired,
		CodeInvalidStatus,
		CodeOrderCodeRequired,
		CodeInvalidPriority,
		CodeInvalidLocation:
		return codes.InvalidArgument

	case CodeInventoryNotFound,
		CodeOrderNotFound,
		CodeWarehouseNotFound,
		CodeLocationNotFound,
		CodeItemNotFound:
		return codes.NotFound

	case CodeOrderCodeExists:
		return codes.AlreadyExists

	case CodeInsufficientAvailable,
		CodeInsufficientInventory,
		CodeNegativeStock,
		CodeReservedExceedsQuantity,
		CodeInvalidTransition,
		CodeOrderLocked,
		CodeNoStockAtLocation,
		CodeQuantityExceedsAvailable:
		return codes.FailedPrecondition

	case CodeQuantityOverflow:
		return codes.OutOfRange

	case CodeConcurrentConflict:
		return codes.Aborted

	default:
		return codes.Internal
	}
}
