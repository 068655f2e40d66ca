package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/wildflour-bakehouse/api/internal/service"
	"github.com/wildflour-bakehouse/api/internal/validate"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// writeViolations reports field-level validation failures as a 400 with a
// structured payload.
func writeViolations(w http.ResponseWriter, violations []validate.Violation) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":      "validation failed",
		"violations": violations,
	})
}

// writeServiceError maps a service error onto the HTTP taxonomy: rejected
// input and broken domain rules → 400, missing rows → 404, no-op or terminal
// or lost-race conflicts → 409, anything else logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case isNotFoundError(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case isConflictError(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// isValidationError checks if the error is a known rule violation from the
// service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidPackageCount) ||
		errors.Is(err, service.ErrInvalidFlavourAmount) ||
		errors.Is(err, service.ErrUnknownSaleItem) ||
		errors.Is(err, service.ErrUnknownFlavour) ||
		errors.Is(err, service.ErrQuantityMismatch) ||
		errors.Is(err, service.ErrOutsideWindow) ||
		errors.Is(err, service.ErrPastDeadline) ||
		errors.Is(err, service.ErrDateClosed) ||
		errors.Is(err, service.ErrInvalidStatus) ||
		errors.Is(err, service.ErrReasonRequired) ||
		errors.Is(err, service.ErrNegativeCapacity)
}

func isNotFoundError(err error) bool {
	return errors.Is(err, service.ErrOrderNotFound) ||
		errors.Is(err, service.ErrDateNotFound)
}

func isConflictError(err error) bool {
	return errors.Is(err, service.ErrCapacityExceeded) ||
		errors.Is(err, service.ErrSameStatus) ||
		errors.Is(err, service.ErrTerminalState) ||
		errors.Is(err, service.ErrSamePickupDate) ||
		errors.Is(err, service.ErrDuplicateYear) ||
		errors.Is(err, service.ErrOpenOrdersExist)
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
