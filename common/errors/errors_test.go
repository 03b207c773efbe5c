package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesKindAndCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(KindMarketDataUnavailable, cause, "price fetch for %s", "ACME")

	assert.True(t, IsKind(err, KindMarketDataUnavailable))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "ACME")
}

func TestKindOfUnwrapsNestedErrors(t *testing.T) {
	inner := E(KindMissingMarketData, "no fixing")
	outer := fmt.Errorf("contract swap-1: %w", inner)

	assert.Equal(t, KindMissingMarketData, KindOf(outer))
	assert.True(t, IsKind(outer, KindMissingMarketData))
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("plain")))
}

func TestContextualFieldsRideAlong(t *testing.T) {
	err := E(KindCalculation, "zero reference notional").WithContract("swap-1").WithRequest("req-9")
	assert.Equal(t, "swap-1", err.ContractID)
	assert.Equal(t, "req-9", err.RequestID)
	assert.Contains(t, err.Error(), "zero reference notional")
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(E(KindValidation, "bad")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(E(KindNotFound, "missing")))
	assert.Equal(t, http.StatusFailedDependency, HTTPStatus(E(KindMissingMarketData, "no data")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("plain")))
}
