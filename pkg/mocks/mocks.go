// Package mocks provides test doubles for the ListTheory interfaces.
//
// Two styles are included. MockCollectionClient and MockBatchTransaction
// are testify mocks for expectation-driven tests:
//
//	mockTx := new(mocks.MockBatchTransaction)
//	mockClient := new(mocks.MockCollectionClient)
//	mockClient.On("OpenBatch").Return(mockTx)
//	mockTx.On("AddItem", "Tasks", mock.Anything).Return(&core.ResultHandle{}, nil)
//	mockTx.On("Commit", mock.Anything).Return(nil)
//
// StubClient is a scriptable in-memory backend for behavioral tests: it
// records every opened transaction and registered call, and lets tests
// inject registration errors, per-call remote errors, and commit-level
// transport failures.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/theory-cloud/listtheory/pkg/core"
	"github.com/theory-cloud/listtheory/pkg/operation"
)

// MockCollectionClient is a testify mock of core.CollectionClient.
type MockCollectionClient struct {
	mock.Mock
}

// OpenBatch opens a grouped transaction.
func (m *MockCollectionClient) OpenBatch() core.BatchTransaction {
	args := m.Called()
	tx, _ := args.Get(0).(core.BatchTransaction)
	return tx
}

// MockBatchTransaction is a testify mock of core.BatchTransaction.
type MockBatchTransaction struct {
	mock.Mock
}

// AddItem registers an item create.
func (m *MockBatchTransaction) AddItem(collection string, fields map[string]any) (*core.ResultHandle, error) {
	args := m.Called(collection, fields)
	handle, _ := args.Get(0).(*core.ResultHandle)
	return handle, args.Error(1)
}

// UpdateItem registers a field-map update.
func (m *MockBatchTransaction) UpdateItem(collection string, itemID int, fields map[string]any, concurrencyToken string) (*core.ResultHandle, error) {
	args := m.Called(collection, itemID, fields, concurrencyToken)
	handle, _ := args.Get(0).(*core.ResultHandle)
	return handle, args.Error(1)
}

// DeleteItem registers an item delete.
func (m *MockBatchTransaction) DeleteItem(collection string, itemID int, concurrencyToken string) (*core.ResultHandle, error) {
	args := m.Called(collection, itemID, concurrencyToken)
	handle, _ := args.Get(0).(*core.ResultHandle)
	return handle, args.Error(1)
}

// AddValidated registers a validate-and-create.
func (m *MockBatchTransaction) AddValidated(collection string, formValues []operation.FormValue, path string) (*core.ResultHandle, error) {
	args := m.Called(collection, formValues, path)
	handle, _ := args.Get(0).(*core.ResultHandle)
	return handle, args.Error(1)
}

// UpdateValidated registers a validate-and-update.
func (m *MockBatchTransaction) UpdateValidated(collection string, itemID int, formValues []operation.FormValue) (*core.ResultHandle, error) {
	args := m.Called(collection, itemID, formValues)
	handle, _ := args.Get(0).(*core.ResultHandle)
	return handle, args.Error(1)
}

// Commit performs the round trip.
func (m *MockBatchTransaction) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
