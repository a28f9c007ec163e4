package matcher

import (
	"golang-em-checker/internal/models"
)

// LineItemIndex groups EM line items by account and utility type, built once per run
type LineItemIndex struct {
	// AccountIndex maps account ids to their line items
	AccountIndex map[string]*AccountEntry

	// AllLineItems holds all indexed line items in source order
	AllLineItems []*models.EMLineItem
}

// AccountEntry holds the line items of one account
type AccountEntry struct {
	AccountID string

	// Items keeps the account's rows in source order
	Items []*models.EMLineItem

	// TypeIndex maps utility types to the account's rows of that type
	TypeIndex map[string][]*models.EMLineItem
}

// NewLineItemIndex creates a new index from a slice of EM line items
func NewLineItemIndex(items []*models.EMLineItem) *LineItemIndex {
	index := &LineItemIndex{
		AccountIndex: make(map[string]*AccountEntry),
	}

	for _, item := range items {
		index.AddLineItem(item)
	}
	return index
}

// AddLineItem adds a line item to the index. Rows without an account id
// can never be matched and are left out of the account index.
func (li *LineItemIndex) AddLineItem(item *models.EMLineItem) {
	if item == nil {
		return
	}
	li.AllLineItems = append(li.AllLineItems, item)
	if item.AccountID == "" {
		return
	}

	entry, exists := li.AccountIndex[item.AccountID]
	if !exists {
		entry = &AccountEntry{
			AccountID: item.AccountID,
			TypeIndex: make(map[string][]*models.EMLineItem),
		}
		li.AccountIndex[item.AccountID] = entry
	}

	entry.Items = append(entry.Items, item)
	entry.TypeIndex[item.UtilityType] = append(entry.TypeIndex[item.UtilityType], item)
}

// GetByAccount returns the line items of an account, nil when it has none
func (li *LineItemIndex) GetByAccount(accountID string) []*models.EMLineItem {
	if entry, exists := li.AccountIndex[accountID]; exists {
		return entry.Items
	}
	return nil
}

// HasAccount reports whether the account has at least one line item
func (li *LineItemIndex) HasAccount(accountID string) bool {
	_, exists := li.AccountIndex[accountID]
	return exists
}

// GetByType returns the account's line items of one utility type
func (li *LineItemIndex) GetByType(accountID, utilityType string) []*models.EMLineItem {
	if entry, exists := li.AccountIndex[accountID]; exists {
		return entry.TypeIndex[utilityType]
	}
	return nil
}

// IndexStats provides statistics about the index
type IndexStats struct {
	TotalLineItems int
	UniqueAccounts int
	UniqueTypes    int
}

// GetIndexStats returns statistics about the line item index
func (li *LineItemIndex) GetIndexStats() IndexStats {
	types := make(map[string]bool)
	for _, entry := range li.AccountIndex {
		for utilityType := range entry.TypeIndex {
			types[utilityType] = true
		}
	}

	return IndexStats{
		TotalLineItems: len(li.AllLineItems),
		UniqueAccounts: len(li.AccountIndex),
		UniqueTypes:    len(types),
	}
}
