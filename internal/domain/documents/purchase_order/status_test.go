package purchase_order

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mise/internal/core/id"
)

func TestDeriveStatus(t *testing.T) {
	lineA, lineB := id.New(), id.New()
	details := []Detail{
		{ID: lineA, OrderedQty: 100_0000},
		{ID: lineB, OrderedQty: 50_0000},
	}

	tests := []struct {
		name        string
		receipts    []ReceiptLineView
		wantStatus  Status
		wantChanged bool
	}{
		{
			name:        "no receipts yet",
			receipts:    nil,
			wantChanged: false,
		},
		{
			name: "all lines fully received",
			receipts: []ReceiptLineView{
				{POLineID: lineA, Accepted: 100_0000, Closing: true, ReceivedAt: 1},
				{POLineID: lineB, Accepted: 50_0000, Closing: true, ReceivedAt: 1},
			},
			wantStatus:  StatusReceived,
			wantChanged: true,
		},
		{
			name: "short accepted closes a line under the ordered quantity",
			receipts: []ReceiptLineView{
				{POLineID: lineA, Accepted: 80_0000, Closing: true, ReceivedAt: 1},
				{POLineID: lineB, Accepted: 50_0000, Closing: true, ReceivedAt: 1},
			},
			wantStatus:  StatusReceived,
			wantChanged: true,
		},
		{
			name: "pending line with an untouched sibling stays unchanged",
			receipts: []ReceiptLineView{
				{POLineID: lineA, Accepted: 80_0000, Closing: false, KeepsOpen: true, ReceivedAt: 1},
			},
			wantChanged: false,
		},
		{
			name: "pending line with every line touched is partial",
			receipts: []ReceiptLineView{
				{POLineID: lineA, Accepted: 80_0000, Closing: false, KeepsOpen: true, ReceivedAt: 1},
				{POLineID: lineB, Accepted: 50_0000, Closing: true, ReceivedAt: 1},
			},
			wantStatus:  StatusPartiallyReceived,
			wantChanged: true,
		},
		{
			name: "pending line later topped up closes the order",
			receipts: []ReceiptLineView{
				{POLineID: lineA, Accepted: 80_0000, Closing: false, KeepsOpen: true, ReceivedAt: 1},
				{POLineID: lineA, Accepted: 20_0000, Closing: true, ReceivedAt: 2},
				{POLineID: lineB, Accepted: 50_0000, Closing: true, ReceivedAt: 1},
			},
			wantStatus:  StatusReceived,
			wantChanged: true,
		},
		{
			name: "cumulative coverage closes even without a closing disposition",
			receipts: []ReceiptLineView{
				{POLineID: lineA, Accepted: 60_0000, Closing: false, KeepsOpen: true, ReceivedAt: 1},
				{POLineID: lineA, Accepted: 40_0000, Closing: false, KeepsOpen: true, ReceivedAt: 2},
				{POLineID: lineB, Accepted: 50_0000, Closing: true, ReceivedAt: 1},
			},
			wantStatus:  StatusReceived,
			wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, changed := DeriveStatus(details, tt.receipts)
			assert.Equal(t, tt.wantChanged, changed)
			if tt.wantChanged {
				assert.Equal(t, tt.wantStatus, status)
			}
		})
	}
}

func TestDeriveStatus_NoDetails(t *testing.T) {
	_, changed := DeriveStatus(nil, nil)
	assert.False(t, changed)
}

func TestDeriveStatus_ConvergesRegardlessOfReceiptOrder(t *testing.T) {
	line := id.New()
	details := []Detail{{ID: line, OrderedQty: 100_0000}}

	inOrder := []ReceiptLineView{
		{POLineID: line, Accepted: 80_0000, KeepsOpen: true, ReceivedAt: 1},
		{POLineID: line, Accepted: 20_0000, Closing: true, ReceivedAt: 2},
	}
	reversed := []ReceiptLineView{inOrder[1], inOrder[0]}

	s1, c1 := DeriveStatus(details, inOrder)
	s2, c2 := DeriveStatus(details, reversed)
	assert.Equal(t, s1, s2)
	assert.Equal(t, c1, c2)
	assert.Equal(t, StatusReceived, s1)
}
