package purchase_order

import (
	"mise/internal/core/id"
	"mise/internal/core/types"
)

// ReceiptLineView is the slice of a goods-receipt detail the status
// derivation needs: which PO line it hit, how much was accepted (in the PO
// line's unit), and whether its disposition closes the line.
type ReceiptLineView struct {
	POLineID   id.ID
	Accepted   types.Quantity
	Closing    bool
	KeepsOpen  bool // SHORT_PENDING
	ReceivedAt int  // ordinal within the line's receipt sequence
}

// DeriveStatus recomputes the order status from scratch against all receipts
// to date. Never incremented in place, so out-of-order and retried receipts
// converge to the same answer.
//
// RECEIVED when every line's cumulative accepted quantity covers its ordered
// quantity, or its last receipt used a closing disposition.
// PARTIALLY_RECEIVED when at least one line is held open by SHORT_PENDING and
// no line is still untouched. Otherwise no status change.
func DeriveStatus(details []Detail, receipts []ReceiptLineView) (Status, bool) {
	if len(details) == 0 {
		return "", false
	}

	byLine := make(map[id.ID][]ReceiptLineView, len(details))
	for _, r := range receipts {
		byLine[r.POLineID] = append(byLine[r.POLineID], r)
	}

	allClosed := true
	anyPending := false
	anyUntouched := false

	for _, d := range details {
		lineReceipts := byLine[d.ID]
		if len(lineReceipts) == 0 {
			allClosed = false
			anyUntouched = true
			continue
		}

		var cumulative types.Quantity
		last := lineReceipts[0]
		for _, r := range lineReceipts {
			cumulative += r.Accepted
			if r.ReceivedAt >= last.ReceivedAt {
				last = r
			}
		}

		closed := cumulative >= d.OrderedQty || last.Closing
		if !closed {
			allClosed = false
			if last.KeepsOpen {
				anyPending = true
			}
		}
	}

	if allClosed {
		return StatusReceived, true
	}
	if anyPending && !anyUntouched {
		return StatusPartiallyReceived, true
	}
	return "", false
}
