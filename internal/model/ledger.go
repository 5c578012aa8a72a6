package model

import "time"

// CreditLedger is the per (student, tutor) credit account. It is mutated
// only through the operations below, never by direct field writes, so the
// invariant used + reserved <= total_purchased holds at all times.
type CreditLedger struct {
	StudentID      int64     `json:"student_id"`
	TutorID        int64     `json:"tutor_id"`
	TotalPurchased int64     `json:"total_purchased"`
	Used           int64     `json:"used"`
	Reserved       int64     `json:"reserved"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Available returns credits that are neither spent nor earmarked.
func (l *CreditLedger) Available() int64 {
	return l.TotalPurchased - l.Used - l.Reserved
}

func (l *CreditLedger) checkAmount(amount int64) error {
	if amount <= 0 {
		return Validationf("credit amount must be positive, got %d", amount)
	}
	return nil
}

// AddPurchase records a credit top-up from the payment collaborator. The
// engine never decreases TotalPurchased.
func (l *CreditLedger) AddPurchase(amount int64) error {
	if err := l.checkAmount(amount); err != nil {
		return err
	}
	l.TotalPurchased += amount
	return nil
}

// Reserve earmarks credits for future contract occurrences.
func (l *CreditLedger) Reserve(amount int64) error {
	if err := l.checkAmount(amount); err != nil {
		return err
	}
	if l.Available() < amount {
		return &InsufficientCreditsError{StudentID: l.StudentID, TutorID: l.TutorID, Shortfall: amount - l.Available()}
	}
	l.Reserved += amount
	return nil
}

// Consume moves already-reserved credits to used when a contract session
// completes.
func (l *CreditLedger) Consume(amount int64) error {
	if err := l.checkAmount(amount); err != nil {
		return err
	}
	if l.Reserved < amount {
		return &InsufficientCreditsError{StudentID: l.StudentID, TutorID: l.TutorID, Shortfall: amount - l.Reserved}
	}
	l.Reserved -= amount
	l.Used += amount
	return nil
}

// Release returns reserved credits to available when a future occurrence is
// cancelled before completion.
func (l *CreditLedger) Release(amount int64) error {
	if err := l.checkAmount(amount); err != nil {
		return err
	}
	if l.Reserved < amount {
		return &InsufficientCreditsError{StudentID: l.StudentID, TutorID: l.TutorID, Shortfall: amount - l.Reserved}
	}
	l.Reserved -= amount
	return nil
}

// DebitDirect spends available credits in one step. Ad-hoc bookings are
// charged at booking time, not at completion, so they skip the reservation.
func (l *CreditLedger) DebitDirect(amount int64) error {
	if err := l.checkAmount(amount); err != nil {
		return err
	}
	if l.Available() < amount {
		return &InsufficientCreditsError{StudentID: l.StudentID, TutorID: l.TutorID, Shortfall: amount - l.Available()}
	}
	l.Used += amount
	return nil
}

// Refund reverses a direct debit when an ad-hoc session is cancelled,
// moving credits from used back to available.
func (l *CreditLedger) Refund(amount int64) error {
	if err := l.checkAmount(amount); err != nil {
		return err
	}
	if l.Used < amount {
		return &InsufficientCreditsError{StudentID: l.StudentID, TutorID: l.TutorID, Shortfall: amount - l.Used}
	}
	l.Used -= amount
	return nil
}
